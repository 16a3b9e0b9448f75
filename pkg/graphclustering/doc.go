// Package graphclustering builds a hierarchy of graph communities and a
// natural-language summary for each of them.
//
// # Overview
//
// A build runs in three stages:
//
//  1. Clustering: the graph store's clustering capability partitions the
//     nodes into communities at one or more hierarchy levels. Level 0 is the
//     finest; every community at level L is contained in exactly one
//     community at level L+1.
//  2. Collection: the InfoCollector groups the partition, fetches node and
//     edge attributes in bounded batches and renders one CommunityRecord per
//     (community, level) with a size-bounded textual payload. Records are
//     optionally written back to the graph store.
//  3. Summarization: the Summarizer generates summaries leaf-first. A
//     community is summarized only after all of its children finished, and
//     the successful child summaries are passed to the generator as context.
//
// # Quick Start
//
//	graph, _ := memgraph.LoadFile("graph.yaml")
//	store, err := graphclustering.NewStore(
//		graphclustering.NewGraphStore(graph, graphclustering.NewMemoryCommunityStorage()),
//		generator,
//		graphclustering.DefaultConfig(),
//	)
//	if err != nil {
//		return err
//	}
//	result, err := store.BuildCommunities(ctx)
//	summary, ok := store.GetSummary(ctx, "comm-0-d2")
//
// # Failure Handling
//
// A failing clustering call does not fail the build: the result reports
// ClusteringUnavailable and the previous build stays readable. Generation
// errors are retried with exponential backoff while they classify as
// transient; communities that still fail are listed in BuildResult.Failed
// and their ancestors are summarized without them. Persistence errors stop
// the build with a *BuildError.
//
// # Persistence
//
// KVCommunityStorage keeps records and summaries in the COMMUNITY_INDEX NATS
// KV bucket. MemoryCommunityStorage serves tests and single-process use.
// Persisted records allow ResumeSummaries to finish an interrupted build
// without regenerating summaries whose source payload is unchanged.
package graphclustering
