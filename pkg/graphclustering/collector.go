package graphclustering

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"lukechampine.com/blake3"

	"github.com/c360/semcommunity/errors"
)

// CollectResult is the output of RetrieveCommunityInfo.
type CollectResult struct {
	// Hierarchy holds the records ordered by level ascending, then ID
	Hierarchy *Hierarchy

	// LevelErrors lists levels dropped for violating the hierarchy invariants
	LevelErrors []*AggregationError

	// Persisted is the number of records written to the graph store
	Persisted int
}

// Records returns the collected records in output order.
func (r *CollectResult) Records() []*CommunityRecord {
	return r.Hierarchy.Records()
}

// InfoCollector turns a clustering partition into community records.
type InfoCollector struct {
	batchSize        int
	fetchConcurrency int
	maxPayloadSize   int
	policy           TruncationPolicy
	pageRank         PageRankConfig

	logger  *slog.Logger
	clock   func() time.Time
	metrics *buildMetrics
}

// NewInfoCollector creates a collector using the fetch and payload settings of cfg.
func NewInfoCollector(cfg Config, logger *slog.Logger) *InfoCollector {
	if logger == nil {
		logger = slog.Default()
	}
	batch := cfg.FetchBatchSize
	if batch <= 0 {
		batch = DefaultConfig().FetchBatchSize
	}
	conc := cfg.FetchConcurrency
	if conc <= 0 {
		conc = 1
	}
	return &InfoCollector{
		batchSize:        batch,
		fetchConcurrency: conc,
		maxPayloadSize:   cfg.MaxPayloadSize,
		policy:           cfg.TruncationPolicy,
		pageRank:         DefaultPageRankConfig(),
		logger:           logger,
		clock:            time.Now,
	}
}

// RetrieveCommunityInfo groups the partition into communities, fetches the
// attributes of every member in batches and builds one record per
// (community, level) with a bounded textual payload and parent/child
// links. With enablePersistence each record is written to graph before
// returning. A partition whose level 0 is unusable fails with a fatal
// AggregationError; invalid higher levels are dropped and reported.
func (c *InfoCollector) RetrieveCommunityInfo(ctx context.Context, graph GraphStore, p Partition, enablePersistence bool) (*CollectResult, error) {
	analysis, err := p.Analyze()
	if err != nil {
		return nil, errors.WrapFatal(err, "InfoCollector", "RetrieveCommunityInfo", "analyze partition")
	}
	for _, le := range analysis.LevelErrors {
		c.logger.Warn("Dropping invalid partition levels",
			"level", le.Level,
			"community_id", le.CommunityID,
			"node_id", le.NodeID,
			"reason", le.Reason)
	}

	result := &CollectResult{LevelErrors: analysis.LevelErrors}
	if analysis.Levels() == 0 {
		result.Hierarchy, _ = NewHierarchy(nil)
		return result, nil
	}

	nodes, edges, err := c.fetchAttributes(ctx, graph, analysis.Nodes())
	if err != nil {
		return nil, err
	}
	if missing := len(analysis.Nodes()) - len(nodes); missing > 0 {
		c.logger.Debug("Graph returned no attributes for some nodes", "missing", missing)
	}

	records := c.buildRecords(analysis, nodes, edges)
	h, err := NewHierarchy(records)
	if err != nil {
		return nil, errors.WrapFatal(err, "InfoCollector", "RetrieveCommunityInfo", "link hierarchy")
	}
	result.Hierarchy = h

	if enablePersistence {
		for _, rec := range h.Records() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := graph.WriteCommunityRecord(ctx, rec); err != nil {
				return nil, &PersistenceError{Op: "write record", Key: rec.Key(), Err: err}
			}
			result.Persisted++
		}
	}

	c.logger.Debug("Collected community records",
		"levels", h.Levels(),
		"communities", h.Len(),
		"persisted", result.Persisted)

	return result, nil
}

// fetchAttributes loads node and incident edge attributes in batches with
// bounded concurrency. Edges are deduplicated by ID and returned sorted.
func (c *InfoCollector) fetchAttributes(ctx context.Context, graph GraphReader, ids []string) (map[string]Node, []Edge, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fetchConcurrency)

	var mu sync.Mutex
	nodes := make(map[string]Node, len(ids))
	edges := make(map[string]Edge)

	for start := 0; start < len(ids); start += c.batchSize {
		batch := ids[start:min(start+c.batchSize, len(ids))]
		g.Go(func() error {
			ns, err := graph.FetchNodeAttributes(gctx, batch)
			if err != nil {
				return errors.Wrap(err, "InfoCollector", "fetchAttributes", "fetch node attributes")
			}
			es, err := graph.FetchEdgeAttributes(gctx, batch)
			if err != nil {
				return errors.Wrap(err, "InfoCollector", "fetchAttributes", "fetch edge attributes")
			}

			mu.Lock()
			defer mu.Unlock()
			for _, n := range ns {
				nodes[n.ID] = n
			}
			for _, e := range es {
				id := e.EdgeID()
				if _, seen := edges[id]; !seen {
					edges[id] = e
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	sorted := make([]Edge, 0, len(edges))
	for _, e := range edges {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EdgeID() < sorted[j].EdgeID()
	})
	return nodes, sorted, nil
}

func (c *InfoCollector) buildRecords(a *PartitionAnalysis, nodes map[string]Node, edges []Edge) []*CommunityRecord {
	collectedAt := c.clock()
	records := make([]*CommunityRecord, 0)
	byKey := make(map[CommunityKey]*CommunityRecord)

	for level := 0; level < a.Levels(); level++ {
		assigned := a.levels[level].community

		internal := make(map[string][]Edge)
		for _, e := range edges {
			cs, okS := assigned[e.Source]
			ct, okT := assigned[e.Target]
			if okS && okT && cs == ct {
				internal[cs] = append(internal[cs], e)
			}
		}

		for _, id := range a.Communities(level) {
			key := CommunityKey{ID: id, Level: level}
			members := a.Members(key)
			communityEdges := internal[id]

			text, truncated := buildPayload(payloadInput{
				members: members,
				nodes:   nodes,
				edges:   communityEdges,
			}, c.maxPayloadSize, c.policy, c.pageRank)
			if truncated {
				c.metrics.recordTruncated()
			}

			edgeIDs := make([]string, len(communityEdges))
			for i, e := range communityEdges {
				edgeIDs[i] = e.EdgeID()
			}
			digest := blake3.Sum256([]byte(text))

			rec := &CommunityRecord{
				ID:          id,
				Level:       level,
				Members:     append([]string(nil), members...),
				Edges:       edgeIDs,
				Text:        text,
				Truncated:   truncated,
				Digest:      hex.EncodeToString(digest[:]),
				CollectedAt: collectedAt,
			}
			if parent, ok := a.Parent(key); ok {
				rec.Parent = &parent
			}
			records = append(records, rec)
			byKey[key] = rec
		}
	}

	// Records are in level-then-ID order, so children are appended in ID order.
	for _, rec := range records {
		if rec.Parent != nil {
			parent := byKey[*rec.Parent]
			parent.Children = append(parent.Children, rec.Key())
		}
	}

	return records
}
