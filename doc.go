// Package semcommunity builds hierarchical community summaries for knowledge
// graphs.
//
// # Overview
//
// A graph is partitioned into communities at several levels, where each
// community at level n+1 is a union of communities at level n. Every
// community gets a natural-language summary. Leaf summaries describe the
// member entities and the relationships among them. Higher level summaries
// also fold in the summaries of their children, so a build always summarizes
// bottom-up.
//
// # Packages
//
//   - pkg/graphclustering: the community store, hierarchy, collector,
//     PageRank ranking, prompt payloads and the concurrent summarizer
//   - pkg/graphclustering/sqlitestore, redisstore: persistence backends
//   - pkg/memgraph: an in-memory graph with label propagation clustering
//   - pkg/llm: text generators (OpenAI-compatible, HTTP summarizer,
//     statistical) with rate limiting and fallback
//   - natsclient: NATS connection handling and the JetStream KV store used
//     by the KV persistence backend
//   - config: layered YAML configuration with environment overrides
//   - errors: transient, invalid and fatal error classification
//   - metric: the Prometheus registry and metrics endpoint
//   - pkg/cache, pkg/retry, pkg/worker: summary cache, backoff and the
//     bounded worker pool
//
// # Command
//
// cmd/semcommunity loads a graph file, runs a build (or resumes one from
// persisted records) and writes a JSON report of every community and its
// summary:
//
//	semcommunity --config=config.yaml --graph=graph.yaml --output=communities.json
//
// # Configuration
//
// Settings come from defaults, then each configuration file layer, then
// SEMCOMMUNITY_* environment variables. See the config package.
package semcommunity
