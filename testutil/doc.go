// Package testutil provides shared test doubles and fixtures.
//
// MockGenerator is a scripted, concurrency-safe text generator that records
// every prompt and context it receives. By default it answers with a
// deterministic summary naming the community in the prompt, so builds over
// the same graph produce identical summaries.
//
// TestGraphYAML is a small graph file used by the graph, store and CLI tests.
package testutil
