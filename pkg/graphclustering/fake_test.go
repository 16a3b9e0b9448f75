package graphclustering

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/c360/semcommunity/errors"
)

// fakeGraph serves a fixed partition and attribute set, persisting into
// an in-memory store. Hooks inject failures.
type fakeGraph struct {
	*MemoryCommunityStorage

	mu         sync.Mutex
	partition  Partition
	nodes      map[string]Node
	edges      []Edge
	clusterErr error
	clusters   int
	params     map[string]any

	// failSummary, when set, is consulted before every summary write
	failSummary func(CommunityKey) error
	// failRecord, when set, is consulted before every record write
	failRecord func(CommunityKey) error
}

var _ CommunityPersister = (*fakeGraph)(nil)

func newFakeGraph(p Partition, nodes []Node, edges []Edge) *fakeGraph {
	g := &fakeGraph{
		MemoryCommunityStorage: NewMemoryCommunityStorage(),
		partition:              p,
		nodes:                  make(map[string]Node, len(nodes)),
		edges:                  edges,
	}
	for _, n := range nodes {
		g.nodes[n.ID] = n
	}
	return g
}

func (g *fakeGraph) InvokeClustering(ctx context.Context, algorithm string, params map[string]any) (Partition, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clusters++
	g.params = params
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.clusterErr != nil {
		return nil, g.clusterErr
	}
	return append(Partition(nil), g.partition...), nil
}

func (g *fakeGraph) FetchNodeAttributes(ctx context.Context, ids []string) ([]Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (g *fakeGraph) FetchEdgeAttributes(ctx context.Context, ids []string) ([]Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []Edge
	for _, e := range g.edges {
		_, s := want[e.Source]
		_, t := want[e.Target]
		if s || t {
			out = append(out, e)
		}
	}
	return out, nil
}

func (g *fakeGraph) WriteCommunityRecord(ctx context.Context, record *CommunityRecord) error {
	if g.failRecord != nil {
		if err := g.failRecord(record.Key()); err != nil {
			return err
		}
	}
	return g.MemoryCommunityStorage.WriteCommunityRecord(ctx, record)
}

func (g *fakeGraph) WriteSummary(ctx context.Context, summary *CommunitySummary) error {
	if g.failSummary != nil {
		if err := g.failSummary(summary.Key()); err != nil {
			return err
		}
	}
	return g.MemoryCommunityStorage.WriteSummary(ctx, summary)
}

func (g *fakeGraph) setPartition(p Partition) {
	g.mu.Lock()
	g.partition = p
	g.mu.Unlock()
}

func (g *fakeGraph) setClusterErr(err error) {
	g.mu.Lock()
	g.clusterErr = err
	g.mu.Unlock()
}

// graphOnly hides the persistence side of a fakeGraph, leaving a store
// without SummaryReader, RecordReader or Resetter.
type graphOnly struct {
	g *fakeGraph
}

func (o graphOnly) InvokeClustering(ctx context.Context, algorithm string, params map[string]any) (Partition, error) {
	return o.g.InvokeClustering(ctx, algorithm, params)
}

func (o graphOnly) FetchNodeAttributes(ctx context.Context, ids []string) ([]Node, error) {
	return o.g.FetchNodeAttributes(ctx, ids)
}

func (o graphOnly) FetchEdgeAttributes(ctx context.Context, ids []string) ([]Edge, error) {
	return o.g.FetchEdgeAttributes(ctx, ids)
}

func (o graphOnly) WriteCommunityRecord(ctx context.Context, record *CommunityRecord) error {
	return o.g.WriteCommunityRecord(ctx, record)
}

func (o graphOnly) WriteSummary(ctx context.Context, summary *CommunitySummary) error {
	return o.g.WriteSummary(ctx, summary)
}

// abcPartition is nodes A, B, C with level 0 {A,B},{C} and level 1 {A,B,C}.
func abcPartition() Partition {
	return Partition{
		{NodeID: "A", CommunityID: "c0", Level: 0},
		{NodeID: "B", CommunityID: "c0", Level: 0},
		{NodeID: "C", CommunityID: "c1", Level: 0},
		{NodeID: "A", CommunityID: "top", Level: 1},
		{NodeID: "B", CommunityID: "top", Level: 1},
		{NodeID: "C", CommunityID: "top", Level: 1},
	}
}

func abcNodes() []Node {
	return []Node{
		{ID: "A", Name: "Alpha", Type: "robot", Description: "Survey robot"},
		{ID: "B", Name: "Bravo", Type: "robot", Description: "Inspection robot"},
		{ID: "C", Name: "Charlie", Type: "dock", Description: "Charging dock"},
	}
}

func abcEdges() []Edge {
	return []Edge{
		{ID: "ab", Source: "A", Target: "B", Type: "paired_with", Weight: 1},
		{ID: "bc", Source: "B", Target: "C", Type: "charges_at", Weight: 1},
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Concurrency = 2
	cfg.GenerateTimeout = time.Second
	cfg.Retry = RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
	cfg.EnablePersistence = true
	return cfg
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

// transientErr is an error the summarizer retries.
func transientErr(msg string) error {
	return errors.WrapTransient(stderrors.New(msg), "fake", "Generate", "generate")
}

// invalidErr is an error the summarizer does not retry.
func invalidErr(msg string) error {
	return errors.WrapInvalid(stderrors.New(msg), "fake", "Generate", "generate")
}
