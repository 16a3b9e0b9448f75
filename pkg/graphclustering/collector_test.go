package graphclustering

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semcommunity/errors"
)

// batchRecorder records the batches requested from a fakeGraph.
type batchRecorder struct {
	*fakeGraph

	mu       sync.Mutex
	batches  [][]string
	fetchErr error
}

func (b *batchRecorder) FetchNodeAttributes(ctx context.Context, ids []string) ([]Node, error) {
	b.mu.Lock()
	b.batches = append(b.batches, append([]string(nil), ids...))
	err := b.fetchErr
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return b.fakeGraph.FetchNodeAttributes(ctx, ids)
}

func TestRetrieveCommunityInfo_Batches(t *testing.T) {
	var p Partition
	var nodes []Node
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("n%d", i)
		nodes = append(nodes, Node{ID: id})
		p = append(p, Assignment{NodeID: id, CommunityID: fmt.Sprintf("c%d", i%2), Level: 0})
	}
	graph := &batchRecorder{fakeGraph: newFakeGraph(p, nodes, nil)}

	cfg := testConfig()
	cfg.FetchBatchSize = 3
	cfg.FetchConcurrency = 2
	collector := NewInfoCollector(cfg, nil)

	res, err := collector.RetrieveCommunityInfo(context.Background(), graph, p, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Hierarchy.Len())
	assert.Equal(t, 0, res.Persisted)

	require.Len(t, graph.batches, 4)
	seen := 0
	for _, batch := range graph.batches {
		assert.LessOrEqual(t, len(batch), 3)
		seen += len(batch)
	}
	assert.Equal(t, 10, seen)
}

func TestRetrieveCommunityInfo_FetchError(t *testing.T) {
	graph := &batchRecorder{
		fakeGraph: newFakeGraph(abcPartition(), abcNodes(), abcEdges()),
		fetchErr:  stderrors.New("graph offline"),
	}
	collector := NewInfoCollector(testConfig(), nil)

	_, err := collector.RetrieveCommunityInfo(context.Background(), graph, abcPartition(), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph offline")

	records, err := graph.ListCommunityRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRetrieveCommunityInfo_RecordsAndDigests(t *testing.T) {
	graph := newFakeGraph(abcPartition(), abcNodes(), abcEdges())
	collector := NewInfoCollector(testConfig(), nil)
	collector.clock = fixedClock
	ctx := context.Background()

	res, err := collector.RetrieveCommunityInfo(ctx, graph, abcPartition(), true)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Persisted)

	recs := res.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, CommunityKey{ID: "c0"}, recs[0].Key())
	assert.Equal(t, CommunityKey{ID: "c1"}, recs[1].Key())
	assert.Equal(t, CommunityKey{ID: "top", Level: 1}, recs[2].Key())
	assert.Equal(t, []CommunityKey{{ID: "c0"}, {ID: "c1"}}, recs[2].Children)
	assert.Equal(t, fixedClock(), recs[0].CollectedAt)

	// c1 has no internal edges, so its payload lists only the entity.
	assert.Empty(t, recs[1].Edges)
	assert.Equal(t, "Entities:\n- Charlie (dock): Charging dock", recs[1].Text)

	// Digests are stable across runs and differ between communities.
	again, err := collector.RetrieveCommunityInfo(ctx, graph, abcPartition(), false)
	require.NoError(t, err)
	for i, rec := range again.Records() {
		assert.Equal(t, recs[i].Digest, rec.Digest)
		assert.Len(t, rec.Digest, 64)
	}
	assert.NotEqual(t, recs[0].Digest, recs[1].Digest)

	stored, err := graph.ListCommunityRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestRetrieveCommunityInfo_DropsInvalidLevels(t *testing.T) {
	p := append(abcPartition(),
		Assignment{NodeID: "A", CommunityID: "x", Level: 2},
		Assignment{NodeID: "B", CommunityID: "x", Level: 2},
	)
	graph := newFakeGraph(p, abcNodes(), abcEdges())
	collector := NewInfoCollector(testConfig(), nil)

	res, err := collector.RetrieveCommunityInfo(context.Background(), graph, p, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Hierarchy.Levels())
	require.Len(t, res.LevelErrors, 1)
	assert.Equal(t, 2, res.LevelErrors[0].Level)
}

func TestRetrieveCommunityInfo_FatalPartition(t *testing.T) {
	p := Partition{{NodeID: "A", CommunityID: "x", Level: 1}}
	collector := NewInfoCollector(testConfig(), nil)

	_, err := collector.RetrieveCommunityInfo(context.Background(), newFakeGraph(p, nil, nil), p, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAggregation)
	assert.True(t, errors.IsFatal(err))
}

func TestRetrieveCommunityInfo_MissingAttributes(t *testing.T) {
	graph := newFakeGraph(abcPartition(), nil, nil)
	collector := NewInfoCollector(testConfig(), nil)

	res, err := collector.RetrieveCommunityInfo(context.Background(), graph, abcPartition(), false)
	require.NoError(t, err)

	rec, ok := res.Hierarchy.Record(CommunityKey{ID: "c0"})
	require.True(t, ok)
	assert.Equal(t, "Entities:\n- A\n- B", rec.Text)
}
