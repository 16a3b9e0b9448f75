package memgraph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semcommunity/errors"
	gc "github.com/c360/semcommunity/pkg/graphclustering"
	"github.com/c360/semcommunity/testutil"
)

func loadTestGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := Load(strings.NewReader(testutil.TestGraphYAML))
	require.NoError(t, err)
	return g
}

func membersByCommunity(p gc.Partition, level int) map[string][]string {
	out := make(map[string][]string)
	for _, a := range p {
		if a.Level == level {
			out[a.CommunityID] = append(out[a.CommunityID], a.NodeID)
		}
	}
	return out
}

func TestLoad_TestGraph(t *testing.T) {
	g := loadTestGraph(t)

	assert.Equal(t, 6, g.NodeCount())
	assert.Equal(t, 7, g.EdgeCount())

	nodes, err := g.FetchNodeAttributes(context.Background(), []string{"d1", "missing"})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "Drone Alpha", nodes[0].Name)
	assert.Equal(t, "navigation", nodes[0].Properties["capability"])
}

func TestLoad_RejectsUnknownEndpoint(t *testing.T) {
	_, err := Load(strings.NewReader(`
nodes:
  - id: a
edges:
  - {id: e1, source: a, target: b}
`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("nodes:\n  - id: a\n    colour: red\n"))
	require.Error(t, err)
}

func TestLoadFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "nodes": [{"id": "a", "name": "A"}, {"id": "b", "name": "B"}],
  "edges": [{"id": "ab", "source": "a", "target": "b"}]
}`), 0o600))

	g, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.EdgeCount())
}

func TestFetchEdgeAttributes_IncidentAndDeduplicated(t *testing.T) {
	g := loadTestGraph(t)

	edges, err := g.FetchEdgeAttributes(context.Background(), []string{"d1", "d2"})
	require.NoError(t, err)

	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.ID
	}
	assert.ElementsMatch(t, []string{"e-d1-d2", "e-d1-d3", "e-d2-d3", "e-d1-s1"}, ids)
}

func TestInvokeClustering_TwoGroups(t *testing.T) {
	g := loadTestGraph(t)

	p, err := g.InvokeClustering(context.Background(), gc.AlgorithmHierarchicalLeiden,
		map[string]any{gc.ParamMaxHierarchicalLevel: 3})
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	level0 := membersByCommunity(p, 0)
	assert.Equal(t, map[string][]string{
		"comm-0-d2": {"d1", "d2", "d3"},
		"comm-0-s2": {"s1", "s2", "s3"},
	}, level0)

	level1 := membersByCommunity(p, 1)
	require.Len(t, level1, 1)
	for _, members := range level1 {
		assert.ElementsMatch(t, testutil.TestGraphNodeIDs, members)
	}

	// Nothing left to merge above level 1.
	assert.Empty(t, membersByCommunity(p, 2))
}

func TestInvokeClustering_MaxLevelIsHighestIndex(t *testing.T) {
	g := loadTestGraph(t)

	p, err := g.InvokeClustering(context.Background(), AlgorithmLabelPropagation,
		map[string]any{gc.ParamMaxHierarchicalLevel: float64(1)})
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	assert.Len(t, membersByCommunity(p, 0), 2)
	level1 := membersByCommunity(p, 1)
	require.Len(t, level1, 1)
	for _, members := range level1 {
		assert.ElementsMatch(t, testutil.TestGraphNodeIDs, members)
	}
	assert.Len(t, p, 12)

	p, err = g.InvokeClustering(context.Background(), AlgorithmLabelPropagation,
		map[string]any{gc.ParamMaxHierarchicalLevel: 0})
	require.NoError(t, err)
	for _, a := range p {
		assert.Equal(t, 0, a.Level)
	}
	assert.Len(t, p, 6)
}

func TestInvokeClustering_Deterministic(t *testing.T) {
	g := New()
	for i := 0; i < 40; i++ {
		require.NoError(t, g.AddNode(gc.Node{ID: fmt.Sprintf("n%02d", i)}))
	}
	for i := 0; i < 40; i++ {
		require.NoError(t, g.AddEdge(gc.Edge{Source: fmt.Sprintf("n%02d", i), Target: fmt.Sprintf("n%02d", (i+1)%40)}))
		if i%4 == 0 {
			require.NoError(t, g.AddEdge(gc.Edge{Source: fmt.Sprintf("n%02d", i), Target: fmt.Sprintf("n%02d", (i+2)%40)}))
		}
	}

	first, err := g.InvokeClustering(context.Background(), gc.AlgorithmHierarchicalLeiden, nil)
	require.NoError(t, err)
	second, err := g.InvokeClustering(context.Background(), gc.AlgorithmHierarchicalLeiden, nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NoError(t, first.Validate())
}

func TestInvokeClustering_EmptyGraph(t *testing.T) {
	p, err := New().InvokeClustering(context.Background(), gc.AlgorithmHierarchicalLeiden, nil)
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestInvokeClustering_UnsupportedAlgorithm(t *testing.T) {
	_, err := loadTestGraph(t).InvokeClustering(context.Background(), "louvain", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	assert.True(t, errors.IsInvalid(err))
}

func TestInvokeClustering_InvalidLevelParam(t *testing.T) {
	_, err := loadTestGraph(t).InvokeClustering(context.Background(), gc.AlgorithmHierarchicalLeiden,
		map[string]any{gc.ParamMaxHierarchicalLevel: "three"})
	require.Error(t, err)
}

func TestInvokeClustering_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loadTestGraph(t).InvokeClustering(ctx, gc.AlgorithmHierarchicalLeiden, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAddEdge_Validation(t *testing.T) {
	g := New()
	require.Error(t, g.AddNode(gc.Node{}))
	require.NoError(t, g.AddNode(gc.Node{ID: "a"}))

	err := g.AddEdge(gc.Edge{Source: "a", Target: "b"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	// Replacing an edge keeps the count.
	require.NoError(t, g.AddNode(gc.Node{ID: "b"}))
	require.NoError(t, g.AddEdge(gc.Edge{ID: "ab", Source: "a", Target: "b", Weight: 1}))
	require.NoError(t, g.AddEdge(gc.Edge{ID: "ab", Source: "a", Target: "b", Weight: 2}))
	assert.Equal(t, 1, g.EdgeCount())
}
