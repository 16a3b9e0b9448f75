// Package memgraph provides an in-memory graph that implements the
// graphclustering.GraphReader capability, including a deterministic
// hierarchical label propagation clustering.
package memgraph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/c360/semcommunity/errors"
	gc "github.com/c360/semcommunity/pkg/graphclustering"
)

// AlgorithmLabelPropagation names the clustering algorithm under its own name.
// The graph also serves gc.AlgorithmHierarchicalLeiden with it.
const AlgorithmLabelPropagation = "label_propagation"

// ErrUnsupportedAlgorithm is returned for clustering algorithms the graph does not implement
var ErrUnsupportedAlgorithm = fmt.Errorf("%w: unsupported clustering algorithm", errors.ErrInvalidConfig)

type neighbor struct {
	id     string
	weight float64
}

// Graph is a thread-safe, undirected, weighted in-memory graph.
type Graph struct {
	mu       sync.RWMutex
	nodes    map[string]gc.Node
	edges    []gc.Edge
	edgeIDs  map[string]int
	incident map[string][]int

	maxIterations int
}

var _ gc.GraphReader = (*Graph)(nil)

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:         make(map[string]gc.Node),
		edgeIDs:       make(map[string]int),
		incident:      make(map[string][]int),
		maxIterations: DefaultMaxIterations,
	}
}

// WithMaxIterations bounds label propagation iterations per level.
func (g *Graph) WithMaxIterations(max int) *Graph {
	if max <= 0 {
		max = DefaultMaxIterations
	}
	if max > MaxIterationsLimit {
		max = MaxIterationsLimit
	}
	g.mu.Lock()
	g.maxIterations = max
	g.mu.Unlock()
	return g
}

// AddNode adds or replaces a node.
func (g *Graph) AddNode(n gc.Node) error {
	if n.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Graph", "AddNode", "node id is empty")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[n.ID] = n
	return nil
}

// AddEdge adds an edge between two existing nodes. An edge with the ID of
// an existing edge replaces it.
func (g *Graph) AddEdge(e gc.Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[e.Source]; !ok {
		return errors.WrapInvalid(fmt.Errorf("%w: unknown source node %q", errors.ErrInvalidData, e.Source), "Graph", "AddEdge", "add edge")
	}
	if _, ok := g.nodes[e.Target]; !ok {
		return errors.WrapInvalid(fmt.Errorf("%w: unknown target node %q", errors.ErrInvalidData, e.Target), "Graph", "AddEdge", "add edge")
	}

	id := e.EdgeID()
	if i, ok := g.edgeIDs[id]; ok {
		g.edges[i] = e
		return nil
	}
	g.edgeIDs[id] = len(g.edges)
	g.incident[e.Source] = append(g.incident[e.Source], len(g.edges))
	if e.Target != e.Source {
		g.incident[e.Target] = append(g.incident[e.Target], len(g.edges))
	}
	g.edges = append(g.edges, e)
	return nil
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// FetchNodeAttributes returns the known nodes among ids, in ids order.
func (g *Graph) FetchNodeAttributes(ctx context.Context, ids []string) ([]gc.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]gc.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// FetchEdgeAttributes returns each edge incident to any of nodeIDs once,
// in insertion order.
func (g *Graph) FetchEdgeAttributes(ctx context.Context, nodeIDs []string) ([]gc.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[int]struct{})
	idx := make([]int, 0)
	for _, id := range nodeIDs {
		for _, i := range g.incident[id] {
			if _, dup := seen[i]; dup {
				continue
			}
			seen[i] = struct{}{}
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)

	out := make([]gc.Edge, len(idx))
	for j, i := range idx {
		out[j] = g.edges[i]
	}
	return out, nil
}

// InvokeClustering runs hierarchical label propagation. It serves both
// AlgorithmLabelPropagation and gc.AlgorithmHierarchicalLeiden; the
// gc.ParamMaxHierarchicalLevel parameter is the highest level index produced,
// so levels run 0 through that value.
func (g *Graph) InvokeClustering(ctx context.Context, algorithm string, params map[string]any) (gc.Partition, error) {
	switch algorithm {
	case gc.AlgorithmHierarchicalLeiden, AlgorithmLabelPropagation:
	default:
		return nil, errors.WrapInvalid(fmt.Errorf("%w %q", ErrUnsupportedAlgorithm, algorithm), "Graph", "InvokeClustering", "select algorithm")
	}

	maxLevel := DefaultMaxLevel
	if v, ok := params[gc.ParamMaxHierarchicalLevel]; ok {
		n, err := toInt(v)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Graph", "InvokeClustering", "parse "+gc.ParamMaxHierarchicalLevel)
		}
		maxLevel = n
	}
	if maxLevel < 0 {
		maxLevel = DefaultMaxLevel
	}
	if maxLevel > MaxLevelLimit {
		maxLevel = MaxLevelLimit
	}

	g.mu.RLock()
	ids, adj := g.adjacency()
	maxIter := g.maxIterations
	g.mu.RUnlock()

	return clusterHierarchy(ctx, ids, adj, maxLevel, maxIter)
}

// adjacency returns sorted node IDs and, per node, neighbors sorted by ID
// with parallel edge weights summed. Self loops are ignored.
func (g *Graph) adjacency() ([]string, map[string][]neighbor) {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	weights := make(map[string]map[string]float64, len(ids))
	add := func(a, b string, w float64) {
		if weights[a] == nil {
			weights[a] = make(map[string]float64)
		}
		weights[a][b] += w
	}
	for _, e := range g.edges {
		if e.Source == e.Target {
			continue
		}
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		add(e.Source, e.Target, w)
		add(e.Target, e.Source, w)
	}

	return ids, sortedNeighbors(weights)
}

func sortedNeighbors(weights map[string]map[string]float64) map[string][]neighbor {
	adj := make(map[string][]neighbor, len(weights))
	for id, nbs := range weights {
		list := make([]neighbor, 0, len(nbs))
		for nb, w := range nbs {
			list = append(list, neighbor{id: nb, weight: w})
		}
		sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })
		adj[id] = list
	}
	return adj
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %v is not an integer", errors.ErrInvalidData, v)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", errors.ErrInvalidData, v)
	}
}
