package graphclustering

import (
	"math"
	"sort"
)

// PageRankConfig holds configuration for PageRank computation
type PageRankConfig struct {
	// Iterations is the maximum number of iterations (default: 20)
	Iterations int

	// DampingFactor is the probability of continuing the random walk (default: 0.85)
	DampingFactor float64

	// Tolerance is the convergence threshold (default: 1e-6)
	Tolerance float64
}

// DefaultPageRankConfig returns the standard PageRank configuration
func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{
		Iterations:    20,
		DampingFactor: 0.85,
		Tolerance:     1e-6,
	}
}

// PageRankResult holds the results of PageRank computation
type PageRankResult struct {
	// Scores maps node ID to PageRank score; scores sum to 1
	Scores map[string]float64

	// Ranked contains node IDs sorted by score descending, ties by ID
	Ranked []string

	// Iterations is the number of iterations run
	Iterations int

	// Converged indicates whether the scores settled before the iteration limit
	Converged bool
}

// ComputePageRank ranks nodes of the subgraph induced by nodeIDs. Edges are
// undirected and weighted; edges with an endpoint outside nodeIDs are
// ignored, and a zero weight counts as 1.
func ComputePageRank(nodeIDs []string, edges []Edge, config PageRankConfig) *PageRankResult {
	n := len(nodeIDs)
	if n == 0 {
		return &PageRankResult{Scores: map[string]float64{}, Ranked: []string{}, Converged: true}
	}

	nodeIndex := make(map[string]int, n)
	for i, id := range nodeIDs {
		nodeIndex[id] = i
	}

	type link struct {
		to     int
		weight float64
	}
	adj := make([][]link, n)
	strength := make([]float64, n)
	for _, e := range edges {
		s, okS := nodeIndex[e.Source]
		t, okT := nodeIndex[e.Target]
		if !okS || !okT || s == t {
			continue
		}
		w := e.Weight
		if w <= 0 {
			w = 1
		}
		adj[s] = append(adj[s], link{t, w})
		adj[t] = append(adj[t], link{s, w})
		strength[s] += w
		strength[t] += w
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0 / float64(n)
	}

	d := config.DampingFactor
	teleport := (1.0 - d) / float64(n)
	newScores := make([]float64, n)
	converged := false
	iterations := 0

	for iterations < config.Iterations {
		iterations++

		// Mass held by isolated nodes is spread uniformly.
		dangling := 0.0
		for i := range scores {
			if strength[i] == 0 {
				dangling += scores[i]
			}
		}
		for i := range newScores {
			newScores[i] = teleport + d*dangling/float64(n)
		}
		for i, links := range adj {
			for _, l := range links {
				newScores[l.to] += d * scores[i] * l.weight / strength[i]
			}
		}

		maxDiff := 0.0
		for i := range scores {
			maxDiff = math.Max(maxDiff, math.Abs(newScores[i]-scores[i]))
		}
		scores, newScores = newScores, scores
		if maxDiff < config.Tolerance {
			converged = true
			break
		}
	}

	scoreMap := make(map[string]float64, n)
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	for i, id := range nodeIDs {
		if sum > 0 {
			scoreMap[id] = scores[i] / sum
		}
	}

	return &PageRankResult{
		Scores:     scoreMap,
		Ranked:     rankByScore(nodeIDs, scoreMap),
		Iterations: iterations,
		Converged:  converged,
	}
}

// DegreeCentrality counts, for every node in nodeIDs, the edges of the
// induced subgraph touching it.
func DegreeCentrality(nodeIDs []string, edges []Edge) map[string]float64 {
	scores := make(map[string]float64, len(nodeIDs))
	for _, id := range nodeIDs {
		scores[id] = 0
	}
	for _, e := range edges {
		_, okS := scores[e.Source]
		_, okT := scores[e.Target]
		if !okS || !okT {
			continue
		}
		scores[e.Source]++
		if e.Target != e.Source {
			scores[e.Target]++
		}
	}
	return scores
}

// rankByScore sorts ids by score descending with ties broken by ID.
func rankByScore(ids []string, scores map[string]float64) []string {
	ranked := make([]string, len(ids))
	copy(ranked, ids)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i]], scores[ranked[j]]
		if si != sj {
			return si > sj
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}
