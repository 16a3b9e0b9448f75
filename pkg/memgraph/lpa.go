package memgraph

import (
	"context"
	"fmt"
	"sort"

	"github.com/c360/semcommunity/errors"
	gc "github.com/c360/semcommunity/pkg/graphclustering"
)

const (
	// DefaultMaxIterations is the default maximum iteration count
	DefaultMaxIterations = 100

	// MaxIterationsLimit is the maximum allowed iteration count
	MaxIterationsLimit = 10000

	// DefaultMaxLevel is the default highest level index
	DefaultMaxLevel = 3

	// MaxLevelLimit caps the highest level index
	MaxLevelLimit = 10
)

// clusterHierarchy builds levels 0 through maxLevel. Level 0 runs label
// propagation over the nodes; each higher level runs it over the graph of
// the previous level's communities, so communities only ever merge. The
// hierarchy stops early once a level merges nothing. Community IDs are
// "comm-{level}-{label}" where the label is a member node ID.
func clusterHierarchy(ctx context.Context, ids []string, adj map[string][]neighbor, maxLevel, maxIter int) (gc.Partition, error) {
	if len(ids) == 0 {
		return gc.Partition{}, nil
	}

	labels, err := propagate(ctx, ids, adj, maxIter)
	if err != nil {
		return nil, err
	}

	partition := make(gc.Partition, 0, len(ids)*(maxLevel+1))
	partition = appendLevel(partition, ids, labels, 0)

	current := labels
	for level := 1; level <= maxLevel; level++ {
		superIDs, superAdj := coarsen(ids, adj, current)
		superLabels, err := propagate(ctx, superIDs, superAdj, maxIter)
		if err != nil {
			return nil, err
		}
		if countDistinct(superLabels) == len(superIDs) {
			break
		}

		next := make(map[string]string, len(ids))
		for _, id := range ids {
			next[id] = superLabels[current[id]]
		}
		partition = appendLevel(partition, ids, next, level)
		current = next
	}

	return partition, nil
}

func appendLevel(p gc.Partition, ids []string, labels map[string]string, level int) gc.Partition {
	for _, id := range ids {
		p = append(p, gc.Assignment{
			NodeID:      id,
			CommunityID: fmt.Sprintf("comm-%d-%s", level, labels[id]),
			Level:       level,
		})
	}
	return p
}

// coarsen builds the community graph: one node per label, edge weights
// summed over the edges crossing between communities.
func coarsen(ids []string, adj map[string][]neighbor, labels map[string]string) ([]string, map[string][]neighbor) {
	weights := make(map[string]map[string]float64)
	distinct := make(map[string]struct{})
	for _, id := range ids {
		from := labels[id]
		distinct[from] = struct{}{}
		for _, nb := range adj[id] {
			to := labels[nb.id]
			if to == from {
				continue
			}
			if weights[from] == nil {
				weights[from] = make(map[string]float64)
			}
			weights[from][to] += nb.weight
		}
	}

	superIDs := make([]string, 0, len(distinct))
	for label := range distinct {
		superIDs = append(superIDs, label)
	}
	sort.Strings(superIDs)
	return superIDs, sortedNeighbors(weights)
}

// propagate runs asynchronous label propagation in ID order. A node adopts
// the label with the highest summed edge weight among its neighbors,
// keeping its own label on a tie and otherwise preferring the smallest
// label, which makes the result deterministic.
func propagate(ctx context.Context, ids []string, adj map[string][]neighbor, maxIter int) (map[string]string, error) {
	labels := make(map[string]string, len(ids))
	for _, id := range ids {
		labels[id] = id
	}

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.WrapTransient(err, "Graph", "propagate", "context cancelled")
		}

		changed := false
		for _, id := range ids {
			neighbors := adj[id]
			if len(neighbors) == 0 {
				continue
			}

			votes := make(map[string]float64, len(neighbors))
			order := make([]string, 0, len(neighbors))
			for _, nb := range neighbors {
				label := labels[nb.id]
				if _, ok := votes[label]; !ok {
					order = append(order, label)
				}
				votes[label] += nb.weight
			}

			maxVotes := 0.0
			for _, label := range order {
				if votes[label] > maxVotes {
					maxVotes = votes[label]
				}
			}
			if votes[labels[id]] == maxVotes {
				continue
			}

			best := ""
			for _, label := range order {
				if votes[label] == maxVotes && (best == "" || label < best) {
					best = label
				}
			}
			labels[id] = best
			changed = true
		}

		if !changed {
			break
		}
	}

	return labels, nil
}

func countDistinct(labels map[string]string) int {
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	return len(seen)
}
