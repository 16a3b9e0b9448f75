package graphclustering

import (
	"fmt"
	"sort"
)

// partitionLevel is one validated level of a partition.
type partitionLevel struct {
	// members maps community ID to its sorted node IDs
	members map[string][]string

	// community maps node ID to its community ID
	community map[string]string
}

// PartitionAnalysis is the validated, grouped view of a Partition.
type PartitionAnalysis struct {
	levels []partitionLevel

	// nodes holds the sorted level-0 node IDs
	nodes []string

	// parents maps each community below the top level to its enclosing community
	parents map[CommunityKey]CommunityKey

	// LevelErrors lists invariant violations that truncated the hierarchy.
	// Levels at and above the first violation are dropped.
	LevelErrors []*AggregationError
}

// Levels returns the number of usable levels.
func (a *PartitionAnalysis) Levels() int {
	return len(a.levels)
}

// Nodes returns the sorted IDs of every partitioned node.
func (a *PartitionAnalysis) Nodes() []string {
	return a.nodes
}

// Communities returns the sorted community IDs at level.
func (a *PartitionAnalysis) Communities(level int) []string {
	if level < 0 || level >= len(a.levels) {
		return nil
	}
	ids := make([]string, 0, len(a.levels[level].members))
	for id := range a.levels[level].members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Members returns the sorted node IDs of a community.
func (a *PartitionAnalysis) Members(key CommunityKey) []string {
	if key.Level < 0 || key.Level >= len(a.levels) {
		return nil
	}
	return a.levels[key.Level].members[key.ID]
}

// Parent returns the community enclosing key one level up.
func (a *PartitionAnalysis) Parent(key CommunityKey) (CommunityKey, bool) {
	p, ok := a.parents[key]
	return p, ok
}

// Analyze groups the partition by (community, level) and checks the
// hierarchy invariants: contiguous levels from 0, full node coverage at
// every level, and coarsening (members of one community share a community
// one level up). A violation at level L>0 truncates the hierarchy below L
// and is reported in LevelErrors. A partition whose level 0 is unusable
// returns a fatal AggregationError.
func (p Partition) Analyze() (*PartitionAnalysis, error) {
	a := &PartitionAnalysis{parents: make(map[CommunityKey]CommunityKey)}
	if len(p) == 0 {
		return a, nil
	}

	byLevel := make(map[int]map[string]string)
	conflicts := make(map[int]*AggregationError)
	maxLevel := 0
	for _, asg := range p {
		if asg.Level < 0 {
			return nil, &AggregationError{Level: asg.Level, CommunityID: asg.CommunityID, NodeID: asg.NodeID, Reason: "negative level"}
		}
		if asg.Level > maxLevel {
			maxLevel = asg.Level
		}
		if asg.NodeID == "" || asg.CommunityID == "" {
			if asg.Level == 0 {
				return nil, &AggregationError{Level: 0, CommunityID: asg.CommunityID, NodeID: asg.NodeID, Reason: "empty node or community id"}
			}
			if conflicts[asg.Level] == nil {
				conflicts[asg.Level] = &AggregationError{Level: asg.Level, CommunityID: asg.CommunityID, NodeID: asg.NodeID, Reason: "empty node or community id"}
			}
			continue
		}

		nodes := byLevel[asg.Level]
		if nodes == nil {
			nodes = make(map[string]string)
			byLevel[asg.Level] = nodes
		}
		if prev, ok := nodes[asg.NodeID]; ok && prev != asg.CommunityID {
			err := &AggregationError{
				Level:       asg.Level,
				CommunityID: asg.CommunityID,
				NodeID:      asg.NodeID,
				Reason:      fmt.Sprintf("node assigned to both %q and %q", prev, asg.CommunityID),
			}
			if asg.Level == 0 {
				return nil, err
			}
			if conflicts[asg.Level] == nil {
				conflicts[asg.Level] = err
			}
			continue
		}
		nodes[asg.NodeID] = asg.CommunityID
	}

	base, ok := byLevel[0]
	if !ok {
		return nil, &AggregationError{Level: 0, Reason: "partition has no level 0"}
	}
	a.nodes = make([]string, 0, len(base))
	for node := range base {
		a.nodes = append(a.nodes, node)
	}
	sort.Strings(a.nodes)
	a.levels = append(a.levels, groupLevel(base))

	for level := 1; level <= maxLevel; level++ {
		if err := conflicts[level]; err != nil {
			a.LevelErrors = append(a.LevelErrors, err)
			break
		}
		assigned, ok := byLevel[level]
		if !ok {
			a.LevelErrors = append(a.LevelErrors, &AggregationError{Level: level, Reason: "level missing from partition"})
			break
		}
		if err := checkCoverage(level, a.nodes, assigned); err != nil {
			a.LevelErrors = append(a.LevelErrors, err)
			break
		}

		grouped := groupLevel(assigned)
		parents, err := linkParents(level, a.levels[level-1], assigned)
		if err != nil {
			a.LevelErrors = append(a.LevelErrors, err)
			break
		}
		for child, parent := range parents {
			a.parents[child] = parent
		}
		a.levels = append(a.levels, grouped)
	}

	return a, nil
}

// Validate reports the first invariant violation in the partition, or nil.
func (p Partition) Validate() error {
	a, err := p.Analyze()
	if err != nil {
		return err
	}
	if len(a.LevelErrors) > 0 {
		return a.LevelErrors[0]
	}
	return nil
}

func groupLevel(assigned map[string]string) partitionLevel {
	pl := partitionLevel{
		members:   make(map[string][]string),
		community: assigned,
	}
	for node, comm := range assigned {
		pl.members[comm] = append(pl.members[comm], node)
	}
	for _, members := range pl.members {
		sort.Strings(members)
	}
	return pl
}

func checkCoverage(level int, nodes []string, assigned map[string]string) *AggregationError {
	for _, node := range nodes {
		if _, ok := assigned[node]; !ok {
			return &AggregationError{Level: level, NodeID: node, Reason: "node missing from level"}
		}
	}
	if len(assigned) != len(nodes) {
		extra := make([]string, 0, len(assigned)-len(nodes))
		base := make(map[string]struct{}, len(nodes))
		for _, n := range nodes {
			base[n] = struct{}{}
		}
		for node := range assigned {
			if _, ok := base[node]; !ok {
				extra = append(extra, node)
			}
		}
		sort.Strings(extra)
		return &AggregationError{Level: level, NodeID: extra[0], Reason: "node absent from level 0"}
	}
	return nil
}

// linkParents maps every community of the level below to the single
// community at level containing all of its members.
func linkParents(level int, below partitionLevel, assigned map[string]string) (map[CommunityKey]CommunityKey, *AggregationError) {
	ids := make([]string, 0, len(below.members))
	for id := range below.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parents := make(map[CommunityKey]CommunityKey, len(ids))
	for _, id := range ids {
		members := below.members[id]
		parent := assigned[members[0]]
		for _, node := range members[1:] {
			if assigned[node] != parent {
				return nil, &AggregationError{
					Level:       level,
					CommunityID: id,
					NodeID:      node,
					Reason:      fmt.Sprintf("community at level %d split across %q and %q", level-1, parent, assigned[node]),
				}
			}
		}
		parents[CommunityKey{ID: id, Level: level - 1}] = CommunityKey{ID: parent, Level: level}
	}
	return parents, nil
}
