package graphclustering

import (
	"fmt"
	"time"
)

const (
	// AlgorithmHierarchicalLeiden is the clustering algorithm requested by BuildCommunities
	AlgorithmHierarchicalLeiden = "hierarchical_leiden"

	// ParamMaxHierarchicalLevel is the clustering parameter naming the highest level index; levels run 0 through it
	ParamMaxHierarchicalLevel = "max_hierarchical_level"

	// AnyLevel selects communities at every level
	AnyLevel = -1
)

// Assignment places one node in one community at one hierarchy level.
type Assignment struct {
	NodeID      string `json:"node_id" yaml:"node_id"`
	CommunityID string `json:"community_id" yaml:"community_id"`
	Level       int    `json:"level" yaml:"level"`
}

// Partition is the flat output of a hierarchical clustering run.
// Level 0 is the finest granularity.
type Partition []Assignment

// CommunityKey identifies a community. Community IDs are only unique within
// a level, so the level is part of the key.
type CommunityKey struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
}

// String renders the key as "level/id", the form used for cache keys.
func (k CommunityKey) String() string {
	return fmt.Sprintf("%d/%s", k.Level, k.ID)
}

// Less orders keys by level ascending, then ID.
func (k CommunityKey) Less(o CommunityKey) bool {
	if k.Level != o.Level {
		return k.Level < o.Level
	}
	return k.ID < o.ID
}

// Node is a graph node with the attributes used to describe it.
type Node struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Type        string         `json:"type,omitempty" yaml:"type,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Edge is a relationship between two nodes. Edges are treated as undirected
// when computing community membership and centrality.
type Edge struct {
	ID          string  `json:"id" yaml:"id"`
	Source      string  `json:"source" yaml:"source"`
	Target      string  `json:"target" yaml:"target"`
	Type        string  `json:"type,omitempty" yaml:"type,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Weight      float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// EdgeID returns the edge's ID, deriving a stable one from its endpoints
// and type when the graph did not assign one.
func (e Edge) EdgeID() string {
	if e.ID != "" {
		return e.ID
	}
	return fmt.Sprintf("%s-[%s]->%s", e.Source, e.Type, e.Target)
}

// CommunityRecord is the aggregated description of one community, produced
// by the InfoCollector and consumed by the Summarizer. Records are immutable
// once collected.
type CommunityRecord struct {
	ID      string   `json:"id"`
	Level   int      `json:"level"`
	Members []string `json:"members"`
	Edges   []string `json:"edges"`

	// Text is the bounded textual payload describing members and relationships
	Text string `json:"text"`

	// Truncated is set when members or relationships were left out of Text
	Truncated bool `json:"truncated,omitempty"`

	// Parent is the enclosing community at Level+1, nil at the top level
	Parent *CommunityKey `json:"parent,omitempty"`

	// Children are the communities at Level-1 nested in this one
	Children []CommunityKey `json:"children,omitempty"`

	// Digest is the hex BLAKE3 hash of Text
	Digest string `json:"digest"`

	CollectedAt time.Time `json:"collected_at"`
}

// Key returns the record's community key.
func (r *CommunityRecord) Key() CommunityKey {
	return CommunityKey{ID: r.ID, Level: r.Level}
}

// CommunitySummary is the generated natural-language summary of a community.
type CommunitySummary struct {
	CommunityID string    `json:"community_id"`
	Level       int       `json:"level"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`

	// SourceDigest is the Digest of the record the summary was generated from
	SourceDigest string `json:"source_digest"`

	// ChildrenUsed lists the child summaries supplied as context
	ChildrenUsed []CommunityKey `json:"children_used,omitempty"`
}

// Key returns the summary's community key.
func (s *CommunitySummary) Key() CommunityKey {
	return CommunityKey{ID: s.CommunityID, Level: s.Level}
}
