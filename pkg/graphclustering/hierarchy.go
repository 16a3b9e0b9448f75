package graphclustering

import (
	"fmt"
	"sort"
)

// Hierarchy holds the records of one build in level-then-ID order with
// parent/child links kept as indices into the record slice.
type Hierarchy struct {
	records  []*CommunityRecord
	index    map[CommunityKey]int
	parent   []int
	children [][]int
	levels   int
}

// NewHierarchy links records by their Parent and Children keys. Every
// referenced key must be present and the links must agree in both
// directions.
func NewHierarchy(records []*CommunityRecord) (*Hierarchy, error) {
	sorted := make([]*CommunityRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Key().Less(sorted[j].Key())
	})

	h := &Hierarchy{
		records:  sorted,
		index:    make(map[CommunityKey]int, len(sorted)),
		parent:   make([]int, len(sorted)),
		children: make([][]int, len(sorted)),
	}
	for i, rec := range sorted {
		if _, dup := h.index[rec.Key()]; dup {
			return nil, fmt.Errorf("%w: duplicate record %s", ErrAggregation, rec.Key())
		}
		h.index[rec.Key()] = i
		h.parent[i] = -1
		if rec.Level+1 > h.levels {
			h.levels = rec.Level + 1
		}
	}

	for i, rec := range sorted {
		if rec.Parent != nil {
			p, ok := h.index[*rec.Parent]
			if !ok || rec.Parent.Level != rec.Level+1 {
				return nil, fmt.Errorf("%w: record %s has unknown parent %s", ErrAggregation, rec.Key(), *rec.Parent)
			}
			h.parent[i] = p
		}
		for _, ck := range rec.Children {
			c, ok := h.index[ck]
			if !ok || ck.Level != rec.Level-1 {
				return nil, fmt.Errorf("%w: record %s has unknown child %s", ErrAggregation, rec.Key(), ck)
			}
			h.children[i] = append(h.children[i], c)
		}
	}

	listed := 0
	for i, kids := range h.children {
		for _, c := range kids {
			if h.parent[c] != i {
				return nil, fmt.Errorf("%w: record %s lists child %s whose parent differs",
					ErrAggregation, h.records[i].Key(), h.records[c].Key())
			}
			listed++
		}
	}
	withParent := 0
	for _, p := range h.parent {
		if p >= 0 {
			withParent++
		}
	}
	if listed != withParent {
		return nil, fmt.Errorf("%w: %d records name a parent but only %d are listed as children",
			ErrAggregation, withParent, listed)
	}

	return h, nil
}

// Len returns the number of records.
func (h *Hierarchy) Len() int {
	if h == nil {
		return 0
	}
	return len(h.records)
}

// Levels returns the number of levels present.
func (h *Hierarchy) Levels() int {
	if h == nil {
		return 0
	}
	return h.levels
}

// Records returns all records ordered by level ascending, then ID.
func (h *Hierarchy) Records() []*CommunityRecord {
	if h == nil {
		return nil
	}
	return h.records
}

// Record returns the record stored under key.
func (h *Hierarchy) Record(key CommunityKey) (*CommunityRecord, bool) {
	if h == nil {
		return nil, false
	}
	i, ok := h.index[key]
	if !ok {
		return nil, false
	}
	return h.records[i], true
}

// Keys returns the keys at level in ID order, or every key for AnyLevel.
func (h *Hierarchy) Keys(level int) []CommunityKey {
	if h == nil {
		return nil
	}
	keys := make([]CommunityKey, 0, len(h.records))
	for _, rec := range h.records {
		if level == AnyLevel || rec.Level == level {
			keys = append(keys, rec.Key())
		}
	}
	return keys
}

// Children returns the child records of key in ID order.
func (h *Hierarchy) Children(key CommunityKey) []*CommunityRecord {
	if h == nil {
		return nil
	}
	i, ok := h.index[key]
	if !ok {
		return nil
	}
	out := make([]*CommunityRecord, len(h.children[i]))
	for j, c := range h.children[i] {
		out[j] = h.records[c]
	}
	return out
}

// Parent returns the parent record of key.
func (h *Hierarchy) Parent(key CommunityKey) (*CommunityRecord, bool) {
	if h == nil {
		return nil, false
	}
	i, ok := h.index[key]
	if !ok || h.parent[i] < 0 {
		return nil, false
	}
	return h.records[h.parent[i]], true
}
