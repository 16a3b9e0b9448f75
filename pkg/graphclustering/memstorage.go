package graphclustering

import (
	"context"
	"sort"
	"sync"
)

// MemoryCommunityStorage is an in-process CommunityPersister. Records and
// summaries are stored by value; their slices are shared with the caller.
type MemoryCommunityStorage struct {
	mu        sync.RWMutex
	records   map[CommunityKey]CommunityRecord
	summaries map[CommunityKey]CommunitySummary
}

var _ CommunityPersister = (*MemoryCommunityStorage)(nil)

// NewMemoryCommunityStorage creates an empty in-memory persister
func NewMemoryCommunityStorage() *MemoryCommunityStorage {
	return &MemoryCommunityStorage{
		records:   make(map[CommunityKey]CommunityRecord),
		summaries: make(map[CommunityKey]CommunitySummary),
	}
}

func (m *MemoryCommunityStorage) WriteCommunityRecord(_ context.Context, record *CommunityRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.Key()] = *record
	return nil
}

func (m *MemoryCommunityStorage) WriteSummary(_ context.Context, summary *CommunitySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[summary.Key()] = *summary
	return nil
}

func (m *MemoryCommunityStorage) ReadSummary(_ context.Context, key CommunityKey) (*CommunitySummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum, ok := m.summaries[key]
	if !ok {
		return nil, nil
	}
	return &sum, nil
}

func (m *MemoryCommunityStorage) ListCommunityRecords(_ context.Context) ([]*CommunityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*CommunityRecord, 0, len(m.records))
	for _, rec := range m.records {
		rec := rec
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out, nil
}

func (m *MemoryCommunityStorage) ResetCommunities(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[CommunityKey]CommunityRecord)
	m.summaries = make(map[CommunityKey]CommunitySummary)
	return nil
}

// Summaries returns a copy of every stored summary ordered by key
func (m *MemoryCommunityStorage) Summaries() []CommunitySummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CommunitySummary, 0, len(m.summaries))
	for _, s := range m.summaries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}
