package graphclustering

import (
	"context"
)

// GraphReader is the read side of the graph store: the clustering capability
// and batched attribute access.
type GraphReader interface {
	// InvokeClustering runs the named clustering algorithm over the whole
	// graph and returns the flat hierarchical partition.
	InvokeClustering(ctx context.Context, algorithm string, params map[string]any) (Partition, error)

	// FetchNodeAttributes returns the nodes with the given IDs. Unknown IDs
	// are omitted from the result.
	FetchNodeAttributes(ctx context.Context, ids []string) ([]Node, error)

	// FetchEdgeAttributes returns every edge incident to at least one of
	// the given nodes.
	FetchEdgeAttributes(ctx context.Context, nodeIDs []string) ([]Edge, error)
}

// RecordWriter persists community records.
type RecordWriter interface {
	// WriteCommunityRecord replaces any record stored under the same key.
	WriteCommunityRecord(ctx context.Context, record *CommunityRecord) error
}

// SummaryWriter persists community summaries.
type SummaryWriter interface {
	// WriteSummary replaces any summary stored under the same key.
	WriteSummary(ctx context.Context, summary *CommunitySummary) error
}

// GraphStore is everything a community build needs from the graph.
type GraphStore interface {
	GraphReader
	RecordWriter
	SummaryWriter
}

// SummaryReader is implemented by stores that can read summaries back.
// ReadSummary returns nil, nil when no summary is stored under key.
type SummaryReader interface {
	ReadSummary(ctx context.Context, key CommunityKey) (*CommunitySummary, error)
}

// RecordReader is implemented by stores that can list persisted records.
type RecordReader interface {
	ListCommunityRecords(ctx context.Context) ([]*CommunityRecord, error)
}

// Resetter is implemented by stores that can drop all community state
// before a rebuild.
type Resetter interface {
	ResetCommunities(ctx context.Context) error
}

// CommunityPersister is a complete persistence backend for communities.
type CommunityPersister interface {
	RecordWriter
	SummaryWriter
	SummaryReader
	RecordReader
	Resetter
}

// TextGenerator turns a prompt plus optional context into text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt, contextText string) (string, error)
}

// TextGeneratorFunc adapts a function to TextGenerator.
type TextGeneratorFunc func(ctx context.Context, prompt, contextText string) (string, error)

// Generate calls f.
func (f TextGeneratorFunc) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	return f(ctx, prompt, contextText)
}

// composedStore joins a graph reader with a separate persistence backend.
type composedStore struct {
	GraphReader
	persister CommunityPersister
}

var (
	_ GraphStore         = (*composedStore)(nil)
	_ CommunityPersister = (*composedStore)(nil)
)

// NewGraphStore combines a graph reader with a persistence backend. The
// result also implements the optional reader and reset interfaces.
func NewGraphStore(reader GraphReader, persister CommunityPersister) GraphStore {
	return &composedStore{GraphReader: reader, persister: persister}
}

func (c *composedStore) WriteCommunityRecord(ctx context.Context, record *CommunityRecord) error {
	return c.persister.WriteCommunityRecord(ctx, record)
}

func (c *composedStore) WriteSummary(ctx context.Context, summary *CommunitySummary) error {
	return c.persister.WriteSummary(ctx, summary)
}

func (c *composedStore) ReadSummary(ctx context.Context, key CommunityKey) (*CommunitySummary, error) {
	return c.persister.ReadSummary(ctx, key)
}

func (c *composedStore) ListCommunityRecords(ctx context.Context) ([]*CommunityRecord, error) {
	return c.persister.ListCommunityRecords(ctx)
}

func (c *composedStore) ResetCommunities(ctx context.Context) error {
	return c.persister.ResetCommunities(ctx)
}
