package sqlitestore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semcommunity/errors"
	gc "github.com/c360/semcommunity/pkg/graphclustering"
	"github.com/c360/semcommunity/pkg/graphclustering/persistertest"
	"github.com/c360/semcommunity/pkg/memgraph"
	"github.com/c360/semcommunity/testutil"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func TestStore_Conformance(t *testing.T) {
	persistertest.Run(t, func(t *testing.T) gc.CommunityPersister {
		return openTestStore(t, filepath.Join(t.TempDir(), "communities.db"))
	})
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data", "communities.db")
	s := openTestStore(t, path)
	assert.Equal(t, path, s.Path())
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "communities.db")

	first, err := Open(ctx, path)
	require.NoError(t, err)
	for _, rec := range persistertest.Records() {
		require.NoError(t, first.WriteCommunityRecord(ctx, rec))
	}
	require.NoError(t, first.Close())

	second := openTestStore(t, path)
	got, err := second.ListCommunityRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestStore_BuildAndResume(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "communities.db")

	graph, err := memgraph.Load(strings.NewReader(testutil.TestGraphYAML))
	require.NoError(t, err)

	calls := 0
	gen := gc.TextGeneratorFunc(func(_ context.Context, prompt, _ string) (string, error) {
		calls++
		return "summary", nil
	})
	cfg := gc.DefaultConfig()
	cfg.Concurrency = 1

	store, err := gc.NewStore(gc.NewGraphStore(graph, openTestStore(t, path)), gen, cfg)
	require.NoError(t, err)
	result, err := store.BuildCommunities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Communities)
	assert.Equal(t, 3, result.Summarized)
	assert.Equal(t, 3, calls)

	// A fresh process over the same database reuses every summary
	resumed, err := gc.NewStore(gc.NewGraphStore(graph, openTestStore(t, path)), gen, cfg)
	require.NoError(t, err)
	result, err = resumed.ResumeSummaries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Reused)
	assert.Equal(t, 0, result.Summarized)
	assert.Equal(t, 3, calls)

	sum, ok := resumed.GetSummary(ctx, "comm-1-s2")
	require.True(t, ok)
	assert.Equal(t, "summary", sum.Text)
}
