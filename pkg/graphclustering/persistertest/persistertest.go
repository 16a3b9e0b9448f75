// Package persistertest provides a conformance suite for
// graphclustering.CommunityPersister implementations.
package persistertest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gc "github.com/c360/semcommunity/pkg/graphclustering"
)

// Factory returns an empty persister. Cleanup is registered on t.
type Factory func(t *testing.T) gc.CommunityPersister

var collectedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Records returns a linked two-level hierarchy whose IDs need escaping in
// most key formats.
func Records() []*gc.CommunityRecord {
	top := gc.CommunityKey{ID: "fleet/all", Level: 1}
	return []*gc.CommunityRecord{
		{
			ID: "fleet/all", Level: 1, Members: []string{"a", "b", "c"},
			Children: []gc.CommunityKey{{ID: "drones & docks"}, {ID: "ünïcode"}},
			Text:     "Entities:\n- a\n- b\n- c", Digest: "d-top", CollectedAt: collectedAt,
		},
		{
			ID: "drones & docks", Level: 0, Members: []string{"a", "b"}, Edges: []string{"a->b"},
			Parent: &top, Text: "Entities:\n- a\n- b", Digest: "d-0", CollectedAt: collectedAt,
		},
		{
			ID: "ünïcode", Level: 0, Members: []string{"c"},
			Parent: &top, Text: "Entities:\n- c", Digest: "d-1", CollectedAt: collectedAt, Truncated: true,
		},
	}
}

// Run exercises every CommunityPersister operation against fresh
// persisters from newPersister.
func Run(t *testing.T, newPersister Factory) {
	t.Run("RecordsListedInKeyOrder", func(t *testing.T) {
		ctx := context.Background()
		p := newPersister(t)
		for _, rec := range Records() {
			require.NoError(t, p.WriteCommunityRecord(ctx, rec))
		}

		got, err := p.ListCommunityRecords(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)

		want := Records()
		assert.Equal(t, want[1], got[0])
		assert.Equal(t, want[2], got[1])
		assert.Equal(t, want[0], got[2])

		h, err := gc.NewHierarchy(got)
		require.NoError(t, err)
		assert.Equal(t, 2, h.Levels())
	})

	t.Run("RecordWriteReplaces", func(t *testing.T) {
		ctx := context.Background()
		p := newPersister(t)
		rec := Records()[1]
		require.NoError(t, p.WriteCommunityRecord(ctx, rec))

		updated := *rec
		updated.Text = "Entities:\n- a"
		updated.Digest = "d-0b"
		require.NoError(t, p.WriteCommunityRecord(ctx, &updated))

		got, err := p.ListCommunityRecords(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "d-0b", got[0].Digest)
	})

	t.Run("SameIDAtTwoLevels", func(t *testing.T) {
		ctx := context.Background()
		p := newPersister(t)
		require.NoError(t, p.WriteSummary(ctx, &gc.CommunitySummary{CommunityID: "x", Level: 0, Text: "fine"}))
		require.NoError(t, p.WriteSummary(ctx, &gc.CommunitySummary{CommunityID: "x", Level: 1, Text: "coarse"}))

		fine, err := p.ReadSummary(ctx, gc.CommunityKey{ID: "x", Level: 0})
		require.NoError(t, err)
		require.NotNil(t, fine)
		assert.Equal(t, "fine", fine.Text)

		coarse, err := p.ReadSummary(ctx, gc.CommunityKey{ID: "x", Level: 1})
		require.NoError(t, err)
		require.NotNil(t, coarse)
		assert.Equal(t, "coarse", coarse.Text)
	})

	t.Run("SummaryRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		p := newPersister(t)

		missing, err := p.ReadSummary(ctx, gc.CommunityKey{ID: "fleet/all", Level: 1})
		require.NoError(t, err)
		assert.Nil(t, missing)

		sum := &gc.CommunitySummary{
			CommunityID:  "fleet/all",
			Level:        1,
			Text:         "A fleet of drones and their docks.",
			GeneratedAt:  collectedAt.Add(time.Minute),
			SourceDigest: "d-top",
			ChildrenUsed: []gc.CommunityKey{{ID: "drones & docks"}},
		}
		require.NoError(t, p.WriteSummary(ctx, sum))

		got, err := p.ReadSummary(ctx, sum.Key())
		require.NoError(t, err)
		assert.Equal(t, sum, got)
	})

	t.Run("ResetRemovesEverything", func(t *testing.T) {
		ctx := context.Background()
		p := newPersister(t)
		for _, rec := range Records() {
			require.NoError(t, p.WriteCommunityRecord(ctx, rec))
			require.NoError(t, p.WriteSummary(ctx, &gc.CommunitySummary{CommunityID: rec.ID, Level: rec.Level, Text: "s"}))
		}

		require.NoError(t, p.ResetCommunities(ctx))

		got, err := p.ListCommunityRecords(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
		sum, err := p.ReadSummary(ctx, gc.CommunityKey{ID: "ünïcode"})
		require.NoError(t, err)
		assert.Nil(t, sum)

		require.NoError(t, p.ResetCommunities(ctx), "reset of an empty store")
	})
}
