package cache

import (
	"context"
	"testing"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
	"github.com/rocketscienceinc/dotsandboxes-backend/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshot() *entity.Snapshot {
	winner := "po"

	return &entity.Snapshot{
		MatchID:      "AbCd1234",
		N:            2,
		M:            2,
		Players:      entity.Players{XID: "px", OID: "po"},
		TurnPlayerID: "po",
		Edges: entity.Edges{
			H: [][]bool{{true}, {true}},
			V: [][]bool{{true, true}},
		},
		Boxes:    [][]entity.Mark{{entity.MarkO}},
		Scores:   entity.Scores{O: 1},
		Status:   entity.StatusFinished,
		WinnerID: &winner,
	}
}

func exerciseCache(t *testing.T, ctx context.Context, snapshots Cache) {
	t.Helper()

	// Given: nothing is cached
	_, err := snapshots.Get(ctx, "match-1")
	require.ErrorIs(t, err, ErrMiss)

	// When: a snapshot is stored
	snapshot := newSnapshot()
	require.NoError(t, snapshots.Set(ctx, "match-1", snapshot))

	// Then: it is returned unchanged
	cached, err := snapshots.Get(ctx, "match-1")
	require.NoError(t, err)
	assert.Equal(t, snapshot, cached)

	// When: it is deleted
	require.NoError(t, snapshots.Delete(ctx, "match-1"))

	// Then: the next read misses
	_, err = snapshots.Get(ctx, "match-1")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemory(t *testing.T) {
	t.Run("Roundtrip", func(t *testing.T) {
		exerciseCache(t, context.Background(), NewMemory())
	})

	t.Run("Cached value is isolated from callers", func(t *testing.T) {
		ctx := context.Background()
		snapshots := NewMemory()

		// Given: a cached snapshot
		snapshot := newSnapshot()
		require.NoError(t, snapshots.Set(ctx, "match-1", snapshot))

		// When: both the stored original and a read copy are mutated
		snapshot.Edges.H[0][0] = false
		read, err := snapshots.Get(ctx, "match-1")
		require.NoError(t, err)
		read.Boxes[0][0] = entity.MarkX

		// Then: the cache still holds the original value
		again, err := snapshots.Get(ctx, "match-1")
		require.NoError(t, err)
		assert.True(t, again.Edges.H[0][0])
		assert.Equal(t, entity.MarkO, again.Boxes[0][0])
	})
}

func TestRedis(t *testing.T) {
	ctx, st := suite.New(t)

	exerciseCache(t, ctx, NewRedis(st.Storage))
}
