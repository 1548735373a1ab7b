package repository

import (
	"testing"
	"time"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
	"github.com/rocketscienceinc/dotsandboxes-backend/testing/suite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRematch() *entity.Rematch {
	return &entity.Rematch{
		FinishedMatchID:  "finished-id",
		FinishedPublicID: "Done1234",
		NewMatchID:       "new-id",
		NewPublicID:      "Next1234",
		ProposerID:       "px",
		ProposerName:     "Alice",
		Status:           entity.RematchProposed,
		ProposedAt:       time.Now().UTC().Truncate(time.Second),
	}
}

func TestRematchRepository_Create(t *testing.T) {
	t.Run("Create_Success", func(t *testing.T) {
		ctx, st := suite.New(t)
		rematchRepo := NewRematchRepository(st.Storage)

		// Given: a proposal
		rematch := newRematch()

		// When: it is created
		created, err := rematchRepo.Create(ctx, rematch, time.Minute)

		// Then: it is stored with an expiry
		require.NoError(t, err)
		assert.True(t, created)

		stored, err := rematchRepo.GetByMatchID(ctx, rematch.FinishedMatchID)
		require.NoError(t, err)
		assert.Equal(t, rematch, stored)

		ttl, err := st.Storage.TTL(ctx, "rematch:"+rematch.FinishedMatchID).Result()
		require.NoError(t, err)
		assert.Positive(t, ttl)
	})

	t.Run("Create_AlreadyExists", func(t *testing.T) {
		ctx, st := suite.New(t)
		rematchRepo := NewRematchRepository(st.Storage)

		// Given: a stored proposal
		_, err := rematchRepo.Create(ctx, newRematch(), time.Minute)
		require.NoError(t, err)

		// When: another proposal for the same match is created
		duplicate := newRematch()
		duplicate.ProposerID = "po"
		created, err := rematchRepo.Create(ctx, duplicate, time.Minute)

		// Then: the first proposal is kept
		require.NoError(t, err)
		assert.False(t, created)

		stored, err := rematchRepo.GetByMatchID(ctx, duplicate.FinishedMatchID)
		require.NoError(t, err)
		assert.Equal(t, "px", stored.ProposerID)
	})
}

func TestRematchRepository_Update(t *testing.T) {
	t.Run("Update_Success", func(t *testing.T) {
		ctx, st := suite.New(t)
		rematchRepo := NewRematchRepository(st.Storage)

		rematch := newRematch()
		_, err := rematchRepo.Create(ctx, rematch, time.Minute)
		require.NoError(t, err)

		// When: the proposal is accepted
		rematch.Status = entity.RematchAccepted
		require.NoError(t, rematchRepo.Update(ctx, rematch))

		// Then: the new status is stored and the expiry is kept
		stored, err := rematchRepo.GetByMatchID(ctx, rematch.FinishedMatchID)
		require.NoError(t, err)
		assert.Equal(t, entity.RematchAccepted, stored.Status)

		ttl, err := st.Storage.TTL(ctx, "rematch:"+rematch.FinishedMatchID).Result()
		require.NoError(t, err)
		assert.Positive(t, ttl)
	})

	t.Run("Update_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)
		rematchRepo := NewRematchRepository(st.Storage)

		err := rematchRepo.Update(ctx, newRematch())

		require.ErrorIs(t, err, apperror.ErrRematchNotFound)
	})
}

func TestRematchRepository_Expiry(t *testing.T) {
	ctx, st := suite.New(t)
	rematchRepo := NewRematchRepository(st.Storage)

	// Given: a proposal with a short expiry
	_, err := rematchRepo.Create(ctx, newRematch(), 100*time.Millisecond)
	require.NoError(t, err)

	// When: the expiry passes
	time.Sleep(300 * time.Millisecond)

	// Then: the proposal is gone
	_, err = rematchRepo.GetByMatchID(ctx, "finished-id")
	require.ErrorIs(t, err, apperror.ErrRematchNotFound)
}

func TestRematchRepository_DeleteByMatchID(t *testing.T) {
	ctx, st := suite.New(t)
	rematchRepo := NewRematchRepository(st.Storage)

	_, err := rematchRepo.Create(ctx, newRematch(), time.Minute)
	require.NoError(t, err)

	require.NoError(t, rematchRepo.DeleteByMatchID(ctx, "finished-id"))

	_, err = rematchRepo.GetByMatchID(ctx, "finished-id")
	require.ErrorIs(t, err, apperror.ErrRematchNotFound)
}

func TestRematchRepository_ExpirySchedule(t *testing.T) {
	ctx, st := suite.New(t)
	rematchRepo := NewRematchRepository(st.Storage)
	now := time.Now()

	// Given: one stale and one fresh rematch match
	require.NoError(t, rematchRepo.ScheduleExpiry(ctx, "stale-id", now.Add(-time.Minute)))
	require.NoError(t, rematchRepo.ScheduleExpiry(ctx, "fresh-id", now.Add(time.Hour)))

	// When: due entries are listed
	due, err := rematchRepo.DueExpiries(ctx, now)

	// Then: only the stale one is due
	require.NoError(t, err)
	assert.Equal(t, []string{"stale-id"}, due)

	// And: the first cancel claims the entry, the second finds nothing
	removed, err := rematchRepo.CancelExpiry(ctx, "stale-id")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = rematchRepo.CancelExpiry(ctx, "stale-id")
	require.NoError(t, err)
	assert.False(t, removed)

	due, err = rematchRepo.DueExpiries(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)
}
