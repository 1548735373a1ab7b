package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/cache"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/dotsandboxes"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/pkg"
)

type stateMatchRepo interface {
	GetByID(ctx context.Context, id string) (*entity.Match, error)
	SetPublicID(ctx context.Context, id, publicID string) (bool, error)
	Finish(ctx context.Context, id string, winnerID *string, finishedAt time.Time) error
}

type moveReader interface {
	ListByMatchID(ctx context.Context, matchID string) ([]*entity.Move, error)
}

type snapshotCache interface {
	Get(ctx context.Context, matchID string) (*entity.Snapshot, error)
	Set(ctx context.Context, matchID string, snapshot *entity.Snapshot) error
	Delete(ctx context.Context, matchID string) error
}

type publicIDAllocator interface {
	Allocate(ctx context.Context) (string, error)
}

// StateReconstructor serves match snapshots from the cache and rebuilds them from the move log on a miss.
type StateReconstructor struct {
	logger    *slog.Logger
	matchRepo stateMatchRepo
	moveRepo  moveReader
	cache     snapshotCache
	ids       publicIDAllocator
}

func NewStateReconstructor(
	logger *slog.Logger,
	matchRepo stateMatchRepo,
	moveRepo moveReader,
	snapshots snapshotCache,
	ids publicIDAllocator,
) *StateReconstructor {
	return &StateReconstructor{
		logger:    logger.With("component", "state_reconstructor"),
		matchRepo: matchRepo,
		moveRepo:  moveRepo,
		cache:     snapshots,
		ids:       ids,
	}
}

// GetOrRebuildState returns the snapshot of the match with the given internal id.
// A miss writes the cache, so callers hold the match's exclusive section.
func (that *StateReconstructor) GetOrRebuildState(ctx context.Context, matchID string) (*entity.Snapshot, error) {
	log := that.logger.With("method", "GetOrRebuildState", "match_id", matchID)

	cached, err := that.cache.Get(ctx, matchID)
	if err == nil {
		return cached, nil
	}

	if !errors.Is(err, cache.ErrMiss) {
		log.Warn("snapshot cache unavailable, rebuilding", "error", err)
	}

	match, err := that.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load match: %w", err)
	}

	publicID, err := that.EnsurePublicID(ctx, match)
	if err != nil {
		return nil, err
	}

	snapshot, err := that.Rebuild(ctx, match, publicID)
	if err != nil {
		return nil, err
	}

	// the last move was logged but the finish was not recorded
	if snapshot.IsFinished() && !match.IsFinished() {
		log.Warn("recording finish of a completed match")

		if err = that.matchRepo.Finish(ctx, match.ID, snapshot.WinnerID, time.Now()); err != nil {
			return nil, fmt.Errorf("failed to record finish: %w", err)
		}
	}

	if err = that.cache.Set(ctx, match.ID, snapshot); err != nil {
		log.Error("failed to cache snapshot", "error", err)
	}

	return snapshot, nil
}

// Invalidate drops the cached snapshot so the next read rebuilds it.
func (that *StateReconstructor) Invalidate(ctx context.Context, matchID string) error {
	if err := that.cache.Delete(ctx, matchID); err != nil {
		return fmt.Errorf("failed to invalidate snapshot: %w", err)
	}

	return nil
}

// Store replaces the cached snapshot of the match.
func (that *StateReconstructor) Store(ctx context.Context, matchID string, snapshot *entity.Snapshot) error {
	if err := that.cache.Set(ctx, matchID, snapshot); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}

	return nil
}

// Rebuild replays the move log of the match without touching the cache or the match record.
func (that *StateReconstructor) Rebuild(ctx context.Context, match *entity.Match, publicID string) (*entity.Snapshot, error) {
	if match.PlayerOIDOrEmpty() == "" || match.Status == entity.StatusWaiting {
		return dotsandboxes.NewWaitingState(match.N, match.M, publicID, match.Players(), match.PlayerXID), nil
	}

	state, err := dotsandboxes.CreateInitialState(match.N, match.M, publicID, match.Players(), match.PlayerXID)
	if err != nil {
		return nil, fmt.Errorf("failed to create initial state: %w", err)
	}

	moves, err := that.moveRepo.ListByMatchID(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load moves: %w", err)
	}

	for _, move := range moves {
		result, applyErr := dotsandboxes.ApplyMove(state, move.PlayerID, move.Edge())
		if applyErr != nil {
			return nil, fmt.Errorf("%w: match %s seq %d: %w", apperror.ErrCorruptMoveLog, match.ID, move.Seq, applyErr)
		}

		state = result.NextState
	}

	if match.IsFinished() {
		state.Status = entity.StatusFinished
		state.WinnerID = nil

		if match.WinnerID != nil {
			winner := *match.WinnerID
			state.WinnerID = &winner
		}
	}

	return state, nil
}

// EnsurePublicID returns the public id of the match, assigning one to matches created without it.
func (that *StateReconstructor) EnsurePublicID(ctx context.Context, match *entity.Match) (string, error) {
	if pkg.IsValidMatchID(match.PublicIDOrEmpty()) {
		return match.PublicIDOrEmpty(), nil
	}

	publicID, err := that.ids.Allocate(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to allocate public id: %w", err)
	}

	assigned, err := that.matchRepo.SetPublicID(ctx, match.ID, publicID)
	if err != nil {
		return "", fmt.Errorf("failed to backfill public id: %w", err)
	}

	if !assigned {
		// a concurrent reader assigned one first
		stored, getErr := that.matchRepo.GetByID(ctx, match.ID)
		if getErr != nil {
			return "", fmt.Errorf("failed to reload match: %w", getErr)
		}

		publicID = stored.PublicIDOrEmpty()
	}

	that.logger.Info("public id backfilled", "match_id", match.ID, "public_id", publicID)
	match.PublicID = &publicID

	return publicID, nil
}
