package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/broadcast"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/config"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/dotsandboxes"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/keylock"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/pkg"
)

type matchRepo interface {
	Create(ctx context.Context, match *entity.Match) error
	GetByID(ctx context.Context, id string) (*entity.Match, error)
	GetByPublicID(ctx context.Context, publicID string) (*entity.Match, error)
	ClaimOSlot(ctx context.Context, id, userID string) (bool, error)
	Activate(ctx context.Context, id string) (bool, error)
	Finish(ctx context.Context, id string, winnerID *string, finishedAt time.Time) error
	ListByParticipant(ctx context.Context, userID string) ([]*entity.Match, error)
	Delete(ctx context.Context, id string) error
}

type moveAppender interface {
	Append(ctx context.Context, move *entity.Move) error
}

type stateStore interface {
	GetOrRebuildState(ctx context.Context, matchID string) (*entity.Snapshot, error)
	Invalidate(ctx context.Context, matchID string) error
	Store(ctx context.Context, matchID string, snapshot *entity.Snapshot) error
}

type MoveOutcome struct {
	Snapshot     *entity.Snapshot
	ClaimedBoxes []dotsandboxes.Box
	GameOver     bool
}

type EndedPayload struct {
	MatchID  string        `json:"matchId"`
	WinnerID *string       `json:"winnerId"`
	Scores   entity.Scores `json:"scores"`
}

// MatchService creates and joins matches and applies moves one at a time per match.
type MatchService struct {
	logger    *slog.Logger
	conf      config.Match
	matchRepo matchRepo
	moveRepo  moveAppender
	state     stateStore
	ids       publicIDAllocator
	locks     *keylock.Mutex
	publisher broadcast.Publisher
}

func NewMatchService(
	logger *slog.Logger,
	conf config.Match,
	matchRepo matchRepo,
	moveRepo moveAppender,
	state stateStore,
	ids publicIDAllocator,
	locks *keylock.Mutex,
	publisher broadcast.Publisher,
) *MatchService {
	return &MatchService{
		logger:    logger.With("component", "match_service"),
		conf:      conf,
		matchRepo: matchRepo,
		moveRepo:  moveRepo,
		state:     state,
		ids:       ids,
		locks:     locks,
		publisher: publisher,
	}
}

// CreateMatch stores a waiting match with the creator in the X seat.
func (that *MatchService) CreateMatch(ctx context.Context, userID string, n, m int) (*entity.Match, error) {
	if userID == "" {
		return nil, apperror.ErrUnauthorized
	}

	if n < that.conf.MinSize || n > that.conf.MaxSize || m < that.conf.MinSize || m > that.conf.MaxSize {
		return nil, fmt.Errorf("%w: %dx%d is outside %d..%d",
			apperror.ErrInvalidDimensions, n, m, that.conf.MinSize, that.conf.MaxSize)
	}

	publicID, err := that.ids.Allocate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate match id: %w", err)
	}

	createdAt := time.Now().UTC()
	match := &entity.Match{
		ID:          pkg.NewInternalID(),
		PublicID:    &publicID,
		N:           n,
		M:           m,
		Status:      entity.StatusWaiting,
		CreatedByID: userID,
		PlayerXID:   userID,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	if err = that.matchRepo.Create(ctx, match); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	that.logger.Info("match created", "match_id", match.ID, "public_id", publicID, "n", n, "m", m)

	return match, nil
}

// Resolve finds a match by its internal UUID or by its public id.
func (that *MatchService) Resolve(ctx context.Context, idOrPublicID string) (*entity.Match, error) {
	var (
		match *entity.Match
		err   error
	)

	switch {
	case pkg.IsLikelyUUID(idOrPublicID):
		match, err = that.matchRepo.GetByID(ctx, idOrPublicID)
	case pkg.IsValidMatchID(idOrPublicID):
		match, err = that.matchRepo.GetByPublicID(ctx, idOrPublicID)
	default:
		return nil, apperror.ErrMatchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to resolve match: %w", err)
	}

	return match, nil
}

// JoinMatch seats the user as O when the seat is free and returns the rebuilt snapshot.
// Seating, activation and invalidation happen in the match's exclusive section so no move sees them half done.
func (that *MatchService) JoinMatch(ctx context.Context, userID, idOrPublicID string) (*entity.Snapshot, error) {
	log := that.logger.With("method", "JoinMatch", "user_id", userID)

	if userID == "" {
		return nil, apperror.ErrUnauthorized
	}

	resolved, err := that.Resolve(ctx, idOrPublicID)
	if err != nil {
		return nil, err
	}

	unlock := that.locks.Lock(resolved.ID)
	defer unlock()

	match, err := that.matchRepo.GetByID(ctx, resolved.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload match: %w", err)
	}

	if !match.IsParticipant(userID) {
		if match, err = that.claimOSlot(ctx, match, userID); err != nil {
			return nil, err
		}

		log.Info("player joined", "match_id", match.ID)
	}

	if match.IsFull() && match.Status == entity.StatusWaiting {
		if _, err = that.matchRepo.Activate(ctx, match.ID); err != nil {
			that.invalidate(ctx, log, match.ID)
			return nil, fmt.Errorf("failed to activate match: %w", err)
		}
	}

	if err = that.state.Invalidate(ctx, match.ID); err != nil {
		return nil, err
	}

	snapshot, err := that.state.GetOrRebuildState(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild state: %w", err)
	}

	that.publish(ctx, snapshot.MatchID, broadcast.EventState, snapshot)

	return snapshot, nil
}

func (that *MatchService) claimOSlot(ctx context.Context, match *entity.Match, userID string) (*entity.Match, error) {
	if match.IsFull() {
		return nil, apperror.ErrMatchFull
	}

	if _, err := that.matchRepo.ClaimOSlot(ctx, match.ID, userID); err != nil {
		return nil, fmt.Errorf("failed to claim seat: %w", err)
	}

	// the conditional update may have lost a race, the stored row decides
	reloaded, err := that.matchRepo.GetByID(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload match: %w", err)
	}

	if !reloaded.IsParticipant(userID) {
		return nil, apperror.ErrMatchFull
	}

	return reloaded, nil
}

// MakeMove validates, logs and applies a move. Moves on the same match run one at a time in arrival order.
func (that *MatchService) MakeMove(ctx context.Context, userID, idOrPublicID string, edge entity.Edge) (*MoveOutcome, error) {
	log := that.logger.With("method", "MakeMove", "user_id", userID)

	resolved, err := that.Resolve(ctx, idOrPublicID)
	if err != nil {
		return nil, err
	}

	unlock := that.locks.Lock(resolved.ID)
	defer unlock()

	match, err := that.matchRepo.GetByID(ctx, resolved.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload match: %w", err)
	}

	if match.IsFinished() {
		return nil, apperror.ErrMatchFinished
	}

	if !match.IsParticipant(userID) {
		return nil, apperror.ErrNotInMatch
	}

	if match.Status == entity.StatusWaiting {
		return nil, apperror.ErrMatchNotStarted
	}

	snapshot, err := that.state.GetOrRebuildState(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	if err = dotsandboxes.ValidateMove(snapshot, userID, edge); err != nil {
		return nil, fmt.Errorf("move rejected: %w", err)
	}

	move := &entity.Move{
		ID:          pkg.NewInternalID(),
		MatchID:     match.ID,
		PlayerID:    userID,
		Orientation: edge.O,
		Row:         edge.Row,
		Col:         edge.Col,
		CreatedAt:   time.Now().UTC(),
	}

	if err = that.moveRepo.Append(ctx, move); err != nil {
		that.invalidate(ctx, log, match.ID)
		return nil, fmt.Errorf("failed to save move: %w", err)
	}

	result, err := dotsandboxes.ApplyMove(snapshot, userID, edge)
	if err != nil {
		that.invalidate(ctx, log, match.ID)
		return nil, fmt.Errorf("failed to apply move: %w", err)
	}

	next := result.NextState
	cacheable := true

	if result.GameOver {
		// left uncached, the next rebuild sees a completed board and records the finish
		if err = that.matchRepo.Finish(ctx, match.ID, result.WinnerID, time.Now()); err != nil {
			log.Error("failed to record finish", "match_id", match.ID, "error", err)
			that.invalidate(ctx, log, match.ID)
			cacheable = false
		}
	}

	if cacheable {
		if err = that.state.Store(ctx, match.ID, next); err != nil {
			log.Error("failed to store snapshot", "match_id", match.ID, "error", err)
			that.invalidate(ctx, log, match.ID)
		}
	}

	log.Debug("move applied", "match_id", match.ID, "seq", move.Seq, "edge", edge.String(),
		"claimed", len(result.ClaimedBoxes))

	that.publish(ctx, next.MatchID, broadcast.EventState, next)

	if result.GameOver {
		log.Info("match finished", "match_id", match.ID, "scores", next.Scores)
		that.publish(ctx, next.MatchID, broadcast.EventEnded, EndedPayload{
			MatchID:  next.MatchID,
			WinnerID: next.WinnerID,
			Scores:   next.Scores,
		})
	}

	return &MoveOutcome{
		Snapshot:     next,
		ClaimedBoxes: result.ClaimedBoxes,
		GameOver:     result.GameOver,
	}, nil
}

// GetState returns the snapshot of a match addressed by internal or public id.
// A cache miss rebuilds and caches the snapshot, so it waits for the match's exclusive section.
func (that *MatchService) GetState(ctx context.Context, idOrPublicID string) (*entity.Snapshot, error) {
	match, err := that.Resolve(ctx, idOrPublicID)
	if err != nil {
		return nil, err
	}

	unlock := that.locks.Lock(match.ID)
	defer unlock()

	snapshot, err := that.state.GetOrRebuildState(ctx, match.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	return snapshot, nil
}

// ListMine returns the matches the user created or plays in, newest first.
func (that *MatchService) ListMine(ctx context.Context, userID string) ([]*entity.Match, error) {
	if userID == "" {
		return nil, apperror.ErrUnauthorized
	}

	matches, err := that.matchRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	return matches, nil
}

// DeleteMatch removes a match and its log. Only the creator may delete it.
func (that *MatchService) DeleteMatch(ctx context.Context, userID, idOrPublicID string) error {
	match, err := that.Resolve(ctx, idOrPublicID)
	if err != nil {
		return err
	}

	if match.CreatedByID != userID {
		return apperror.ErrForbidden
	}

	unlock := that.locks.Lock(match.ID)
	defer unlock()

	if err = that.matchRepo.Delete(ctx, match.ID); err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}

	if err = that.state.Invalidate(ctx, match.ID); err != nil {
		return err
	}

	that.logger.Info("match deleted", "match_id", match.ID, "user_id", userID)

	return nil
}

// DiscardUnjoined deletes a waiting match that nobody has joined yet and reports whether it did.
func (that *MatchService) DiscardUnjoined(ctx context.Context, matchID string) (bool, error) {
	unlock := that.locks.Lock(matchID)
	defer unlock()

	match, err := that.matchRepo.GetByID(ctx, matchID)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to get match: %w", err)
	}

	if match.Status != entity.StatusWaiting || match.IsFull() {
		return false, nil
	}

	if err = that.matchRepo.Delete(ctx, match.ID); err != nil {
		return false, fmt.Errorf("failed to delete match: %w", err)
	}

	if err = that.state.Invalidate(ctx, match.ID); err != nil {
		return false, err
	}

	that.logger.Info("unjoined match discarded", "match_id", match.ID)

	return true, nil
}

func (that *MatchService) publish(ctx context.Context, publicID, action string, payload any) {
	event, err := broadcast.NewEvent(action, payload)
	if err == nil {
		err = that.publisher.Publish(ctx, broadcast.Room(publicID), event)
	}

	if err != nil {
		that.logger.Error("failed to broadcast", "action", action, "public_id", publicID, "error", err)
	}
}

func (that *MatchService) invalidate(ctx context.Context, log *slog.Logger, matchID string) {
	if err := that.state.Invalidate(ctx, matchID); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("failed to invalidate snapshot", "match_id", matchID, "error", err)
	}
}
