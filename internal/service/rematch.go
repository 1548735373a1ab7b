package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/broadcast"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
)

type matchOrchestrator interface {
	Resolve(ctx context.Context, idOrPublicID string) (*entity.Match, error)
	CreateMatch(ctx context.Context, userID string, n, m int) (*entity.Match, error)
	JoinMatch(ctx context.Context, userID, idOrPublicID string) (*entity.Snapshot, error)
	GetState(ctx context.Context, idOrPublicID string) (*entity.Snapshot, error)
	DeleteMatch(ctx context.Context, userID, idOrPublicID string) error
	DiscardUnjoined(ctx context.Context, matchID string) (bool, error)
}

type rematchRepo interface {
	Create(ctx context.Context, rematch *entity.Rematch, ttl time.Duration) (bool, error)
	Update(ctx context.Context, rematch *entity.Rematch) error
	GetByMatchID(ctx context.Context, finishedMatchID string) (*entity.Rematch, error)
	DeleteByMatchID(ctx context.Context, finishedMatchID string) error
	ScheduleExpiry(ctx context.Context, newMatchID string, at time.Time) error
	DueExpiries(ctx context.Context, now time.Time) ([]string, error)
	CancelExpiry(ctx context.Context, newMatchID string) (bool, error)
}

type RematchProposedPayload struct {
	FinishedMatchID string `json:"finishedMatchId"`
	NewMatchID      string `json:"newMatchId"`
	CreatorID       string `json:"creatorId"`
	CreatorName     string `json:"creatorName"`
}

type RematchResolvedPayload struct {
	FinishedMatchID string `json:"finishedMatchId"`
	NewMatchID      string `json:"newMatchId"`
}

// RematchService links a finished match to a freshly created one once both players agree.
type RematchService struct {
	logger    *slog.Logger
	matches   matchOrchestrator
	repo      rematchRepo
	ttl       time.Duration
	publisher broadcast.Publisher
	now       func() time.Time
}

func NewRematchService(
	logger *slog.Logger,
	matches matchOrchestrator,
	repo rematchRepo,
	ttl time.Duration,
	publisher broadcast.Publisher,
) *RematchService {
	return &RematchService{
		logger:    logger.With("component", "rematch_service"),
		matches:   matches,
		repo:      repo,
		ttl:       ttl,
		publisher: publisher,
		now:       time.Now,
	}
}

// ProposeRematch creates the next match with the proposer as X and records the pending proposal.
// Proposing again while a proposal is pending returns the pending one.
func (that *RematchService) ProposeRematch(ctx context.Context, userID, userName, finishedMatchID string) (*entity.Rematch, error) {
	log := that.logger.With("method", "ProposeRematch", "user_id", userID)

	finished, err := that.finishedMatchOf(ctx, userID, finishedMatchID)
	if err != nil {
		return nil, err
	}

	pending, err := that.repo.GetByMatchID(ctx, finished.ID)
	switch {
	case err == nil && pending.Status == entity.RematchProposed:
		return pending, nil
	case err == nil:
		return nil, apperror.ErrRematchAlreadyResolved
	case !errors.Is(err, apperror.ErrRematchNotFound):
		return nil, fmt.Errorf("failed to load rematch: %w", err)
	}

	next, err := that.matches.CreateMatch(ctx, userID, finished.N, finished.M)
	if err != nil {
		return nil, fmt.Errorf("failed to create rematch: %w", err)
	}

	rematch := &entity.Rematch{
		FinishedMatchID:  finished.ID,
		FinishedPublicID: finished.PublicIDOrEmpty(),
		NewMatchID:       next.ID,
		NewPublicID:      next.PublicIDOrEmpty(),
		ProposerID:       userID,
		ProposerName:     userName,
		Status:           entity.RematchProposed,
		ProposedAt:       that.now().UTC(),
	}

	created, err := that.repo.Create(ctx, rematch, that.ttl)
	if err != nil || !created {
		that.discardMatch(ctx, log, userID, next.ID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to save rematch: %w", err)
	}

	if !created {
		// the opponent proposed at the same time
		existing, getErr := that.repo.GetByMatchID(ctx, finished.ID)
		if getErr != nil {
			return nil, fmt.Errorf("failed to load rematch: %w", getErr)
		}

		return existing, nil
	}

	if err = that.repo.ScheduleExpiry(ctx, next.ID, rematch.ProposedAt.Add(that.ttl)); err != nil {
		log.Error("failed to schedule rematch expiry", "new_match_id", next.ID, "error", err)
	}

	log.Info("rematch proposed", "finished_match_id", finished.ID, "new_match_id", next.ID)

	that.publish(ctx, rematch.FinishedPublicID, broadcast.EventRematchProposed, RematchProposedPayload{
		FinishedMatchID: rematch.FinishedPublicID,
		NewMatchID:      rematch.NewPublicID,
		CreatorID:       rematch.ProposerID,
		CreatorName:     rematch.ProposerName,
	})
	that.publishState(ctx, log, rematch)

	return rematch, nil
}

// RespondToRematch lets the opponent of the proposer accept or reject the pending proposal.
// Accepting seats the responder as O in the new match.
func (that *RematchService) RespondToRematch(ctx context.Context, userID, finishedMatchID, decision string) (*entity.Rematch, error) {
	log := that.logger.With("method", "RespondToRematch", "user_id", userID)

	if decision != entity.DecisionAccept && decision != entity.DecisionReject {
		return nil, fmt.Errorf("%w: unknown decision %q", apperror.ErrInvalidPayload, decision)
	}

	finished, err := that.finishedMatchOf(ctx, userID, finishedMatchID)
	if err != nil {
		return nil, err
	}

	rematch, err := that.repo.GetByMatchID(ctx, finished.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rematch: %w", err)
	}

	if rematch.Status != entity.RematchProposed {
		return nil, apperror.ErrRematchAlreadyResolved
	}

	if rematch.ProposerID == userID {
		return nil, apperror.ErrRematchOwnProposal
	}

	action := broadcast.EventRematchAccepted

	if decision == entity.DecisionAccept {
		// the proposal may expire between load and accept; nobody is seated in that case
		rematch.Status = entity.RematchAccepted
		if err = that.repo.Update(ctx, rematch); err != nil {
			return nil, fmt.Errorf("failed to accept rematch: %w", err)
		}

		if _, err = that.matches.JoinMatch(ctx, userID, rematch.NewMatchID); err != nil {
			rematch.Status = entity.RematchProposed
			if restoreErr := that.repo.Update(ctx, rematch); restoreErr != nil {
				log.Error("failed to restore rematch proposal", "finished_match_id", finished.ID, "error", restoreErr)
			}

			return nil, fmt.Errorf("failed to join rematch: %w", err)
		}
	} else {
		action = broadcast.EventRematchRejected

		if err = that.repo.DeleteByMatchID(ctx, finished.ID); err != nil {
			return nil, fmt.Errorf("failed to discard rematch: %w", err)
		}

		that.discardMatch(ctx, log, rematch.ProposerID, rematch.NewMatchID)
		rematch.Status = entity.RematchRejected
	}

	if _, err = that.repo.CancelExpiry(ctx, rematch.NewMatchID); err != nil {
		log.Error("failed to cancel rematch expiry", "new_match_id", rematch.NewMatchID, "error", err)
	}

	log.Info("rematch resolved", "finished_match_id", finished.ID, "status", rematch.Status)

	that.publish(ctx, rematch.FinishedPublicID, action, RematchResolvedPayload{
		FinishedMatchID: rematch.FinishedPublicID,
		NewMatchID:      rematch.NewPublicID,
	})
	that.publishState(ctx, log, rematch)

	return rematch, nil
}

// Sweep deletes rematch matches whose proposal expired before the opponent joined
// and returns how many it deleted.
func (that *RematchService) Sweep(ctx context.Context) (int, error) {
	log := that.logger.With("method", "Sweep")

	due, err := that.repo.DueExpiries(ctx, that.now())
	if err != nil {
		return 0, fmt.Errorf("failed to list expired rematches: %w", err)
	}

	var deleted int

	for _, matchID := range due {
		claimed, err := that.repo.CancelExpiry(ctx, matchID)
		if err != nil {
			return deleted, fmt.Errorf("failed to claim expired rematch: %w", err)
		}

		if !claimed {
			continue
		}

		discarded, err := that.matches.DiscardUnjoined(ctx, matchID)
		if err != nil {
			log.Error("failed to discard expired rematch match", "match_id", matchID, "error", err)
			continue
		}

		if discarded {
			deleted++
		}
	}

	return deleted, nil
}

// RunSweeper calls Sweep every interval until ctx is done.
func (that *RematchService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := that.Sweep(ctx); err != nil {
				that.logger.Error("failed to sweep expired rematches", "error", err)
			}
		}
	}
}

func (that *RematchService) finishedMatchOf(ctx context.Context, userID, finishedMatchID string) (*entity.Match, error) {
	finished, err := that.matches.Resolve(ctx, finishedMatchID)
	if err != nil {
		return nil, err
	}

	if !finished.IsParticipant(userID) {
		return nil, apperror.ErrNotInMatch
	}

	if !finished.IsFinished() {
		return nil, apperror.ErrMatchNotFinished
	}

	return finished, nil
}

// publishState sends the finished match state annotated with the rematch outcome.
func (that *RematchService) publishState(ctx context.Context, log *slog.Logger, rematch *entity.Rematch) {
	snapshot, err := that.matches.GetState(ctx, rematch.FinishedMatchID)
	if err != nil {
		log.Error("failed to load finished match state", "error", err)
		return
	}

	snapshot.RematchStatus = rematch.Status
	if rematch.Status != entity.RematchRejected {
		nextMatchID := rematch.NewPublicID
		snapshot.NextMatchID = &nextMatchID
	}

	that.publish(ctx, rematch.FinishedPublicID, broadcast.EventState, snapshot)
}

func (that *RematchService) publish(ctx context.Context, publicID, action string, payload any) {
	event, err := broadcast.NewEvent(action, payload)
	if err == nil {
		err = that.publisher.Publish(ctx, broadcast.Room(publicID), event)
	}

	if err != nil {
		that.logger.Error("failed to broadcast", "action", action, "public_id", publicID, "error", err)
	}
}

func (that *RematchService) discardMatch(ctx context.Context, log *slog.Logger, creatorID, matchID string) {
	if err := that.matches.DeleteMatch(ctx, creatorID, matchID); err != nil && !errors.Is(err, apperror.ErrMatchNotFound) {
		log.Error("failed to discard rematch match", "match_id", matchID, "error", err)
	}
}
