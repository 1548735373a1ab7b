package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
)

type RematchRepository interface {
	Create(ctx context.Context, rematch *entity.Rematch, ttl time.Duration) (bool, error)
	Update(ctx context.Context, rematch *entity.Rematch) error
	GetByMatchID(ctx context.Context, finishedMatchID string) (*entity.Rematch, error)
	DeleteByMatchID(ctx context.Context, finishedMatchID string) error
	ScheduleExpiry(ctx context.Context, newMatchID string, at time.Time) error
	DueExpiries(ctx context.Context, now time.Time) ([]string, error)
	CancelExpiry(ctx context.Context, newMatchID string) (bool, error)
}

const rematchExpiriesKey = "rematch:expiries"

type dbRematch struct {
	client *redis.Client
}

func NewRematchRepository(client *redis.Client) RematchRepository {
	return &dbRematch{
		client: client,
	}
}

// Create stores the proposal unless one already exists for the finished match.
func (that *dbRematch) Create(ctx context.Context, rematch *entity.Rematch, ttl time.Duration) (bool, error) {
	rematchJSON, err := json.Marshal(rematch)
	if err != nil {
		return false, fmt.Errorf("failed to marshal rematch: %w", err)
	}

	created, err := that.client.SetNX(ctx, rematchKey(rematch.FinishedMatchID), rematchJSON, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set rematch: %w", err)
	}

	return created, nil
}

// Update overwrites an existing proposal and keeps its expiry.
func (that *dbRematch) Update(ctx context.Context, rematch *entity.Rematch) error {
	rematchJSON, err := json.Marshal(rematch)
	if err != nil {
		return fmt.Errorf("failed to marshal rematch: %w", err)
	}

	updated, err := that.client.SetXX(ctx, rematchKey(rematch.FinishedMatchID), rematchJSON, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to update rematch: %w", err)
	}

	if !updated {
		return apperror.ErrRematchNotFound
	}

	return nil
}

func (that *dbRematch) GetByMatchID(ctx context.Context, finishedMatchID string) (*entity.Rematch, error) {
	response, err := that.client.Get(ctx, rematchKey(finishedMatchID)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrRematchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get rematch: %w", err)
	}

	var rematch entity.Rematch
	if err = json.Unmarshal([]byte(response), &rematch); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rematch: %w", err)
	}

	return &rematch, nil
}

func (that *dbRematch) DeleteByMatchID(ctx context.Context, finishedMatchID string) error {
	if err := that.client.Del(ctx, rematchKey(finishedMatchID)).Err(); err != nil {
		return fmt.Errorf("failed to delete rematch: %w", err)
	}

	return nil
}

// ScheduleExpiry records when the match created for a proposal becomes stale.
func (that *dbRematch) ScheduleExpiry(ctx context.Context, newMatchID string, at time.Time) error {
	member := redis.Z{Score: float64(at.Unix()), Member: newMatchID}
	if err := that.client.ZAdd(ctx, rematchExpiriesKey, member).Err(); err != nil {
		return fmt.Errorf("failed to schedule rematch expiry: %w", err)
	}

	return nil
}

func (that *dbRematch) DueExpiries(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := that.client.ZRangeByScore(ctx, rematchExpiriesKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get due rematch expiries: %w", err)
	}

	return ids, nil
}

// CancelExpiry reports whether this call removed the entry, so only one sweeper claims it.
func (that *dbRematch) CancelExpiry(ctx context.Context, newMatchID string) (bool, error) {
	removed, err := that.client.ZRem(ctx, rematchExpiriesKey, newMatchID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to cancel rematch expiry: %w", err)
	}

	return removed > 0, nil
}

func rematchKey(finishedMatchID string) string {
	return "rematch:" + finishedMatchID
}
