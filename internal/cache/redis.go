package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
)

// snapshotTTL bounds how long an idle match stays cached; it is rebuilt from the log afterwards.
const snapshotTTL = 24 * time.Hour

type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client: client,
	}
}

func (that *Redis) Get(ctx context.Context, matchID string) (*entity.Snapshot, error) {
	response, err := that.client.Get(ctx, snapshotKey(matchID)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snapshot entity.Snapshot
	if err = json.Unmarshal([]byte(response), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

func (that *Redis) Set(ctx context.Context, matchID string, snapshot *entity.Snapshot) error {
	snapshotJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("could not marshal snapshot: %w", err)
	}

	if err = that.client.Set(ctx, snapshotKey(matchID), snapshotJSON, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}

	return nil
}

func (that *Redis) Delete(ctx context.Context, matchID string) error {
	if err := that.client.Del(ctx, snapshotKey(matchID)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	return nil
}

func snapshotKey(matchID string) string {
	return "snapshot:" + matchID
}
