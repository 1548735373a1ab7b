package cache

import (
	"context"
	"errors"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
)

// ErrMiss is returned when no snapshot is cached for the match.
var ErrMiss = errors.New("snapshot is not cached")

// Cache holds the latest snapshot per internal match id.
type Cache interface {
	Get(ctx context.Context, matchID string) (*entity.Snapshot, error)
	Set(ctx context.Context, matchID string, snapshot *entity.Snapshot) error
	Delete(ctx context.Context, matchID string) error
}
