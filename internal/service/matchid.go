package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/pkg"
)

const maxAllocateAttempts = 10

type publicIDChecker interface {
	PublicIDExists(ctx context.Context, publicID string) (bool, error)
}

// IDAllocator hands out public match ids that no stored match uses yet.
type IDAllocator struct {
	logger   *slog.Logger
	repo     publicIDChecker
	generate func() (string, error)
}

func NewIDAllocator(logger *slog.Logger, repo publicIDChecker) *IDAllocator {
	return NewIDAllocatorWithGenerator(logger, repo, pkg.GenerateMatchID)
}

func NewIDAllocatorWithGenerator(logger *slog.Logger, repo publicIDChecker, generate func() (string, error)) *IDAllocator {
	return &IDAllocator{
		logger:   logger.With("component", "id_allocator"),
		repo:     repo,
		generate: generate,
	}
}

// Allocate returns an unused public id. Uniqueness is also enforced by the store on insert.
func (that *IDAllocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= maxAllocateAttempts; attempt++ {
		candidate, err := that.generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate match id: %w", err)
		}

		exists, err := that.repo.PublicIDExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check match id: %w", err)
		}

		if !exists {
			return candidate, nil
		}

		that.logger.Debug("match id collision", "attempt", attempt)
	}

	that.logger.Error("match id space exhausted", "attempts", maxAllocateAttempts)

	return "", apperror.ErrMatchIDCollision
}
