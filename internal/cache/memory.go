package cache

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
)

// Memory keeps snapshots in process. Values are copied on the way in and out.
type Memory struct {
	mu        sync.RWMutex
	snapshots map[string]*entity.Snapshot
}

func NewMemory() *Memory {
	return &Memory{
		snapshots: make(map[string]*entity.Snapshot),
	}
}

func (that *Memory) Get(_ context.Context, matchID string) (*entity.Snapshot, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	snapshot, ok := that.snapshots[matchID]
	if !ok {
		return nil, ErrMiss
	}

	return snapshot.Clone(), nil
}

func (that *Memory) Set(_ context.Context, matchID string, snapshot *entity.Snapshot) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.snapshots[matchID] = snapshot.Clone()

	return nil
}

func (that *Memory) Delete(_ context.Context, matchID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.snapshots, matchID)

	return nil
}
