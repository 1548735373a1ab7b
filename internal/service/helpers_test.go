package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/broadcast"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/cache"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/config"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/keylock"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/repository"
	"github.com/rocketscienceinc/dotsandboxes-backend/testing/suite"
	"github.com/stretchr/testify/require"
)

const (
	playerX = "player-x"
	playerO = "player-o"

	timeout = 5 * time.Second
	tick    = time.Millisecond
)

type published struct {
	room  string
	event broadcast.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (that *recordingPublisher) Publish(_ context.Context, room string, event broadcast.Event) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.events = append(that.events, published{room: room, event: event})

	return nil
}

func (that *recordingPublisher) actions(room string) []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	actions := make([]string, 0, len(that.events))
	for _, item := range that.events {
		if item.room == room {
			actions = append(actions, item.event.Action)
		}
	}

	return actions
}

func (that *recordingPublisher) last(room, action string) (broadcast.Event, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for i := len(that.events) - 1; i >= 0; i-- {
		if that.events[i].room == room && that.events[i].event.Action == action {
			return that.events[i].event, true
		}
	}

	return broadcast.Event{}, false
}

// hook runs a function once, on the first fire after set.
type hook struct {
	mu sync.Mutex
	fn func()
}

func (that *hook) set(fn func()) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.fn = fn
}

func (that *hook) fire() {
	that.mu.Lock()
	fn := that.fn
	that.fn = nil
	that.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// hookedMoves fires afterList once the move log has been read.
type hookedMoves struct {
	repository.MoveRepository
	afterList *hook
}

func (that *hookedMoves) ListByMatchID(ctx context.Context, matchID string) ([]*entity.Move, error) {
	moves, err := that.MoveRepository.ListByMatchID(ctx, matchID)
	that.afterList.fire()

	return moves, err
}

// hookedMatches fires afterActivate once a match has been activated.
type hookedMatches struct {
	repository.MatchRepository
	afterActivate *hook
}

func (that *hookedMatches) Activate(ctx context.Context, id string) (bool, error) {
	activated, err := that.MatchRepository.Activate(ctx, id)
	that.afterActivate.fire()

	return activated, err
}

type fixture struct {
	ctx       context.Context
	st        *suite.Suite
	matchRepo repository.MatchRepository
	moveRepo  repository.MoveRepository
	snapshots *cache.Memory
	ids       *IDAllocator
	state     *StateReconstructor
	locks     *keylock.Mutex
	publisher *recordingPublisher
	matches   *MatchService

	afterList     *hook
	afterActivate *hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx, st := suite.NewSQL(t)

	afterList := &hook{}
	afterActivate := &hook{}
	matchRepo := &hookedMatches{MatchRepository: repository.NewMatchRepository(st.DB), afterActivate: afterActivate}
	moveRepo := &hookedMoves{MoveRepository: repository.NewMoveRepository(st.DB), afterList: afterList}
	snapshots := cache.NewMemory()
	ids := NewIDAllocator(st.Logger, matchRepo)
	state := NewStateReconstructor(st.Logger, matchRepo, moveRepo, snapshots, ids)
	locks := keylock.New()
	publisher := &recordingPublisher{}

	conf := config.Match{MinSize: 2, MaxSize: 19}
	matches := NewMatchService(st.Logger, conf, matchRepo, moveRepo, state, ids, locks, publisher)

	return &fixture{
		ctx:       ctx,
		st:        st,
		matchRepo: matchRepo,
		moveRepo:  moveRepo,
		snapshots: snapshots,
		ids:       ids,
		state:     state,
		locks:     locks,
		publisher: publisher,
		matches:   matches,

		afterList:     afterList,
		afterActivate: afterActivate,
	}
}

// startMatch creates an n x m match for playerX and seats playerO.
func (that *fixture) startMatch(t *testing.T, n, m int) *entity.Match {
	t.Helper()

	match, err := that.matches.CreateMatch(that.ctx, playerX, n, m)
	require.NoError(t, err)

	_, err = that.matches.JoinMatch(that.ctx, playerO, match.PublicIDOrEmpty())
	require.NoError(t, err)

	return match
}

// finishMatch plays a 2x2 match that O wins 1-0.
func (that *fixture) finishMatch(t *testing.T) *entity.Match {
	t.Helper()

	match := that.startMatch(t, 2, 2)
	moves := []struct {
		player string
		edge   entity.Edge
	}{
		{playerX, h(0, 0)},
		{playerO, v(0, 0)},
		{playerX, v(0, 1)},
		{playerO, h(1, 0)},
	}

	for _, move := range moves {
		_, err := that.matches.MakeMove(that.ctx, move.player, match.ID, move.edge)
		require.NoError(t, err)
	}

	finished, err := that.matchRepo.GetByID(that.ctx, match.ID)
	require.NoError(t, err)
	require.True(t, finished.IsFinished())

	return finished
}

func h(row, col int) entity.Edge { return entity.Edge{O: entity.OrientationH, Row: row, Col: col} }
func v(row, col int) entity.Edge { return entity.Edge{O: entity.OrientationV, Row: row, Col: col} }
