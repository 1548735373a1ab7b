package dotsandboxes

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
)

const MinDots = 2

// ErrIllegalApply signals that ApplyMove was called with a move that does not validate.
// Callers are expected to run ValidateMove first, so this is a programming error.
var ErrIllegalApply = errors.New("illegal move applied")

// Box addresses a single box by the coordinates of its top-left dot.
type Box struct {
	R int `json:"r"`
	C int `json:"c"`
}

type MoveResult struct {
	NextState    *entity.Snapshot
	ClaimedBoxes []Box
	TurnPlayerID string
	GameOver     bool
	WinnerID     *string
}

// CreateInitialState returns an active snapshot with an empty board.
func CreateInitialState(n, m int, matchID string, players entity.Players, startingPlayerID string) (*entity.Snapshot, error) {
	if n < MinDots || m < MinDots {
		return nil, fmt.Errorf("%w: board must have at least %d dot rows and columns, got %dx%d",
			apperror.ErrInvalidPayload, MinDots, n, m)
	}

	if startingPlayerID == "" || (startingPlayerID != players.XID && startingPlayerID != players.OID) {
		return nil, fmt.Errorf("%w: starting player %q is not part of the match", apperror.ErrInvalidPayload, startingPlayerID)
	}

	state := NewWaitingState(n, m, matchID, players, startingPlayerID)
	state.Status = entity.StatusActive

	return state, nil
}

// NewWaitingState returns an empty board for a match that still waits for its second player.
func NewWaitingState(n, m int, matchID string, players entity.Players, turnPlayerID string) *entity.Snapshot {
	return &entity.Snapshot{
		MatchID:      matchID,
		N:            n,
		M:            m,
		Players:      players,
		TurnPlayerID: turnPlayerID,
		Edges: entity.Edges{
			H: newGrid(n, m-1, false),
			V: newGrid(n-1, m, false),
		},
		Boxes:  newGrid(n-1, m-1, entity.MarkNone),
		Scores: entity.Scores{},
		Status: entity.StatusWaiting,
	}
}

// ValidateMove reports the first rule the move breaks, or nil.
func ValidateMove(state *entity.Snapshot, playerID string, edge entity.Edge) error {
	if !edge.HasValidOrientation() {
		return fmt.Errorf("%w: unknown edge orientation %q", apperror.ErrInvalidPayload, edge.O)
	}

	if state.IsFinished() {
		return apperror.ErrMatchFinished
	}

	if playerID != state.TurnPlayerID {
		return apperror.ErrNotYourTurn
	}

	if !InBoundsEdge(state.N, state.M, edge) {
		return fmt.Errorf("%w: %s on %dx%d board", apperror.ErrEdgeOutOfBounds, edge, state.N, state.M)
	}

	if IsEdgeSet(state.Edges, edge) {
		return fmt.Errorf("%w: %s", apperror.ErrEdgeAlreadySet, edge)
	}

	return nil
}

// ApplyMove draws the edge and returns the resulting state. The input state is never modified.
func ApplyMove(state *entity.Snapshot, playerID string, edge entity.Edge) (*MoveResult, error) {
	if err := ValidateMove(state, playerID, edge); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIllegalApply, err)
	}

	mark, ok := state.MarkOf(playerID)
	if !ok {
		return nil, fmt.Errorf("%w: player %q has no mark in the match", ErrIllegalApply, playerID)
	}

	next := state.Clone()
	setEdge(next.Edges, edge)

	claimed := make([]Box, 0, 2)
	for _, box := range AdjacentBoxes(state.N, state.M, edge) {
		if next.Boxes[box.R][box.C] != entity.MarkNone {
			continue
		}

		if IsBoxComplete(next.Edges, box.R, box.C) {
			next.Boxes[box.R][box.C] = mark
			claimed = append(claimed, box)
		}
	}

	next.Scores = ComputeScores(next.Boxes)

	// completing a box earns another turn
	next.TurnPlayerID = state.OpponentOf(playerID)
	if len(claimed) > 0 {
		next.TurnPlayerID = playerID
	}

	gameOver := IsGameOver(next.Boxes)
	next.WinnerID = nil
	next.Status = entity.StatusActive

	if gameOver {
		next.Status = entity.StatusFinished
		next.WinnerID = decideWinner(next.Players, next.Scores)
	}

	return &MoveResult{
		NextState:    next,
		ClaimedBoxes: claimed,
		TurnPlayerID: next.TurnPlayerID,
		GameOver:     gameOver,
		WinnerID:     next.WinnerID,
	}, nil
}

func InBoundsEdge(n, m int, edge entity.Edge) bool {
	switch edge.O {
	case entity.OrientationH:
		return edge.Row >= 0 && edge.Row < n && edge.Col >= 0 && edge.Col < m-1
	case entity.OrientationV:
		return edge.Row >= 0 && edge.Row < n-1 && edge.Col >= 0 && edge.Col < m
	}

	return false
}

// IsEdgeSet assumes the edge is in bounds.
func IsEdgeSet(edges entity.Edges, edge entity.Edge) bool {
	if edge.O == entity.OrientationH {
		return edges.H[edge.Row][edge.Col]
	}

	return edges.V[edge.Row][edge.Col]
}

// AdjacentBoxes returns the one or two in-range boxes the edge borders.
func AdjacentBoxes(n, m int, edge entity.Edge) []Box {
	boxes := make([]Box, 0, 2)
	rows, cols := n-1, m-1

	switch edge.O {
	case entity.OrientationH:
		if edge.Col < 0 || edge.Col >= cols {
			return boxes
		}

		if edge.Row-1 >= 0 && edge.Row-1 < rows {
			boxes = append(boxes, Box{R: edge.Row - 1, C: edge.Col})
		}

		if edge.Row >= 0 && edge.Row < rows {
			boxes = append(boxes, Box{R: edge.Row, C: edge.Col})
		}
	case entity.OrientationV:
		if edge.Row < 0 || edge.Row >= rows {
			return boxes
		}

		if edge.Col-1 >= 0 && edge.Col-1 < cols {
			boxes = append(boxes, Box{R: edge.Row, C: edge.Col - 1})
		}

		if edge.Col >= 0 && edge.Col < cols {
			boxes = append(boxes, Box{R: edge.Row, C: edge.Col})
		}
	}

	return boxes
}

func IsBoxComplete(edges entity.Edges, r, c int) bool {
	return edges.H[r][c] && edges.H[r+1][c] && edges.V[r][c] && edges.V[r][c+1]
}

func ComputeScores(boxes [][]entity.Mark) entity.Scores {
	var scores entity.Scores

	for _, row := range boxes {
		for _, owner := range row {
			switch owner {
			case entity.MarkX:
				scores.X++
			case entity.MarkO:
				scores.O++
			case entity.MarkNone:
			}
		}
	}

	return scores
}

func IsGameOver(boxes [][]entity.Mark) bool {
	for _, row := range boxes {
		for _, owner := range row {
			if owner == entity.MarkNone {
				return false
			}
		}
	}

	return true
}

// decideWinner returns nil on a tie.
func decideWinner(players entity.Players, scores entity.Scores) *string {
	var winner string

	switch {
	case scores.X > scores.O:
		winner = players.XID
	case scores.O > scores.X:
		winner = players.OID
	default:
		return nil
	}

	return &winner
}

func setEdge(edges entity.Edges, edge entity.Edge) {
	if edge.O == entity.OrientationH {
		edges.H[edge.Row][edge.Col] = true
		return
	}

	edges.V[edge.Row][edge.Col] = true
}

func newGrid[T any](rows, cols int, value T) [][]T {
	grid := make([][]T, rows)
	for i := range grid {
		grid[i] = make([]T, cols)
		for j := range grid[i] {
			grid[i][j] = value
		}
	}

	return grid
}
