package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
)

type MoveRepository interface {
	Append(ctx context.Context, move *entity.Move) error
	ListByMatchID(ctx context.Context, matchID string) ([]*entity.Move, error)
}

type moveRepository struct {
	conn *sqlx.DB
}

func NewMoveRepository(conn *sqlx.DB) MoveRepository {
	return &moveRepository{
		conn: conn,
	}
}

// Append stores the move and sets its Seq to the next number of the match's log.
func (that *moveRepository) Append(ctx context.Context, move *entity.Move) error {
	tx, err := that.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("can't begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last int64
	query := tx.Rebind(`SELECT COALESCE(MAX(seq), 0) FROM match_moves WHERE match_id = ?`)
	if err = tx.GetContext(ctx, &last, query, move.MatchID); err != nil {
		return fmt.Errorf("can't read last move: %w", err)
	}

	move.Seq = last + 1

	insert := `INSERT INTO match_moves (id, match_id, player_id, seq, edge_orientation, edge_row, edge_col, created_at)
		VALUES (:id, :match_id, :player_id, :seq, :edge_orientation, :edge_row, :edge_col, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insert, move); err != nil {
		return fmt.Errorf("can't save move: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("can't commit move: %w", err)
	}

	return nil
}

func (that *moveRepository) ListByMatchID(ctx context.Context, matchID string) ([]*entity.Move, error) {
	query := that.conn.Rebind(`SELECT id, match_id, player_id, seq, edge_orientation, edge_row, edge_col, created_at
		FROM match_moves WHERE match_id = ? ORDER BY seq ASC`)

	moves := make([]*entity.Move, 0)
	if err := that.conn.SelectContext(ctx, &moves, query, matchID); err != nil {
		return nil, fmt.Errorf("can't list moves: %w", err)
	}

	return moves, nil
}
