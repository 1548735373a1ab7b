package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
)

type MatchRepository interface {
	Create(ctx context.Context, match *entity.Match) error
	GetByID(ctx context.Context, id string) (*entity.Match, error)
	GetByPublicID(ctx context.Context, publicID string) (*entity.Match, error)
	PublicIDExists(ctx context.Context, publicID string) (bool, error)
	SetPublicID(ctx context.Context, id, publicID string) (bool, error)
	ClaimOSlot(ctx context.Context, id, userID string) (bool, error)
	Activate(ctx context.Context, id string) (bool, error)
	Finish(ctx context.Context, id string, winnerID *string, finishedAt time.Time) error
	ListByParticipant(ctx context.Context, userID string) ([]*entity.Match, error)
	Delete(ctx context.Context, id string) error
}

const matchColumns = `id, public_id, n, m, status, created_by_id, player_x_id, player_o_id, winner_id,
	created_at, updated_at, finished_at`

type matchRepository struct {
	conn *sqlx.DB
}

func NewMatchRepository(conn *sqlx.DB) MatchRepository {
	return &matchRepository{
		conn: conn,
	}
}

func (that *matchRepository) Create(ctx context.Context, match *entity.Match) error {
	query := `INSERT INTO matches (` + matchColumns + `)
		VALUES (:id, :public_id, :n, :m, :status, :created_by_id, :player_x_id, :player_o_id, :winner_id,
			:created_at, :updated_at, :finished_at)`

	if _, err := that.conn.NamedExecContext(ctx, query, match); err != nil {
		return fmt.Errorf("can't save match: %w", err)
	}

	return nil
}

func (that *matchRepository) GetByID(ctx context.Context, id string) (*entity.Match, error) {
	return that.get(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, id)
}

func (that *matchRepository) GetByPublicID(ctx context.Context, publicID string) (*entity.Match, error) {
	return that.get(ctx, `SELECT `+matchColumns+` FROM matches WHERE public_id = ?`, publicID)
}

func (that *matchRepository) PublicIDExists(ctx context.Context, publicID string) (bool, error) {
	query := that.conn.Rebind(`SELECT COUNT(1) FROM matches WHERE public_id = ?`)

	var count int
	if err := that.conn.GetContext(ctx, &count, query, publicID); err != nil {
		return false, fmt.Errorf("can't check public id: %w", err)
	}

	return count > 0, nil
}

// SetPublicID assigns a public id to a match that has none.
func (that *matchRepository) SetPublicID(ctx context.Context, id, publicID string) (bool, error) {
	query := `UPDATE matches SET public_id = ?, updated_at = ? WHERE id = ? AND (public_id IS NULL OR public_id = '')`

	return that.update(ctx, query, publicID, now(), id)
}

// ClaimOSlot gives the O seat to userID only if nobody holds it yet.
func (that *matchRepository) ClaimOSlot(ctx context.Context, id, userID string) (bool, error) {
	query := `UPDATE matches SET player_o_id = ?, updated_at = ?
		WHERE id = ? AND player_o_id IS NULL AND player_x_id <> ?`

	return that.update(ctx, query, userID, now(), id, userID)
}

// Activate moves a full waiting match to active.
func (that *matchRepository) Activate(ctx context.Context, id string) (bool, error) {
	query := `UPDATE matches SET status = ?, updated_at = ?
		WHERE id = ? AND status = ? AND player_o_id IS NOT NULL`

	return that.update(ctx, query, entity.StatusActive, now(), id, entity.StatusWaiting)
}

func (that *matchRepository) Finish(ctx context.Context, id string, winnerID *string, finishedAt time.Time) error {
	query := `UPDATE matches SET status = ?, winner_id = ?, finished_at = ?, updated_at = ? WHERE id = ?`

	if _, err := that.update(ctx, query, entity.StatusFinished, winnerID, finishedAt.UTC(), now(), id); err != nil {
		return fmt.Errorf("can't finish match: %w", err)
	}

	return nil
}

func (that *matchRepository) ListByParticipant(ctx context.Context, userID string) ([]*entity.Match, error) {
	query := that.conn.Rebind(`SELECT ` + matchColumns + ` FROM matches
		WHERE player_x_id = ? OR player_o_id = ? OR created_by_id = ?
		ORDER BY created_at DESC`)

	matches := make([]*entity.Match, 0)
	if err := that.conn.SelectContext(ctx, &matches, query, userID, userID, userID); err != nil {
		return nil, fmt.Errorf("can't list matches: %w", err)
	}

	return matches, nil
}

// Delete removes the match together with its move log.
func (that *matchRepository) Delete(ctx context.Context, id string) error {
	tx, err := that.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("can't begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM match_moves WHERE match_id = ?`), id); err != nil {
		return fmt.Errorf("can't delete moves: %w", err)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM matches WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("can't delete match: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return apperror.ErrMatchNotFound
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("can't commit transaction: %w", err)
	}

	return nil
}

func (that *matchRepository) get(ctx context.Context, query string, arg string) (*entity.Match, error) {
	var match entity.Match

	err := that.conn.GetContext(ctx, &match, that.conn.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrMatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't find match: %w", err)
	}

	return &match, nil
}

func (that *matchRepository) update(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := that.conn.ExecContext(ctx, that.conn.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("can't update match: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("can't read affected rows: %w", err)
	}

	return affected == 1, nil
}

func now() time.Time {
	return time.Now().UTC()
}
