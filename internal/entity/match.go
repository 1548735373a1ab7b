package entity

import "time"

// Match is the durable record of a match. Board state lives in the move log.
type Match struct {
	ID          string     `db:"id" json:"id"`
	PublicID    *string    `db:"public_id" json:"publicId"`
	N           int        `db:"n" json:"n"`
	M           int        `db:"m" json:"m"`
	Status      string     `db:"status" json:"status"`
	CreatedByID string     `db:"created_by_id" json:"createdById"`
	PlayerXID   string     `db:"player_x_id" json:"playerXId"`
	PlayerOID   *string    `db:"player_o_id" json:"playerOId"`
	WinnerID    *string    `db:"winner_id" json:"winnerId"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
	FinishedAt  *time.Time `db:"finished_at" json:"finishedAt"`
}

func (that *Match) PublicIDOrEmpty() string {
	if that.PublicID == nil {
		return ""
	}

	return *that.PublicID
}

func (that *Match) PlayerOIDOrEmpty() string {
	if that.PlayerOID == nil {
		return ""
	}

	return *that.PlayerOID
}

func (that *Match) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}

	return userID == that.PlayerXID || userID == that.PlayerOIDOrEmpty()
}

func (that *Match) IsFull() bool {
	return that.PlayerXID != "" && that.PlayerOIDOrEmpty() != ""
}

func (that *Match) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Match) PlayerCount() int {
	count := 0
	if that.PlayerXID != "" {
		count++
	}

	if that.PlayerOIDOrEmpty() != "" {
		count++
	}

	return count
}

func (that *Match) Players() Players {
	return Players{XID: that.PlayerXID, OID: that.PlayerOIDOrEmpty()}
}

// Move is one entry of the append-only move log.
type Move struct {
	ID          string      `db:"id"`
	MatchID     string      `db:"match_id"`
	PlayerID    string      `db:"player_id"`
	Seq         int64       `db:"seq"`
	Orientation Orientation `db:"edge_orientation"`
	Row         int         `db:"edge_row"`
	Col         int         `db:"edge_col"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (that *Move) Edge() Edge {
	return Edge{O: that.Orientation, Row: that.Row, Col: that.Col}
}

// Rematch is a pending or resolved proposal to replay a finished match.
type Rematch struct {
	FinishedMatchID  string    `json:"finished_match_id"`
	FinishedPublicID string    `json:"finished_public_id"`
	NewMatchID       string    `json:"new_match_id"`
	NewPublicID      string    `json:"new_public_id"`
	ProposerID       string    `json:"proposer_id"`
	ProposerName     string    `json:"proposer_name"`
	Status           string    `json:"status"`
	ProposedAt       time.Time `json:"proposed_at"`
}

const (
	DecisionAccept = "ACCEPT"
	DecisionReject = "REJECT"
)
