package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
)

const (
	actionConnect        = "connect"
	actionCreateMatch    = "lobby:createMatch"
	actionJoinMatch      = "lobby:joinMatch"
	actionSubscribe      = "game:subscribe"
	actionMove           = "game:move"
	actionRematchPropose = "game:rematchPropose"
	actionRematchRespond = "game:rematchRespond"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ConnectPayload struct {
	Player *Player `json:"player"`
}

type CreateMatchPayload struct {
	N int `json:"n"`
	M int `json:"m"`
}

type MatchPayload struct {
	MatchID string `json:"matchId"`
}

type MovePayload struct {
	MatchID   string       `json:"matchId"`
	Edge      *entity.Edge `json:"edge"`
	ClientSeq *int         `json:"clientSeq,omitempty"`
}

type MoveRejectedPayload struct {
	MatchID   string `json:"matchId"`
	ClientSeq *int   `json:"clientSeq,omitempty"`
	Reason    string `json:"reason"`
}

type RematchRespondPayload struct {
	MatchID  string `json:"matchId"`
	Decision string `json:"decision"`
}

type RematchPayload struct {
	FinishedMatchID string `json:"finishedMatchId"`
	NewMatchID      string `json:"newMatchId"`
	CreatorID       string `json:"creatorId"`
	CreatorName     string `json:"creatorName"`
	Status          string `json:"status"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func newRematchPayload(rematch *entity.Rematch) RematchPayload {
	return RematchPayload{
		FinishedMatchID: rematch.FinishedPublicID,
		NewMatchID:      rematch.NewPublicID,
		CreatorID:       rematch.ProposerID,
		CreatorName:     rematch.ProposerName,
		Status:          rematch.Status,
	}
}
