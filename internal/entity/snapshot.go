package entity

const (
	StatusWaiting  = "waiting"
	StatusActive   = "active"
	StatusFinished = "finished"
)

const (
	RematchNone     = "NONE"
	RematchProposed = "PROPOSED"
	RematchAccepted = "ACCEPTED"
	RematchRejected = "REJECTED"
)

type Mark string

const (
	MarkNone Mark = "none"
	MarkX    Mark = "x"
	MarkO    Mark = "o"
)

type Players struct {
	XID string `json:"xId"`
	OID string `json:"oId"`
}

type Edges struct {
	H [][]bool `json:"h"`
	V [][]bool `json:"v"`
}

type Scores struct {
	X int `json:"x"`
	O int `json:"o"`
}

// Snapshot is the full board state of a match as seen by clients.
type Snapshot struct {
	MatchID       string   `json:"matchId"`
	N             int      `json:"n"`
	M             int      `json:"m"`
	Players       Players  `json:"players"`
	TurnPlayerID  string   `json:"turnPlayerId"`
	Edges         Edges    `json:"edges"`
	Boxes         [][]Mark `json:"boxes"`
	Scores        Scores   `json:"scores"`
	Status        string   `json:"status"`
	WinnerID      *string  `json:"winnerId"`
	RematchStatus string   `json:"rematchStatus,omitempty"`
	NextMatchID   *string  `json:"nextMatchId,omitempty"`
}

func (that *Snapshot) IsFinished() bool {
	return that.Status == StatusFinished
}

// MarkOf returns the mark the player claims boxes with.
func (that *Snapshot) MarkOf(playerID string) (Mark, bool) {
	switch {
	case playerID == "":
		return MarkNone, false
	case playerID == that.Players.XID:
		return MarkX, true
	case playerID == that.Players.OID:
		return MarkO, true
	}

	return MarkNone, false
}

func (that *Snapshot) OpponentOf(playerID string) string {
	if playerID == that.Players.XID {
		return that.Players.OID
	}

	return that.Players.XID
}

// Clone returns a deep copy that shares no grid or pointer with the receiver.
func (that *Snapshot) Clone() *Snapshot {
	clone := *that

	clone.Edges = Edges{H: cloneGrid(that.Edges.H), V: cloneGrid(that.Edges.V)}
	clone.Boxes = cloneGrid(that.Boxes)
	clone.WinnerID = cloneString(that.WinnerID)
	clone.NextMatchID = cloneString(that.NextMatchID)

	return &clone
}

func cloneGrid[T any](grid [][]T) [][]T {
	if grid == nil {
		return nil
	}

	clone := make([][]T, len(grid))
	for i, row := range grid {
		clone[i] = append(make([]T, 0, len(row)), row...)
	}

	return clone
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}

	copied := *value

	return &copied
}
