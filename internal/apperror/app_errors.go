package apperror

import "errors"

var (
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrInvalidDimensions = errors.New("invalid board dimensions")
	ErrMatchNotFound     = errors.New("match not found")
	ErrMatchFinished     = errors.New("match is already finished")
	ErrMatchNotStarted   = errors.New("match is not started")
	ErrMatchNotFinished  = errors.New("match is not finished")
	ErrMatchFull         = errors.New("match is full")
	ErrNotInMatch        = errors.New("user is not a participant of the match")
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrEdgeOutOfBounds   = errors.New("edge is out of bounds")
	ErrEdgeAlreadySet    = errors.New("edge is already set")
	ErrMatchIDCollision  = errors.New("could not allocate a unique match id")
	ErrCorruptMoveLog    = errors.New("move log can not be replayed")

	ErrRematchNotFound        = errors.New("rematch proposal not found")
	ErrRematchAlreadyResolved = errors.New("rematch proposal is already resolved")
	ErrRematchOwnProposal     = errors.New("can't respond to own rematch proposal")

	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

const ReasonInternal = "INTERNAL_ERROR"

// reasons is ordered: the first sentinel found in the error chain wins.
var reasons = []struct {
	err    error
	reason string
}{
	{ErrInvalidPayload, "INVALID_PAYLOAD"},
	{ErrInvalidDimensions, "INVALID_DIMENSIONS"},
	{ErrMatchNotFound, "MATCH_NOT_FOUND"},
	{ErrMatchFinished, "MATCH_FINISHED"},
	{ErrMatchNotStarted, "MATCH_NOT_STARTED"},
	{ErrMatchNotFinished, "MATCH_NOT_FINISHED"},
	{ErrMatchFull, "MATCH_FULL"},
	{ErrNotInMatch, "NOT_IN_MATCH"},
	{ErrNotYourTurn, "NOT_YOUR_TURN"},
	{ErrEdgeOutOfBounds, "EDGE_OUT_OF_BOUNDS"},
	{ErrEdgeAlreadySet, "EDGE_ALREADY_SET"},
	{ErrMatchIDCollision, "MATCH_ID_COLLISION"},
	{ErrRematchNotFound, "REMATCH_NOT_FOUND"},
	{ErrRematchAlreadyResolved, "REMATCH_ALREADY_RESOLVED"},
	{ErrRematchOwnProposal, "FORBIDDEN"},
	{ErrForbidden, "FORBIDDEN"},
	{ErrUnauthorized, "UNAUTHORIZED"},
}

// Reason returns the wire reason code for err.
func Reason(err error) string {
	for _, candidate := range reasons {
		if errors.Is(err, candidate.err) {
			return candidate.reason
		}
	}

	return ReasonInternal
}
