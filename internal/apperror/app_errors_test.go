package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReason(t *testing.T) {
	t.Run("WrappedSentinel", func(t *testing.T) {
		// Given: a sentinel wrapped twice
		err := fmt.Errorf("failed to apply move: %w", fmt.Errorf("validate: %w", ErrNotYourTurn))

		// When: Reason is called
		reason := Reason(err)

		// Then: the sentinel's code is returned
		assert.Equal(t, "NOT_YOUR_TURN", reason)
	})

	t.Run("UnknownError", func(t *testing.T) {
		// Given: an error that is not a sentinel
		err := errors.New("connection reset")

		// When: Reason is called
		reason := Reason(err)

		// Then: the internal code is returned
		assert.Equal(t, ReasonInternal, reason)
	})

	t.Run("AllRuleViolations", func(t *testing.T) {
		cases := map[error]string{
			ErrEdgeOutOfBounds:  "EDGE_OUT_OF_BOUNDS",
			ErrEdgeAlreadySet:   "EDGE_ALREADY_SET",
			ErrMatchFinished:    "MATCH_FINISHED",
			ErrMatchFull:        "MATCH_FULL",
			ErrNotInMatch:       "NOT_IN_MATCH",
			ErrMatchNotFound:    "MATCH_NOT_FOUND",
			ErrInvalidPayload:   "INVALID_PAYLOAD",
			ErrMatchIDCollision: "MATCH_ID_COLLISION",
		}

		for err, expected := range cases {
			assert.Equal(t, expected, Reason(err), err.Error())
		}
	})
}
