package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
)

type matchService interface {
	ListMine(ctx context.Context, userID string) ([]*entity.Match, error)
	GetState(ctx context.Context, idOrPublicID string) (*entity.Snapshot, error)
	DeleteMatch(ctx context.Context, userID, idOrPublicID string) error
}

type MatchHandler interface {
	ListMine(c *gin.Context)
	Get(c *gin.Context)
	Delete(c *gin.Context)
}

type matchHandler struct {
	logger  *slog.Logger
	matches matchService
}

type matchSummary struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Status      string    `json:"status"`
	PlayerCount int       `json:"playerCount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewMatchHandler(logger *slog.Logger, matches matchService) MatchHandler {
	return &matchHandler{
		logger:  logger.With("component", "match_handler"),
		matches: matches,
	}
}

// ListMine - lists the matches the user created or plays in, newest first.
func (that *matchHandler) ListMine(c *gin.Context) {
	matches, err := that.matches.ListMine(c.Request.Context(), userIDFrom(c))
	if err != nil {
		that.fail(c, "ListMine", err)
		return
	}

	summaries := make([]matchSummary, 0, len(matches))
	for _, match := range matches {
		id := match.PublicIDOrEmpty()
		if id == "" {
			id = match.ID
		}

		summaries = append(summaries, matchSummary{
			ID:          id,
			CreatedAt:   match.CreatedAt,
			Status:      match.Status,
			PlayerCount: match.PlayerCount(),
		})
	}

	c.JSON(http.StatusOK, summaries)
}

func (that *matchHandler) Get(c *gin.Context) {
	snapshot, err := that.matches.GetState(c.Request.Context(), c.Param("id"))
	if err != nil {
		that.fail(c, "Get", err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (that *matchHandler) Delete(c *gin.Context) {
	if err := that.matches.DeleteMatch(c.Request.Context(), userIDFrom(c), c.Param("id")); err != nil {
		that.fail(c, "Delete", err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (that *matchHandler) fail(c *gin.Context, method string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		that.logger.Error("request failed", "method", method, "error", err)
	}

	c.AbortWithStatusJSON(status, errorResponse{Error: apperror.Reason(err)})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, apperror.ErrMatchNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrInvalidPayload), errors.Is(err, apperror.ErrInvalidDimensions):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
