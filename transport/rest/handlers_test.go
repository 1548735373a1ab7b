package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
)

var errDatabaseDown = errors.New("database down")

type mockMatchService struct {
	mock.Mock
}

func (that *mockMatchService) ListMine(ctx context.Context, userID string) ([]*entity.Match, error) {
	args := that.Called(ctx, userID)
	return args.Get(0).([]*entity.Match), args.Error(1)
}

func (that *mockMatchService) GetState(ctx context.Context, idOrPublicID string) (*entity.Snapshot, error) {
	args := that.Called(ctx, idOrPublicID)
	return args.Get(0).(*entity.Snapshot), args.Error(1)
}

func (that *mockMatchService) DeleteMatch(ctx context.Context, userID, idOrPublicID string) error {
	return that.Called(ctx, userID, idOrPublicID).Error(0)
}

func newRouter(t *testing.T) (*gin.Engine, *mockMatchService) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	matches := &mockMatchService{}
	t.Cleanup(func() { matches.AssertExpectations(t) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewRouter(logger, matches), matches
}

func serve(router *gin.Engine, method, path, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if userID != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: userID})
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	return recorder
}

func TestPing(t *testing.T) {
	router, _ := newRouter(t)

	recorder := serve(router, http.MethodGet, "/ping", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "pong", recorder.Body.String())
}

func TestMatchHandler_ListMine(t *testing.T) {
	t.Run("Lists summaries of the user's matches", func(t *testing.T) {
		// Given: the user plays one active match
		router, matches := newRouter(t)
		publicID := "AbCd1234"
		playerO := "player-o"
		createdAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		matches.On("ListMine", mock.Anything, "player-x").Return([]*entity.Match{{
			ID:        "7f9c2ba4-e88f-4e1a-9f6b-2b5a0c8d1e3f",
			PublicID:  &publicID,
			Status:    entity.StatusActive,
			PlayerXID: "player-x",
			PlayerOID: &playerO,
			CreatedAt: createdAt,
		}}, nil).Once()

		// When: the list is requested
		recorder := serve(router, http.MethodGet, "/matches/mine", "player-x")

		// Then: one summary addressed by the public id
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, `[{
			"id": "AbCd1234",
			"createdAt": "2024-05-01T12:00:00Z",
			"status": "active",
			"playerCount": 2
		}]`, recorder.Body.String())
	})

	t.Run("Header identifies the user without a cookie", func(t *testing.T) {
		router, matches := newRouter(t)
		matches.On("ListMine", mock.Anything, "player-o").Return([]*entity.Match{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/matches/mine", nil)
		req.Header.Set(userIDHeader, "player-o")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)

		require.Equal(t, http.StatusOK, recorder.Code)
		assert.JSONEq(t, `[]`, recorder.Body.String())
	})

	t.Run("Anonymous request", func(t *testing.T) {
		router, _ := newRouter(t)

		recorder := serve(router, http.MethodGet, "/matches/mine", "")

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.JSONEq(t, `{"error":"UNAUTHORIZED"}`, recorder.Body.String())
	})
}

func TestMatchHandler_Get(t *testing.T) {
	t.Run("Returns the snapshot", func(t *testing.T) {
		router, matches := newRouter(t)
		snapshot := &entity.Snapshot{MatchID: "AbCd1234", N: 3, M: 3, Status: entity.StatusWaiting}
		matches.On("GetState", mock.Anything, "AbCd1234").Return(snapshot, nil).Once()

		recorder := serve(router, http.MethodGet, "/matches/AbCd1234", "player-x")

		require.Equal(t, http.StatusOK, recorder.Code)

		var got entity.Snapshot
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &got))
		assert.Equal(t, *snapshot, got)
	})

	t.Run("Unknown match", func(t *testing.T) {
		router, matches := newRouter(t)
		matches.On("GetState", mock.Anything, "Missing1").Return((*entity.Snapshot)(nil), apperror.ErrMatchNotFound).Once()

		recorder := serve(router, http.MethodGet, "/matches/Missing1", "player-x")

		assert.Equal(t, http.StatusNotFound, recorder.Code)
		assert.JSONEq(t, `{"error":"MATCH_NOT_FOUND"}`, recorder.Body.String())
	})

	t.Run("Storage failure", func(t *testing.T) {
		router, matches := newRouter(t)
		matches.On("GetState", mock.Anything, "AbCd1234").Return((*entity.Snapshot)(nil), errDatabaseDown).Once()

		recorder := serve(router, http.MethodGet, "/matches/AbCd1234", "player-x")

		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
		assert.JSONEq(t, `{"error":"INTERNAL_ERROR"}`, recorder.Body.String())
	})
}

func TestMatchHandler_Delete(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"Creator deletes", nil, http.StatusNoContent},
		{"Someone else's match", apperror.ErrForbidden, http.StatusForbidden},
		{"Unknown match", apperror.ErrMatchNotFound, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router, matches := newRouter(t)
			matches.On("DeleteMatch", mock.Anything, "player-x", "AbCd1234").Return(tc.err).Once()

			recorder := serve(router, http.MethodDelete, "/matches/AbCd1234", "player-x")

			assert.Equal(t, tc.status, recorder.Code)
		})
	}
}
