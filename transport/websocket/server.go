package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/broadcast"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/pkg"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/service"
)

const sessionCookie = "user_session"

type matchService interface {
	Resolve(ctx context.Context, idOrPublicID string) (*entity.Match, error)
	CreateMatch(ctx context.Context, userID string, n, m int) (*entity.Match, error)
	JoinMatch(ctx context.Context, userID, idOrPublicID string) (*entity.Snapshot, error)
	MakeMove(ctx context.Context, userID, idOrPublicID string, edge entity.Edge) (*service.MoveOutcome, error)
	GetState(ctx context.Context, idOrPublicID string) (*entity.Snapshot, error)
}

type rematchService interface {
	ProposeRematch(ctx context.Context, userID, userName, finishedMatchID string) (*entity.Rematch, error)
	RespondToRematch(ctx context.Context, userID, finishedMatchID, decision string) (*entity.Rematch, error)
}

type rooms interface {
	Join(room string, subscriber broadcast.Subscriber)
	Leave(room, subscriberID string)
	LeaveAll(subscriberID string)
}

type handlerFunc func(ctx context.Context, client *Client, message *Message) error

type Server struct {
	logger    *slog.Logger
	matches   matchService
	rematches rematchService
	rooms     rooms
	upgrader  websocket.Upgrader

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, matches matchService, rematches rematchService, rooms rooms) *Server {
	server := &Server{
		logger:    logger.With("component", "websocket"),
		matches:   matches,
		rematches: rematches,
		rooms:     rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},

		handlers: make(map[string]handlerFunc),
	}

	server.handlers[actionConnect] = server.handleConnect
	server.handlers[actionCreateMatch] = server.handleCreateMatch
	server.handlers[actionJoinMatch] = server.handleJoinMatch
	server.handlers[actionSubscribe] = server.handleSubscribe
	server.handlers[actionMove] = server.handleMove
	server.handlers[actionRematchPropose] = server.handleRematchPropose
	server.handlers[actionRematchRespond] = server.handleRematchRespond

	return server
}

// Handler - returns the handler serving the /ws endpoint.
func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	return mux
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.Handler(ctx),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection to WebSocket and serves the client until it leaves.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeConnection")

	userID, header := that.sessionCookie(req)

	conn, err := that.upgrader.Upgrade(writer, req, header)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	client := newClient(conn, userID)
	log.Info("WebSocket connection established", "client_id", client.ID(), "user_id", userID)

	go client.writePump(that.logger)

	that.readPump(ctx, client)

	that.rooms.LeaveAll(client.ID())
	client.close()

	log.Info("WebSocket connection closed", "client_id", client.ID())
}

// readPump - dispatches client messages until the connection fails.
func (that *Server) readPump(ctx context.Context, client *Client) {
	log := that.logger.With("method", "readPump", "client_id", client.ID())

	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("unexpected close", "error", err)
			}

			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Debug("failed to unmarshal message", "error", err)
			client.replyError("", apperror.ErrInvalidPayload)
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			client.replyError(message.Action, apperror.ErrInvalidPayload)
			continue
		}

		if err = handler(ctx, client, &message); err != nil {
			if apperror.Reason(err) == apperror.ReasonInternal {
				log.Error("error processing message", "action", message.Action, "error", err)
			} else {
				log.Debug("request refused", "action", message.Action, "error", err)
			}

			client.replyError(message.Action, err)
		}
	}
}

// sessionCookie - reads the user session or issues a new one.
func (that *Server) sessionCookie(req *http.Request) (string, http.Header) {
	cookie, err := req.Cookie(sessionCookie)
	if err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	cookie = &http.Cookie{
		Name:    sessionCookie,
		Value:   pkg.GenerateNewSessionID(),
		Expires: time.Now().Add(24 * time.Hour),
		Path:    "/",
	}

	header := http.Header{}
	header.Add("Set-Cookie", cookie.String())

	that.logger.Info("session cookie not found, new one created", "cookie", cookie.Value)

	return cookie.Value, header
}
