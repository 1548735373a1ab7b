package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/broadcast"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/cache"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/config"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/keylock"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/repository"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/repository/storage"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/service"
	"github.com/rocketscienceinc/dotsandboxes-backend/transport/rest"
	"github.com/rocketscienceinc/dotsandboxes-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	sqlStorage, err := storage.NewSQLStorage(ctx, conf.Database.Driver, conf.Database.DSN)
	if err != nil {
		return fmt.Errorf("could not connect to sql storage: %w", err)
	}

	defer func() {
		if err = sqlStorage.Close(); err != nil {
			log.Error("could not close sql storage", "error", err)
		}
	}()

	if err = sqlStorage.Migrate(); err != nil {
		return fmt.Errorf("could not migrate sql storage: %w", err)
	}

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	hub := broadcast.NewHub(logger)

	publisher, err := newPublisher(ctx, logger, conf.Broker, redisStorage, hub)
	if err != nil {
		return err
	}

	matchRepo := repository.NewMatchRepository(sqlStorage.Connection)
	moveRepo := repository.NewMoveRepository(sqlStorage.Connection)
	rematchRepo := repository.NewRematchRepository(redisStorage.Connection)

	ids := service.NewIDAllocator(logger, matchRepo)
	state := service.NewStateReconstructor(logger, matchRepo, moveRepo, newCache(conf.Cache, redisStorage), ids)
	matches := service.NewMatchService(logger, conf.Match, matchRepo, moveRepo, state, ids, keylock.New(), publisher)
	rematches := service.NewRematchService(logger, matches, rematchRepo, conf.Rematch.TTL, publisher)

	go rematches.RunSweeper(ctx, conf.Rematch.SweepInterval)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, logger, conf.HTTPPort, matches); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, matches, rematches, hub)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

func newCache(conf config.Cache, redisStorage *storage.RedisStorage) cache.Cache {
	if conf.Kind == config.CacheRedis {
		return cache.NewRedis(redisStorage.Connection)
	}

	return cache.NewMemory()
}

// newPublisher - picks the fan-out for match rooms. Relays deliver into the local hub as well.
func newPublisher(
	ctx context.Context,
	logger *slog.Logger,
	conf config.Broker,
	redisStorage *storage.RedisStorage,
	hub *broadcast.Hub,
) (broadcast.Publisher, error) {
	log := logger.With("component", "broker")

	switch conf.Kind {
	case config.BrokerRedis:
		relay := broadcast.NewRedisRelay(logger, redisStorage.Connection, hub)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("redis relay stopped", "error", err)
			}
		}()

		return relay, nil
	case config.BrokerNATS:
		conn, err := broadcast.ConnectNATS(conf.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("could not connect to nats: %w", err)
		}

		relay := broadcast.NewNATSRelay(logger, conn, hub)
		go func() {
			defer conn.Close()

			if runErr := relay.Run(ctx); runErr != nil {
				log.Error("nats relay stopped", "error", runErr)
			}
		}()

		return relay, nil
	default:
		return hub, nil
	}
}
