package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rocketscienceinc/dotsandboxes-backend/internal/apperror"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/cache"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/entity"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/pkg"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/repository"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/repository/storage"
	"github.com/rocketscienceinc/dotsandboxes-backend/internal/service"
)

var ErrNotDeterministic = errors.New("replaying the move log twice gave different snapshots")

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Driver string
	DSN    string
}

// NewReplayCommand - rebuilds a match from its move log and prints the snapshot.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <match-id>",
		Short: "Rebuild a match from its move log",
		Long: `Rebuild a match from the stored move log, without using any cache, and print the snapshot as JSON.

The log is replayed twice and the command fails when the two snapshots differ.

Examples:
  dotsandboxes replay AbCd1234
  dotsandboxes replay --driver postgres --dsn postgres://localhost/dots AbCd1234`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, logger, err := opts.load()
			if err != nil {
				return err
			}

			if opts.Driver == "" {
				opts.Driver = conf.Database.Driver
			}

			if opts.DSN == "" {
				opts.DSN = conf.Database.DSN
			}

			snapshot, err := replay(cmd.Context(), logger, opts.Driver, opts.DSN, args[0])
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")

			return encoder.Encode(snapshot)
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", "", "database driver, defaults to the configured one")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "database dsn, defaults to the configured one")

	return cmd
}

func replay(ctx context.Context, logger *slog.Logger, driver, dsn, idOrPublicID string) (*entity.Snapshot, error) {
	sqlStorage, err := storage.NewSQLStorage(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not connect to sql storage: %w", err)
	}
	defer sqlStorage.Close()

	matchRepo := repository.NewMatchRepository(sqlStorage.Connection)
	moveRepo := repository.NewMoveRepository(sqlStorage.Connection)
	state := service.NewStateReconstructor(logger, matchRepo, moveRepo, cache.NewMemory(),
		service.NewIDAllocator(logger, matchRepo))

	var match *entity.Match

	switch {
	case pkg.IsLikelyUUID(idOrPublicID):
		match, err = matchRepo.GetByID(ctx, idOrPublicID)
	case pkg.IsValidMatchID(idOrPublicID):
		match, err = matchRepo.GetByPublicID(ctx, idOrPublicID)
	default:
		err = apperror.ErrMatchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to find match %s: %w", idOrPublicID, err)
	}

	first, err := rebuildJSON(ctx, state, match)
	if err != nil {
		return nil, err
	}

	second, err := rebuildJSON(ctx, state, match)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(first, second) {
		return nil, ErrNotDeterministic
	}

	var snapshot entity.Snapshot
	if err = json.Unmarshal(first, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &snapshot, nil
}

func rebuildJSON(ctx context.Context, state *service.StateReconstructor, match *entity.Match) ([]byte, error) {
	snapshot, err := state.Rebuild(ctx, match, match.PublicIDOrEmpty())
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild match: %w", err)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return data, nil
}
