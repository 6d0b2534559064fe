package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/hotspot/internal/config"
	"github.com/roach88/hotspot/internal/persist"
	"github.com/roach88/hotspot/internal/rowstore"
	"github.com/roach88/hotspot/internal/rowstore/postgres"
	"github.com/roach88/hotspot/internal/rowstore/sqlite"
	"github.com/roach88/hotspot/internal/session"
)

// env is the runtime a command works in: configuration, logger, row store
// and the adapter over it.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  rowstore.Client
	adapter *persist.Adapter
}

// loadConfig reads --config and applies flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.DSN != "" {
		cfg.RowStore.DSN = opts.DSN
		if err := cfg.Validate(); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --dsn", err)
		}
	}
	return cfg, nil
}

// newLogger builds the slog logger for cfg. --verbose lowers the level to
// debug.
func newLogger(cfg *config.Config, verbose bool, w io.Writer) *slog.Logger {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// openRowStore opens the row-store backend named by dsn.
func openRowStore(ctx context.Context, dsn string) (rowstore.Client, error) {
	backend, err := config.Backend(dsn)
	if err != nil {
		return nil, err
	}
	switch backend {
	case "memory":
		return rowstore.NewMemory(), nil
	case "sqlite":
		s, err := sqlite.OpenDSN(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported row-store backend %q", backend)
}

// openEnv loads the configuration and opens the row store. The caller must
// call close.
func openEnv(ctx context.Context, opts *RootOptions, logOut io.Writer) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, opts.Verbose, logOut)

	client, err := openRowStore(ctx, cfg.RowStore.DSN)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open row store "+redact(cfg.RowStore.DSN), err)
	}
	logger.Debug("row store opened", "dsn", redact(cfg.RowStore.DSN))

	adapter := persist.New(client,
		persist.WithBatchSize(cfg.Persist.BatchSize),
		persist.WithLogger(logger),
	)
	return &env{cfg: cfg, logger: logger, client: client, adapter: adapter}, nil
}

func (e *env) close() error {
	return e.client.Close()
}

// sessionOptions returns the editing-session options of the configuration.
func (e *env) sessionOptions() session.Options {
	return session.Options{
		MaxHotspots:   e.cfg.Store.MaxHotspotsPerSlide,
		PositionDelay: e.cfg.Sync.PositionDebounce,
		EditDelay:     e.cfg.Sync.EditDebounce,
		Logger:        e.logger,
	}
}

// redact hides the password of a postgres DSN.
func redact(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPassword := strings.Cut(creds, ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":***@" + host
}
