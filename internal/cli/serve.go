package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hotspot/internal/httpapi"
	"github.com/roach88/hotspot/internal/session"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string // overrides http.addr
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the editing API",
		Long: `Serve the REST editing API and the websocket event stream.

Sessions are opened per project on first use. On SIGINT or SIGTERM the
server stops accepting requests and every open session is saved before
exit.

Examples:
  hotspot serve
  hotspot serve --addr :9090 --dsn sqlite://tours.db
  hotspot serve --config hotspot.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address, overrides http.addr")
	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	e, err := openEnv(ctx, opts.RootOptions, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.close()

	addr := e.cfg.HTTP.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}

	sessions := session.NewManager(e.adapter, e.sessionOptions())
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.NewServer(sessions, e.logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		e.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitCommandError, "server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	e.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		e.logger.Error("http shutdown failed", "error", err)
	}
	if err := sessions.CloseAll(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "failed to save open sessions", err)
	}
	return nil
}
