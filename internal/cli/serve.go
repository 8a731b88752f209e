package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/bugzapp/internal/api"
	"github.com/roach88/bugzapp/internal/submission"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the submission worker and the HTTP API",
		Long: `Start the submission worker and an HTTP server exposing stored runs,
bug reports and submissions under /api, plus Prometheus metrics on /metrics.

Submissions left running by a previous process are queued again on start.

Examples:
  bugzapp serve
  bugzapp serve --addr 127.0.0.1:8080 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config, QA_UI_PORT)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	addr := opts.Addr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	st, err := a.openStorage()
	if err != nil {
		return err
	}
	defer closeStorage(st, a.logger)

	metrics := submission.NewMetrics("bugzapp")
	queue, err := a.newQueue(st, metrics)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	if err := queue.Initialize(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to load submissions", err)
	}

	server := &http.Server{
		Handler: api.New(api.Options{
			Storage:     st,
			Queue:       queue,
			Publisher:   a.newPublisher(),
			Metrics:     metrics.Handler(),
			EvidenceDir: a.cfg.Runner.EvidenceDir,
			Logger:      a.logger,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen on "+addr, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", listener.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := queue.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		a.logger.Info("http server starting", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		queue.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	a.logger.Info("stopped gracefully")
	return nil
}
