package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"spycats/internal/adapters/httpapi"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg.HTTPAddr, cfg.ShutdownTimeout, func(ctx context.Context) (*app, error) {
				return newApp(ctx, cfg)
			})
		},
	}
}

// serve runs the API until ctx is cancelled, then drains in-flight requests
// for at most shutdownTimeout.
func serve(ctx context.Context, addr string, shutdownTimeout time.Duration, build func(context.Context) (*app, error)) error {
	a, err := build(ctx)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.New(a.svc, httpapi.WithLogger(a.log), httpapi.WithRegistry(a.registry)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("addr", addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("http shutdown incomplete")
	}
	if err := a.close(shutdownCtx); err != nil {
		a.logger.WithFields(logrus.Fields{"error": err.Error()}).Error("release resources")
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}
