package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func serveCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the redemption sweeper",
		Long: `Open the database, apply migrations, load the seed file (if configured),
then serve the HTTP API. Stalled redemptions are swept on the configured
schedule. SIGINT / SIGTERM trigger a graceful shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.seed(ctx); err != nil {
				return err
			}

			if cfg.Sweep.Enabled {
				if err := a.sweeper.Start(cfg.Sweep.Schedule); err != nil {
					return err
				}
			}

			srv := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:      a.router(),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("http server listening", "addr", srv.Addr, "version", Version)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("http server failed: %w", err)
				}
			case <-ctx.Done():
				logger.Info("shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown failed", "error", err)
			}
			if err := a.sweeper.Stop(shutdownCtx); err != nil {
				logger.Error("sweeper shutdown failed", "error", err)
			}
			return nil
		},
	}
}
