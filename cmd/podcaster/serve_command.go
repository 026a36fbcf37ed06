package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thinkscotty/podcaster/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daily scheduler and the trigger API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("Starting podcaster", "version", version, "pipeline", cfg.Pipeline.Name, "environment", cfg.Pipeline.Environment)

			schedDone := make(chan struct{})
			go func() {
				defer close(schedDone)
				a.scheduler.Run(runCtx)
			}()

			srv := server.New(runCtx, cfg, a.scheduler, a.db, a.blobs, logger)
			go func() {
				<-runCtx.Done()
				logger.Info("Shutting down...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Server shutdown", "error", err)
				}
			}()

			err = srv.Start()
			stop()
			<-schedDone
			a.scheduler.Wait()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}
