package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/socialnet/socket/config"
	"github.com/socialnet/socket/providers"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path, cmd.Flags())
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := providers.NewServer(cfg, logger)
			if err := srv.Activate(ctx); err != nil {
				return err
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()

			select {
			case <-ctx.Done():
				logger.Info().Msg("shutdown signal received")
			case err = <-errCh:
				logger.Error().Err(err).Msg("server stopped")
			}

			if derr := srv.Deactivate(); derr != nil {
				err = errors.Join(err, derr)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().String("addr", ":5000", "listen address")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("auth-mode", config.AuthOff, "identity binding: off or enforce")
	return cmd
}
