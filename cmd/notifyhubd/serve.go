package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/nodalsync/configsync/internal/config"
	"github.com/nodalsync/configsync/internal/di"
	"github.com/nodalsync/configsync/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the standalone notification server",
	Long: `Start a long-poll Notification Server (C8) counterpart, so
cmd/configsyncd (or any Apollo-protocol client) has something to talk to
during local integration testing.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		log.Error().Err(err).Str("path", cfgFile).Msg("notifyhubd: failed to load config")
		return err
	}

	logger, err := di.NewZerologLogger(cfg.Logging)
	if err != nil {
		log.Error().Err(err).Msg("notifyhubd: failed to initialize logger")
		return err
	}
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger

	srv := server.New(server.Config{
		Listen:                 cfg.Server.Listen,
		HoldTimeout:            cfg.Server.GetHoldTimeout(),
		MaxConcurrentLongPolls: cfg.Server.MaxConcurrentLongPolls,
	}, &logger)

	return runWithGracefulShutdown(srv, &logger)
}

// runWithGracefulShutdown starts srv in the background and blocks until
// either it fails to start or a SIGINT/SIGTERM arrives, in which case it
// gives the server 30s to drain parked long-polls before returning.
func runWithGracefulShutdown(srv *server.Server, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Msg("notifyhubd: serving")
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigint)

	select {
	case err := <-errCh:
		return err
	case <-sigint:
		logger.Info().Msg("notifyhubd: shutting down...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("notifyhubd: shutdown error")
		return err
	}
	return nil
}
