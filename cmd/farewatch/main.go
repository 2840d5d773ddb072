/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/farewatch/internal/config"
	"github.com/friendsincode/farewatch/internal/db"
	"github.com/friendsincode/farewatch/internal/logging"
	"github.com/friendsincode/farewatch/internal/server"
	"github.com/friendsincode/farewatch/internal/store"
	"github.com/friendsincode/farewatch/internal/version"
)

var (
	logger  zerolog.Logger
	cfg     *config.Config
	envFile string
)

var rootCmd = &cobra.Command{
	Use:           "farewatch",
	Short:         "Farewatch - ride price sampling on a weekly timetable",
	Long:          "Farewatch queries a ride-pricing API for registered routes at the weekday times of their schedules and stores the quotes for later analysis.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admin API and the sampling loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), server.ModeAll)
	},
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run only the admin API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), server.ModeAPI)
	},
}

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run only the sampling loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), server.ModeScheduler)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional file of KEY=value pairs loaded before the environment is read")
	rootCmd.AddCommand(serveCmd, apiCmd, schedulerCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.LoadWithEnvFile(envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func runServer(ctx context.Context, mode server.Mode) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Str("mode", mode.String()).Msg("farewatch starting")

	srv, err := server.New(cfg, mode, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}
	srv.Start()

	httpServer := srv.HTTPServer()
	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("farewatch stopped")
	return runErr
}

// openStore connects to the database for one-shot commands.
func openStore() (*store.Store, func(), error) {
	database, err := initDatabase()
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, nil, err
	}
	return store.New(database, nil, logger), func() { _ = db.Close(database) }, nil
}

// initDatabase initializes the database connection (used by one-shot commands)
func initDatabase() (*gorm.DB, error) {
	return db.Connect(cfg)
}
