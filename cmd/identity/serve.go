// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TechieKraft Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/techiekraft/identity/internal/auth"
	authpg "github.com/techiekraft/identity/internal/auth/postgres"
	"github.com/techiekraft/identity/internal/config"
	"github.com/techiekraft/identity/internal/httpapi"
	"github.com/techiekraft/identity/internal/logging"
	"github.com/techiekraft/identity/internal/observability"
	"github.com/techiekraft/identity/internal/store"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the identity HTTP service",
		Long: `Start the identity service: connects to PostgreSQL, ensures the
session schema exists, and serves the /api/auth HTTP surface.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	// Dotted flag names override the matching config file keys.
	cmd.Flags().String("http.addr", "", "HTTP API listen address")
	cmd.Flags().String("metrics.addr", "", "metrics/health HTTP address")
	cmd.Flags().Bool("metrics.enabled", true, "enable the metrics/health server")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("log.format", "", "log format (json or text)")
	cmd.Flags().Duration("session.ttl", 0, "session lifetime")
	cmd.Flags().Bool("session.cookie_secure", false, "set the Secure flag on session cookies")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("identity", version, cfg.Log.Format)
	logger := slog.Default()

	logger.Info("starting identity service",
		"http_addr", cfg.HTTP.Addr,
		"metrics_enabled", cfg.Metrics.Enabled,
		"log_format", cfg.Log.Format,
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := authpg.NewUserRepository(pool)
	sessions := authpg.NewSessionRepository(pool)

	// The session table is created on demand; the users table comes from
	// migrations (identity migrate up).
	if err := sessions.EnsureSchema(ctx); err != nil {
		return err
	}

	service, err := auth.NewServiceWithLogger(users, sessions, auth.NewScryptHasher(), cfg.Session.TTL, logger)
	if err != nil {
		return err
	}

	// Start observability server first so readiness reflects the API server.
	var obsServer *observability.Server
	var metrics *observability.Metrics
	var apiReady atomic.Bool
	// Ready means the API server is up and the database answers a ping.
	readyCheck := func() bool {
		if !apiReady.Load() {
			return false
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		defer pingCancel()
		return pool.Ping(pingCtx) == nil
	}
	if cfg.Metrics.Enabled {
		obsServer = observability.NewServer(cfg.Metrics.Addr, readyCheck)
		obsErrCh, obsErr := obsServer.Start()
		if obsErr != nil {
			return obsErr
		}
		metrics = obsServer.Metrics()
		go func() {
			if serveErr := <-obsErrCh; serveErr != nil {
				logger.Error("observability server failed", "error", serveErr)
				cancel()
			}
		}()
	}

	reaperCfg := auth.ReaperConfig{
		Interval: cfg.Session.ReapInterval,
		Logger:   logger,
	}
	if metrics != nil {
		reaperCfg.OnReaped = metrics.RecordSessionsReaped
	}
	reaper, err := auth.NewReaper(sessions, reaperCfg)
	if err != nil {
		return err
	}
	if err := reaper.Start(); err != nil {
		return err
	}

	var recorder httpapi.MetricsRecorder
	if metrics != nil {
		recorder = metrics
	}
	apiServer, err := httpapi.NewServer(httpapi.Config{
		Addr:         cfg.HTTP.Addr,
		CookieName:   cfg.Session.CookieName,
		CookieSecure: cfg.Session.CookieSecure,
	}, service, recorder, logger)
	if err != nil {
		return err
	}

	apiErrCh, err := apiServer.Start()
	if err != nil {
		return err
	}
	apiReady.Store(true)
	go func() {
		if serveErr := <-apiErrCh; serveErr != nil {
			logger.Error("http server failed", "error", serveErr)
			cancel()
		}
	}()

	cmd.Println("Identity service started")
	logger.Info("identity service ready", "addr", apiServer.Addr())

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	if err := reaper.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping session reaper", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}
