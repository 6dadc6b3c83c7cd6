// Linksync - Link Analytics Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/linksync

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/linksync/internal/api"
	"github.com/tomtom215/linksync/internal/assignment"
	"github.com/tomtom215/linksync/internal/auth"
	"github.com/tomtom215/linksync/internal/authz"
	"github.com/tomtom215/linksync/internal/config"
	"github.com/tomtom215/linksync/internal/database"
	"github.com/tomtom215/linksync/internal/events"
	"github.com/tomtom215/linksync/internal/logging"
	"github.com/tomtom215/linksync/internal/models"
	"github.com/tomtom215/linksync/internal/provider"
	"github.com/tomtom215/linksync/internal/registry"
	"github.com/tomtom215/linksync/internal/scheduler"
	"github.com/tomtom215/linksync/internal/supervisor"
	"github.com/tomtom215/linksync/internal/supervisor/services"
	"github.com/tomtom215/linksync/internal/sync"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // sequential wiring
func main() {
	mintToken := flag.Bool("mint-token", false, "print a signed API token and exit")
	role := flag.String("role", auth.RoleViewer, "role for -mint-token (viewer or admin)")
	subject := flag.String("subject", "operator", "subject for -mint-token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	if *mintToken {
		if err := printToken(os.Stdout, cfg, *subject, *role); err != nil {
			logging.Fatal().Err(err).Msg("Failed to mint token")
		}
		return
	}

	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("nats", cfg.NATS.Enabled).
		Msg("Starting Linksync")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	resolveCache, err := registry.OpenResolveCache(cfg.Cache.Path, cfg.Cache.TTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open resolve cache")
	}
	defer func() {
		if err := resolveCache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing resolve cache")
		}
	}()

	client, err := provider.NewHTTPClient(&cfg.Provider)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize provider client")
	}

	bus, err := events.New(ctx, &cfg.NATS)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}

	normalizer := registry.NewNormalizer(cfg.Provider.ShortDomains, client, resolveCache)
	links := registry.New(db, normalizer, bus.Publisher())
	assignments := assignment.New(db)
	orchestrator := sync.New(cfg.Sync, db, links, client, bus.Publisher())

	var sched *scheduler.Scheduler
	if cfg.Sync.ScheduleEnabled {
		sched, err = scheduler.New(cfg.Sync.Schedule, func(ctx context.Context) (*models.SyncRun, error) {
			return orchestrator.Trigger(ctx, models.TriggerScheduled)
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize scheduler")
		}
	} else {
		logging.Info().Msg("Scheduled sync disabled (SYNC_SCHEDULE_ENABLED=false)")
	}

	var jwtManager *auth.JWTManager
	if cfg.Security.AuthMode == "jwt" {
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
	} else {
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none): every caller acts as admin")
	}
	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin (CORS_ORIGINS=*); set explicit origins in production")
	}

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization")
	}

	handler := api.NewHandler(api.Dependencies{
		Links:       links,
		Assignments: assignments,
		Snapshots:   db,
		Sync:        orchestrator,
		DB:          db,
		Components: map[string]func() bool{
			"event_bus": bus.IsRunning,
			"scheduler": func() bool { return sched == nil || !sched.NextRun().IsZero() },
		},
		Version: version,
	})
	router := api.NewRouter(handler, jwtManager, cfg.Security.AuthMode, enforcer,
		api.ChiMiddlewareConfigFromSecurity(&cfg.Security))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  2 * cfg.Server.ShutdownTimeout,
	})

	tree.AddMessagingService(services.NewRunnerService("event-bus", bus, cfg.Server.ShutdownTimeout))

	var schedService services.Scheduler
	if sched != nil {
		schedService = sched
	}
	tree.AddSyncService(services.NewSyncService(schedService, orchestrator.Wait, cfg.Server.ShutdownTimeout))

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("Linksync ready")

	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree stopped unexpectedly")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}
	logging.Info().Msg("Linksync stopped")
}

func printToken(w io.Writer, cfg *config.Config, subject, role string) error {
	manager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return err
	}
	token, err := manager.GenerateToken(subject, role)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
