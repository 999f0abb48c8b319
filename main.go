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

	"github.com/isdelr/ender-local/internal/api"
	"github.com/isdelr/ender-local/internal/auth"
	"github.com/isdelr/ender-local/internal/config"
	"github.com/isdelr/ender-local/internal/database"
	"github.com/isdelr/ender-local/internal/logger"
	"github.com/isdelr/ender-local/internal/models"
	"github.com/isdelr/ender-local/internal/monitoring"
	"github.com/isdelr/ender-local/internal/services"
	"github.com/isdelr/ender-local/internal/system"
	"github.com/isdelr/ender-local/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	// Ensure the base directory for server data exists
	if err := os.MkdirAll(cfg.ServersRoot, 0o755); err != nil {
		log.Fatal().Err(err).Str("path", cfg.ServersRoot).Msg("Failed to create base server data directory")
	}
	models.SetServersRoot(cfg.ServersRoot)

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run(ctx)

	// Set up services
	host := system.NewHost(cfg.ServersRoot)
	eventService := services.NewEventService(db)
	serverService := services.NewServerService(db, hub, eventService, host, services.NewStatusTracker())
	backupService := services.NewBackupService(db, serverService, eventService, cfg.BackupPath)

	// Set up and run the background stats updater
	statUpdater := monitoring.NewStatUpdater(serverService, eventService, host, hub, cfg.StatsInterval)
	go statUpdater.Run(ctx)

	// Set up and run the backup scheduler
	scheduler, err := monitoring.NewScheduler(cfg.BackupSchedule, backupService, eventService)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up backup scheduler")
	}
	scheduler.Start()

	authenticator := auth.NewAuthenticator(cfg.JWTSecret, cfg.AdminPasswordHash)
	if !authenticator.Enabled() {
		log.Warn().Msg("JWT_SECRET is not set; the API is unauthenticated")
	}

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Hub:            hub,
		Auth:           authenticator,
		Servers:        serverService,
		Backups:        backupService,
		Events:         eventService,
		Scheduler:      scheduler,
		Host:           host,
		AllowedOrigins: cfg.AllowedOrigins,
		SecureCookies:  cfg.SecureCookies,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("servers_root", cfg.ServersRoot).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Backup still running at shutdown")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
