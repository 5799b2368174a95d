package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/taskvault/taskvault-api/internal/config"
	"github.com/taskvault/taskvault-api/internal/platform/logger"
	"github.com/taskvault/taskvault-api/internal/platform/postgres"
	"github.com/taskvault/taskvault-api/internal/platform/redis"
	"github.com/taskvault/taskvault-api/internal/service"
	"github.com/taskvault/taskvault-api/internal/service/auth"
	"github.com/taskvault/taskvault-api/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	cache  *redis.Cache

	// Stores (using interfaces for proper abstraction)
	userStore store.UserStore
	taskStore store.TaskStore

	// Service interfaces
	jwtService     auth.JWTService
	accountService service.AccountService
	taskService    service.TaskService
}

// newApplication loads configuration and wires all application components.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"ratelimit_enabled", cfg.RateLimit.Enabled)

	db, err := setupDatabase(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, log); err != nil {
		return nil, err
	}

	var cache *redis.Cache
	if cfg.RateLimit.Enabled {
		cache, err = redis.New(ctx, cfg.RateLimit.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("redis connection established")
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	userStore := postgres.NewPostgresUserStore(db, log)
	taskStore := postgres.NewPostgresTaskStore(db, log)

	app := &application{
		config:     cfg,
		logger:     log,
		db:         db,
		cache:      cache,
		userStore:  userStore,
		taskStore:  taskStore,
		jwtService: jwtService,
		accountService: service.NewAccountService(
			userStore,
			auth.NewBcryptHasher(cfg.Auth.BCryptCost),
			auth.NewBcryptVerifier(),
			db,
			log,
		),
		taskService: service.NewTaskService(taskStore, db, log),
	}

	return app, nil
}

// close releases the application's long-lived resources.
func (app *application) close() {
	if app.cache != nil {
		if err := app.cache.Close(); err != nil {
			app.logger.Error("failed to close redis client", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database connection", "error", err)
	}
}
