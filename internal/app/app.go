// Package app wires configuration into repositories and services. The HTTP
// server and the vipctl commands share it.
package app

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"wallpaper/vipcenter/internal/config"
	"wallpaper/vipcenter/internal/event"
	"wallpaper/vipcenter/internal/model"
	"wallpaper/vipcenter/internal/repository"
	"wallpaper/vipcenter/internal/service"
)

type App struct {
	DB        *gorm.DB
	State     repository.StateStore
	Publisher event.Publisher

	Quota      service.QuotaService
	Redemption service.RedemptionService
	Codes      service.CodeService
	Sweeper    service.Sweeper

	closers []func() error
}

// openPostgres is swapped in tests.
var openPostgres = config.NewPostgresDB

// New connects to PostgreSQL and the configured state and event backends.
// Connections opened before a failing step are closed again.
func New(cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	db, err := openPostgres(cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}

	var closers []func() error
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		closers = append(closers, sqlDB.Close)
	}
	defer func() {
		if err != nil {
			closeAll(closers)
		}
	}()

	if cfg.Database.Postgres.AutoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
		logger.Info("database migration completed")
	}

	var stateStore repository.StateStore
	switch cfg.State.Backend {
	case "redis":
		redisClient, err := config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			return nil, err
		}
		stateStore = repository.NewRedisStateStore(redisClient)
		closers = append(closers, redisClient.Close)
		logger.Info("using Redis state store")
	default:
		stateStore = repository.NewMemoryStateStore()
		logger.Info("using in-memory state store")
	}

	a, err := NewWithDB(cfg, db, stateStore, logger)
	if err != nil {
		return nil, err
	}
	// Publisher first, then Redis, then the pool.
	for k := len(closers) - 1; k >= 0; k-- {
		a.closers = append(a.closers, closers[k])
	}
	return a, nil
}

// NewWithDB builds the services on an already open database.
func NewWithDB(cfg *config.Config, db *gorm.DB, stateStore repository.StateStore, logger *zap.Logger) (*App, error) {
	publisher, err := event.NewPublisher(cfg.Events, logger)
	if err != nil {
		return nil, fmt.Errorf("event publisher: %w", err)
	}

	repos := repository.NewRepositories(db)
	transactor := repository.NewTransactor(db)
	policy := service.PolicyFromConfig(cfg.Membership)
	now := service.SystemClock

	downloads := service.NewDownloadLogger(repos.Downloads, stateStore, publisher, now, logger)
	return &App{
		DB:         db,
		State:      stateStore,
		Publisher:  publisher,
		Quota:      service.NewQuotaService(repos.Users, transactor, downloads, publisher, policy, now, logger),
		Redemption: service.NewRedemptionService(repos.Codes, transactor, stateStore, publisher, policy, now, logger),
		Codes:      service.NewCodeService(repos.Codes, repos.Users, publisher, policy, now, logger),
		Sweeper:    service.NewSweeper(repos.Users, repos.Codes, transactor, publisher, policy, cfg.Sweeper.BatchSize, now, logger),
		closers:    []func() error{publisher.Close},
	}, nil
}

// Close releases the publisher and connections, first error wins.
func (a *App) Close() error {
	return closeAll(a.closers)
}

func closeAll(closers []func() error) error {
	var first error
	for _, closeFn := range closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
