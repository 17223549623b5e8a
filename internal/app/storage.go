package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/aliskhannn/lingua-streak-bot/internal/config"
	"github.com/aliskhannn/lingua-streak-bot/internal/infra/postgres"
	"github.com/aliskhannn/lingua-streak-bot/internal/infra/postgres/repository"
	"github.com/aliskhannn/lingua-streak-bot/internal/infra/sqlite"
	"github.com/aliskhannn/lingua-streak-bot/internal/service"
	"github.com/aliskhannn/lingua-streak-bot/internal/storage"
)

// Storage is an opened, migrated database behind a service.Transactor.
type Storage struct {
	Driver     string
	Transactor service.Transactor
	close      func()
}

func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStorage connects to the configured database and applies the schema.
func OpenStorage(ctx context.Context, cfg config.DB, logger *zap.Logger) (*Storage, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("sqlite database opened", zap.String("path", cfg.SQLitePath))

		return &Storage{
			Driver:     cfg.Driver,
			Transactor: sqlite.NewTransactor(db),
			close:      func() { _ = db.Close() },
		}, nil

	case config.DriverPostgres:
		dsn, err := cfg.DSN()
		if err != nil {
			return nil, err
		}
		pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{
			MaxConns:        int32(cfg.MaxConnections),
			MaxConnLifetime: cfg.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("postgres pool ready", zap.Int("max_connections", cfg.MaxConnections))

		return &Storage{
			Driver:     cfg.Driver,
			Transactor: repository.NewUnitOfWork(postgres.NewTransactor(pool)),
			close:      pool.Close,
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.Driver)
}

// NewStreakService builds the engine from configuration.
func NewStreakService(cfg config.Streak, tr service.Transactor, pending *storage.PendingStorage, logger *zap.Logger) *service.StreakService {
	return service.NewStreakService(tr, pending, service.SystemClock{}, service.Options{
		Policy:       cfg.Policy(),
		PendingTTL:   cfg.PendingActionTTL,
		MaxTxRetries: cfg.MaxTxRetries,
	}, logger.Named("streak"))
}
