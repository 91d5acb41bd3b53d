package app

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lesson_scheduler/internal/config"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository"
	"github.com/Freeeeeet/lesson_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/lesson_scheduler/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type repositories struct {
	availability service.AvailabilityRepository
	bookings     service.BookingRepository
	profiles     service.ProfileRepository
}

// OpenPool подключается к Postgres и проверяет соединение
func OpenPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DB_DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.DBMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories, func(), error) {
	if cfg.Storage == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart")
		return repositories{
			availability: memory.NewAvailabilityRepository(),
			bookings:     memory.NewBookingRepository(),
			profiles:     memory.NewProfileRepository(),
		}, func() {}, nil
	}

	pool, err := OpenPool(ctx, cfg)
	if err != nil {
		return repositories{}, nil, err
	}

	if cfg.AutoMigrate {
		migrator, err := NewMigrator(pool, logger)
		if err != nil {
			pool.Close()
			return repositories{}, nil, err
		}
		err = migrator.Up(ctx)
		migrator.Close()
		if err != nil {
			pool.Close()
			return repositories{}, nil, err
		}
	}

	return repositories{
		availability: repository.NewAvailabilityRepository(pool),
		bookings:     repository.NewBookingRepository(pool),
		profiles:     repository.NewProfileRepository(pool),
	}, pool.Close, nil
}
