package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/janhq/mention-agent/internal/config"
	"github.com/janhq/mention-agent/internal/domain/notification"
	"github.com/janhq/mention-agent/internal/infrastructure/cache"
	"github.com/janhq/mention-agent/internal/infrastructure/database"
	"github.com/janhq/mention-agent/internal/infrastructure/history"
	"github.com/janhq/mention-agent/internal/interfaces/httpserver"
)

// Storage holds the processor's state stores. Redis and Postgres are
// optional; without them state lives in process memory.
type Storage struct {
	Watermark notification.WatermarkStore
	Lock      notification.PassLock
	History   notification.History
	Checks    []httpserver.ReadinessCheck

	closers []func() error
}

// NewStorage connects the configured backends.
func NewStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Storage, error) {
	s := &Storage{}

	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, log)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, redisCache.Close)
		s.Watermark = cache.NewWatermarkStore(redisCache, time.Time{})
		s.Lock = cache.NewPassLock(redisCache, cfg.PassLockTTL)
		s.Checks = append(s.Checks, httpserver.ReadinessCheck{Name: "redis", Check: redisCache.HealthCheck})
	} else {
		log.Warn().Msg("REDIS_URL not set, watermark kept in memory")
		s.Watermark = notification.NewMemoryWatermark(time.Time{})
	}

	if cfg.DatabaseURL != "" {
		db, err := connectDatabase(ctx, cfg, log)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() error { return database.Close(db) })
		pg, err := history.NewPostgres(db, cfg.HistoryCacheSize, log)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.History = pg
		s.Checks = append(s.Checks, httpserver.ReadinessCheck{
			Name:  "database",
			Check: func(context.Context) error { return database.Ping(db) },
		})
	} else {
		log.Warn().Msg("DATABASE_URL not set, reply history kept in memory")
		mem, err := history.NewMemory(cfg.HistoryCacheSize)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.History = mem
	}

	return s, nil
}

// Close releases every backend, newest first.
func (s *Storage) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func connectDatabase(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
