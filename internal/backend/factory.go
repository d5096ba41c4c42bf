package backend

import (
	"context"
	"errors"
	"fmt"

	"freelance/internal/amqp"
	"freelance/internal/analytics"
	"freelance/internal/cache"
	"freelance/internal/config"
	"freelance/internal/log"
	"freelance/internal/ports"
	"freelance/internal/storage"
	"freelance/internal/storage/memory"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(cfg)
	if err != nil {
		return nil, err
	}
	b := &Backend{Store: store}

	statsCache, closeCache, err := f.createStatsCache(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	b.StatsCache = statsCache

	// AMQP is optional: a broker outage must not keep the API down.
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without invoice events", log.FieldError, err)
		} else {
			b.Events = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	b.Cleanup = func() error {
		var errs []error
		if b.Events != nil {
			if err := b.Events.Close(); err != nil {
				errs = append(errs, fmt.Errorf("amqp: %w", err))
			}
		}
		if closeCache != nil {
			if err := closeCache(); err != nil {
				errs = append(errs, fmt.Errorf("cache: %w", err))
			}
		}
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
		return errors.Join(errs...)
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		"type", cfg.Type,
		"cache", cacheName(cfg.CacheBackend),
		"amqp_enabled", b.Events != nil)
	return b, nil
}

func (f *DefaultFactory) createStore(cfg Config) (ports.Store, error) {
	switch cfg.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		return repo, nil
	case MemoryBackend:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
}

func (f *DefaultFactory) createStatsCache(ctx context.Context, cfg Config) (cache.Cache[analytics.Stats], func() error, error) {
	if cfg.CacheBackend == config.BackendRedis {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Redis cache: %w", err)
		}
		return cache.NewRedisCache[analytics.Stats](rdb, "freelance:", cfg.StatsCacheTTL, f.logger), rdb.Close, nil
	}
	size := cfg.StatsCacheMax
	if size <= 0 {
		size = 1000
	}
	return cache.NewLRUCache[analytics.Stats](size, cfg.StatsCacheTTL), nil, nil
}

func cacheName(backend string) string {
	if backend == "" {
		return config.BackendMemory
	}
	return backend
}
