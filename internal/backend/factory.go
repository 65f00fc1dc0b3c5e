package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/amqp"
	"conti/internal/cache"
	"conti/internal/config"
	"conti/internal/core"
	"conti/internal/events"
	"conti/internal/events/kafka"
	"conti/internal/storage/memory"
	"conti/internal/storage/sqlstore"
)

const summaryCachePrefix = "conti:summary:"

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*StoreResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		store, err := sqlstore.OpenSQLite(ctx, config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &StoreResult{Store: store, Cleanup: store.Close}, nil

	case PostgresBackend:
		store, err := sqlstore.OpenPostgres(ctx, config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return &StoreResult{Store: store, Cleanup: store.Close}, nil

	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return &StoreResult{Store: memory.New()}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CreatePublisher returns the event sink selected by EVENTS_BACKEND. An
// unreachable AMQP broker degrades to no publishing, as event delivery
// never decides the outcome of a request.
func (f *DefaultFactory) CreatePublisher(_ context.Context, appConfig *config.Config) (events.Publisher, error) {
	switch appConfig.EventsBackend {
	case config.EventsNone, "":
		return events.Nop{}, nil

	case config.EventsAMQP:
		client, err := amqp.NewClient(appConfig.AMQPURL, appConfig.AMQPExchange, appConfig.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
			return events.Nop{}, nil
		}
		f.logger.Info("Initialized AMQP client",
			"exchange", appConfig.AMQPExchange,
			"queue", appConfig.AMQPQueue)
		return client, nil

	case config.EventsKafka:
		f.logger.Info("Initialized Kafka publisher",
			"brokers", appConfig.KafkaBrokers,
			"topic", appConfig.KafkaTopic)
		return kafka.NewPublisher(appConfig.KafkaBrokers, appConfig.KafkaTopic), nil

	default:
		return nil, fmt.Errorf("unsupported events backend: %s", appConfig.EventsBackend)
	}
}

// CreateSummaryCache returns a Redis cache when REDIS_ADDR is set and an
// in-process LRU otherwise. The LRU is swept by a cache.Manager.
func (f *DefaultFactory) CreateSummaryCache(ctx context.Context, appConfig *config.Config) (*SummaryCacheResult, error) {
	if appConfig.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, appConfig.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis summary cache: %w", err)
		}
		f.logger.Info("Initialized Redis summary cache", "addr", appConfig.RedisAddr, "ttl", appConfig.SummaryCacheTTL)
		return &SummaryCacheResult{
			Cache:   cache.NewRedisCache[core.Summary](client, summaryCachePrefix, appConfig.SummaryCacheTTL),
			Cleanup: client.Close,
		}, nil
	}

	lru := cache.NewLRUCache[core.Summary](appConfig.SummaryCacheSize, appConfig.SummaryCacheTTL)
	manager := cache.NewManager()
	manager.Register(lru)
	manager.StartCleanup(sweepInterval(appConfig.SummaryCacheTTL))

	f.logger.Info("Initialized in-memory summary cache",
		"size", appConfig.SummaryCacheSize,
		"ttl", appConfig.SummaryCacheTTL)
	return &SummaryCacheResult{
		Cache: lru,
		Cleanup: func() error {
			manager.Stop()
			return nil
		},
	}, nil
}

func sweepInterval(ttl time.Duration) time.Duration {
	if ttl < 2*time.Second {
		return time.Second
	}
	return ttl / 2
}
