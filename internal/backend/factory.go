package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/notify"
	"ledger/internal/services"
	"ledger/internal/storage"
)

const (
	defaultCacheSize = 1000
	defaultCacheTTL  = time.Hour
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the store, connects the reminder sender and wires
// the services on top of them.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(config)
	if err != nil {
		return nil, err
	}

	sender, closeSender, err := f.openSender(config)
	if err != nil {
		store.Close()
		return nil, err
	}

	b := Wire(store, sender, f.logger, config)

	f.logger.InfoContext(ctx, "Initialized ledger backend",
		"store", config.Type,
		"amqp_enabled", config.AMQPURL != "")

	cleanup := func() error {
		var errs []error
		if closeSender != nil {
			if err := closeSender(); err != nil {
				errs = append(errs, fmt.Errorf("amqp: %w", err))
			}
		}
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
		return errors.Join(errs...)
	}
	return &BackendResult{Backend: b, Cleanup: cleanup}, nil
}

// Wire builds the services over an open store and sender.
func Wire(store *storage.Store, sender notify.Sender, logger *log.Logger, config Config) *Backend {
	size, ttl := config.CategoryCacheSize, config.CategoryCacheTTL
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	categoryCache := cache.NewLRUCache[core.Category](size, ttl)
	caches := cache.NewManager()
	caches.Register(categoryCache)
	resolver := services.NewCategoryResolver(categoryCache)

	return &Backend{
		Store:         store,
		Sender:        sender,
		Caches:        caches,
		Ledger:        services.NewLedgerService(store, resolver, logger),
		Transfers:     services.NewTransferService(store, resolver, logger),
		Interest:      services.NewInterestService(store, resolver, logger, config.ItemTimeout),
		Notifications: services.NewNotificationService(store, sender, logger, config.ReminderWindow, config.ItemTimeout),
	}
}

func (f *DefaultFactory) openStore(config Config) (*storage.Store, error) {
	switch config.Type {
	case SQLiteStore:
		store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return store, nil
	case PostgresStore:
		store, err := storage.NewPostgresStore(config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
		}
		f.logger.Info("Initialized Postgres store")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}

func (f *DefaultFactory) openSender(config Config) (notify.Sender, func() error, error) {
	if config.AMQPURL == "" {
		f.logger.Warn("AMQP not configured, reminders stay in the in-process outbox")
		return notify.NewOutbox(), nil, nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client, client.Close, nil
}
