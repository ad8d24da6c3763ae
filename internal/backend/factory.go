package backend

import (
	"context"
	"fmt"
	"log/slog"

	"gofinances/internal/amqp"
	"gofinances/internal/ledger"
	"gofinances/internal/ledger/memory"
	"gofinances/internal/services"
	"gofinances/internal/storage"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store     ledger.Store
		ready     = func(context.Context) error { return nil }
		closeRepo func() error
	)

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store, ready, closeRepo = repo, repo.Ping, repo.Close
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		if config.SeedDir != "" {
			store = memory.NewFromFiles(config.SeedDir)
		} else {
			store = memory.New()
		}
		f.logger.InfoContext(ctx, "Initialized memory backend", "seed_directory", config.SeedDir)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	broker, err := f.connectBroker(ctx, config)
	if err != nil {
		if closeRepo != nil {
			closeRepo()
		}
		return nil, err
	}

	// A nil *amqp.Client must stay a nil interface so imports run inline.
	var publisher services.ImportPublisher
	closers := []func() error{closeRepo}
	if broker != nil {
		publisher = broker
		closers = append([]func() error{broker.Close}, closers...)
	}
	service := services.NewLedgerService(store, publisher, closers...)

	return &BackendResult{
		Store:   store,
		Service: service,
		Broker:  broker,
		Ready:   ready,
		Cleanup: service.Close,
	}, nil
}

func (f *DefaultFactory) connectBroker(ctx context.Context, config Config) (*amqp.Client, error) {
	if config.AMQPURL == "" {
		return nil, nil
	}

	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		if config.RequireBroker {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, importing synchronously", "error", err)
		return nil, nil
	}

	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client, nil
}
