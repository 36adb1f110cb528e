package backend

import (
	"context"
	"fmt"
	"log/slog"

	"devexpense/internal/amqp"
	"devexpense/internal/services"
	"devexpense/internal/session"
	"devexpense/internal/session/memory"
	"devexpense/internal/storage"
)

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

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, config.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	publisher := f.connectAMQP(config)
	svc := services.NewCalculatorService(repo, publisher)

	f.logger.Info("Initialized SQLite session store",
		"component", "backend",
		"db_path", config.SQLiteDBPath,
		"session_ttl", config.SessionTTL.String(),
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Service:     svc,
		Cleaner:     repo,
		Ping:        repo.Ping,
		AMQPEnabled: publisher != nil,
		Cleanup:     svc.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store := memory.New(config.MaxSessions, config.SessionTTL)

	publisher := f.connectAMQP(config)
	svc := services.NewCalculatorService(store, publisher)

	f.logger.Info("Initialized memory session store",
		"component", "backend",
		"max_sessions", config.MaxSessions,
		"session_ttl", config.SessionTTL.String(),
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Service:     svc,
		Cleaner:     store,
		Ping:        func(context.Context) error { return nil },
		AMQPEnabled: publisher != nil,
		Cleanup:     svc.Close,
	}, nil
}

// connectAMQP returns a publisher, or nil when AMQP is disabled or
// unreachable. Calculations keep working without it.
func (f *DefaultFactory) connectAMQP(config Config) session.EventPublisher {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events",
			"component", "backend", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"component", "backend",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
