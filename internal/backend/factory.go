package backend

import (
	"context"
	"fmt"

	"whomst/internal/amqp"
	"whomst/internal/log"
	"whomst/internal/services"
	"whomst/internal/store"
	"whomst/internal/store/files"
	"whomst/internal/storage"
)

var _ Factory = (*DefaultFactory)(nil)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger

	// dial opens the event publisher; tests replace it.
	dial func(url, exchange, queue string) (services.EventPublisher, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) *DefaultFactory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentStore),
		dial:   dialAMQP,
	}
}

func dialAMQP(url, exchange, queue string) (services.EventPublisher, error) {
	c, err := amqp.NewClient(url, exchange, queue)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateBackend opens the configured store and wraps it in an
// EntryService. Publishing is attached when an AMQP URL is set; a broker
// that cannot be reached only disables it.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ids := store.NewIDGenerator()
	st, err := f.openStore(config, ids)
	if err != nil {
		return nil, err
	}

	entries := services.NewEntryService(st, ids, f.publisher(ctx, config))
	return &BackendResult{
		Entries: entries,
		Cleanup: entries.Close,
	}, nil
}

func (f *DefaultFactory) openStore(config Config, ids *store.IDGenerator) (store.Store, error) {
	switch config.Type {
	case FilesBackend:
		st, err := files.New(config.DataDir, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize files store: %w", err)
		}
		f.logger.Info("Initialized files backend", "data_dir", config.DataDir)
		return st, nil
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// publisher returns nil rather than a typed nil so EntryService can tell
// publishing is off.
func (f *DefaultFactory) publisher(ctx context.Context, config Config) services.EventPublisher {
	if config.AMQPURL == "" {
		return nil
	}
	pub, err := f.dial(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return pub
}
