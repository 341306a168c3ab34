package backend

import (
	"context"
	"errors"
	"fmt"

	"posreports/internal/amqp"
	"posreports/internal/core"
	"posreports/internal/log"
	"posreports/internal/sheets"
	gsheet "posreports/internal/sheets/google"
	"posreports/internal/sheets/memory"
	"posreports/internal/snapshot"
	"posreports/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	source, locators, err := f.createSource(config)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	queue := f.createQueue(ctx, config)

	return &BackendResult{
		Source:   source,
		Store:    store,
		Locators: locators,
		Queue:    queue,
		Cleanup: func() error {
			var errs []error
			if queue != nil {
				errs = append(errs, queue.Close())
			}
			if closeStore != nil {
				errs = append(errs, closeStore())
			}
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createSource(config Config) (sheets.RowSource, map[core.SheetType]string, error) {
	locators := map[core.SheetType]string{
		core.SheetMain:  config.MainSheetURL,
		core.SheetSales: config.SalesSheetURL,
	}

	switch config.Type {
	case SheetsBackend:
		f.logger.Info("Initialized Google Sheets source",
			"main_configured", config.MainSheetURL != "",
			"sales_configured", config.SalesSheetURL != "",
			"credentials_configured", config.CredentialsJSON != "")
		return gsheet.New(config.CredentialsJSON), locators, nil

	case MemoryBackend:
		src := memory.New()
		if config.DataDirectory != "" {
			var err error
			if src, err = memory.NewFromFiles(config.DataDirectory); err != nil {
				return nil, nil, fmt.Errorf("failed to load memory seed data: %w", err)
			}
		}
		// Seed files are named after the sheet they hold.
		for sheet, locator := range locators {
			if locator == "" {
				locators[sheet] = sheet.String()
			}
		}
		f.logger.Info("Initialized in-memory source", "data_dir", config.DataDirectory)
		return src, locators, nil
	}
	return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
}

func (f *DefaultFactory) createStore(config Config) (sheets.SnapshotStore, CleanupFunc, error) {
	switch config.Snapshots {
	case SQLiteSnapshots:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite snapshot store: %w", err)
		}
		return repo, repo.Close, nil
	case FileSnapshots:
		store, err := snapshot.NewFileStore(config.SnapshotDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize snapshot directory: %w", err)
		}
		f.logger.Info("Initialized file snapshot store", "dir", config.SnapshotDir)
		return store, nil, nil
	}
	return nil, nil, fmt.Errorf("unsupported snapshot backend: %s", config.Snapshots)
}

// createQueue connects the optional refresh queue. A broker that cannot be
// reached is logged and the service refreshes in-process instead.
func (f *DefaultFactory) createQueue(ctx context.Context, config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, refreshing in-process", log.FieldError, err)
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
