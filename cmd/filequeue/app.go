package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/filequeue/internal/config"
	"github.com/phrazzld/filequeue/internal/platform/filestore"
	"github.com/phrazzld/filequeue/internal/platform/logger"
	"github.com/phrazzld/filequeue/internal/platform/postgres"
	"github.com/phrazzld/filequeue/internal/queue"
	"github.com/phrazzld/filequeue/internal/redact"
	"github.com/phrazzld/filequeue/internal/store"
	"github.com/phrazzld/filequeue/internal/task"
)

// driverOpener builds the configured storage driver. The returned close
// function releases its resources.
type driverOpener func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Driver, func() error, error)

// application is built once per command run and passed explicitly to the
// command handlers.
type application struct {
	cfg      *config.Config
	logger   *slog.Logger
	manager  *queue.Manager
	registry *task.Registry
	close    func() error
}

// Close releases the driver.
func (a *application) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

func openDriver(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Driver, func() error, error) {
	switch cfg.Queue.Driver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(db, log), db.Close, nil
	default:
		d, err := filestore.New(filestore.Config{
			Path:           cfg.Queue.Path,
			DeadletterPath: cfg.Queue.DeadletterPath,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return d, nil, nil
	}
}

// loadConfig loads configuration and applies the command-line overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

func (o *rootOptions) newLogger(cfg *config.Config) (*slog.Logger, error) {
	if o.logOutput != nil {
		return logger.New(o.logOutput, cfg.Log.Level), nil
	}
	log, err := logger.Setup(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return log, nil
}

// openApp loads configuration, sets up logging and opens the driver.
func (o *rootOptions) openApp(ctx context.Context) (*application, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := o.newLogger(cfg)
	if err != nil {
		return nil, err
	}

	open := o.openDriver
	if open == nil {
		open = openDriver
	}
	driver, closeFn, err := open(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open queue driver",
			"driver", cfg.Queue.Driver,
			"error", redact.Error(err))
		return nil, fmt.Errorf("failed to open %s queue driver: %s", cfg.Queue.Driver, redact.Error(err))
	}

	log.Debug("queue driver ready",
		"driver", cfg.Queue.Driver,
		"capabilities", driver.Capabilities().String())

	registry := o.registry
	if registry == nil {
		registry = task.NewRegistry()
	}

	return &application{
		cfg:      cfg,
		logger:   log,
		manager:  queue.NewManager(driver, log),
		registry: registry,
		close:    closeFn,
	}, nil
}

// withApp runs fn with an application bound to the command context.
func (o *rootOptions) withApp(ctx context.Context, fn func(ctx context.Context, app *application) error) error {
	app, err := o.openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.logger.Warn("failed to close queue driver", "error", err)
		}
	}()
	return fn(logger.WithLogger(ctx, app.logger), app)
}
