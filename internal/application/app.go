// Package application wires configuration into a running import service:
// stores, command executor, handler registry, runner and queue.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/ledgerimport/internal/commands"
	"github.com/JonMunkholm/ledgerimport/internal/config"
	"github.com/JonMunkholm/ledgerimport/internal/core"
	"github.com/JonMunkholm/ledgerimport/internal/core/entities"
	"github.com/JonMunkholm/ledgerimport/internal/events"
	"github.com/JonMunkholm/ledgerimport/internal/store"
)

// App holds the wired components. Close releases them.
type App struct {
	Config  *config.Config
	Pool    *pgxpool.Pool
	Service *core.Service
	Limiter *core.ImportLimiter
	Runner  *core.Runner

	closers []func() error
}

// New connects to the configured backends and builds the service.
// Jobs live in Postgres whenever a database is configured, otherwise in
// memory; documents follow STORAGE_BACKEND.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if cfg.NeedsDatabase() {
		pool, err := store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.Pool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		if err := store.Migrate(ctx, pool); err != nil {
			a.Close()
			return nil, err
		}
	}

	jobs, docs, err := a.stores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var exec core.CommandExecutor
	switch cfg.Import.Executor {
	case "postgres":
		exec = commands.NewPostgresExecutor(a.Pool)
	default:
		exec = commands.NewDryRunExecutor(slog.Default())
	}

	dispatcher := core.NewDispatcher(exec, core.WithCommandTimeout(cfg.Import.CommandTimeout))
	a.Service = core.NewService(jobs, docs, entities.NewRegistry(dispatcher),
		core.WithDefaults(cfg.Import.DefaultLocale, cfg.Import.DefaultDateFormat),
		core.WithMaxFileSize(cfg.Import.MaxFileSize),
	)
	a.Limiter = core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime)
	a.Runner = core.NewRunner(a.Service, a.Limiter)

	slog.Info("import service ready",
		"storage", cfg.Storage.Backend,
		"executor", cfg.Import.Executor,
		"max_concurrent", cfg.Import.MaxConcurrent,
	)
	return a, nil
}

func (a *App) stores(ctx context.Context) (core.JobRepository, core.DocumentStore, error) {
	var (
		jobs core.JobRepository
		mem  *store.Memory
	)
	if a.Pool != nil {
		jobs = store.NewPostgresJobs(a.Pool)
	} else {
		mem = store.NewMemory()
		jobs = mem
	}

	switch a.Config.Storage.Backend {
	case "postgres":
		return jobs, store.NewPostgresDocuments(a.Pool), nil
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return jobs, store.NewGCSDocuments(client, a.Config.Storage.Bucket, a.Config.Storage.Prefix), nil
	default:
		if mem == nil {
			mem = store.NewMemory()
		}
		return jobs, mem.Documents(), nil
	}
}

// Queue returns the configured queue and the loop that consumes it. The
// loop returns when ctx is done.
func (a *App) Queue(ctx context.Context) (core.Queue, func(context.Context) error, error) {
	qc := a.Config.Queue
	if qc.Backend != "redis" {
		q := core.NewLocalQueue(a.Runner, 0)
		return q, q.Run, nil
	}

	client, err := events.NewClient(ctx, qc.RedisAddr, qc.RedisPassword, qc.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, client.Close)

	consumer := qc.Consumer
	if consumer == "" {
		consumer, _ = os.Hostname()
	}
	sub := events.NewSubscriber(client, events.SubscriberConfig{
		Group:    qc.Group,
		Consumer: consumer,
		Stream:   qc.Stream,
		Handler:  a.Runner.Handle,
	})
	return events.NewPublisher(client, qc.Stream), sub.Run, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
