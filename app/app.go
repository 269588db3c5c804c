// Package app assembles the hub from configuration: it opens the backends,
// falling back to in-memory implementations where a connection is not
// configured, and builds the services the commands run.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/theoremus-urban-solutions/siri-vm-hub/api"
	"github.com/theoremus-urban-solutions/siri-vm-hub/config"
	"github.com/theoremus-urban-solutions/siri-vm-hub/fanout"
	"github.com/theoremus-urban-solutions/siri-vm-hub/feed"
	"github.com/theoremus-urban-solutions/siri-vm-hub/gtfs"
	"github.com/theoremus-urban-solutions/siri-vm-hub/ingest"
	"github.com/theoremus-urban-solutions/siri-vm-hub/matching"
	"github.com/theoremus-urban-solutions/siri-vm-hub/metrics"
	"github.com/theoremus-urban-solutions/siri-vm-hub/objectstore"
	"github.com/theoremus-urban-solutions/siri-vm-hub/producer"
	"github.com/theoremus-urban-solutions/siri-vm-hub/queue"
	"github.com/theoremus-urban-solutions/siri-vm-hub/secrets"
	"github.com/theoremus-urban-solutions/siri-vm-hub/store"
)

// App holds the opened backends and the services built on them.
type App struct {
	Config *config.AppConfig
	Logger *slog.Logger

	Store            store.Store
	ValidationErrors store.ValidationErrors
	Queue            queue.Queue
	Objects          objectstore.Store
	Secrets          secrets.Store
	Metrics          *metrics.Metrics

	Producers *producer.Service
	Feed      *feed.Generator
	Armer     *fanout.Armer
	Rearmer   *fanout.Rearmer
	Deliverer *fanout.Deliverer
	Worker    *fanout.Worker

	postgres *store.Postgres
	redis    *redis.Client
}

// Open connects every configured backend and builds the services that do
// not need the GTFS index.
func Open(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}
	if err := a.openBackends(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.Producers = producer.NewService(a.Store, a.Secrets, a.Metrics,
		cfg.Producer, cfg.Server.BaseURL, logger)
	a.Feed = feed.NewGenerator(a.Store, a.Objects, a.Metrics, cfg.Feed,
		time.Duration(cfg.ObjectStore.PresignSeconds)*time.Second, logger)
	a.Armer = fanout.NewArmer(a.Queue, cfg.Fanout.QueueName, logger)
	a.Rearmer = fanout.NewRearmer(a.Store, a.Armer, logger)
	a.Deliverer = fanout.NewDeliverer(a.Store, a.Feed, a.Metrics, cfg.Fanout, logger)
	a.Worker = fanout.NewWorker(a.Queue, a.Deliverer, a.Metrics, cfg.Fanout, logger)
	return a, nil
}

func (a *App) openBackends(ctx context.Context) error {
	cfg := a.Config
	mem := store.NewMemory()

	if cfg.Postgres.DSN != "" {
		pg, err := store.NewPostgres(ctx, cfg.Postgres, a.Logger)
		if err != nil {
			return err
		}
		a.postgres = pg
		a.Store = pg
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
	} else {
		a.Logger.Warn("postgres dsn not set, using in-memory store")
		a.Store = mem
	}

	policy := queue.PolicyFromConfig(cfg.Queue)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		ttl := time.Duration(cfg.Redis.ValidationErrorTTLHours) * time.Hour
		a.ValidationErrors = store.NewRedisValidationErrors(a.redis, ttl)
		a.Queue = queue.NewRedis(a.redis, cfg.Fanout.QueueName, policy)
	} else {
		a.Logger.Warn("redis url not set, using in-memory queue and validation errors")
		a.ValidationErrors = mem
		a.Queue = queue.NewMemory(policy)
	}

	if cfg.ObjectStore.Endpoint != "" {
		objs, err := objectstore.NewMinIO(ctx, cfg.ObjectStore)
		if err != nil {
			return err
		}
		a.Objects = objs
	} else {
		a.Logger.Warn("object store endpoint not set, using in-memory object store")
		a.Objects = objectstore.NewMemory()
	}

	creds, err := secrets.Open(cfg.Secrets)
	if err != nil {
		a.Logger.Warn("using in-memory credential store, producer credentials are lost on restart", "error", err)
	}
	a.Secrets = creds
	return nil
}

// Health pings the network backends.
func (a *App) Health(ctx context.Context) error {
	var errs []error
	if a.postgres != nil {
		if err := a.postgres.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Router loads the GTFS index and builds the HTTP handler with the
// ingestion path wired in.
func (a *App) Router(ctx context.Context) (http.Handler, error) {
	client := &http.Client{Timeout: 5 * time.Minute}
	index, err := gtfs.LoadIndex(ctx, client, a.Config.GTFS, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("load gtfs index: %w", err)
	}
	ttl := time.Duration(a.Config.Redis.ValidationErrorTTLHours) * time.Hour
	engine := matching.NewEngine(a.Store, a.ValidationErrors, index, a.Metrics, ttl, a.Logger)
	gateway := ingest.NewGateway(a.Store, a.Producers, engine, a.Objects, a.Config.ObjectStore.ArchivePrefix, a.Logger)

	return api.NewRouter(api.Deps{
		Producers:        a.Producers,
		ProducerStore:    a.Store,
		ValidationErrors: a.ValidationErrors,
		Consumers:        a.Store,
		Records:          a.Store,
		Queue:            a.Queue,
		Armer:            a.Armer,
		Gateway:          gateway,
		Feed:             a.Feed,
		Metrics:          a.Metrics,
		Health:           a.Health,
		SnapshotRedirect: a.Config.Feed.SnapshotIntervalSeconds > 0,
		MaxBodyBytes:     a.Config.Ingest.MaxBodyBytes,
		QueueName:        a.Config.Fanout.QueueName,
		Logger:           a.Logger,
	}), nil
}

// Cleardown deletes records that stopped being valid before now minus retain.
func (a *App) Cleardown(ctx context.Context, retain time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retain)
	n, err := a.Store.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleardown: %w", err)
	}
	a.Logger.Info("expired records removed", "count", n, "cutoff", cutoff)
	return n, nil
}

// Close releases backend connections.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("close redis", "error", err)
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
}
