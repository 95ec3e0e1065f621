// Package app initializes and holds long-lived application services.
package app

import (
	"context"
	"fmt"
	"time"

	gcpstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	gcppubsub "cloud.google.com/go/pubsub"

	"github.com/localrank/keyword-arbitrage/internal/api"
	"github.com/localrank/keyword-arbitrage/internal/archive"
	"github.com/localrank/keyword-arbitrage/internal/cache"
	"github.com/localrank/keyword-arbitrage/internal/clock/system"
	"github.com/localrank/keyword-arbitrage/internal/config"
	"github.com/localrank/keyword-arbitrage/internal/consumer"
	"github.com/localrank/keyword-arbitrage/internal/fetcher"
	"github.com/localrank/keyword-arbitrage/internal/id/uuid"
	"github.com/localrank/keyword-arbitrage/internal/pool"
	"github.com/localrank/keyword-arbitrage/internal/prospect"
	pubmemory "github.com/localrank/keyword-arbitrage/internal/publisher/memory"
	pubsubpublisher "github.com/localrank/keyword-arbitrage/internal/publisher/pubsub"
	"github.com/localrank/keyword-arbitrage/internal/queue"
	qmemory "github.com/localrank/keyword-arbitrage/internal/queue/memory"
	"github.com/localrank/keyword-arbitrage/internal/sink"
	gcsstore "github.com/localrank/keyword-arbitrage/internal/storage/gcs"
	localstore "github.com/localrank/keyword-arbitrage/internal/storage/local"
	memorystore "github.com/localrank/keyword-arbitrage/internal/storage/memory"
)

// App wires every long-lived service of the prospecting pipeline. It is
// built once at startup and torn down via Close.
type App struct {
	Logger   *zap.Logger
	Queue    prospect.TaskQueue
	Cache    prospect.CacheStore
	Server   *api.Server
	Consumer *consumer.Consumer

	closers []func()
}

// New constructs the full service container from configuration. The
// consumer is only wired when fetcher.base_url is configured; the HTTP
// surface is always available.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Logger: logger}

	taskQueue, err := a.buildQueue(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Queue = taskQueue

	cacheStore, err := a.buildCache(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Cache = cacheStore

	a.Server = api.NewServer(
		taskQueue,
		cacheStore,
		uuid.NewUUIDGenerator(),
		system.New(),
		api.Config{
			ListenAddr:            fmt.Sprintf(":%d", cfg.Server.Port),
			RequestTimeout:        time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			Auth:                  api.AuthConfig{Enabled: cfg.Auth.Enabled, APIKey: cfg.Auth.APIKey},
			DefaultTargetPoolSize: cfg.Pool.TargetSizeDefault,
			DefaultCountry:        cfg.Pool.CountryDefault,
		},
		logger,
	)

	if cfg.Fetcher.BaseURL != "" {
		if err := a.buildConsumer(ctx, cfg, taskQueue, cacheStore); err != nil {
			a.Close()
			return nil, err
		}
	} else {
		logger.Info("fetcher.base_url not set, consumer disabled")
	}

	return a, nil
}

func (a *App) buildQueue(ctx context.Context, cfg config.Config) (prospect.TaskQueue, error) {
	if cfg.Queue.DSN == "" {
		a.Logger.Warn("queue.dsn not set, using in-memory task queue")
		return qmemory.NewQueue(), nil
	}
	pq, err := queue.NewPostgresQueue(ctx, queue.PostgresConfig{
		DSN:   cfg.Queue.DSN,
		Table: cfg.Queue.Table,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize task queue: %w", err)
	}
	a.closers = append(a.closers, pq.Close)
	return pq, nil
}

func (a *App) buildCache(ctx context.Context, cfg config.Config) (prospect.CacheStore, error) {
	if cfg.Cache.DSN == "" {
		a.Logger.Warn("cache.dsn not set, using in-memory arbitrage cache")
		return cache.NewReadThrough(cache.NewMemoryStore(), a.Logger), nil
	}
	ps, err := cache.NewPostgresStore(ctx, cache.PostgresConfig{
		DSN:      cfg.Cache.DSN,
		Table:    cfg.Cache.Table,
		MaxConns: int32(cfg.Cache.MaxConns),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize arbitrage cache: %w", err)
	}
	a.closers = append(a.closers, ps.Close)
	return cache.NewReadThrough(ps, a.Logger), nil
}

func (a *App) buildConsumer(ctx context.Context, cfg config.Config, taskQueue prospect.TaskQueue, cacheStore prospect.CacheStore) error {
	throttle := fetcher.NewThrottler(fetcher.ThrottleConfig{
		PerCallMin:     time.Duration(cfg.Fetcher.PerCallMinMs) * time.Millisecond,
		PerCallMax:     time.Duration(cfg.Fetcher.PerCallMaxMs) * time.Millisecond,
		JitterFraction: cfg.Fetcher.JitterFraction,
		WindowSize:     cfg.Fetcher.WindowSize,
		WindowPauseMin: time.Duration(cfg.Fetcher.WindowPauseMinMs) * time.Millisecond,
		WindowPauseMax: time.Duration(cfg.Fetcher.WindowPauseMaxMs) * time.Millisecond,
		MaxRPS:         cfg.Fetcher.MaxRPS,
		Burst:          cfg.Fetcher.Burst,
	})
	client, err := fetcher.NewClient(fetcher.Config{
		BaseURL:   cfg.Fetcher.BaseURL,
		Timeout:   cfg.FetchTimeout(),
		UserAgent: cfg.Fetcher.UserAgent,
	}, nil, throttle, a.Logger)
	if err != nil {
		return fmt.Errorf("initialize keyword client: %w", err)
	}

	blobStore, err := a.buildBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	archiver := archive.New(blobStore, a.Logger)

	var delivery prospect.Sink
	if cfg.Sink.URL != "" {
		httpSink, serr := sink.NewHTTP(sink.Config{
			URL:     cfg.Sink.URL,
			Timeout: time.Duration(cfg.Sink.TimeoutSeconds) * time.Second,
		})
		if serr != nil {
			return fmt.Errorf("initialize sink: %w", serr)
		}
		delivery = httpSink
	}

	pub, err := a.buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}

	builder := pool.NewBuilder(client, fetcher.NewPacker(), a.Logger)
	a.Consumer = consumer.New(
		taskQueue,
		cacheStore,
		client,
		builder,
		delivery,
		pub,
		archiver,
		system.New(),
		consumer.Config{
			TTLDays:         cfg.Cache.TTLDays,
			PollInterval:    cfg.PollInterval(),
			CompletionTopic: cfg.PubSub.TopicName,
		},
		a.Logger,
	)
	return nil
}

func (a *App) buildBlobStore(ctx context.Context, cfg config.Config) (prospect.BlobStore, error) {
	switch cfg.Archive.Backend {
	case "gcs":
		client, err := gcpstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs client: %w", err)
		}
		a.closers = append(a.closers, func() {
			if cerr := client.Close(); cerr != nil {
				a.Logger.Warn("close gcs client", zap.Error(cerr))
			}
		})
		return gcsstore.New(client, gcsstore.Config{Bucket: cfg.Archive.GCSBucket})
	case "memory":
		return memorystore.NewBlobStore(), nil
	default:
		return localstore.New(localstore.Config{BaseDir: cfg.Archive.LocalDir})
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config) (prospect.Publisher, error) {
	if cfg.PubSub.ProjectID == "" {
		a.Logger.Warn("pubsub.project_id not set, completion events stay in memory")
		return pubmemory.New(), nil
	}
	client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("initialize pubsub client: %w", err)
	}
	pub := pubsubpublisher.New(client)
	a.closers = append(a.closers, func() {
		if cerr := pub.Close(); cerr != nil {
			a.Logger.Warn("close pubsub client", zap.Error(cerr))
		}
	})
	return pub, nil
}

// Close tears down services in reverse initialization order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.Logger.Sync()
}
