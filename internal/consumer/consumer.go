// Package consumer implements the single-flight task loop: claim one
// pending task, consult the cache, and run the full prospecting pipeline
// on a miss.
package consumer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/localrank/keyword-arbitrage/internal/cache"
	"github.com/localrank/keyword-arbitrage/internal/cluster"
	"github.com/localrank/keyword-arbitrage/internal/metrics"
	"github.com/localrank/keyword-arbitrage/internal/pool"
	"github.com/localrank/keyword-arbitrage/internal/prospect"
	"github.com/localrank/keyword-arbitrage/internal/scoring"
	"github.com/localrank/keyword-arbitrage/internal/strategy"
)

// Config controls Consumer behavior.
type Config struct {
	TTLDays         int
	PollInterval    time.Duration
	MinCommonWords  int
	CompletionTopic string
}

// Consumer owns each task exclusively from claim to terminal status.
// Only one task is processed at a time, which trivially guarantees at
// most one concurrent recomputation per cache key.
type Consumer struct {
	queue     prospect.TaskQueue
	cache     prospect.CacheStore
	api       prospect.KeywordAPI
	builder   *pool.Builder
	sink      prospect.Sink
	publisher prospect.Publisher
	archiver  Archiver
	clock     prospect.Clock
	cfg       Config
	logger    *zap.Logger
}

// Archiver persists report artifacts for a completed run.
type Archiver interface {
	Save(ctx context.Context, key string, entry prospect.CacheEntry) (string, error)
}

// completionEvent is the payload published after a task reaches a
// terminal state.
type completionEvent struct {
	TaskID      string    `json:"task_id"`
	Status      string    `json:"status"`
	CacheKey    string    `json:"cache_key"`
	CompletedAt time.Time `json:"completed_at"`
}

// New constructs a Consumer. Sink, publisher and archiver are optional;
// a nil logger falls back to a no-op.
func New(
	queue prospect.TaskQueue,
	cacheStore prospect.CacheStore,
	api prospect.KeywordAPI,
	builder *pool.Builder,
	snk prospect.Sink,
	pub prospect.Publisher,
	arch Archiver,
	clock prospect.Clock,
	cfg Config,
	logger *zap.Logger,
) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTLDays <= 0 {
		cfg.TTLDays = cache.DefaultTTLDays
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MinCommonWords <= 0 {
		cfg.MinCommonWords = cluster.DefaultMinCommonWords
	}
	return &Consumer{
		queue:     queue,
		cache:     cacheStore,
		api:       api,
		builder:   builder,
		sink:      snk,
		publisher: pub,
		archiver:  arch,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, claiming and processing tasks until the context finishes.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		task, ok, err := c.queue.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("claim task failed", zap.Error(err))
			if perr := prospect.Pause(ctx, c.cfg.PollInterval); perr != nil {
				return
			}
			continue
		}
		if !ok {
			if perr := prospect.Pause(ctx, c.cfg.PollInterval); perr != nil {
				return
			}
			continue
		}
		c.Process(ctx, task)
	}
}

// Process runs one claimed task to a terminal state. Panics and errors
// inside the pipeline mark the task failed; they never escape the loop.
func (c *Consumer) Process(ctx context.Context, task prospect.Task) {
	logger := c.logger.With(
		zap.String("task_id", task.ID),
		zap.String("category", task.Category),
		zap.String("state", task.State),
	)
	logger.Info("processing task")

	err := c.runPipeline(ctx, task, logger)
	if err != nil {
		logger.Error("task failed", zap.Error(err))
		if ferr := c.queue.Fail(ctx, task.ID, err.Error()); ferr != nil {
			logger.Error("mark task failed", zap.Error(ferr))
			return
		}
		metrics.RecordTask(string(prospect.TaskStatusFailed))
		c.publishCompletion(ctx, task, prospect.TaskStatusFailed, logger)
		return
	}

	if cerr := c.queue.Complete(ctx, task.ID); cerr != nil {
		logger.Error("mark task completed", zap.Error(cerr))
		return
	}
	metrics.RecordTask(string(prospect.TaskStatusCompleted))
	c.publishCompletion(ctx, task, prospect.TaskStatusCompleted, logger)
	logger.Info("task completed")
}

func (c *Consumer) runPipeline(ctx context.Context, task prospect.Task, logger *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	key := task.CacheKeyFor()
	now := c.clock.Now()

	entry, found, cerr := c.cache.Get(ctx, key)
	if cerr != nil {
		// A cache read failure degrades to a recomputation rather than
		// failing the task outright.
		logger.Warn("cache read failed, treating as miss", zap.Error(cerr))
		found = false
	}
	if found && cache.IsFresh(entry, c.cfg.TTLDays, now) {
		metrics.RecordCacheLookup("fresh")
		logger.Info("cache entry is fresh, skipping recomputation",
			zap.String("cache_key", key),
			zap.Time("last_updated", entry.LastUpdated),
		)
		return nil
	}
	if found {
		metrics.RecordCacheLookup("stale")
	} else {
		metrics.RecordCacheLookup("miss")
	}

	start := now
	keywordPool, perr := c.builder.Build(ctx, pool.BuildRequest{
		Seeds:               task.SeedKeywords,
		TargetSize:          task.TargetPoolSize,
		Country:             task.Country,
		MinVolume:           task.MinVolumeFilter,
		ServiceRadiusCities: task.ServiceRadiusCities,
	})
	if perr != nil {
		return fmt.Errorf("build keyword pool: %w", perr)
	}
	if len(keywordPool) == 0 {
		return fmt.Errorf("empty keyword pool")
	}

	domainMetrics, derr := c.api.FetchDomainMetrics(ctx, task.CustomerDomain, task.Country)
	if derr != nil {
		return fmt.Errorf("fetch domain metrics: %w", derr)
	}

	scorer := scoring.Scorer{
		DomainAuthority: domainMetrics.DomainAuthority,
		AvgJobAmount:    task.AvgJobAmount,
	}
	scored := make([]prospect.ScoredKeyword, 0, len(keywordPool))
	for _, rec := range keywordPool {
		scored = append(scored, scorer.Score(rec))
	}
	// Descending arbitrage score, keyword as tie-break, so clustering
	// sees a reproducible order regardless of map iteration.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].ArbitrageScore == scored[j].ArbitrageScore {
			return scored[i].Keyword < scored[j].Keyword
		}
		return scored[i].ArbitrageScore > scored[j].ArbitrageScore
	})

	orderedKeywords := make([]string, len(scored))
	for i, sk := range scored {
		orderedKeywords[i] = sk.Keyword
	}
	clusters := cluster.Aggregate(cluster.ByOverlap(orderedKeywords, c.cfg.MinCommonWords), keywordPool)
	shortTerm := strategy.SelectTopQuickWins(scored)

	result := prospect.CacheEntry{
		ScoredKeywords:    scored,
		Clusters:          clusters,
		ShortTermStrategy: &shortTerm,
		DomainMetrics:     domainMetrics,
		LastUpdated:       c.clock.Now().UTC(),
	}
	// The cache write is the commit point: everything after it is best
	// effort and must not fail the task.
	if werr := c.cache.Put(ctx, key, result); werr != nil {
		return fmt.Errorf("persist cache entry: %w", werr)
	}
	metrics.ObservePipelineDuration(c.clock.Now().Sub(start))
	logger.Info("pipeline finished",
		zap.String("cache_key", key),
		zap.Int("pool_size", len(keywordPool)),
		zap.Int("clusters", len(clusters)),
	)

	if c.archiver != nil {
		if _, aerr := c.archiver.Save(ctx, key, result); aerr != nil {
			logger.Warn("archive report failed", zap.Error(aerr))
		}
	}
	if c.sink != nil {
		if serr := c.sink.Deliver(ctx, key, result); serr != nil {
			logger.Warn("sink delivery failed", zap.Error(serr))
		}
	}
	return nil
}

func (c *Consumer) publishCompletion(ctx context.Context, task prospect.Task, status prospect.TaskStatus, logger *zap.Logger) {
	if c.publisher == nil || c.cfg.CompletionTopic == "" {
		return
	}
	event := completionEvent{
		TaskID:      task.ID,
		Status:      string(status),
		CacheKey:    task.CacheKeyFor(),
		CompletedAt: c.clock.Now().UTC(),
	}
	if _, err := c.publisher.Publish(ctx, c.cfg.CompletionTopic, event); err != nil {
		logger.Warn("publish completion event failed", zap.Error(err))
	}
}
