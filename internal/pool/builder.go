package pool

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/localrank/keyword-arbitrage/internal/fetcher"
	"github.com/localrank/keyword-arbitrage/internal/metrics"
	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

// BuildRequest describes one pool expansion run.
type BuildRequest struct {
	Seeds               []string
	TargetSize          int
	Country             string
	MinVolume           int
	ServiceRadiusCities []string
}

// Builder expands seed keywords into a pool of keyword records. Discovery
// follows similar-keyword edges breadth-first; candidates that do not
// mention a service-radius city are discarded permanently, which is the
// pipeline's only locality filter.
type Builder struct {
	api    prospect.KeywordAPI
	packer fetcher.Packer
	logger *zap.Logger
}

// NewBuilder constructs a Builder. A nil logger falls back to a no-op.
func NewBuilder(api prospect.KeywordAPI, packer fetcher.Packer, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{api: api, packer: packer, logger: logger}
}

// Build runs the breadth-first expansion and returns the final pool keyed
// by normalized keyword. A zero target size returns an empty pool without
// touching the network. Fetch-level failures shrink the pool rather than
// failing the build; only context cancellation aborts it.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (map[string]prospect.KeywordRecord, error) {
	if req.TargetSize <= 0 {
		return map[string]prospect.KeywordRecord{}, nil
	}

	seeds := prospect.NormalizeKeywords(req.Seeds)
	if len(seeds) == 0 {
		return map[string]prospect.KeywordRecord{}, nil
	}
	cities := prospect.NormalizeKeywords(req.ServiceRadiusCities)

	f := newFrontier()
	resolved := make(map[string]prospect.KeywordRecord)
	// Enqueued keywords count against the target immediately, before their
	// records arrive, so the frontier cannot balloon past the target.
	enqueued := 0
	for _, seed := range seeds {
		if enqueued >= req.TargetSize {
			break
		}
		if f.Push(seed) {
			enqueued++
		}
	}

	for f.Len() > 0 && enqueued < req.TargetSize {
		batch := b.packer.Next(f)
		if len(batch) == 0 {
			break
		}
		records, err := b.api.FetchKeywords(ctx, batch, req.Country)
		if err != nil {
			return resolved, fmt.Errorf("fetch keyword batch: %w", err)
		}
		for _, kw := range batch {
			rec, ok := records[kw]
			if !ok {
				continue
			}
			resolved[kw] = rec
			b.expand(f, rec, cities, req.TargetSize, &enqueued)
		}
	}

	if err := b.refetchUnresolved(ctx, req, f, resolved); err != nil {
		return resolved, err
	}

	final := make(map[string]prospect.KeywordRecord, len(resolved))
	for kw, rec := range resolved {
		if rec.SearchVolume < req.MinVolume {
			continue
		}
		final[kw] = rec
	}

	metrics.ObservePoolSize(len(final))
	b.logger.Info("keyword pool built",
		zap.Int("seeds", len(seeds)),
		zap.Int("discovered", enqueued),
		zap.Int("resolved", len(resolved)),
		zap.Int("pool_size", len(final)),
	)
	return final, nil
}

// expand enqueues the record's similar keywords that pass the locality
// filter, stopping once the enqueued count reaches the target.
func (b *Builder) expand(f *frontier, rec prospect.KeywordRecord, cities []string, target int, enqueued *int) {
	for _, raw := range rec.SimilarKeywords {
		if *enqueued >= target {
			return
		}
		candidate := prospect.NormalizeKeyword(raw)
		if candidate == "" || f.Seen(candidate) {
			continue
		}
		if !mentionsCity(candidate, cities) {
			continue
		}
		if f.Push(candidate) {
			*enqueued++
		}
	}
}

// refetchUnresolved gives keywords that were enqueued but absent from every
// batch response one more pass of batches. Keywords still missing after the
// pass stay dropped.
func (b *Builder) refetchUnresolved(ctx context.Context, req BuildRequest, f *frontier, resolved map[string]prospect.KeywordRecord) error {
	var missing []string
	for kw := range f.visited {
		if _, ok := resolved[kw]; !ok {
			missing = append(missing, kw)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	// visited is a map, so order the batches for a reproducible trace.
	sort.Strings(missing)

	b.logger.Debug("re-fetching unresolved keywords", zap.Int("count", len(missing)))
	for _, batch := range b.packer.PackAll(missing) {
		records, err := b.api.FetchKeywords(ctx, batch, req.Country)
		if err != nil {
			return fmt.Errorf("re-fetch unresolved batch: %w", err)
		}
		for kw, rec := range records {
			resolved[kw] = rec
		}
	}
	return nil
}

// mentionsCity reports whether keyword contains any normalized city as a
// substring. An empty city list admits everything.
func mentionsCity(keyword string, cities []string) bool {
	if len(cities) == 0 {
		return true
	}
	for _, city := range cities {
		if strings.Contains(keyword, city) {
			return true
		}
	}
	return false
}
