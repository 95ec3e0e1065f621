// Package archive renders finished arbitrage entries as JSON and CSV
// report artifacts and writes them to a blob store.
package archive

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
	"github.com/localrank/keyword-arbitrage/internal/scoring"
)

// csvHeader is the column layout of the per-keyword report.
var csvHeader = []string{
	"keyword", "search_volume", "cpc", "competition", "arbitrage_score",
	"estimated_time", "estimated_velocity", "content_angle", "monetization",
	"customer_domain", "customer_da_keyword_count_top10", "customer_da_traffic",
}

// Archiver writes the JSON and CSV artifacts per completed pipeline run,
// plus a staged-estimates artifact when the run produced quick-win picks.
type Archiver struct {
	store  prospect.BlobStore
	logger *zap.Logger
}

// New constructs an Archiver. A nil logger falls back to a no-op.
func New(store prospect.BlobStore, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{store: store, logger: logger}
}

// Save renders and stores both artifacts under reports/<key>. It returns
// the JSON artifact's URI.
func (a *Archiver) Save(ctx context.Context, key string, entry prospect.CacheEntry) (string, error) {
	if a.store == nil {
		return "", fmt.Errorf("blob store is not configured")
	}

	jsonData, err := RenderJSON(entry)
	if err != nil {
		return "", err
	}
	jsonURI, err := a.store.PutObject(ctx, "reports/"+key+".json", "application/json", jsonData)
	if err != nil {
		return "", fmt.Errorf("store json report: %w", err)
	}

	csvData, err := RenderCSV(entry)
	if err != nil {
		return "", err
	}
	csvURI, err := a.store.PutObject(ctx, "reports/"+key+".csv", "text/csv", csvData)
	if err != nil {
		return "", fmt.Errorf("store csv report: %w", err)
	}

	if estData, err := RenderEstimates(entry); err != nil {
		return "", err
	} else if estData != nil {
		if _, err := a.store.PutObject(ctx, "reports/"+key+".estimates.json", "application/json", estData); err != nil {
			return "", fmt.Errorf("store estimates report: %w", err)
		}
	}

	a.logger.Info("report archived",
		zap.String("key", key),
		zap.String("json_uri", jsonURI),
		zap.String("csv_uri", csvURI),
	)
	return jsonURI, nil
}

// RenderJSON renders the entry as indented JSON.
func RenderJSON(entry prospect.CacheEntry) ([]byte, error) {
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json report: %w", err)
	}
	return data, nil
}

// RenderCSV renders one row per scored keyword with the customer domain
// columns repeated on every row.
func RenderCSV(entry prospect.CacheEntry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, sk := range entry.ScoredKeywords {
		row := []string{
			sk.Keyword,
			strconv.Itoa(sk.SearchVolume),
			formatFloat(sk.CPC),
			formatFloat(sk.Competition),
			formatFloat(sk.ArbitrageScore),
			formatFloat(sk.EstimatedTime),
			strconv.Itoa(sk.EstimatedVelocity),
			sk.ContentAngle,
			sk.Monetization,
			entry.DomainMetrics.Domain,
			strconv.Itoa(entry.DomainMetrics.KeywordCountTop10),
			formatFloat(entry.DomainMetrics.Traffic),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv report: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderEstimates renders banded time and velocity estimates for the
// quick-win picks, treating them as the low/mid/high ranking scenarios.
// Returns nil when the entry carries no short-term strategy.
func RenderEstimates(entry prospect.CacheEntry) ([]byte, error) {
	if entry.ShortTermStrategy == nil || len(entry.ShortTermStrategy.TopClusters) == 0 {
		return nil, nil
	}
	stages := make([]scoring.StageInput, 0, 3)
	for _, sk := range entry.ShortTermStrategy.TopClusters {
		if len(stages) == 3 {
			break
		}
		stages = append(stages, scoring.StageInput{
			Competition:  sk.Competition,
			CPC:          sk.CPC,
			SearchVolume: sk.SearchVolume,
			Authority:    entry.DomainMetrics.DomainAuthority,
		})
	}
	data, err := json.MarshalIndent(scoring.EstimateFromStages(stages), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode estimates report: %w", err)
	}
	return data, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
