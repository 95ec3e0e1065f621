// Package prospect defines core types shared across the prospecting pipeline.
package prospect

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a prospecting task.
type TaskStatus string

// Task status values persisted in the queue table.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// KeywordRecord is the per-keyword payload returned by the keyword data API.
// Records are validated at the deserialization boundary: a record only
// exists once volume, cpc and competition were all present in the response.
type KeywordRecord struct {
	Keyword         string   `json:"keyword"`
	SearchVolume    int      `json:"search_volume"`
	CPC             float64  `json:"cpc"`
	Competition     float64  `json:"competition"`
	SimilarKeywords []string `json:"similar_keywords"`
}

// DomainMetrics is the authority proxy fetched once per pipeline run for
// the customer's own domain.
type DomainMetrics struct {
	Domain            string  `json:"domain"`
	DomainAuthority   float64 `json:"domain_authority"`
	KeywordCountTop10 int     `json:"keyword_count_top10"`
	Traffic           float64 `json:"traffic"`
}

// ScoredKeyword is a KeywordRecord plus every derived scoring field.
type ScoredKeyword struct {
	Keyword                string  `json:"keyword"`
	SearchVolume           int     `json:"search_volume"`
	CPC                    float64 `json:"cpc"`
	Competition            float64 `json:"competition"`
	ArbitrageScore         float64 `json:"arbitrage_score"`
	VelocityScore          float64 `json:"velocity_score"`
	TimeImpact             float64 `json:"time_impact"`
	EstimatedTime          float64 `json:"estimated_time"`
	EstimatedVelocity      int     `json:"estimated_velocity"`
	BaseValueScore         float64 `json:"base_value_score"`
	LongTermArbitrageScore float64 `json:"long_term_arbitrage_score"`
	CompetitionBand        int     `json:"competition_band"`
	ContentAngle           string  `json:"content_angle"`
	Monetization           string  `json:"monetization"`
	LowROI                 float64 `json:"low_roi"`
	HighROI                float64 `json:"high_roi"`
	ROI                    float64 `json:"roi"`
}

// Cluster groups keywords that share enough vocabulary with a primary
// keyword, with aggregate metrics over the whole group.
type Cluster struct {
	Primary               string   `json:"primary"`
	Related               []string `json:"related"`
	AggregateSearchVolume int      `json:"aggregate_search_volume"`
	AverageCPC            float64  `json:"average_cpc"`
	AverageCompetition    float64  `json:"average_competition"`
	ClusterValueScore     float64  `json:"cluster_value_score"`
}

// ShortTermStrategy is the bounded quick-win subset of the scored pool.
type ShortTermStrategy struct {
	TopClusters        []ScoredKeyword `json:"top_4_clusters"`
	MaxTimeToImplement float64         `json:"max_time_to_implement"`
}

// CacheEntry is the value stored per (category, location) key. Entries are
// overwritten on refresh, never versioned.
type CacheEntry struct {
	ScoredKeywords    []ScoredKeyword    `json:"scored_keywords"`
	Clusters          []Cluster          `json:"clusters"`
	ShortTermStrategy *ShortTermStrategy `json:"short_term_strategy,omitempty"`
	DomainMetrics     DomainMetrics      `json:"customer_domain_data"`
	LastUpdated       time.Time          `json:"lastUpdated"`
}

// Task is a single queue item created by the external category classifier.
type Task struct {
	ID                  string     `json:"id"`
	SeedKeywords        []string   `json:"seed_keywords"`
	CustomerDomain      string     `json:"customer_domain"`
	AvgJobAmount        float64    `json:"avg_job_amount"`
	AvgConversionRate   float64    `json:"avg_conversion_rate"`
	Category            string     `json:"category"`
	State               string     `json:"state"`
	ServiceRadiusCities []string   `json:"service_radius_cities"`
	TargetPoolSize      int        `json:"target_pool_size"`
	MinVolumeFilter     int        `json:"min_volume_filter"`
	Country             string     `json:"country"`
	Status              TaskStatus `json:"status"`
	ErrorMessage        string     `json:"error_message,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	ProcessedAt         *time.Time `json:"processed_at,omitempty"`
}

// Validate checks the fields an external caller must supply.
func (t Task) Validate() error {
	if len(t.SeedKeywords) == 0 {
		return fmt.Errorf("seed_keywords are required")
	}
	if t.Category == "" {
		return fmt.Errorf("category is required")
	}
	if t.State == "" {
		return fmt.Errorf("state is required")
	}
	if t.Country == "" {
		return fmt.Errorf("country is required")
	}
	if t.TargetPoolSize < 0 {
		return fmt.Errorf("target_pool_size must be >= 0")
	}
	if t.MinVolumeFilter < 0 {
		return fmt.Errorf("min_volume_filter must be >= 0")
	}
	return nil
}

// LocationSlug derives the location half of the cache key.
func LocationSlug(state, country string) string {
	return strings.ToLower(strings.TrimSpace(state)) + "-" + strings.ToLower(strings.TrimSpace(country))
}

// CacheKey builds the composite cache key for a task's category and location.
func CacheKey(category, state, country string) string {
	return category + "/" + LocationSlug(state, country)
}

// CacheKeyFor is a convenience wrapper over CacheKey for a Task.
func (t Task) CacheKeyFor() string {
	return CacheKey(t.Category, t.State, t.Country)
}
