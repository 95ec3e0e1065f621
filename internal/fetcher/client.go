package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/localrank/keyword-arbitrage/internal/metrics"
	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

const maxResponseBytes = 8 << 20

// Config captures the connection parameters for the keyword data API.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to the keyword data API with shared throttling, a bounded
// retry schedule for server errors, and per-keyword fallback when a batch
// call fails. Partial results are an acceptable outcome: keywords that
// cannot be fetched are omitted, never surfaced as errors.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	retry      prospect.RetrySchedule
	throttle   *Throttler
	logger     *zap.Logger
}

// NewClient constructs a Client. A nil logger falls back to a no-op.
func NewClient(cfg Config, retry prospect.RetrySchedule, throttle *Throttler, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("fetcher base url is required")
	}
	if throttle == nil {
		throttle = NewThrottler(DefaultThrottleConfig())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(retry) == 0 {
		retry = prospect.DefaultRetrySchedule()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		retry:      retry,
		throttle:   throttle,
		logger:     logger,
	}, nil
}

// FetchKeywords fetches keyword records for a batch. On HTTP 500/502 the
// batch is retried on the backoff schedule; on any other failure the batch
// degrades to single-keyword requests, and keywords that still fail are
// dropped from the result.
func (c *Client) FetchKeywords(ctx context.Context, keywords []string, country string) (map[string]prospect.KeywordRecord, error) {
	results := make(map[string]prospect.KeywordRecord, len(keywords))
	if len(keywords) == 0 {
		return results, nil
	}

	batchURL := c.keywordsURL(keywords, country)
	for attempt := 0; ; attempt++ {
		status, body, err := c.get(ctx, batchURL)
		if err != nil {
			return results, err
		}
		if status == http.StatusOK {
			c.decodeRecords(body, keywords, results)
			return results, nil
		}
		if !isRetryableStatus(status) || attempt >= c.retry.MaxAttempts() {
			c.logger.Warn("keyword batch call failed, retrying as singles",
				zap.Int("status", status),
				zap.Int("batch_size", len(keywords)),
			)
			break
		}
		metrics.RecordFetchRetry()
		if perr := prospect.Pause(ctx, c.retry.Delay(attempt)); perr != nil {
			return results, perr
		}
	}

	for _, kw := range keywords {
		if err := c.fetchSingle(ctx, kw, country, results); err != nil {
			return results, err
		}
	}
	return results, nil
}

// FetchDomainMetrics fetches the authority proxy for a single domain. The
// domain is reduced to its bare hostname first. A domain that cannot be
// fetched yields zero metrics, not an error: the scoring fallback constant
// keeps the pipeline viable without authority data.
func (c *Client) FetchDomainMetrics(ctx context.Context, domain string, country string) (prospect.DomainMetrics, error) {
	base := baseDomain(domain)
	out := prospect.DomainMetrics{Domain: base}
	if base == "" {
		return out, nil
	}

	domainsURL := fmt.Sprintf("%s/domains?country=%s&domains=%s",
		c.baseURL, url.QueryEscape(country), EncodeJSONArray([]string{base}))

	for attempt := 0; ; attempt++ {
		status, body, err := c.get(ctx, domainsURL)
		if err != nil {
			return out, err
		}
		if status == http.StatusOK {
			var payload map[string]domainPayload
			if jerr := json.Unmarshal(body, &payload); jerr != nil {
				c.logger.Warn("domains response malformed", zap.String("domain", base), zap.Error(jerr))
				return out, nil
			}
			p, ok := payload[base]
			if !ok {
				c.logger.Warn("domains response missing domain", zap.String("domain", base))
				return out, nil
			}
			out.DomainAuthority = p.DomainAuthority
			out.KeywordCountTop10 = p.KeywordCountTop10
			out.Traffic = p.Traffic
			return out, nil
		}
		if !isRetryableStatus(status) || attempt >= c.retry.MaxAttempts() {
			c.logger.Warn("domain metrics fetch failed", zap.String("domain", base), zap.Int("status", status))
			return out, nil
		}
		metrics.RecordFetchRetry()
		if perr := prospect.Pause(ctx, c.retry.Delay(attempt)); perr != nil {
			return out, perr
		}
	}
}

func (c *Client) fetchSingle(ctx context.Context, keyword, country string, results map[string]prospect.KeywordRecord) error {
	singleURL := c.keywordsURL([]string{keyword}, country)
	for attempt := 0; attempt < c.retry.MaxAttempts(); attempt++ {
		status, body, err := c.get(ctx, singleURL)
		if err != nil {
			return err
		}
		switch {
		case status == http.StatusOK:
			c.decodeRecords(body, []string{keyword}, results)
			if _, ok := results[keyword]; !ok {
				c.logger.Warn("single keyword response missing keyword", zap.String("keyword", keyword))
			}
			return nil
		case isRetryableStatus(status):
			if attempt+1 >= c.retry.MaxAttempts() {
				break
			}
			metrics.RecordFetchRetry()
			if perr := prospect.Pause(ctx, c.retry.Delay(attempt)); perr != nil {
				return perr
			}
		default:
			c.logger.Warn("single keyword fetch failed, not retrying",
				zap.String("keyword", keyword),
				zap.Int("status", status),
			)
			return nil
		}
	}
	c.logger.Warn("single keyword failed after retries", zap.String("keyword", keyword))
	return nil
}

func (c *Client) keywordsURL(keywords []string, country string) string {
	return fmt.Sprintf("%s/keywords?country=%s&keywords=%s",
		c.baseURL, url.QueryEscape(country), EncodeJSONArray(keywords))
}

// get performs one throttled GET. Transport errors are reported as status
// zero so they flow through the same status-driven fallback as HTTP
// failures; only context cancellation propagates as an error.
func (c *Client) get(ctx context.Context, rawURL string) (int, []byte, error) {
	if err := c.throttle.Before(ctx); err != nil {
		return 0, nil, err
	}

	status := 0
	var body []byte
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		c.logger.Warn("request failed", zap.String("url", rawURL), zap.Error(err))
	} else {
		status = resp.StatusCode
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("close response body", zap.Error(cerr))
		}
		if err != nil {
			c.logger.Warn("read response body", zap.String("url", rawURL), zap.Error(err))
			status = 0
			body = nil
		}
	}
	metrics.RecordFetch(strconv.Itoa(status))

	if terr := c.throttle.After(ctx); terr != nil {
		return status, body, terr
	}
	return status, body, nil
}

// decodeRecords merges well-formed records from body into results.
// Malformed or incomplete entries are rejected here, at the boundary, so
// downstream stages can assume clean data.
func (c *Client) decodeRecords(body []byte, requested []string, results map[string]prospect.KeywordRecord) {
	var payload map[string]keywordPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.Warn("keywords response is not a JSON object", zap.Error(err))
		return
	}
	for _, kw := range requested {
		p, ok := payload[kw]
		if !ok {
			continue
		}
		rec, valid := p.toRecord(kw)
		if !valid {
			c.logger.Debug("dropping incomplete keyword record", zap.String("keyword", kw))
			continue
		}
		results[kw] = rec
	}
}

// keywordPayload is the wire form of a keyword record. Volume, cpc and
// competition are optional on the wire and required for a valid record.
type keywordPayload struct {
	SearchVolume    *int             `json:"search_volume"`
	CPC             *float64         `json:"cpc"`
	Competition     *float64         `json:"competition"`
	SimilarKeywords []similarKeyword `json:"similar_keywords"`
}

func (p keywordPayload) toRecord(keyword string) (prospect.KeywordRecord, bool) {
	if p.SearchVolume == nil || p.CPC == nil || p.Competition == nil {
		return prospect.KeywordRecord{}, false
	}
	rec := prospect.KeywordRecord{
		Keyword:      keyword,
		SearchVolume: *p.SearchVolume,
		CPC:          *p.CPC,
		Competition:  *p.Competition,
	}
	for _, s := range p.SimilarKeywords {
		if s.Keyword != "" {
			rec.SimilarKeywords = append(rec.SimilarKeywords, s.Keyword)
		}
	}
	return rec, true
}

// similarKeyword accepts both the object form {"keyword": "..."} and the
// bare string form the API has been seen to emit.
type similarKeyword struct {
	Keyword string
}

func (s *similarKeyword) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Keyword = str
		return nil
	}
	var obj struct {
		Keyword string `json:"keyword"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// Skip entries that are neither form.
		s.Keyword = ""
		return nil
	}
	s.Keyword = obj.Keyword
	return nil
}

type domainPayload struct {
	DomainAuthority   float64 `json:"domain_authority"`
	KeywordCountTop10 int     `json:"keyword_count_top10"`
	Traffic           float64 `json:"traffic"`
}

func isRetryableStatus(status int) bool {
	return status == http.StatusInternalServerError || status == http.StatusBadGateway
}

func baseDomain(domain string) string {
	d := strings.TrimSpace(domain)
	if strings.Contains(d, "://") {
		if u, err := url.Parse(d); err == nil && u.Hostname() != "" {
			d = u.Hostname()
		}
	}
	return strings.TrimPrefix(d, "www.")
}
