// Package sink delivers finished arbitrage entries to the external
// report endpoint. Delivery is best effort: the entry is already durably
// cached before delivery is attempted, so failures are logged by the
// caller and never fail the task.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

// Config captures the connection parameters for the report endpoint.
type Config struct {
	URL     string
	Timeout time.Duration
}

// HTTP posts entries as JSON to a configured endpoint.
type HTTP struct {
	client *http.Client
	url    string
}

// payload is the wire shape the report endpoint expects.
type payload struct {
	Location      string              `json:"location"`
	ArbitrageData prospect.CacheEntry `json:"arbitrageData"`
}

// NewHTTP constructs an HTTP sink.
func NewHTTP(cfg Config) (*HTTP, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("sink url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTP{
		client: &http.Client{Timeout: timeout},
		url:    cfg.URL,
	}, nil
}

// Deliver posts the entry for location. A non-2xx response is an error.
func (h *HTTP) Deliver(ctx context.Context, location string, entry prospect.CacheEntry) error {
	body, err := json.Marshal(payload{Location: location, ArbitrageData: entry})
	if err != nil {
		return fmt.Errorf("encode sink payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sink request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to sink: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("sink returned status %d", resp.StatusCode)
	}
	return nil
}
