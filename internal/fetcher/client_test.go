package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

func testRetrySchedule() prospect.RetrySchedule {
	return prospect.RetrySchedule{time.Millisecond, time.Millisecond, time.Millisecond}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(
		Config{BaseURL: baseURL, Timeout: 5 * time.Second, UserAgent: "prospector-test"},
		testRetrySchedule(),
		NewThrottler(testThrottleConfig()),
		nil,
	)
	require.NoError(t, err)
	return c
}

func requestedKeywords(t *testing.T, r *http.Request) []string {
	t.Helper()
	var kws []string
	require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("keywords")), &kws))
	return kws
}

func TestFetchKeywordsBatchSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/keywords", r.URL.Path)
		require.Equal(t, "us", r.URL.Query().Get("country"))
		require.Equal(t, []string{"plumber orlando", "drain cleaning orlando", "broken"}, requestedKeywords(t, r))

		_, _ = w.Write([]byte(`{
			"plumber orlando": {
				"search_volume": 880,
				"cpc": 14.5,
				"competition": 0.42,
				"similar_keywords": ["emergency plumber orlando", {"keyword": "plumber near me orlando"}]
			},
			"drain cleaning orlando": {
				"search_volume": 320,
				"cpc": 9.1,
				"competition": 0.31,
				"similar_keywords": [42]
			},
			"broken": {"search_volume": 100}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.FetchKeywords(context.Background(), []string{"plumber orlando", "drain cleaning orlando", "broken"}, "us")
	require.NoError(t, err)
	require.Equal(t, int64(1), calls.Load())

	require.Len(t, got, 2)
	require.Equal(t, prospect.KeywordRecord{
		Keyword:         "plumber orlando",
		SearchVolume:    880,
		CPC:             14.5,
		Competition:     0.42,
		SimilarKeywords: []string{"emergency plumber orlando", "plumber near me orlando"},
	}, got["plumber orlando"])

	// Records missing cpc or competition are rejected at the boundary.
	_, ok := got["broken"]
	require.False(t, ok)

	// A similar-keyword entry that is neither a string nor an object is
	// skipped without invalidating the record.
	require.Empty(t, got["drain cleaning orlando"].SimilarKeywords)
}

func TestFetchKeywordsRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"roof repair": {"search_volume": 210, "cpc": 12.0, "competition": 0.5}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.FetchKeywords(context.Background(), []string{"roof repair"}, "us")
	require.NoError(t, err)
	require.Equal(t, int64(3), calls.Load())
	require.Contains(t, got, "roof repair")
}

func TestFetchKeywordsFallsBackToSingles(t *testing.T) {
	t.Parallel()

	var batchCalls, singleCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kws := requestedKeywords(t, r)
		if len(kws) > 1 {
			batchCalls.Add(1)
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		singleCalls.Add(1)
		switch kws[0] {
		case "hvac repair":
			_, _ = w.Write([]byte(`{"hvac repair": {"search_volume": 590, "cpc": 18.2, "competition": 0.6}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.FetchKeywords(context.Background(), []string{"hvac repair", "furnace tune up"}, "us")
	require.NoError(t, err)

	// A non-retryable batch failure degrades straight to singles, and a
	// keyword that still fails is omitted rather than surfaced as an error.
	require.Equal(t, int64(1), batchCalls.Load())
	require.Equal(t, int64(2), singleCalls.Load())
	require.Len(t, got, 1)
	require.Contains(t, got, "hvac repair")
}

func TestFetchSingleNoPauseAfterFinalAttempt(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// The last slot in the schedule is deliberately long. If the final
	// attempt still slept its backoff before giving up, this call would
	// take well over two seconds.
	c, err := NewClient(
		Config{BaseURL: srv.URL, Timeout: 5 * time.Second, UserAgent: "prospector-test"},
		prospect.RetrySchedule{time.Millisecond, time.Millisecond, 2 * time.Second},
		NewThrottler(testThrottleConfig()),
		nil,
	)
	require.NoError(t, err)

	start := time.Now()
	results := make(map[string]prospect.KeywordRecord)
	require.NoError(t, c.fetchSingle(context.Background(), "roof repair", "us", results))

	require.Equal(t, int64(3), calls.Load())
	require.Empty(t, results)
	require.Less(t, time.Since(start), 1500*time.Millisecond)
}

func TestFetchKeywordsEmptyInput(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty batch")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.FetchKeywords(context.Background(), nil, "us")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFetchDomainMetrics(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/domains", r.URL.Path)
		var domains []string
		require.NoError(t, json.Unmarshal([]byte(r.URL.Query().Get("domains")), &domains))
		require.Equal(t, []string{"orlandoplumbingpros.com"}, domains)

		_, _ = w.Write([]byte(`{
			"orlandoplumbingpros.com": {
				"domain_authority": 23.0,
				"keyword_count_top10": 41,
				"traffic": 1800.5
			}
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.FetchDomainMetrics(context.Background(), "https://www.orlandoplumbingpros.com/services", "us")
	require.NoError(t, err)
	require.Equal(t, prospect.DomainMetrics{
		Domain:            "orlandoplumbingpros.com",
		DomainAuthority:   23.0,
		KeywordCountTop10: 41,
		Traffic:           1800.5,
	}, got)
}

func TestFetchDomainMetricsFailureYieldsZeroMetrics(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	got, err := c.FetchDomainMetrics(context.Background(), "example.com", "us")
	require.NoError(t, err)
	require.Equal(t, prospect.DomainMetrics{Domain: "example.com"}, got)
}

func TestBaseDomain(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://www.example.com/path": "example.com",
		"http://example.com":           "example.com",
		"www.example.com":              "example.com",
		"example.com":                  "example.com",
		"  example.com  ":              "example.com",
		"":                             "",
	}
	for in, want := range cases {
		require.Equal(t, want, baseDomain(in), "input %q", in)
	}
}
