package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/dashscrape/cache"
	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/models"
	"github.com/use-agent/dashscrape/scraper"
)

const dashboardURL = "https://lookerstudio.google.com/reporting/abc"

type fakeScraper struct {
	calls atomic.Int32
	err   error
	stats models.SessionStats
}

func (f *fakeScraper) DoScrape(ctx context.Context, req *models.ScrapeRequest) (*scraper.ScrapeResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	// A short budget runs out before every state is explored.
	short := req.Timeout > 0 && req.Timeout < 5000
	return &scraper.ScrapeResult{
		Data: &models.ExtractionResult{
			Metadata:    models.ResultMetadata{Title: "Ads report", URL: req.URL},
			Metrics:     []models.Metric{{Name: "Total Impressions", Value: "18,000"}},
			Summary:     models.Summary{TotalMetrics: 1},
			Diagnostics: models.Diagnostics{Partial: short, BudgetExhausted: short},
		},
		Timing: models.TimingInfo{TotalMs: 1200, NavigationMs: 200, ExplorationMs: 1000},
	}, nil
}

func (f *fakeScraper) Stats() models.SessionStats { return f.stats }

func init() {
	gin.SetMode(gin.TestMode)
}

func post(t *testing.T, h gin.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	r := gin.New()
	r.POST(path, h)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestScrape_Success(t *testing.T) {
	sc := &fakeScraper{}
	w := post(t, Scrape(sc, nil), "/scrape", map[string]any{"url": dashboardURL})

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ScrapeResponse
	decode(t, w, &resp)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "18,000", resp.Data.Metrics[0].Value)
	assert.Empty(t, resp.Markdown)
	assert.Empty(t, resp.CacheStatus)
	assert.Equal(t, int64(1000), resp.Timing.ExplorationMs)
}

func TestScrape_Markdown(t *testing.T) {
	w := post(t, Scrape(&fakeScraper{}, nil), "/scrape", map[string]any{"url": dashboardURL, "format": "markdown"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.ScrapeResponse
	decode(t, w, &resp)
	assert.Contains(t, resp.Markdown, "Total Impressions")
}

func TestScrape_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing url", map[string]any{}},
		{"not a url", map[string]any{"url": "dashboard"}},
		{"bad format", map[string]any{"url": dashboardURL, "format": "pdf"}},
		{"too many steps", map[string]any{"url": dashboardURL, "max_steps": 1000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &fakeScraper{}
			w := post(t, Scrape(sc, nil), "/scrape", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			var resp models.ScrapeResponse
			decode(t, w, &resp)
			assert.False(t, resp.Success)
			assert.Equal(t, models.ErrCodeInvalidInput, resp.Error.Code)
			assert.Zero(t, sc.calls.Load())
		})
	}
}

func TestScrape_ErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.NewScrapeError(models.ErrCodeInvalidInput, "host not allowed", nil), http.StatusBadRequest},
		{models.NewScrapeError(models.ErrCodeAuthRequired, "sign in", nil), http.StatusForbidden},
		{models.NewScrapeError(models.ErrCodeNavigation, "root failed", nil), http.StatusBadGateway},
		{models.NewScrapeError(models.ErrCodeLaunch, "no chrome", nil), http.StatusServiceUnavailable},
		{models.NewScrapeError(models.ErrCodeTimeout, "budget", nil), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(models.CodeOf(tt.err), func(t *testing.T) {
			w := post(t, Scrape(&fakeScraper{err: tt.err}, nil), "/scrape", map[string]any{"url": dashboardURL})

			assert.Equal(t, tt.want, w.Code)
			var resp models.ScrapeResponse
			decode(t, w, &resp)
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Data)
			assert.Equal(t, models.CodeOf(tt.err), resp.Error.Code)
		})
	}
}

func TestScrape_Cache(t *testing.T) {
	sc := &fakeScraper{}
	cc := cache.New(10)
	defer cc.Close()
	body := map[string]any{"url": dashboardURL, "max_age": 60000}

	var first, second models.ScrapeResponse
	decode(t, post(t, Scrape(sc, cc), "/scrape", body), &first)
	decode(t, post(t, Scrape(sc, cc), "/scrape", body), &second)

	assert.Equal(t, "miss", first.CacheStatus)
	assert.Equal(t, "hit", second.CacheStatus)
	assert.Equal(t, int32(1), sc.calls.Load())

	// A different step bound is a different document.
	body["max_steps"] = 3
	var third models.ScrapeResponse
	decode(t, post(t, Scrape(sc, cc), "/scrape", body), &third)
	assert.Equal(t, "miss", third.CacheStatus)
	assert.Equal(t, int32(2), sc.calls.Load())
}

func TestScrape_PartialNotCached(t *testing.T) {
	sc := &fakeScraper{}
	cc := cache.New(10)
	defer cc.Close()

	var short, full, again models.ScrapeResponse
	decode(t, post(t, Scrape(sc, cc), "/scrape",
		map[string]any{"url": dashboardURL, "max_age": 60000, "timeout": 1000}), &short)
	decode(t, post(t, Scrape(sc, cc), "/scrape",
		map[string]any{"url": dashboardURL, "max_age": 60000, "timeout": 300000}), &full)
	decode(t, post(t, Scrape(sc, cc), "/scrape",
		map[string]any{"url": dashboardURL, "max_age": 60000, "timeout": 300000}), &again)

	assert.True(t, short.Data.Diagnostics.BudgetExhausted)
	assert.Equal(t, "miss", short.CacheStatus)
	assert.Equal(t, "miss", full.CacheStatus)
	assert.False(t, full.Data.Diagnostics.BudgetExhausted)
	assert.Equal(t, "hit", again.CacheStatus)
	assert.Equal(t, int32(2), sc.calls.Load())
}

func TestHealth(t *testing.T) {
	tests := []struct {
		active int
		want   string
	}{
		{0, "healthy"},
		{3, "healthy"},
		{4, "degraded"},
	}
	for _, tt := range tests {
		sc := &fakeScraper{stats: models.SessionStats{MaxSessions: 4, ActiveSessions: tt.active}}
		r := gin.New()
		r.GET("/health", Health(sc, time.Now()))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp models.HealthResponse
		decode(t, w, &resp)
		assert.Equal(t, tt.want, resp.Status)
		assert.Equal(t, 4, resp.SessionStats.MaxSessions)
	}
}

func TestMapErrorToStatus_Default(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, mapErrorToStatus(models.ErrCodeUnauthorized))
	assert.Equal(t, http.StatusTooManyRequests, mapErrorToStatus(models.ErrCodeRateLimited))
	assert.Equal(t, http.StatusInternalServerError, mapErrorToStatus(models.ErrCodeSettleTimeout))
}

var testProvider = config.ProviderConfig{AllowedDomains: []string{"lookerstudio.google.com"}}
