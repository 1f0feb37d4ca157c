// Package handler implements the HTTP endpoints of the dashscrape API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/dashscrape/cache"
	"github.com/use-agent/dashscrape/models"
	"github.com/use-agent/dashscrape/report"
	"github.com/use-agent/dashscrape/scraper"
)

// Scraper is the part of *scraper.Scraper the handlers use.
type Scraper interface {
	DoScrape(ctx context.Context, req *models.ScrapeRequest) (*scraper.ScrapeResult, error)
	Stats() models.SessionStats
}

// runScrape serves req from the cache when allowed, otherwise scrapes it
// and stores the structured response. The markdown report is rendered per
// request so cached entries serve both formats.
func runScrape(ctx context.Context, sc Scraper, cc *cache.Cache, req *models.ScrapeRequest) (*models.ScrapeResponse, error) {
	start := time.Now()
	useCache := cc != nil && req.MaxAge > 0
	key := cache.Key(req.URL, req.Explore(), req.Persistent, req.MaxSteps)

	var resp models.ScrapeResponse
	if cached, hit := cachedResponse(cc, useCache, key, req.MaxAge); hit {
		resp = *cached
		resp.CacheStatus = "hit"
		resp.Timing = models.TimingInfo{TotalMs: time.Since(start).Milliseconds()}
	} else {
		result, err := sc.DoScrape(ctx, req)
		if err != nil {
			return nil, err
		}
		resp = models.ScrapeResponse{Success: true, Data: result.Data, Timing: result.Timing}
		if useCache {
			if cacheable(result.Data) {
				stored := resp
				cc.Set(key, &stored)
			}
			resp.CacheStatus = "miss"
		}
	}

	if req.Format == "markdown" {
		md, err := report.Render(resp.Data)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeInternal, "render markdown report", err)
		}
		resp.Markdown = md
	}
	return &resp, nil
}

// cacheable reports whether a document is complete enough to serve later
// requests. A partial one depends on the budget it ran under, which is not
// part of the key.
func cacheable(d *models.ExtractionResult) bool {
	return d != nil && !d.Diagnostics.Partial && !d.Diagnostics.BudgetExhausted
}

func cachedResponse(cc *cache.Cache, useCache bool, key string, maxAge int64) (*models.ScrapeResponse, bool) {
	if !useCache {
		return nil, false
	}
	return cc.Get(key, maxAge)
}

// errorResponse converts err into the failed-response body.
func errorResponse(err error, timing models.TimingInfo) *models.ScrapeResponse {
	return &models.ScrapeResponse{
		Success: false,
		Error:   models.DetailOf(err),
		Timing:  timing,
	}
}

// respondError maps err to the correct HTTP status code and writes a
// structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	c.JSON(mapErrorToStatus(models.CodeOf(err)), errorResponse(err, timing))
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(code string) int {
	switch code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeAuthRequired:
		return http.StatusForbidden // 403
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeLaunch:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}

// bindScrapeRequest parses the body and applies defaults. Binding errors
// come back as INVALID_INPUT.
func bindScrapeRequest(c *gin.Context) (*models.ScrapeRequest, error) {
	var req models.ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err)
	}
	req.Defaults()
	return &req, nil
}
