package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/dashscrape/cache"
	"github.com/use-agent/dashscrape/models"
)

// Scrape returns a handler for POST /api/v1/scrape.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup when max_age allows it.
//  3. Scraper.DoScrape: explore the dashboard and assemble the document.
//  4. Cache store, optional markdown report, return 200.
func Scrape(sc Scraper, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		req, err := bindScrapeRequest(c)
		if err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}

		resp, err := runScrape(c.Request.Context(), sc, cc, req)
		if err != nil {
			respondError(c, err, models.TimingInfo{TotalMs: time.Since(start).Milliseconds()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
