package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/dashscrape/api/handler"
	"github.com/use-agent/dashscrape/api/middleware"
	"github.com/use-agent/dashscrape/cache"
	"github.com/use-agent/dashscrape/config"
)

// Deps are the services the routes are served by.
type Deps struct {
	Scraper   handler.Scraper
	Cache     *cache.Cache // nil disables caching
	Jobs      *handler.Jobs
	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
// Background upkeep (rate limiter eviction) stops when ctx is done.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(d.Scraper, d.StartTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	limiter := middleware.NewLimiter(cfg.RateLimit)
	go limiter.Sweep(ctx, 5*time.Minute)
	protected.Use(limiter.Middleware())

	protected.POST("/scrape", handler.Scrape(d.Scraper, d.Cache))
	protected.POST("/scrape/async", handler.PostScrapeAsync(d.Jobs, d.Scraper, d.Cache, cfg.Provider))
	protected.GET("/jobs/:id", handler.GetJob(d.Jobs))

	return r
}
