package scraper

import (
	"context"
	"time"

	"github.com/use-agent/dashscrape/aggregate"
	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/explorer"
	"github.com/use-agent/dashscrape/models"
	"github.com/use-agent/dashscrape/settle"
)

// DoScrape is the top-level orchestrator.
//
// Lifecycle:
//
//  1. Validate       – http(s) URL on an allowed provider host
//  2. Budget         – one deadline for the whole request
//  3. Preflight      – optional plain-HTTP probe (ephemeral only)
//  4. Acquire        – session slot, browser context, stealth page
//  5. DEFER: release – on every exit path
//  6. Navigate       – root load; failure is fatal
//  7. Login wall     – after one settle, AUTH_REQUIRED rather than an empty document
//  8. Explore        – settle, extract, merge, discover, click, ...
//  9. Assemble       – the final document, partial when the budget expired
func (s *Scraper) DoScrape(ctx context.Context, req *models.ScrapeRequest) (*ScrapeResult, error) {
	start := time.Now()
	if err := ValidateTarget(req.URL, s.cfg.Provider); err != nil {
		return nil, err
	}

	budget := s.cfg.Explore.Budget(req.Timeout)
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	log := s.logger.With("url", req.URL)

	if s.preflight != nil && !req.Persistent {
		if _, err := s.preflight.Check(ctx, req.URL); err != nil {
			return nil, err
		}
	}

	sess, err := s.Acquire(ctx, req.URL, req.Persistent)
	if err != nil {
		return nil, err
	}
	defer sess.Release()
	log = log.With("session", sess.ID)

	if err := sess.Navigate(ctx, req.URL); err != nil {
		return nil, err
	}
	opts := s.exploreOptions(req)
	if err := awaitAccess(ctx, sess, opts.Settle, s.cfg.Provider, req.Persistent); err != nil {
		return nil, err
	}
	navDone := time.Now()

	agg := aggregate.New(req.URL, log)
	out, err := s.explorer.Run(ctx, sess, req.URL, agg, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, categorizeError(ctx.Err(), "budget expired before the dashboard was captured")
		}
		return nil, err
	}
	res := agg.Assemble(out)

	timing := models.TimingInfo{
		TotalMs:       time.Since(start).Milliseconds(),
		NavigationMs:  navDone.Sub(start).Milliseconds(),
		ExplorationMs: time.Since(navDone).Milliseconds(),
	}
	log.Info("scrape complete",
		"tables", res.Summary.TotalTables,
		"metrics", res.Summary.TotalMetrics,
		"charts", res.Summary.TotalCharts,
		"states", res.Diagnostics.StatesExtracted,
		"partial", res.Diagnostics.Partial,
		"total_ms", timing.TotalMs,
	)
	return &ScrapeResult{Data: res, Timing: timing}, nil
}

// accessPage is the part of *Session the login-wall check needs.
type accessPage interface {
	settle.Prober
	LoginWall(ctx context.Context, provider config.ProviderConfig) (bool, error)
}

// awaitAccess lets the landing page settle, so a sign-in or access-request
// screen rendered after load is on the page, then checks for it.
func awaitAccess(ctx context.Context, p accessPage, opts settle.Options, provider config.ProviderConfig, persistent bool) error {
	settle.Await(ctx, p, opts)
	wall, err := p.LoginWall(ctx, provider)
	if err != nil {
		return err
	}
	if !wall {
		return nil
	}
	msg := "dashboard requires sign-in; retry with persistent=true"
	if persistent {
		msg = "stored profile is not signed in; run `dashscrape login`"
	}
	return models.NewScrapeError(models.ErrCodeAuthRequired, msg, nil)
}

func (s *Scraper) exploreOptions(req *models.ScrapeRequest) explorer.Options {
	opts := explorer.Options{
		Explore:  req.Explore(),
		MaxSteps: s.cfg.Explore.MaxSteps,
		Scroll:   s.cfg.Explore.Scroll,
		Settle: settle.Options{
			Interval: s.cfg.Settle.Interval,
			Timeout:  s.cfg.Settle.Timeout,
			MinDelay: s.cfg.Settle.MinDelay,
			Hold:     s.cfg.Settle.Hold,
		},
	}
	if req.MaxSteps > 0 {
		opts.MaxSteps = req.MaxSteps
	}
	if req.SettleTimeout > 0 {
		opts.Settle.Timeout = time.Duration(req.SettleTimeout) * time.Millisecond
	}
	return opts
}
