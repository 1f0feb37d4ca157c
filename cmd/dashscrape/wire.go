package main

import (
	"fmt"
	"log/slog"

	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/explorer"
	"github.com/use-agent/dashscrape/extract"
	"github.com/use-agent/dashscrape/preflight"
	"github.com/use-agent/dashscrape/scraper"
)

// newScraper builds the extraction pipeline and the session manager.
// The ephemeral browser is launched here; the persistent one on first use.
func newScraper(cfg *config.Config) (*scraper.Scraper, error) {
	logger := slog.Default()

	rules, err := extract.LoadRules(cfg.Extract.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("load extraction rules: %w", err)
	}
	ex, err := extract.New(rules, logger)
	if err != nil {
		return nil, fmt.Errorf("build extractor: %w", err)
	}
	exp, err := explorer.New(ex, cfg.Explore.IgnoreLabels, logger)
	if err != nil {
		return nil, fmt.Errorf("build explorer: %w", err)
	}

	sc, err := scraper.NewScraper(cfg, exp, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Preflight.Enabled {
		sc.SetPreflight(preflight.New(cfg.Preflight, cfg.Provider, cfg.Browser.DefaultProxy, logger))
		logger.Info("preflight probe enabled", "timeout", cfg.Preflight.Timeout)
	}
	return sc, nil
}
