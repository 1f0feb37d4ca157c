package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/models"
	"github.com/use-agent/dashscrape/report"
	"github.com/use-agent/dashscrape/scraper"
	"golang.org/x/sync/errgroup"
)

type scrapeFlags struct {
	noExplore  bool
	persistent bool
	markdown   bool
	maxSteps   int
	timeoutMs  int
}

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	var f scrapeFlags
	cmd := &cobra.Command{
		Use:   "scrape <url> [url...]",
		Short: "Scrape dashboards and print the result",
		Long: `Scrape loads each dashboard, explores its navigation and prints one JSON
document per URL to stdout (or a markdown report with --markdown).

Examples:
  # Scrape a public report
  dashscrape scrape https://lookerstudio.google.com/reporting/abc

  # Only the landing state, as markdown
  dashscrape scrape --no-explore --markdown https://lookerstudio.google.com/reporting/abc

  # A private report, using the profile written by "dashscrape login"
  dashscrape scrape --persistent https://lookerstudio.google.com/reporting/xyz`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			initLogger(cfg.Log)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runScrape(ctx, cfg, f, args, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&f.noExplore, "no-explore", false, "Extract the landing state only")
	cmd.Flags().BoolVar(&f.persistent, "persistent", false, "Use the signed-in browser profile")
	cmd.Flags().BoolVarP(&f.markdown, "markdown", "m", false, "Print a markdown report instead of JSON")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", 0, "Maximum navigation clicks (0 = server default)")
	cmd.Flags().IntVarP(&f.timeoutMs, "timeout", "t", 0, "Budget per dashboard in milliseconds (0 = default)")
	return cmd
}

func (f scrapeFlags) request(url string) *models.ScrapeRequest {
	explore := !f.noExplore
	req := &models.ScrapeRequest{
		URL:               url,
		ExploreNavigation: &explore,
		Persistent:        f.persistent,
		MaxSteps:          f.maxSteps,
		Timeout:           f.timeoutMs,
	}
	req.Defaults()
	return req
}

// runScrape scrapes every URL concurrently, bounded by the session slots,
// and prints the documents in argument order.
func runScrape(ctx context.Context, cfg *config.Config, f scrapeFlags, urls []string, out io.Writer) error {
	for _, u := range urls {
		if err := scraper.ValidateTarget(u, cfg.Provider); err != nil {
			return err
		}
	}

	sc, err := newScraper(cfg)
	if err != nil {
		return err
	}
	defer sc.Close()

	results := make([]*models.ExtractionResult, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cfg.Browser.MaxSessions))
	for i, u := range urls {
		g.Go(func() error {
			res, err := sc.DoScrape(gctx, f.request(u))
			if err != nil {
				return fmt.Errorf("%s: %w", u, err)
			}
			slog.Info("scraped", "url", u, "total_ms", res.Timing.TotalMs)
			results[i] = res.Data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return printResults(out, results, f.markdown)
}

func printResults(out io.Writer, results []*models.ExtractionResult, markdown bool) error {
	if markdown {
		for _, res := range results {
			if err := report.Write(out, res); err != nil {
				return err
			}
		}
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}
	return nil
}
