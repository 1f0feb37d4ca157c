package scraper

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-rod/stealth"
	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/models"
)

// Login opens a visible browser on the profile directory at target so a
// person can sign in. It returns when ctx is done or the last window is
// closed; the browser writes the profile, this code never sees credentials.
func Login(ctx context.Context, cfg config.BrowserConfig, target string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.ProfileDir, 0o700); err != nil {
		return models.NewScrapeError(models.ErrCodeLaunch, "cannot create profile directory", err)
	}

	l := newLauncher(cfg, false).UserDataDir(cfg.ProfileDir)
	b, err := connect(l)
	if err != nil {
		return err
	}
	defer func() {
		_ = b.Close()
		l.Kill()
	}()

	page, err := stealth.Page(b)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeLaunch, "failed to open page", err)
	}
	if err := page.Navigate(target); err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "navigation to login page failed", err)
	}
	logger.Info("sign in in the browser window, then close it or press Ctrl+C", "profile", cfg.ProfileDir)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("login finished", "profile", cfg.ProfileDir)
			return nil
		case <-ticker.C:
			pages, err := b.Pages()
			if err != nil || len(pages) == 0 {
				logger.Info("browser closed, profile saved", "profile", cfg.ProfileDir)
				return nil
			}
		}
	}
}
