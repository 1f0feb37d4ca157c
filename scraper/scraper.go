package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/stealth"
	"github.com/google/uuid"
	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/explorer"
	"github.com/use-agent/dashscrape/models"
	"github.com/use-agent/dashscrape/preflight"
	"golang.org/x/sync/semaphore"
)

// Scraper owns the browsers and hands out scrape sessions.
// It is safe for concurrent use.
type Scraper struct {
	cfg      *config.Config
	explorer *explorer.Explorer
	logger   *slog.Logger

	browser  *rod.Browser
	launcher *launcher.Launcher

	// The persistent browser is launched on first use. Chrome locks a
	// profile directory, so every persistent session shares this one.
	mu          sync.Mutex
	persistent  *rod.Browser
	persistentL *launcher.Launcher

	slots  *semaphore.Weighted
	active atomic.Int32

	preflight    *preflight.Prober
	navSelectors []string
}

// newLauncher applies the anti-detection flags shared by every browser.
func newLauncher(cfg config.BrowserConfig, headless bool) *launcher.Launcher {
	l := launcher.New().
		Headless(headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.DefaultProxy != "" {
		l = l.Proxy(cfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("window-size"), "1600,1000")
	return l
}

func connect(l *launcher.Launcher) (*rod.Browser, error) {
	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeLaunch, "failed to launch browser", err)
	}
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, models.NewScrapeError(models.ErrCodeLaunch, "failed to connect to browser", err)
	}
	return b, nil
}

// NewScraper launches the shared ephemeral browser. ex drives exploration
// in DoScrape; its navigation rules are also used by the page annotation.
func NewScraper(cfg *config.Config, ex *explorer.Explorer, logger *slog.Logger) (*Scraper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := newLauncher(cfg.Browser, cfg.Browser.Headless)
	b, err := connect(l)
	if err != nil {
		return nil, err
	}
	logger.Info("browser launched", "pid", l.PID(), "max_sessions", cfg.Browser.MaxSessions)

	sessions := cfg.Browser.MaxSessions
	if sessions <= 0 {
		sessions = 1
	}
	return &Scraper{
		cfg:          cfg,
		explorer:     ex,
		logger:       logger,
		browser:      b,
		launcher:     l,
		slots:        semaphore.NewWeighted(int64(sessions)),
		navSelectors: ex.Rules().Navigation.Selectors,
	}, nil
}

// SetPreflight enables the plain-HTTP probe for ephemeral requests.
func (s *Scraper) SetPreflight(p *preflight.Prober) {
	s.preflight = p
}

// persistentBrowser launches the profile browser on first use.
func (s *Scraper) persistentBrowser() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistent != nil {
		return s.persistent, nil
	}

	dir := s.cfg.Browser.ProfileDir
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, models.NewScrapeError(models.ErrCodeLaunch,
			fmt.Sprintf("no browser profile at %s; run `dashscrape login` first", dir), err)
	}
	l := newLauncher(s.cfg.Browser, s.cfg.Browser.Headless).UserDataDir(dir)
	b, err := connect(l)
	if err != nil {
		return nil, err
	}
	s.logger.Info("persistent browser launched", "pid", l.PID(), "profile", dir)
	s.persistent, s.persistentL = b, l
	return b, nil
}

// Acquire blocks for a free session slot and opens a stealth page for url.
// Ephemeral sessions get a fresh incognito context that is disposed on
// Release. Persistent sessions open a page on the profile browser and see
// its cookies and storage.
func (s *Scraper) Acquire(ctx context.Context, url string, persistent bool) (*Session, error) {
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, categorizeError(err, "no browser session became free")
	}
	ok := false
	defer func() {
		if !ok {
			s.slots.Release(1)
		}
	}()

	var (
		owner     *rod.Browser
		incognito *rod.Browser
		err       error
	)
	if persistent {
		if owner, err = s.persistentBrowser(); err != nil {
			return nil, err
		}
	} else {
		if incognito, err = s.browser.Incognito(); err != nil {
			return nil, models.NewScrapeError(models.ErrCodeLaunch, "failed to create browser context", err)
		}
		owner = incognito
	}

	page, err := stealth.Page(owner)
	if err != nil {
		if incognito != nil {
			_ = incognito.Close()
		}
		return nil, models.NewScrapeError(models.ErrCodeLaunch, "failed to open page", err)
	}
	if _, err := page.EvalOnNewDocument(inflightJS); err != nil {
		s.logger.Warn("request tracker not installed, settle falls back to DOM size", "error", err)
	}
	router := setupHijack(page, s.cfg.Browser.BlockedResourceTypes, s.cfg.Browser.BlockTrackers)

	s.active.Add(1)
	sess := &Session{
		ID:           uuid.NewString(),
		Target:       url,
		Persistent:   persistent,
		page:         page,
		incognito:    incognito,
		router:       router,
		navTimeout:   s.cfg.Browser.NavigationTimeout,
		clickTimeout: s.cfg.Browser.ClickTimeout,
		navSelectors: s.navSelectors,
		logger:       s.logger,
		done: func() {
			s.active.Add(-1)
			s.slots.Release(1)
		},
	}
	ok = true
	s.logger.Debug("session acquired", "session", sess.ID, "url", url, "persistent", persistent)
	return sess, nil
}

// Stats reports session usage.
func (s *Scraper) Stats() models.SessionStats {
	s.mu.Lock()
	running := s.persistent != nil
	s.mu.Unlock()
	return models.SessionStats{
		MaxSessions:       s.cfg.Browser.MaxSessions,
		ActiveSessions:    int(s.active.Load()),
		BrowserPID:        s.launcher.PID(),
		PersistentRunning: running,
	}
}

// Close shuts down both browsers.
func (s *Scraper) Close() error {
	s.logger.Info("scraper shutting down")
	var errs []error
	s.mu.Lock()
	if s.persistent != nil {
		// Kill, never Cleanup: Cleanup removes the user data dir.
		errs = append(errs, s.persistent.Close())
		s.persistentL.Kill()
		s.persistent = nil
	}
	s.mu.Unlock()
	errs = append(errs, s.browser.Close())
	s.launcher.Kill()
	s.launcher.Cleanup()
	return errors.Join(errs...)
}
