package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/explorer"
	"github.com/use-agent/dashscrape/models"
	"github.com/use-agent/dashscrape/settle"
)

// ErrSessionReleased is returned by every method of a released session.
var ErrSessionReleased = models.NewScrapeError(models.ErrCodeSessionReleased, "session already released", nil)

// scrollPause lets lazy widgets start loading before scrolling back.
const scrollPause = 500 * time.Millisecond

// Session is one page handed out by Acquire. It is used by a single
// scrape at a time and must be released.
type Session struct {
	ID         string
	Target     string
	Persistent bool

	page      *rod.Page
	incognito *rod.Browser
	router    *rod.HijackRouter

	navTimeout   time.Duration
	clickTimeout time.Duration
	navSelectors []string
	logger       *slog.Logger

	mu       sync.Mutex
	released bool
	done     func()
}

var _ explorer.Page = (*Session)(nil)
var _ explorer.Scroller = (*Session)(nil)

// live returns the page bound to ctx, or ErrSessionReleased.
func (s *Session) live(ctx context.Context) (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return nil, ErrSessionReleased
	}
	return s.page.Context(ctx), nil
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	p, err := s.live(ctx)
	if err != nil {
		return err
	}
	if s.navTimeout > 0 {
		p = p.Timeout(s.navTimeout)
	}
	if err := p.Navigate(url); err != nil {
		return navError(ctx, err, "navigation to dashboard failed")
	}
	if err := p.WaitLoad(); err != nil {
		return navError(ctx, err, "dashboard did not finish loading")
	}
	return nil
}

// navError keeps a navigation timeout distinct from the request budget.
func navError(ctx context.Context, err error, msg string) *models.ScrapeError {
	if ctx.Err() == nil {
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
	return categorizeError(err, msg)
}

// Query returns the trimmed text of the live elements matching selector.
func (s *Session) Query(ctx context.Context, selector string) ([]string, error) {
	p, err := s.live(ctx)
	if err != nil {
		return nil, err
	}
	res, err := p.Eval(queryJS, selector)
	if err != nil {
		return nil, fmt.Errorf("scraper: query %q: %w", selector, err)
	}
	var out []string
	for _, v := range res.Value.Arr() {
		out = append(out, v.Str())
	}
	return out, nil
}

// Click locates the control by selector and label at call time and clicks
// it. A control that is missing, detached or not interactable yields a
// NAVIGATION_FAILED error.
func (s *Session) Click(ctx context.Context, selector, label string) error {
	p, err := s.live(ctx)
	if err != nil {
		return err
	}
	s.annotate(p)

	el, err := s.control(ctx, p, selector, label)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, fmt.Sprintf("control %q not found", label), err)
	}
	if err := el.ScrollIntoView(); err != nil {
		s.logger.Debug("scroll into view failed", "session", s.ID, "label", label, "error", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, fmt.Sprintf("click on %q failed", label), err)
	}
	return nil
}

// control polls the selector matches until one carries the label, within a
// single clickTimeout shared by every way a control can be named.
func (s *Session) control(ctx context.Context, p *rod.Page, selector, label string) (*rod.Element, error) {
	if s.clickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.clickTimeout)
		defer cancel()
	}
	p = p.Context(ctx)

	for {
		res, err := p.Eval(controlNamesJS, selector)
		if err != nil {
			return nil, err
		}
		var names []controlName
		if err := res.Value.Unmarshal(&names); err != nil {
			return nil, err
		}
		if i := pickControl(names, label); i >= 0 {
			return p.ElementByJS(rod.Eval(nthJS, selector, i))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(controlPoll):
		}
	}
}

const controlPoll = 100 * time.Millisecond

// controlName is how one selector match presents itself: the visible text
// the snapshot sees, its raw innerText and its accessible names.
type controlName struct {
	Text  string `json:"text"`
	Inner string `json:"inner"`
	Aria  string `json:"aria"`
	Title string `json:"title"`
}

// pickControl returns the index of the control named label, or -1. Visible
// text wins over innerText, which wins over aria-label and title.
func pickControl(names []controlName, label string) int {
	want := normName(label)
	if want == "" {
		return -1
	}
	fields := []func(controlName) string{
		func(n controlName) string { return n.Text },
		func(n controlName) string { return n.Inner },
		func(n controlName) string { return n.Aria },
		func(n controlName) string { return n.Title },
	}
	for _, f := range fields {
		for i, n := range names {
			if normName(f(n)) == want {
				return i
			}
		}
	}
	return -1
}

func normName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (s *Session) annotate(p *rod.Page) {
	if _, err := p.Eval(annotateJS, s.navSelectors); err != nil {
		s.logger.Debug("annotate failed", "session", s.ID, "error", err)
	}
}

// Snapshot annotates the page and serializes it.
func (s *Session) Snapshot(ctx context.Context) (explorer.Snapshot, error) {
	p, err := s.live(ctx)
	if err != nil {
		return explorer.Snapshot{}, err
	}
	s.annotate(p)
	doc, err := p.HTML()
	if err != nil {
		return explorer.Snapshot{}, categorizeError(err, "failed to serialize page")
	}
	snap := explorer.Snapshot{HTML: doc, URL: s.Target}
	if info, err := p.Info(); err == nil {
		snap.URL, snap.Title = info.URL, info.Title
	}
	return snap, nil
}

// Probe reports the document size and outstanding requests.
func (s *Session) Probe(ctx context.Context) (settle.Probe, error) {
	p, err := s.live(ctx)
	if err != nil {
		return settle.Probe{}, err
	}
	res, err := p.Eval(probeJS)
	if err != nil {
		return settle.Probe{}, err
	}
	return settle.Probe{
		DOMSize:  res.Value.Get("size").Int(),
		Inflight: res.Value.Get("inflight").Int(),
	}, nil
}

// Scroll scrolls the dashboard container to its end and back.
func (s *Session) Scroll(ctx context.Context) error {
	p, err := s.live(ctx)
	if err != nil {
		return err
	}
	if _, err := p.Eval(scrollJS, true); err != nil {
		return fmt.Errorf("scraper: scroll: %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(scrollPause):
	}
	if _, err := p.Eval(scrollJS, false); err != nil {
		return fmt.Errorf("scraper: scroll back: %w", err)
	}
	return nil
}

// LoginWall reports whether the page landed on a sign-in screen instead of
// the dashboard.
func (s *Session) LoginWall(ctx context.Context, provider config.ProviderConfig) (bool, error) {
	p, err := s.live(ctx)
	if err != nil {
		return false, err
	}
	info, err := p.Info()
	if err != nil {
		return false, categorizeError(err, "failed to read page info")
	}
	if u, err := url.Parse(info.URL); err == nil && provider.IsLoginHost(u.Hostname()) {
		return true, nil
	}
	if res, err := p.Eval(loginFieldJS); err == nil && res.Value.Bool() {
		return true, nil
	}
	headings, err := s.Query(ctx, "h1, h2, [role=heading]")
	if err != nil {
		return false, nil
	}
	for _, h := range headings {
		if isWallHeading(h) {
			return true, nil
		}
	}
	return false, nil
}

// wallHeadings open the sign-in and access-request pages that replace a
// private dashboard.
var wallHeadings = []string{"sign in", "you need access", "you need permission", "request access"}

func isWallHeading(h string) bool {
	h = strings.ToLower(strings.TrimSpace(h))
	for _, w := range wallHeadings {
		if strings.HasPrefix(h, w) {
			return true
		}
	}
	return false
}

// Release closes the page and its browser context and frees the slot.
// It is idempotent.
func (s *Session) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()

	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			s.logger.Debug("hijack router stop failed", "session", s.ID, "error", err)
		}
	}
	if err := s.page.Close(); err != nil {
		s.logger.Debug("page close failed", "session", s.ID, "error", err)
	}
	if s.incognito != nil {
		if err := s.incognito.Close(); err != nil {
			s.logger.Warn("browser context close failed", "session", s.ID, "error", err)
		}
	}
	s.done()
	s.logger.Debug("session released", "session", s.ID)
}
