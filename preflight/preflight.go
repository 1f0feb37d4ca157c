// Package preflight probes a dashboard URL over plain HTTP before a browser
// session is spent on it.
package preflight

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/models"
	"golang.org/x/net/html"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// maxBody caps how much of the page is read for the title.
const maxBody = 2 << 20

// Result describes what the probe saw.
type Result struct {
	StatusCode int
	FinalURL   string
	Title      string
}

// Prober runs preflight checks. It is safe for concurrent use.
type Prober struct {
	client   *http.Client
	provider config.ProviderConfig
	timeout  time.Duration
	logger   *slog.Logger
}

type loginRedirect struct{ location string }

func (e *loginRedirect) Error() string { return "redirected to login: " + e.location }

// New creates a Prober. proxy, when set, is an http(s) proxy URL.
func New(cfg config.PreflightConfig, provider config.ProviderConfig, proxy string, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	transport := &http.Transport{
		DialTLSContext:    dialTLSChrome,
		ForceAttemptHTTP2: false,
	}
	if proxy != "" {
		if u, err := url.Parse(proxy); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	p := &Prober{provider: provider, timeout: cfg.Timeout, logger: logger}
	p.client = &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if provider.IsLoginHost(req.URL.Hostname()) {
				return &loginRedirect{location: req.URL.String()}
			}
			if len(via) >= 10 {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
	return p
}

// Check fetches target once. It fails with AUTH_REQUIRED when the target
// redirects to a login host and with NAVIGATION_FAILED when the host cannot
// be reached. HTTP error statuses are reported, not failed: a dashboard
// shell may answer 4xx to a client without JavaScript.
func (p *Prober) Check(ctx context.Context, target string) (*Result, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid target URL", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := p.client.Do(req)
	if err != nil {
		var lr *loginRedirect
		switch {
		case errors.As(err, &lr):
			p.logger.Info("preflight: login redirect", "url", target, "location", lr.location)
			return nil, models.NewScrapeError(models.ErrCodeAuthRequired,
				"dashboard requires sign-in; use a persistent session", err)
		case isUnreachable(err):
			return nil, models.NewScrapeError(models.ErrCodeNavigation, "dashboard host unreachable", err)
		case errors.Is(err, context.DeadlineExceeded):
			// A slow shell is left to the browser.
			p.logger.Debug("preflight: timed out", "url", target)
			return &Result{FinalURL: target}, nil
		}
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "preflight request failed", err)
	}
	defer resp.Body.Close()

	if p.provider.IsLoginHost(resp.Request.URL.Hostname()) {
		return nil, models.NewScrapeError(models.ErrCodeAuthRequired,
			"dashboard requires sign-in; use a persistent session", nil)
	}

	res := &Result{StatusCode: resp.StatusCode, FinalURL: resp.Request.URL.String()}
	if isHTML(resp.Header.Get("Content-Type")) {
		res.Title = extractTitle(io.LimitReader(resp.Body, maxBody))
	}
	p.logger.Debug("preflight: ok", "url", target, "status", res.StatusCode, "title", res.Title)
	return res, nil
}

func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func isHTML(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractTitle returns the text of the first <title> element.
func extractTitle(r io.Reader) string {
	z := html.NewTokenizer(r)
	inTitle := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			if tn, _ := z.TagName(); string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(z.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
