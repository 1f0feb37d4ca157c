package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// AppName is used for environment prefixes and XDG directories.
const AppName = "dashscrape"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Settle    SettleConfig
	Explore   ExploreConfig
	Extract   ExtractConfig
	Provider  ProviderConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Webhook   WebhookConfig
	Preflight PreflightConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// AsyncWorkers caps concurrently running async jobs.
	AsyncWorkers int // default: 4
}

// BrowserConfig controls the Rod browsers and session slots.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxSessions is the number of concurrent scrape sessions.
	MaxSessions int // default: 4

	// DefaultProxy is the proxy URL for all sessions.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// ProfileDir is the persistent profile written by `dashscrape login`
	// and opened read-mostly for persistent sessions.
	ProfileDir string // default: $XDG_DATA_HOME/dashscrape/profile

	// NavigationTimeout bounds the root page load.
	NavigationTimeout time.Duration // default: 60s

	// ClickTimeout bounds locating and clicking one navigation control.
	ClickTimeout time.Duration // default: 5s

	// BlockedResourceTypes lists resource types to block. Stylesheets stay
	// allowed because visibility checks depend on layout.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockTrackers drops analytics/ads requests that would otherwise keep
	// the network from ever going idle.
	BlockTrackers bool // default: true
}

// SettleConfig controls the load-settler.
type SettleConfig struct {
	Interval time.Duration // default: 500ms
	Timeout  time.Duration // default: 10s
	MinDelay time.Duration // default: 1s
	Hold     time.Duration // default: 300ms
}

// ExploreConfig controls navigation exploration.
type ExploreConfig struct {
	// MaxSteps bounds navigation clicks per request.
	MaxSteps int // default: 20

	// DefaultTimeout is the per-request wall-clock budget.
	DefaultTimeout time.Duration // default: 120s

	// MaxTimeout is the largest budget a client may ask for.
	MaxTimeout time.Duration // default: 300s

	// IgnoreLabels are glob patterns of navigation labels never clicked.
	IgnoreLabels []string

	// Scroll scrolls each state to trigger lazy-loaded widgets.
	Scroll bool // default: true
}

// ExtractConfig points at an optional YAML rules file that overrides the
// built-in selectors and heuristics.
type ExtractConfig struct {
	RulesFile string
}

// ProviderConfig describes the dashboard provider.
type ProviderConfig struct {
	// AllowedDomains restricts target hosts. Empty disables the check.
	AllowedDomains []string

	// LoginHosts are hosts whose appearance means a login wall.
	LoginHosts []string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 1

	// Burst is the maximum burst size per API key.
	Burst int // default: 3
}

// CacheConfig controls the result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached results.
	MaxEntries int // default: 200
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// WebhookConfig controls async job delivery.
type WebhookConfig struct {
	// Timeout bounds a single delivery attempt.
	Timeout time.Duration // default: 10s

	// JobTTL is how long finished async jobs stay pollable.
	JobTTL time.Duration // default: 1h
}

// PreflightConfig controls the plain-HTTP probe run before a browser
// session is spent on an ephemeral request.
type PreflightConfig struct {
	Enabled bool          // default: false
	Timeout time.Duration // default: 5s
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         envOr("DASHSCRAPE_HOST", "0.0.0.0"),
			Port:         envIntOr("DASHSCRAPE_PORT", 8080),
			Mode:         envOr("DASHSCRAPE_MODE", "release"),
			AsyncWorkers: envIntOr("DASHSCRAPE_ASYNC_WORKERS", 4),
		},
		Browser: BrowserConfig{
			Headless:          envBoolOr("DASHSCRAPE_HEADLESS", true),
			MaxSessions:       envIntOr("DASHSCRAPE_MAX_SESSIONS", 4),
			DefaultProxy:      os.Getenv("DASHSCRAPE_PROXY"),
			NoSandbox:         envBoolOr("DASHSCRAPE_NO_SANDBOX", false),
			BrowserBin:        os.Getenv("DASHSCRAPE_BROWSER_BIN"),
			ProfileDir:        envOr("DASHSCRAPE_PROFILE_DIR", DefaultProfileDir()),
			NavigationTimeout: envDurationOr("DASHSCRAPE_NAV_TIMEOUT", 60*time.Second),
			ClickTimeout:      envDurationOr("DASHSCRAPE_CLICK_TIMEOUT", 5*time.Second),
			BlockedResourceTypes: envSliceOr("DASHSCRAPE_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockTrackers: envBoolOr("DASHSCRAPE_BLOCK_TRACKERS", true),
		},
		Settle: SettleConfig{
			Interval: envDurationOr("DASHSCRAPE_SETTLE_INTERVAL", 500*time.Millisecond),
			Timeout:  envDurationOr("DASHSCRAPE_SETTLE_TIMEOUT", 10*time.Second),
			MinDelay: envDurationOr("DASHSCRAPE_SETTLE_MIN_DELAY", time.Second),
			Hold:     envDurationOr("DASHSCRAPE_SETTLE_HOLD", 300*time.Millisecond),
		},
		Explore: ExploreConfig{
			MaxSteps:       envIntOr("DASHSCRAPE_MAX_STEPS", 20),
			DefaultTimeout: envDurationOr("DASHSCRAPE_DEFAULT_TIMEOUT", 120*time.Second),
			MaxTimeout:     envDurationOr("DASHSCRAPE_MAX_TIMEOUT", 300*time.Second),
			IgnoreLabels: envSliceOr("DASHSCRAPE_IGNORE_LABELS", []string{
				"Share", "Download*", "Reset", "Edit", "Sign in", "Help", "More options",
			}),
			Scroll: envBoolOr("DASHSCRAPE_SCROLL", true),
		},
		Extract: ExtractConfig{
			RulesFile: os.Getenv("DASHSCRAPE_RULES_FILE"),
		},
		Provider: ProviderConfig{
			AllowedDomains: envSliceOr("DASHSCRAPE_ALLOWED_DOMAINS", []string{
				"lookerstudio.google.com", "datastudio.google.com",
			}),
			LoginHosts: envSliceOr("DASHSCRAPE_LOGIN_HOSTS", []string{
				"accounts.google.com",
			}),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("DASHSCRAPE_AUTH_ENABLED", true),
			APIKeys: envSliceOr("DASHSCRAPE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("DASHSCRAPE_RATE_RPS", 1.0),
			Burst:             envIntOr("DASHSCRAPE_RATE_BURST", 3),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("DASHSCRAPE_CACHE_MAX_ENTRIES", 200),
		},
		Log: LogConfig{
			Level:  envOr("DASHSCRAPE_LOG_LEVEL", "info"),
			Format: envOr("DASHSCRAPE_LOG_FORMAT", "json"),
		},
		Webhook: WebhookConfig{
			Timeout: envDurationOr("DASHSCRAPE_WEBHOOK_TIMEOUT", 10*time.Second),
			JobTTL:  envDurationOr("DASHSCRAPE_JOB_TTL", time.Hour),
		},
		Preflight: PreflightConfig{
			Enabled: envBoolOr("DASHSCRAPE_PREFLIGHT_ENABLED", false),
			Timeout: envDurationOr("DASHSCRAPE_PREFLIGHT_TIMEOUT", 5*time.Second),
		},
	}
}

// DefaultProfileDir returns the XDG data location of the persistent profile.
func DefaultProfileDir() string {
	return filepath.Join(xdg.DataHome, AppName, "profile")
}

// Budget clamps a client-requested budget in milliseconds to the
// configured maximum, substituting the default for zero.
func (c ExploreConfig) Budget(requestedMs int) time.Duration {
	if requestedMs <= 0 {
		return c.DefaultTimeout
	}
	d := time.Duration(requestedMs) * time.Millisecond
	if c.MaxTimeout > 0 && d > c.MaxTimeout {
		return c.MaxTimeout
	}
	return d
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

// Allows reports whether host equals or is a subdomain of an allowed
// provider domain. An empty allow list admits every host.
func (p ProviderConfig) Allows(host string) bool {
	if len(p.AllowedDomains) == 0 {
		return true
	}
	return matchHost(host, p.AllowedDomains)
}

// IsLoginHost reports whether host serves a login wall.
func (p ProviderConfig) IsLoginHost(host string) bool {
	return matchHost(host, p.LoginHosts)
}

func matchHost(host string, domains []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(d, "."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
