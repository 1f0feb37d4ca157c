package models

// ScrapeRequest is the payload for POST /api/v1/scrape and
// POST /api/v1/scrape/async.
type ScrapeRequest struct {
	// URL is the dashboard to scrape. Required. Its host must belong to one
	// of the configured provider domains.
	URL string `json:"url" binding:"required,url"`

	// ExploreNavigation enables clicking through tabs and pages.
	// Default: true. When false only the root state is extracted.
	ExploreNavigation *bool `json:"explore_navigation,omitempty"`

	// Timeout is the wall-clock budget for the whole scrape in milliseconds.
	// Zero means the server default. Values above the server maximum are clamped.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1000"`

	// Persistent opens the durable browser profile written by
	// `dashscrape login` so private dashboards are reachable.
	Persistent bool `json:"persistent,omitempty"`

	// MaxSteps bounds the number of navigation clicks. Zero means the
	// server default.
	MaxSteps int `json:"max_steps,omitempty" binding:"omitempty,min=1,max=100"`

	// SettleTimeout overrides the per-state settle timeout in milliseconds.
	SettleTimeout int `json:"settle_timeout,omitempty" binding:"omitempty,min=100,max=60000"`

	// Format selects the response rendering: "json" (default) or "markdown",
	// which adds a rendered text report next to the structured data.
	Format string `json:"format,omitempty" binding:"omitempty,oneof=json markdown"`

	// MaxAge allows a cached result up to this age in milliseconds.
	// Zero disables cache reads.
	MaxAge int64 `json:"max_age,omitempty"`

	// WebhookURL receives the result of an async scrape.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs webhook payloads (HMAC-SHA256).
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.ExploreNavigation == nil {
		t := true
		r.ExploreNavigation = &t
	}
	if r.Format == "" {
		r.Format = "json"
	}
}

// Explore reports the effective explore_navigation flag.
func (r *ScrapeRequest) Explore() bool {
	return r.ExploreNavigation == nil || *r.ExploreNavigation
}
