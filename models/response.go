package models

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether the scrape produced a document. A partial
	// document (see Diagnostics.Partial) still counts as success.
	Success bool `json:"success"`

	// Data is the extraction document. Nil only when Success is false.
	Data *ExtractionResult `json:"data,omitempty"`

	// Markdown is the rendered text report when format=markdown.
	Markdown string `json:"markdown,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// NavigationMs covers acquiring the session and loading the root page.
	NavigationMs int64 `json:"navigation_ms"`

	// ExplorationMs covers settling, clicking and extracting every state.
	ExplorationMs int64 `json:"exploration_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	SessionStats SessionStats `json:"session_stats"`
	Version      string       `json:"version"`
}

// SessionStats reports browser session usage.
type SessionStats struct {
	MaxSessions       int  `json:"max_sessions"`
	ActiveSessions    int  `json:"active_sessions"`
	BrowserPID        int  `json:"browser_pid"`
	PersistentRunning bool `json:"persistent_running"`
}
