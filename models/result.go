package models

// ExtractionResult is the document produced for one scrape request.
// Every collection is always present; an empty dashboard yields empty
// arrays and zero counts, never missing fields.
type ExtractionResult struct {
	Metadata           ResultMetadata `json:"metadata"`
	Tables             []Table        `json:"tables"`
	Metrics            []Metric       `json:"metrics"`
	Charts             []Chart        `json:"charts"`
	Filters            []Filter       `json:"filters"`
	TextBlocks         []TextBlock    `json:"text_blocks"`
	NavigationExplored []string       `json:"navigation_explored"`
	Summary            Summary        `json:"summary"`
	Diagnostics        Diagnostics    `json:"diagnostics"`
}

// ResultMetadata describes the scraped dashboard.
type ResultMetadata struct {
	Title          string `json:"title"`
	URL            string `json:"url"`
	Timestamp      string `json:"timestamp"`
	DashboardTitle string `json:"dashboard_title"`
}

// Table is a tabular widget. TableID is assigned when the table is first
// admitted to a session's result and is unique across navigation states.
type Table struct {
	TableID     string     `json:"table_id"`
	Headers     []string   `json:"headers"`
	Rows        [][]string `json:"rows"`
	RowCount    int        `json:"row_count"`
	ColumnCount int        `json:"column_count"`
	Fingerprint string     `json:"-"`
}

// Metric is a scorecard/KPI widget. FullText keeps the raw widget text for
// consumers when the name/value split is ambiguous.
type Metric struct {
	Name        string `json:"metric_name"`
	Value       string `json:"metric_value"`
	FullText    string `json:"full_text"`
	Fingerprint string `json:"-"`
}

// Chart render technologies.
const (
	ChartCanvas = "canvas"
	ChartSVG    = "svg"
	ChartDiv    = "div"
)

// Chart is a visualization widget.
type Chart struct {
	ChartID     string   `json:"chart_id"`
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Labels      []string `json:"labels"`
	Fingerprint string   `json:"-"`
}

// Filter is an active filter control and its selected value.
type Filter struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Fingerprint string `json:"-"`
}

// Text block sources.
const (
	TextSourceRegion      = "region"
	TextSourceReadability = "readability"
)

// TextBlock is free text from a region no structured pass claimed.
// Text is markdown.
type TextBlock struct {
	Text        string `json:"text"`
	Source      string `json:"source"`
	Fingerprint uint64 `json:"-"`
}

// Summary counts always equal the lengths of the matching collections.
type Summary struct {
	TotalTables     int `json:"total_tables"`
	TotalMetrics    int `json:"total_metrics"`
	TotalCharts     int `json:"total_charts"`
	TotalFilters    int `json:"total_filters"`
	TotalTextBlocks int `json:"total_text_blocks"`
}

// Diagnostics carries the non-fatal problems absorbed during a scrape.
type Diagnostics struct {
	// Partial is set when any state was extracted before it settled or the
	// request budget expired. The document is best-effort in that case.
	Partial           bool           `json:"partial"`
	BudgetExhausted   bool           `json:"budget_exhausted"`
	Steps             int            `json:"steps"`
	StatesExtracted   int            `json:"states_extracted"`
	UnsettledStates   []string       `json:"unsettled_states"`
	SkippedNavigation []string       `json:"skipped_navigation"`
	ExtractionErrors  int            `json:"extraction_errors"`
	Issues            []*ErrorDetail `json:"issues"`
}
