package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
	"gopkg.in/yaml.v3"
)

// Rules holds the selectors and thresholds the extraction passes use.
// They are tuned against one provider's markup and are expected to drift,
// so every value can be overridden from a YAML file.
type Rules struct {
	Tables     TableRules      `yaml:"tables"`
	Metrics    MetricRules     `yaml:"metrics"`
	Charts     ChartRules      `yaml:"charts"`
	Filters    FilterRules     `yaml:"filters"`
	FreeText   FreeTextRules   `yaml:"free_text"`
	Navigation NavigationRules `yaml:"navigation"`

	// DashboardTitle selectors, first non-empty match wins.
	DashboardTitle []string `yaml:"dashboard_title"`
}

type TableRules struct {
	// Selectors match real <table> elements.
	Selectors []string `yaml:"selectors"`
	// GridSelectors match ARIA grid/table containers built from divs.
	GridSelectors []string `yaml:"grid_selectors"`
	MaxRows       int      `yaml:"max_rows"`
}

type MetricRules struct {
	Selectors []string `yaml:"selectors"`
	// MaxLines rejects containers with more text lines than a scorecard
	// plausibly shows (name, value, comparison, period).
	MaxLines int `yaml:"max_lines"`
	// MaxValueLength rejects numeric-looking lines too long to be a KPI.
	MaxValueLength int `yaml:"max_value_length"`
	// RequireNumeric drops candidates without a numeric-looking line.
	// When false the first two lines are taken as name and value.
	RequireNumeric bool `yaml:"require_numeric"`
}

type ChartRules struct {
	Selectors []string `yaml:"selectors"`
	// Containers bound the search for a chart's title and legend.
	Containers []string `yaml:"containers"`
	Titles     []string `yaml:"titles"`
	Labels     []string `yaml:"labels"`
	MaxLabels  int      `yaml:"max_labels"`
	// MinSize skips canvases and svgs whose declared width or height is
	// smaller, which filters out icons.
	MinSize int `yaml:"min_size"`
}

type FilterRules struct {
	Selectors []string `yaml:"selectors"`
	MaxLines  int      `yaml:"max_lines"`
}

type FreeTextRules struct {
	Regions   []string `yaml:"regions"`
	MinLength int      `yaml:"min_length"`
	MaxLength int      `yaml:"max_length"`
	// Readability runs go-readability over the whole state when nothing
	// else was found.
	Readability bool `yaml:"readability"`
}

type NavigationRules struct {
	// Selectors are tried in order; the first one matching an element is
	// kept with the candidate and reused to locate it at click time.
	Selectors      []string `yaml:"selectors"`
	MaxLabelLength int      `yaml:"max_label_length"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		Tables: TableRules{
			Selectors:     []string{"table"},
			GridSelectors: []string{`[role="grid"]`, `[role="table"]`},
			MaxRows:       1000,
		},
		Metrics: MetricRules{
			Selectors: []string{
				`[class*="scorecard"]`,
				`[class*="metric"]`,
				`[class*="kpi"]`,
				`[data-test-id*="scorecard"]`,
				`div[class*="compact-number"]`,
				`div[class*="metric-value"]`,
			},
			MaxLines:       5,
			MaxValueLength: 24,
			RequireNumeric: true,
		},
		Charts: ChartRules{
			Selectors: []string{
				"canvas",
				`svg[class*="chart"]`,
				`div[class*="chart-container"]`,
				`div[class*="visualization"]`,
			},
			Containers: []string{
				`[class*="chart-container"]`,
				`[class*="component"]`,
				`[class*="widget"]`,
				`[class*="card"]`,
				"figure",
			},
			Titles: []string{
				`[class*="title"]`, "h1", "h2", "h3", "h4", `[role="heading"]`, "figcaption",
			},
			Labels: []string{
				"svg text",
				`[class*="legend"] [class*="label"]`,
				`[class*="legend-item"]`,
				`[class*="axis"] [class*="label"]`,
			},
			MaxLabels: 50,
			MinSize:   40,
		},
		Filters: FilterRules{
			Selectors: []string{
				`[class*="filter"]`,
				`[class*="control"]`,
				"select",
				`input[type="date"]`,
			},
			MaxLines: 6,
		},
		FreeText: FreeTextRules{
			Regions: []string{
				`[class*="component"]`,
				`[class*="widget"]`,
				`[role="region"]`,
				"section",
				"article",
			},
			MinLength:   20,
			MaxLength:   4000,
			Readability: true,
		},
		Navigation: NavigationRules{
			Selectors: []string{
				`[class*="canvas-page"]`,
				`[class*="page-navigation"] [role="button"]`,
				`[class*="page-navigation"] button`,
				`[class*="page-list"] *`,
				`[class*="page-item"]`,
				"nav a",
				"nav button",
				`nav [role="button"]`,
				`button[role="tab"]`,
				`[role="tab"]`,
				`[class*="sidebar"] a`,
				`[class*="sidebar"] button`,
				`[class*="sidebar"] [role="button"]`,
				`[class*="navigation"] button`,
				`[class*="nav-item"]`,
				`[class*="menu-item"]`,
				"[" + AttrRail + "]",
			},
			MaxLabelLength: 40,
		},
		DashboardTitle: []string{
			"h1",
			`[class*="dashboard-title"]`,
			`[class*="report-title"]`,
		},
	}
}

// LoadRules overlays the YAML file at path onto DefaultRules. Keys absent
// from the file keep their defaults; present lists replace the default list.
// An empty path returns the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("extract: read rules: %w", err)
	}
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return Rules{}, fmt.Errorf("extract: parse rules %s: %w", path, err)
	}
	if _, err := rules.compile(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// compiled holds one cascadia selector group per rule list. A nil selector
// means the list was empty and the pass is disabled.
type compiled struct {
	table, grid            cascadia.Selector
	metric                 cascadia.Selector
	chart, chartContainer  cascadia.Selector
	chartTitle, chartLabel cascadia.Selector
	filter                 cascadia.Selector
	region                 cascadia.Selector
	dashboardTitle         cascadia.Selector
}

func (r Rules) compile() (*compiled, error) {
	var (
		c   compiled
		err error
	)
	groups := []struct {
		name string
		list []string
		dst  *cascadia.Selector
	}{
		{"tables.selectors", r.Tables.Selectors, &c.table},
		{"tables.grid_selectors", r.Tables.GridSelectors, &c.grid},
		{"metrics.selectors", r.Metrics.Selectors, &c.metric},
		{"charts.selectors", r.Charts.Selectors, &c.chart},
		{"charts.containers", r.Charts.Containers, &c.chartContainer},
		{"charts.titles", r.Charts.Titles, &c.chartTitle},
		{"charts.labels", r.Charts.Labels, &c.chartLabel},
		{"filters.selectors", r.Filters.Selectors, &c.filter},
		{"free_text.regions", r.FreeText.Regions, &c.region},
		{"dashboard_title", r.DashboardTitle, &c.dashboardTitle},
	}
	for _, g := range groups {
		if *g.dst, err = compileList(g.list); err != nil {
			return nil, fmt.Errorf("extract: rules %s: %w", g.name, err)
		}
	}
	if _, err := CompileEach(r.Navigation.Selectors); err != nil {
		return nil, fmt.Errorf("extract: rules navigation.selectors: %w", err)
	}
	return &c, nil
}

func compileList(list []string) (cascadia.Selector, error) {
	if len(list) == 0 {
		return nil, nil
	}
	return cascadia.Compile(strings.Join(list, ", "))
}

// CompiledSelector pairs a selector's source text with its compiled form.
type CompiledSelector struct {
	Source string
	Sel    cascadia.Selector
}

// CompileEach compiles every selector on its own so a caller can tell
// which one matched an element.
func CompileEach(list []string) ([]CompiledSelector, error) {
	out := make([]CompiledSelector, 0, len(list))
	for _, s := range list {
		sel, err := cascadia.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		out = append(out, CompiledSelector{Source: s, Sel: sel})
	}
	return out, nil
}
