// Package aggregate merges per-state extraction records into one
// deduplicated session result and assembles the final document.
package aggregate

import (
	"fmt"
	"log/slog"

	"github.com/use-agent/dashscrape/extract"
	"github.com/use-agent/dashscrape/fingerprint"
	"github.com/use-agent/dashscrape/models"
)

// TextDistance is the largest simhash distance at which two text blocks
// count as the same block.
const TextDistance = 3

// MaxIssues caps the issues kept in diagnostics. Later issues are still
// counted in ExtractionErrors.
const MaxIssues = 50

// MergeStats counts what one Merge call kept and dropped.
type MergeStats struct {
	Admitted int
	Dropped  int
}

// Aggregator collects the records of every state visited in one session.
// It is owned by a single scrape and is not safe for concurrent use.
type Aggregator struct {
	url  string
	meta models.ResultMetadata

	tables  []models.Table
	metrics []models.Metric
	charts  []models.Chart
	filters []models.Filter
	texts   []models.TextBlock

	seen     map[extract.Kind]map[string]struct{}
	tableSeq int
	chartSeq int

	explored    []string
	exploredSet map[string]struct{}

	diag models.Diagnostics

	logger *slog.Logger
}

// New creates an empty aggregator for a session on url.
func New(url string, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		url: url,
		seen: map[extract.Kind]map[string]struct{}{
			extract.KindTable:  {},
			extract.KindMetric: {},
			extract.KindChart:  {},
			extract.KindFilter: {},
		},
		exploredSet: make(map[string]struct{}),
		logger:      logger,
	}
}

// Merge admits the records of one state whose fingerprints were not seen
// before in their category, keeping first-seen order. Admitted tables and
// charts are numbered from the session sequence.
func (a *Aggregator) Merge(r *extract.Records) MergeStats {
	var st MergeStats
	if r == nil {
		return st
	}
	a.diag.StatesExtracted++

	if a.meta.Title == "" {
		a.meta.Title = r.Title
	}
	if a.meta.DashboardTitle == "" {
		a.meta.DashboardTitle = r.DashboardTitle
	}

	for _, t := range r.Tables {
		if !a.admit(extract.KindTable, t.Fingerprint, &st) {
			continue
		}
		a.tableSeq++
		t.TableID = fmt.Sprintf("table_%d", a.tableSeq)
		a.tables = append(a.tables, t)
	}
	for _, m := range r.Metrics {
		if a.admit(extract.KindMetric, m.Fingerprint, &st) {
			a.metrics = append(a.metrics, m)
		}
	}
	occurrence := make(map[string]int, len(r.Charts))
	for _, c := range r.Charts {
		// Untitled charts of one kind share a fingerprint. Within a state
		// they are separate widgets, so the nth repeat is keyed by its
		// position and only the same repeat on a later state is dropped.
		occurrence[c.Fingerprint]++
		if n := occurrence[c.Fingerprint]; n > 1 {
			c.Fingerprint = fmt.Sprintf("%s#%d", c.Fingerprint, n)
		}
		if !a.admit(extract.KindChart, c.Fingerprint, &st) {
			continue
		}
		a.chartSeq++
		c.ChartID = fmt.Sprintf("chart_%d", a.chartSeq)
		a.charts = append(a.charts, c)
	}
	for _, f := range r.Filters {
		if a.admit(extract.KindFilter, f.Fingerprint, &st) {
			a.filters = append(a.filters, f)
		}
	}
	for _, tb := range r.Texts {
		if a.similarText(tb.Fingerprint) {
			st.Dropped++
			continue
		}
		st.Admitted++
		a.texts = append(a.texts, tb)
	}

	for _, is := range r.Issues {
		a.Issue(is)
	}
	return st
}

func (a *Aggregator) admit(k extract.Kind, fp string, st *MergeStats) bool {
	seen := a.seen[k]
	if _, dup := seen[fp]; dup {
		st.Dropped++
		return false
	}
	seen[fp] = struct{}{}
	st.Admitted++
	return true
}

func (a *Aggregator) similarText(fp uint64) bool {
	for _, t := range a.texts {
		if fingerprint.Similar(t.Fingerprint, fp, TextDistance) {
			return true
		}
	}
	return false
}

// Explored records that the state behind label was reached. Repeats are
// ignored.
func (a *Aggregator) Explored(label string) {
	if _, ok := a.exploredSet[label]; ok {
		return
	}
	a.exploredSet[label] = struct{}{}
	a.explored = append(a.explored, label)
}

// Skipped records a navigation candidate that could not be clicked.
func (a *Aggregator) Skipped(label string, err error) {
	a.diag.SkippedNavigation = append(a.diag.SkippedNavigation, label)
	d := models.DetailOf(err)
	d.Label = label
	a.issue(d)
}

// Unsettled records a state extracted before it settled. The root state
// is named by its URL.
func (a *Aggregator) Unsettled(label string) {
	a.diag.Partial = true
	a.diag.UnsettledStates = append(a.diag.UnsettledStates, label)
	a.issue(&models.ErrorDetail{
		Code:    models.ErrCodeSettleTimeout,
		Message: "state did not settle before the settle timeout",
		Label:   label,
	})
}

// Issue records a non-fatal extraction problem.
func (a *Aggregator) Issue(d *models.ErrorDetail) {
	if d.Code == models.ErrCodeExtraction {
		a.diag.ExtractionErrors++
	}
	a.issue(d)
}

func (a *Aggregator) issue(d *models.ErrorDetail) {
	if len(a.diag.Issues) >= MaxIssues {
		a.logger.Debug("aggregate: issue dropped", "url", a.url, "code", d.Code, "label", d.Label)
		return
	}
	a.diag.Issues = append(a.diag.Issues, d)
}

// ExploredLabels returns the explored labels in the order they were reached.
func (a *Aggregator) ExploredLabels() []string {
	return append([]string(nil), a.explored...)
}
