package aggregate

import (
	"time"

	"github.com/use-agent/dashscrape/models"
)

// TimestampLayout formats metadata.timestamp, always in UTC.
const TimestampLayout = "2006-01-02 15:04:05"

// Outcome is how exploration ended.
type Outcome struct {
	// Steps is the number of navigation clicks made.
	Steps int
	// BudgetExhausted is set when the request budget expired before the
	// frontier was empty.
	BudgetExhausted bool
	// URL is the page URL after the root load, when known.
	URL string
}

// Assemble builds the final document. Collections are always non-nil and
// the summary is computed from them.
func (a *Aggregator) Assemble(o Outcome) *models.ExtractionResult {
	return a.assembleAt(o, time.Now())
}

func (a *Aggregator) assembleAt(o Outcome, now time.Time) *models.ExtractionResult {
	meta := a.meta
	meta.URL = a.url
	if o.URL != "" {
		meta.URL = o.URL
	}
	meta.Timestamp = now.UTC().Format(TimestampLayout)

	diag := a.diag
	diag.Steps = o.Steps
	diag.BudgetExhausted = o.BudgetExhausted
	diag.Partial = diag.Partial || o.BudgetExhausted
	diag.UnsettledStates = nonNil(diag.UnsettledStates)
	diag.SkippedNavigation = nonNil(diag.SkippedNavigation)
	if diag.Issues == nil {
		diag.Issues = []*models.ErrorDetail{}
	}

	res := &models.ExtractionResult{
		Metadata:           meta,
		Tables:             nonNil(a.tables),
		Metrics:            nonNil(a.metrics),
		Charts:             nonNil(a.charts),
		Filters:            nonNil(a.filters),
		TextBlocks:         nonNil(a.texts),
		NavigationExplored: nonNil(a.ExploredLabels()),
		Diagnostics:        diag,
	}
	res.Summary = models.Summary{
		TotalTables:     len(res.Tables),
		TotalMetrics:    len(res.Metrics),
		TotalCharts:     len(res.Charts),
		TotalFilters:    len(res.Filters),
		TotalTextBlocks: len(res.TextBlocks),
	}
	return res
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
