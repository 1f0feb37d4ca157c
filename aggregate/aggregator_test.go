package aggregate

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/dashscrape/extract"
	"github.com/use-agent/dashscrape/fingerprint"
	"github.com/use-agent/dashscrape/models"
)

const dashURL = "https://lookerstudio.google.com/reporting/abc"

func records(t *testing.T, html string) *extract.Records {
	t.Helper()
	e, err := extract.New(extract.DefaultRules(), nil)
	require.NoError(t, err)
	rec, err := e.Extract(html, dashURL)
	require.NoError(t, err)
	return rec
}

func TestMerge_CampaignTableBecomesTable1(t *testing.T) {
	a := New(dashURL, nil)
	a.Merge(records(t, `<table>
		<thead><tr><th>Campaign</th><th>Impressions</th></tr></thead>
		<tbody><tr><td>A</td><td>10,000</td></tr></tbody>
	</table>`))

	res := a.Assemble(Outcome{})
	require.Len(t, res.Tables, 1)
	tbl := res.Tables[0]
	assert.Equal(t, "table_1", tbl.TableID)
	assert.Equal(t, []string{"Campaign", "Impressions"}, tbl.Headers)
	assert.Equal(t, [][]string{{"A", "10,000"}}, tbl.Rows)
	assert.Equal(t, 1, tbl.RowCount)
	assert.Equal(t, 2, tbl.ColumnCount)
}

func TestMerge_SameKPIOnTwoTabsAppearsOnce(t *testing.T) {
	overview := `<h1>Ads</h1><div class="scorecard"><div>Total Impressions</div><div>18,000</div></div>
		<div class="scorecard"><div>Clicks</div><div>1,200</div></div>`
	detail := `<div class="scorecard"><div>Total Impressions</div><div>18,000</div></div>
		<table><tr><th>Day</th><th>Clicks</th></tr><tr><td>Mon</td><td>200</td></tr></table>`

	a := New(dashURL, nil)
	first := a.Merge(records(t, overview))
	second := a.Merge(records(t, detail))

	assert.Equal(t, MergeStats{Admitted: 2}, first)
	assert.Equal(t, MergeStats{Admitted: 1, Dropped: 1}, second)

	res := a.Assemble(Outcome{})
	require.Len(t, res.Metrics, 2)
	assert.Equal(t, "Total Impressions", res.Metrics[0].Name)
	assert.Equal(t, "18,000", res.Metrics[0].Value)
	assert.Equal(t, "Clicks", res.Metrics[1].Name)
	assert.Equal(t, "Ads", res.Metadata.DashboardTitle)
	assert.Equal(t, 2, res.Diagnostics.StatesExtracted)
}

func TestMerge_FingerprintsUniquePerCategory(t *testing.T) {
	tbl := models.Table{Headers: []string{"h"}, Rows: [][]string{{"1"}}, RowCount: 1, ColumnCount: 1,
		Fingerprint: fingerprint.Of("table", fingerprint.Grid([]string{"h"}, [][]string{{"1"}})...)}
	other := tbl
	other.Rows = [][]string{{"2"}}
	other.Fingerprint = fingerprint.Of("table", fingerprint.Grid([]string{"h"}, other.Rows)...)
	chart := models.Chart{Type: models.ChartSVG, Title: "Revenue", Fingerprint: "c1"}

	a := New(dashURL, nil)
	a.Merge(&extract.Records{Tables: []models.Table{tbl, tbl}, Charts: []models.Chart{chart}})
	a.Merge(&extract.Records{Tables: []models.Table{other, tbl}, Charts: []models.Chart{chart}})

	res := a.Assemble(Outcome{})
	require.Len(t, res.Tables, 2)
	assert.Equal(t, "table_1", res.Tables[0].TableID)
	assert.Equal(t, "table_2", res.Tables[1].TableID)
	assert.Equal(t, [][]string{{"2"}}, res.Tables[1].Rows)

	seen := map[string]bool{}
	for _, tb := range res.Tables {
		assert.False(t, seen[tb.Fingerprint], "duplicate fingerprint %s", tb.Fingerprint)
		seen[tb.Fingerprint] = true
	}
	require.Len(t, res.Charts, 1)
	assert.Equal(t, "chart_1", res.Charts[0].ChartID)
}

func TestMerge_UntitledChartsInOneState(t *testing.T) {
	html := `<div class="widget"><canvas width="400" height="300"></canvas></div>
		<div class="widget"><canvas width="400" height="300"></canvas></div>
		<div class="widget"><canvas width="400" height="300"></canvas></div>`
	rec := records(t, html)
	require.Len(t, rec.Charts, 3)

	a := New(dashURL, nil)
	first := a.Merge(rec)
	second := a.Merge(records(t, html))

	assert.Equal(t, MergeStats{Admitted: 3}, first)
	assert.Equal(t, MergeStats{Dropped: 3}, second)

	res := a.Assemble(Outcome{})
	require.Len(t, res.Charts, 3)
	seen := map[string]bool{}
	for i, c := range res.Charts {
		assert.Equal(t, fmt.Sprintf("chart_%d", i+1), c.ChartID)
		assert.False(t, seen[c.Fingerprint], "duplicate fingerprint %s", c.Fingerprint)
		seen[c.Fingerprint] = true
	}
}

func TestMerge_SameFingerprintDifferentCategory(t *testing.T) {
	a := New(dashURL, nil)
	a.Merge(&extract.Records{
		Metrics: []models.Metric{{Name: "Device", Value: "Mobile", Fingerprint: "x"}},
		Filters: []models.Filter{{Name: "Device", Value: "Mobile", Fingerprint: "x"}},
	})

	res := a.Assemble(Outcome{})
	assert.Len(t, res.Metrics, 1)
	assert.Len(t, res.Filters, 1)
}

func TestMerge_TableIDsDeterministic(t *testing.T) {
	html := `<table><tr><th>a</th></tr><tr><td>1</td></tr></table>
		<div role="grid"><div role="row"><div role="gridcell">x</div></div></div>`

	ids := func() []string {
		a := New(dashURL, nil)
		a.Merge(records(t, html))
		var out []string
		for _, tb := range a.Assemble(Outcome{}).Tables {
			out = append(out, tb.TableID+":"+tb.Fingerprint)
		}
		return out
	}
	assert.Equal(t, ids(), ids())
}

func TestMerge_NearDuplicateText(t *testing.T) {
	body := "Figures exclude internal traffic and test accounts from every region."
	a := New(dashURL, nil)
	a.Merge(&extract.Records{Texts: []models.TextBlock{{Text: body, Fingerprint: fingerprint.SimHash(body)}}})
	st := a.Merge(&extract.Records{Texts: []models.TextBlock{{Text: body + " ", Fingerprint: fingerprint.SimHash(body + " ")}}})

	assert.Equal(t, 1, st.Dropped)
	assert.Len(t, a.Assemble(Outcome{}).TextBlocks, 1)
}

func TestExplored_IgnoresRepeats(t *testing.T) {
	a := New(dashURL, nil)
	a.Explored("Overview")
	a.Explored("Traffic")
	a.Explored("Overview")

	assert.Equal(t, []string{"Overview", "Traffic"}, a.Assemble(Outcome{}).NavigationExplored)
}

func TestDiagnostics(t *testing.T) {
	a := New(dashURL, nil)
	a.Skipped("Audience", models.NewScrapeError(models.ErrCodeNavigation, "element detached", errors.New("node gone")))
	a.Unsettled("Traffic")
	a.Merge(&extract.Records{Issues: []*models.ErrorDetail{{Code: models.ErrCodeExtraction, Message: "chart: widget panicked"}}})

	res := a.Assemble(Outcome{Steps: 3})
	d := res.Diagnostics
	assert.True(t, d.Partial)
	assert.False(t, d.BudgetExhausted)
	assert.Equal(t, 3, d.Steps)
	assert.Equal(t, []string{"Audience"}, d.SkippedNavigation)
	assert.Equal(t, []string{"Traffic"}, d.UnsettledStates)
	assert.Equal(t, 1, d.ExtractionErrors)
	require.Len(t, d.Issues, 3)
	assert.Equal(t, models.ErrCodeNavigation, d.Issues[0].Code)
	assert.Equal(t, "Audience", d.Issues[0].Label)
	assert.Equal(t, models.ErrCodeSettleTimeout, d.Issues[1].Code)
	assert.NotContains(t, res.NavigationExplored, "Audience")
}

func TestIssuesCapped(t *testing.T) {
	a := New(dashURL, nil)
	for i := 0; i < MaxIssues+10; i++ {
		a.Issue(&models.ErrorDetail{Code: models.ErrCodeExtraction, Message: "boom"})
	}

	d := a.Assemble(Outcome{}).Diagnostics
	assert.Len(t, d.Issues, MaxIssues)
	assert.Equal(t, MaxIssues+10, d.ExtractionErrors)
}

func TestAssemble_EmptyDashboard(t *testing.T) {
	a := New(dashURL, nil)
	a.Merge(records(t, `<html><body></body></html>`))

	res := a.Assemble(Outcome{})
	assert.NotNil(t, res.Tables)
	assert.NotNil(t, res.Metrics)
	assert.NotNil(t, res.Charts)
	assert.NotNil(t, res.Filters)
	assert.NotNil(t, res.TextBlocks)
	assert.NotNil(t, res.NavigationExplored)
	assert.NotNil(t, res.Diagnostics.Issues)
	assert.Equal(t, models.Summary{}, res.Summary)
	assert.False(t, res.Diagnostics.Partial)
	assert.Equal(t, dashURL, res.Metadata.URL)
}

func TestAssemble_SummaryMatchesArrays(t *testing.T) {
	a := New(dashURL, nil)
	a.Merge(records(t, `
		<div class="scorecard"><div>Users</div><div>1,204</div></div>
		<table><tr><th>a</th></tr><tr><td>1</td></tr></table>
		<canvas width="300" height="200"></canvas>
		<select aria-label="Country" data-ds-value="Germany"></select>`))

	res := a.Assemble(Outcome{})
	assert.Equal(t, len(res.Tables), res.Summary.TotalTables)
	assert.Equal(t, len(res.Metrics), res.Summary.TotalMetrics)
	assert.Equal(t, len(res.Charts), res.Summary.TotalCharts)
	assert.Equal(t, len(res.Filters), res.Summary.TotalFilters)
	assert.Equal(t, len(res.TextBlocks), res.Summary.TotalTextBlocks)
	assert.Equal(t, 1, res.Summary.TotalTables)
	assert.Equal(t, 1, res.Summary.TotalCharts)
}

func TestAssemble_MetadataAndBudget(t *testing.T) {
	a := New(dashURL, nil)
	a.Merge(&extract.Records{Title: "Ads report"})

	now := time.Date(2024, 3, 9, 17, 4, 5, 0, time.FixedZone("CET", 3600))
	res := a.assembleAt(Outcome{Steps: 20, BudgetExhausted: true, URL: dashURL + "/page/p1"}, now)

	assert.Equal(t, "2024-03-09 16:04:05", res.Metadata.Timestamp)
	assert.Equal(t, "Ads report", res.Metadata.Title)
	assert.Equal(t, dashURL+"/page/p1", res.Metadata.URL)
	assert.True(t, res.Diagnostics.BudgetExhausted)
	assert.True(t, res.Diagnostics.Partial)
}
