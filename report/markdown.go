// Package report renders an extraction document as a markdown text report.
package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/use-agent/dashscrape/models"
)

// Render returns the markdown report for res.
func Render(res *models.ExtractionResult) (string, error) {
	var b strings.Builder
	if err := Write(&b, res); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Write outputs the markdown report for res to w.
func Write(w io.Writer, res *models.ExtractionResult) error {
	md := markdown.NewMarkdown(w)

	writeHeader(md, res)
	writeMetrics(md, res.Metrics)
	writeFilters(md, res.Filters)
	writeTables(md, res.Tables)
	writeCharts(md, res.Charts)
	writeText(md, res.TextBlocks)
	writeDiagnostics(md, res)

	return md.Build()
}

func title(res *models.ExtractionResult) string {
	for _, t := range []string{res.Metadata.DashboardTitle, res.Metadata.Title} {
		if t != "" {
			return t
		}
	}
	return "Dashboard report"
}

func writeHeader(md *markdown.Markdown, res *models.ExtractionResult) {
	md.H1(title(res))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", res.Metadata.URL},
			{"Scraped", res.Metadata.Timestamp + " UTC"},
			{"Pages explored", strconv.Itoa(len(res.NavigationExplored))},
			{"Tables", strconv.Itoa(res.Summary.TotalTables)},
			{"Metrics", strconv.Itoa(res.Summary.TotalMetrics)},
			{"Charts", strconv.Itoa(res.Summary.TotalCharts)},
		},
	})
	md.PlainText("")

	if res.Diagnostics.Partial {
		md.Warningf("Partial result: %s.", partialReason(res.Diagnostics))
		md.PlainText("")
	}
	if len(res.NavigationExplored) > 0 {
		md.PlainText("Explored: " + strings.Join(res.NavigationExplored, ", "))
		md.PlainText("")
	}
}

func partialReason(d models.Diagnostics) string {
	var reasons []string
	if d.BudgetExhausted {
		reasons = append(reasons, "the time budget ran out")
	}
	if n := len(d.UnsettledStates); n > 0 {
		reasons = append(reasons, strconv.Itoa(n)+" state(s) never finished loading")
	}
	if len(reasons) == 0 {
		return "some content may be missing"
	}
	return strings.Join(reasons, " and ")
}

func writeMetrics(md *markdown.Markdown, metrics []models.Metric) {
	if len(metrics) == 0 {
		return
	}
	md.H2("Key metrics")
	md.PlainText("")
	rows := make([][]string, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, []string{cell(m.Name), cell(m.Value)})
	}
	md.Table(markdown.TableSet{Header: []string{"Metric", "Value"}, Rows: rows})
	md.PlainText("")
}

func writeFilters(md *markdown.Markdown, filters []models.Filter) {
	if len(filters) == 0 {
		return
	}
	md.H2("Filters")
	md.PlainText("")
	items := make([]string, 0, len(filters))
	for _, f := range filters {
		if f.Value == "" {
			items = append(items, f.Name)
			continue
		}
		items = append(items, f.Name+": "+f.Value)
	}
	md.BulletList(items...)
	md.PlainText("")
}

func writeTables(md *markdown.Markdown, tables []models.Table) {
	if len(tables) == 0 {
		return
	}
	md.H2("Tables")
	md.PlainText("")
	for _, t := range tables {
		md.H3(t.TableID + " (" + strconv.Itoa(t.RowCount) + " rows)")
		md.PlainText("")
		md.Table(tableSet(t))
		md.PlainText("")
	}
}

// tableSet pads every row to the column count; markdown tables cannot be
// ragged.
func tableSet(t models.Table) markdown.TableSet {
	cols := t.ColumnCount
	if len(t.Headers) > cols {
		cols = len(t.Headers)
	}
	header := pad(t.Headers, cols)
	for i, h := range header {
		if h == "" {
			header[i] = "Column " + strconv.Itoa(i+1)
		}
	}
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		rows = append(rows, pad(r, cols))
	}
	return markdown.TableSet{Header: header, Rows: rows}
}

func pad(in []string, n int) []string {
	out := make([]string, n)
	for i := 0; i < n && i < len(in); i++ {
		out[i] = cell(in[i])
	}
	return out
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

func writeCharts(md *markdown.Markdown, charts []models.Chart) {
	if len(charts) == 0 {
		return
	}
	md.H2("Charts")
	md.PlainText("")
	items := make([]string, 0, len(charts))
	counts := map[string]uint64{}
	for _, c := range charts {
		name := c.Title
		if name == "" {
			name = c.ChartID
		}
		item := name + " (" + c.Type + ")"
		if len(c.Labels) > 0 {
			item += ": " + strings.Join(c.Labels, ", ")
		}
		items = append(items, item)
		counts[c.Type]++
	}
	md.BulletList(items...)
	md.PlainText("")

	if len(counts) > 1 {
		chart := piechart.NewPieChart(io.Discard,
			piechart.WithTitle("Charts by rendering"),
			piechart.WithShowData(true),
		)
		for _, typ := range []string{models.ChartCanvas, models.ChartSVG, models.ChartDiv} {
			if n := counts[typ]; n > 0 {
				chart.LabelAndIntValue(typ, n)
			}
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
}

func writeText(md *markdown.Markdown, blocks []models.TextBlock) {
	if len(blocks) == 0 {
		return
	}
	md.H2("Text")
	md.PlainText("")
	for _, b := range blocks {
		md.PlainText(b.Text)
		md.PlainText("")
	}
}

func writeDiagnostics(md *markdown.Markdown, res *models.ExtractionResult) {
	d := res.Diagnostics
	if len(d.SkippedNavigation) == 0 && d.ExtractionErrors == 0 {
		return
	}
	md.H2("Diagnostics")
	md.PlainText("")
	if len(d.SkippedNavigation) > 0 {
		md.PlainText("Could not open: " + strings.Join(d.SkippedNavigation, ", "))
		md.PlainText("")
	}
	if d.ExtractionErrors > 0 {
		md.Note(strconv.Itoa(d.ExtractionErrors) + " widget(s) could not be extracted.")
		md.PlainText("")
	}
}
