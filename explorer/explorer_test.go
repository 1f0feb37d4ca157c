package explorer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/dashscrape/aggregate"
	"github.com/use-agent/dashscrape/extract"
	"github.com/use-agent/dashscrape/models"
	"github.com/use-agent/dashscrape/settle"
)

const dashURL = "https://lookerstudio.google.com/reporting/abc"

const tabs = `<div role="tablist">
	<div role="tab">Overview</div>
	<div role="tab">Traffic</div>
	<div role="tab">Audience</div>
</div>`

const kpi = `<div class="scorecard"><div>Total Impressions</div><div>18,000</div></div>`

// fakePage renders one state per label. A click only succeeds when the
// label is visible in the current state, like a real page.
type fakePage struct {
	states    map[string]string
	current   string
	detached  map[string]bool
	unsettled map[string]bool
	snapErr   error
	onClick   func(label string)
	clicks    []string
	nav       string
}

func newFakePage(states map[string]string) *fakePage {
	return &fakePage{states: states, detached: map[string]bool{}, unsettled: map[string]bool{}}
}

func (p *fakePage) html() string {
	nav := tabs
	if p.nav != "" {
		nav = p.nav
	}
	return "<html><head><title>Ads report</title></head><body>" + nav +
		"<main>" + p.states[p.current] + "</main></body></html>"
}

func (p *fakePage) Probe(context.Context) (settle.Probe, error) {
	inflight := 0
	if p.unsettled[p.current] {
		inflight = 1
	}
	return settle.Probe{DOMSize: len(p.html()), Inflight: inflight}, nil
}

func (p *fakePage) Snapshot(context.Context) (Snapshot, error) {
	if p.snapErr != nil {
		return Snapshot{}, p.snapErr
	}
	return Snapshot{HTML: p.html(), URL: dashURL, Title: "Ads report"}, nil
}

func (p *fakePage) Click(_ context.Context, _, label string) error {
	p.clicks = append(p.clicks, label)
	if p.onClick != nil {
		p.onClick(label)
	}
	if p.detached[label] {
		return models.NewScrapeError(models.ErrCodeNavigation, "element detached", nil)
	}
	if !p.visible(label) {
		return models.NewScrapeError(models.ErrCodeNavigation, "element not found", nil)
	}
	if _, ok := p.states[label]; !ok {
		return errors.New("no state for " + label)
	}
	p.current = label
	return nil
}

// visible reports whether a tab's rendered text, with block children on
// separate lines, reads as label once whitespace is collapsed.
func (p *fakePage) visible(label string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html()))
	if err != nil {
		return false
	}
	found := false
	doc.Find(`[role="tab"]`).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		inner := strings.Join(extract.Lines(el), "\n")
		found = strings.Join(strings.Fields(inner), " ") == label
		return !found
	})
	return found
}

func dashboard() map[string]string {
	return map[string]string{
		"":         kpi,
		"Overview": kpi,
		"Traffic": kpi + `<table><tr><th>Source</th><th>Sessions</th></tr>
			<tr><td>google</td><td>1,024</td></tr></table>`,
		"Audience": `<svg class="chart" width="300" height="200"><text>18-24</text><text>25-34</text></svg>`,
	}
}

func testOptions() Options {
	return Options{
		Explore:  true,
		MaxSteps: 20,
		Settle:   settle.Options{Interval: time.Millisecond, Timeout: 20 * time.Millisecond},
		Grace:    time.Second,
	}
}

func run(t *testing.T, ctx context.Context, page Page, opts Options) (*models.ExtractionResult, error) {
	t.Helper()
	ex, err := extract.New(extract.DefaultRules(), nil)
	require.NoError(t, err)
	e, err := New(ex, []string{"Share", "Download*"}, nil)
	require.NoError(t, err)

	agg := aggregate.New(dashURL, nil)
	out, err := e.Run(ctx, page, dashURL, agg, opts)
	if err != nil {
		return nil, err
	}
	return agg.Assemble(out), nil
}

func TestRun_VisitsEveryTabOnce(t *testing.T) {
	page := newFakePage(dashboard())

	res, err := run(t, context.Background(), page, testOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"Overview", "Traffic", "Audience"}, page.clicks)
	assert.Equal(t, []string{"Overview", "Traffic", "Audience"}, res.NavigationExplored)
	seen := map[string]bool{}
	for _, l := range res.NavigationExplored {
		assert.False(t, seen[l], "label %q explored twice", l)
		seen[l] = true
	}

	require.Len(t, res.Metrics, 1)
	assert.Equal(t, "Total Impressions", res.Metrics[0].Name)
	assert.Equal(t, "18,000", res.Metrics[0].Value)
	require.Len(t, res.Tables, 1)
	assert.Equal(t, "table_1", res.Tables[0].TableID)
	require.Len(t, res.Charts, 1)
	assert.Equal(t, "chart_1", res.Charts[0].ChartID)

	assert.Equal(t, 3, res.Diagnostics.Steps)
	// Overview renders the same document as the root and is not extracted again.
	assert.Equal(t, 3, res.Diagnostics.StatesExtracted)
	assert.False(t, res.Diagnostics.Partial)
	assert.Equal(t, "Ads report", res.Metadata.Title)
}

func TestRun_BlockChildLabels(t *testing.T) {
	page := newFakePage(map[string]string{
		"":         kpi,
		"Page 1":   `<table><tr><th>Source</th><th>Sessions</th></tr><tr><td>google</td><td>1,024</td></tr></table>`,
		"Overview": `<svg class="chart" width="300" height="200"><text>18-24</text><text>25-34</text></svg>`,
	})
	page.nav = `<div role="tablist">
		<div role="tab"><div>Page</div><div>1</div></div>
		<button role="tab"><span class="material-icons">home</span><div>Overview</div></button>
	</div>`

	res, err := run(t, context.Background(), page, testOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"Page 1", "Overview"}, page.clicks)
	assert.Equal(t, []string{"Page 1", "Overview"}, res.NavigationExplored)
	assert.Len(t, res.Tables, 1)
	assert.Len(t, res.Charts, 1)
}

func TestRun_ExploreDisabled(t *testing.T) {
	page := newFakePage(dashboard())
	opts := testOptions()
	opts.Explore = false

	res, err := run(t, context.Background(), page, opts)
	require.NoError(t, err)

	assert.Empty(t, page.clicks)
	assert.NotNil(t, res.NavigationExplored)
	assert.Empty(t, res.NavigationExplored)
	assert.Equal(t, 1, res.Diagnostics.StatesExtracted)
	assert.Len(t, res.Metrics, 1)
	assert.Empty(t, res.Tables)
}

func TestRun_DetachedClickSkipped(t *testing.T) {
	page := newFakePage(dashboard())
	page.detached["Traffic"] = true

	res, err := run(t, context.Background(), page, testOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"Overview", "Audience"}, res.NavigationExplored)
	assert.Equal(t, []string{"Traffic"}, res.Diagnostics.SkippedNavigation)
	assert.Empty(t, res.Tables)
	assert.Len(t, res.Charts, 1)
	require.NotEmpty(t, res.Diagnostics.Issues)
	assert.Equal(t, models.ErrCodeNavigation, res.Diagnostics.Issues[0].Code)
	assert.Equal(t, "Traffic", res.Diagnostics.Issues[0].Label)
}

func TestRun_UnsettledStateStillExtracted(t *testing.T) {
	page := newFakePage(dashboard())
	page.unsettled["Traffic"] = true

	res, err := run(t, context.Background(), page, testOptions())
	require.NoError(t, err)

	assert.Len(t, res.Tables, 1)
	assert.Contains(t, res.NavigationExplored, "Traffic")
	assert.Equal(t, []string{"Traffic"}, res.Diagnostics.UnsettledStates)
	assert.True(t, res.Diagnostics.Partial)
	assert.False(t, res.Diagnostics.BudgetExhausted)
}

func TestRun_MaxSteps(t *testing.T) {
	page := newFakePage(dashboard())
	opts := testOptions()
	opts.MaxSteps = 2

	res, err := run(t, context.Background(), page, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"Overview", "Traffic"}, page.clicks)
	assert.Equal(t, 2, res.Diagnostics.Steps)
	assert.Empty(t, res.Charts)
}

func TestRun_BudgetExpiryKeepsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	page := newFakePage(dashboard())
	page.onClick = func(label string) {
		if label == "Traffic" {
			cancel()
		}
	}

	res, err := run(t, ctx, page, testOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"Overview", "Traffic"}, page.clicks)
	assert.Equal(t, []string{"Overview", "Traffic"}, res.NavigationExplored)
	assert.Len(t, res.Tables, 1, "state reached before expiry is kept")
	assert.True(t, res.Diagnostics.BudgetExhausted)
	assert.True(t, res.Diagnostics.Partial)
}

func TestRun_ReplaysPathForNestedControl(t *testing.T) {
	states := dashboard()
	states["Traffic"] += `<div role="tab">Sources</div>`
	states["Sources"] = `<div role="tab">Sources</div><table><tr><th>Referrer</th></tr><tr><td>news.example</td></tr></table>`
	page := newFakePage(states)

	res, err := run(t, context.Background(), page, testOptions())
	require.NoError(t, err)

	// Sources is only visible below Traffic, so the click from Audience
	// misses and Traffic is clicked again first.
	assert.Equal(t, []string{"Overview", "Traffic", "Audience", "Sources", "Traffic", "Sources"}, page.clicks)
	assert.Equal(t, []string{"Overview", "Traffic", "Audience", "Sources"}, res.NavigationExplored)
	assert.Len(t, res.Tables, 2)
	assert.Empty(t, res.Diagnostics.SkippedNavigation)
	assert.Equal(t, 4, res.Diagnostics.Steps)
}

func TestRun_RootSnapshotFails(t *testing.T) {
	page := newFakePage(dashboard())
	page.snapErr = errors.New("target closed")

	_, err := run(t, context.Background(), page, testOptions())
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeNavigation, models.CodeOf(err))
}
