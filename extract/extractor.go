// Package extract classifies the widgets of a settled dashboard snapshot
// into tables, metrics, charts, filters and free text.
package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/dashscrape/cleaner"
	"github.com/use-agent/dashscrape/models"
	"golang.org/x/net/html"
)

// Attributes written into the live page by the snapshot script. Static
// HTML has no layout or live form state; these carry it into the snapshot.
const (
	AttrHidden = "data-ds-hidden" // element has no visible box
	AttrRail   = "data-ds-rail"   // short label in the left navigation rail
	AttrValue  = "data-ds-value"  // current value of a form control
)

// Kind is one variant of the widget classifier.
type Kind int

const (
	KindTable Kind = iota
	KindMetric
	KindChart
	KindFilter
	KindFreeText
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindMetric:
		return "metric"
	case KindChart:
		return "chart"
	case KindFilter:
		return "filter"
	case KindFreeText:
		return "free_text"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Records are the widgets found in one state. Table and chart ids are left
// empty; the aggregator numbers them when they are admitted to a session.
type Records struct {
	Tables  []models.Table
	Metrics []models.Metric
	Charts  []models.Chart
	Filters []models.Filter
	Texts   []models.TextBlock

	Title          string
	DashboardTitle string

	// Issues are per-widget failures that were skipped.
	Issues []*models.ErrorDetail
}

// Structured reports whether any structured pass produced output.
func (r *Records) Structured() bool {
	return len(r.Tables)+len(r.Metrics)+len(r.Charts)+len(r.Filters) > 0
}

// strategy extracts one kind of widget. The set is closed: Extractor runs
// them in a fixed order and later strategies see the nodes earlier ones
// claimed.
type strategy interface {
	kind() Kind
	extract(s *state) error
}

// Extractor runs the extraction strategies over page snapshots.
// It is safe for concurrent use.
type Extractor struct {
	rules      Rules
	sel        *compiled
	cleaner    *cleaner.Cleaner
	strategies []strategy
	logger     *slog.Logger
}

// New compiles rules into an Extractor.
func New(rules Rules, logger *slog.Logger) (*Extractor, error) {
	sel, err := rules.compile()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		rules:   rules,
		sel:     sel,
		cleaner: cleaner.New(),
		strategies: []strategy{
			tableStrategy{},
			metricStrategy{},
			chartStrategy{},
			filterStrategy{},
			freeTextStrategy{},
		},
		logger: logger,
	}, nil
}

// Rules returns the rule set the extractor was built with.
func (e *Extractor) Rules() Rules { return e.rules }

// Extract classifies the widgets in one snapshot. A failing widget or pass
// is recorded in Records.Issues and never stops the others; the only
// error is an unparseable document.
func (e *Extractor) Extract(document, pageURL string) (*Records, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("extract: parse snapshot: %w", err)
	}

	s := &state{
		doc:     doc,
		raw:     document,
		pageURL: pageURL,
		rules:   &e.rules,
		sel:     e.sel,
		cleaner: e.cleaner,
		claimed: make(map[*html.Node]Kind),
		out:     &Records{},
	}
	s.out.Title = strings.TrimSpace(doc.Find("title").First().Text())
	s.out.DashboardTitle = s.firstText(e.sel.dashboardTitle)

	for _, st := range e.strategies {
		e.run(s, st)
	}

	if n := len(s.out.Issues); n > 0 {
		e.logger.Debug("extract: widgets skipped", "url", pageURL, "issues", n)
	}
	return s.out, nil
}

func (e *Extractor) run(s *state, st strategy) {
	defer func() {
		if r := recover(); r != nil {
			s.issue(st.kind(), fmt.Errorf("pass panicked: %v", r))
		}
	}()
	if err := st.extract(s); err != nil {
		s.issue(st.kind(), err)
	}
}

// state is the per-snapshot scratch space shared by the strategies.
type state struct {
	doc     *goquery.Document
	raw     string
	pageURL string
	rules   *Rules
	sel     *compiled
	cleaner *cleaner.Cleaner
	claimed map[*html.Node]Kind
	out     *Records
}

// each calls fn for every element matched by m that is not inside a node a
// strategy already claimed. A panic or error in fn is recorded as an issue
// for that one widget.
func (s *state) each(k Kind, m cascadia.Selector, fn func(el *goquery.Selection) error) {
	if m == nil {
		return
	}
	s.doc.FindMatcher(m).Each(func(_ int, el *goquery.Selection) {
		if s.insideClaimed(el.Get(0)) {
			return
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.issue(k, fmt.Errorf("widget panicked: %v", r))
				}
			}()
			if err := fn(el); err != nil {
				s.issue(k, err)
			}
		}()
	})
}

func (s *state) claim(k Kind, el *goquery.Selection) {
	for _, n := range el.Nodes {
		s.claimed[n] = k
	}
}

// insideClaimed reports whether n or one of its ancestors was claimed.
func (s *state) insideClaimed(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if _, ok := s.claimed[p]; ok {
			return true
		}
	}
	return false
}

// containsClaimed reports whether a strict descendant of n was claimed by
// one of kinds (any kind when none are given).
func (s *state) containsClaimed(n *html.Node, kinds ...Kind) bool {
	for c, k := range s.claimed {
		if c == n || !kindIn(k, kinds) {
			continue
		}
		for p := c.Parent; p != nil; p = p.Parent {
			if p == n {
				return true
			}
		}
	}
	return false
}

func kindIn(k Kind, kinds []Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

func (s *state) issue(k Kind, err error) {
	s.out.Issues = append(s.out.Issues, &models.ErrorDetail{
		Code:    models.ErrCodeExtraction,
		Message: k.String() + ": " + err.Error(),
	})
}

func (s *state) firstText(m cascadia.Selector) string {
	if m == nil {
		return ""
	}
	var found string
	s.doc.FindMatcher(m).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		found = Text(el)
		return found == ""
	})
	return found
}
