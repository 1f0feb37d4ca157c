package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/dashscrape/fingerprint"
	"github.com/use-agent/dashscrape/models"
)

type chartStrategy struct{}

func (chartStrategy) kind() Kind { return KindChart }

func (chartStrategy) extract(s *state) error {
	r := s.rules.Charts
	s.each(KindChart, s.sel.chart, func(el *goquery.Selection) error {
		typ := renderType(el)
		g := graphic(el)
		// A visualization wrapper around scorecards or tables is not a
		// chart of its own.
		if g != el && s.containsClaimed(el.Get(0), KindMetric, KindTable) {
			return nil
		}
		if typ == models.ChartDiv && Text(el) == "" {
			return nil
		}
		if tooSmall(g, r.MinSize) {
			return nil
		}

		// The title and legend live beside the drawing, so search from
		// the nearest enclosing widget.
		container := el.Parent()
		if s.sel.chartContainer != nil {
			if c := container.ClosestMatcher(s.sel.chartContainer); c.Length() > 0 {
				container = c
			}
		}

		title := chartTitle(s, el, container)
		labels := chartLabels(s, container, title, r.MaxLabels)

		s.claim(KindChart, el)
		fields := append([]string{typ, title}, labels...)
		s.out.Charts = append(s.out.Charts, models.Chart{
			Type:        typ,
			Title:       title,
			Labels:      labels,
			Fingerprint: fingerprint.Of("chart", fields...),
		})
		return nil
	})
	return nil
}

// renderType classifies a chart by the technology that draws it.
func renderType(el *goquery.Selection) string {
	switch goquery.NodeName(el) {
	case "canvas":
		return models.ChartCanvas
	case "svg":
		return models.ChartSVG
	}
	if el.Find("canvas").Length() > 0 {
		return models.ChartCanvas
	}
	if el.Find("svg").Length() > 0 {
		return models.ChartSVG
	}
	return models.ChartDiv
}

// graphic returns the canvas or svg element that draws el.
func graphic(el *goquery.Selection) *goquery.Selection {
	switch goquery.NodeName(el) {
	case "canvas", "svg":
		return el
	}
	return el.Find("canvas, svg").First()
}

// tooSmall reports whether g declares a width or height under minSize.
// Undeclared sizes pass.
func tooSmall(g *goquery.Selection, minSize int) bool {
	if minSize <= 0 || g.Length() == 0 {
		return false
	}
	for _, a := range []string{"width", "height"} {
		v, ok := g.Attr(a)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
		if err == nil && n < minSize {
			return true
		}
	}
	return false
}

func chartTitle(s *state, el, container *goquery.Selection) string {
	if s.sel.chartTitle != nil {
		var title string
		container.FindMatcher(s.sel.chartTitle).EachWithBreak(func(_ int, t *goquery.Selection) bool {
			title = Text(t)
			return title == ""
		})
		if title != "" {
			return title
		}
	}
	if v, ok := el.Attr("aria-label"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return Text(graphic(el).ChildrenFiltered("title"))
}

func chartLabels(s *state, container *goquery.Selection, title string, maxLabels int) []string {
	labels := []string{}
	if s.sel.chartLabel == nil {
		return labels
	}
	seen := map[string]bool{title: true}
	container.FindMatcher(s.sel.chartLabel).EachWithBreak(func(_ int, l *goquery.Selection) bool {
		labels = uniqueAppend(labels, seen, Text(l))
		return maxLabels <= 0 || len(labels) < maxLabels
	})
	return labels
}
