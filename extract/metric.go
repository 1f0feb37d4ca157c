package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/dashscrape/fingerprint"
	"github.com/use-agent/dashscrape/models"
)

type metricStrategy struct{}

func (metricStrategy) kind() Kind { return KindMetric }

// extract keeps the outermost scorecard-like container that reads as a
// label next to a large value. Rejected containers are not claimed, so a
// wrapper around several cards falls through to the cards themselves.
func (metricStrategy) extract(s *state) error {
	r := s.rules.Metrics
	s.each(KindMetric, s.sel.metric, func(el *goquery.Selection) error {
		ls := Lines(el)
		if len(ls) == 0 || (r.MaxLines > 0 && len(ls) > r.MaxLines) {
			return nil
		}
		name, value, ok := splitMetric(ls, r)
		if !ok {
			return nil
		}
		s.claim(KindMetric, el)
		s.out.Metrics = append(s.out.Metrics, models.Metric{
			Name:        name,
			Value:       value,
			FullText:    strings.Join(ls, "\n"),
			Fingerprint: fingerprint.Of("metric", name, value),
		})
		return nil
	})
	return nil
}

// splitMetric pairs the first value-looking line with the nearest label
// before it, or after it when the value comes first.
func splitMetric(ls []string, r MetricRules) (name, value string, ok bool) {
	vi := -1
	for i, l := range ls {
		if isValue(l, r.MaxValueLength) {
			vi = i
			break
		}
	}

	if vi < 0 {
		for _, l := range ls {
			if n, v, ok := splitInline(l, r.MaxValueLength); ok {
				return n, v, true
			}
		}
		if r.RequireNumeric {
			return "", "", false
		}
		name = ls[0]
		if len(ls) > 1 {
			value = ls[1]
		}
		return name, value, true
	}

	value = ls[vi]
	for i := vi - 1; i >= 0; i-- {
		if !isValue(ls[i], r.MaxValueLength) {
			return ls[i], value, true
		}
	}
	for i := vi + 1; i < len(ls); i++ {
		if !isValue(ls[i], r.MaxValueLength) {
			return ls[i], value, true
		}
	}
	// A bare number with no label is not a scorecard.
	return "", "", false
}
