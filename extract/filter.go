package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/dashscrape/fingerprint"
	"github.com/use-agent/dashscrape/models"
)

type filterStrategy struct{}

func (filterStrategy) kind() Kind { return KindFilter }

func (filterStrategy) extract(s *state) error {
	r := s.rules.Filters
	s.each(KindFilter, s.sel.filter, func(el *goquery.Selection) error {
		// "control" matches toolbars wrapping whole widgets.
		if s.containsClaimed(el.Get(0), KindTable, KindMetric, KindChart) {
			return nil
		}
		ls := Lines(el)
		if r.MaxLines > 0 && len(ls) > r.MaxLines {
			return nil
		}

		name, value := filterNameValue(el, ls)
		if name == "" && value == "" {
			return nil
		}
		s.claim(KindFilter, el)
		s.out.Filters = append(s.out.Filters, models.Filter{
			Name:        name,
			Value:       value,
			Fingerprint: fingerprint.Of("filter", name, value),
		})
		return nil
	})
	return nil
}

func filterNameValue(el *goquery.Selection, ls []string) (name, value string) {
	name = firstAttr(el, "aria-label", "placeholder", "name", "title")

	control := el
	switch goquery.NodeName(el) {
	case "select", "input", "textarea":
	default:
		control = el.Find("select, input, textarea").First()
	}
	if control.Length() > 0 {
		value = controlValue(control)
		if control == el {
			// Option texts are choices, not labels.
			return name, value
		}
		if name == "" {
			name = firstAttr(control, "aria-label", "placeholder", "name", "title")
		}
	}

	rest := ls
	if name == "" && len(rest) > 0 {
		name, rest = rest[0], rest[1:]
	} else if len(rest) > 0 && rest[0] == name {
		rest = rest[1:]
	}
	if value == "" && len(rest) > 0 {
		value = strings.Join(rest, ", ")
	}
	return name, value
}

// controlValue prefers the live value captured at snapshot time.
func controlValue(c *goquery.Selection) string {
	if v, ok := c.Attr(AttrValue); ok {
		return strings.TrimSpace(v)
	}
	if goquery.NodeName(c) == "select" {
		opt := c.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = c.Find("option").First()
		}
		return strings.Join(strings.Fields(opt.Text()), " ")
	}
	v, _ := c.Attr("value")
	return strings.TrimSpace(v)
}

func firstAttr(el *goquery.Selection, keys ...string) string {
	for _, k := range keys {
		if v, ok := el.Attr(k); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
