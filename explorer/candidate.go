package explorer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gobwas/glob"
	"github.com/use-agent/dashscrape/extract"
	"github.com/use-agent/dashscrape/fingerprint"
)

// Candidate is a clickable navigation control found in a page state.
// Key identifies it across states.
type Candidate struct {
	Key   string
	Label string
	// Selector is the discovery rule that matched; Click re-resolves the
	// control with it plus the label.
	Selector string
	// Path lists the labels clicked from the root to reach the state the
	// candidate was discovered in.
	Path []string

	Visited bool
	Skipped bool
}

func (c *Candidate) String() string {
	if len(c.Path) == 0 {
		return c.Label
	}
	return strings.Join(c.Path, " > ") + " > " + c.Label
}

// Discoverer finds navigation candidates in snapshots.
type Discoverer struct {
	selectors []extract.CompiledSelector
	ignore    []glob.Glob
	maxLabel  int
}

// NewDiscoverer compiles the navigation rules and the ignore patterns.
// Patterns are matched case-insensitively against the label.
func NewDiscoverer(rules extract.NavigationRules, ignore []string) (*Discoverer, error) {
	sels, err := extract.CompileEach(rules.Selectors)
	if err != nil {
		return nil, fmt.Errorf("explorer: navigation selectors: %w", err)
	}
	d := &Discoverer{selectors: sels, maxLabel: rules.MaxLabelLength}
	for _, p := range ignore {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, fmt.Errorf("explorer: ignore pattern %q: %w", p, err)
		}
		d.ignore = append(d.ignore, g)
	}
	return d, nil
}

// Discover returns the candidates of one snapshot in document order, one
// per key. path is the click path of the snapshot's state.
func (d *Discoverer) Discover(document, pageURL string, path []string) ([]*Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("explorer: parse snapshot: %w", err)
	}
	base, _ := url.Parse(pageURL)

	var out []*Candidate
	seen := make(map[string]bool)
	doc.Find("body *").Each(func(_ int, el *goquery.Selection) {
		rule := d.match(el)
		if rule == "" || hidden(el) || d.offSite(el, base) {
			return
		}
		label := labelOf(el)
		if !d.acceptLabel(label) {
			return
		}
		key := fingerprint.Normalize(label)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, &Candidate{
			Key:      key,
			Label:    label,
			Selector: rule,
			Path:     append([]string(nil), path...),
		})
	})
	return out, nil
}

func (d *Discoverer) match(el *goquery.Selection) string {
	n := el.Get(0)
	for _, s := range d.selectors {
		if s.Sel.Match(n) {
			return s.Source
		}
	}
	return ""
}

func (d *Discoverer) acceptLabel(label string) bool {
	if label == "" {
		return false
	}
	if d.maxLabel > 0 && len([]rune(label)) > d.maxLabel {
		return false
	}
	lower := strings.ToLower(label)
	for _, g := range d.ignore {
		if g.Match(lower) {
			return false
		}
	}
	return true
}

// offSite reports anchors that would leave the dashboard.
func (d *Discoverer) offSite(el *goquery.Selection, base *url.URL) bool {
	if goquery.NodeName(el) != "a" {
		return false
	}
	if t, _ := el.Attr("target"); t == "_blank" {
		return true
	}
	href, ok := el.Attr("href")
	if !ok || base == nil {
		return false
	}
	u, err := base.Parse(strings.TrimSpace(href))
	if err != nil {
		return true
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return !strings.EqualFold(u.Hostname(), base.Hostname())
}

func hidden(el *goquery.Selection) bool {
	return el.Closest("["+extract.AttrHidden+"]").Length() > 0
}

// labelOf is the control's visible text, falling back to its accessible
// name for icon-only controls.
func labelOf(el *goquery.Selection) string {
	if s := extract.Text(el); s != "" {
		return s
	}
	for _, a := range []string{"aria-label", "title"} {
		if v, ok := el.Attr(a); ok {
			if v = strings.Join(strings.Fields(v), " "); v != "" {
				return v
			}
		}
	}
	return ""
}
