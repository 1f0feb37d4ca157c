package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Inline elements continue the current line; every other element starts a
// new one, roughly the way a browser's innerText breaks lines.
var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "cite": true,
	"code": true, "data": true, "dfn": true, "em": true, "font": true, "i": true,
	"kbd": true, "label": true, "mark": true, "q": true, "s": true, "samp": true,
	"small": true, "span": true, "strong": true, "sub": true, "sup": true,
	"time": true, "u": true, "var": true, "tspan": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"mat-icon": true, "option": true, "datalist": true,
}

// Lines returns the visible text of sel split into trimmed, non-empty lines.
func Lines(sel *goquery.Selection) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if s := strings.Join(strings.Fields(cur.String()), " "); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipTags[n.Data] || attr(n, "aria-hidden") == "true" || attr(n, AttrHidden) != "" || isIcon(n) {
				return
			}
			if n.Data == "br" {
				flush()
				return
			}
		default:
			if n.Type != html.DocumentNode {
				return
			}
		}

		block := n.Type == html.ElementNode && !inlineTags[n.Data]
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
	}
	flush()
	return out
}

// Text returns the visible text of sel on a single line. Lines are joined
// with a space, so it compares equal to a whitespace-collapsed innerText.
func Text(sel *goquery.Selection) string {
	return strings.Join(Lines(sel), " ")
}

// isIcon reports icon-font ligatures such as <span class="material-icons">home</span>.
func isIcon(n *html.Node) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if strings.HasPrefix(c, "material-icons") || strings.HasPrefix(c, "material-symbols") {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// valuePattern matches KPI-style values: 18,000 · $3.4M · -12.5% · ▲ 4 · 1.2K · 00:03:21
var valuePattern = regexp.MustCompile(`(?i)^[▲▼↑↓+\-−~≈<>]?\s*[$€£¥₹]?\s*\d[\d.,:\s]*(?:[kmbt]|bn|mm)?\s*%?$`)

func isValue(s string, maxLen int) bool {
	if maxLen > 0 && len([]rune(s)) > maxLen {
		return false
	}
	return valuePattern.MatchString(s)
}

// splitInline splits "Name: value" at the first colon when the right side
// looks like a value.
func splitInline(s string, maxLen int) (name, value string, ok bool) {
	i := strings.Index(s, ":")
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	name = strings.TrimSpace(s[:i])
	value = strings.TrimSpace(s[i+1:])
	if name == "" || !isValue(value, maxLen) {
		return "", "", false
	}
	return name, value, true
}

func uniqueAppend(list []string, seen map[string]bool, s string) []string {
	if s == "" || seen[s] {
		return list
	}
	seen[s] = true
	return append(list, s)
}
