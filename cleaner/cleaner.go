// Package cleaner turns unclassified page fragments into readable text
// blocks.
package cleaner

import (
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/microcosm-cc/bluemonday"
)

// Cleaner sanitizes HTML fragments and renders them as Markdown.
// It is safe for concurrent use.
type Cleaner struct {
	conv   *converter.Converter
	policy *bluemonday.Policy
}

// New builds a Cleaner.
func New() *Cleaner {
	return &Cleaner{
		conv:   newMarkdownConverter(),
		policy: newPolicy(),
	}
}

// Markdown sanitizes an HTML fragment and converts it to Markdown.
// pageURL resolves relative links.
func (c *Cleaner) Markdown(fragment, pageURL string) (string, error) {
	safe := c.policy.Sanitize(fragment)
	if strings.TrimSpace(safe) == "" {
		return "", nil
	}
	return toMarkdown(c.conv, safe, domainOf(pageURL))
}

// Readable extracts the main text of a whole document with readability.
func (c *Cleaner) Readable(document, pageURL string) (string, bool) {
	return readable(document, pageURL)
}

func domainOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
