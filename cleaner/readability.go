package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minReadableLength is the minimum TextContent length (in characters) for a
// readability result to count. Below it the algorithm found nothing useful.
const minReadableLength = 50

// readable runs the Mozilla Readability algorithm on a whole document and
// returns its main text. ok is false when readability could not find a
// body worth keeping.
func readable(rawHTML string, sourceURL string) (text string, ok bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Debug("readability: invalid source URL", "url", sourceURL, "error", err)
		return "", false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability: extraction failed", "url", sourceURL, "error", err)
		return "", false
	}

	text = strings.TrimSpace(article.TextContent)
	if len(text) < minReadableLength {
		return "", false
	}
	return text, true
}
