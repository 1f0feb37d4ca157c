package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/dashscrape/fingerprint"
	"github.com/use-agent/dashscrape/models"
)

type freeTextStrategy struct{}

func (freeTextStrategy) kind() Kind { return KindFreeText }

// extract keeps the outermost regions that no structured pass touched, so
// a fully custom layout still yields its text. It must run last.
func (freeTextStrategy) extract(s *state) error {
	r := s.rules.FreeText
	s.each(KindFreeText, s.sel.region, func(el *goquery.Selection) error {
		if s.containsClaimed(el.Get(0)) {
			return nil
		}
		frag, err := goquery.OuterHtml(el)
		if err != nil {
			return fmt.Errorf("render region: %w", err)
		}
		md, err := s.cleaner.Markdown(frag, s.pageURL)
		if err != nil {
			return fmt.Errorf("convert region: %w", err)
		}
		if len(md) < r.MinLength {
			return nil
		}
		s.claim(KindFreeText, el)
		s.addText(truncate(md, r.MaxLength), models.TextSourceRegion)
		return nil
	})

	if len(s.out.Texts) == 0 && !s.out.Structured() && r.Readability {
		if body, ok := s.cleaner.Readable(s.raw, s.pageURL); ok {
			s.addText(truncate(body, r.MaxLength), models.TextSourceReadability)
		}
	}
	return nil
}

func (s *state) addText(md, source string) {
	s.out.Texts = append(s.out.Texts, models.TextBlock{
		Text:        md,
		Source:      source,
		Fingerprint: fingerprint.SimHash(md),
	})
}

// truncate cuts s to at most n runes. n <= 0 keeps everything.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
