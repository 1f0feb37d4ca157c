package scraper

import (
	"fmt"
	"net/url"

	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/models"
)

// ValidateTarget checks that raw is an http(s) URL on an allowed provider
// host.
func ValidateTarget(raw string, provider config.ProviderConfig) error {
	u, err := url.Parse(raw)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "invalid URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unsupported URL scheme %q", u.Scheme), nil)
	}
	if u.Hostname() == "" {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "URL has no host", nil)
	}
	if !provider.Allows(u.Hostname()) {
		return models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("host %s is not an allowed dashboard domain", u.Hostname()), nil)
	}
	return nil
}
