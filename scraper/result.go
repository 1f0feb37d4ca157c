package scraper

import "github.com/use-agent/dashscrape/models"

// ScrapeResult is the outcome of one DoScrape call.
type ScrapeResult struct {
	Data   *models.ExtractionResult
	Timing models.TimingInfo
}
