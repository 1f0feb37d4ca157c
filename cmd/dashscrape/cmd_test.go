package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/models"
)

func TestScrapeFlagsRequest(t *testing.T) {
	req := scrapeFlags{noExplore: true, persistent: true, maxSteps: 5, timeoutMs: 30000}.request("https://lookerstudio.google.com/reporting/abc")

	assert.False(t, req.Explore())
	assert.True(t, req.Persistent)
	assert.Equal(t, 5, req.MaxSteps)
	assert.Equal(t, 30000, req.Timeout)
	assert.Equal(t, "json", req.Format)

	assert.True(t, scrapeFlags{}.request("https://lookerstudio.google.com/").Explore())
}

func TestPrintResults(t *testing.T) {
	results := []*models.ExtractionResult{
		{Metadata: models.ResultMetadata{Title: "One"}},
		{Metadata: models.ResultMetadata{Title: "Two"}},
	}

	var buf bytes.Buffer
	require.NoError(t, printResults(&buf, results, false))
	dec := json.NewDecoder(&buf)
	for _, want := range []string{"One", "Two"} {
		var got models.ExtractionResult
		require.NoError(t, dec.Decode(&got))
		assert.Equal(t, want, got.Metadata.Title)
	}

	buf.Reset()
	require.NoError(t, printResults(&buf, results, true))
	assert.Contains(t, buf.String(), "One")
	assert.Contains(t, buf.String(), "Two")
}

func TestRunScrape_RejectsForeignHostBeforeLaunch(t *testing.T) {
	cfg := config.Load()
	cfg.Provider.AllowedDomains = []string{"lookerstudio.google.com"}

	err := runScrape(context.Background(), cfg, scrapeFlags{}, []string{"https://example.com/"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range NewRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "scrape", "login", "version"} {
		assert.True(t, names[want], want)
	}
}
