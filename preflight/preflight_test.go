package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/models"
)

func newProber() *Prober {
	return New(
		config.PreflightConfig{Enabled: true, Timeout: 2 * time.Second},
		config.ProviderConfig{LoginHosts: []string{"accounts.google.com"}},
		"", nil,
	)
}

func TestCheck_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Chrome")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title> Ads report </title></head><body></body></html>`))
	}))
	defer srv.Close()

	res, err := newProber().Check(context.Background(), srv.URL+"/reporting/abc")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Ads report", res.Title)
	assert.Equal(t, srv.URL+"/reporting/abc", res.FinalURL)
}

func TestCheck_LoginRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://accounts.google.com/ServiceLogin?continue=x", http.StatusFound)
	}))
	defer srv.Close()

	_, err := newProber().Check(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeAuthRequired, models.CodeOf(err))
}

func TestCheck_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()

	_, err := newProber().Check(context.Background(), target)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeNavigation, models.CodeOf(err))
}

func TestCheck_ErrorStatusIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	res, err := newProber().Check(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Empty(t, res.Title)
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", `<title>Hello</title>`, "Hello"},
		{"nested in head", `<html><head><meta charset="utf-8"><title> Report </title></head></html>`, "Report"},
		{"empty", `<title></title>`, ""},
		{"missing", `<html><body>no title</body></html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractTitle(strings.NewReader(tt.in)); got != tt.want {
				t.Errorf("extractTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}
