package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/dashscrape/config"
)

func testNotifier(delays ...time.Duration) *Notifier {
	n := NewNotifier(config.WebhookConfig{Timeout: time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.delays = delays
	return n
}

func TestDeliver_SignsBody(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, Sign("s3cret", body), r.Header.Get(SignatureHeader))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.Unmarshal(body, &got))
	}))
	defer srv.Close()

	ev := &Event{Type: EventScrapeCompleted, JobID: "job-1", Timestamp: 1700000000}
	require.NoError(t, testNotifier(0).Deliver(context.Background(), srv.URL, "s3cret", ev))
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, EventScrapeCompleted, got.Type)
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
	}))
	defer srv.Close()

	require.NoError(t, testNotifier(0).Deliver(context.Background(), srv.URL, "", &Event{Type: EventScrapeFailed}))
}

func TestSend_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	err := testNotifier(0, time.Millisecond, time.Millisecond, time.Millisecond).
		Send(context.Background(), srv.URL, "", &Event{Type: EventScrapeCompleted})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSend_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testNotifier(0, time.Millisecond).Send(context.Background(), srv.URL, "", &Event{})
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, DefaultDelays, 4)
}
