// Package settle decides when a rendered dashboard state is stable enough to
// extract.
package settle

import (
	"context"
	"time"
)

// Probe is one observation of a page.
type Probe struct {
	// DOMSize is the length of the serialized document.
	DOMSize int
	// Inflight is the number of outstanding network requests.
	Inflight int
}

// Prober observes a live page.
type Prober interface {
	Probe(ctx context.Context) (Probe, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) (Probe, error)

func (f ProberFunc) Probe(ctx context.Context) (Probe, error) { return f(ctx) }

// Options tunes Await. A zero Interval or Timeout takes the default.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	MinDelay time.Duration
	// Hold is waited after the quiet polls however long they took.
	Hold time.Duration
}

const (
	DefaultInterval = 500 * time.Millisecond
	DefaultTimeout  = 10 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MinDelay < 0 {
		o.MinDelay = 0
	}
	if o.Hold < 0 {
		o.Hold = 0
	}
	return o
}

// Result reports how a settle wait ended. Settled=false is not an error:
// the caller extracts whatever is present and flags it partial.
type Result struct {
	Settled bool
	// Interrupted is set when ctx ended before the state settled or the
	// timeout elapsed.
	Interrupted bool
	Polls       int
	ProbeErrors int
	Elapsed     time.Duration
	Last        Probe
}

// Await polls p every Interval until two consecutive successful polls
// both see no outstanding requests and no DOM growth, then holds for
// Hold and at least until MinDelay has passed since the call started.
// Canvas charts can finish drawing with no DOM or network signal, so the
// hold applies both to a page quiet from the first poll and to one that
// took long to go quiet.
//
// Await never fails. It returns Settled=false on timeout and
// Interrupted=true when ctx is done.
func Await(ctx context.Context, p Prober, opts Options) Result {
	opts = opts.withDefaults()
	start := time.Now()
	deadline := start.Add(opts.Timeout)

	var (
		res      Result
		prev     Probe
		havePrev bool
	)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		cur, err := p.Probe(ctx)
		res.Polls++
		if err != nil {
			res.ProbeErrors++
			havePrev = false
		} else {
			res.Last = cur
			if havePrev && quiet(prev, cur) {
				res.Settled = true
				break
			}
			prev, havePrev = cur, true
		}

		if !time.Now().Before(deadline) {
			res.Elapsed = time.Since(start)
			return res
		}
		select {
		case <-ctx.Done():
			res.Interrupted = true
			res.Elapsed = time.Since(start)
			return res
		case <-ticker.C:
		}
	}

	if wait := max(opts.MinDelay-time.Since(start), opts.Hold); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			// The state did settle; only the hold was cut short.
			res.Interrupted = true
		case <-timer.C:
		}
	}
	res.Elapsed = time.Since(start)
	return res
}

func quiet(prev, cur Probe) bool {
	return prev.Inflight == 0 && cur.Inflight == 0 && cur.DOMSize <= prev.DOMSize
}
