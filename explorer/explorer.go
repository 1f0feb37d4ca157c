// Package explorer walks the navigation surfaces of a rendered dashboard,
// extracting every reachable state exactly once.
package explorer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/dashscrape/aggregate"
	"github.com/use-agent/dashscrape/extract"
	"github.com/use-agent/dashscrape/fingerprint"
	"github.com/use-agent/dashscrape/models"
	"github.com/use-agent/dashscrape/settle"
)

// Snapshot is the serialized DOM of one page state.
type Snapshot struct {
	HTML  string
	URL   string
	Title string
}

// Page is the live page the explorer drives. Implementations locate the
// control at click time so re-rendered elements are still found.
type Page interface {
	settle.Prober
	Snapshot(ctx context.Context) (Snapshot, error)
	Click(ctx context.Context, selector, label string) error
}

// Scroller is implemented by pages that can trigger lazy-loaded widgets.
type Scroller interface {
	Scroll(ctx context.Context) error
}

// DefaultGrace bounds the final snapshot taken after the budget expired.
const DefaultGrace = 3 * time.Second

// Options tunes one Run.
type Options struct {
	Explore  bool
	MaxSteps int
	Settle   settle.Options
	Scroll   bool
	// Grace bounds snapshots taken once ctx is done.
	Grace time.Duration
}

// Explorer runs the discover, visit, settle, extract loop.
type Explorer struct {
	extractor *extract.Extractor
	discover  *Discoverer
	logger    *slog.Logger
}

// New builds an Explorer whose navigation rules come from the extractor's
// rule set.
func New(ex *extract.Extractor, ignore []string, logger *slog.Logger) (*Explorer, error) {
	d, err := NewDiscoverer(ex.Rules().Navigation, ignore)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Explorer{extractor: ex, discover: d, logger: logger}, nil
}

// Rules returns the extraction rules the explorer discovers and extracts
// with.
func (e *Explorer) Rules() extract.Rules { return e.extractor.Rules() }

// Run extracts the root state of page and, when opts.Explore is set, every
// state reachable through its navigation controls, merging into agg.
//
// The budget is ctx: once it is done the current state is still captured
// and Run returns with BudgetExhausted. The only error is a root state that
// could not be captured at all.
func (e *Explorer) Run(ctx context.Context, page Page, url string, agg *aggregate.Aggregator, opts Options) (aggregate.Outcome, error) {
	sess := NewSession(url, opts.Explore, opts.MaxSteps)
	log := e.logger.With("session", sess.ID, "url", url)
	var out aggregate.Outcome

	snap, err := e.visit(ctx, page, sess, agg, nil, opts, log)
	if err != nil {
		return out, models.NewScrapeError(models.ErrCodeNavigation, "capture root state", err)
	}
	out.URL = snap.URL

	for sess.Explore {
		if ctx.Err() != nil {
			out.BudgetExhausted = true
			break
		}
		if !sess.StepsLeft() {
			if n := sess.Pending(); n > 0 {
				log.Info("explore: step limit reached", "max_steps", sess.MaxSteps, "pending", n)
			}
			break
		}
		c, ok := sess.Next()
		if !ok {
			break
		}

		if err := e.click(ctx, page, sess, c, opts, log); err != nil {
			if ctx.Err() != nil {
				out.BudgetExhausted = true
				break
			}
			c.Skipped = true
			agg.Skipped(c.Label, err)
			log.Warn("explore: navigation skipped", "label", c.Label, "error", err)
			continue
		}
		if _, err := e.visit(ctx, page, sess, agg, c, opts, log); err != nil {
			agg.Issue(&models.ErrorDetail{Code: models.ErrCodeNavigation, Message: err.Error(), Label: c.Label})
		}
	}

	if ctx.Err() != nil {
		out.BudgetExhausted = true
	}
	out.Steps = sess.Steps()
	log.Info("explore: done", "steps", out.Steps, "budget_exhausted", out.BudgetExhausted)
	return out, nil
}

// click clicks c. When that fails and c was found below the root, its path
// is replayed to restore the state it was discovered in and the click is
// retried once.
func (e *Explorer) click(ctx context.Context, page Page, sess *Session, c *Candidate, opts Options, log *slog.Logger) error {
	err := page.Click(ctx, c.Selector, c.Label)
	if err == nil || len(c.Path) == 0 || ctx.Err() != nil {
		return err
	}
	log.Debug("explore: replaying path", "label", c.Label, "path", c.Path, "error", err)
	for _, label := range c.Path {
		p, ok := sess.Lookup(label)
		if !ok || p.Skipped {
			return err
		}
		if perr := page.Click(ctx, p.Selector, p.Label); perr != nil {
			return errors.Join(err, perr)
		}
		settle.Await(ctx, page, opts.Settle)
	}
	return page.Click(ctx, c.Selector, c.Label)
}

// visit captures the current state: settle, scroll, snapshot, extract,
// merge and discover. c is nil for the root.
func (e *Explorer) visit(ctx context.Context, page Page, sess *Session, agg *aggregate.Aggregator, c *Candidate, opts Options, log *slog.Logger) (Snapshot, error) {
	label := ""
	var path []string
	if c != nil {
		label = c.Label
		path = append(append([]string(nil), c.Path...), c.Label)
	}

	res := settle.Await(ctx, page, opts.Settle)
	if !res.Settled {
		if c == nil {
			agg.Unsettled(sess.URL)
		} else {
			agg.Unsettled(label)
		}
		log.Debug("explore: state unsettled", "label", label, "polls", res.Polls, "interrupted", res.Interrupted)
	}

	if opts.Scroll && ctx.Err() == nil {
		if s, ok := page.(Scroller); ok {
			if err := s.Scroll(ctx); err != nil {
				log.Debug("explore: scroll failed", "label", label, "error", err)
			}
		}
	}

	snapCtx := ctx
	if ctx.Err() != nil {
		grace := opts.Grace
		if grace <= 0 {
			grace = DefaultGrace
		}
		var cancel context.CancelFunc
		snapCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), grace)
		defer cancel()
	}
	snap, err := page.Snapshot(snapCtx)
	if err != nil {
		return snap, err
	}
	if c != nil {
		agg.Explored(label)
	}

	if sess.SeenState(fingerprint.Content(snap.HTML)) {
		log.Debug("explore: state already extracted", "label", label)
		return snap, nil
	}

	rec, err := e.extractor.Extract(snap.HTML, snap.URL)
	if err != nil {
		agg.Issue(&models.ErrorDetail{Code: models.ErrCodeExtraction, Message: err.Error(), Label: label})
	} else {
		st := agg.Merge(rec)
		log.Debug("explore: state extracted", "label", label, "admitted", st.Admitted, "dropped", st.Dropped)
	}

	if sess.Explore {
		cands, err := e.discover.Discover(snap.HTML, snap.URL, path)
		if err != nil {
			log.Debug("explore: discovery failed", "label", label, "error", err)
		}
		if n := sess.Offer(cands); n > 0 {
			log.Debug("explore: candidates queued", "label", label, "added", n, "pending", sess.Pending())
		}
	}
	return snap, nil
}
