package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/dashscrape/cache"
	"github.com/use-agent/dashscrape/config"
	"github.com/use-agent/dashscrape/models"
	"github.com/use-agent/dashscrape/scraper"
	"github.com/use-agent/dashscrape/webhook"
	"golang.org/x/sync/semaphore"
)

// Jobs runs async scrapes and keeps their results pollable for a while.
// Stored jobs are replaced, never mutated, so readers need no lock.
type Jobs struct {
	store    sync.Map // id -> *models.ScrapeJob
	slots    *semaphore.Weighted
	ttl      time.Duration
	notifier *webhook.Notifier
	logger   *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJobs creates a job runner allowing workers concurrent scrapes and
// starts its expiry loop. Close stops both.
func NewJobs(workers int, ttl time.Duration, notifier *webhook.Notifier, logger *slog.Logger) *Jobs {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &Jobs{
		slots:    semaphore.NewWeighted(int64(workers)),
		ttl:      ttl,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	go j.expireLoop(5 * time.Minute)
	return j
}

// Get returns the job with id.
func (j *Jobs) Get(id string) (*models.ScrapeJob, bool) {
	v, ok := j.store.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*models.ScrapeJob), true
}

// Submit registers a job for req and runs it in the background.
func (j *Jobs) Submit(sc Scraper, cc *cache.Cache, req *models.ScrapeRequest) *models.ScrapeJob {
	job := &models.ScrapeJob{
		ID:        uuid.NewString(),
		Status:    models.JobProcessing,
		URL:       req.URL,
		CreatedAt: j.now().Unix(),
	}
	j.store.Store(job.ID, job)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.run(sc, cc, job, req)
	}()
	return job
}

func (j *Jobs) run(sc Scraper, cc *cache.Cache, job *models.ScrapeJob, req *models.ScrapeRequest) {
	log := j.logger.With("job_id", job.ID, "url", job.URL)
	start := time.Now()

	done := *job
	if err := j.slots.Acquire(j.ctx, 1); err != nil {
		done.Status = models.JobFailed
		done.Result = errorResponse(models.NewScrapeError(models.ErrCodeInternal, "job runner stopped", err), models.TimingInfo{})
	} else {
		resp, err := runScrape(j.ctx, sc, cc, req)
		j.slots.Release(1)
		if err != nil {
			done.Status = models.JobFailed
			done.Result = errorResponse(err, models.TimingInfo{TotalMs: time.Since(start).Milliseconds()})
		} else {
			done.Status = models.JobCompleted
			done.Result = resp
		}
	}
	j.store.Store(done.ID, &done)
	log.Info("async scrape finished", "status", done.Status, "duration_ms", time.Since(start).Milliseconds())

	if req.WebhookURL == "" || j.notifier == nil {
		return
	}
	event := &webhook.Event{
		Type:      webhook.EventScrapeCompleted,
		JobID:     done.ID,
		Timestamp: j.now().Unix(),
		Data:      statusResponse(&done),
	}
	if done.Status == models.JobFailed {
		event.Type = webhook.EventScrapeFailed
	}
	_ = j.notifier.Send(j.ctx, req.WebhookURL, req.WebhookSecret, event)
}

// Wait blocks until every submitted job has finished, webhook included.
func (j *Jobs) Wait() { j.wg.Wait() }

// Close cancels running jobs and waits for them to record their outcome.
func (j *Jobs) Close() {
	j.cancel()
	j.wg.Wait()
}

func (j *Jobs) expireLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-j.ctx.Done():
			return
		case <-ticker.C:
			j.expire()
		}
	}
}

// expire drops finished jobs older than the TTL.
func (j *Jobs) expire() {
	cutoff := j.now().Add(-j.ttl).Unix()
	j.store.Range(func(key, value any) bool {
		job := value.(*models.ScrapeJob)
		if job.Status != models.JobProcessing && job.CreatedAt < cutoff {
			j.store.Delete(key)
		}
		return true
	})
}

func statusResponse(job *models.ScrapeJob) models.JobStatusResponse {
	return models.JobStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		URL:       job.URL,
		CreatedAt: job.CreatedAt,
		Result:    job.Result,
	}
}

// PostScrapeAsync returns a handler for POST /api/v1/scrape/async.
// The target is validated up front so a bad URL never becomes a job.
func PostScrapeAsync(jobs *Jobs, sc Scraper, cc *cache.Cache, provider config.ProviderConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := bindScrapeRequest(c)
		if err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}
		if err := scraper.ValidateTarget(req.URL, provider); err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}

		job := jobs.Submit(sc, cc, req)
		c.JSON(http.StatusAccepted, models.JobResponse{ID: job.ID, Status: job.Status})
	}
}

// GetJob returns a handler for GET /api/v1/jobs/:id.
func GetJob(jobs *Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := jobs.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "job not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, statusResponse(job))
	}
}
