package models

// Job statuses.
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// JobResponse is the immediate response for POST /api/v1/scrape/async.
type JobResponse struct {
	ID     string `json:"job_id"`
	Status string `json:"status"`
}

// JobStatusResponse is the response for GET /api/v1/jobs/:id.
type JobStatusResponse struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	URL       string          `json:"url"`
	CreatedAt int64           `json:"created_at"`
	Result    *ScrapeResponse `json:"result,omitempty"`
}

// ScrapeJob tracks an in-progress async scrape.
type ScrapeJob struct {
	ID        string
	Status    string
	URL       string
	Result    *ScrapeResponse
	CreatedAt int64 // unix timestamp
}
