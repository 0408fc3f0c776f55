package model

import "time"

// Per-URL batch statuses.
const (
	StatusOK       = "ok"
	StatusNoResult = "no_result"
	StatusCanceled = "canceled"
	StatusError    = "error"
)

// URLResult is the batch runner's record for one URL.
type URLResult struct {
	URL     string         `json:"url"`
	Status  string         `json:"status"`
	Error   string         `json:"error,omitempty"`
	Outcome *ScrapeOutcome `json:"outcome,omitempty"`
}

// BatchResult is the result of one batch run.
type BatchResult struct {
	JobID       string      `json:"job_id"`
	StartedAt   time.Time   `json:"started_at"`
	Duration    string      `json:"duration"`
	Results     []URLResult `json:"results"`
	SuccessRate float64     `json:"success_rate"`
}
