package model

import "time"

// Strategy names an extraction strategy.
type Strategy string

const (
	StrategyPattern      Strategy = "pattern"
	StrategyContextAware Strategy = "context-aware"
)

// Alternate returns the other strategy.
func (s Strategy) Alternate() Strategy {
	if s == StrategyContextAware {
		return StrategyPattern
	}
	return StrategyContextAware
}

// Enrichment statuses.
const (
	EnrichmentDisabled    = "disabled"
	EnrichmentAvailable   = "available"
	EnrichmentUnavailable = "unavailable"
)

// Enrichment is the outcome of the optional language-model pass. A failed
// call is recorded here with Status "unavailable" rather than as an error.
type Enrichment struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason,omitempty"`
	Cached bool   `json:"cached,omitempty"`
}

// Attempt records one extraction attempt made by the fallback controller.
type Attempt struct {
	Phase      string   `json:"phase"` // primary, fallback, emergency
	Strategy   Strategy `json:"strategy"`
	TimeoutSec int      `json:"timeout_s"`
	Candidates int      `json:"candidates"`
	Usable     bool     `json:"usable"`
	Error      string   `json:"error,omitempty"`
	Duration   string   `json:"duration"`
}

// Link is a prioritized outbound link found on the page.
type Link struct {
	URL   string  `json:"url"`
	Text  string  `json:"text,omitempty"`
	Score float64 `json:"score"`
}

// Metadata describes how an outcome was produced.
type Metadata struct {
	Strategy         Strategy   `json:"strategy"`
	FinalStrategy    Strategy   `json:"final_strategy"`
	FallbackUsed     bool       `json:"fallback_triggered"`
	EmergencyUsed    bool       `json:"emergency_used"`
	Domain           string     `json:"domain"`
	TimeoutSec       int        `json:"timeout_s"`
	ContentType      string     `json:"content_type,omitempty"`
	Attempts         []Attempt  `json:"attempts"`
	States           []string   `json:"states"`
	Enrichment       Enrichment `json:"enrichment"`
	PriorityLinks    []Link     `json:"priority_links,omitempty"`
	QualityThreshold float64    `json:"quality_threshold"`
	FetchedAt        time.Time  `json:"fetched_at"`
}

// TemporalStats are the aggregate counters emitted by the temporal filter.
type TemporalStats struct {
	Input              int `json:"input"`
	RejectedNoYear     int `json:"rejected_no_year"`
	RejectedOutOfRange int `json:"rejected_out_of_window"`
	KeptInWindow       int `json:"kept_in_window"`
	KeptExtended       int `json:"kept_extended"`
	KeptPermissive     int `json:"kept_permissive"`
}

// ValidationSummary counts candidates through the post-processing stages.
type ValidationSummary struct {
	Input           int           `json:"input"`
	CleanRejected   int           `json:"clean_rejected"`
	CleanPermissive int           `json:"clean_permissive"`
	Temporal        TemporalStats `json:"temporal"`
	StrictRejected  int           `json:"strict_rejected"`
	Valid           int           `json:"valid"`
}

// ValidationReport is produced once per post-processing run.
type ValidationReport struct {
	ValidData []Candidate       `json:"valid_data"`
	Errors    []string          `json:"errors"`
	Summary   ValidationSummary `json:"summary"`
}

// ExtractionSummary is the outcome-level summary handed to callers.
type ExtractionSummary struct {
	Total        int               `json:"total"`
	ByCategory   map[Category]int  `json:"by_category"`
	ByMethod     map[Method]int    `json:"by_method"`
	Raw          int               `json:"raw_candidates"`
	Validation   ValidationSummary `json:"validation"`
	BelowQuality int               `json:"below_quality"`
	Errors       []string          `json:"errors,omitempty"`
}

// ScrapeOutcome is the result of one orchestrator invocation.
type ScrapeOutcome struct {
	URL             string               `json:"url"`
	RawContent      string               `json:"raw_content"`
	ExtractedValues map[string]Candidate `json:"extracted_values"`
	Summary         ExtractionSummary    `json:"extraction_summary"`
	Metadata        Metadata             `json:"metadata"`
}
