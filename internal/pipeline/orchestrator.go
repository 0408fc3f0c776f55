// Package pipeline composes strategy selection, timed extraction with
// fallback and validation into one scrape of one URL.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goindicator/internal/contextual"
	"github.com/hyperifyio/goindicator/internal/extract"
	"github.com/hyperifyio/goindicator/internal/fallback"
	"github.com/hyperifyio/goindicator/internal/fetch"
	"github.com/hyperifyio/goindicator/internal/links"
	"github.com/hyperifyio/goindicator/internal/metrics"
	"github.com/hyperifyio/goindicator/internal/model"
	"github.com/hyperifyio/goindicator/internal/strategy"
	"github.com/hyperifyio/goindicator/internal/timeouts"
	"github.com/hyperifyio/goindicator/internal/validate"
)

// DefaultQualityThreshold is the minimum confidence of a returned candidate.
const DefaultQualityThreshold = 0.6

var (
	// ErrInFlight is returned when the same job already scrapes the URL.
	ErrInFlight = errors.New("scrape already in flight")
	// ErrInvalidRequest is returned for a request without a URL.
	ErrInvalidRequest = errors.New("invalid request")
)

// Request is one scrape.
type Request struct {
	JobID       string
	URL         string
	EnableModel bool
	// QualityThreshold overrides DefaultQualityThreshold when positive.
	QualityThreshold float64
	// TimeoutOverride replaces the domain budget when positive.
	TimeoutOverride time.Duration
}

// Fetcher loads a page. *fetch.Client implements it.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, budget time.Duration) (*fetch.Response, error)
	GetRendered(ctx context.Context, rawURL string, budget time.Duration) (*fetch.Response, error)
}

// Options wires the orchestrator. Selector, Timeouts, Fetcher and Validator
// are required.
type Options struct {
	Selector  *strategy.Selector
	Timeouts  *timeouts.Policy
	Fetcher   Fetcher
	Pattern   *extract.Pattern
	Context   *contextual.Extractor
	Fallback  *fallback.Controller
	Validator *validate.Pipeline
	Metrics   *metrics.Pipeline
	Links     links.Options
	// Headless renders context-aware targets through the fetcher's renderer.
	Headless         bool
	QualityThreshold float64
	Now              func() time.Time
}

// Orchestrator runs scrapes. It is safe for concurrent use.
type Orchestrator struct {
	opts     Options
	inflight sync.Map
}

// New applies defaults to opts.
func New(opts Options) (*Orchestrator, error) {
	if opts.Selector == nil || opts.Timeouts == nil || opts.Fetcher == nil || opts.Validator == nil {
		return nil, errors.New("pipeline: selector, timeouts, fetcher and validator are required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Pattern == nil {
		opts.Pattern = extract.NewPattern(extract.Options{Now: opts.Now})
	}
	if opts.Context == nil {
		opts.Context = contextual.New(contextual.Options{Base: opts.Pattern, Now: opts.Now})
	}
	if opts.Fallback == nil {
		opts.Fallback = fallback.New()
	}
	if opts.Metrics == nil {
		opts.Metrics = &metrics.Pipeline{}
	}
	if opts.QualityThreshold <= 0 {
		opts.QualityThreshold = DefaultQualityThreshold
	}
	return &Orchestrator{opts: opts}, nil
}

// Metrics returns the pipeline counters.
func (o *Orchestrator) Metrics() *metrics.Pipeline { return o.opts.Metrics }

// FallbackMetrics returns the fallback controller counters.
func (o *Orchestrator) FallbackMetrics() *metrics.Fallback { return o.opts.Fallback.Metrics }

// Scrape runs one URL through selection, extraction with fallback and
// validation. When every attempt fails it returns the failed outcome together
// with an error wrapping model.ErrStrategyExhausted. When ctx ends it
// returns nil and ctx.Err().
func (o *Orchestrator) Scrape(ctx context.Context, req Request) (*model.ScrapeOutcome, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("%w: empty url", ErrInvalidRequest)
	}
	key := req.JobID + "\x00" + req.URL
	if _, loaded := o.inflight.LoadOrStore(key, struct{}{}); loaded {
		return nil, fmt.Errorf("%w: job %q url %s", ErrInFlight, req.JobID, req.URL)
	}
	defer o.inflight.Delete(key)

	tr := newTrail()
	domain := extract.DomainOf(req.URL)
	primary := o.opts.Selector.Select(req.URL)
	budget := o.opts.Timeouts.Budget(domain)
	if req.TimeoutOverride > 0 {
		budget = req.TimeoutOverride
	}
	threshold := o.opts.QualityThreshold
	if req.QualityThreshold > 0 {
		threshold = req.QualityThreshold
	}
	log.Debug().Str("url", req.URL).Str("domain", domain).Str("strategy", string(primary)).
		Int("timeout_s", int(budget/time.Second)).Msg("scrape start")

	run := &attemptRunner{o: o, url: req.URL, domain: domain, trail: tr, pages: map[bool]*fetch.Response{}}
	rep, err := o.opts.Fallback.Run(ctx, fallback.Plan{Primary: primary, Budget: budget, EnableModel: req.EnableModel, URL: req.URL}, run.attempt)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if run.err != nil {
		return nil, run.err
	}

	meta := model.Metadata{
		Strategy:         primary,
		Domain:           domain,
		TimeoutSec:       int(budget / time.Second),
		QualityThreshold: threshold,
		FetchedAt:        o.opts.Now().UTC(),
	}
	if rep != nil {
		meta.FinalStrategy = rep.FinalStrategy
		meta.FallbackUsed = rep.FallbackUsed
		meta.EmergencyUsed = rep.EmergencyUsed
		meta.Attempts = rep.Attempts
	}

	if err != nil {
		if terr := tr.advance(StateFailed); terr != nil {
			return nil, terr
		}
		meta.States = tr.strings()
		meta.Enrichment = model.Enrichment{Status: model.EnrichmentDisabled}
		o.opts.Metrics.NoResult.Add(1)
		log.Warn().Err(err).Str("url", req.URL).Int("attempts", len(meta.Attempts)).Msg("no result")
		return &model.ScrapeOutcome{URL: req.URL, ExtractedValues: map[string]model.Candidate{}, Metadata: meta}, err
	}

	if err := tr.advance(StatePostProcessing); err != nil {
		return nil, err
	}
	res := rep.Result
	raw := extract.Sorted(res.Candidates)
	vr := o.opts.Validator.Run(raw)

	values := make(map[string]model.Candidate, len(vr.ValidData))
	summary := model.ExtractionSummary{
		ByCategory: map[model.Category]int{},
		ByMethod:   map[model.Method]int{},
		Raw:        len(raw),
		Validation: vr.Summary,
		Errors:     vr.Errors,
	}
	for _, c := range vr.ValidData {
		if c.Confidence < threshold {
			summary.BelowQuality++
			continue
		}
		values[extract.CandidateID(req.URL, c)] = c
		summary.ByCategory[c.Category]++
		summary.ByMethod[c.Method]++
	}
	summary.Total = len(values)

	if err := tr.advance(StateDone); err != nil {
		return nil, err
	}
	meta.States = tr.strings()
	meta.ContentType = res.ContentType
	meta.Enrichment = res.Enrichment
	meta.PriorityLinks = res.Links

	m := o.opts.Metrics
	m.Outcomes.Add(1)
	m.RawCandidates.Add(int64(len(raw)))
	m.ValidCandidates.Add(int64(len(values)))
	m.Strategy.Inc(string(meta.FinalStrategy))
	m.Enrichment.Inc(meta.Enrichment.Status)

	log.Info().Str("url", req.URL).Str("strategy", string(meta.FinalStrategy)).Bool("fallback", meta.FallbackUsed).
		Int("candidates", len(raw)).Int("valid", len(values)).Msg("scrape done")
	return &model.ScrapeOutcome{
		URL:             req.URL,
		RawContent:      res.RawContent,
		ExtractedValues: values,
		Summary:         summary,
		Metadata:        meta,
	}, nil
}
