package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goindicator/internal/metrics"
	"github.com/hyperifyio/goindicator/internal/model"
)

// Defaults.
const (
	DefaultMinContentLength = 200
	DefaultEmergencyTimeout = 10 * time.Second
)

// Attempt phases.
const (
	PhasePrimary   = "primary"
	PhaseFallback  = "fallback"
	PhaseEmergency = "emergency"
)

// Result is what one extraction attempt produced.
type Result struct {
	RawContent  string
	ContentType string
	Candidates  map[string]model.Candidate
	Enrichment  model.Enrichment
	Links       []model.Link
}

// Usable reports whether r is worth keeping: enough raw content or at least
// one candidate.
func (r *Result) Usable(minContentLength int) bool {
	return r != nil && (len(r.RawContent) > minContentLength || len(r.Candidates) > 0)
}

// AttemptFunc runs one extraction with the given strategy. ctx carries the
// attempt deadline; budget is passed along so fetches can size themselves.
type AttemptFunc func(ctx context.Context, strategy model.Strategy, budget time.Duration, enableModel bool) (*Result, error)

// Plan describes the primary attempt.
type Plan struct {
	Primary     model.Strategy
	Budget      time.Duration
	EnableModel bool
	URL         string
}

// Report describes how the sequence went.
type Report struct {
	Result        *Result
	FinalStrategy model.Strategy
	FallbackUsed  bool
	EmergencyUsed bool
	Attempts      []model.Attempt
}

// Controller retries a failed or empty extraction with the alternate
// strategy, then with a short pattern-only emergency attempt.
type Controller struct {
	MinContentLength int
	EmergencyTimeout time.Duration
	Metrics          *metrics.Fallback
}

// New returns a Controller with defaults applied and fresh counters.
func New() *Controller {
	return &Controller{
		MinContentLength: DefaultMinContentLength,
		EmergencyTimeout: DefaultEmergencyTimeout,
		Metrics:          &metrics.Fallback{},
	}
}

type step struct {
	phase    string
	strategy model.Strategy
	budget   time.Duration
	model    bool
	success  func(*metrics.Fallback)
}

// Run executes the sequence. It returns model.ErrStrategyExhausted when no
// attempt is usable, and the parent context's error, unwrapped, when ctx
// ends first. The report is returned in every case.
func (c *Controller) Run(ctx context.Context, plan Plan, attempt AttemptFunc) (*Report, error) {
	m := c.Metrics
	if m == nil {
		m = &metrics.Fallback{}
	}
	minLen := c.MinContentLength
	if minLen <= 0 {
		minLen = DefaultMinContentLength
	}
	emergency := c.EmergencyTimeout
	if emergency <= 0 {
		emergency = DefaultEmergencyTimeout
	}
	// The emergency attempt never outlasts the request budget.
	if plan.Budget > 0 {
		emergency = min(emergency, plan.Budget)
	}
	steps := []step{
		{PhasePrimary, plan.Primary, plan.Budget, plan.EnableModel, func(m *metrics.Fallback) { m.PrimarySuccess.Add(1) }},
		{PhaseFallback, plan.Primary.Alternate(), plan.Budget, plan.EnableModel, func(m *metrics.Fallback) { m.FallbackSuccess.Add(1) }},
		{PhaseEmergency, model.StrategyPattern, emergency, false, func(m *metrics.Fallback) { m.EmergencySuccess.Add(1) }},
	}

	rep := &Report{}
	var lastErr error
	sawTimeout := false
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		m.Attempts.Add(1)
		rep.FallbackUsed = rep.FallbackUsed || s.phase != PhasePrimary
		rep.EmergencyUsed = s.phase == PhaseEmergency

		actx, cancel := context.WithTimeout(ctx, s.budget)
		start := time.Now()
		res, err := attempt(actx, s.strategy, s.budget, s.model)
		cancel()
		rec := model.Attempt{
			Phase:      s.phase,
			Strategy:   s.strategy,
			TimeoutSec: int(s.budget / time.Second),
			Duration:   time.Since(start).Round(time.Millisecond).String(),
		}
		if res != nil {
			rec.Candidates = len(res.Candidates)
		}
		if ctx.Err() != nil {
			rec.Error = ctx.Err().Error()
			rep.Attempts = append(rep.Attempts, rec)
			return rep, ctx.Err()
		}
		if err == nil && !res.Usable(minLen) {
			err = errors.New("no usable content")
		}
		if err != nil {
			if model.IsTimeout(err) {
				sawTimeout = true
			}
			err = fmt.Errorf("%w: %w", model.ErrExtractionEmpty, err)
			rec.Error = err.Error()
			rep.Attempts = append(rep.Attempts, rec)
			lastErr = err
			log.Debug().Err(err).Str("url", plan.URL).Str("attempt", s.phase).Str("strategy", string(s.strategy)).Msg("attempt failed")
			continue
		}
		rec.Usable = true
		rep.Attempts = append(rep.Attempts, rec)
		rep.Result = res
		rep.FinalStrategy = s.strategy
		s.success(m)
		if s.phase != PhasePrimary {
			log.Info().Str("url", plan.URL).Str("attempt", s.phase).Str("strategy", string(s.strategy)).Int("candidates", rec.Candidates).Msg("recovered by fallback")
		}
		return rep, nil
	}

	m.TotalFailures.Add(1)
	if sawTimeout {
		m.TimeoutFailures.Add(1)
	}
	return rep, fmt.Errorf("%w after %d attempts: %w", model.ErrStrategyExhausted, len(rep.Attempts), lastErr)
}
