package pipeline

import (
	"context"
	"time"

	"github.com/hyperifyio/goindicator/internal/extract"
	"github.com/hyperifyio/goindicator/internal/fallback"
	"github.com/hyperifyio/goindicator/internal/fetch"
	"github.com/hyperifyio/goindicator/internal/links"
	"github.com/hyperifyio/goindicator/internal/model"
)

// attemptRunner adapts one scrape to fallback.AttemptFunc. The controller
// calls it sequentially, so it needs no locking.
type attemptRunner struct {
	o      *Orchestrator
	url    string
	domain string
	trail  *trail
	calls  int
	// pages memoizes successful fetches, keyed by whether rendering was used.
	pages map[bool]*fetch.Response
	// err is a state machine error; it aborts the scrape.
	err error
}

func (r *attemptRunner) advance(s State) {
	if r.err == nil && r.trail.current() != s {
		r.err = r.trail.advance(s)
	}
}

func (r *attemptRunner) attempt(ctx context.Context, s model.Strategy, budget time.Duration, enableModel bool) (*fallback.Result, error) {
	r.calls++
	if r.calls == 1 {
		r.advance(StateFetching)
	} else {
		r.advance(StateFallingBack)
	}
	if r.err != nil {
		return nil, r.err
	}

	resp, err := r.load(ctx, s, budget)
	if err != nil {
		return nil, err
	}
	if r.calls == 1 {
		r.advance(StateExtracting)
	}
	content, err := extract.Ingest(resp.Body, resp.ContentType)
	if err != nil {
		return nil, err
	}

	in := extract.Input{URL: r.url, Domain: r.domain, Content: content}
	enrichment := model.Enrichment{Status: model.EnrichmentDisabled}
	var cands map[string]model.Candidate
	if s == model.StrategyContextAware {
		cands, enrichment = r.o.opts.Context.ExtractWithModel(ctx, in, enableModel)
	} else {
		cands = r.o.opts.Pattern.Extract(ctx, in)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := content.Text
	if raw == "" {
		raw = content.Raw
	}
	return &fallback.Result{
		RawContent:  raw,
		ContentType: content.ContentType,
		Candidates:  cands,
		Enrichment:  enrichment,
		Links:       links.Prioritize(r.url, content.Links, r.o.opts.Links),
	}, nil
}

// load fetches the page once per rendering mode.
func (r *attemptRunner) load(ctx context.Context, s model.Strategy, budget time.Duration) (*fetch.Response, error) {
	rendered := r.o.opts.Headless && s == model.StrategyContextAware
	if p, ok := r.pages[rendered]; ok {
		return p, nil
	}
	var (
		resp *fetch.Response
		err  error
	)
	if rendered {
		resp, err = r.o.opts.Fetcher.GetRendered(ctx, r.url, budget)
	} else {
		resp, err = r.o.opts.Fetcher.Get(ctx, r.url, budget)
	}
	if err != nil {
		return nil, err
	}
	r.pages[rendered] = resp
	return resp, nil
}
