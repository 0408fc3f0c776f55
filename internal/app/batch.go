package app

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/goindicator/internal/model"
	"github.com/hyperifyio/goindicator/internal/pipeline"
)

// BatchOptions tunes one RunBatch call.
type BatchOptions struct {
	// JobID names the batch. Empty means a fresh UUID.
	JobID string
	// Progress is called after each URL finishes with the number done so
	// far. Calls are serialized.
	Progress func(done, total int)
}

// RunBatch scrapes urls with at most cfg.Workers in flight. Results keep the
// input order. A URL failure never stops the batch; cancellation of ctx marks
// the remaining URLs canceled. The returned error is ErrNoResults when no URL
// succeeded, or ctx.Err() when the batch was canceled.
func (a *App) RunBatch(ctx context.Context, urls []string, opts BatchOptions) (*model.BatchResult, error) {
	jobID := opts.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	started := a.now()
	res := &model.BatchResult{JobID: jobID, StartedAt: started, Results: make([]model.URLResult, len(urls))}

	workers := a.cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	progress := make(chan struct{}, len(urls))
	done := make(chan struct{})
	go func() {
		defer close(done)
		n := 0
		for range progress {
			n++
			if opts.Progress != nil {
				opts.Progress(n, len(urls))
			}
		}
	}()

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, u := range urls {
		g.Go(func() error {
			res.Results[i] = a.scrapeOne(ctx, jobID, u)
			progress <- struct{}{}
			return nil
		})
	}
	_ = g.Wait()
	close(progress)
	<-done

	ok := 0
	for _, r := range res.Results {
		if r.Status == model.StatusOK {
			ok++
		}
	}
	if len(urls) > 0 {
		res.SuccessRate = math.Round(float64(ok)/float64(len(urls))*1000) / 1000
	}
	res.Duration = a.now().Sub(started).Round(time.Millisecond).String()
	log.Info().Str("job", jobID).Int("urls", len(urls)).Int("ok", ok).Float64("success_rate", res.SuccessRate).
		Str("duration", res.Duration).Msg("batch finished")

	switch {
	case ctx.Err() != nil:
		return res, ctx.Err()
	case ok == 0 && len(urls) > 0:
		return res, ErrNoResults
	}
	return res, nil
}

func (a *App) scrapeOne(ctx context.Context, jobID, url string) model.URLResult {
	r := model.URLResult{URL: url}
	if ctx.Err() != nil {
		r.Status = model.StatusCanceled
		r.Error = ctx.Err().Error()
		return r
	}
	out, err := a.orchestrator.Scrape(ctx, pipeline.Request{
		JobID:            jobID,
		URL:              url,
		EnableModel:      a.cfg.EnableModel,
		QualityThreshold: a.cfg.QualityThreshold,
	})
	r.Outcome = out
	switch {
	case err == nil && len(out.ExtractedValues) > 0:
		r.Status = model.StatusOK
	case err == nil:
		r.Status = model.StatusNoResult
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
		r.Status = model.StatusCanceled
		r.Error = err.Error()
	case errors.Is(err, model.ErrStrategyExhausted):
		r.Status = model.StatusNoResult
		r.Error = err.Error()
	default:
		r.Status = model.StatusError
		r.Error = err.Error()
	}
	log.Info().Str("url", url).Str("status", r.Status).Msg("url done")

	if a.store != nil && out != nil {
		if serr := a.store.Save(context.WithoutCancel(ctx), jobID, out); serr != nil {
			log.Warn().Err(serr).Str("url", url).Msg("persist outcome failed")
		}
	}
	return r
}
