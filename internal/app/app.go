package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goindicator/internal/cache"
	"github.com/hyperifyio/goindicator/internal/contextual"
	"github.com/hyperifyio/goindicator/internal/extract"
	"github.com/hyperifyio/goindicator/internal/fallback"
	"github.com/hyperifyio/goindicator/internal/fetch"
	"github.com/hyperifyio/goindicator/internal/llm"
	"github.com/hyperifyio/goindicator/internal/metrics"
	"github.com/hyperifyio/goindicator/internal/pipeline"
	"github.com/hyperifyio/goindicator/internal/render"
	"github.com/hyperifyio/goindicator/internal/report"
	"github.com/hyperifyio/goindicator/internal/store"
	"github.com/hyperifyio/goindicator/internal/strategy"
	"github.com/hyperifyio/goindicator/internal/timeouts"
	"github.com/hyperifyio/goindicator/internal/validate"
)

// ErrNoResults is returned by RunBatch when no URL produced a valid
// candidate. The CLI maps it to a non-zero exit code.
var ErrNoResults = errors.New("no url produced a valid indicator")

// App owns the long-lived components of a scraping run.
type App struct {
	cfg          Config
	orchestrator *pipeline.Orchestrator
	timeouts     *timeouts.Policy
	fetcher      *fetch.Client
	chrome       *render.Chrome
	store        *store.SQLite
	cached       bool
	now          func() time.Time
}

// New wires caches, the fetcher, the optional renderer and model, the
// validation pipeline and the orchestrator from cfg.
func New(ctx context.Context, cfg Config) (*App, error) {
	return newApp(ctx, cfg, time.Now)
}

func newApp(_ context.Context, cfg Config, now func() time.Time) (*App, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, now: now}

	var httpCache *cache.HTTPCache
	var llmCache *cache.LLMCache
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		httpDir := filepath.Join(cfg.CacheDir, "http")
		llmDir := filepath.Join(cfg.CacheDir, "llm")
		if cfg.CacheMaxAge > 0 {
			for _, dir := range []string{httpDir, llmDir} {
				if n, err := cache.PurgeByAge(dir, cfg.CacheMaxAge, now()); err != nil {
					log.Warn().Err(err).Str("dir", dir).Msg("cache purge failed")
				} else if n > 0 {
					log.Info().Int("removed", n).Str("dir", dir).Msg("purged stale cache entries")
				}
			}
		}
		httpCache = &cache.HTTPCache{Dir: httpDir, StrictPerms: cfg.CacheStrictPerms, MaxAge: cfg.CacheMaxAge, Now: now}
		llmCache = &cache.LLMCache{Dir: llmDir, StrictPerms: cfg.CacheStrictPerms}
		a.cached = true
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent()
	}
	fetchTimeout := cfg.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	attempts := cfg.FetchAttempts
	if attempts <= 0 {
		attempts = DefaultFetchAttempts
	}
	httpClient := newHTTPClient(cfg.MaxConcurrent)
	a.fetcher = &fetch.Client{
		HTTPClient:        httpClient,
		UserAgent:         userAgent,
		MaxAttempts:       attempts,
		PerRequestTimeout: fetchTimeout,
		Cache:             httpCache,
		MaxConcurrent:     cfg.MaxConcurrent,
	}
	if cfg.Headless {
		a.chrome = &render.Chrome{UserAgent: userAgent}
		a.fetcher.Renderer = a.chrome
	}

	var enricher *llm.Enricher
	if cfg.EnableModel {
		enricher = &llm.Enricher{
			Client:  llm.NewOpenAI(cfg.LLMBaseURL, cfg.LLMAPIKey, httpClient),
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
			Cache:   llmCache,
		}
	}

	table := timeouts.DefaultTable()
	if cfg.Tables.Timeouts != nil {
		table = *cfg.Tables.Timeouts
	}
	policy, err := timeouts.New(table)
	if err != nil {
		return nil, fmt.Errorf("timeouts: %w", err)
	}
	a.timeouts = policy

	rules := strategy.DefaultRules()
	if cfg.Tables.StructuredHosts != nil {
		rules.StructuredHosts = cfg.Tables.StructuredHosts
	}
	if cfg.Tables.ComplexGovernmentHosts != nil {
		rules.ComplexGovernmentHosts = cfg.Tables.ComplexGovernmentHosts
	}

	pattern := extract.NewPattern(extract.Options{StructuredHosts: rules.StructuredHosts, Now: now})
	orch, err := pipeline.New(pipeline.Options{
		Selector:         strategy.New(rules),
		Timeouts:         policy,
		Fetcher:          a.fetcher,
		Pattern:          pattern,
		Context:          contextual.New(contextual.Options{Base: pattern, Enricher: enricher, Now: now}),
		Fallback:         fallback.New(),
		Validator:        validate.New(validationConfig(cfg.Tables), now),
		Headless:         cfg.Headless,
		QualityThreshold: cfg.QualityThreshold,
		Now:              now,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orchestrator = orch

	if cfg.DBPath != "" {
		st, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = st
	}
	log.Debug().Bool("model", cfg.EnableModel).Bool("headless", cfg.Headless).Bool("cache", httpCache != nil).
		Bool("store", a.store != nil).Msg("app ready")
	return a, nil
}

// validationConfig applies the table overrides to the default validation
// configuration.
func validationConfig(t Tables) validate.Config {
	vc := validate.DefaultConfig()
	if t.PermissiveDomains != nil {
		domains := append([]string(nil), t.PermissiveDomains...)
		vc.Clean.PermissiveDomains = domains
		vc.Temporal.PermissiveDomains = domains
	}
	if t.GovernmentPermissive != nil {
		on := *t.GovernmentPermissive
		vc.Clean.GovernmentPermissive = on
		vc.Temporal.GovernmentPermissive = on
		vc.Strict.HonorPermissive = on
	}
	if t.Units != nil {
		vc.Strict.Units = append([]string(nil), t.Units...)
	}
	return vc
}

// Close releases the browser and the database.
func (a *App) Close() {
	if a.chrome != nil {
		a.chrome.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}
}

// Snapshot is the metrics block printed after a run.
type Snapshot struct {
	Fallback metrics.FallbackSnapshot `json:"fallback"`
	Pipeline metrics.PipelineSnapshot `json:"pipeline"`
	Timeouts map[string]int64         `json:"timeout_usage"`
}

// Metrics returns the current counters.
func (a *App) Metrics() Snapshot {
	return Snapshot{
		Fallback: a.orchestrator.FallbackMetrics().Snapshot(),
		Pipeline: a.orchestrator.Metrics().Snapshot(),
		Timeouts: a.timeouts.Usage(),
	}
}

// RunInfo describes the settings of this run for the report manifest.
func (a *App) RunInfo() report.RunInfo {
	info := report.RunInfo{
		EnableModel: a.cfg.EnableModel,
		Headless:    a.cfg.Headless,
		HTTPCache:   a.cached,
		Version:     BuildVersion,
		GeneratedAt: a.now(),
	}
	if a.cfg.EnableModel {
		info.Model = a.cfg.LLMModel
		info.LLMBaseURL = a.cfg.LLMBaseURL
		info.LLMCache = a.cached
	}
	return info
}
