// Package validate runs extracted candidates through the clean filter, the
// temporal filter and the strict validator, in that order.
package validate

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goindicator/internal/model"
)

// Config holds the three stage configurations. The permissive bypass is
// switched per stage.
type Config struct {
	Clean    CleanConfig
	Temporal TemporalConfig
	Strict   StrictConfig
}

// DefaultPermissiveDomains are Tunisian public sources whose pages often omit
// a reference year next to the figure.
var DefaultPermissiveDomains = []string{"ins.tn", "bct.gov.tn", "finances.gov.tn", "economie.gov.tn", "onagri.tn"}

// DefaultConfig enables the permissive bypass for DefaultPermissiveDomains.
func DefaultConfig() Config {
	domains := append([]string(nil), DefaultPermissiveDomains...)
	return Config{
		Clean:    CleanConfig{GovernmentPermissive: true, PermissiveDomains: domains},
		Temporal: TemporalConfig{GovernmentPermissive: true, PermissiveDomains: domains, CurrentYearFallback: true},
		Strict:   StrictConfig{HonorPermissive: true},
	}
}

// Pipeline is safe for concurrent use; it holds configuration only.
type Pipeline struct {
	cfg Config
}

// New returns a pipeline. A non-nil now overrides the clock of the temporal
// and strict stages.
func New(cfg Config, now func() time.Time) *Pipeline {
	if now != nil {
		cfg.Temporal.Now = now
		cfg.Strict.Now = now
	}
	return &Pipeline{cfg: cfg}
}

// Run validates cands. The report's errors are the temporal rejections
// followed by the strict rejections; clean-filter rejections are only
// counted.
func (p *Pipeline) Run(cands []model.Candidate) model.ValidationReport {
	cleaned := Clean(p.cfg.Clean, cands)
	temporal := Temporal(p.cfg.Temporal, cleaned.Kept)
	strict := Strict(p.cfg.Strict, temporal.Kept)

	errs := make([]string, 0, len(temporal.Errors)+len(strict.Errors))
	errs = append(errs, temporal.Errors...)
	errs = append(errs, strict.Errors...)
	rep := model.ValidationReport{
		ValidData: strict.Valid,
		Errors:    errs,
		Summary: model.ValidationSummary{
			Input:           len(cands),
			CleanRejected:   cleaned.Rejected,
			CleanPermissive: cleaned.Permissive,
			Temporal:        temporal.Stats,
			StrictRejected:  len(strict.Errors),
			Valid:           len(strict.Valid),
		},
	}
	log.Debug().
		Int("input", rep.Summary.Input).
		Int("clean_rejected", cleaned.Rejected).
		Int("temporal_rejected", len(temporal.Errors)).
		Int("strict_rejected", len(strict.Errors)).
		Int("valid", rep.Summary.Valid).
		Msg("validation")
	return rep
}
