package validate

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hyperifyio/goindicator/internal/extract"
	"github.com/hyperifyio/goindicator/internal/model"
)

// StrictConfig configures the final gate.
type StrictConfig struct {
	// HonorPermissive lets government-permissive candidates bypass the year
	// range check.
	HonorPermissive bool
	// Units is the accepted unit vocabulary; nil means extract.Units.
	Units []string
	Now   func() time.Time
}

// StrictResult is the output of the strict validator.
type StrictResult struct {
	Valid  []model.Candidate
	Errors []string
}

// Strict checks every candidate and marks the accepted ones validated. Each
// rejection yields one error string.
func Strict(cfg StrictConfig, cands []model.Candidate) StrictResult {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	units := cfg.Units
	if units == nil {
		units = extract.Units
	}
	current := now().Year()
	var res StrictResult
	for _, c := range cands {
		if reason := strictReason(c, cfg.HonorPermissive, units, current); reason != "" {
			res.Errors = append(res.Errors, rejection(c, reason))
			continue
		}
		c.Validated = true
		res.Valid = append(res.Valid, c)
	}
	return res
}

func strictReason(c model.Candidate, honorPermissive bool, units []string, current int) string {
	switch {
	case !c.HasValue:
		return "missing value"
	case strings.TrimSpace(c.IndicatorName) == "":
		return "empty indicator name"
	}
	if !(honorPermissive && c.GovernmentPermissive) {
		if y := c.Temporal.Year; y < PrimaryStart || y > current {
			return fmt.Sprintf("year %d outside %d-%d", y, PrimaryStart, current)
		}
	}
	if !slices.Contains(units, c.Unit) {
		return fmt.Sprintf("unit %q not recognized", c.Unit)
	}
	if c.Unit == "%" {
		if lo, hi, ok := c.Category.PercentBound(); ok && (c.Value < lo || c.Value > hi) {
			return fmt.Sprintf("%g%% outside the %s range", c.Value, c.Category)
		}
	}
	return ""
}
