package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hyperifyio/goindicator/internal/extract"
	"github.com/hyperifyio/goindicator/internal/model"
)

// Temporal windows.
const (
	PrimaryStart  = extract.PrimaryWindowStart
	ExtendedStart = 2010
	ExtendedEnd   = 2030

	contextScanRadius = 120
)

// Provenance tags set by the temporal filter.
const (
	TagPermissiveDefaultYear = "government-permissive-default-year"
	TagCurrentYearFallback   = "year:current-fallback"
)

// TemporalConfig configures the temporal filter.
type TemporalConfig struct {
	// GovernmentPermissive keeps candidates from PermissiveDomains whose year
	// is missing or outside both windows, with the current year as default.
	GovernmentPermissive bool
	PermissiveDomains    []string
	// CurrentYearFallback assigns the current year when no year is found.
	CurrentYearFallback bool
	Now                 func() time.Time
}

// TemporalResult is the output of the temporal filter.
type TemporalResult struct {
	Kept   []model.Candidate
	Errors []string
	Stats  model.TemporalStats
}

var (
	yearRe     = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	rawFieldRe = regexp.MustCompile(`(?i)(?:date|year|ann[ée]e|period)\W{0,3}((?:19|20)\d{2})\b`)
)

// ResolveYear returns the year of c and where it came from: "explicit",
// "name", "raw", "context", or "" when none was found.
func ResolveYear(c model.Candidate) (int, string) {
	if c.Temporal.Year > 0 {
		return c.Temporal.Year, "explicit"
	}
	if y := firstYear(c.IndicatorName); y > 0 {
		return y, "name"
	}
	if m := rawFieldRe.FindStringSubmatch(c.RawText); m != nil {
		y, _ := strconv.Atoi(m[1])
		return y, "raw"
	}
	if y := contextYear(c.ContextText, c.RawText); y > 0 {
		return y, "context"
	}
	return 0, ""
}

func firstYear(s string) int {
	if m := yearRe.FindString(s); m != "" {
		y, _ := strconv.Atoi(m)
		return y
	}
	return 0
}

// contextYear scans at most contextScanRadius bytes on each side of raw
// within ctxText and returns the year closest to it.
func contextYear(ctxText, raw string) int {
	if ctxText == "" {
		return 0
	}
	anchor := len(ctxText) / 2
	if raw != "" {
		if i := strings.Index(ctxText, raw); i >= 0 {
			anchor = i + len(raw)/2
		}
	}
	lo := max(0, anchor-contextScanRadius)
	hi := min(len(ctxText), anchor+contextScanRadius)
	for lo > 0 && !utf8.RuneStart(ctxText[lo]) {
		lo--
	}
	for hi < len(ctxText) && !utf8.RuneStart(ctxText[hi]) {
		hi++
	}
	best, bestDist := 0, -1
	for _, loc := range yearRe.FindAllStringIndex(ctxText[lo:hi], -1) {
		d := lo + loc[0] - anchor
		if d < 0 {
			d = -d
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = atoi(ctxText[lo+loc[0]:lo+loc[1]]), d
		}
	}
	return best
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Temporal applies the temporal filter to cands.
func Temporal(cfg TemporalConfig, cands []model.Candidate) TemporalResult {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	current := now().Year()
	res := TemporalResult{Stats: model.TemporalStats{Input: len(cands)}}
	for _, c := range cands {
		year, source := ResolveYear(c)
		if year == 0 && cfg.CurrentYearFallback {
			year, source = current, "current"
		}
		permissive := cfg.GovernmentPermissive && IsPermissiveDomain(cfg.PermissiveDomains, c.SourceDomain)

		switch {
		case year >= PrimaryStart && year <= current:
			res.Stats.KeptInWindow++
		case year >= ExtendedStart && year <= ExtendedEnd:
			res.Stats.KeptExtended++
		case permissive:
			res.Stats.KeptPermissive++
			c.GovernmentPermissive = true
			c = c.WithProvenance(TagPermissiveDefaultYear)
			year, source = current, ""
		case year == 0:
			res.Stats.RejectedNoYear++
			res.Errors = append(res.Errors, rejection(c, "no reference year found"))
			continue
		default:
			res.Stats.RejectedOutOfRange++
			res.Errors = append(res.Errors, rejection(c, fmt.Sprintf("year %d outside %d-%d and %d-%d", year, PrimaryStart, current, ExtendedStart, ExtendedEnd)))
			continue
		}

		if c.Temporal.Year != year {
			c.Temporal.Year = year
			if c.Temporal.PeriodType == "" {
				c.Temporal.PeriodType = model.PeriodAnnual
			}
			switch source {
			case "current":
				c = c.WithProvenance(TagCurrentYearFallback)
			case "":
			default:
				c = c.WithProvenance("year:" + source)
			}
		}
		res.Kept = append(res.Kept, c)
	}
	return res
}

func rejection(c model.Candidate, reason string) string {
	return fmt.Errorf("%w: %q (%s): %s", model.ErrValidationRejected, c.IndicatorName, strconv.FormatFloat(c.Value, 'g', -1, 64), reason).Error()
}
