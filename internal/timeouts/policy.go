package timeouts

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperifyio/goindicator/internal/metrics"
)

// Entry maps a domain pattern to a budget in seconds.
type Entry struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Seconds int    `yaml:"seconds" json:"seconds"`
}

// Table is the ordered domain timeout configuration. Default is required.
type Table struct {
	Entries        []Entry `yaml:"entries" json:"entries"`
	DefaultSeconds int     `yaml:"default" json:"default"`
}

// DefaultTable returns the built-in budgets. Government portals are slow and
// get the largest budgets; data APIs answer quickly.
func DefaultTable() Table {
	return Table{
		Entries: []Entry{
			{Pattern: "ins.tn", Seconds: 60},
			{Pattern: "bct.gov.tn", Seconds: 45},
			{Pattern: "finances.gov.tn", Seconds: 45},
			{Pattern: ".gov.tn", Seconds: 40},
			{Pattern: "api.worldbank.org", Seconds: 20},
			{Pattern: "worldbank.org", Seconds: 30},
			{Pattern: "imf.org", Seconds: 30},
		},
		DefaultSeconds: 30,
	}
}

// ErrNoDefault is returned by New when the table lacks a positive default.
var ErrNoDefault = errors.New("timeout table: default entry is required")

// Policy resolves a domain to its time budget. It is read-only after New and
// safe for concurrent use; only the usage counters change.
type Policy struct {
	exact    map[string]int
	patterns []Entry
	def      int
	usage    metrics.KeyedCounter
}

// New validates and copies t.
func New(t Table) (*Policy, error) {
	if t.DefaultSeconds <= 0 {
		return nil, ErrNoDefault
	}
	p := &Policy{exact: map[string]int{}, def: t.DefaultSeconds}
	for i, e := range t.Entries {
		pat := strings.ToLower(strings.TrimSpace(e.Pattern))
		if pat == "" {
			return nil, fmt.Errorf("timeout table: entry %d has empty pattern", i)
		}
		if e.Seconds <= 0 {
			return nil, fmt.Errorf("timeout table: entry %q has non-positive seconds", pat)
		}
		if _, dup := p.exact[pat]; !dup {
			p.exact[pat] = e.Seconds
		}
		p.patterns = append(p.patterns, Entry{Pattern: pat, Seconds: e.Seconds})
	}
	return p, nil
}

// Lookup returns the budget in seconds for domain: exact match, else the
// longest configured pattern contained in the domain, else the default. Ties
// on length resolve to the earlier entry.
func (p *Policy) Lookup(domain string) int {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "www.")
	p.usage.Inc(d)
	if s, ok := p.exact[d]; ok {
		return s
	}
	best, bestLen := 0, 0
	for _, e := range p.patterns {
		if len(e.Pattern) > bestLen && strings.Contains(d, e.Pattern) {
			best, bestLen = e.Seconds, len(e.Pattern)
		}
	}
	if bestLen > 0 {
		return best
	}
	return p.def
}

// Budget is Lookup as a time.Duration.
func (p *Policy) Budget(domain string) time.Duration {
	return time.Duration(p.Lookup(domain)) * time.Second
}

// Default returns the default budget in seconds.
func (p *Policy) Default() int { return p.def }

// Usage returns how many lookups each domain has had.
func (p *Policy) Usage() map[string]int64 { return p.usage.Snapshot() }
