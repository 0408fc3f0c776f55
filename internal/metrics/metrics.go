package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Fallback counts attempt outcomes across all URLs. All methods are safe for
// concurrent use.
type Fallback struct {
	PrimarySuccess   atomic.Int64
	FallbackSuccess  atomic.Int64
	EmergencySuccess atomic.Int64
	TotalFailures    atomic.Int64
	TimeoutFailures  atomic.Int64
	Attempts         atomic.Int64
}

// FallbackSnapshot is a point-in-time copy of Fallback.
type FallbackSnapshot struct {
	PrimarySuccess   int64 `json:"primary_success"`
	FallbackSuccess  int64 `json:"fallback_success"`
	EmergencySuccess int64 `json:"emergency_success"`
	TotalFailures    int64 `json:"total_failures"`
	TimeoutFailures  int64 `json:"timeout_failures"`
	Attempts         int64 `json:"attempts"`
}

func (f *Fallback) Snapshot() FallbackSnapshot {
	return FallbackSnapshot{
		PrimarySuccess:   f.PrimarySuccess.Load(),
		FallbackSuccess:  f.FallbackSuccess.Load(),
		EmergencySuccess: f.EmergencySuccess.Load(),
		TotalFailures:    f.TotalFailures.Load(),
		TimeoutFailures:  f.TimeoutFailures.Load(),
		Attempts:         f.Attempts.Load(),
	}
}

// KeyedCounter is a set of named counters created on first use.
type KeyedCounter struct {
	m sync.Map // string -> *atomic.Int64
}

// Inc increments the counter for key and returns the new value.
func (k *KeyedCounter) Inc(key string) int64 {
	if v, ok := k.m.Load(key); ok {
		return v.(*atomic.Int64).Add(1)
	}
	v, _ := k.m.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64).Add(1)
}

// Get returns the current value for key.
func (k *KeyedCounter) Get(key string) int64 {
	if v, ok := k.m.Load(key); ok {
		return v.(*atomic.Int64).Load()
	}
	return 0
}

// Snapshot copies all counters.
func (k *KeyedCounter) Snapshot() map[string]int64 {
	out := map[string]int64{}
	k.m.Range(func(key, value any) bool {
		out[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	return out
}

// Keys returns the counter names in sorted order.
func (k *KeyedCounter) Keys() []string {
	var keys []string
	k.m.Range(func(key, _ any) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

// Pipeline aggregates per-stage totals across runs.
type Pipeline struct {
	Outcomes        atomic.Int64
	NoResult        atomic.Int64
	RawCandidates   atomic.Int64
	ValidCandidates atomic.Int64
	Strategy        KeyedCounter
	Enrichment      KeyedCounter
}

// PipelineSnapshot is a point-in-time copy of Pipeline.
type PipelineSnapshot struct {
	Outcomes        int64            `json:"outcomes"`
	NoResult        int64            `json:"no_result"`
	RawCandidates   int64            `json:"raw_candidates"`
	ValidCandidates int64            `json:"valid_candidates"`
	Strategy        map[string]int64 `json:"strategy"`
	Enrichment      map[string]int64 `json:"enrichment"`
}

func (p *Pipeline) Snapshot() PipelineSnapshot {
	return PipelineSnapshot{
		Outcomes:        p.Outcomes.Load(),
		NoResult:        p.NoResult.Load(),
		RawCandidates:   p.RawCandidates.Load(),
		ValidCandidates: p.ValidCandidates.Load(),
		Strategy:        p.Strategy.Snapshot(),
		Enrichment:      p.Enrichment.Snapshot(),
	}
}
