package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperifyio/goindicator/internal/model"
)

func outcome(url string, valid int) *model.ScrapeOutcome {
	o := &model.ScrapeOutcome{
		URL:             url,
		ExtractedValues: map[string]model.Candidate{},
		Summary:         model.ExtractionSummary{Raw: valid + 1},
		Metadata:        model.Metadata{Domain: "ins.tn", FinalStrategy: model.StrategyContextAware, FallbackUsed: true},
	}
	for i := 0; i < valid; i++ {
		o.ExtractedValues[string(rune('a'+i))] = model.Candidate{IndicatorName: "Inflation", Value: float64(i), HasValue: true, Validated: true}
	}
	return o
}

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "outcomes.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_SaveGetList(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	if err := s.Save(ctx, "job-1", outcome("https://www.ins.tn/b", 2)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, "job-1", outcome("https://www.ins.tn/a", 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, "job-2", outcome("https://www.ins.tn/a", 0)); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Get(ctx, "job-1", "https://www.ins.tn/b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.ExtractedValues) != 2 || got.Metadata.FinalStrategy != model.StrategyContextAware {
		t.Fatalf("unexpected outcome %+v", got)
	}

	recs, err := s.ListJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 || recs[0].URL != "https://www.ins.tn/a" || recs[1].Valid != 2 || !recs[1].FallbackUsed {
		t.Fatalf("unexpected records %+v", recs)
	}
	if recs[0].SavedAt.IsZero() {
		t.Fatalf("saved_at not parsed")
	}
}

func TestSQLite_SaveReplaces(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	_ = s.Save(ctx, "job-1", outcome("https://x.tn", 1))
	if err := s.Save(ctx, "job-1", outcome("https://x.tn", 3)); err != nil {
		t.Fatalf("save: %v", err)
	}
	recs, _ := s.ListJob(ctx, "job-1")
	if len(recs) != 1 || recs[0].Valid != 3 {
		t.Fatalf("expected replaced row, got %+v", recs)
	}
}

func TestSQLite_GetMissing(t *testing.T) {
	if _, err := openTemp(t).Get(context.Background(), "job", "https://none"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := openTemp(t).Save(context.Background(), "job", nil); err == nil {
		t.Fatalf("expected error for nil outcome")
	}
}
