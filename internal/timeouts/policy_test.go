package timeouts

import (
	"errors"
	"sync"
	"testing"
)

func TestLookup_ExactThenLongestSubstringThenDefault(t *testing.T) {
	p, err := New(DefaultTable())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cases := map[string]int{
		"ins.tn":             60,
		"www.ins.tn":         60,
		"bct.gov.tn":         45,
		"portail.gov.tn":     40,
		"api.worldbank.org":  20,
		"data.worldbank.org": 30,
		"example.com":        30,
	}
	for domain, want := range cases {
		if got := p.Lookup(domain); got != want {
			t.Errorf("Lookup(%q) = %d, want %d", domain, got, want)
		}
	}
}

func TestLookup_CountsUsage(t *testing.T) {
	p, _ := New(DefaultTable())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Lookup("bct.gov.tn")
		}()
	}
	wg.Wait()
	if got := p.Usage()["bct.gov.tn"]; got != 20 {
		t.Fatalf("expected 20 lookups recorded, got %d", got)
	}
}

func TestNew_RequiresDefault(t *testing.T) {
	_, err := New(Table{Entries: []Entry{{Pattern: "a.tn", Seconds: 5}}})
	if !errors.Is(err, ErrNoDefault) {
		t.Fatalf("expected ErrNoDefault, got %v", err)
	}
	if _, err := New(Table{DefaultSeconds: 10, Entries: []Entry{{Pattern: "", Seconds: 3}}}); err == nil {
		t.Fatalf("expected error for empty pattern")
	}
}
