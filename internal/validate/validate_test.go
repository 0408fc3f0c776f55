package validate

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/goindicator/internal/model"
)

func fixedNow() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

func cand(name string, v float64, unit string, year int, domain string) model.Candidate {
	return model.Candidate{
		Value:         v,
		HasValue:      true,
		IndicatorName: name,
		Unit:          unit,
		Category:      model.CategoryOther,
		SourceDomain:  domain,
		Temporal:      model.Temporal{Year: year},
	}
}

func TestIsNoiseName(t *testing.T) {
	noise := []string{"Total", "Indicateur", "2023", "12/05/2023", "Accueil", "Lire la suite", "<td>Inflation</td>", "ab", "https://ins.tn", "  Année "}
	for _, n := range noise {
		if !IsNoiseName(n) {
			t.Errorf("expected %q to be noise", n)
		}
	}
	for _, n := range []string{"Taux directeur", "Inflation", "PIB 2022", "Taux de chômage"} {
		if IsNoiseName(n) {
			t.Errorf("did not expect %q to be noise", n)
		}
	}
}

func TestClean_PermissivePathOnlyNeedsValue(t *testing.T) {
	cfg := CleanConfig{GovernmentPermissive: true, PermissiveDomains: []string{"ins.tn"}}
	in := []model.Candidate{
		cand("Total", 5, "", 2023, "www.ins.tn"),
		cand("Total", 5, "", 2023, "example.org"),
		{IndicatorName: "Inflation", SourceDomain: "ins.tn"},
	}
	res := Clean(cfg, in)
	if len(res.Kept) != 1 || !res.Kept[0].GovernmentPermissive {
		t.Fatalf("unexpected kept %+v", res.Kept)
	}
	if res.Rejected != 2 || res.Permissive != 1 {
		t.Fatalf("rejected=%d permissive=%d", res.Rejected, res.Permissive)
	}
	if in[0].GovernmentPermissive {
		t.Fatalf("input must not be modified")
	}

	cfg.GovernmentPermissive = false
	if res := Clean(cfg, in[:1]); len(res.Kept) != 0 {
		t.Fatalf("flag off must disable the bypass")
	}
}

func TestResolveYear_Priority(t *testing.T) {
	c := cand("PIB 2022", 1, "", 2021, "")
	if y, src := ResolveYear(c); y != 2021 || src != "explicit" {
		t.Fatalf("got %d %s", y, src)
	}
	c.Temporal.Year = 0
	c.RawText = `{"date":"2019"}`
	if y, src := ResolveYear(c); y != 2022 || src != "name" {
		t.Fatalf("got %d %s", y, src)
	}
	c.IndicatorName = "PIB"
	if y, src := ResolveYear(c); y != 2019 || src != "raw" {
		t.Fatalf("got %d %s", y, src)
	}
	c.RawText = "taux a atteint 5 %"
	c.ContextText = "Rapport 2019. Le taux a atteint 5 % en 2022."
	if y, src := ResolveYear(c); y != 2022 || src != "context" {
		t.Fatalf("expected the closest context year, got %d %s", y, src)
	}
	c.ContextText = ""
	if y, src := ResolveYear(c); y != 0 || src != "" {
		t.Fatalf("got %d %s", y, src)
	}
}

func TestTemporal_WindowsAndStats(t *testing.T) {
	cfg := TemporalConfig{Now: fixedNow}
	in := []model.Candidate{
		cand("Inflation", 7.1, "%", 2023, "example.org"),
		cand("Inflation", 4.2, "%", 2015, "example.org"),
		cand("Inflation", 3.1, "%", 2005, "example.org"),
		cand("Inflation", 2.0, "%", 0, "example.org"),
	}
	res := Temporal(cfg, in)
	want := model.TemporalStats{Input: 4, KeptInWindow: 1, KeptExtended: 1, RejectedOutOfRange: 1, RejectedNoYear: 1}
	if res.Stats != want {
		t.Fatalf("stats = %+v, want %+v", res.Stats, want)
	}
	if len(res.Errors) != 2 || !strings.Contains(res.Errors[0], "2005") {
		t.Fatalf("unexpected errors %v", res.Errors)
	}
}

func TestTemporal_CurrentYearFallbackIsTagged(t *testing.T) {
	res := Temporal(TemporalConfig{Now: fixedNow, CurrentYearFallback: true}, []model.Candidate{cand("Taux directeur", 8, "%", 0, "example.org")})
	if len(res.Kept) != 1 {
		t.Fatalf("expected kept candidate")
	}
	got := res.Kept[0]
	if got.Temporal.Year != 2024 || !slices.Contains(got.Provenance, TagCurrentYearFallback) {
		t.Fatalf("unexpected candidate %+v", got)
	}
}

// A candidate with an explicit year outside both windows survives only when
// its domain is listed as government-permissive.
func TestTemporal_OutOfWindowNeedsPermissiveDomain(t *testing.T) {
	c := cand("Inflation", 3.1, "%", 2005, "ins.tn")
	on := TemporalConfig{Now: fixedNow, GovernmentPermissive: true, PermissiveDomains: []string{"ins.tn"}}

	res := Temporal(on, []model.Candidate{c})
	if len(res.Kept) != 1 || res.Stats.KeptPermissive != 1 {
		t.Fatalf("expected permissive keep, got %+v", res)
	}
	k := res.Kept[0]
	if k.Temporal.Year != 2024 || !k.GovernmentPermissive || !slices.Contains(k.Provenance, TagPermissiveDefaultYear) {
		t.Fatalf("unexpected candidate %+v", k)
	}

	off := on
	off.GovernmentPermissive = false
	if res := Temporal(off, []model.Candidate{c}); len(res.Kept) != 0 || res.Stats.RejectedOutOfRange != 1 {
		t.Fatalf("expected rejection with the flag off, got %+v", res)
	}

	other := c
	other.SourceDomain = "example.org"
	if res := Temporal(on, []model.Candidate{other}); len(res.Kept) != 0 {
		t.Fatalf("expected rejection for an unlisted domain")
	}
}

func TestStrict_Checks(t *testing.T) {
	cfg := StrictConfig{HonorPermissive: true, Now: fixedNow}
	ok := cand("Taux directeur", 8, "%", 2023, "bct.gov.tn")
	ok.Category = model.CategoryMonetary

	extended := cand("Inflation", 4.2, "%", 2015, "example.org")
	permissive := extended
	permissive.GovernmentPermissive = true
	badUnit := cand("PIB", 1, "furlongs", 2023, "example.org")
	badRange := ok
	badRange.Value = 140

	res := Strict(cfg, []model.Candidate{ok, extended, permissive, badUnit, badRange})
	if len(res.Valid) != 2 || !res.Valid[0].Validated || !res.Valid[1].GovernmentPermissive {
		t.Fatalf("unexpected valid %+v", res.Valid)
	}
	if len(res.Errors) != 3 {
		t.Fatalf("expected 3 errors, got %v", res.Errors)
	}
	for _, e := range res.Errors {
		if !strings.HasPrefix(e, model.ErrValidationRejected.Error()) {
			t.Fatalf("error %q lacks the rejection prefix", e)
		}
	}

	cfg.HonorPermissive = false
	if res := Strict(cfg, []model.Candidate{permissive}); len(res.Valid) != 0 {
		t.Fatalf("expected year check when permissive is not honored")
	}
}

func TestPipeline_CleanTemporalStrict(t *testing.T) {
	policy := cand("Taux directeur", 8, "%", 2023, "example.org")
	policy.Category = model.CategoryMonetary
	in := []model.Candidate{
		cand("Total", 5, "", 2023, "example.org"),
		cand("2023", 12, "", 2023, "example.org"),
		cand("Inflation", 7.1, "%", 2005, "example.org"),
		cand("Croissance du PIB", 2.1, "furlongs", 2023, "example.org"),
		policy,
	}
	rep := New(DefaultConfig(), fixedNow).Run(in)
	if len(rep.ValidData) != 1 || rep.ValidData[0].IndicatorName != "Taux directeur" {
		t.Fatalf("unexpected valid data %+v", rep.ValidData)
	}
	if len(rep.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %v", rep.Errors)
	}
	if !strings.Contains(rep.Errors[0], "2005") || !strings.Contains(rep.Errors[1], "furlongs") {
		t.Fatalf("expected temporal then strict errors, got %v", rep.Errors)
	}
	s := rep.Summary
	if s.Input != 5 || s.CleanRejected != 2 || s.StrictRejected != 1 || s.Valid != 1 || s.Temporal.RejectedOutOfRange != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}
}
