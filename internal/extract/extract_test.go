package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/goindicator/internal/model"
)

func fixedNow() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

func newTestPattern() *Pattern {
	return NewPattern(Options{StructuredHosts: []string{"api.worldbank.org"}, Now: fixedNow})
}

func TestParseNumber_Convention(t *testing.T) {
	cases := map[string]float64{
		"1.234,56":    1234.56,
		"1,234.56":    1234.56,
		"1234.56":     1234.56,
		"6,5":         6.5,
		"6.5":         6.5,
		"45 000":      45000,
		"45\u00a0000": 45000,
		"1.234.567":   1234567,
		"1,234":       1234,
		"0,125":       0.125,
		"-2,3":        -2.3,
		"\u22121.5":   -1.5,
		"12":          12,
	}
	for in, want := range cases {
		got, err := ParseNumber(in)
		if err != nil {
			t.Errorf("ParseNumber(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseNumber(%q) = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "-", "abc", "1.2a", "."} {
		if _, err := ParseNumber(bad); err == nil {
			t.Errorf("ParseNumber(%q) expected error", bad)
		}
	}
}

func TestParseNumberFor_RatesTreatLoneSeparatorAsDecimal(t *testing.T) {
	cases := []struct {
		tok  string
		unit string
		want float64
	}{
		{"7.125", "%", 7.125},
		{"7,125", "%", 7.125},
		{"1.234,5", "%", 1234.5},
		{"7.125", "MTND", 7125},
		{"7.125", "", 7125},
	}
	for _, tc := range cases {
		got, err := ParseNumberFor(tc.tok, tc.unit)
		if err != nil || got != tc.want {
			t.Errorf("ParseNumberFor(%q, %q) = %v, %v; want %v", tc.tok, tc.unit, got, err, tc.want)
		}
	}
}

func TestParseNumber_EuropeanAndAnglophoneAgree(t *testing.T) {
	a, err1 := ParseNumber("1.234,56")
	b, err2 := ParseNumber("1234.56")
	if err1 != nil || err2 != nil || a != b {
		t.Fatalf("expected equal values, got %v (%v) and %v (%v)", a, err1, b, err2)
	}
}

func TestFold_DiacriticsAndApostrophes(t *testing.T) {
	if got, want := Fold("Taux d’intérêt  Directeur"), "taux d'interet directeur"; got != want {
		t.Fatalf("Fold = %q, want %q", got, want)
	}
}

func TestIngest_StructuredWorldBankPage(t *testing.T) {
	body := `[{"page":1,"pages":1,"per_page":50,"total":1},[{"indicator":{"id":"NY.GDP.MKTP.CD","value":"GDP (current US$)"},"country":{"id":"TN","value":"Tunisia"},"countryiso3code":"TUN","date":"2021","value":46687000000,"unit":"","obs_status":"","decimal":0}]]`
	c, err := Ingest([]byte(body), "application/json;charset=utf-8")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if c.Kind != KindStructured {
		t.Fatalf("expected structured, got %v", c.Kind)
	}

	out := newTestPattern().Extract(context.Background(), Input{URL: "https://api.worldbank.org/v2/country/TN/indicator/NY.GDP.MKTP.CD?format=json", Content: c})
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	for id, cand := range out {
		if id == "" {
			t.Fatalf("empty id")
		}
		if cand.Method != model.MethodExternalStructured {
			t.Errorf("method = %s", cand.Method)
		}
		if cand.Unit != "USD" {
			t.Errorf("unit = %q, want USD", cand.Unit)
		}
		if cand.Temporal.Year != 2021 {
			t.Errorf("year = %d, want 2021", cand.Temporal.Year)
		}
		if cand.Confidence < 0.9 {
			t.Errorf("confidence = %v, want >= 0.9", cand.Confidence)
		}
		if cand.Value != 46687000000 {
			t.Errorf("value = %v", cand.Value)
		}
		if cand.Category != model.CategoryNationalAccounts {
			t.Errorf("category = %s", cand.Category)
		}
	}
}

func TestIngest_StructuredSkipsNullValues(t *testing.T) {
	body := `{"data":[{"name":"Inflation","year":2022,"value":null},{"name":"Inflation","year":"2023","value":"9,3","unit":"%"}]}`
	c, err := Ingest([]byte(body), "application/json")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	out := newTestPattern().Extract(context.Background(), Input{URL: "https://stats.example.org/inflation.json", Content: c})
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	for _, cand := range out {
		if cand.Value != 9.3 || cand.Unit != "%" || cand.Temporal.Year != 2023 {
			t.Fatalf("unexpected candidate %+v", cand)
		}
		if cand.Confidence != 0.9 {
			t.Fatalf("confidence = %v, want 0.9 for an unlisted host", cand.Confidence)
		}
	}
}

func TestIngest_InvalidDeclaredJSONIsParseError(t *testing.T) {
	_, err := Ingest([]byte(`{"broken":`), "application/json")
	if !errors.Is(err, model.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestIngest_MarkupPrefersMainAndCollectsRows(t *testing.T) {
	html := `<!doctype html>
    <html>
      <head><title>Indicateurs</title><script>var x = 42;</script></head>
      <body>
        <nav>Accueil 12</nav>
        <div class="cookie-banner">Nous utilisons des cookies</div>
        <main>
          <h1>Conjoncture</h1>
          <p>Le taux d'inflation s'établit à 7,1 % en 2023.</p>
          <table>
            <tr><th>Indicateur</th><th>Valeur</th></tr>
            <tr><td>Taux directeur</td><td>6.5%</td></tr>
          </table>
          <a href="/stats/pib">PIB trimestriel</a>
        </main>
        <footer>Footer text</footer>
      </body>
    </html>`
	c, err := Ingest([]byte(html), "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if c.Kind != KindMarkup {
		t.Fatalf("expected markup, got %v", c.Kind)
	}
	if c.Title != "Indicateurs" {
		t.Fatalf("title = %q", c.Title)
	}
	for _, unwanted := range []string{"Accueil", "cookies", "Footer text", "var x"} {
		if strings.Contains(c.Text, unwanted) {
			t.Errorf("did not expect %q in text:\n%s", unwanted, c.Text)
		}
	}
	if !strings.Contains(c.Text, "Taux directeur | 6.5%") {
		t.Errorf("expected table row line in text:\n%s", c.Text)
	}
	if len(c.Links) != 1 || c.Links[0].Href != "/stats/pib" {
		t.Errorf("unexpected links %+v", c.Links)
	}
}

func TestExtract_TableRowPolicyRate(t *testing.T) {
	c, _ := Ingest([]byte(`<html><body><table><tr><td>Taux directeur</td><td>6.5%</td></tr></table></body></html>`), "text/html")
	out := newTestPattern().Extract(context.Background(), Input{URL: "https://www.bct.gov.tn/page", Content: c})
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %+v", len(out), out)
	}
	for _, cand := range out {
		if cand.Value != 6.5 || cand.Unit != "%" || cand.Category != model.CategoryMonetary {
			t.Fatalf("unexpected candidate %+v", cand)
		}
		if cand.SourceDomain != "bct.gov.tn" {
			t.Fatalf("domain = %q", cand.SourceDomain)
		}
		if cand.Method != model.MethodPattern {
			t.Fatalf("method = %s", cand.Method)
		}
	}
}

func TestTemplates_FreeTextWithYearAndUnit(t *testing.T) {
	p := newTestPattern()
	got := p.Templates(context.Background(), "En 2023, le taux de chômage 2023 : 16,4 % selon l'INS.", "ins.tn")
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %+v", len(got), got)
	}
	c := got[0]
	if c.Value != 16.4 || c.Category != model.CategoryEmployment || c.Temporal.Year != 2023 {
		t.Fatalf("unexpected candidate %+v", c)
	}
	// 0.75 specificity + 0.1 in-window year + 0.05 unit.
	if c.Confidence != 0.9 {
		t.Fatalf("confidence = %v, want 0.9", c.Confidence)
	}
}

func TestTemplates_RejectsNoise(t *testing.T) {
	p := newTestPattern()
	text := strings.Join([]string{
		"Inflation 2023",
		"Croissance page 12",
		"Inflation le 15 mars",
		"Taux de chômage 140 %",
	}, "\n")
	if got := p.Templates(context.Background(), text, "example.org"); len(got) != 0 {
		t.Fatalf("expected no candidates, got %+v", got)
	}
}

func TestTemplates_SkipsReferenceDateBeforeValue(t *testing.T) {
	cases := []struct {
		text   string
		cat    model.Category
		value  float64
		unit   string
		period string
		ref    string
	}{
		{"Taux directeur au 31/12/2023 : 8 %", model.CategoryMonetary, 8, "%", model.PeriodDaily, "2023-12-31"},
		{"Inflation (T3 2023) : 9,3 %", model.CategoryInflation, 9.3, "%", model.PeriodQuarterly, "2023-Q3"},
		{"Réserves en devises au 15 mars 2024 : 23 456 MDT", model.CategoryReserves, 23456, "MTND", model.PeriodDaily, "2024-03-15"},
		{"Taux de chômage au 30.09.2023 : 15,8 %", model.CategoryEmployment, 15.8, "%", model.PeriodDaily, "2023-09-30"},
	}
	p := newTestPattern()
	for _, tc := range cases {
		got := p.Templates(context.Background(), tc.text, "bct.gov.tn")
		if len(got) != 1 {
			t.Errorf("%q: expected 1 candidate, got %+v", tc.text, got)
			continue
		}
		c := got[0]
		if c.Value != tc.value || c.Category != tc.cat || c.Unit != tc.unit {
			t.Errorf("%q: unexpected candidate %+v", tc.text, c)
		}
		if c.Temporal.PeriodType != tc.period || c.Temporal.ReferenceDate != tc.ref {
			t.Errorf("%q: temporal = %+v, want %s %s", tc.text, c.Temporal, tc.period, tc.ref)
		}
	}
}

func TestTemplates_PartialDateIsNotAValue(t *testing.T) {
	got := newTestPattern().Templates(context.Background(), "Taux directeur au 31/12 : 8 %", "bct.gov.tn")
	for _, c := range got {
		if c.Value == 31 || c.Value == 12 {
			t.Fatalf("date fragment taken as value: %+v", c)
		}
	}
}

func TestTemplates_RateKeepsThreeDecimals(t *testing.T) {
	got := newTestPattern().Templates(context.Background(), "Taux directeur : 7.125 %", "bct.gov.tn")
	if len(got) != 1 || got[0].Value != 7.125 || got[0].Unit != "%" {
		t.Fatalf("expected 7.125 %%, got %+v", got)
	}
}

func TestTemplates_CategoryBoundsAndSpans(t *testing.T) {
	p := newTestPattern()
	got := p.Templates(context.Background(), "Croissance du PIB : -1,2 % en 2024", "ins.tn")
	if len(got) != 1 {
		t.Fatalf("expected one candidate (growth claims the span), got %+v", got)
	}
	if got[0].Category != model.CategoryGrowth || got[0].Value != -1.2 {
		t.Fatalf("unexpected candidate %+v", got[0])
	}
}

func TestTemplates_MatchCapPerTemplate(t *testing.T) {
	var parts []string
	for i := 0; i < 15; i++ {
		parts = append(parts, fmt.Sprintf("inflation %d,5 %%", i+1))
	}
	got := newTestPattern().Templates(context.Background(), strings.Join(parts, "; "), "example.org")
	if len(got) != MatchCap {
		t.Fatalf("expected %d matches, got %d", MatchCap, len(got))
	}
}

func TestCollect_KeepsHighestConfidenceAndStableIDs(t *testing.T) {
	cs := []model.Candidate{
		{IndicatorName: "Taux directeur", Value: 8, Confidence: 0.6, Method: model.MethodPattern},
		{IndicatorName: "taux  DIRECTEUR", Value: 8, Confidence: 0.8, Method: model.MethodPattern},
		{IndicatorName: "Inflation", Value: 7.1, Confidence: 0.7, Method: model.MethodPattern},
	}
	a := Collect("https://bct.gov.tn", cs)
	b := Collect("https://bct.gov.tn", cs)
	if len(a) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(a))
	}
	for id, c := range a {
		if b[id].IndicatorName != c.IndicatorName {
			t.Fatalf("ids not deterministic")
		}
		if c.Value == 8 && c.Confidence != 0.8 {
			t.Fatalf("expected highest confidence kept, got %v", c.Confidence)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	cases := []struct {
		in     string
		year   int
		period string
	}{
		{"2021", 2021, model.PeriodAnnual},
		{"2021Q3", 2021, model.PeriodQuarterly},
		{"2021M05", 2021, model.PeriodMonthly},
		{"2021-05-12", 2021, model.PeriodDaily},
	}
	for _, tc := range cases {
		got, ok := ParsePeriod(tc.in)
		if !ok || got.Year != tc.year || got.PeriodType != tc.period {
			t.Errorf("ParsePeriod(%q) = %+v, %v", tc.in, got, ok)
		}
	}
	if _, ok := ParsePeriod("soon"); ok {
		t.Errorf("expected failure")
	}
}

func TestExtract_CanceledContextReturnsEmpty(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, _ := Ingest([]byte("Inflation : 7,1 %"), "text/plain")
	if out := newTestPattern().Extract(ctx, Input{URL: "https://x.tn", Content: c}); len(out) != 0 {
		t.Fatalf("expected empty map, got %d", len(out))
	}
}

func TestExtract_SingleStructuredRecord(t *testing.T) {
	body := `{"date":"2021","value":45000000000,"indicator":{"value":"GDP"},"country":{"value":"Tunisia"}}`
	c, err := Ingest([]byte(body), "application/json")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	out := newTestPattern().Extract(context.Background(), Input{URL: "https://api.worldbank.org/v2/country/TN/indicator/NY.GDP.MKTP.CD", Content: c})
	if len(out) != 1 {
		t.Fatalf("expected exactly one candidate, got %d", len(out))
	}
	for _, cand := range out {
		if cand.Unit != "USD" || cand.Temporal.Year != 2021 || cand.Confidence < 0.9 || cand.Value != 45000000000 {
			t.Fatalf("unexpected candidate %+v", cand)
		}
		if cand.ContextText != "Tunisia" {
			t.Fatalf("context = %q", cand.ContextText)
		}
	}
}
