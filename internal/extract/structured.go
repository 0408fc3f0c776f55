package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperifyio/goindicator/internal/model"
)

// maxStructuredRecords bounds how many records one document may contribute.
const maxStructuredRecords = 500

var envelopeKeys = []string{"data", "records", "observations", "values", "results", "items"}

// records locates the record list in a decoded JSON document. Recognized
// shapes: a World Bank style [meta, records] page, a bare array of records,
// an envelope object holding one, or a single record.
func records(doc any) []map[string]any {
	switch v := doc.(type) {
	case []any:
		if len(v) == 2 {
			if meta, ok := v[0].(map[string]any); ok && isPageMeta(meta) {
				if inner, ok := v[1].([]any); ok {
					return objects(inner)
				}
				return nil
			}
		}
		return objects(v)
	case map[string]any:
		for _, k := range envelopeKeys {
			if inner, ok := v[k].([]any); ok {
				return objects(inner)
			}
		}
		if _, ok := v["value"]; ok {
			return []map[string]any{v}
		}
	}
	return nil
}

func isPageMeta(m map[string]any) bool {
	_, page := m["page"]
	_, pages := m["pages"]
	_, total := m["total"]
	return page || pages || total
}

func objects(list []any) []map[string]any {
	var out []map[string]any
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func (p *Pattern) structured(rawURL, domain string, doc any) []model.Candidate {
	recs := records(doc)
	if len(recs) > maxStructuredRecords {
		recs = recs[:maxStructuredRecords]
	}
	conf := 0.9
	if p.isStructuredHost(rawURL) {
		conf = 0.95
	}
	var out []model.Candidate
	for _, r := range recs {
		c, ok := recordCandidate(r)
		if !ok {
			continue
		}
		c.Confidence = conf
		c.SourceDomain = domain
		out = append(out, c)
	}
	return out
}

func (p *Pattern) isStructuredHost(rawURL string) bool {
	u := strings.ToLower(rawURL)
	for _, h := range p.structuredHosts {
		if strings.Contains(u, h) {
			return true
		}
	}
	return false
}

func recordCandidate(r map[string]any) (model.Candidate, bool) {
	raw, ok := r["value"]
	if !ok || raw == nil {
		return model.Candidate{}, false
	}
	v, ok := numeric(raw)
	if !ok {
		return model.Candidate{}, false
	}
	name := recordName(r)
	if name == "" {
		return model.Candidate{}, false
	}
	c := model.Candidate{
		Value:         v,
		HasValue:      true,
		IndicatorName: name,
		Category:      Classify(name),
		Method:        model.MethodExternalStructured,
		Unit:          recordUnit(r, name),
		ContextText:   recordContext(r),
	}
	if b, err := json.Marshal(r); err == nil {
		c.RawText = string(b)
	}
	for _, k := range []string{"date", "year", "period", "time", "TIME_PERIOD"} {
		if s := scalarString(r[k]); s != "" {
			if t, ok := ParsePeriod(s); ok {
				c.Temporal = t
				break
			}
		}
	}
	return c, true
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case string:
		f, err := ParseNumber(x)
		return f, err == nil
	}
	return 0, false
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func recordName(r map[string]any) string {
	switch ind := r["indicator"].(type) {
	case map[string]any:
		if s := scalarString(ind["value"]); s != "" {
			return s
		}
		if s := scalarString(ind["name"]); s != "" {
			return s
		}
		if s := scalarString(ind["id"]); s != "" {
			return s
		}
	case string:
		if s := strings.TrimSpace(ind); s != "" {
			return s
		}
	}
	for _, k := range []string{"name", "indicator_name", "indicatorName", "series", "series_name", "label", "title"} {
		if s := scalarString(r[k]); s != "" {
			return s
		}
	}
	return ""
}

func recordContext(r map[string]any) string {
	if c, ok := r["country"].(map[string]any); ok {
		return scalarString(c["value"])
	}
	return scalarString(r["country"])
}

func recordUnit(r map[string]any, name string) string {
	if s := scalarString(r["unit"]); s != "" {
		if u := CanonicalUnit(s); u != "" {
			return u
		}
		return inferUnit(s)
	}
	if u := inferUnit(name); u != "" {
		return u
	}
	_, hasIndicator := r["indicator"].(map[string]any)
	_, hasCountry := r["country"].(map[string]any)
	if hasIndicator && hasCountry {
		// World Bank series without a unit hint are denominated in US dollars.
		return "USD"
	}
	return ""
}

func inferUnit(s string) string {
	f := Fold(s)
	switch {
	case strings.Contains(f, "%") || strings.Contains(f, "percent") || strings.Contains(f, "pour cent"):
		return "%"
	case strings.Contains(f, "us$") || strings.Contains(f, "usd") || strings.Contains(f, "dollar"):
		return "USD"
	case strings.Contains(f, "lcu") || strings.Contains(f, "dinar") || strings.Contains(f, "tnd"):
		return "TND"
	case strings.Contains(f, "population") || strings.Contains(f, "persons"):
		return "persons"
	case strings.Contains(f, "index"):
		return "index"
	}
	return ""
}

var periodRe = regexp.MustCompile(`^((?:19|20)\d{2})(?:\s*[-/]?\s*(?:([QqTt])([1-4])|[Mm]?(0[1-9]|1[0-2]))(?:[-/](0[1-9]|[12]\d|3[01]))?)?$`)

// ParsePeriod reads a period label such as "2021", "2021Q3", "2021M05",
// "2021-05" or "2021-05-12".
func ParsePeriod(s string) (model.Temporal, bool) {
	m := periodRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return model.Temporal{}, false
	}
	year, _ := strconv.Atoi(m[1])
	t := model.Temporal{Year: year, PeriodType: model.PeriodAnnual, ReferenceDate: m[1]}
	switch {
	case m[3] != "":
		t.PeriodType = model.PeriodQuarterly
		t.ReferenceDate = fmt.Sprintf("%s-Q%s", m[1], m[3])
	case m[4] != "" && m[5] != "":
		t.PeriodType = model.PeriodDaily
		t.ReferenceDate = fmt.Sprintf("%s-%s-%s", m[1], m[4], m[5])
	case m[4] != "":
		t.PeriodType = model.PeriodMonthly
		t.ReferenceDate = fmt.Sprintf("%s-%s", m[1], m[4])
	}
	return t, true
}
