package extract

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goindicator/internal/model"
)

// Input is what an extractor works on: the fetched, shape-tagged content and
// where it came from.
type Input struct {
	URL     string
	Domain  string
	Content Content
}

// Extractor produces candidates keyed by deterministic id. Implementations
// never fail; they return an empty map when nothing is found.
type Extractor interface {
	Extract(ctx context.Context, in Input) map[string]model.Candidate
}

// PrimaryWindowStart is the first year of the primary temporal window.
const PrimaryWindowStart = 2018

// contextRadius is how many bytes on each side of a match are kept as
// context text.
const contextRadius = 150

// Options configures the pattern extractor.
type Options struct {
	// StructuredHosts earn the higher structured-record confidence.
	StructuredHosts []string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Pattern is the template-based extractor.
type Pattern struct {
	structuredHosts []string
	now             func() time.Time
}

// NewPattern builds a pattern extractor. The host list is copied.
func NewPattern(opts Options) *Pattern {
	p := &Pattern{now: opts.Now}
	if p.now == nil {
		p.now = time.Now
	}
	for _, h := range opts.StructuredHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			p.structuredHosts = append(p.structuredHosts, h)
		}
	}
	return p
}

// Extract runs the structured path for recognized JSON shapes and the
// template path for everything else.
func (p *Pattern) Extract(ctx context.Context, in Input) map[string]model.Candidate {
	if ctx.Err() != nil {
		return map[string]model.Candidate{}
	}
	domain := in.Domain
	if domain == "" {
		domain = DomainOf(in.URL)
	}
	var found []model.Candidate
	if in.Content.Kind == KindStructured {
		found = p.structured(in.URL, domain, in.Content.Structured)
		if len(found) > 0 {
			log.Debug().Str("url", in.URL).Int("candidates", len(found)).Msg("structured records extracted")
			return Collect(in.URL, found)
		}
	}
	found = p.Templates(ctx, in.Content.Text, domain)
	log.Debug().Str("url", in.URL).Int("candidates", len(found)).Msg("pattern extraction")
	return Collect(in.URL, found)
}

type span struct{ start, end int }

func overlaps(spans []span, s span) bool {
	for _, o := range spans {
		if s.start < o.end && o.start < s.end {
			return true
		}
	}
	return false
}

// Templates applies the ordered template list to text and returns the
// accepted matches, in order of discovery.
func (p *Pattern) Templates(ctx context.Context, text, domain string) []model.Candidate {
	var out []model.Candidate
	var claimed []span
	currentYear := p.now().Year()
	for _, t := range templates {
		if ctx.Err() != nil {
			return out
		}
		matches := t.re.FindAllStringSubmatchIndex(text, -1)
		taken := 0
		for _, m := range matches {
			if taken >= MatchCap {
				break
			}
			g := groups(t.re, text, m)
			vs := span{m[2*t.re.SubexpIndex("value")], m[2*t.re.SubexpIndex("value")+1]}
			if overlaps(claimed, vs) {
				continue
			}
			c, ok := p.candidateFromMatch(t, g, text, m[0], m[1], vs, domain, currentYear)
			if !ok {
				continue
			}
			claimed = append(claimed, vs)
			out = append(out, c)
			taken++
		}
	}
	return out
}

func groups(re *regexp.Regexp, text string, m []int) map[string]string {
	out := map[string]string{}
	for i, name := range re.SubexpNames() {
		if name == "" || m[2*i] < 0 {
			continue
		}
		out[name] = text[m[2*i]:m[2*i+1]]
	}
	return out
}

func (p *Pattern) candidateFromMatch(t template, g map[string]string, text string, start, end int, vs span, domain string, currentYear int) (model.Candidate, bool) {
	name := cleanName(g["name"])
	if name == "" || isCalendarWord(Fold(name)) {
		return model.Candidate{}, false
	}
	tok := g["value"]
	unitTok := g["unit"]
	if isNoiseValue(text, tok, unitTok, vs) {
		return model.Candidate{}, false
	}
	unit := CanonicalUnit(unitTok)
	if unit == "" {
		unit = t.defaultUnit
	}
	v, err := ParseNumberFor(tok, unit)
	if err != nil {
		return model.Candidate{}, false
	}
	cat := Classify(name)
	if cat == model.CategoryOther {
		cat = t.category
	}
	if !WithinBounds(cat, v, unit) {
		return model.Candidate{}, false
	}

	ctxText := window(text, start, end, contextRadius)
	conf := t.specificity
	if hasPrimaryYear(ctxText, currentYear) {
		conf += 0.1
	}
	if unitTok != "" {
		conf += 0.05
	}
	conf = math.Min(conf, 1)

	c := model.Candidate{
		Value:         v,
		HasValue:      true,
		RawText:       strings.TrimSpace(text[start:end]),
		IndicatorName: name,
		Category:      cat,
		Unit:          unit,
		ContextText:   ctxText,
		Method:        model.MethodPattern,
		Confidence:    round(conf),
		SourceDomain:  domain,
	}
	if tp, ok := dateTemporal(g["date"]); ok {
		c.Temporal = tp
	} else if y, err := strconv.Atoi(g["year"]); err == nil {
		c.Temporal = model.Temporal{Year: y, PeriodType: model.PeriodAnnual}
	}
	return c, true
}

var (
	numericDateRe = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})$`)
	wordDateRe    = regexp.MustCompile(`^(\d{1,2})(?:er)?\s+(\p{L}+)\s+(\d{4})$`)
	quarterDateRe = regexp.MustCompile(`^[TQtq]([1-4])\s*(\d{4})$`)
)

// dateTemporal turns a reference date captured before a value into a
// period. Day-first order is assumed for numeric dates.
func dateTemporal(s string) (model.Temporal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.Temporal{}, false
	}
	if m := quarterDateRe.FindStringSubmatch(s); m != nil {
		return ParsePeriod(m[2] + "Q" + m[1])
	}
	var day, month int
	var year string
	if m := numericDateRe.FindStringSubmatch(s); m != nil {
		day, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		year = m[3]
	} else if m := wordDateRe.FindStringSubmatch(s); m != nil {
		day, _ = strconv.Atoi(m[1])
		month = monthNumber(Fold(m[2]))
		year = m[3]
	}
	if year == "" {
		return model.Temporal{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		y, err := strconv.Atoi(year)
		return model.Temporal{Year: y, PeriodType: model.PeriodAnnual}, err == nil
	}
	return ParsePeriod(fmt.Sprintf("%s-%02d-%02d", year, month, day))
}

func monthNumber(folded string) int {
	for i, w := range noiseMonths {
		if w == folded {
			return i%12 + 1
		}
	}
	return 0
}

// WithinBounds applies the absolute magnitude bound and, for percentages,
// the category's plausibility range.
func WithinBounds(cat model.Category, v float64, unit string) bool {
	lo, hi := cat.AbsoluteBound()
	if a := math.Abs(v); a < lo || a > hi {
		return false
	}
	if unit == "%" {
		if plo, phi, ok := cat.PercentBound(); ok && (v < plo || v > phi) {
			return false
		}
	}
	return true
}

// dateTailRe spots a value that is the head of a numeric date ("31/12").
var dateTailRe = regexp.MustCompile(`^[/.\-]\d`)

// isNoiseValue rejects bare years, day-of-month numbers and page markers.
func isNoiseValue(text, tok, unitTok string, vs span) bool {
	if unitTok == "" && len(tok) == 4 {
		if y, err := strconv.Atoi(tok); err == nil && y >= 1900 && y <= 2099 {
			return true
		}
	}
	if dateTailRe.MatchString(text[vs.end:min(len(text), vs.end+2)]) {
		return true
	}
	after := strings.TrimLeft(text[vs.end:min(len(text), vs.end+16)], " \u00a0")
	if isCalendarWord(Fold(after)) {
		return true
	}
	before := text[max(0, vs.start-12):vs.start]
	return pageMarkerBefore.MatchString(strings.TrimRight(before, " \u00a0"))
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, " \t|:=-–,;.(")
	return strings.Join(strings.Fields(s), " ")
}

// hasPrimaryYear reports whether a year in [2018, currentYear] appears in s.
func hasPrimaryYear(s string, currentYear int) bool {
	for _, m := range yearRe.FindAllString(s, -1) {
		if y, _ := strconv.Atoi(m); y >= PrimaryWindowStart && y <= currentYear {
			return true
		}
	}
	return false
}

// window returns up to radius bytes on each side of [start,end), widened to
// rune boundaries.
func window(s string, start, end, radius int) string {
	lo := max(0, start-radius)
	hi := min(len(s), end+radius)
	for lo > 0 && !utf8.RuneStart(s[lo]) {
		lo--
	}
	for hi < len(s) && !utf8.RuneStart(s[hi]) {
		hi++
	}
	return strings.TrimSpace(s[lo:hi])
}

var yearRe = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

func round(f float64) float64 { return math.Round(f*1000) / 1000 }

// DomainOf returns the lower-cased host of rawURL without a "www." prefix.
func DomainOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// CandidateID derives the deterministic id of a candidate: a name-based
// UUID over url, method, folded name and value.
func CandidateID(rawURL string, c model.Candidate) string {
	key := strings.Join([]string{rawURL, string(c.Method), Fold(c.IndicatorName), strconv.FormatFloat(c.Value, 'g', -1, 64)}, "|")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// DedupeKey identifies a candidate regardless of method.
func DedupeKey(c model.Candidate) string {
	return Fold(c.IndicatorName) + "|" + strconv.FormatFloat(c.Value, 'g', -1, 64)
}

// Collect deduplicates by folded name and value, keeping the highest
// confidence (the first seen on ties), and keys the survivors by id.
func Collect(rawURL string, cs []model.Candidate) map[string]model.Candidate {
	best := map[string]int{}
	var order []string
	for i, c := range cs {
		k := DedupeKey(c)
		j, seen := best[k]
		if !seen {
			best[k] = i
			order = append(order, k)
			continue
		}
		if c.Confidence > cs[j].Confidence {
			best[k] = i
		}
	}
	out := make(map[string]model.Candidate, len(order))
	for _, k := range order {
		c := cs[best[k]]
		out[CandidateID(rawURL, c)] = c
	}
	return out
}

// Sorted returns the candidates of m ordered by descending confidence, then
// name and value, for stable output.
func Sorted(m map[string]model.Candidate) []model.Candidate {
	out := make([]model.Candidate, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if out[i].IndicatorName != out[j].IndicatorName {
			return out[i].IndicatorName < out[j].IndicatorName
		}
		return out[i].Value < out[j].Value
	})
	return out
}
