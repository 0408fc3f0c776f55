package contextual

import (
	"context"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goindicator/internal/extract"
	"github.com/hyperifyio/goindicator/internal/llm"
	"github.com/hyperifyio/goindicator/internal/model"
)

// DefaultMinComposite is the composite score below which a candidate is
// dropped.
const DefaultMinComposite = 0.4

const (
	weightPlausible   = 0.25
	weightTemporal    = 0.20
	weightValue       = 0.25
	weightInstitution = 0.15
	weightSemantic    = 0.15

	extendedStart = 2010
	extendedEnd   = 2030

	secondaryBase = 0.6
	dedupeRelDist = 0.01
)

// Options configures the context-aware extractor.
type Options struct {
	// Base is the pattern extractor run first. Required.
	Base *extract.Pattern
	// Enricher is used when a call enables the model. Nil means no model
	// is configured.
	Enricher *llm.Enricher
	// MinComposite drops candidates scoring below it. Zero means 0.4.
	MinComposite float64
	// Now defaults to time.Now.
	Now func() time.Time
}

// Extractor layers context enrichment, a semantic pre-filter, a secondary
// phrase pass and optional model enrichment over the pattern extractor.
type Extractor struct {
	base         *extract.Pattern
	enricher     *llm.Enricher
	minComposite float64
	now          func() time.Time
}

// New builds an Extractor.
func New(opts Options) *Extractor {
	e := &Extractor{base: opts.Base, enricher: opts.Enricher, minComposite: opts.MinComposite, now: opts.Now}
	if e.minComposite <= 0 {
		e.minComposite = DefaultMinComposite
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.base == nil {
		e.base = extract.NewPattern(extract.Options{Now: e.now})
	}
	return e
}

// Extract implements extract.Extractor with the model disabled.
func (e *Extractor) Extract(ctx context.Context, in extract.Input) map[string]model.Candidate {
	out, _ := e.ExtractWithModel(ctx, in, false)
	return out
}

// ExtractWithModel runs the full context-aware pass. When enableModel is
// set, the model call starts after the base pass and is awaited after the
// secondary pass; its failure never fails extraction.
func (e *Extractor) ExtractWithModel(ctx context.Context, in extract.Input, enableModel bool) (map[string]model.Candidate, model.Enrichment) {
	enrichment := model.Enrichment{Status: model.EnrichmentDisabled}
	if ctx.Err() != nil {
		return map[string]model.Candidate{}, enrichment
	}
	if in.Domain == "" {
		in.Domain = extract.DomainOf(in.URL)
	}
	base := extract.Sorted(e.base.Extract(ctx, in))

	if in.Content.Kind == extract.KindStructured && len(base) > 0 {
		out := make([]model.Candidate, 0, len(base))
		for _, c := range base {
			c.Institution = DetectInstitution(in.Domain, c.ContextText)
			out = append(out, c)
		}
		return extract.Collect(in.URL, out), enrichment
	}

	var pending <-chan model.Enrichment
	if enableModel {
		if e.enricher == nil {
			enrichment = model.Enrichment{Status: model.EnrichmentUnavailable, Reason: "no model configured"}
		} else {
			pending = e.enricher.Start(ctx, llm.Request{URL: in.URL, Candidates: base, Excerpt: in.Content.Text})
		}
	}

	currentYear := e.now().Year()
	var kept []model.Candidate
	for _, c := range base {
		c.Method = model.MethodContextAware
		c = c.WithProvenance("base:pattern")
		if sc, ok := e.score(e.enrich(c, in.Domain), in.Domain); ok {
			kept = append(kept, sc)
		}
	}
	before := len(kept)
	for _, c := range e.secondary(in.Content.Text, in.Domain, currentYear) {
		if isDuplicate(kept, c) {
			continue
		}
		if sc, ok := e.score(e.enrich(c, in.Domain), in.Domain); ok {
			kept = append(kept, sc)
		}
	}

	if pending != nil {
		enrichment = llm.Await(ctx, pending)
	}
	log.Debug().Str("url", in.URL).Int("base", len(base)).Int("kept", before).
		Int("secondary", len(kept)-before).Str("enrichment", enrichment.Status).Msg("context-aware extraction")
	return extract.Collect(in.URL, kept), enrichment
}

// enrich adds period and institution details from the candidate's context.
func (e *Extractor) enrich(c model.Candidate, domain string) model.Candidate {
	anchor := -1
	if c.RawText != "" {
		anchor = strings.Index(c.ContextText, c.RawText)
	}
	if t, ok := DetectTemporal(c.ContextText, anchor); ok {
		switch {
		case c.Temporal.Year == 0:
			c.Temporal = t
			c = c.WithProvenance("year:context")
		case c.Temporal.Year == t.Year && c.Temporal.ReferenceDate == "":
			c.Temporal = t
		}
	}
	if c.Institution == "" {
		c.Institution = DetectInstitution(domain, c.ContextText)
	}
	return c
}

// Composite returns the weighted plausibility score of c.
func Composite(c model.Candidate, domain string) float64 {
	score := 0.0
	switch {
	case extract.Classify(c.IndicatorName) != model.CategoryOther:
		score += weightPlausible
	case len(strings.Fields(c.IndicatorName)) >= 2:
		score += weightPlausible / 2
	}
	switch y := c.Temporal.Year; {
	case y == 0:
		score += weightTemporal / 2
	case y >= extendedStart && y <= extendedEnd:
		score += weightTemporal
	}
	if c.HasValue && extract.WithinBounds(c.Category, c.Value, c.Unit) {
		score += weightValue
	}
	if c.Institution != "" || isGovernmentDomain(domain) {
		score += weightInstitution
	}
	switch n := len([]rune(strings.TrimSpace(c.IndicatorName))); {
	case n >= 4 && n <= 80:
		score += weightSemantic
	case n > 80:
		score += weightSemantic / 2
	}
	return math.Round(score*1000) / 1000
}

func (e *Extractor) score(c model.Candidate, domain string) (model.Candidate, bool) {
	comp := Composite(c, domain)
	if comp < e.minComposite {
		return c, false
	}
	c.Confidence = math.Round((c.Confidence+comp)/2*1000) / 1000
	return c, true
}

var (
	phraseRe = regexp.MustCompile(`(?i)(?P<name>\p{L}[\p{L}'’ \-]{2,60}?)\s+(?:s['’][eé]tablit|s['’]est\s+[eé]tablie?|a\s+atteint|est\s+pass[eé]e?|se\s+situe|est\s+de|stood\s+at|reached|rose\s+to|fell\s+to|amounted\s+to|came\s+in\s+at)\s+(?:[àa]\s+|at\s+|to\s+)?(?:environ\s+|about\s+|around\s+)?(?P<value>` + extract.NumberPattern + `)[ \t\x{00A0}\x{202F}]*(?P<unit>` + extract.UnitPattern + `)?`)
	leadingRe = regexp.MustCompile(`(?i)(?P<value>` + extract.NumberPattern + `)[ \t\x{00A0}\x{202F}]*(?P<unit>%|pour\s*cent|percent)\s+(?:d['’]|de\s+l['’]|de\s+|of\s+)?(?P<name>inflation|croissance|ch[oô]mage|unemployment|growth)`)

	articles = []string{"le ", "la ", "les ", "l'", "l’", "the ", "en outre ", "ainsi "}
)

// secondary finds "value near descriptive phrase" statements in text.
func (e *Extractor) secondary(text, domain string, currentYear int) []model.Candidate {
	var out []model.Candidate
	for _, re := range []*regexp.Regexp{phraseRe, leadingRe} {
		for _, m := range re.FindAllStringSubmatchIndex(text, extract.MatchCap) {
			get := func(name string) string {
				i := re.SubexpIndex(name)
				if m[2*i] < 0 {
					return ""
				}
				return text[m[2*i]:m[2*i+1]]
			}
			name := trimArticles(get("name"))
			cat := extract.Classify(name)
			if name == "" || cat == model.CategoryOther {
				continue
			}
			tok, unitTok := get("value"), get("unit")
			if unitTok == "" && len(tok) == 4 && yearRe.MatchString(tok) {
				continue
			}
			unit := extract.CanonicalUnit(unitTok)
			v, err := extract.ParseNumberFor(tok, unit)
			if err != nil {
				continue
			}
			if !extract.WithinBounds(cat, v, unit) {
				continue
			}
			ctxText := window(text, m[0], m[1], 150)
			conf := secondaryBase
			if unitTok != "" {
				conf += 0.05
			}
			if t, ok := DetectTemporal(ctxText, -1); ok && t.Year >= extract.PrimaryWindowStart && t.Year <= currentYear {
				conf += 0.1
			}
			out = append(out, model.Candidate{
				Value:         v,
				HasValue:      true,
				RawText:       strings.TrimSpace(text[m[0]:m[1]]),
				IndicatorName: name,
				Category:      cat,
				Unit:          unit,
				ContextText:   ctxText,
				Method:        model.MethodContextAware,
				Confidence:    conf,
				SourceDomain:  domain,
				Provenance:    []string{"secondary:phrase"},
			})
		}
	}
	return out
}

func trimArticles(s string) string {
	s = strings.TrimSpace(s)
	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(s)
		for _, a := range articles {
			if strings.HasPrefix(lower, a) {
				s = strings.TrimSpace(s[len(a):])
				changed = true
				break
			}
		}
	}
	return s
}

// isDuplicate reports whether c restates a kept candidate: one folded name
// contains the other and the values are within 1%.
func isDuplicate(kept []model.Candidate, c model.Candidate) bool {
	fn := extract.Fold(c.IndicatorName)
	for _, k := range kept {
		kn := extract.Fold(k.IndicatorName)
		if !strings.Contains(kn, fn) && !strings.Contains(fn, kn) {
			continue
		}
		if relDist(k.Value, c.Value) <= dedupeRelDist {
			return true
		}
	}
	return false
}

func relDist(a, b float64) float64 {
	m := math.Max(math.Abs(a), math.Abs(b))
	if m == 0 {
		return 0
	}
	return math.Abs(a-b) / m
}

func window(s string, start, end, radius int) string {
	lo := max(0, start-radius)
	hi := min(len(s), end+radius)
	for lo > 0 && lo < len(s) && s[lo]&0xC0 == 0x80 {
		lo--
	}
	for hi < len(s) && s[hi]&0xC0 == 0x80 {
		hi++
	}
	return strings.TrimSpace(s[lo:hi])
}
