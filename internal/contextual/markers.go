package contextual

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperifyio/goindicator/internal/extract"
	"github.com/hyperifyio/goindicator/internal/model"
)

var (
	dateRe    = regexp.MustCompile(`\b(0?[1-9]|[12]\d|3[01])[/.-](0?[1-9]|1[0-2])[/.-]((?:19|20)\d{2})\b`)
	quarterRe = regexp.MustCompile(`(?i)\b[TQ]([1-4])\s*[-/]?\s*((?:19|20)\d{2})\b`)
	ordinalRe = regexp.MustCompile(`(?i)\b([1-4])(?:er|[eè]me|e|st|nd|rd|th)\s+(?:trimestre|quarter)(?:\s+(?:de\s+l['’]ann[eé]e\s+|of\s+))?\s*((?:19|20)\d{2})\b`)
	monthRe   = regexp.MustCompile(`(?i)\b(janvier|f[eé]vrier|mars|avril|mai|juin|juillet|ao[uû]t|septembre|octobre|novembre|d[eé]cembre|january|february|march|april|may|june|july|august|september|october|november|december)\s+((?:19|20)\d{2})\b`)
	yearRe    = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
)

var monthNumbers = map[string]int{
	"janvier": 1, "fevrier": 2, "mars": 3, "avril": 4, "mai": 5, "juin": 6,
	"juillet": 7, "aout": 8, "septembre": 9, "octobre": 10, "novembre": 11, "decembre": 12,
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
}

// DetectTemporal finds the most specific period marker in text, preferring
// the occurrence closest to anchor (a byte offset, or -1 for "first").
// Specificity order: full date, quarter, month, bare year.
func DetectTemporal(text string, anchor int) (model.Temporal, bool) {
	if m := closest(dateRe, text, anchor); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		return model.Temporal{Year: year, PeriodType: model.PeriodDaily, ReferenceDate: fmt.Sprintf("%04d-%02d-%02d", year, month, day)}, true
	}
	for _, re := range []*regexp.Regexp{quarterRe, ordinalRe} {
		if m := closest(re, text, anchor); m != nil {
			year, _ := strconv.Atoi(m[2])
			return model.Temporal{Year: year, PeriodType: model.PeriodQuarterly, ReferenceDate: fmt.Sprintf("%d-Q%s", year, m[1])}, true
		}
	}
	if m := closest(monthRe, text, anchor); m != nil {
		year, _ := strconv.Atoi(m[2])
		month := monthNumbers[extract.Fold(m[1])]
		return model.Temporal{Year: year, PeriodType: model.PeriodMonthly, ReferenceDate: fmt.Sprintf("%04d-%02d", year, month)}, true
	}
	if m := closest(yearRe, text, anchor); m != nil {
		year, _ := strconv.Atoi(m[1])
		return model.Temporal{Year: year, PeriodType: model.PeriodAnnual, ReferenceDate: m[1]}, true
	}
	return model.Temporal{}, false
}

// closest returns the submatches of the occurrence of re nearest to anchor.
func closest(re *regexp.Regexp, text string, anchor int) []string {
	all := re.FindAllStringSubmatchIndex(text, -1)
	if len(all) == 0 {
		return nil
	}
	best := all[0]
	if anchor >= 0 {
		bestDist := -1
		for _, loc := range all {
			d := loc[0] - anchor
			if loc[1] <= anchor {
				d = anchor - loc[1]
			} else if loc[0] <= anchor {
				d = 0
			}
			if bestDist < 0 || d < bestDist {
				best, bestDist = loc, d
			}
		}
	}
	out := make([]string, len(best)/2)
	for i := range out {
		if best[2*i] >= 0 {
			out[i] = text[best[2*i]:best[2*i+1]]
		}
	}
	return out
}

type institution struct {
	name     string
	keywords []string
	domains  []string
}

var institutions = []institution{
	{"BCT", []string{"bct", "banque centrale de tunisie", "central bank of tunisia"}, []string{"bct.gov.tn"}},
	{"INS", []string{"ins", "institut national de la statistique", "national institute of statistics"}, []string{"ins.tn", "ins.nat.tn"}},
	{"World Bank", []string{"banque mondiale", "world bank"}, []string{"worldbank.org"}},
	{"IMF", []string{"fmi", "imf", "fonds monetaire international", "international monetary fund"}, []string{"imf.org"}},
	{"Ministry of Finance", []string{"ministere des finances", "ministry of finance"}, []string{"finances.gov.tn"}},
	{"Ministry of Economy", []string{"ministere de l'economie", "ministry of economy"}, []string{"mdci.gov.tn", "economie.gov.tn"}},
}

// DetectInstitution names the publishing institution from the domain first,
// then from keywords in the text.
func DetectInstitution(domain, text string) string {
	domain = strings.ToLower(domain)
	for _, inst := range institutions {
		for _, d := range inst.domains {
			if domain == d || strings.HasSuffix(domain, "."+d) {
				return inst.name
			}
		}
	}
	folded := extract.Fold(text)
	for _, inst := range institutions {
		for _, kw := range inst.keywords {
			if extract.HasWord(folded, kw) {
				return inst.name
			}
		}
	}
	return ""
}

// governmentSuffixes mark official publishers for institutional backing.
var governmentSuffixes = []string{".gov.tn", ".nat.tn", ".gov", ".gouv.fr", ".gob", ".int"}

func isGovernmentDomain(domain string) bool {
	for _, s := range governmentSuffixes {
		if strings.HasSuffix(domain, s) {
			return true
		}
	}
	return false
}
