package validate

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperifyio/goindicator/internal/extract"
	"github.com/hyperifyio/goindicator/internal/model"
)

// CleanConfig configures the clean filter.
type CleanConfig struct {
	// GovernmentPermissive enables the relaxed path for PermissiveDomains:
	// only a present value is required and the candidate is marked.
	GovernmentPermissive bool
	PermissiveDomains    []string
}

// CleanResult is the output of the clean filter. Rejections are counted,
// never reported as errors.
type CleanResult struct {
	Kept       []model.Candidate
	Rejected   int
	Permissive int
}

const (
	minNameRunes = 3
	maxNameRunes = 160
)

// headerNames are folded table headers and labels that are never indicators.
var headerNames = map[string]bool{
	"indicateur": true, "indicateurs": true, "indicator": true, "indicators": true,
	"valeur": true, "valeurs": true, "value": true, "values": true,
	"annee": true, "year": true, "date": true, "periode": true, "period": true,
	"source": true, "sources": true, "total": true, "unite": true, "unit": true,
	"variation": true, "libelle": true, "designation": true, "n/a": true, "nd": true,
}

var navigationWords = []string{
	"accueil", "home", "menu", "suivant", "precedent", "next", "previous", "retour",
	"back", "contact", "recherche", "search", "connexion", "login", "telecharger",
	"download", "imprimer", "print", "partager", "share", "lire la suite", "read more",
}

var (
	dateOnlyRe = regexp.MustCompile(`^[\d\s/.\-:]+$`)
	markupRe   = regexp.MustCompile(`(?i)</?[a-z][^>]*>|&[a-z]+;|&#\d+;|\{\{|\}\}|https?://|www\.`)
)

// IsNoiseName reports whether name looks like structure rather than an
// indicator: a header, a date, navigation text or a markup fragment.
func IsNoiseName(name string) bool {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < minNameRunes || n > maxNameRunes {
		return true
	}
	if !strings.ContainsFunc(name, unicode.IsLetter) {
		return true
	}
	if dateOnlyRe.MatchString(name) || markupRe.MatchString(name) {
		return true
	}
	folded := extract.Fold(name)
	if headerNames[folded] {
		return true
	}
	for _, w := range navigationWords {
		if folded == w || strings.HasPrefix(folded, w+" ") {
			return true
		}
	}
	return false
}

// Clean applies the clean filter to cands. The input is not modified.
func Clean(cfg CleanConfig, cands []model.Candidate) CleanResult {
	var res CleanResult
	for _, c := range cands {
		if !c.HasValue {
			res.Rejected++
			continue
		}
		if cfg.GovernmentPermissive && IsPermissiveDomain(cfg.PermissiveDomains, c.SourceDomain) {
			c.GovernmentPermissive = true
			res.Permissive++
			res.Kept = append(res.Kept, c)
			continue
		}
		if IsNoiseName(c.IndicatorName) {
			res.Rejected++
			continue
		}
		res.Kept = append(res.Kept, c)
	}
	return res
}

// IsPermissiveDomain reports whether domain equals or is a subdomain of one
// of the listed domains.
func IsPermissiveDomain(list []string, domain string) bool {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	if domain == "" {
		return false
	}
	for _, d := range list {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
