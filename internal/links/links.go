// Package links ranks the outbound links of a page by how likely they lead to
// indicator data. It does not follow them.
package links

import (
	"math"
	"net/url"
	"sort"
	"strings"

	"github.com/hyperifyio/goindicator/internal/extract"
	"github.com/hyperifyio/goindicator/internal/model"
)

// Options configures prioritization.
type Options struct {
	MaxTotal  int
	PerDomain int
	// InstitutionalHosts earn a bonus; suffix match.
	InstitutionalHosts []string
}

// DefaultInstitutionalHosts are statistics offices, central banks and
// international data providers.
var DefaultInstitutionalHosts = []string{"ins.tn", "bct.gov.tn", "finances.gov.tn", "worldbank.org", "imf.org", "oecd.org", "afdb.org"}

var keywords = []string{
	"statisti", "indicateur", "indicator", "conjoncture", "inflation", "croissance",
	"growth", "chomage", "unemployment", "pib", "gdp", "taux", "rate", "monetaire",
	"monetary", "balance", "commerce", "trade", "reserves", "dette", "debt", "budget",
	"prix", "price", "donnees", "data", "rapport annuel", "annual report", "bulletin",
}

var dataExtensions = []string{".pdf", ".xls", ".xlsx", ".csv", ".json", ".xml"}

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid"}

// Prioritize resolves anchors against base, drops duplicates and non-web
// links, scores the rest and returns the best ones, highest score first.
func Prioritize(base string, anchors []extract.Anchor, opt Options) []model.Link {
	if opt.MaxTotal <= 0 {
		opt.MaxTotal = 10
	}
	if opt.PerDomain <= 0 {
		opt.PerDomain = 3
	}
	if opt.InstitutionalHosts == nil {
		opt.InstitutionalHosts = DefaultInstitutionalHosts
	}
	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return nil
	}
	self := Canonical(baseURL)

	seen := map[string]struct{}{}
	var scored []model.Link
	for _, a := range anchors {
		u, err := baseURL.Parse(strings.TrimSpace(a.Href))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		canon := Canonical(u)
		if canon == self {
			continue
		}
		if _, dup := seen[canon]; dup {
			continue
		}
		seen[canon] = struct{}{}
		s := score(u, a.Text, baseURL.Hostname(), opt.InstitutionalHosts)
		if s <= 0 {
			continue
		}
		scored = append(scored, model.Link{URL: canon, Text: strings.Join(strings.Fields(a.Text), " "), Score: s})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].URL < scored[j].URL
	})

	perHost := map[string]int{}
	out := make([]model.Link, 0, min(len(scored), opt.MaxTotal))
	for _, l := range scored {
		host := extract.DomainOf(l.URL)
		if perHost[host] >= opt.PerDomain {
			continue
		}
		perHost[host]++
		out = append(out, l)
		if len(out) >= opt.MaxTotal {
			break
		}
	}
	return out
}

// Canonical drops the fragment, default ports and tracking parameters and
// lower-cases the host.
func Canonical(u *url.URL) string {
	u2 := *u
	u2.Fragment = ""
	u2.RawFragment = ""
	u2.Host = strings.ToLower(u2.Host)
	if (u2.Scheme == "http" && strings.HasSuffix(u2.Host, ":80")) || (u2.Scheme == "https" && strings.HasSuffix(u2.Host, ":443")) {
		u2.Host = u2.Hostname()
	}
	if u2.RawQuery != "" {
		q := u2.Query()
		for _, p := range trackingParams {
			q.Del(p)
		}
		u2.RawQuery = q.Encode()
	}
	return u2.String()
}

func score(u *url.URL, text, baseHost string, institutional []string) float64 {
	hay := extract.Fold(text + " " + strings.ReplaceAll(u.Path, "-", " "))
	s := 0.0
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(hay, kw) {
			hits++
		}
	}
	s += math.Min(float64(hits)*0.2, 0.6)
	path := strings.ToLower(u.Path)
	for _, ext := range dataExtensions {
		if strings.HasSuffix(path, ext) {
			s += 0.2
			break
		}
	}
	// Host bonuses only rank links that already look like data.
	if s == 0 {
		return 0
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range institutional {
		if host == h || strings.HasSuffix(host, "."+h) {
			s += 0.3
			break
		}
	}
	if strings.EqualFold(host, baseHost) {
		s += 0.1
	}
	return math.Round(s*100) / 100
}
