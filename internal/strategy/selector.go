package strategy

import (
	"net/url"
	"path"
	"strings"

	"github.com/hyperifyio/goindicator/internal/model"
)

// Rules holds the static lists the selector consults. Build it once and pass
// it to New; the selector keeps its own copy.
type Rules struct {
	// StructuredHosts serve machine-readable data (JSON/XML/CSV APIs).
	StructuredHosts []string
	// ComplexGovernmentHosts publish indicators inside heavy, irregular markup.
	ComplexGovernmentHosts []string
	// ScriptExtensions mark server-rendered or dynamic pages.
	ScriptExtensions []string
	// MaxStaticQueryParams is the number of query parameters above which a
	// URL is treated as dynamic. Zero means 3.
	MaxStaticQueryParams int
	// Default is used when no rule matches.
	Default model.Strategy
}

// DefaultRules returns the built-in lists.
func DefaultRules() Rules {
	return Rules{
		StructuredHosts: []string{
			"api.worldbank.org",
			"dataservices.imf.org",
			"data.imf.org",
			"sdmx.oecd.org",
			"api.stlouisfed.org",
			"ec.europa.eu/eurostat/api",
			"data.afdb.org",
		},
		ComplexGovernmentHosts: []string{
			"ins.tn",
			"bct.gov.tn",
			"finances.gov.tn",
			"mdci.gov.tn",
			"cmf.tn",
			"onagri.nat.tn",
			"tunisieindustrie.nat.tn",
			"itceq.tn",
		},
		ScriptExtensions:     []string{".php", ".asp", ".aspx", ".jsp", ".do", ".cfm"},
		MaxStaticQueryParams: 3,
		Default:              model.StrategyPattern,
	}
}

// Selector maps a URL to an extraction strategy.
type Selector struct {
	rules Rules
}

// New copies rules into a Selector.
func New(rules Rules) *Selector {
	r := rules
	r.StructuredHosts = lowerAll(rules.StructuredHosts)
	r.ComplexGovernmentHosts = lowerAll(rules.ComplexGovernmentHosts)
	r.ScriptExtensions = lowerAll(rules.ScriptExtensions)
	if r.MaxStaticQueryParams <= 0 {
		r.MaxStaticQueryParams = 3
	}
	if r.Default == "" {
		r.Default = model.StrategyPattern
	}
	return &Selector{rules: r}
}

// Select returns the strategy for rawURL. Rules are evaluated in order and the
// first match wins: structured-data marker, complex government host, dynamic
// content marker, default.
func (s *Selector) Select(rawURL string) model.Strategy {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return s.rules.Default
	}
	host := strings.ToLower(u.Hostname())
	if s.isStructured(u, host) {
		return model.StrategyPattern
	}
	if matchHost(host, s.rules.ComplexGovernmentHosts) {
		return model.StrategyContextAware
	}
	if s.isDynamic(u) {
		return model.StrategyContextAware
	}
	return s.rules.Default
}

func (s *Selector) isStructured(u *url.URL, host string) bool {
	p := strings.ToLower(u.Path)
	if strings.Contains(p+"/", "/api/") {
		return true
	}
	q := u.Query()
	for _, key := range []string{"format", "type", "downloadformat", "output"} {
		switch strings.ToLower(q.Get(key)) {
		case "json", "xml", "csv", "sdmx-json":
			return true
		}
	}
	switch path.Ext(p) {
	case ".json", ".csv", ".xml":
		return true
	}
	hostPath := host + p
	for _, h := range s.rules.StructuredHosts {
		if strings.Contains(h, "/") {
			if strings.HasPrefix(hostPath, h) {
				return true
			}
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func (s *Selector) isDynamic(u *url.URL) bool {
	ext := strings.ToLower(path.Ext(u.Path))
	for _, e := range s.rules.ScriptExtensions {
		if ext == e {
			return true
		}
	}
	if strings.HasPrefix(u.Fragment, "!") || strings.HasPrefix(u.Fragment, "/") {
		return true
	}
	if len(u.Query()) >= s.rules.MaxStaticQueryParams {
		return true
	}
	return false
}

// matchHost reports whether host equals or is a subdomain of any entry.
func matchHost(host string, list []string) bool {
	for _, h := range list {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
