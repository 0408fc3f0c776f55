package strategy

import (
	"testing"

	"github.com/hyperifyio/goindicator/internal/model"
)

func TestSelect_RulesInOrder(t *testing.T) {
	s := New(DefaultRules())
	cases := []struct {
		url  string
		want model.Strategy
	}{
		{"https://api.worldbank.org/v2/country/TN/indicator/NY.GDP.MKTP.CD?format=json", model.StrategyPattern},
		{"https://example.org/api/v1/series", model.StrategyPattern},
		{"https://example.org/export?format=CSV", model.StrategyPattern},
		{"https://example.org/data/series.json", model.StrategyPattern},
		// Structured marker wins over the government list.
		{"https://www.ins.tn/api/indicators", model.StrategyPattern},
		{"https://www.ins.tn/statistiques/90", model.StrategyContextAware},
		{"https://bct.gov.tn/bct/siteprod/index.jsp", model.StrategyContextAware},
		{"https://news.example.com/article.php?id=3", model.StrategyContextAware},
		{"https://spa.example.com/#!/indicators", model.StrategyContextAware},
		{"https://example.com/search?a=1&b=2&c=3", model.StrategyContextAware},
		{"https://example.com/economy/report", model.StrategyPattern},
		{"::not a url::", model.StrategyPattern},
	}
	for _, tc := range cases {
		if got := s.Select(tc.url); got != tc.want {
			t.Errorf("Select(%q) = %s, want %s", tc.url, got, tc.want)
		}
	}
}

func TestSelect_DefaultIsConfigurable(t *testing.T) {
	r := DefaultRules()
	r.Default = model.StrategyContextAware
	s := New(r)
	if got := s.Select("https://example.com/plain"); got != model.StrategyContextAware {
		t.Fatalf("expected configured default, got %s", got)
	}
}

func TestSelect_RulesAreCopied(t *testing.T) {
	r := DefaultRules()
	s := New(r)
	r.ComplexGovernmentHosts[0] = "changed.example"
	if got := s.Select("https://www.ins.tn/page"); got != model.StrategyContextAware {
		t.Fatalf("selector must not observe caller mutations, got %s", got)
	}
}
