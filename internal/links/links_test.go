package links

import (
	"fmt"
	"testing"

	"github.com/hyperifyio/goindicator/internal/extract"
)

func TestPrioritize_RanksDataLinks(t *testing.T) {
	anchors := []extract.Anchor{
		{Href: "/fr/statistiques/inflation", Text: "Inflation"},
		{Href: "/contact", Text: "Contact"},
		{Href: "mailto:info@ins.tn", Text: "Écrire"},
		{Href: "https://data.worldbank.org/indicator/NY.GDP.MKTP.CD?utm_source=x#top", Text: "GDP data"},
		{Href: "/publications/bulletin-2023.pdf", Text: "Bulletin mensuel"},
		{Href: "#main", Text: "Aller au contenu"},
		{Href: "/fr/statistiques/inflation#tab2", Text: "Inflation (détail)"},
	}
	got := Prioritize("https://www.ins.tn/fr/accueil", anchors, Options{})
	if len(got) != 3 {
		t.Fatalf("expected 3 links, got %+v", got)
	}
	if got[0].URL != "https://data.worldbank.org/indicator/NY.GDP.MKTP.CD" {
		t.Fatalf("tracking params and fragment not stripped or wrong order: %+v", got)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Score < got[i].Score {
			t.Fatalf("not sorted by score: %+v", got)
		}
	}
}

func TestPrioritize_PerDomainCap(t *testing.T) {
	var anchors []extract.Anchor
	for i := 0; i < 10; i++ {
		anchors = append(anchors, extract.Anchor{Href: fmt.Sprintf("/statistiques/%d", i), Text: "Statistiques"})
	}
	got := Prioritize("https://www.bct.gov.tn/", anchors, Options{PerDomain: 2, MaxTotal: 5})
	if len(got) != 2 {
		t.Fatalf("expected per-domain cap of 2, got %d", len(got))
	}
}

func TestPrioritize_BadBase(t *testing.T) {
	if got := Prioritize("://bad", []extract.Anchor{{Href: "/x"}}, Options{}); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}
