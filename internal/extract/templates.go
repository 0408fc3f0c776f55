package extract

import (
	"regexp"
	"strings"

	"github.com/hyperifyio/goindicator/internal/model"
)

// template is one indicator pattern: a name fragment followed by a numeric
// token and an optional unit. Templates are tried in order; earlier, more
// specific templates claim value spans first.
type template struct {
	name        string
	category    model.Category
	specificity float64
	defaultUnit string
	re          *regexp.Regexp
}

// MatchCap bounds how many matches a single template may contribute.
const MatchCap = 10

// NumberPattern and UnitPattern are the shared numeric and unit token
// expressions.
const (
	NumberPattern = `[-\x{2212}]?(?:\d{1,3}(?:[ \x{00A0}\x{202F}]\d{3})+(?:[.,]\d+)?|\d+(?:[.,]\d+)*)`
	UnitPattern   = `%|US\$|\$|€|(?:pour\s*cent|percent|per\s+cent|points?\s+de\s+base|bps|milliards?\s+de\s+dinars|millions?\s+de\s+dinars|mille\s+dinars|milliards?\s+(?:de\s+)?(?:dollars|USD)|millions?\s+(?:de\s+)?(?:dollars|USD)|billion\s+(?:USD|dollars)|million\s+(?:USD|dollars)|millions?\s+d['’]euros|MDT|MD|TND|DT|dinars?|USD|EUR|euros?|jours\s+d['’]importations?|days\s+of\s+imports|points?)\b`
	hspace        = `[ \t\x{00A0}\x{202F}]*`
	monthPattern  = `janvier|f[eé]vrier|mars|avril|mai|juin|juillet|ao[uû]t|septembre|octobre|novembre|d[eé]cembre|january|february|march|april|may|june|july|august|september|october|november|december`
	// datePattern matches the reference dates publishers put between a
	// label and its figure: 31/12/2023, 30.09.2023, 15 mars 2024, T3 2023.
	datePattern = `\d{1,2}[/.\-]\d{1,2}[/.\-](?:19|20)\d{2}|\d{1,2}(?:er)?\s+(?:` + monthPattern + `)\s+(?:19|20)\d{2}|[TQ][1-4]\s*(?:19|20)\d{2}`
	// gap allows an optional date or year between the name and the value.
	gap = `(?:[^\d\n]{0,30}?(?:(?P<date>` + datePattern + `)|(?P<year>(?:19|20)\d{2})))?[^\d\n]{0,30}?`
)

func keywordTemplate(name string, cat model.Category, specificity float64, unit, keywords string) template {
	expr := `(?i)(?P<name>` + keywords + `)` + gap + `(?P<value>` + NumberPattern + `)` + hspace + `(?P<unit>` + UnitPattern + `)?`
	return template{name: name, category: cat, specificity: specificity, defaultUnit: unit, re: regexp.MustCompile(expr)}
}

var templates = []template{
	keywordTemplate("policy_rate", model.CategoryMonetary, 0.8, "%",
		`taux\s+directeur|taux\s+d['’]int[eé]r[eê]t\s+directeur|policy\s+rate|key\s+(?:interest\s+)?rate|taux\s+de\s+r[eé]f[eé]rence`),
	keywordTemplate("money_market", model.CategoryMonetary, 0.8, "%",
		`taux\s+moyen\s+du\s+march[eé]\s+mon[eé]taire|\bTMM\b|money\s+market\s+rate|taux\s+interbancaire`),
	keywordTemplate("inflation", model.CategoryInflation, 0.75, "%",
		`taux\s+d['’]inflation|glissement\s+annuel\s+des\s+prix|inflation(?:\s+rate)?`),
	keywordTemplate("unemployment", model.CategoryEmployment, 0.75, "%",
		`taux\s+de\s+ch[oô]mage|ch[oô]mage|unemployment(?:\s+rate)?`),
	keywordTemplate("gdp_growth", model.CategoryGrowth, 0.75, "%",
		`taux\s+de\s+croissance(?:\s+du\s+PIB)?|croissance(?:\s+[eé]conomique|\s+du\s+PIB)?|(?:real\s+)?GDP\s+growth(?:\s+rate)?|economic\s+growth`),
	keywordTemplate("exchange", model.CategoryExchangeRate, 0.7, "TND",
		`taux\s+de\s+change|exchange\s+rate|(?:EUR|USD)\s*/\s*TND`),
	keywordTemplate("reserves", model.CategoryReserves, 0.7, "",
		`avoirs\s+nets\s+en\s+devises|r[eé]serves\s+(?:de\s+change|en\s+devises|internationales)|(?:foreign\s+exchange|international|foreign)\s+reserves`),
	keywordTemplate("public_finance", model.CategoryPublicFinance, 0.7, "",
		`dette\s+publique|d[eé]ficit\s+budg[eé]taire|public\s+debt|budget\s+deficit|fiscal\s+deficit|recettes\s+fiscales`),
	keywordTemplate("trade", model.CategoryExternalTrade, 0.65, "",
		`d[eé]ficit\s+commercial|balance\s+commerciale|solde\s+courant|current\s+account(?:\s+balance)?|trade\s+(?:deficit|balance)|exportations|importations|exports|imports`),
	keywordTemplate("gdp", model.CategoryNationalAccounts, 0.7, "",
		`produit\s+int[eé]rieur\s+brut|\bPIB\b|\bGDP\b`),
	keywordTemplate("prices", model.CategoryPrices, 0.65, "index",
		`indice\s+des\s+prix(?:\s+[àa]\s+la\s+consommation)?|consumer\s+price\s+index|\bIPC\b|\bCPI\b`),
	{
		name: "table_row", category: model.CategoryOther, specificity: 0.5,
		re: regexp.MustCompile(`(?im)^(?P<name>[^|\n\d]{3,80}?)\s*\|\s*(?:(?P<year>(?:19|20)\d{2})\s*\|\s*)?(?P<value>` + NumberPattern + `)` + hspace + `(?P<unit>` + UnitPattern + `)?\s*(?:\||$)`),
	},
	{
		name: "label", category: model.CategoryOther, specificity: 0.45,
		re: regexp.MustCompile(`(?im)^[ \t]*(?P<name>\p{L}[^:=\n\d|]{2,60}?)\s*(?:\((?P<year>(?:19|20)\d{2})\)\s*)?[:=]\s*(?P<value>` + NumberPattern + `)` + hspace + `(?P<unit>` + UnitPattern + `)?`),
	},
}

// categoryKeywords maps folded keywords to categories. Order matters: more
// specific phrases come first so "croissance du pib" is growth, not
// national accounts.
var categoryKeywords = []struct {
	category model.Category
	keywords []string
}{
	{model.CategoryGrowth, []string{"taux de croissance", "croissance", "growth"}},
	{model.CategoryInflation, []string{"inflation", "glissement annuel"}},
	{model.CategoryEmployment, []string{"chomage", "unemployment", "population active", "emploi", "employment", "labor force", "labour force"}},
	{model.CategoryExchangeRate, []string{"taux de change", "exchange rate", "eur/tnd", "usd/tnd", "official exchange"}},
	{model.CategoryMonetary, []string{"taux directeur", "policy rate", "key rate", "key interest rate", "tmm", "marche monetaire", "money market", "taux d'interet", "interest rate", "taux interbancaire", "taux de reference", "masse monetaire", "money supply", "lending rate"}},
	{model.CategoryReserves, []string{"avoirs nets en devises", "avoirs en devises", "reserves", "total reserves"}},
	{model.CategoryPublicFinance, []string{"dette publique", "public debt", "government debt", "deficit budgetaire", "budget deficit", "fiscal", "recettes fiscales", "budget"}},
	{model.CategoryExternalTrade, []string{"deficit commercial", "balance commerciale", "solde courant", "current account", "balance des paiements", "exportation", "importation", "exports", "imports", "trade"}},
	{model.CategoryPrices, []string{"indice des prix", "ipc", "cpi", "consumer price", "prix"}},
	{model.CategoryNationalAccounts, []string{"produit interieur brut", "pib", "gdp", "valeur ajoutee", "investissement", "epargne", "gross domestic", "gni", "revenu national"}},
}

// Classify maps an indicator name to a category using the keyword table.
func Classify(name string) model.Category {
	folded := Fold(name)
	if folded == "" {
		return model.CategoryOther
	}
	for _, row := range categoryKeywords {
		for _, kw := range row.keywords {
			if containsWord(folded, kw) {
				return row.category
			}
		}
	}
	return model.CategoryOther
}

// CanonicalUnit maps a matched unit token to the unit vocabulary. Unknown
// tokens map to "".
func CanonicalUnit(tok string) string {
	f := Fold(tok)
	switch {
	case f == "":
		return ""
	case f == "%" || strings.HasPrefix(f, "pour") || f == "percent" || f == "per cent":
		return "%"
	case strings.Contains(f, "de base") || f == "bps":
		return "bps"
	case strings.HasPrefix(f, "milliard") && strings.Contains(f, "dinar"):
		return "BTND"
	case strings.HasPrefix(f, "million") && strings.Contains(f, "dinar"), f == "mdt", f == "md":
		return "MTND"
	case f == "mille dinars":
		return "KTND"
	case f == "tnd", f == "dt", strings.HasPrefix(f, "dinar"):
		return "TND"
	case (strings.HasPrefix(f, "milliard") || strings.HasPrefix(f, "billion")) && (strings.Contains(f, "dollar") || strings.Contains(f, "usd")):
		return "BUSD"
	case strings.HasPrefix(f, "million") && (strings.Contains(f, "dollar") || strings.Contains(f, "usd")):
		return "MUSD"
	case strings.HasPrefix(f, "million") && strings.Contains(f, "euro"):
		return "MEUR"
	case f == "usd", f == "us$", f == "$":
		return "USD"
	case f == "eur", f == "€", strings.HasPrefix(f, "euro"):
		return "EUR"
	case strings.HasPrefix(f, "jours") || strings.HasPrefix(f, "days"):
		return "days"
	case strings.HasPrefix(f, "point"):
		return "points"
	}
	return ""
}

// Units is the recognized unit vocabulary. The empty unit is accepted for
// counts and ratios published without one.
var Units = []string{"", "%", "bps", "BTND", "MTND", "KTND", "TND", "BUSD", "MUSD", "USD", "EUR", "MEUR", "days", "points", "index", "persons"}

var noiseMonths = []string{
	"janvier", "fevrier", "mars", "avril", "mai", "juin", "juillet", "aout", "septembre", "octobre", "novembre", "decembre",
	"january", "february", "march", "april", "may", "june", "july", "august", "september", "october", "november", "december",
}

var noiseDays = []string{
	"lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi", "dimanche",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// isCalendarWord reports whether folded text is, or starts with, a month or
// day name.
func isCalendarWord(folded string) bool {
	folded = strings.TrimSpace(folded)
	for _, list := range [][]string{noiseMonths, noiseDays} {
		for _, w := range list {
			if folded == w || strings.HasPrefix(folded, w+" ") {
				return true
			}
		}
	}
	return false
}

var pageMarkerBefore = regexp.MustCompile(`(?i)(?:\bpage|\bp\.|\bn°|\bno\.|\bnum[eé]ro|\bart\.|\barticle|\bchapitre|\bsection)\s*$`)
