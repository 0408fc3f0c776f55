package model

// Category classifies an extracted indicator.
type Category string

const (
	CategoryInflation        Category = "inflation"
	CategoryGrowth           Category = "growth"
	CategoryEmployment       Category = "employment"
	CategoryMonetary         Category = "monetary" // policy, money-market and lending rates
	CategoryNationalAccounts Category = "national_accounts"
	CategoryExternalTrade    Category = "external_trade"
	CategoryExchangeRate     Category = "exchange_rate"
	CategoryReserves         Category = "reserves"
	CategoryPublicFinance    Category = "public_finance"
	CategoryPrices           Category = "prices"
	CategoryOther            Category = "other"
)

// Method records which extraction path produced a candidate.
type Method string

const (
	MethodPattern            Method = "pattern"
	MethodContextAware       Method = "context-aware"
	MethodExternalStructured Method = "external-structured"
)

// Period types for Temporal.PeriodType.
const (
	PeriodAnnual    = "annual"
	PeriodQuarterly = "quarterly"
	PeriodMonthly   = "monthly"
	PeriodDaily     = "daily"
)

// Temporal carries the reference period of a value.
type Temporal struct {
	Year          int    `json:"year,omitempty"`
	PeriodType    string `json:"period_type,omitempty"`
	ReferenceDate string `json:"reference_date,omitempty"`
}

// Candidate is a single (indicator, value) extraction. It is a value type:
// stages that change a candidate work on their own copy.
type Candidate struct {
	Value                float64  `json:"value"`
	HasValue             bool     `json:"has_value"`
	RawText              string   `json:"raw_text"`
	IndicatorName        string   `json:"indicator_name"`
	Category             Category `json:"category"`
	Unit                 string   `json:"unit"`
	ContextText          string   `json:"context_text,omitempty"`
	Method               Method   `json:"extraction_method"`
	Confidence           float64  `json:"confidence_score"`
	SourceDomain         string   `json:"source_domain"`
	Temporal             Temporal `json:"temporal_metadata"`
	Validated            bool     `json:"validated"`
	GovernmentPermissive bool     `json:"government_permissive"`
	Institution          string   `json:"institution,omitempty"`
	Provenance           []string `json:"provenance,omitempty"`
}

// WithProvenance returns a copy of c with tag appended to its provenance.
func (c Candidate) WithProvenance(tag string) Candidate {
	p := make([]string, 0, len(c.Provenance)+1)
	p = append(p, c.Provenance...)
	c.Provenance = append(p, tag)
	return c
}

// PercentBound reports whether values of this category expressed in percent
// are bounded, and the inclusive bound.
func (c Category) PercentBound() (lo, hi float64, ok bool) {
	switch c {
	case CategoryInflation:
		return -20, 100, true
	case CategoryEmployment, CategoryMonetary:
		return 0, 100, true
	case CategoryGrowth:
		return -30, 30, true
	case CategoryPublicFinance, CategoryExternalTrade, CategoryNationalAccounts:
		return -100, 200, true
	}
	return 0, 0, false
}

// AbsoluteBound is the magnitude range accepted for values parsed from free
// text. Aggregates expressed in currency may be far larger than the generic bound.
func (c Category) AbsoluteBound() (lo, hi float64) {
	switch c {
	case CategoryNationalAccounts, CategoryPublicFinance, CategoryExternalTrade, CategoryReserves:
		return 0.01, 1e13
	}
	return 0.01, 1e7
}
