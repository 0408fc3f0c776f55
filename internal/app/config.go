package app

import (
	"time"

	"github.com/hyperifyio/goindicator/internal/timeouts"
)

// Config holds runtime configuration for the application.
type Config struct {
	InputPath  string
	OutputPath string
	ReportPath string
	PDFPath    string
	DBPath     string

	// LLM
	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string
	LLMTimeout time.Duration

	// Scraping
	Workers          int
	QualityThreshold float64
	EnableModel      bool
	Headless         bool
	UserAgent        string
	FetchTimeout     time.Duration
	FetchAttempts    int
	MaxConcurrent    int

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	// Behavior
	Verbose      bool
	PrintMetrics bool

	Tables Tables
}

// Tables overrides the built-in component tables. Nil fields keep the
// defaults.
type Tables struct {
	StructuredHosts        []string        `yaml:"structuredHosts" json:"structuredHosts"`
	ComplexGovernmentHosts []string        `yaml:"complexGovernmentHosts" json:"complexGovernmentHosts"`
	Timeouts               *timeouts.Table `yaml:"timeouts" json:"timeouts"`
	PermissiveDomains      []string        `yaml:"permissiveDomains" json:"permissiveDomains"`
	// GovernmentPermissive switches the permissive bypass in every
	// validation stage. Nil keeps it on.
	GovernmentPermissive *bool    `yaml:"governmentPermissive" json:"governmentPermissive"`
	Units                []string `yaml:"units" json:"units"`
}

// Defaults used by flags and by ApplyFileConfig to detect unset values.
const (
	DefaultWorkers       = 4
	DefaultCacheDir      = ".goindicator-cache"
	DefaultFetchTimeout  = 30 * time.Second
	DefaultFetchAttempts = 2
	DefaultOutputPath    = "outcomes.json"
)
