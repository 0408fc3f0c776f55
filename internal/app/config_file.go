package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/goindicator/internal/timeouts"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`
	Report string `yaml:"report" json:"report"`
	PDF    string `yaml:"pdf" json:"pdf"`
	DB     string `yaml:"db" json:"db"`

	LLM struct {
		BaseURL string        `yaml:"base" json:"base"`
		Model   string        `yaml:"model" json:"model"`
		APIKey  string        `yaml:"key" json:"key"`
		Timeout time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"llm" json:"llm"`

	Scrape struct {
		Workers          int           `yaml:"workers" json:"workers"`
		QualityThreshold float64       `yaml:"qualityThreshold" json:"qualityThreshold"`
		EnableModel      bool          `yaml:"enableModel" json:"enableModel"`
		Headless         bool          `yaml:"headless" json:"headless"`
		UserAgent        string        `yaml:"userAgent" json:"userAgent"`
		FetchTimeout     time.Duration `yaml:"fetchTimeout" json:"fetchTimeout"`
		FetchAttempts    int           `yaml:"fetchAttempts" json:"fetchAttempts"`
		MaxConcurrent    int           `yaml:"maxConcurrent" json:"maxConcurrent"`
	} `yaml:"scrape" json:"scrape"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Verbose bool `yaml:"verbose" json:"verbose"`

	Tables Tables `yaml:"tables" json:"tables"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc into cfg for fields that are unset
// or still at their flag default, so explicit flags win.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if cfg.InputPath == "" && fc.Input != "" {
		cfg.InputPath = fc.Input
	}
	if (cfg.OutputPath == "" || cfg.OutputPath == DefaultOutputPath) && fc.Output != "" {
		cfg.OutputPath = fc.Output
	}
	if cfg.ReportPath == "" && fc.Report != "" {
		cfg.ReportPath = fc.Report
	}
	if cfg.PDFPath == "" && fc.PDF != "" {
		cfg.PDFPath = fc.PDF
	}
	if cfg.DBPath == "" && fc.DB != "" {
		cfg.DBPath = fc.DB
	}

	if cfg.LLMBaseURL == "" && fc.LLM.BaseURL != "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if cfg.LLMModel == "" && fc.LLM.Model != "" {
		cfg.LLMModel = fc.LLM.Model
	}
	if cfg.LLMAPIKey == "" && fc.LLM.APIKey != "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}
	if cfg.LLMTimeout == 0 && fc.LLM.Timeout > 0 {
		cfg.LLMTimeout = fc.LLM.Timeout
	}

	s := fc.Scrape
	if (cfg.Workers == 0 || cfg.Workers == DefaultWorkers) && s.Workers > 0 {
		cfg.Workers = s.Workers
	}
	if cfg.QualityThreshold == 0 && s.QualityThreshold > 0 {
		cfg.QualityThreshold = s.QualityThreshold
	}
	if !cfg.EnableModel && s.EnableModel {
		cfg.EnableModel = true
	}
	if !cfg.Headless && s.Headless {
		cfg.Headless = true
	}
	if cfg.UserAgent == "" && s.UserAgent != "" {
		cfg.UserAgent = s.UserAgent
	}
	if (cfg.FetchTimeout == 0 || cfg.FetchTimeout == DefaultFetchTimeout) && s.FetchTimeout > 0 {
		cfg.FetchTimeout = s.FetchTimeout
	}
	if (cfg.FetchAttempts == 0 || cfg.FetchAttempts == DefaultFetchAttempts) && s.FetchAttempts > 0 {
		cfg.FetchAttempts = s.FetchAttempts
	}
	if cfg.MaxConcurrent == 0 && s.MaxConcurrent > 0 {
		cfg.MaxConcurrent = s.MaxConcurrent
	}

	if (cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}

	t := fc.Tables
	if cfg.Tables.StructuredHosts == nil && t.StructuredHosts != nil {
		cfg.Tables.StructuredHosts = append([]string{}, t.StructuredHosts...)
	}
	if cfg.Tables.ComplexGovernmentHosts == nil && t.ComplexGovernmentHosts != nil {
		cfg.Tables.ComplexGovernmentHosts = append([]string{}, t.ComplexGovernmentHosts...)
	}
	if cfg.Tables.Timeouts == nil && t.Timeouts != nil {
		tt := timeouts.Table{Entries: append([]timeouts.Entry{}, t.Timeouts.Entries...), DefaultSeconds: t.Timeouts.DefaultSeconds}
		cfg.Tables.Timeouts = &tt
	}
	if cfg.Tables.PermissiveDomains == nil && t.PermissiveDomains != nil {
		cfg.Tables.PermissiveDomains = append([]string{}, t.PermissiveDomains...)
	}
	if cfg.Tables.GovernmentPermissive == nil && t.GovernmentPermissive != nil {
		v := *t.GovernmentPermissive
		cfg.Tables.GovernmentPermissive = &v
	}
	if cfg.Tables.Units == nil && t.Units != nil {
		cfg.Tables.Units = append([]string{}, t.Units...)
	}
}

// ValidateConfig performs minimal schema validation for required settings.
// LLM settings are only required when the model pass is enabled.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.OutputPath) == "" {
		return errors.New("config: output path is required")
	}
	if cfg.EnableModel && strings.TrimSpace(cfg.LLMModel) == "" {
		return errors.New("config: llm.model is required when the model pass is enabled (or set LLM_MODEL)")
	}
	if cfg.Workers < 0 || cfg.FetchAttempts < 0 || cfg.MaxConcurrent < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if cfg.QualityThreshold < 0 || cfg.QualityThreshold > 1 {
		return fmt.Errorf("config: quality threshold %v outside [0, 1]", cfg.QualityThreshold)
	}
	if t := cfg.Tables.Timeouts; t != nil {
		if _, err := timeouts.New(*t); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}
