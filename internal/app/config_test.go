package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
input: urls.txt
output: out.json
db: outcomes.db
llm:
  base: http://localhost:11434/v1
  model: tiny
  timeout: 20s
scrape:
  workers: 8
  qualityThreshold: 0.7
  enableModel: true
cache:
  dir: /tmp/gi
  maxAge: 24h
tables:
  permissiveDomains: [ins.tn]
  governmentPermissive: false
  timeouts:
    default: 25
    entries:
      - pattern: ins.tn
        seconds: 90
`

func TestLoadConfigFile_YAMLAndApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goindicator.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := Config{OutputPath: DefaultOutputPath, Workers: DefaultWorkers, CacheDir: DefaultCacheDir, LLMModel: "from-flag"}
	ApplyFileConfig(&cfg, fc)

	if cfg.InputPath != "urls.txt" || cfg.OutputPath != "out.json" || cfg.DBPath != "outcomes.db" {
		t.Fatalf("paths not applied: %+v", cfg)
	}
	if cfg.LLMModel != "from-flag" {
		t.Fatalf("flag value overwritten: %q", cfg.LLMModel)
	}
	if cfg.LLMTimeout != 20*time.Second || cfg.CacheMaxAge != 24*time.Hour {
		t.Fatalf("durations not applied: %v %v", cfg.LLMTimeout, cfg.CacheMaxAge)
	}
	if cfg.Workers != 8 || cfg.QualityThreshold != 0.7 || !cfg.EnableModel || cfg.CacheDir != "/tmp/gi" {
		t.Fatalf("scrape settings not applied: %+v", cfg)
	}
	tb := cfg.Tables
	if tb.GovernmentPermissive == nil || *tb.GovernmentPermissive {
		t.Fatalf("governmentPermissive not applied")
	}
	if tb.Timeouts == nil || tb.Timeouts.DefaultSeconds != 25 || len(tb.Timeouts.Entries) != 1 || tb.Timeouts.Entries[0].Seconds != 90 {
		t.Fatalf("timeouts not applied: %+v", tb.Timeouts)
	}
	if len(tb.PermissiveDomains) != 1 || tb.PermissiveDomains[0] != "ins.tn" {
		t.Fatalf("permissive domains not applied: %v", tb.PermissiveDomains)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadConfigFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goindicator.json")
	if err := os.WriteFile(path, []byte(`{"output":"o.json","scrape":{"headless":true}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	fc, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.Output != "o.json" || !fc.Scrape.Headless {
		t.Fatalf("unexpected %+v", fc)
	}
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("scrape: [unclosed"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing output", Config{}, "output path"},
		{"model without name", Config{OutputPath: "o.json", EnableModel: true}, "llm.model"},
		{"threshold", Config{OutputPath: "o.json", QualityThreshold: 1.5}, "quality threshold"},
		{"negative", Config{OutputPath: "o.json", Workers: -1}, "negative"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("got %v, want error containing %q", err, tc.want)
			}
		})
	}
	if err := ValidateConfig(Config{OutputPath: "o.json"}); err != nil {
		t.Fatalf("minimal config rejected: %v", err)
	}
}

func TestValidationConfig_TableOverrides(t *testing.T) {
	off := false
	vc := validationConfig(Tables{GovernmentPermissive: &off, PermissiveDomains: []string{"x.tn"}, Units: []string{"%"}})
	if vc.Clean.GovernmentPermissive || vc.Temporal.GovernmentPermissive || vc.Strict.HonorPermissive {
		t.Fatalf("permissive flag not switched off: %+v", vc)
	}
	if len(vc.Temporal.PermissiveDomains) != 1 || vc.Temporal.PermissiveDomains[0] != "x.tn" {
		t.Fatalf("domains not applied: %v", vc.Temporal.PermissiveDomains)
	}
	if len(vc.Strict.Units) != 1 {
		t.Fatalf("units not applied: %v", vc.Strict.Units)
	}
	if def := validationConfig(Tables{}); !def.Temporal.GovernmentPermissive || !def.Temporal.CurrentYearFallback {
		t.Fatalf("defaults changed: %+v", def)
	}
}

func TestReadURLs(t *testing.T) {
	got, err := ReadURLs(strings.NewReader("# list\nhttps://a.tn/x\n\n  https://b.tn/y  \nhttps://a.tn/x\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0] != "https://a.tn/x" || got[1] != "https://b.tn/y" {
		t.Fatalf("unexpected %v", got)
	}
}
