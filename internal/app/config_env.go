package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, key string) {
		if *dst == "" {
			*dst = os.Getenv(key)
		}
	}
	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY")
	setString(&cfg.CacheDir, "CACHE_DIR")
	setString(&cfg.DBPath, "DB_PATH")

	if cfg.Workers == 0 {
		if n, ok := envInt("WORKERS"); ok {
			cfg.Workers = n
		}
	}
	if cfg.QualityThreshold == 0 {
		if f, ok := envFloat("QUALITY_THRESHOLD"); ok {
			cfg.QualityThreshold = f
		}
	}
	if cfg.LLMTimeout == 0 {
		if d, ok := envDuration("LLM_TIMEOUT"); ok {
			cfg.LLMTimeout = d
		}
	}
	if cfg.CacheMaxAge == 0 {
		if d, ok := envDuration("CACHE_MAX_AGE"); ok {
			cfg.CacheMaxAge = d
		}
	}

	setBool := func(dst *bool, key string) {
		if *dst {
			return
		}
		if v, ok := envBool(key); ok && v {
			*dst = true
		}
	}
	setBool(&cfg.EnableModel, "ENABLE_MODEL")
	setBool(&cfg.Headless, "HEADLESS")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
}

// ApplyEnvOverrides forcefully overrides cfg fields with environment
// variables that are set. It lets env take precedence over a config file
// while flags, applied afterwards by the caller, stay highest.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.LLMBaseURL, "LLM_BASE_URL")
	setString(&cfg.LLMModel, "LLM_MODEL")
	setString(&cfg.LLMAPIKey, "LLM_API_KEY")
	setString(&cfg.CacheDir, "CACHE_DIR")
	setString(&cfg.DBPath, "DB_PATH")

	if n, ok := envInt("WORKERS"); ok {
		cfg.Workers = n
	}
	if f, ok := envFloat("QUALITY_THRESHOLD"); ok {
		cfg.QualityThreshold = f
	}
	if d, ok := envDuration("LLM_TIMEOUT"); ok {
		cfg.LLMTimeout = d
	}
	if d, ok := envDuration("CACHE_MAX_AGE"); ok {
		cfg.CacheMaxAge = d
	}

	setBool := func(dst *bool, key string) {
		if v, ok := envBool(key); ok {
			*dst = v
		}
	}
	setBool(&cfg.EnableModel, "ENABLE_MODEL")
	setBool(&cfg.Headless, "HEADLESS")
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
}

func envInt(key string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	return n, err == nil && n > 0
}

func envFloat(key string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	return f, err == nil && f > 0
}

func envDuration(key string) (time.Duration, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	// Bare numbers are seconds.
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}

// envBool reports the value of a boolean env var and whether it was set to
// a recognized value.
func envBool(key string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
