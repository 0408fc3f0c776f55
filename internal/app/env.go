package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// envPair is one assignment read from a dotenv file.
type envPair struct {
	key, val string
}

// LoadEnvFiles loads dotenv files into the process environment, in order, so
// later files override earlier ones. Missing files are skipped. Malformed
// lines are logged with their position and ignored.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pairs, err := readEnvFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		for _, kv := range pairs {
			if err := os.Setenv(kv.key, kv.val); err != nil {
				return fmt.Errorf("%s: set %s: %w", p, kv.key, err)
			}
		}
		log.Debug().Str("file", p).Int("keys", len(pairs)).Msg("env file loaded")
	}
	return nil
}

func readEnvFile(path string) ([]envPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseEnv(f, path)
}

// parseEnv reads KEY=VALUE lines. An optional "export " prefix is allowed.
// Single-quoted values are literal, double-quoted values accept Go escapes,
// and unquoted values end at a " #" comment. Nothing is expanded.
func parseEnv(r io.Reader, name string) ([]envPair, error) {
	var out []envPair
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, raw, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || !validEnvKey(key) {
			log.Warn().Str("file", name).Int("line", n).Msg("skipping malformed env line")
			continue
		}
		val, err := envValue(strings.TrimSpace(raw))
		if err != nil {
			log.Warn().Err(err).Str("file", name).Int("line", n).Str("key", key).Msg("skipping env value")
			continue
		}
		out = append(out, envPair{key, val})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

func envValue(raw string) (string, error) {
	switch {
	case len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'':
		return raw[1 : len(raw)-1], nil
	case len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"':
		return strconv.Unquote(raw)
	}
	if i := strings.Index(raw, " #"); i >= 0 {
		raw = strings.TrimSpace(raw[:i])
	}
	return raw, nil
}

func validEnvKey(k string) bool {
	if k == "" || (k[0] >= '0' && k[0] <= '9') {
		return false
	}
	for _, r := range k {
		if r != '_' && (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
