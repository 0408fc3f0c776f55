package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperifyio/goindicator/internal/model"
)

// RunInfo records the settings a batch ran with.
type RunInfo struct {
	Model       string    `json:"model,omitempty"`
	LLMBaseURL  string    `json:"llm_base_url,omitempty"`
	EnableModel bool      `json:"enable_model"`
	Headless    bool      `json:"headless"`
	HTTPCache   bool      `json:"http_cache"`
	LLMCache    bool      `json:"llm_cache"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ManifestEntry is the digest of the content one URL was extracted from.
type ManifestEntry struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Status string `json:"status"`
	SHA256 string `json:"sha256,omitempty"`
	Chars  int    `json:"chars"`
	Valid  int    `json:"valid"`
}

// BuildManifest lists every URL of b in input order. URLs without an
// outcome carry no digest.
func BuildManifest(b model.BatchResult) []ManifestEntry {
	out := make([]ManifestEntry, 0, len(b.Results))
	for i, r := range b.Results {
		e := ManifestEntry{Index: i + 1, URL: strings.TrimSpace(r.URL), Status: r.Status}
		if o := r.Outcome; o != nil && o.RawContent != "" {
			e.SHA256 = sha256Hex(o.RawContent)
			e.Chars = len([]rune(o.RawContent))
			e.Valid = len(o.ExtractedValues)
		}
		out = append(out, e)
	}
	return out
}

func sha256Hex(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// AppendManifest appends the manifest section and a one-line
// reproducibility footer to markdown.
func AppendManifest(markdown string, info RunInfo, entries []ManifestEntry) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(markdown, "\n"))
	b.WriteString("\n\n## Manifest\n\n")
	fmt.Fprintf(&b, "- Generated: %s\n", info.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- URLs: %d\n\n", len(entries))
	for _, e := range entries {
		b.WriteString(strconv.Itoa(e.Index) + ". " + e.URL)
		if e.SHA256 != "" {
			fmt.Fprintf(&b, " sha256=%s; chars=%d", e.SHA256, e.Chars)
		} else {
			b.WriteString(" (no content)")
		}
		b.WriteString("\n")
	}
	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "Reproducibility: version=%s; model_enabled=%t; model=%s; llm_base_url=%s; headless=%t; http_cache=%t; llm_cache=%t\n",
		info.Version, info.EnableModel, strings.TrimSpace(info.Model), strings.TrimSpace(info.LLMBaseURL), info.Headless, info.HTTPCache, info.LLMCache)
	return b.String()
}

// MarshalManifest encodes the machine-readable sidecar.
func MarshalManifest(info RunInfo, entries []ManifestEntry) ([]byte, error) {
	payload := struct {
		Meta RunInfo         `json:"meta"`
		URLs []ManifestEntry `json:"urls"`
	}{Meta: info, URLs: entries}
	return json.MarshalIndent(payload, "", "  ")
}

// SidecarPath returns the manifest path next to a report.
func SidecarPath(reportPath string) string {
	return reportPath + ".manifest.json"
}
