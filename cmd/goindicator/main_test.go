package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperifyio/goindicator/internal/app"
	"github.com/hyperifyio/goindicator/internal/model"
)

const page = `<html><body><main>
<p>Le taux d'inflation s'est établi à 7,1 % en 2023.</p>
<table><tr><td>Taux directeur</td><td>2023</td><td>8,00 %</td></tr></table>
</main></body></html>`

// Smoke test: run writes the JSON result and the Markdown report.
func TestRun_WritesOutputs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	dir := t.TempDir()
	in := filepath.Join(dir, "urls.txt")
	if err := os.WriteFile(in, []byte("# sources\n"+srv.URL+"/stats\n"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	cfg := app.Config{
		InputPath:  in,
		OutputPath: filepath.Join(dir, "out.json"),
		ReportPath: filepath.Join(dir, "report.md"),
		CacheDir:   filepath.Join(dir, "cache"),
	}
	if err := run(context.Background(), cfg, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := os.ReadFile(cfg.OutputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var res model.BatchResult
	if err := json.Unmarshal(b, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Status != model.StatusOK {
		t.Fatalf("unexpected result %+v", res)
	}
	md, err := os.ReadFile(cfg.ReportPath)
	if err != nil || !strings.Contains(string(md), srv.URL+"/stats") {
		t.Fatalf("report missing url, err=%v", err)
	}
	if !strings.Contains(string(md), "## Manifest") {
		t.Fatalf("report missing manifest")
	}
	if _, err := os.Stat(cfg.ReportPath + ".manifest.json"); err != nil {
		t.Fatalf("manifest sidecar: %v", err)
	}
}

func TestRun_NoURLs(t *testing.T) {
	if err := run(context.Background(), app.Config{OutputPath: "unused.json"}, nil); err == nil {
		t.Fatalf("expected error without urls")
	}
}

func TestExitCode(t *testing.T) {
	cases := map[error]int{
		nil:              0,
		app.ErrNoResults: 2,
		context.Canceled: 130,
		errors.New("x"):  1,
	}
	for err, want := range cases {
		if got := exitCode(err); got != want {
			t.Errorf("exitCode(%v) = %d, want %d", err, got, want)
		}
	}
}
