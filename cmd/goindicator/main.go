package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/goindicator/internal/app"
	"github.com/hyperifyio/goindicator/internal/report"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := app.LoadEnvFiles(".env"); err != nil {
		log.Warn().Err(err).Msg("load .env")
	}

	var (
		cfg        app.Config
		configPath string
		permissive string
	)
	flag.StringVar(&configPath, "config", os.Getenv("GOINDICATOR_CONFIG"), "Path to a YAML or JSON config file")
	flag.StringVar(&cfg.InputPath, "input", "", "File with one URL per line ('-' for stdin); positional URLs are also accepted")
	flag.StringVar(&cfg.OutputPath, "output", app.DefaultOutputPath, "Path to write the batch result as JSON ('-' for stdout)")
	flag.StringVar(&cfg.ReportPath, "report", "", "Optional path for a Markdown report")
	flag.StringVar(&cfg.PDFPath, "pdf", "", "Optional path for a PDF report")
	flag.StringVar(&cfg.DBPath, "db", "", "Optional SQLite database to persist outcomes")
	flag.StringVar(&cfg.LLMBaseURL, "llm.base", "", "OpenAI-compatible base URL")
	flag.StringVar(&cfg.LLMModel, "llm.model", "", "Model name for enrichment")
	flag.StringVar(&cfg.LLMAPIKey, "llm.key", "", "API key for the OpenAI-compatible server")
	flag.DurationVar(&cfg.LLMTimeout, "llm.timeout", 0, "Timeout for one enrichment call (default 30s)")
	flag.BoolVar(&cfg.EnableModel, "model", false, "Enable model enrichment for context-aware extraction")
	flag.IntVar(&cfg.Workers, "workers", app.DefaultWorkers, "Number of URLs scraped in parallel")
	flag.Float64Var(&cfg.QualityThreshold, "quality", 0, "Minimum candidate confidence (default 0.6)")
	flag.BoolVar(&cfg.Headless, "headless", false, "Render context-aware targets in headless Chrome")
	flag.StringVar(&cfg.UserAgent, "ua", "", "User-Agent for page fetches")
	flag.DurationVar(&cfg.FetchTimeout, "fetch.timeout", app.DefaultFetchTimeout, "Upper bound for one HTTP request")
	flag.IntVar(&cfg.FetchAttempts, "fetch.attempts", app.DefaultFetchAttempts, "HTTP attempts per fetch, including the first")
	flag.IntVar(&cfg.MaxConcurrent, "fetch.maxConcurrent", 0, "Maximum in-flight HTTP requests (0 = unlimited)")
	flag.StringVar(&cfg.CacheDir, "cache.dir", app.DefaultCacheDir, "Cache directory path (empty disables caching)")
	flag.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	flag.BoolVar(&cfg.CacheClear, "cache.clear", false, "Clear cache directory before run")
	flag.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	flag.StringVar(&permissive, "permissive", "", "Comma-separated domains exempt from strict year and noise checks")
	flag.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")
	flag.BoolVar(&cfg.PrintMetrics, "metrics", false, "Print pipeline metrics to stderr after the run")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("goindicator %s (%s, %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		return
	}
	if s := strings.TrimSpace(permissive); s != "" {
		for _, p := range strings.Split(s, ",") {
			if v := strings.TrimSpace(p); v != "" {
				cfg.Tables.PermissiveDomains = append(cfg.Tables.PermissiveDomains, v)
			}
		}
	}
	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("load config")
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvToConfig(&cfg)

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(exitCode(run(ctx, cfg, flag.Args())))
}

// exitCode maps run errors to the process exit status: 2 when no URL
// produced a valid indicator, 130 on interrupt, 1 otherwise.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrNoResults):
		log.Error().Err(err).Msg("run finished without results")
		return 2
	case errors.Is(err, context.Canceled):
		log.Warn().Msg("run interrupted")
		return 130
	}
	log.Error().Err(err).Msg("run failed")
	return 1
}

func run(ctx context.Context, cfg app.Config, args []string) error {
	urls := append([]string(nil), args...)
	if cfg.InputPath != "" {
		fromFile, err := app.ReadURLFile(cfg.InputPath)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return errors.New("no urls: pass -input or URLs as arguments")
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()

	res, runErr := a.RunBatch(ctx, urls, app.BatchOptions{Progress: func(done, total int) {
		log.Debug().Int("done", done).Int("total", total).Msg("progress")
	}})
	if res == nil {
		return runErr
	}

	if err := writeJSON(cfg.OutputPath, res); err != nil {
		return err
	}
	if cfg.ReportPath != "" || cfg.PDFPath != "" {
		info, entries := a.RunInfo(), report.BuildManifest(*res)
		md := report.AppendManifest(report.Markdown(*res), info, entries)
		if cfg.ReportPath != "" {
			if err := os.WriteFile(cfg.ReportPath, []byte(md), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			sidecar, err := report.MarshalManifest(info, entries)
			if err != nil {
				return fmt.Errorf("encode manifest: %w", err)
			}
			if err := os.WriteFile(report.SidecarPath(cfg.ReportPath), sidecar, 0o644); err != nil {
				return fmt.Errorf("write manifest: %w", err)
			}
			log.Info().Str("out", cfg.ReportPath).Msg("wrote markdown report")
		}
		if cfg.PDFPath != "" {
			if err := report.WritePDF(md, cfg.PDFPath); err != nil {
				return fmt.Errorf("write pdf: %w", err)
			}
			log.Info().Str("out", cfg.PDFPath).Msg("wrote pdf report")
		}
	}
	if cfg.PrintMetrics {
		b, _ := json.MarshalIndent(a.Metrics(), "", "  ")
		fmt.Fprintln(os.Stderr, string(b))
	}
	return runErr
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	b = append(b, '\n')
	if path == "-" {
		_, err = os.Stdout.Write(b)
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Info().Str("out", path).Msg("wrote batch result")
	return nil
}
