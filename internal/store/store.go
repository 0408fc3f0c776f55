// Package store persists completed scrape outcomes in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperifyio/goindicator/internal/model"
)

// ErrNotFound is returned by Get when no outcome is stored for the key.
var ErrNotFound = errors.New("outcome not found")

// Store receives completed outcomes.
type Store interface {
	Save(ctx context.Context, jobID string, o *model.ScrapeOutcome) error
}

// Record is the summary row of a stored outcome.
type Record struct {
	JobID         string         `json:"job_id"`
	URL           string         `json:"url"`
	Domain        string         `json:"domain"`
	FinalStrategy model.Strategy `json:"final_strategy"`
	FallbackUsed  bool           `json:"fallback_used"`
	Raw           int            `json:"raw_candidates"`
	Valid         int            `json:"valid"`
	SavedAt       time.Time      `json:"saved_at"`
}

// SQLite stores outcomes keyed by job id and URL. Saving the same key again
// replaces the previous outcome.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &SQLite{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS outcomes (
		job_id TEXT NOT NULL,
		url TEXT NOT NULL,
		domain TEXT NOT NULL,
		final_strategy TEXT NOT NULL,
		fallback_used INTEGER NOT NULL DEFAULT 0,
		raw_count INTEGER NOT NULL DEFAULT 0,
		valid_count INTEGER NOT NULL DEFAULT 0,
		saved_at TEXT NOT NULL,
		outcome TEXT NOT NULL,
		PRIMARY KEY (job_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_domain ON outcomes(domain);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Save stores o under (jobID, o.URL).
func (s *SQLite) Save(ctx context.Context, jobID string, o *model.ScrapeOutcome) error {
	if o == nil {
		return errors.New("store: nil outcome")
	}
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}
	query := `
		INSERT INTO outcomes (
			job_id, url, domain, final_strategy, fallback_used,
			raw_count, valid_count, saved_at, outcome
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, url) DO UPDATE SET
			domain = excluded.domain,
			final_strategy = excluded.final_strategy,
			fallback_used = excluded.fallback_used,
			raw_count = excluded.raw_count,
			valid_count = excluded.valid_count,
			saved_at = excluded.saved_at,
			outcome = excluded.outcome
	`
	_, err = s.db.ExecContext(ctx, query,
		jobID,
		o.URL,
		o.Metadata.Domain,
		string(o.Metadata.FinalStrategy),
		o.Metadata.FallbackUsed,
		o.Summary.Raw,
		len(o.ExtractedValues),
		s.now().UTC().Format(time.RFC3339Nano),
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save outcome for %s: %w", o.URL, err)
	}
	return nil
}

// Get loads the outcome stored for (jobID, url).
func (s *SQLite) Get(ctx context.Context, jobID, url string) (*model.ScrapeOutcome, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT outcome FROM outcomes WHERE job_id = ? AND url = ?`, jobID, url).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome: %w", err)
	}
	var o model.ScrapeOutcome
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outcome: %w", err)
	}
	return &o, nil
}

// ListJob returns the summary rows of a job ordered by URL.
func (s *SQLite) ListJob(ctx context.Context, jobID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, url, domain, final_strategy, fallback_used, raw_count, valid_count, saved_at
		FROM outcomes WHERE job_id = ? ORDER BY url
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r        Record
			strategy string
			savedAt  string
		)
		if err := rows.Scan(&r.JobID, &r.URL, &r.Domain, &strategy, &r.FallbackUsed, &r.Raw, &r.Valid, &savedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		r.FinalStrategy = model.Strategy(strategy)
		if t, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
			r.SavedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
