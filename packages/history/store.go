package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/xcrunner/packages/results"
)

// DefaultRetainLastRuns is how many runs Prune keeps unless configured otherwise
const DefaultRetainLastRuns = 50

// ErrRunNotFound is returned when a run ID is not in the store
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	project_path   TEXT NOT NULL DEFAULT '',
	scope          TEXT NOT NULL DEFAULT '',
	started_at     TEXT NOT NULL,
	finished_at    TEXT,
	duration_ms    INTEGER,
	total_tests    INTEGER NOT NULL DEFAULT 0,
	passed_tests   INTEGER NOT NULL DEFAULT 0,
	failed_tests   INTEGER NOT NULL DEFAULT 0,
	skipped_tests  INTEGER NOT NULL DEFAULT 0,
	target_results TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS test_cases (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL,
	target_key      TEXT NOT NULL DEFAULT '',
	suite_name      TEXT NOT NULL,
	test_name       TEXT NOT NULL,
	status          TEXT NOT NULL,
	duration_ms     INTEGER,
	failure_message TEXT,
	file_path       TEXT,
	line_number     INTEGER
);
CREATE INDEX IF NOT EXISTS idx_test_cases_run_id ON test_cases(run_id);
`

// RunStatus is the recorded outcome of a run
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunPassed    RunStatus = "passed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// RunStatusFromString maps unknown values to RunRunning
func RunStatusFromString(s string) RunStatus {
	switch RunStatus(s) {
	case RunPassed, RunFailed, RunCancelled:
		return RunStatus(s)
	default:
		return RunRunning
	}
}

// TargetOutcome is the per-unit result stored with a run
type TargetOutcome struct {
	Key     string `json:"key"`
	Success bool   `json:"success"`
}

// Run is one row of the runs table
type Run struct {
	ID          string          `json:"id"`
	Status      RunStatus       `json:"status"`
	ProjectPath string          `json:"projectPath"`
	Scope       string          `json:"scope"`
	StartedAt   time.Time       `json:"startedAt"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty"`
	DurationMS  *int64          `json:"durationMs,omitempty"`
	Total       int             `json:"total"`
	Passed      int             `json:"passed"`
	Failed      int             `json:"failed"`
	Skipped     int             `json:"skipped"`
	Targets     []TargetOutcome `json:"targets"`
}

// Store is a SQLite-backed run history
type Store struct {
	db           *sql.DB
	path         string
	queryTimeout time.Duration
}

// DefaultPath is history.db under the user's config directory
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "xcrunner", "history.db")
}

// Open opens (creating if needed) the store at location, which is a file
// path or a sqlite:// / sqlite: connection string
func Open(location string) (*Store, error) {
	path, err := parseLocation(location)
	if err != nil {
		return nil, err
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps :memory: databases coherent and serializes writers
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{
		db:           db,
		path:         path,
		queryTimeout: 30 * time.Second,
	}, nil
}

// Path is the database file in use
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// parseLocation accepts:
//   - sqlite://path/to/history.db
//   - sqlite:./history.db
//   - /plain/path/history.db
func parseLocation(location string) (string, error) {
	location = strings.TrimSpace(location)
	switch {
	case strings.HasPrefix(location, "sqlite://"):
		location = strings.TrimPrefix(location, "sqlite://")
	case strings.HasPrefix(location, "sqlite:"):
		location = strings.TrimPrefix(location, "sqlite:")
	case strings.Contains(location, "://"):
		return "", fmt.Errorf("unsupported history location: %s", location)
	}
	if location == "" {
		return "", fmt.Errorf("history location is empty")
	}
	return location, nil
}

// SaveRun inserts or replaces a run row
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return saveRun(ctx, s.db, run)
}

// SaveTestCases replaces the test cases recorded for runID
func (s *Store) SaveTestCases(ctx context.Context, runID string, targetKey string, cases []results.TestCase) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM test_cases WHERE run_id = ? AND target_key = ?`, runID, targetKey); err != nil {
		return fmt.Errorf("failed to clear test cases: %w", err)
	}
	if err := insertCases(ctx, tx, runID, targetKey, cases); err != nil {
		return err
	}
	return tx.Commit()
}

// Record stores a run together with every target's test cases in one transaction
func (s *Store) Record(ctx context.Context, run Run, targets []results.TargetResult) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveRun(ctx, tx, run); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM test_cases WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear test cases: %w", err)
	}
	for _, t := range targets {
		if err := insertCases(ctx, tx, run.ID, t.Key, t.Cases); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveRun(ctx context.Context, db execer, run Run) error {
	targets := run.Targets
	if targets == nil {
		targets = []TargetOutcome{}
	}
	targetJSON, err := json.Marshal(targets)
	if err != nil {
		return fmt.Errorf("failed to encode target results: %w", err)
	}

	var finished any
	if run.FinishedAt != nil {
		finished = formatTime(*run.FinishedAt)
	}

	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, status, project_path, scope, started_at, finished_at, duration_ms,
			 total_tests, passed_tests, failed_tests, skipped_tests, target_results)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.ProjectPath, run.Scope, formatTime(run.StartedAt), finished, nullInt(run.DurationMS),
		run.Total, run.Passed, run.Failed, run.Skipped, string(targetJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func insertCases(ctx context.Context, db execer, runID, targetKey string, cases []results.TestCase) error {
	for _, tc := range cases {
		var file, message any
		var line any
		if tc.FailureMessage != "" {
			message = tc.FailureMessage
		}
		if tc.Location != nil {
			file = tc.Location.File
			if tc.Location.Line > 0 {
				line = tc.Location.Line
			}
		}
		_, err := db.ExecContext(ctx, `
			INSERT INTO test_cases
				(run_id, target_key, suite_name, test_name, status, duration_ms, failure_message, file_path, line_number)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, targetKey, tc.Suite, tc.Name, string(tc.Status), nullInt(tc.DurationMS), message, file, line,
		)
		if err != nil {
			return fmt.Errorf("failed to save test case %s: %w", tc.FullName(), err)
		}
	}
	return nil
}

const runColumns = `id, status, project_path, scope, started_at, finished_at, duration_ms,
	total_tests, passed_tests, failed_tests, skipped_tests, target_results`

// ListRuns returns up to limit runs, newest first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// GetRun returns one run, or ErrRunNotFound
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// TestCases returns the cases recorded for a run in insertion order
func (s *Store) TestCases(ctx context.Context, runID string) ([]results.TestCase, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT suite_name, test_name, status, duration_ms, failure_message, file_path, line_number
		FROM test_cases WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var cases []results.TestCase
	for rows.Next() {
		var (
			tc       results.TestCase
			status   string
			duration sql.NullInt64
			message  sql.NullString
			file     sql.NullString
			line     sql.NullInt64
		)
		if err := rows.Scan(&tc.Suite, &tc.Name, &status, &duration, &message, &file, &line); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		tc.Status = results.StatusFromString(status)
		if duration.Valid {
			tc.DurationMS = results.Millis(duration.Int64)
		}
		tc.FailureMessage = message.String
		if file.Valid {
			tc.Location = &results.Location{File: file.String, Line: int(line.Int64)}
		}
		cases = append(cases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return cases, nil
}

// Prune deletes every run (and its cases) except the newest keep runs.
// It returns the number of runs deleted.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const stale = `SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT -1 OFFSET ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM test_cases WHERE run_id IN (`+stale+`)`, keep); err != nil {
		return 0, fmt.Errorf("failed to prune test cases: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id IN (`+stale+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		status     string
		started    string
		finished   sql.NullString
		duration   sql.NullInt64
		targetJSON string
	)
	err := row.Scan(&run.ID, &status, &run.ProjectPath, &run.Scope, &started, &finished, &duration,
		&run.Total, &run.Passed, &run.Failed, &run.Skipped, &targetJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = RunStatusFromString(status)
	run.StartedAt = parseTime(started)
	if finished.Valid {
		t := parseTime(finished.String)
		run.FinishedAt = &t
	}
	if duration.Valid {
		run.DurationMS = results.Millis(duration.Int64)
	}
	if err := json.Unmarshal([]byte(targetJSON), &run.Targets); err != nil {
		run.Targets = nil
	}
	return run, nil
}

// RFC3339 with fixed-width nanoseconds, so text order is time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
