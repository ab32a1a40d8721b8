// Package runlog keeps a local history of diff runs in SQLite, so repeated
// comparisons of the same snapshot pair can be spotted and past results
// located without re-running anything.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Run is one recorded diff invocation.
type Run struct {
	ID          string     `json:"id"`
	Operation   string     `json:"operation"` // "registration", "pricelist" or "merge"
	OldLabel    string     `json:"old"`
	NewLabel    string     `json:"new"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Result      *Result    `json:"result,omitempty"`
}

// Result summarizes a completed run.
type Result struct {
	Changes    int    `json:"changes"`
	PriceTies  int64  `json:"price_ties,omitempty"`
	OutputPath string `json:"output_path,omitempty"`
}

// Filter narrows List output.
type Filter struct {
	Operation string
	Status    string
	Limit     int
}

// Log provides read/write access to the run history database.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path and runs migrations.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}

	l := &Log{db: db}
	if err := l.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS diff_runs (
	id           TEXT PRIMARY KEY,
	operation    TEXT NOT NULL,
	old_label    TEXT NOT NULL,
	new_label    TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	error        TEXT,
	result       TEXT,
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_diff_runs_operation ON diff_runs(operation);
CREATE INDEX IF NOT EXISTS idx_diff_runs_status ON diff_runs(status);
`

func (l *Log) migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "runlog: migrate")
}

func (l *Log) Close() error {
	return l.db.Close()
}

// Start records the beginning of a run and returns its ID.
func (l *Log) Start(ctx context.Context, operation, oldLabel, newLabel string) (string, error) {
	id := uuid.New().String()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO diff_runs (id, operation, old_label, new_label, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, operation, oldLabel, newLabel, StatusRunning, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "runlog: start %s run", operation)
	}
	return id, nil
}

// Complete marks a run as successfully finished.
func (l *Log) Complete(ctx context.Context, runID string, result *Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "runlog: marshal result")
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE diff_runs SET status = ?, result = ?, completed_at = ? WHERE id = ?`,
		StatusComplete, string(resultJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

// Fail marks a run as failed with the given error.
func (l *Log) Fail(ctx context.Context, runID string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE diff_runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		StatusFailed, msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", runID)
	}
	return checkRowsAffected(res, runID)
}

// Get returns one run by ID.
func (l *Log) Get(ctx context.Context, runID string) (*Run, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, operation, old_label, new_label, status, error, result, started_at, completed_at
		 FROM diff_runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row.Scan)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("runlog: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: get run %s", runID)
	}
	return r, nil
}

// List returns runs matching the filter, most recent first.
func (l *Log) List(ctx context.Context, filter Filter) ([]Run, error) {
	query := `SELECT id, operation, old_label, new_label, status, error, result, started_at, completed_at
		 FROM diff_runs WHERE 1=1`
	var args []any

	if filter.Operation != "" {
		query += ` AND operation = ?`
		args = append(args, filter.Operation)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "runlog: list runs iterate")
}

func scanRun(scan func(...any) error) (*Run, error) {
	var (
		r           Run
		errMsg      sql.NullString
		resultJSON  sql.NullString
		completedAt sql.NullTime
	)
	if err := scan(&r.ID, &r.Operation, &r.OldLabel, &r.NewLabel, &r.Status,
		&errMsg, &resultJSON, &r.StartedAt, &completedAt); err != nil {
		return nil, err
	}
	r.Error = errMsg.String
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var res Result
		if err := json.Unmarshal([]byte(resultJSON.String), &res); err != nil {
			return nil, eris.Wrap(err, "runlog: unmarshal result")
		}
		r.Result = &res
	}
	return &r, nil
}

func checkRowsAffected(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "runlog: rows affected")
	}
	if n == 0 {
		return eris.Errorf("runlog: run %s not found", runID)
	}
	return nil
}
