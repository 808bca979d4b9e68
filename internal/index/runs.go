package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RunRow is one recorded batch run.
type RunRow struct {
	ID             int64      `json:"id"`
	Root           string     `json:"root"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     time.Time  `json:"finished_at"`
	FilesScanned   int        `json:"files_scanned"`
	FilesSucceeded int        `json:"files_succeeded"`
	FilesFailed    int        `json:"files_failed"`
	TotalItems     int        `json:"total_items"`
	Kinds          []string   `json:"kinds"`
	SpanStart      *time.Time `json:"span_start,omitempty"`
	SpanEnd        *time.Time `json:"span_end,omitempty"`
	Errors         []RunError `json:"errors"`
}

// RunError is a per-file failure of a run.
type RunError struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// RecordRun stores a run with its errors and returns the new run id.
func (db *DB) RecordRun(r RunRow) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	kinds := r.Kinds
	if kinds == nil {
		kinds = []string{}
	}
	kindsJSON, _ := json.Marshal(kinds)

	res, err := tx.Exec(`
		INSERT INTO runs (root, started_at, finished_at, files_scanned, files_succeeded,
			files_failed, total_items, kinds, span_start, span_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Root, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.FilesScanned, r.FilesSucceeded,
		r.FilesFailed, r.TotalItems, string(kindsJSON), nullTime(r.SpanStart), nullTime(r.SpanEnd))
	if err != nil {
		return 0, fmt.Errorf("index: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("index: run id: %w", err)
	}

	if len(r.Errors) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO run_errors (run_id, name, path, message) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return 0, fmt.Errorf("index: prepare run error insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range r.Errors {
			if _, err := stmt.Exec(id, e.Name, e.Path, e.Message); err != nil {
				return 0, fmt.Errorf("index: insert run error: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit run: %w", err)
	}
	return id, nil
}

// ListRuns returns the most recent runs first, with their errors.
func (db *DB) ListRuns(limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, root, started_at, finished_at, files_scanned, files_succeeded,
		       files_failed, total_items, kinds, span_start, span_end
		FROM runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: list runs: %w", err)
	}

	var out []RunRow
	for rows.Next() {
		var (
			r          RunRow
			kindsJSON  string
			start, end sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Root, &r.StartedAt, &r.FinishedAt, &r.FilesScanned,
			&r.FilesSucceeded, &r.FilesFailed, &r.TotalItems, &kindsJSON, &start, &end); err != nil {
			rows.Close()
			return nil, err
		}
		_ = json.Unmarshal([]byte(kindsJSON), &r.Kinds)
		r.StartedAt = r.StartedAt.UTC()
		r.FinishedAt = r.FinishedAt.UTC()
		r.SpanStart = timePtr(start)
		r.SpanEnd = timePtr(end)
		r.Errors = []RunError{}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		errs, err := db.runErrors(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Errors = errs
	}
	return out, nil
}

func (db *DB) runErrors(id int64) ([]RunError, error) {
	rows, err := db.conn.Query(`SELECT name, path, message FROM run_errors WHERE run_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("index: run errors: %w", err)
	}
	defer rows.Close()
	out := []RunError{}
	for rows.Next() {
		var e RunError
		if err := rows.Scan(&e.Name, &e.Path, &e.Message); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}
