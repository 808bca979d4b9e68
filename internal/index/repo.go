package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/claimline/internal/apperr"
)

// TimelineRow represents a row in the timelines table.
type TimelineRow struct {
	Source     string    `json:"source"`
	Output     string    `json:"output"`
	Checksum   string    `json:"checksum"`
	ItemCount  int       `json:"item_count"`
	Kinds      []string  `json:"kinds"`
	SpanStart  time.Time `json:"span_start"`
	SpanEnd    time.Time `json:"span_end"`
	Labels     string    `json:"-"` // item labels, newline separated, for search
	RenderedAt time.Time `json:"rendered_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Source  string `json:"source"`
	Output  string `json:"output"`
	Snippet string `json:"snippet"`
}

const timelineColumns = `source, output, checksum, item_count, kinds, span_start, span_end, labels, rendered_at`

// UpsertTimeline inserts or replaces a timeline and its FTS entry within a
// transaction.
func (db *DB) UpsertTimeline(t TimelineRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	kinds := t.Kinds
	if kinds == nil {
		kinds = []string{}
	}
	kindsJSON, _ := json.Marshal(kinds)

	_, err = tx.Exec(`
		INSERT INTO timelines (`+timelineColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			output      = excluded.output,
			checksum    = excluded.checksum,
			item_count  = excluded.item_count,
			kinds       = excluded.kinds,
			span_start  = excluded.span_start,
			span_end    = excluded.span_end,
			labels      = excluded.labels,
			rendered_at = excluded.rendered_at
	`, t.Source, t.Output, t.Checksum, t.ItemCount, string(kindsJSON),
		t.SpanStart.UTC(), t.SpanEnd.UTC(), t.Labels, t.RenderedAt.UTC())
	if err != nil {
		return fmt.Errorf("index: upsert timeline: %w", err)
	}

	if err := ftsUpsert(tx, t.Source, t.Labels, kinds); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteTimeline removes a timeline and its FTS entry.
func (db *DB) DeleteTimeline(source string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, source)
	if _, err := tx.Exec(`DELETE FROM timelines WHERE source = ?`, source); err != nil {
		return fmt.Errorf("index: delete timeline: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a source, or empty string if
// not found.
func (db *DB) GetChecksum(source string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM timelines WHERE source = ?`, source).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetTimeline returns one timeline or apperr.ErrNotFound.
func (db *DB) GetTimeline(source string) (*TimelineRow, error) {
	row := db.conn.QueryRow(`SELECT `+timelineColumns+` FROM timelines WHERE source = ?`, source)
	t, err := scanTimeline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get timeline: %w", err)
	}
	return t, nil
}

var timelineOrder = map[string]string{
	"":         "source ASC",
	"source":   "source ASC",
	"rendered": "rendered_at DESC, source ASC",
	"items":    "item_count DESC, source ASC",
	"recent":   "span_end DESC, source ASC",
}

// ListTimelines returns a page of timelines and the total count. kind, when
// set, keeps only timelines containing that kind. sort is one of source,
// rendered, items or recent.
func (db *DB) ListTimelines(limit, offset int, kind, sort string) ([]TimelineRow, int, error) {
	order, ok := timelineOrder[sort]
	if !ok {
		return nil, 0, fmt.Errorf("index: unknown sort %q", sort)
	}
	if limit <= 0 {
		limit = 50
	}

	where, args := "", []any{}
	if kind != "" {
		where = ` WHERE kinds LIKE ?`
		args = append(args, `%"`+kind+`"%`)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM timelines`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count timelines: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+timelineColumns+` FROM timelines`+where+
		` ORDER BY `+order+` LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list timelines: %w", err)
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		t, err := scanTimeline(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *t)
	}
	return out, total, rows.Err()
}

// AllChecksums returns source → checksum for every cataloged timeline.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT source, checksum FROM timelines`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var s, cs string
		if err := rows.Scan(&s, &cs); err != nil {
			return nil, err
		}
		out[s] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTimeline(s scanner) (*TimelineRow, error) {
	var (
		t          TimelineRow
		kindsJSON  string
		start, end sql.NullTime
	)
	if err := s.Scan(&t.Source, &t.Output, &t.Checksum, &t.ItemCount, &kindsJSON,
		&start, &end, &t.Labels, &t.RenderedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(kindsJSON), &t.Kinds); err != nil {
		return nil, fmt.Errorf("index: decode kinds: %w", err)
	}
	t.SpanStart = start.Time.UTC()
	t.SpanEnd = end.Time.UTC()
	t.RenderedAt = t.RenderedAt.UTC()
	return &t, nil
}
