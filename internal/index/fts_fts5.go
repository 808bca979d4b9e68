//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS timelines_fts USING fts5(
			source UNINDEXED,
			labels,
			kinds,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, source, labels string, kinds []string) error {
	_, _ = tx.Exec(`DELETE FROM timelines_fts WHERE source = ?`, source)
	_, err := tx.Exec(`INSERT INTO timelines_fts (source, labels, kinds) VALUES (?, ?, ?)`,
		source, labels, strings.Join(kinds, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, source string) {
	_, _ = tx.Exec(`DELETE FROM timelines_fts WHERE source = ?`, source)
}

// Search performs an FTS5 full-text search over item labels and returns
// matching timelines with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.source,
		       t.output,
		       snippet(timelines_fts, 1, '<b>', '</b>', '...', 16)
		FROM timelines_fts f
		JOIN timelines t ON t.source = f.source
		WHERE timelines_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Source, &r.Output, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
