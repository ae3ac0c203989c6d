//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(
			document UNINDEXED,
			start_line UNINDEXED,
			title,
			path,
			metadata,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, document string, tasks []TaskRow) error {
	ftsDelete(tx, document)
	stmt, err := tx.Prepare(`INSERT INTO tasks_fts (document, start_line, title, path, metadata) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare fts insert: %w", err)
	}
	defer stmt.Close()
	for _, t := range tasks {
		var meta []string
		for k, v := range t.Metadata {
			meta = append(meta, k+" "+v)
		}
		if _, err := stmt.Exec(document, t.StartLine, t.Title, t.Path.String(), strings.Join(meta, " ")); err != nil {
			return fmt.Errorf("index: upsert fts: %w", err)
		}
	}
	return nil
}

func ftsDelete(tx *sql.Tx, document string) {
	_, _ = tx.Exec(`DELETE FROM tasks_fts WHERE document = ?`, document)
}

// Search performs an FTS5 full-text search and returns matching tasks with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT t.document, t.id, t.title, t.status, t.path,
		       snippet(tasks_fts, 2, '<b>', '</b>', '...', 32)
		FROM tasks_fts f
		JOIN tasks t ON t.document = f.document AND t.start_line = f.start_line
		WHERE tasks_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()
	return scanSearch(rows)
}
