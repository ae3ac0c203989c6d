package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starford/mdboard/internal/models"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Path      string
	Checksum  string
	TaskCount int
	UpdatedAt time.Time
}

// TaskRow is one indexed task and the document it lives in.
type TaskRow struct {
	Document string
	models.Task
	StartLine int
	EndLine   int
}

// HeadingRow is one heading of a document, in document order.
type HeadingRow struct {
	Path  models.Path
	Level int
	Line  int
}

// TaskFilter narrows ListTasks. Empty fields match everything.
type TaskFilter struct {
	Document string
	Status   string
	Limit    int
}

// SearchResult represents one search hit.
type SearchResult struct {
	Document string
	TaskID   models.TaskID
	Title    string
	Status   string
	Path     models.Path
	Snippet  string
}

// UpsertDocument replaces a document and everything indexed from it within a transaction.
func (db *DB) UpsertDocument(doc DocumentRow, tasks []TaskRow, headings []HeadingRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	_, err = tx.Exec(`
		INSERT INTO documents (path, checksum, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, doc.Path, doc.Checksum, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	_, _ = tx.Exec(`DELETE FROM tasks WHERE document = ?`, doc.Path)
	_, _ = tx.Exec(`DELETE FROM headings WHERE document = ?`, doc.Path)

	if err := insertTasks(tx, doc.Path, tasks); err != nil {
		return err
	}
	if err := insertHeadings(tx, doc.Path, headings); err != nil {
		return err
	}
	if err := ftsUpsert(tx, doc.Path, tasks); err != nil {
		return err
	}
	return tx.Commit()
}

func insertTasks(tx *sql.Tx, document string, tasks []TaskRow) error {
	if len(tasks) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`
		INSERT INTO tasks (document, id, title, status, path, path_text, checked, start_line, end_line, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare task insert: %w", err)
	}
	defer stmt.Close()
	for _, t := range tasks {
		pathJSON, _ := json.Marshal(t.Path)
		meta := t.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		metaJSON, _ := json.Marshal(meta)
		if _, err := stmt.Exec(document, string(t.ID), t.Title, t.Status.String(),
			string(pathJSON), t.Path.String(), t.Checked, t.StartLine, t.EndLine, string(metaJSON)); err != nil {
			return fmt.Errorf("index: insert task: %w", err)
		}
	}
	return nil
}

func insertHeadings(tx *sql.Tx, document string, headings []HeadingRow) error {
	if len(headings) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO headings (document, position, path, level, line) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare heading insert: %w", err)
	}
	defer stmt.Close()
	for i, h := range headings {
		pathJSON, _ := json.Marshal(h.Path)
		if _, err := stmt.Exec(document, i, string(pathJSON), h.Level, h.Line); err != nil {
			return fmt.Errorf("index: insert heading: %w", err)
		}
	}
	return nil
}

// DeleteDocument removes a document with its tasks, headings and FTS entries.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM tasks WHERE document = ?`, path)
	_, _ = tx.Exec(`DELETE FROM headings WHERE document = ?`, path)
	_, _ = tx.Exec(`DELETE FROM documents WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns path → checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// ListDocuments returns every indexed document ordered by path.
func (db *DB) ListDocuments() ([]DocumentRow, error) {
	rows, err := db.conn.Query(`
		SELECT d.path, d.checksum, d.updated_at,
		       (SELECT count(*) FROM tasks t WHERE t.document = d.path)
		FROM documents d
		ORDER BY d.path
	`)
	if err != nil {
		return nil, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		var d DocumentRow
		if err := rows.Scan(&d.Path, &d.Checksum, &d.UpdatedAt, &d.TaskCount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListTasks returns tasks in document order, optionally filtered.
func (db *DB) ListTasks(f TaskFilter) ([]TaskRow, error) {
	var (
		where []string
		args  []any
	)
	if f.Document != "" {
		where = append(where, "document = ?")
		args = append(args, f.Document)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(f.Status)))
	}
	q := `SELECT document, id, title, status, path, checked, start_line, end_line, metadata FROM tasks`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY document, start_line"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: list tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		var (
			t                      TaskRow
			id, status, path, meta string
		)
		if err := rows.Scan(&t.Document, &id, &t.Title, &status, &path, &t.Checked, &t.StartLine, &t.EndLine, &meta); err != nil {
			return nil, err
		}
		t.ID = models.TaskID(id)
		if t.Status, err = models.NewStatus(status); err != nil {
			return nil, fmt.Errorf("index: task %s: %w", id, err)
		}
		if err := json.Unmarshal([]byte(path), &t.Path); err != nil {
			return nil, fmt.Errorf("index: task %s path: %w", id, err)
		}
		if err := json.Unmarshal([]byte(meta), &t.Metadata); err != nil {
			return nil, fmt.Errorf("index: task %s metadata: %w", id, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Headings returns the headings of a document in document order.
func (db *DB) Headings(document string) ([]HeadingRow, error) {
	rows, err := db.conn.Query(`SELECT path, level, line FROM headings WHERE document = ? ORDER BY position`, document)
	if err != nil {
		return nil, fmt.Errorf("index: headings: %w", err)
	}
	defer rows.Close()

	var out []HeadingRow
	for rows.Next() {
		var (
			h    HeadingRow
			path string
		)
		if err := rows.Scan(&path, &h.Level, &h.Line); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(path), &h.Path); err != nil {
			return nil, fmt.Errorf("index: heading path: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanSearch(rows *sql.Rows) ([]SearchResult, error) {
	var out []SearchResult
	for rows.Next() {
		var (
			r        SearchResult
			id, path string
		)
		if err := rows.Scan(&r.Document, &id, &r.Title, &r.Status, &path, &r.Snippet); err != nil {
			return nil, err
		}
		r.TaskID = models.TaskID(id)
		if err := json.Unmarshal([]byte(path), &r.Path); err != nil {
			return nil, fmt.Errorf("index: search path: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
