package index

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/mdboard/internal/checksum"
	"github.com/starford/mdboard/internal/parser"
	"github.com/starford/mdboard/internal/storage"
)

// syncParallelism bounds how many documents are read and parsed at once.
const syncParallelism = 4

type parsed struct {
	path     string
	doc      DocumentRow
	tasks    []TaskRow
	headings []HeadingRow
}

// Sync walks the workspace and brings the index up to date:
//   - new/changed documents are parsed in parallel and upserted
//   - documents removed from disk are deleted from the index
func Sync(ctx context.Context, db *DB, store storage.Provider, logger *slog.Logger, opts ...parser.Option) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	results := make([]*parsed, len(metas))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncParallelism)
	for i, m := range metas {
		disk[m.Path] = struct{}{}
		if checksums[m.Path] == m.Checksum {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := store.Read(m.Path)
			if err != nil {
				logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
				return nil
			}
			p, err := parseDocument(m.Path, data, m.UpdatedAt, opts...)
			if err != nil {
				logger.Warn("sync: parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
				return nil
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range results {
		if p == nil {
			continue
		}
		if err := db.UpsertDocument(p.doc, p.tasks, p.headings); err != nil {
			logger.Warn("sync: index failed", slog.String("path", p.path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", p.path), slog.Int("tasks", len(p.tasks)))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexDocument parses data and upserts it into the DB.
func IndexDocument(db TaskIndex, path string, data []byte, opts ...parser.Option) error {
	p, err := parseDocument(path, data, time.Now().UTC(), opts...)
	if err != nil {
		return err
	}
	return db.UpsertDocument(p.doc, p.tasks, p.headings)
}

func parseDocument(path string, data []byte, updatedAt time.Time, opts ...parser.Option) (*parsed, error) {
	res, err := parser.Parse(string(data), opts...)
	if err != nil {
		return nil, err
	}
	p := &parsed{
		path: path,
		doc: DocumentRow{
			Path:      path,
			Checksum:  checksum.Sum(data),
			UpdatedAt: updatedAt,
		},
	}
	for _, t := range res.Tasks {
		p.tasks = append(p.tasks, TaskRow{
			Document:  path,
			Task:      t.Task,
			StartLine: t.StartLine,
			EndLine:   t.EndLine,
		})
	}
	for _, h := range res.Headings {
		p.headings = append(p.headings, HeadingRow{Path: h.Path, Level: h.Level, Line: h.Line})
	}
	return p, nil
}
