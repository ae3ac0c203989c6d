// Package taskservice coordinates board documents on disk, the edit engine
// and the task index.
package taskservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/mdboard/internal/apperr"
	"github.com/starford/mdboard/internal/checksum"
	"github.com/starford/mdboard/internal/editor"
	"github.com/starford/mdboard/internal/index"
	"github.com/starford/mdboard/internal/models"
	"github.com/starford/mdboard/internal/parser"
	"github.com/starford/mdboard/internal/storage"
)

// Task change kinds passed to an EventFunc.
const (
	TaskCreated = "created"
	TaskUpdated = "updated"
	TaskDeleted = "deleted"
)

// EventFunc is called after a task mutation has been written.
type EventFunc func(kind, document, taskID string)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for parser warnings and index failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithNotifier registers a callback for task mutations.
func WithNotifier(fn EventFunc) Option {
	return func(s *Service) { s.notify = fn }
}

// WithIndex keeps idx up to date after every mutation and enables
// ListTasks and Search.
func WithIndex(idx index.TaskIndex) Option {
	return func(s *Service) { s.idx = idx }
}

// Service reads and edits board documents.
type Service struct {
	store    storage.Provider
	idx      index.TaskIndex
	fallback models.BoardConfig
	logger   *slog.Logger
	notify   EventFunc
}

// New creates a service over store. fallback fills any configuration field a
// document's front-matter leaves unset.
func New(store storage.Provider, fallback models.BoardConfig, opts ...Option) *Service {
	s := &Service{
		store:    store,
		fallback: models.ResolveConfig(nil, fallback),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DocumentSummary is a lightweight item in a document list.
type DocumentSummary struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	TaskCount int       `json:"task_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput describes a new task. An empty Status uses the document's
// default status.
type CreateInput struct {
	Title  string
	Path   models.Path
	Status string
}

// UpdateInput lists the fields to change. Nil fields are left alone.
type UpdateInput struct {
	Title  *string
	Status *string
	Path   *models.Path
}

// Mutation is the outcome of a write. Task is nil after a delete.
type Mutation struct {
	Document string       `json:"document"`
	Checksum string       `json:"checksum"`
	Task     *parser.Task `json:"task,omitempty"`
}

// ListDocuments returns every board document in the workspace.
func (s *Service) ListDocuments(_ context.Context) ([]DocumentSummary, error) {
	metas, err := s.store.List("")
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	if s.idx != nil {
		rows, err := s.idx.ListDocuments()
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			counts[r.Path] = r.TaskCount
		}
	}
	out := make([]DocumentSummary, len(metas))
	for i, m := range metas {
		n, ok := counts[m.Path]
		if !ok && s.idx == nil {
			if _, res, err := s.load(m.Path); err == nil {
				n = len(res.Tasks)
			}
		}
		out[i] = DocumentSummary{
			Path:      m.Path,
			Checksum:  m.Checksum,
			TaskCount: n,
			UpdatedAt: m.UpdatedAt,
		}
	}
	return out, nil
}

// Headings returns the headings of a document in document order.
func (s *Service) Headings(_ context.Context, document string) ([]parser.Heading, error) {
	_, res, err := s.load(document)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res.Headings), nil
}

// Config returns the resolved configuration of a document.
func (s *Service) Config(_ context.Context, document string) (models.BoardConfig, error) {
	_, res, err := s.load(document)
	if err != nil {
		return models.BoardConfig{}, err
	}
	return models.ResolveConfig(res.Config, s.fallback), nil
}

// Task returns the first task with the given id.
func (s *Service) Task(_ context.Context, document string, id models.TaskID) (*parser.Task, error) {
	_, res, err := s.load(document)
	if err != nil {
		return nil, err
	}
	t, ok := res.FindTask(id)
	if !ok {
		return nil, fmt.Errorf("%w: task %s", apperr.ErrNotFound, id)
	}
	return &t, nil
}

// CreateTask adds a task to a document, creating the document when it does
// not exist yet.
func (s *Service) CreateTask(ctx context.Context, document string, in CreateInput) (*Mutation, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", apperr.ErrInvalid)
	}

	id := models.NewTaskID(in.Path, title)
	data, err := s.mutate(ctx, document, "", true, func(text string, cfg models.BoardConfig) (string, error) {
		status := cfg.DefaultStatus
		if strings.TrimSpace(in.Status) != "" {
			status = in.Status
		}
		st, err := models.NewStatus(status)
		if err != nil {
			return "", err
		}
		return editor.Apply(text, editor.Edit{
			Create:       &editor.Create{Title: title, Path: in.Path, Status: st},
			DoneStatuses: cfg.DoneSet(),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.finish(TaskCreated, document, id, data)
}

// UpdateTask edits a task's title, status or path. A non-empty ifMatch must
// equal the document's current checksum.
func (s *Service) UpdateTask(ctx context.Context, document string, id models.TaskID, in UpdateInput, ifMatch string) (*Mutation, error) {
	var newID models.TaskID
	data, err := s.mutate(ctx, document, ifMatch, false, func(text string, cfg models.BoardConfig) (string, error) {
		e := editor.Edit{TaskID: id, NewPath: in.Path, DoneStatuses: cfg.DoneSet()}
		if in.Title != nil {
			if strings.TrimSpace(*in.Title) == "" {
				return "", fmt.Errorf("%w: title must not be blank", apperr.ErrInvalid)
			}
			e.NewTitle = *in.Title
		}
		if in.Status != nil {
			st, err := models.NewStatus(*in.Status)
			if err != nil {
				return "", err
			}
			e.NewStatus = st
		}
		out, err := editor.Apply(text, e)
		if err != nil {
			return "", err
		}
		newID = s.resultingID(text, id, in)
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return s.finish(TaskUpdated, document, newID, data)
}

// DeleteTask removes a task and its metadata lines.
func (s *Service) DeleteTask(ctx context.Context, document string, id models.TaskID, ifMatch string) (*Mutation, error) {
	data, err := s.mutate(ctx, document, ifMatch, false, func(text string, _ models.BoardConfig) (string, error) {
		return editor.Apply(text, editor.Edit{TaskID: id, Delete: true})
	})
	if err != nil {
		return nil, err
	}
	s.notifyTask(TaskDeleted, document, id)
	return &Mutation{Document: document, Checksum: checksum.Sum(data)}, nil
}

// ListTasks queries the index.
func (s *Service) ListTasks(_ context.Context, f index.TaskFilter) ([]index.TaskRow, error) {
	if s.idx == nil {
		return nil, errIndexDisabled
	}
	rows, err := s.idx.ListTasks(f)
	return nonNilSlice(rows), err
}

// Search runs a full-text query against the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.idx == nil {
		return nil, errIndexDisabled
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", apperr.ErrInvalid)
	}
	rows, err := s.idx.Search(query, limit)
	return nonNilSlice(rows), err
}

// ParseOptions returns the parser options matching the service's fallback
// configuration, for callers that index documents themselves.
func (s *Service) ParseOptions() []parser.Option {
	return []parser.Option{parser.WithDefaults(s.fallback.DefaultStatus, s.fallback.DefaultDoneStatus)}
}

var errIndexDisabled = errors.New("taskservice: index disabled")

// load reads and parses a document.
func (s *Service) load(document string) ([]byte, *parser.Result, error) {
	data, err := s.store.Read(document)
	if err != nil {
		return nil, nil, mapError(err)
	}
	res, err := parser.Parse(string(data), s.ParseOptions()...)
	if err != nil {
		return nil, nil, mapError(err)
	}
	for _, w := range res.Warnings {
		s.logger.Warn("board: "+w, slog.String("document", document))
	}
	return data, res, nil
}

type editFunc func(text string, cfg models.BoardConfig) (string, error)

// mutate runs fn under the document's edit lock and reindexes the result.
func (s *Service) mutate(ctx context.Context, document, ifMatch string, create bool, fn editFunc) ([]byte, error) {
	data, err := s.store.Update(ctx, document, func(current []byte) ([]byte, error) {
		if current == nil && !create {
			return nil, fmt.Errorf("%w: document %s", apperr.ErrNotFound, document)
		}
		if ifMatch != "" && checksum.Sum(current) != ifMatch {
			return nil, fmt.Errorf("%w: document %s has changed", apperr.ErrConflict, document)
		}
		fm, err := parser.Frontmatter(string(current))
		if err != nil {
			return nil, err
		}
		out, err := fn(string(current), models.ResolveConfig(fm, s.fallback))
		if err != nil {
			return nil, err
		}
		return []byte(out), nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	s.reindex(document, data)
	return data, nil
}

func (s *Service) reindex(document string, data []byte) {
	if s.idx == nil {
		return
	}
	if err := index.IndexDocument(s.idx, document, data, s.ParseOptions()...); err != nil {
		s.logger.Warn("reindex failed", slog.String("document", document), slog.String("error", err.Error()))
	}
}

// finish builds the Mutation for a written document and fires the event.
func (s *Service) finish(kind, document string, id models.TaskID, data []byte) (*Mutation, error) {
	m := &Mutation{Document: document, Checksum: checksum.Sum(data)}
	res, err := parser.Parse(string(data), s.ParseOptions()...)
	if err == nil {
		if t, ok := res.FindTask(id); ok {
			m.Task = &t
		}
	}
	s.notifyTask(kind, document, id)
	return m, nil
}

// resultingID is the id a task carries after an update changes its title
// or path.
func (s *Service) resultingID(text string, id models.TaskID, in UpdateInput) models.TaskID {
	res, err := parser.Parse(text)
	if err != nil {
		return id
	}
	t, ok := res.FindTask(id)
	if !ok {
		return id
	}
	title, path := t.Title, t.Path
	if in.Title != nil {
		title = strings.TrimSpace(*in.Title)
	}
	if in.Path != nil {
		path = *in.Path
	}
	return models.NewTaskID(path, title)
}

func (s *Service) notifyTask(kind, document string, id models.TaskID) {
	if s.notify != nil {
		s.notify(kind, document, string(id))
	}
}

// mapError translates storage, parser and editor errors to apperr values.
// Errors that already carry an apperr value pass through.
func mapError(err error) error {
	var pe *parser.ParseError
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrInvalid), errors.Is(err, apperr.ErrAlreadyExists):
		return err
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, editor.ErrTaskNotFound):
		return fmt.Errorf("%w: %w", apperr.ErrNotFound, err)
	case errors.Is(err, storage.ErrInvalidPath),
		errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, editor.ErrMissingTaskID),
		errors.Is(err, editor.ErrTargetHeadingNotFound),
		errors.Is(err, editor.ErrInvalidRequest),
		errors.Is(err, editor.ErrParseFailed),
		errors.As(err, &pe):
		return fmt.Errorf("%w: %w", apperr.ErrInvalid, err)
	}
	return err
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
