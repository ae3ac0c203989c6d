package api

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mdboard/internal/index"
	"github.com/starford/mdboard/internal/models"
	"github.com/starford/mdboard/internal/taskservice"
)

var documentRe = regexp.MustCompile(`\.md$`)

// CreateTaskRequest is the request body for creating a task.
type CreateTaskRequest struct {
	Document string      `json:"document" example:"boards/sprint.md" validate:"required"`
	Title    string      `json:"title" example:"Write report" validate:"required"`
	Path     models.Path `json:"path" swaggertype:"array,string" example:"Work,Reports"`
	Status   string      `json:"status,omitempty" example:"todo"`
}

// Validate checks required fields.
func (r CreateTaskRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Document, validation.Required, validation.Match(documentRe).Error("must be a .md file")),
		validation.Field(&r.Title, validation.Required, validation.Length(1, 1000)),
	)
}

// UpdateTaskRequest is the request body for editing a task. Omitted fields
// are left unchanged.
type UpdateTaskRequest struct {
	Document string       `json:"document" example:"boards/sprint.md" validate:"required"`
	Title    *string      `json:"title,omitempty" example:"Write final report"`
	Status   *string      `json:"status,omitempty" example:"done"`
	Path     *models.Path `json:"path,omitempty" swaggertype:"array,string" example:"Done"`
}

// Validate checks required fields and that at least one change is requested.
func (r UpdateTaskRequest) Validate() error {
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.Document, validation.Required, validation.Match(documentRe).Error("must be a .md file")),
		validation.Field(&r.Title, validation.NilOrNotEmpty),
		validation.Field(&r.Status, validation.NilOrNotEmpty),
	); err != nil {
		return err
	}
	if r.Title == nil && r.Status == nil && r.Path == nil {
		return errors.New("one of title, status or path is required")
	}
	return nil
}

// Input converts the request to service input.
func (r UpdateTaskRequest) Input() taskservice.UpdateInput {
	return taskservice.UpdateInput{Title: r.Title, Status: r.Status, Path: r.Path}
}

// DocumentListResponse wraps the document list.
type DocumentListResponse struct {
	Documents []taskservice.DocumentSummary `json:"documents" validate:"required"`
}

// TaskItem is one task in a list response.
type TaskItem struct {
	Document  string            `json:"document" example:"boards/sprint.md" validate:"required"`
	ID        string            `json:"id" example:"3f2a9c0b41d7" validate:"required"`
	Title     string            `json:"title" example:"Write report" validate:"required"`
	Status    string            `json:"status" example:"todo" validate:"required"`
	Path      []string          `json:"path" validate:"required"`
	Checked   bool              `json:"checked"`
	StartLine int               `json:"start_line" example:"4"`
	EndLine   int               `json:"end_line" example:"5"`
	Metadata  map[string]string `json:"metadata"`
}

func taskItem(r index.TaskRow) TaskItem {
	meta := r.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	return TaskItem{
		Document:  r.Document,
		ID:        string(r.ID),
		Title:     r.Title,
		Status:    r.Status.String(),
		Path:      r.Path.Segments(),
		Checked:   r.Checked,
		StartLine: r.StartLine,
		EndLine:   r.EndLine,
		Metadata:  meta,
	}
}

// TaskListResponse wraps task listings.
type TaskListResponse struct {
	Tasks []TaskItem `json:"tasks" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Document string   `json:"document" example:"boards/sprint.md" validate:"required"`
	ID       string   `json:"id" example:"3f2a9c0b41d7" validate:"required"`
	Title    string   `json:"title" example:"Write report" validate:"required"`
	Status   string   `json:"status" example:"todo" validate:"required"`
	Path     []string `json:"path" validate:"required"`
	Snippet  string   `json:"snippet" example:"...matched text..."`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// HeadingsResponse wraps the headings of a document.
type HeadingsResponse struct {
	Headings []HeadingItem `json:"headings" validate:"required"`
}

// HeadingItem is one heading with its display path.
type HeadingItem struct {
	Path    []string `json:"path" validate:"required"`
	Display string   `json:"display" example:"Work / Reports"`
	Level   int      `json:"level" example:"2"`
	Line    int      `json:"line" example:"7"`
}
