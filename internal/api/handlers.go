package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mdboard/internal/index"
	"github.com/starford/mdboard/internal/models"
	"github.com/starford/mdboard/internal/taskservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *taskservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *taskservice.Service) *Handler {
	return &Handler{svc: svc}
}

// documentPath extracts the document path from the wildcard part of the URL.
// Encoded slashes (boards%2Fsprint.md) are accepted.
func documentPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ifMatch returns the If-Match header without surrounding quotes.
func ifMatch(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("If-Match"))
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}

func setETag(w http.ResponseWriter, checksum string) {
	w.Header().Set("ETag", `"`+checksum+`"`)
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List board documents in the workspace
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListDocuments(r.Context())
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs})
}

// GetBoard handles GET /api/documents/*.
//
//	@Summary		Get the kanban board of a document
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	taskservice.Board
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.svc.Board(r.Context(), documentPath(r))
	if err != nil {
		writeError(w, "get board", err)
		return
	}
	setETag(w, board.Checksum)
	writeJSON(w, http.StatusOK, board)
}

// ListHeadings handles GET /api/headings/*.
//
//	@Summary		List the headings of a document
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	HeadingsResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/headings/{path} [get]
func (h *Handler) ListHeadings(w http.ResponseWriter, r *http.Request) {
	headings, err := h.svc.Headings(r.Context(), documentPath(r))
	if err != nil {
		writeError(w, "list headings", err)
		return
	}
	items := make([]HeadingItem, 0, len(headings))
	for _, hd := range headings {
		items = append(items, HeadingItem{
			Path:    hd.Path.Segments(),
			Display: hd.Path.String(),
			Level:   hd.Level,
			Line:    hd.Line,
		})
	}
	writeJSON(w, http.StatusOK, HeadingsResponse{Headings: items})
}

// GetTask handles GET /api/tasks/{id}.
//
//	@Summary		Get one task
//	@Tags			tasks
//	@Produce		json
//	@Param			id			path		string	true	"Task id"
//	@Param			document	query		string	true	"Document path"
//	@Success		200			{object}	parser.Task
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id} [get]
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.svc.Task(r.Context(), r.URL.Query().Get("document"), models.TaskID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, "get task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ListTasks handles GET /api/tasks.
//
//	@Summary		List indexed tasks
//	@Tags			tasks
//	@Produce		json
//	@Param			document	query		string	false	"Restrict to one document"
//	@Param			status		query		string	false	"Restrict to one status"
//	@Param			limit		query		int		false	"Maximum number of tasks"
//	@Success		200			{object}	TaskListResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, err := h.svc.ListTasks(r.Context(), index.TaskFilter{
		Document: q.Get("document"),
		Status:   q.Get("status"),
		Limit:    queryInt(r, "limit"),
	})
	if err != nil {
		writeError(w, "list tasks", err)
		return
	}
	items := make([]TaskItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, taskItem(row))
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: items})
}

// CreateTask handles POST /api/tasks.
//
//	@Summary		Add a task to a document
//	@Description	Creates the document when it does not exist yet.
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTaskRequest	true	"Task to create"
//	@Success		201		{object}	taskservice.Mutation
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [post]
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m, err := h.svc.CreateTask(r.Context(), req.Document, taskservice.CreateInput{
		Title:  req.Title,
		Path:   req.Path,
		Status: req.Status,
	})
	if err != nil {
		writeError(w, "create task", err)
		return
	}
	setETag(w, m.Checksum)
	writeJSON(w, http.StatusCreated, m)
}

// UpdateTask handles PATCH /api/tasks/{id}.
//
//	@Summary		Change a task's title, status or heading
//	@Description	Supports optimistic concurrency via the If-Match header carrying the document checksum.
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Task id"
//	@Param			If-Match	header		string				false	"Document checksum"
//	@Param			body		body		UpdateTaskRequest	true	"Fields to change"
//	@Success		200			{object}	taskservice.Mutation
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id} [patch]
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m, err := h.svc.UpdateTask(r.Context(), req.Document, models.TaskID(chi.URLParam(r, "id")), req.Input(), ifMatch(r))
	if err != nil {
		writeError(w, "update task", err)
		return
	}
	setETag(w, m.Checksum)
	writeJSON(w, http.StatusOK, m)
}

// DeleteTask handles DELETE /api/tasks/{id}.
//
//	@Summary		Delete a task and its metadata
//	@Tags			tasks
//	@Param			id			path	string	true	"Task id"
//	@Param			document	query	string	true	"Document path"
//	@Param			If-Match	header	string	false	"Document checksum"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id} [delete]
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.DeleteTask(r.Context(), r.URL.Query().Get("document"), models.TaskID(chi.URLParam(r, "id")), ifMatch(r))
	if err != nil {
		writeError(w, "delete task", err)
		return
	}
	setETag(w, m.Checksum)
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search over task titles, headings and metadata
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	hits, err := h.svc.Search(r.Context(), q, queryInt(r, "limit"))
	if err != nil {
		writeError(w, "search", err)
		return
	}
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, SearchResult{
			Document: hit.Document,
			ID:       string(hit.TaskID),
			Title:    hit.Title,
			Status:   hit.Status,
			Path:     hit.Path.Segments(),
			Snippet:  hit.Snippet,
		})
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
