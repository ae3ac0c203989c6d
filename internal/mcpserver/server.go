// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes board tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mdboard/internal/models"
	"github.com/starford/mdboard/internal/taskservice"
)

const taskFormatURI = "mdboard://task-format"

// Server wraps the MCP server with board tools.
type Server struct {
	mcp *server.MCPServer
	svc *taskservice.Service
}

// New creates a new MCP server with all board tools registered.
func New(svc *taskservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"mdboard",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List the board documents in the workspace with their task counts."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_board",
		mcp.WithDescription("Return a document's tasks grouped into status columns, with headings, "+
			"resolved kanban settings and the document checksum."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Relative path of the board document (e.g. boards/sprint.md)")),
	), s.getBoard)

	s.mcp.AddTool(mcp.NewTool("list_headings",
		mcp.WithDescription("List the heading paths of a document. Use them as task paths."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Relative path of the board document")),
	), s.listHeadings)

	s.mcp.AddTool(mcp.NewTool("create_task",
		mcp.WithDescription("Add a checklist task under a heading. Creates the document when missing. "+
			"Read the format via get_task_format or the "+taskFormatURI+" resource first."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Relative path of the board document")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Task title")),
		mcp.WithArray("path", mcp.WithStringItems(), mcp.Description("Heading segments, e.g. [\"Work\", \"Reports\"]. Empty for the root.")),
		mcp.WithString("status", mcp.Description("Status column; defaults to the document's default status")),
	), s.createTask)

	s.mcp.AddTool(mcp.NewTool("update_task",
		mcp.WithDescription("Change a task's title, status or heading. The task id changes when the title or heading does."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Relative path of the board document")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id from get_board")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("status", mcp.Description("New status")),
		mcp.WithArray("path", mcp.WithStringItems(), mcp.Description("New heading segments; an empty array moves the task to the root")),
		mcp.WithString("if_match", mcp.Description("Document checksum from get_board; the edit fails if the document changed")),
	), s.updateTask)

	s.mcp.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task together with its metadata lines."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Relative path of the board document")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Task id from get_board")),
		mcp.WithString("if_match", mcp.Description("Document checksum from get_board")),
	), s.deleteTask)

	s.mcp.AddTool(mcp.NewTool("search_tasks",
		mcp.WithDescription("Full-text search over task titles, heading paths and metadata in all documents."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), s.searchTasks)

	s.mcp.AddTool(mcp.NewTool("get_task_format",
		mcp.WithDescription("Returns the Markdown task format used by board documents. "+
			"Call this before editing documents directly."),
	), s.getTaskFormat)

	s.mcp.AddResource(
		mcp.NewResource(taskFormatURI, "Task Format",
			mcp.WithResourceDescription("How board documents encode tasks, headings and metadata."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTaskFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// pathArg reads an optional heading path. ok is false when the argument is absent.
func pathArg(req mcp.CallToolRequest) (models.Path, bool) {
	if _, present := req.GetArguments()["path"]; !present {
		return models.Path{}, false
	}
	return models.NewPath(req.GetStringSlice("path", nil)...), true
}

func (s *Server) listDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.svc.ListDocuments(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("no documents found"), nil
	}
	return jsonResult(docs)
}

func (s *Server) getBoard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	board, err := s.svc.Board(ctx, doc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(board)
}

func (s *Server) listHeadings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	headings, err := s.svc.Headings(ctx, doc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, 0, len(headings))
	for _, h := range headings {
		lines = append(lines, h.Path.String())
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) createTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, _ := pathArg(req)
	m, err := s.svc.CreateTask(ctx, doc, taskservice.CreateInput{
		Title:  title,
		Path:   path,
		Status: req.GetString("status", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m)
}

func (s *Server) updateTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var in taskservice.UpdateInput
	args := req.GetArguments()
	if _, ok := args["title"]; ok {
		v := req.GetString("title", "")
		in.Title = &v
	}
	if _, ok := args["status"]; ok {
		v := req.GetString("status", "")
		in.Status = &v
	}
	if p, ok := pathArg(req); ok {
		in.Path = &p
	}
	if in.Title == nil && in.Status == nil && in.Path == nil {
		return mcp.NewToolResultError("one of title, status or path is required"), nil
	}

	m, err := s.svc.UpdateTask(ctx, doc, models.TaskID(id), in, req.GetString("if_match", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m)
}

func (s *Server) deleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.DeleteTask(ctx, doc, models.TaskID(id), req.GetString("if_match", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m)
}

func (s *Server) searchTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) getTaskFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TaskFormat), nil
}

func (s *Server) readTaskFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      taskFormatURI,
			MIMEType: "text/markdown",
			Text:     TaskFormat,
		},
	}, nil
}
