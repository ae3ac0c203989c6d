package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mdboard/internal/models"
	"github.com/starford/mdboard/internal/storage"
	"github.com/starford/mdboard/internal/taskservice"
	"github.com/starford/mdboard/internal/testutil"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()
	_, store := testutil.TestWorkspace(t)
	db := testutil.TestDB(t)
	svc := taskservice.New(store, models.DefaultBoardConfig(), taskservice.WithIndex(db))
	return New(svc), store
}

// callTool invokes a tool handler directly; mcp-go has no in-process call helper.
func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_documents":  srv.listDocuments,
		"get_board":       srv.getBoard,
		"list_headings":   srv.listHeadings,
		"create_task":     srv.createTask,
		"update_task":     srv.updateTask,
		"delete_task":     srv.deleteTask,
		"search_tasks":    srv.searchTasks,
		"get_task_format": srv.getTaskFormat,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateTaskAndBoard(t *testing.T) {
	srv, store := testServer(t)
	testutil.WriteDocument(t, store, "sprint.md", "# Work\n\n# Done\n")

	r := callTool(t, srv, "create_task", map[string]any{
		"document": "sprint.md",
		"title":    "Write report",
		"path":     []any{"Work"},
	})
	if r.IsError {
		t.Fatalf("create_task: %s", resultText(r))
	}
	var m taskservice.Mutation
	if err := json.Unmarshal([]byte(resultText(r)), &m); err != nil {
		t.Fatal(err)
	}
	if m.Task == nil || m.Task.Path.String() != "Work" || m.Task.Status.String() != "todo" {
		t.Fatalf("task = %+v", m.Task)
	}

	r = callTool(t, srv, "get_board", map[string]any{"document": "sprint.md"})
	if r.IsError {
		t.Fatalf("get_board: %s", resultText(r))
	}
	var board taskservice.Board
	if err := json.Unmarshal([]byte(resultText(r)), &board); err != nil {
		t.Fatal(err)
	}
	if board.Checksum != m.Checksum {
		t.Errorf("board checksum = %s, mutation checksum = %s", board.Checksum, m.Checksum)
	}
	if len(board.Columns) == 0 || len(board.Columns[0].Tasks) != 1 {
		t.Errorf("columns = %+v", board.Columns)
	}
}

func TestUpdateTaskMove(t *testing.T) {
	srv, store := testServer(t)
	testutil.WriteDocument(t, store, "sprint.md", "# Work\n- [ ] Write report\n  - status: todo\n# Done\n")
	id := models.NewTaskID(models.NewPath("Work"), "Write report").String()

	r := callTool(t, srv, "update_task", map[string]any{
		"document": "sprint.md",
		"id":       id,
		"status":   "done",
		"path":     []any{"Done"},
	})
	if r.IsError {
		t.Fatalf("update_task: %s", resultText(r))
	}

	data, err := store.Read("sprint.md")
	if err != nil {
		t.Fatal(err)
	}
	want := "# Work\n# Done\n- [x] Write report\n  - status: done\n"
	if string(data) != want {
		t.Errorf("document = %q, want %q", data, want)
	}
}

func TestUpdateTaskErrors(t *testing.T) {
	srv, store := testServer(t)
	testutil.WriteDocument(t, store, "sprint.md", "- [ ] A\n")
	id := models.NewTaskID(models.RootPath(), "A").String()

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"no change", map[string]any{"document": "sprint.md", "id": id}, "required"},
		{"missing id", map[string]any{"document": "sprint.md", "status": "done"}, "id"},
		{"stale checksum", map[string]any{"document": "sprint.md", "id": id, "status": "done", "if_match": "stale"}, "conflict"},
		{"unknown heading", map[string]any{"document": "sprint.md", "id": id, "path": []any{"Nope"}}, "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := callTool(t, srv, "update_task", tt.args)
			if !r.IsError {
				t.Fatalf("expected error, got %s", resultText(r))
			}
			if !strings.Contains(resultText(r), tt.want) {
				t.Errorf("error = %q, want it to mention %q", resultText(r), tt.want)
			}
		})
	}
}

func TestDeleteTask(t *testing.T) {
	srv, store := testServer(t)
	testutil.WriteDocument(t, store, "sprint.md", "- [ ] A\n- [ ] B\n")
	id := models.NewTaskID(models.RootPath(), "A").String()

	r := callTool(t, srv, "delete_task", map[string]any{"document": "sprint.md", "id": id})
	if r.IsError {
		t.Fatalf("delete_task: %s", resultText(r))
	}
	data, _ := store.Read("sprint.md")
	if string(data) != "- [ ] B\n" {
		t.Errorf("document = %q", data)
	}

	r = callTool(t, srv, "delete_task", map[string]any{"document": "sprint.md", "id": id})
	if !r.IsError {
		t.Error("expected error for deleted task")
	}
}

func TestListDocumentsAndHeadings(t *testing.T) {
	srv, store := testServer(t)

	r := callTool(t, srv, "list_documents", map[string]any{})
	if resultText(r) != "no documents found" {
		t.Errorf("empty list = %q", resultText(r))
	}

	testutil.WriteDocument(t, store, "a.md", "# Work\n## Reports\n")
	r = callTool(t, srv, "list_documents", map[string]any{})
	if !strings.Contains(resultText(r), `"a.md"`) {
		t.Errorf("list = %s", resultText(r))
	}

	r = callTool(t, srv, "list_headings", map[string]any{"document": "a.md"})
	if got := resultText(r); got != "Work\nWork / Reports" {
		t.Errorf("headings = %q", got)
	}
}

func TestSearchTasks(t *testing.T) {
	srv, _ := testServer(t)
	callTool(t, srv, "create_task", map[string]any{"document": "a.md", "title": "Fix login bug"})

	r := callTool(t, srv, "search_tasks", map[string]any{"query": "login"})
	if r.IsError || !strings.Contains(resultText(r), "Fix login bug") {
		t.Errorf("search = %s", resultText(r))
	}

	r = callTool(t, srv, "search_tasks", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing query")
	}
}

func TestGetBoardMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_board", map[string]any{"document": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing document")
	}
}

func TestTaskFormat(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_task_format", map[string]any{})
	if !strings.Contains(resultText(r), "kanban:") {
		t.Error("task format should document the kanban front-matter block")
	}

	contents, err := srv.readTaskFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != taskFormatURI || tc.Text != TaskFormat {
		t.Errorf("resource = %+v", contents[0])
	}
}
