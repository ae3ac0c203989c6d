package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/mdboard/internal/models"
)

// runCLI runs the app against a workspace in dir and returns stdout.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(cfgPath); err != nil {
		content := "workspace:\n  path: " + filepath.Join(dir, "boards") + "\n" +
			"sqlite:\n  path: " + filepath.Join(dir, "index.db") + "\n"
		if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	err := app.Run(context.Background(), append([]string{"mdboard", "--config", cfgPath}, args...))
	return buf.String(), err
}

func TestAddListEditRemove(t *testing.T) {
	dir := t.TempDir()
	boards := filepath.Join(dir, "boards")
	if err := os.MkdirAll(boards, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(boards, "sprint.md"), []byte("# Work\n\n# Done\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := runCLI(t, dir, "add", "--path", "Work", "sprint.md", "Write report")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	id := models.NewTaskID(models.NewPath("Work"), "Write report").String()
	if !strings.HasPrefix(got, id+"\ttodo\tWrite report\tWork") {
		t.Errorf("add output = %q", got)
	}

	got, err = runCLI(t, dir, "ls", "sprint.md")
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(got, "todo (1)") || !strings.Contains(got, "[ ] "+id+"  Write report") {
		t.Errorf("ls output = %q", got)
	}

	got, err = runCLI(t, dir, "edit", "--status", "done", "--path", "Done", "sprint.md", id)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	movedID := models.NewTaskID(models.NewPath("Done"), "Write report").String()
	if !strings.HasPrefix(got, movedID+"\tdone") {
		t.Errorf("edit output = %q", got)
	}

	got, err = runCLI(t, dir, "headings", "sprint.md")
	if err != nil {
		t.Fatalf("headings: %v", err)
	}
	if got != "Work\nDone\n" {
		t.Errorf("headings output = %q", got)
	}

	if _, err := runCLI(t, dir, "rm", "sprint.md", movedID); err != nil {
		t.Fatalf("rm: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(boards, "sprint.md"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "Write report") {
		t.Errorf("task still present:\n%s", data)
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"ls without document", []string{"ls"}},
		{"edit without changes", []string{"edit", "a.md", "abc"}},
		{"rm unknown document", []string{"rm", "missing.md", "abc"}},
		{"add non-markdown", []string{"add", "notes.txt", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runCLI(t, dir, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDocs(t *testing.T) {
	dir := t.TempDir()
	if _, err := runCLI(t, dir, "add", "a.md", "First"); err != nil {
		t.Fatal(err)
	}
	got, err := runCLI(t, dir, "docs")
	if err != nil {
		t.Fatal(err)
	}
	if got != "a.md\t1 tasks\n" {
		t.Errorf("docs output = %q", got)
	}
}
