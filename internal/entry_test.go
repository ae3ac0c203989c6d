package internal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRun_ServesAPIUntilCancelled(t *testing.T) {
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Workspace.Path = filepath.Join(dir, "boards")
	cfg.SQLite.Path = filepath.Join(dir, "index.db")
	if err := os.MkdirAll(cfg.Workspace.Path, 0o755); err != nil {
		t.Fatal(err)
	}
	doc := "# Work\n- [ ] Write report\n"
	if err := os.WriteFile(filepath.Join(cfg.Workspace.Path, "sprint.md"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx,
			WithConfig(cfg),
			WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
			WithListener(ln),
		)
	}()

	waitFor(t, base+"/health/ready")

	resp, err := http.Get(base + "/api/documents")
	if err != nil {
		t.Fatal(err)
	}
	var body struct {
		Documents []struct {
			Path      string `json:"path"`
			TaskCount int    `json:"task_count"`
		} `json:"documents"`
	}
	err = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(body.Documents) != 1 || body.Documents[0].Path != "sprint.md" {
		t.Errorf("documents = %+v", body.Documents)
	}

	resp, err = http.Get(base + "/api/tasks?document=sprint.md")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("tasks status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
}

func waitFor(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s not ready", url)
}
