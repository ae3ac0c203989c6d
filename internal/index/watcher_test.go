package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/mdboard/internal/storage"
)

// watcherTestEnv sets up a workspace dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, storage.Provider, *DB) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func indexed(db *DB, path string) func() bool {
	return func() bool {
		cs, _ := db.GetChecksum(path)
		return cs != ""
	}
}

func TestWatcher_NewDocumentIndexed(t *testing.T) {
	dir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, db, store, dir, quietLogger(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "new.md"), []byte("- [ ] Fresh\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, indexed(db, "new.md"), "new document not indexed by watcher")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:new.md" || e == "updated:new.md" {
				return true
			}
		}
		return false
	}, "expected a callback for new.md")

	rows, _ := db.ListTasks(TaskFilter{Document: "new.md"})
	if len(rows) != 1 || rows[0].Title != "Fresh" {
		t.Errorf("tasks = %+v", rows)
	}
}

func TestWatcher_AtomicWriteReindexes(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	_ = store.Write("board.md", []byte("- [ ] One\n"))
	if err := Sync(context.Background(), db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, store, dir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = store.Write("board.md", []byte("- [ ] One\n- [ ] Two\n"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		rows, _ := db.ListTasks(TaskFilter{Document: "board.md"})
		return len(rows) == 2
	}, "rewritten document not reindexed")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	dir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, store, dir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(dir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("- [ ] Deep\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, indexed(db, "subdir/deep.md"),
		"document in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(dir, "del.md"), []byte("- [ ] Delete me\n"), 0o644)
	if err := Sync(context.Background(), db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}
	if !indexed(db, "del.md")() {
		t.Fatal("precondition: document should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, store, dir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !indexed(db, "del.md")()
	}, "deleted document still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(dir, "old.md"), []byte("- [ ] Rename\n"), 0o644)
	if err := Sync(context.Background(), db, store, quietLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, store, dir, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(dir, "old.md"), filepath.Join(dir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !indexed(db, "old.md")() && indexed(db, "renamed.md")()
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
