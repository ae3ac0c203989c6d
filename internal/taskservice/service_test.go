package taskservice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/mdboard/internal/apperr"
	"github.com/starford/mdboard/internal/checksum"
	"github.com/starford/mdboard/internal/index"
	"github.com/starford/mdboard/internal/models"
	"github.com/starford/mdboard/internal/storage"
	"github.com/starford/mdboard/internal/testutil"
)

type recorded struct {
	kind, document, id string
}

type recorder struct {
	mu     sync.Mutex
	events []recorded
}

func (r *recorder) record(kind, document, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recorded{kind, document, id})
}

func newService(t *testing.T, opts ...Option) (*Service, storage.Provider, *index.DB, *recorder) {
	t.Helper()
	_, store := testutil.TestWorkspace(t)
	db := testutil.TestDB(t)
	rec := &recorder{}
	opts = append([]Option{WithIndex(db), WithNotifier(rec.record)}, opts...)
	return New(store, models.DefaultBoardConfig(), opts...), store, db, rec
}

func read(t *testing.T, store storage.Provider, path string) string {
	t.Helper()
	data, err := store.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func strPtr(s string) *string { return &s }

func pathPtr(segs ...string) *models.Path {
	p := models.NewPath(segs...)
	return &p
}

const workBoard = `# Work
- [ ] Write report
  - status: todo
# Done
`

func TestCreateTask_NewDocument(t *testing.T) {
	svc, store, db, rec := newService(t)
	ctx := context.Background()

	m, err := svc.CreateTask(ctx, "inbox.md", CreateInput{Title: "New"})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if got := read(t, store, "inbox.md"); got != "- [ ] New\n  - status: todo" {
		t.Errorf("document = %q", got)
	}
	if m.Task == nil || m.Task.Title != "New" || m.Task.Status.String() != "todo" {
		t.Errorf("task = %+v", m.Task)
	}
	if m.Checksum != checksum.Sum([]byte(read(t, store, "inbox.md"))) {
		t.Error("checksum does not match stored content")
	}

	rows, _ := db.ListTasks(index.TaskFilter{Document: "inbox.md"})
	if len(rows) != 1 {
		t.Errorf("indexed tasks = %d, want 1", len(rows))
	}
	want := []recorded{{TaskCreated, "inbox.md", string(models.NewTaskID(models.RootPath(), "New"))}}
	if diff := cmp.Diff(want, rec.events, cmp.AllowUnexported(recorded{})); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateTask_DoneStatusChecksBox(t *testing.T) {
	svc, store, _, _ := newService(t)
	testutil.WriteDocument(t, store, "b.md", "# Done\n")

	_, err := svc.CreateTask(context.Background(), "b.md", CreateInput{Title: "Shipped", Path: models.NewPath("Done"), Status: "Done"})
	if err != nil {
		t.Fatal(err)
	}
	if got := read(t, store, "b.md"); got != "# Done\n- [x] Shipped\n  - status: done\n" {
		t.Errorf("document = %q", got)
	}
}

func TestCreateTask_FrontmatterDefaults(t *testing.T) {
	svc, store, _, _ := newService(t)
	testutil.WriteDocument(t, store, "b.md", "---\nkanban:\n  defaultStatus: inbox\n  syncCheckboxWithDone: false\n---\n")

	m, err := svc.CreateTask(context.Background(), "b.md", CreateInput{Title: "T", Status: "done"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Task.Checked {
		t.Error("checkbox should stay unchecked when syncing is disabled")
	}

	m, err = svc.CreateTask(context.Background(), "b.md", CreateInput{Title: "U"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Task.Status.String() != "inbox" {
		t.Errorf("status = %q, want inbox", m.Task.Status)
	}
}

func TestCreateTask_Validation(t *testing.T) {
	svc, store, _, _ := newService(t)
	testutil.WriteDocument(t, store, "b.md", "# A\n")
	ctx := context.Background()

	cases := []struct {
		name string
		doc  string
		in   CreateInput
	}{
		{"blank title", "b.md", CreateInput{Title: " "}},
		{"unknown heading", "b.md", CreateInput{Title: "T", Path: models.NewPath("Nope")}},
		{"not markdown", "b.txt", CreateInput{Title: "T"}},
		{"escapes workspace", "../b.md", CreateInput{Title: "T"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTask(ctx, tc.doc, tc.in)
			if !errors.Is(err, apperr.ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
	if got := read(t, store, "b.md"); got != "# A\n" {
		t.Errorf("document changed: %q", got)
	}
}

func TestUpdateTask_Move(t *testing.T) {
	svc, store, db, rec := newService(t)
	testutil.WriteDocument(t, store, "work.md", workBoard)
	id := models.NewTaskID(models.NewPath("Work"), "Write report")

	m, err := svc.UpdateTask(context.Background(), "work.md", id, UpdateInput{
		Status: strPtr("done"),
		Path:   pathPtr("Done"),
	}, "")
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	want := "# Work\n# Done\n- [x] Write report\n  - status: done\n"
	if got := read(t, store, "work.md"); got != want {
		t.Errorf("document = %q, want %q", got, want)
	}
	newID := models.NewTaskID(models.NewPath("Done"), "Write report")
	if m.Task == nil || m.Task.ID != newID {
		t.Errorf("task = %+v, want id %s", m.Task, newID)
	}
	rows, _ := db.ListTasks(index.TaskFilter{Status: "done"})
	if len(rows) != 1 || rows[0].ID != newID {
		t.Errorf("index rows = %+v", rows)
	}
	if len(rec.events) != 1 || rec.events[0].kind != TaskUpdated || rec.events[0].id != string(newID) {
		t.Errorf("events = %+v", rec.events)
	}
}

func TestUpdateTask_IfMatch(t *testing.T) {
	svc, store, _, _ := newService(t)
	testutil.WriteDocument(t, store, "work.md", workBoard)
	id := models.NewTaskID(models.NewPath("Work"), "Write report")
	ctx := context.Background()

	_, err := svc.UpdateTask(ctx, "work.md", id, UpdateInput{Title: strPtr("x")}, "stale")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if read(t, store, "work.md") != workBoard {
		t.Error("document changed despite conflict")
	}

	current := checksum.Sum([]byte(workBoard))
	if _, err := svc.UpdateTask(ctx, "work.md", id, UpdateInput{Title: strPtr("Final report")}, current); err != nil {
		t.Fatalf("UpdateTask with current checksum: %v", err)
	}
	if !strings.Contains(read(t, store, "work.md"), "- [ ] Final report") {
		t.Error("title not updated")
	}
}

func TestUpdateTask_Errors(t *testing.T) {
	svc, store, _, _ := newService(t)
	testutil.WriteDocument(t, store, "work.md", workBoard)
	id := models.NewTaskID(models.NewPath("Work"), "Write report")
	ctx := context.Background()

	cases := []struct {
		name string
		doc  string
		id   models.TaskID
		in   UpdateInput
		want error
	}{
		{"missing document", "nope.md", id, UpdateInput{Title: strPtr("x")}, apperr.ErrNotFound},
		{"missing task", "work.md", "000000000000", UpdateInput{Title: strPtr("x")}, apperr.ErrNotFound},
		{"missing id", "work.md", "", UpdateInput{Title: strPtr("x")}, apperr.ErrInvalid},
		{"blank status", "work.md", id, UpdateInput{Status: strPtr(" ")}, apperr.ErrInvalid},
		{"blank title", "work.md", id, UpdateInput{Title: strPtr("")}, apperr.ErrInvalid},
		{"unknown heading", "work.md", id, UpdateInput{Path: pathPtr("Later")}, apperr.ErrInvalid},
		{"multi-line title", "work.md", id, UpdateInput{Title: strPtr("x\n# Injected")}, apperr.ErrInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpdateTask(ctx, tc.doc, tc.id, tc.in, "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if got := read(t, store, "work.md"); got != workBoard {
		t.Errorf("document changed: %q", got)
	}
}

func TestDeleteTask(t *testing.T) {
	svc, store, db, rec := newService(t)
	testutil.WriteDocument(t, store, "work.md", workBoard)
	id := models.NewTaskID(models.NewPath("Work"), "Write report")

	m, err := svc.DeleteTask(context.Background(), "work.md", id, "")
	if err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if m.Task != nil {
		t.Errorf("task = %+v, want nil", m.Task)
	}
	if got := read(t, store, "work.md"); got != "# Work\n# Done\n" {
		t.Errorf("document = %q", got)
	}
	rows, _ := db.ListTasks(index.TaskFilter{})
	if len(rows) != 0 {
		t.Errorf("index rows = %+v", rows)
	}
	if len(rec.events) != 1 || rec.events[0].kind != TaskDeleted {
		t.Errorf("events = %+v", rec.events)
	}

	if _, err := svc.DeleteTask(context.Background(), "work.md", id, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentCreatesAreSerialized(t *testing.T) {
	svc, store, _, _ := newService(t)
	testutil.WriteDocument(t, store, "b.md", "# Inbox\n")

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			title := "Task " + string(rune('A'+i))
			if _, err := svc.CreateTask(context.Background(), "b.md", CreateInput{Title: title, Path: models.NewPath("Inbox")}); err != nil {
				t.Errorf("CreateTask: %v", err)
			}
		}()
	}
	wg.Wait()

	b, err := svc.Board(context.Background(), "b.md")
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, c := range b.Columns {
		total += len(c.Tasks)
	}
	if total != n {
		t.Errorf("tasks = %d, want %d", total, n)
	}
}

func TestReadOperations(t *testing.T) {
	svc, store, _, _ := newService(t)
	testutil.WriteDocument(t, store, "work.md", workBoard)
	ctx := context.Background()

	hs, err := svc.Headings(ctx, "work.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(hs) != 2 || hs[1].Path.String() != "Done" {
		t.Errorf("headings = %+v", hs)
	}

	cfg, err := svc.Config(ctx, "work.md")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(models.DefaultBoardConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	task, err := svc.Task(ctx, "work.md", models.NewTaskID(models.NewPath("Work"), "Write report"))
	if err != nil || task.StartLine != 2 || task.EndLine != 3 {
		t.Errorf("task = %+v, err = %v", task, err)
	}

	if _, err := svc.Board(ctx, "missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing document err = %v", err)
	}
}

func TestListDocumentsAndSearch(t *testing.T) {
	svc, store, db, _ := newService(t)
	testutil.WriteDocument(t, store, "a.md", "- [ ] Alpha\n- [ ] Beta\n")
	testutil.WriteDocument(t, store, "b.md", "- [ ] Gamma\n")
	if err := index.Sync(context.Background(), db, store, quiet(), svc.ParseOptions()...); err != nil {
		t.Fatal(err)
	}

	docs, err := svc.ListDocuments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	counts := map[string]int{}
	for _, d := range docs {
		counts[d.Path] = d.TaskCount
	}
	if diff := cmp.Diff(map[string]int{"a.md": 2, "b.md": 1}, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}

	hits, err := svc.Search(context.Background(), "Gamma", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Document != "b.md" {
		t.Errorf("hits = %+v", hits)
	}
	if _, err := svc.Search(context.Background(), " ", 10); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("blank query err = %v", err)
	}
}

func TestWithoutIndex(t *testing.T) {
	_, store := testutil.TestWorkspace(t)
	svc := New(store, models.DefaultBoardConfig())
	if _, err := svc.CreateTask(context.Background(), "b.md", CreateInput{Title: "T"}); err != nil {
		t.Fatalf("CreateTask without index: %v", err)
	}
	if _, err := svc.ListTasks(context.Background(), index.TaskFilter{}); err == nil {
		t.Error("expected error listing tasks without an index")
	}
	docs, err := svc.ListDocuments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].TaskCount != 1 {
		t.Errorf("documents = %+v, want one document with one task", docs)
	}
}
