package models

import "github.com/starford/mdboard/internal/checksum"

const taskIDLength = 12

// TaskID identifies a task by its path and title. The same (path, title)
// pair always yields the same id.
type TaskID string

// NewTaskID derives the id from the SHA-256 digest of "{path}::{title}".
func NewTaskID(path Path, title string) TaskID {
	return TaskID(checksum.Short([]byte(path.String()+"::"+title), taskIDLength))
}

// String returns the id as a string.
func (id TaskID) String() string {
	return string(id)
}

// Task is a checklist item recovered from a board document.
type Task struct {
	ID       TaskID            `json:"id"`
	Title    string            `json:"title"`
	Status   Status            `json:"status"`
	Path     Path              `json:"path"`
	Checked  bool              `json:"checked"`
	Metadata map[string]string `json:"metadata"`
}

// IsDone reports whether the task's status is in doneStatuses.
func (t Task) IsDone(doneStatuses []string) bool {
	return t.Status.In(doneStatuses)
}
