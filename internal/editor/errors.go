package editor

import (
	"errors"
	"fmt"

	"github.com/starford/mdboard/internal/models"
)

// ErrorKind classifies a SerializerError.
type ErrorKind int

const (
	KindTaskNotFound ErrorKind = iota + 1
	KindMissingTaskID
	KindTargetHeadingNotFound
	KindParseFailed
	KindInvalidRequest
)

// Sentinels matched by errors.Is against a *SerializerError of the same kind.
var (
	ErrTaskNotFound          = errors.New("task not found")
	ErrMissingTaskID         = errors.New("task id is required")
	ErrTargetHeadingNotFound = errors.New("target heading not found")
	ErrParseFailed           = errors.New("document could not be parsed")
	ErrInvalidRequest        = errors.New("invalid edit request")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTaskNotFound:
		return ErrTaskNotFound
	case KindMissingTaskID:
		return ErrMissingTaskID
	case KindTargetHeadingNotFound:
		return ErrTargetHeadingNotFound
	case KindParseFailed:
		return ErrParseFailed
	case KindInvalidRequest:
		return ErrInvalidRequest
	}
	return nil
}

// SerializerError is returned by Apply for every request it refuses.
type SerializerError struct {
	Kind   ErrorKind
	TaskID models.TaskID
	Path   models.Path
	Err    error
}

func (e *SerializerError) Error() string {
	msg := "editor: " + e.Kind.sentinel().Error()
	switch e.Kind {
	case KindTaskNotFound:
		msg += fmt.Sprintf(": %s", e.TaskID)
	case KindTargetHeadingNotFound:
		msg += fmt.Sprintf(": %s", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the sentinel for e.Kind.
func (e *SerializerError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (e *SerializerError) Unwrap() error {
	return e.Err
}
