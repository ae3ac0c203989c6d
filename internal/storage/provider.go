// Package storage defines the workspace file-system abstraction for board documents.
package storage

import (
	"context"

	"github.com/starford/mdboard/internal/models"
)

// UpdateFunc receives the current content of a document (nil when the file
// does not exist yet) and returns the content to store.
type UpdateFunc func(current []byte) ([]byte, error)

// Provider is the interface for workspace file operations.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to the workspace root).
	List(dir string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the workspace root).
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	// Update runs a read-modify-write cycle on path while holding an
	// exclusive lock shared with other processes, and returns the stored
	// content.
	Update(ctx context.Context, path string, fn UpdateFunc) ([]byte, error)
}
