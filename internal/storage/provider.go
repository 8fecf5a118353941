// Package storage defines the journal directory abstraction.
package storage

import "github.com/starford/daybook/internal/models"

// Provider is the interface for journal file operations.
// Names are plain file names inside the journal directory.
type Provider interface {
	// List returns metadata for every entry file matching the include pattern.
	List() ([]models.EntryMetadata, error)
	// Read returns the raw bytes of the named entry.
	Read(name string) ([]byte, error)
	// Write atomically replaces the named entry.
	Write(name string, content []byte) error
	// Create writes a new entry and fails with apperr.ErrAlreadyExists if it exists.
	Create(name string, content []byte) error
	// Root returns the absolute journal directory.
	Root() string
	// Match reports whether name is an entry file name.
	Match(name string) bool
}
