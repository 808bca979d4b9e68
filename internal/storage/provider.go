// Package storage defines the claims file-system abstraction.
package storage

import "github.com/starford/claimline/internal/models"

// Provider is the interface for file operations under a single root.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Resolve maps a root-relative path to an absolute one, rejecting escapes.
	Resolve(rel string) (string, error)
	// List returns metadata for every .json file under dir (relative to root).
	List(dir string, recursive bool) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
}
