// Package storage is the directory that Markdown exports are written to.
package storage

import "time"

// FileInfo describes one Markdown file under the root.
type FileInfo struct {
	Path      string // relative to the root, slash separated
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for export file operations.
type Provider interface {
	// List returns every .md file under dir (relative to the root).
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to the root). A missing file
	// is not an error.
	Delete(path string) error
}
