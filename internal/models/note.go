// Package models defines the domain types for the inbox.
package models

import "time"

// Note is a timestamped free-text entry with ad-hoc tags.
type Note struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tag is a node of the hierarchical tag catalog. ParentID is 0 for roots.
type Tag struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID int64  `json:"parent_id"`
	FullPath string `json:"path"`
}

// Comment is a reply attached to one note.
type Comment struct {
	ID        int64     `json:"id"`
	NoteID    int64     `json:"note_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DetailedTag summarises one flat tag string across all notes.
type DetailedTag struct {
	Tag             string    `json:"tag"`
	Count           int       `json:"count"`
	LatestUpdatedAt time.Time `json:"latest_updated_at"`
}

// CatalogEntry is one node of a catalog seed file, flattened.
// ParentPath is empty for roots.
type CatalogEntry struct {
	Name       string
	Path       string
	ParentPath string
}
