package api

import (
	"time"

	"github.com/starford/inbox/internal/models"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Content   string     `json:"content" example:"Buy milk" validate:"required"`
	Tags      []string   `json:"tags" example:"errand"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string   `json:"content" example:"Buy oat milk" validate:"required"`
	Tags    []string `json:"tags" example:"errand"`
}

// CommentRequest is the request body for adding a comment.
type CommentRequest struct {
	Content string `json:"content" example:"done" validate:"required"`
}

// NoteListResponse wraps a page of notes.
type NoteListResponse struct {
	Notes []models.Note `json:"notes" validate:"required"`
	Count int           `json:"count" example:"42" validate:"required"`
}

// CommentListResponse wraps the comments of one note.
type CommentListResponse struct {
	Comments []models.Comment `json:"comments" validate:"required"`
}

// AddCommentResponse is returned after adding a comment. Note is set when
// the comment was also filed as a note.
type AddCommentResponse struct {
	Comment *models.Comment `json:"comment" validate:"required"`
	Note    *models.Note    `json:"note,omitempty"`
}

// TagListResponse wraps catalog nodes.
type TagListResponse struct {
	Tags []models.Tag `json:"tags" validate:"required"`
}

// FlatTagsResponse wraps the distinct flat tags.
type FlatTagsResponse struct {
	Tags []string `json:"tags" validate:"required"`
}

// DetailedTagsResponse wraps per-tag usage statistics.
type DetailedTagsResponse struct {
	Tags []models.DetailedTag `json:"tags" validate:"required"`
}
