package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/inbox/internal/apperr"
	"github.com/starford/inbox/internal/models"
)

// CommentStore owns comments. Comments disappear with their note through the
// comments.note_id foreign key cascade.
type CommentStore struct {
	db  Backend
	now func() time.Time
}

// NewCommentStore creates a CommentStore on top of db.
func NewCommentStore(db Backend) *CommentStore {
	return &CommentStore{db: db, now: utcNow}
}

// Add attaches a comment to an existing note.
func (s *CommentStore) Add(ctx context.Context, noteID int64, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if err := validation.Validate(content, notBlank); err != nil {
		return nil, apperr.Invalid("content", err)
	}

	c := &models.Comment{NoteID: noteID, Content: content, CreatedAt: s.now()}
	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM notes WHERE id = ?`, noteID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("note %d: %w", noteID, apperr.ErrNotFound)
		}
		if err != nil {
			return apperr.Storage("lookup note", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO comments (note_id, content, created_at) VALUES (?, ?, ?)
		`, noteID, content, formatTime(c.CreatedAt))
		if err != nil {
			return apperr.Storage("insert comment", err)
		}
		c.ID, err = res.LastInsertId()
		return apperr.Storage("comment id", err)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListForNote returns the note's comments oldest first. A note without
// comments, or a missing note, yields an empty slice.
func (s *CommentStore) ListForNote(ctx context.Context, noteID int64) ([]models.Comment, error) {
	var out []models.Comment
	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, note_id, content, created_at
			FROM comments
			WHERE note_id = ?
			ORDER BY created_at ASC, id ASC
		`, noteID)
		if err != nil {
			return apperr.Storage("list comments", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				c       models.Comment
				created string
			)
			if err := rows.Scan(&c.ID, &c.NoteID, &c.Content, &created); err != nil {
				return apperr.Storage("scan comment", err)
			}
			if c.CreatedAt, err = parseTime(created); err != nil {
				return apperr.Storage("decode created_at", err)
			}
			out = append(out, c)
		}
		return apperr.Storage("list comments", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return nonNilSlice(out), nil
}
