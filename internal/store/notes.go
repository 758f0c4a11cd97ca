package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/inbox/internal/apperr"
	"github.com/starford/inbox/internal/models"
)

const noteColumns = `id, content, tags, created_at, updated_at`

// notBlank rejects strings that are empty after trimming whitespace.
var notBlank = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})

// NoteStore owns the note lifecycle. It keeps no state between calls.
type NoteStore struct {
	db  Backend
	now func() time.Time
}

// NewNoteStore creates a NoteStore on top of db.
func NewNoteStore(db Backend) *NoteStore {
	return &NoteStore{db: db, now: utcNow}
}

func validateNote(content string, tags []string) error {
	if err := validation.Validate(content, notBlank); err != nil {
		return apperr.Invalid("content", err)
	}
	if err := validation.Validate(tags, validation.Each(notBlank)); err != nil {
		return apperr.Invalid("tags", err)
	}
	return nil
}

// Create inserts a new note. createdAt defaults to the current time; the
// note's updated_at starts equal to created_at.
func (s *NoteStore) Create(ctx context.Context, content string, tags []string, createdAt *time.Time) (*models.Note, error) {
	content = strings.TrimSpace(content)
	if err := validateNote(content, tags); err != nil {
		return nil, err
	}
	tags = append([]string{}, tags...)
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, apperr.Invalid("tags", err)
	}

	var created time.Time
	if createdAt != nil && !createdAt.IsZero() {
		if err := validation.Validate(*createdAt, storableTime); err != nil {
			return nil, apperr.Invalid("created_at", err)
		}
		created = createdAt.UTC()
	} else {
		created = s.now()
	}
	n := &models.Note{Content: content, Tags: tags, CreatedAt: created, UpdatedAt: created}

	err = s.db.Tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO notes (content, tags, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, content, string(tagsJSON), formatTime(created), formatTime(created))
		if err != nil {
			return apperr.Storage("insert note", err)
		}
		n.ID, err = res.LastInsertId()
		return apperr.Storage("note id", err)
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Get returns the note with the given id or apperr.ErrNotFound.
func (s *NoteStore) Get(ctx context.Context, id int64) (*models.Note, error) {
	var n *models.Note
	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = getNote(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Update overwrites content and tags. created_at is never touched and
// updated_at never moves before it.
func (s *NoteStore) Update(ctx context.Context, id int64, content string, tags []string) (*models.Note, error) {
	content = strings.TrimSpace(content)
	if err := validateNote(content, tags); err != nil {
		return nil, err
	}
	tags = append([]string{}, tags...)
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, apperr.Invalid("tags", err)
	}

	var n *models.Note
	err = s.db.Tx(ctx, func(tx *sql.Tx) error {
		existing, err := getNote(ctx, tx, id)
		if err != nil {
			return err
		}
		updated := s.now()
		if updated.Before(existing.CreatedAt) {
			updated = existing.CreatedAt
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE notes SET content = ?, tags = ?, updated_at = ? WHERE id = ?
		`, content, string(tagsJSON), formatTime(updated), id); err != nil {
			return apperr.Storage("update note", err)
		}
		n = &models.Note{
			ID:        id,
			Content:   content,
			Tags:      tags,
			CreatedAt: existing.CreatedAt,
			UpdatedAt: updated,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Delete removes a note and, through the foreign key cascade, its comments.
// It reports whether a note existed.
func (s *NoteStore) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
		if err != nil {
			return apperr.Storage("delete note", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return apperr.Storage("delete note", err)
		}
		deleted = affected > 0
		return nil
	})
	return deleted, err
}

// List returns notes newest first (ties by id descending) filtered by p.
func (s *NoteStore) List(ctx context.Context, p ListParams) ([]models.Note, error) {
	query, args := buildListQuery(p)
	var out []models.Note
	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return apperr.Storage("list notes", err)
		}
		defer rows.Close()
		for rows.Next() {
			n, err := scanNote(rows)
			if err != nil {
				return err
			}
			out = append(out, *n)
		}
		return apperr.Storage("list notes", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return nonNilSlice(out), nil
}

// Count returns the number of stored notes.
func (s *NoteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		return apperr.Storage("count notes", tx.QueryRowContext(ctx, `SELECT count(*) FROM notes`).Scan(&count))
	})
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func getNote(ctx context.Context, tx *sql.Tx, id int64) (*models.Note, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("note %d: %w", id, apperr.ErrNotFound)
	}
	return n, err
}

func scanNote(row rowScanner) (*models.Note, error) {
	var (
		n                models.Note
		tagsJSON         string
		created, updated string
	)
	if err := row.Scan(&n.ID, &n.Content, &tagsJSON, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, apperr.Storage("scan note", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		return nil, apperr.Storage("decode tags", err)
	}
	n.Tags = nonNilSlice(n.Tags)
	var err error
	if n.CreatedAt, err = parseTime(created); err != nil {
		return nil, apperr.Storage("decode created_at", err)
	}
	if n.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, apperr.Storage("decode updated_at", err)
	}
	return &n, nil
}
