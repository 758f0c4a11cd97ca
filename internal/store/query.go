package store

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/inbox/internal/apperr"
	"github.com/starford/inbox/internal/models"
)

// Listing limits applied by the QueryEngine.
const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// ListParams is the raw predicate set understood by NoteStore.List.
// Limit <= 0 means unbounded.
type ListParams struct {
	Limit         int
	Tag           string     // exact, case-sensitive element of the tags array
	CreatedAfter  *time.Time // inclusive
	CreatedBefore *time.Time // exclusive
}

// buildListQuery renders p as SQL. Tag membership is tested against the
// decoded JSON array, so substrings and case variants never match.
func buildListQuery(p ListParams) (string, []any) {
	var (
		where []string
		args  []any
	)
	if p.Tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)`)
		args = append(args, p.Tag)
	}
	if p.CreatedAfter != nil {
		where = append(where, `created_at >= ?`)
		args = append(args, formatTime(*p.CreatedAfter))
	}
	if p.CreatedBefore != nil {
		where = append(where, `created_at < ?`)
		args = append(args, formatTime(*p.CreatedBefore))
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + noteColumns + ` FROM notes`)
	if len(where) > 0 {
		b.WriteString(` WHERE `)
		b.WriteString(strings.Join(where, ` AND `))
	}
	b.WriteString(` ORDER BY created_at DESC, id DESC LIMIT ?`)

	limit := p.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)
	return b.String(), args
}

// Query is a caller's request for a page of notes. Zero Limit selects
// DefaultLimit; larger than MaxLimit is clamped.
type Query struct {
	Limit         int
	Tag           string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Validate checks the query bounds.
func (q Query) Validate() error {
	if err := validation.Validate(q.Limit, validation.Min(0)); err != nil {
		return apperr.Invalid("limit", err)
	}
	if err := validation.Validate(q.CreatedAfter, storableTime); err != nil {
		return apperr.Invalid("created_after", err)
	}
	if err := validation.Validate(q.CreatedBefore, storableTime); err != nil {
		return apperr.Invalid("created_before", err)
	}
	if q.CreatedAfter != nil && q.CreatedBefore != nil && q.CreatedAfter.After(*q.CreatedBefore) {
		return apperr.Invalid("created_after", errors.New("must not be after created_before"))
	}
	return nil
}

// QueryEngine composes note listing with tag and time-range predicates.
// Pagination is limit-only: callers narrow the time range to see more.
type QueryEngine struct {
	notes Notes
}

// NewQueryEngine creates a QueryEngine over notes.
func NewQueryEngine(notes Notes) *QueryEngine {
	return &QueryEngine{notes: notes}
}

// ListNotes returns at most the effective limit of notes matching q, newest
// first with ties broken by descending id.
func (e *QueryEngine) ListNotes(ctx context.Context, q Query) ([]models.Note, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	limit := q.Limit
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return e.notes.List(ctx, ListParams{
		Limit:         limit,
		Tag:           q.Tag,
		CreatedAfter:  q.CreatedAfter,
		CreatedBefore: q.CreatedBefore,
	})
}
