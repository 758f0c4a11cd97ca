package store

import (
	"context"
	"database/sql"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/inbox/internal/apperr"
	"github.com/starford/inbox/internal/models"
)

// TagIndex serves the catalog tree and the views derived from flat note
// tags. It never writes.
type TagIndex struct {
	db Backend
}

// NewTagIndex creates a TagIndex on top of db.
func NewTagIndex(db Backend) *TagIndex {
	return &TagIndex{db: db}
}

// Children returns the direct children of parentID sorted by name.
// parentID 0 selects the roots, stored as NULL by the seeder or as 0 by
// external tools; any other id must exist.
func (t *TagIndex) Children(ctx context.Context, parentID int64) ([]models.Tag, error) {
	var out []models.Tag
	err := t.db.Tx(ctx, func(tx *sql.Tx) error {
		var (
			rows *sql.Rows
			err  error
		)
		if parentID != 0 {
			var one int
			err = tx.QueryRowContext(ctx, `SELECT 1 FROM tags WHERE id = ?`, parentID).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.ErrNotFound
			}
			if err != nil {
				return apperr.Storage("lookup parent tag", err)
			}
		}
		if parentID == 0 {
			rows, err = tx.QueryContext(ctx, `
				SELECT id, name, COALESCE(parent_id, 0), full_path
				FROM tags WHERE parent_id IS NULL OR parent_id = 0
				ORDER BY name ASC, id ASC
			`)
		} else {
			rows, err = tx.QueryContext(ctx, `
				SELECT id, name, COALESCE(parent_id, 0), full_path
				FROM tags WHERE parent_id = ?
				ORDER BY name ASC, id ASC
			`, parentID)
		}
		if err != nil {
			return apperr.Storage("child tags", err)
		}
		out, err = scanTags(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nonNilSlice(out), nil
}

// Search returns every catalog node whose name starts with prefix, plus the
// full subtree below each match, deduplicated. The closure walks downward
// only (child.parent_id = match.id); ancestors of a match appear only when
// they match the prefix themselves. Matching is case-sensitive and literal.
func (t *TagIndex) Search(ctx context.Context, prefix string) ([]models.Tag, error) {
	if err := validation.Validate(prefix, validation.Required); err != nil {
		return nil, apperr.Invalid("prefix", err)
	}
	var out []models.Tag
	err := t.db.Tx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			WITH RECURSIVE closure(id) AS (
				SELECT id FROM tags WHERE substr(name, 1, length(?)) = ?
				UNION
				SELECT child.id FROM tags child JOIN closure c ON child.parent_id = c.id
			)
			SELECT t.id, t.name, COALESCE(t.parent_id, 0), t.full_path
			FROM tags t JOIN closure c ON c.id = t.id
			ORDER BY t.full_path ASC, t.id ASC
		`, prefix, prefix)
		if err != nil {
			return apperr.Storage("search tags", err)
		}
		out, err = scanTags(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nonNilSlice(out), nil
}

// ListAllTags returns the distinct flat tag strings used by any note, sorted.
func (t *TagIndex) ListAllTags(ctx context.Context) ([]string, error) {
	var out []string
	err := t.db.Tx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT DISTINCT j.value
			FROM notes n, json_each(n.tags) j
			WHERE json_valid(n.tags)
			ORDER BY j.value ASC
		`)
		if err != nil {
			return apperr.Storage("all tags", err)
		}
		defer rows.Close()
		for rows.Next() {
			var tag string
			if err := rows.Scan(&tag); err != nil {
				return apperr.Storage("scan tag", err)
			}
			out = append(out, tag)
		}
		return apperr.Storage("all tags", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return nonNilSlice(out), nil
}

// ListDetailedTags returns, per flat tag, how many notes carry it and the
// newest updated_at among them, most recently touched first.
func (t *TagIndex) ListDetailedTags(ctx context.Context) ([]models.DetailedTag, error) {
	var out []models.DetailedTag
	err := t.db.Tx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT j.value, COUNT(DISTINCT n.id), MAX(n.updated_at) AS latest
			FROM notes n, json_each(n.tags) j
			WHERE json_valid(n.tags)
			GROUP BY j.value
			ORDER BY latest DESC, j.value ASC
		`)
		if err != nil {
			return apperr.Storage("detailed tags", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				d      models.DetailedTag
				latest string
			)
			if err := rows.Scan(&d.Tag, &d.Count, &latest); err != nil {
				return apperr.Storage("scan detailed tag", err)
			}
			if d.LatestUpdatedAt, err = parseTime(latest); err != nil {
				return apperr.Storage("decode updated_at", err)
			}
			out = append(out, d)
		}
		return apperr.Storage("detailed tags", rows.Err())
	})
	if err != nil {
		return nil, err
	}
	return nonNilSlice(out), nil
}

func scanTags(rows *sql.Rows) ([]models.Tag, error) {
	defer rows.Close()
	var out []models.Tag
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.ParentID, &tag.FullPath); err != nil {
			return nil, apperr.Storage("scan catalog tag", err)
		}
		out = append(out, tag)
	}
	return out, apperr.Storage("scan catalog tags", rows.Err())
}
