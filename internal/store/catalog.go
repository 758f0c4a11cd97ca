package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/inbox/internal/apperr"
	"github.com/starford/inbox/internal/models"
)

// CatalogSeeder is the only writer of the tag catalog. It reconciles the
// tags table with an externally maintained catalog file.
type CatalogSeeder struct {
	db  Backend
	now func() time.Time
}

// NewCatalogSeeder creates a CatalogSeeder on top of db.
func NewCatalogSeeder(db Backend) *CatalogSeeder {
	return &CatalogSeeder{db: db, now: utcNow}
}

// Apply makes the catalog equal to entries in one transaction. Entries must be
// parent-first. Nodes are keyed by full path: surviving paths keep their id,
// new paths are inserted, vanished paths are deleted.
func (s *CatalogSeeder) Apply(ctx context.Context, entries []models.CatalogEntry, checksum string) error {
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		existing, err := catalogPaths(ctx, tx)
		if err != nil {
			return err
		}

		ids := make(map[string]int64, len(entries))
		for _, e := range entries {
			var parent any
			if e.ParentPath != "" {
				pid, ok := ids[e.ParentPath]
				if !ok {
					return apperr.Invalid("catalog", fmt.Errorf("parent %q of %q is not defined before it", e.ParentPath, e.Path))
				}
				parent = pid
			}
			if _, dup := ids[e.Path]; dup {
				return apperr.Invalid("catalog", fmt.Errorf("duplicate path %q", e.Path))
			}

			if id, ok := existing[e.Path]; ok {
				if _, err := tx.ExecContext(ctx, `UPDATE tags SET name = ?, parent_id = ? WHERE id = ?`, e.Name, parent, id); err != nil {
					return apperr.Storage("update catalog tag", err)
				}
				ids[e.Path] = id
				continue
			}
			res, err := tx.ExecContext(ctx, `INSERT INTO tags (name, parent_id, full_path) VALUES (?, ?, ?)`, e.Name, parent, e.Path)
			if err != nil {
				return apperr.Storage("insert catalog tag", err)
			}
			if ids[e.Path], err = res.LastInsertId(); err != nil {
				return apperr.Storage("catalog tag id", err)
			}
		}

		for path, id := range existing {
			if _, keep := ids[path]; keep {
				continue
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id); err != nil {
				return apperr.Storage("delete catalog tag", err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO catalog_state (id, checksum, applied_at) VALUES (1, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				checksum   = excluded.checksum,
				applied_at = excluded.applied_at
		`, checksum, formatTime(s.now()))
		return apperr.Storage("record catalog checksum", err)
	})
}

// Checksum returns the checksum recorded by the last Apply, or "" if the
// catalog was never seeded.
func (s *CatalogSeeder) Checksum(ctx context.Context) (string, error) {
	var cs string
	err := s.db.Tx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT checksum FROM catalog_state WHERE id = 1`).Scan(&cs)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return apperr.Storage("catalog checksum", err)
	})
	return cs, err
}

func catalogPaths(ctx context.Context, tx *sql.Tx) (map[string]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, full_path FROM tags`)
	if err != nil {
		return nil, apperr.Storage("catalog paths", err)
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var (
			id   int64
			path string
		)
		if err := rows.Scan(&id, &path); err != nil {
			return nil, apperr.Storage("scan catalog path", err)
		}
		out[path] = id
	}
	return out, apperr.Storage("catalog paths", rows.Err())
}
