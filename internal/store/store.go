package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/starford/inbox/internal/models"
)

// Backend is the persistence capability the stores are built on: schema
// creation and transactional execution. *DB is the only implementation.
type Backend interface {
	Migrate() error
	Tx(ctx context.Context, fn func(tx *sql.Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Notes defines note lifecycle operations.
// Consumers should depend on these interfaces rather than the concrete types.
type Notes interface {
	Create(ctx context.Context, content string, tags []string, createdAt *time.Time) (*models.Note, error)
	Get(ctx context.Context, id int64) (*models.Note, error)
	Update(ctx context.Context, id int64, content string, tags []string) (*models.Note, error)
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, p ListParams) ([]models.Note, error)
	Count(ctx context.Context) (int, error)
}

// Comments defines comment operations scoped to a note.
type Comments interface {
	Add(ctx context.Context, noteID int64, content string) (*models.Comment, error)
	ListForNote(ctx context.Context, noteID int64) ([]models.Comment, error)
}

// Tags defines the read-only views over the catalog and the flat note tags.
type Tags interface {
	Children(ctx context.Context, parentID int64) ([]models.Tag, error)
	Search(ctx context.Context, prefix string) ([]models.Tag, error)
	ListAllTags(ctx context.Context) ([]string, error)
	ListDetailedTags(ctx context.Context) ([]models.DetailedTag, error)
}

// Catalog is the write side of the tag catalog, used only by seeding.
type Catalog interface {
	Apply(ctx context.Context, entries []models.CatalogEntry, checksum string) error
	Checksum(ctx context.Context) (string, error)
}

// Verify implementations at compile time.
var (
	_ Backend  = (*DB)(nil)
	_ Notes    = (*NoteStore)(nil)
	_ Comments = (*CommentStore)(nil)
	_ Tags     = (*TagIndex)(nil)
	_ Catalog  = (*CatalogSeeder)(nil)
)

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func utcNow() time.Time {
	return time.Now().UTC()
}
