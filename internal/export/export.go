// Package export renders the inbox as a directory of Markdown files, one per
// note, with YAML frontmatter and the note's comments appended.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/inbox/internal/checksum"
	"github.com/starford/inbox/internal/models"
	"github.com/starford/inbox/internal/storage"
	"github.com/starford/inbox/internal/store"
)

// Dir is the directory, relative to the export root, holding note files.
const Dir = "notes"

// Result counts what an export run did.
type Result struct {
	Written   int
	Unchanged int
	Removed   int
}

type frontmatter struct {
	ID        int64    `yaml:"id"`
	Tags      []string `yaml:"tags"`
	CreatedAt string   `yaml:"created_at"`
	UpdatedAt string   `yaml:"updated_at"`
}

// Export writes every note to notes/<id>.md. Files whose content is already
// current are left alone and files of notes that no longer exist are removed.
func Export(ctx context.Context, notes store.Notes, comments store.Comments, dst storage.Provider, logger *slog.Logger) (Result, error) {
	var res Result

	existing, err := dst.List(Dir)
	if err != nil {
		return res, fmt.Errorf("export: list: %w", err)
	}
	current := make(map[string]string, len(existing))
	for _, f := range existing {
		current[f.Path] = f.Checksum
	}

	all, err := notes.List(ctx, store.ListParams{})
	if err != nil {
		return res, fmt.Errorf("export: list notes: %w", err)
	}

	keep := make(map[string]bool, len(all))
	for i := range all {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n := &all[i]
		cs, err := comments.ListForNote(ctx, n.ID)
		if err != nil {
			return res, fmt.Errorf("export: comments of %d: %w", n.ID, err)
		}
		data, err := Render(n, cs)
		if err != nil {
			return res, err
		}

		p := NotePath(n.ID)
		keep[p] = true
		if sum, ok := current[p]; ok && sum == checksum.Sum(data) {
			res.Unchanged++
			continue
		}
		if err := dst.Write(p, data); err != nil {
			return res, fmt.Errorf("export: write %s: %w", p, err)
		}
		res.Written++
	}

	for _, f := range existing {
		if keep[f.Path] {
			continue
		}
		if err := dst.Delete(f.Path); err != nil {
			return res, fmt.Errorf("export: remove %s: %w", f.Path, err)
		}
		res.Removed++
	}

	logger.Info("export: done",
		slog.Int("written", res.Written),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("removed", res.Removed),
	)
	return res, nil
}

// NotePath is the export-relative path of a note's file.
func NotePath(id int64) string {
	return path.Join(Dir, fmt.Sprintf("%d.md", id))
}

// Render produces the Markdown document for one note.
func Render(n *models.Note, comments []models.Comment) ([]byte, error) {
	fm, err := yaml.Marshal(frontmatter{
		ID:        n.ID,
		Tags:      n.Tags,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: n.UpdatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("export: frontmatter of %d: %w", n.ID, err)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimRight(n.Content, "\n"))
	b.WriteString("\n")

	if len(comments) > 0 {
		b.WriteString("\n## Comments\n")
		for _, c := range comments {
			fmt.Fprintf(&b, "\n### %s\n\n%s\n", c.CreatedAt.UTC().Format(time.RFC3339), strings.TrimRight(c.Content, "\n"))
		}
	}
	return b.Bytes(), nil
}
