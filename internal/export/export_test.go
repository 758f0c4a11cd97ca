package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/inbox/internal/models"
	"github.com/starford/inbox/internal/store"
	"github.com/starford/inbox/internal/testutil"
)

func parseFrontmatter(t *testing.T, data []byte) (frontmatter, string) {
	t.Helper()
	parts := bytes.SplitN(data, []byte("---\n"), 3)
	if len(parts) != 3 || len(parts[0]) != 0 {
		t.Fatalf("no frontmatter in %q", data)
	}
	var fm frontmatter
	if err := yaml.Unmarshal(parts[1], &fm); err != nil {
		t.Fatalf("frontmatter: %v", err)
	}
	return fm, string(parts[2])
}

func TestRender(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	n := &models.Note{ID: 7, Content: "Call Bob", Tags: []string{"work", "phone"}, CreatedAt: at, UpdatedAt: at.Add(time.Hour)}

	data, err := Render(n, []models.Comment{{ID: 1, NoteID: 7, Content: "left a message", CreatedAt: at.Add(2 * time.Hour)}})
	if err != nil {
		t.Fatal(err)
	}
	fm, body := parseFrontmatter(t, data)
	if fm.ID != 7 || len(fm.Tags) != 2 || fm.Tags[1] != "phone" {
		t.Errorf("frontmatter = %+v", fm)
	}
	if fm.CreatedAt != "2024-03-01T09:30:00Z" || fm.UpdatedAt != "2024-03-01T10:30:00Z" {
		t.Errorf("times = %s, %s", fm.CreatedAt, fm.UpdatedAt)
	}
	if !strings.HasPrefix(body, "\nCall Bob\n") {
		t.Errorf("body = %q", body)
	}
	if !strings.Contains(body, "## Comments\n\n### 2024-03-01T11:30:00Z\n\nleft a message\n") {
		t.Errorf("comments section missing: %q", body)
	}
}

func TestRender_NoComments(t *testing.T) {
	n := &models.Note{ID: 1, Content: "x", Tags: []string{}}
	data, err := Render(n, nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "## Comments") {
		t.Errorf("unexpected comments section: %q", data)
	}
	fm, _ := parseFrontmatter(t, data)
	if len(fm.Tags) != 0 {
		t.Errorf("tags = %v", fm.Tags)
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestDB(t)
	dir, dst := testutil.TestDir(t)
	notes := store.NewNoteStore(db)
	comments := store.NewCommentStore(db)
	logger := testutil.Logger()

	a, err := notes.Create(ctx, "first", []string{"a"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := notes.Create(ctx, "second", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := comments.Add(ctx, a.ID, "follow up"); err != nil {
		t.Fatal(err)
	}

	res, err := Export(ctx, notes, comments, dst, logger)
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{Written: 2}) {
		t.Errorf("first run = %+v", res)
	}
	data, err := os.ReadFile(filepath.Join(dir, "notes", "1.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "follow up") {
		t.Errorf("note 1 = %q", data)
	}

	res, err = Export(ctx, notes, comments, dst, logger)
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{Unchanged: 2}) {
		t.Errorf("second run = %+v", res)
	}

	if _, err := notes.Update(ctx, a.ID, "first, edited", []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := notes.Delete(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	res, err = Export(ctx, notes, comments, dst, logger)
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{Written: 1, Removed: 1}) {
		t.Errorf("third run = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, NotePath(b.ID))); !os.IsNotExist(err) {
		t.Errorf("deleted note still exported: %v", err)
	}
}

func TestExport_CanceledContext(t *testing.T) {
	db := testutil.TestDB(t)
	_, dst := testutil.TestDir(t)
	notes := store.NewNoteStore(db)
	if _, err := notes.Create(context.Background(), "x", nil, nil); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Export(ctx, notes, store.NewCommentStore(db), dst, testutil.Logger()); err == nil {
		t.Error("expected error on canceled context")
	}
}
