package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/inbox/internal/apperr"
	"github.com/starford/inbox/internal/store"
	"github.com/starford/inbox/internal/testutil"
)

func writeCatalog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestDB(t)
	seeder := store.NewCatalogSeeder(db)
	idx := store.NewTagIndex(db)
	logger := testutil.Logger()
	path := filepath.Join(t.TempDir(), "catalog.yaml")

	applied, err := Sync(ctx, seeder, path, logger)
	if err != nil || applied {
		t.Fatalf("missing file: applied=%v err=%v", applied, err)
	}

	writeCatalog(t, path, "tags:\n  - name: work\n    children: [urgent]\n")
	applied, err = Sync(ctx, seeder, path, logger)
	if err != nil || !applied {
		t.Fatalf("first sync: applied=%v err=%v", applied, err)
	}
	got, err := idx.Search(ctx, "wo")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("search = %+v, want work and work/urgent", got)
	}

	applied, err = Sync(ctx, seeder, path, logger)
	if err != nil || applied {
		t.Errorf("unchanged file: applied=%v err=%v", applied, err)
	}
}

func TestSync_InvalidFileKeepsCatalog(t *testing.T) {
	ctx := context.Background()
	db := testutil.TestDB(t)
	seeder := store.NewCatalogSeeder(db)
	logger := testutil.Logger()
	path := filepath.Join(t.TempDir(), "catalog.yaml")

	writeCatalog(t, path, "tags: [home]\n")
	if _, err := Sync(ctx, seeder, path, logger); err != nil {
		t.Fatal(err)
	}
	writeCatalog(t, path, "tags: [a/b]\n")
	_, err := Sync(ctx, seeder, path, logger)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}

	roots, err := store.NewTagIndex(db).Children(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 1 || roots[0].Name != "home" {
		t.Errorf("roots = %+v, want [home]", roots)
	}
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_ResyncsOnChange(t *testing.T) {
	db := testutil.TestDB(t)
	seeder := store.NewCatalogSeeder(db)
	idx := store.NewTagIndex(db)
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, seeder, path, testutil.Logger(), func(kind, _ string) {
		mu.Lock()
		events = append(events, kind)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	// Unrelated files in the same directory are ignored.
	writeCatalog(t, filepath.Join(dir, "other.yaml"), "tags: [nope]\n")
	writeCatalog(t, path, "tags: [inbox, someday]\n")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		roots, _ := idx.Children(context.Background(), 0)
		return len(roots) == 2
	}, "catalog not applied by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1 && events[0] == EventUpdated
	}, "expected a single catalog.updated callback")
}
