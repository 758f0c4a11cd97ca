package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/starford/inbox/internal/checksum"
	"github.com/starford/inbox/internal/store"
)

// Sync brings the catalog tables up to date with the file at path.
// It reports whether anything was applied:
//   - a missing file leaves the catalog as it is
//   - an unchanged checksum skips parsing entirely
//   - a parse error is returned and nothing is written
func Sync(ctx context.Context, seeder store.Catalog, path string, logger *slog.Logger) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("catalog: file not found, skipping", slog.String("path", path))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	cs := checksum.Sum(data)
	prev, err := seeder.Checksum(ctx)
	if err != nil {
		return false, err
	}
	if prev == cs {
		logger.Debug("catalog: unchanged", slog.String("path", path))
		return false, nil
	}

	entries, err := Parse(data)
	if err != nil {
		return false, err
	}
	if err := seeder.Apply(ctx, entries, cs); err != nil {
		return false, err
	}
	logger.Info("catalog: applied",
		slog.String("path", path),
		slog.Int("tags", len(entries)),
		slog.String("checksum", checksum.Short(cs)))
	return true, nil
}
