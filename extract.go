package divaspr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExtractEntries writes every decodable entry of a into outDir and returns
// the written paths. Entries that fail to decode are skipped and reported.
func ExtractEntries(ctx context.Context, a *Archive, outDir string) ([]string, []*EntryError, error) {
	entries, failed, err := a.Entries(ctx)
	if err != nil {
		return nil, failed, err
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		dest, err := entryPath(outDir, e.Name)
		if err != nil {
			failed = append(failed, &EntryError{Name: e.Name, Err: err})
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return paths, failed, fmt.Errorf("%w: %q: %v", ErrCreateFile, dest, err)
		}
		if err := os.WriteFile(dest, e.Data, 0o644); err != nil {
			return paths, failed, fmt.Errorf("%w: %q: %v", ErrCreateFile, dest, err)
		}
		paths = append(paths, dest)
	}

	return paths, failed, nil
}

// entryPath maps an entry name below outDir, rejecting names that escape it.
func entryPath(outDir, name string) (string, error) {
	rel := filepath.Clean(filepath.FromSlash(strings.ReplaceAll(name, `\`, "/")))
	if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: unsafe entry name %q", ErrEntryTable, name)
	}

	return filepath.Join(outDir, rel), nil
}
