package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes size bytes of filler media content to path, creating
// parent directories. Sizes below one byte write a single byte so the file
// is never empty.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	size = max(size, 1)
	mkdirParent(t, path)
	if err := os.WriteFile(path, bytes.Repeat([]byte{'M'}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteSparseFile creates path with an apparent size of size bytes without
// allocating them, for tests around the movie size threshold.
func WriteSparseFile(t testing.TB, path string, size int64) {
	t.Helper()

	mkdirParent(t, path)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if err := os.Truncate(path, size); err != nil {
		t.Fatalf("truncate %s: %v", path, err)
	}
}

func mkdirParent(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
}
