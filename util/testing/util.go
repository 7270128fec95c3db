package testing_util

import (
	"os"
	"path/filepath"
	"testing"
)

func MkdirTemp(t *testing.T, prefix string) (path string, cleanup func()) {
	out, err := os.MkdirTemp(os.TempDir(), prefix)
	if err != nil {
		t.Fatalf("failed to create temporary directory: %v", err)
	}

	if err := os.Chmod(out, 0o777); err != nil {
		t.Fatalf("failed to make temporary directory accessible: %s", err)
	}

	return out, func() {
		os.RemoveAll(out)
	}
}

// StoreDir returns a not-yet-existing directory inside a fresh temporary directory, for
// tests that exercise lazy creation of a store root.
func StoreDir(t *testing.T, prefix string) (path string, cleanup func()) {
	parent, cleanup := MkdirTemp(t, prefix)
	return filepath.Join(parent, "store"), cleanup
}
