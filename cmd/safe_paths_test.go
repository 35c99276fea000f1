package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveOutputPath(t *testing.T) {
	base := t.TempDir()

	path, err := resolveOutputPath(base, "")
	if err != nil || path != "" {
		t.Fatalf("expected empty output to stay empty, got %q, %v", path, err)
	}

	path, err = resolveOutputPath(base, "runs/records.yaml")
	if err != nil {
		t.Fatalf("resolveOutputPath failed: %v", err)
	}
	if path != filepath.Join(base, "runs", "records.yaml") {
		t.Fatalf("relative output not placed in results dir: %s", path)
	}

	abs := filepath.Join(t.TempDir(), "elsewhere.yaml")
	path, err = resolveOutputPath(base, abs)
	if err != nil || path != abs {
		t.Fatalf("expected absolute path kept, got %q, %v", path, err)
	}
}

func TestResolveOutputPathEscape(t *testing.T) {
	_, err := resolveOutputPath(t.TempDir(), "../outside.yaml")
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for escaping path, got %v", err)
	}
}

func TestEnsureParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "records.yaml")
	if err := ensureParentDir(path); err != nil {
		t.Fatalf("ensureParentDir failed: %v", err)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Fatalf("expected directory %s to exist: %v", filepath.Dir(path), err)
	}
}
