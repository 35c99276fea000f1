// Package security holds path containment and certificate strength helpers
// shared by the checks and the CLI.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape indicates a resolved path would land outside its base directory.
var ErrPathEscape = errors.New("path escapes base directory")

// ResolveWithin joins elems under base and returns the absolute result. It
// fails with ErrPathEscape when the joined path climbs out of base; absolute
// elements are treated as relative to base.
func ResolveWithin(base string, elems ...string) (string, error) {
	if base == "" {
		return "", errors.New("base directory is required")
	}

	root, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}
	target, err := filepath.Abs(filepath.Join(append([]string{root}, elems...)...))
	if err != nil {
		return "", fmt.Errorf("resolve target path: %w", err)
	}

	if !Within(root, target) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, target)
	}
	return target, nil
}

// Within reports whether target is root itself or lies below it. Both paths
// must be absolute and clean.
func Within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
