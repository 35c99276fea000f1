package security

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveWithin(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name  string
		elems []string
		want  string
	}{
		{name: "single file", elems: []string{"records.yaml"}, want: filepath.Join(base, "records.yaml")},
		{name: "nested", elems: []string{"a", "b", "c.yaml"}, want: filepath.Join(base, "a", "b", "c.yaml")},
		{name: "dot dot in middle", elems: []string{"a", "..", "b.yaml"}, want: filepath.Join(base, "b.yaml")},
		{name: "absolute element stays inside", elems: []string{"/etc/passwd"}, want: filepath.Join(base, "etc", "passwd")},
		{name: "no elements", want: base},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveWithin(base, tt.elems...)
			if err != nil {
				t.Fatalf("ResolveWithin returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ResolveWithin() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResolveWithinBlocksEscape(t *testing.T) {
	base := t.TempDir()
	for _, elems := range [][]string{
		{".."},
		{"..", "etc", "passwd"},
		{"a", "..", "..", "b"},
	} {
		_, err := ResolveWithin(base, elems...)
		if !errors.Is(err, ErrPathEscape) {
			t.Fatalf("expected ErrPathEscape for %v, got %v", elems, err)
		}
	}
}

func TestResolveWithinEmptyBase(t *testing.T) {
	_, err := ResolveWithin("", "some", "path")
	if err == nil || !strings.Contains(err.Error(), "base directory is required") {
		t.Fatalf("expected base directory error, got %v", err)
	}
}

func TestWithin(t *testing.T) {
	root := filepath.FromSlash("/data/results")
	tests := map[string]bool{
		"/data/results":            true,
		"/data/results/run/a.yaml": true,
		"/data/results-old":        false,
		"/data":                    false,
		"/data/results/../other":   false,
	}
	for target, want := range tests {
		if got := Within(root, filepath.Clean(filepath.FromSlash(target))); got != want {
			t.Errorf("Within(%s, %s) = %v, want %v", root, target, got, want)
		}
	}
}
