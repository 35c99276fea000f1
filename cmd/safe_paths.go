package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	"github.com/khanhnv2901/seca-assert/internal/shared/security"
)

// resolveOutputPath places relative output files under the results
// directory and refuses names that climb out of it. Absolute paths are used
// as given.
func resolveOutputPath(resultsDir, output string) (string, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return "", nil
	}
	if filepath.IsAbs(output) {
		return filepath.Clean(output), nil
	}
	path, err := security.ResolveWithin(resultsDir, output)
	if err != nil {
		return "", &ConfigError{Reason: fmt.Sprintf("output %q", output), Err: err}
	}
	return path, nil
}

func ensureParentDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), consts.DefaultDirPerm); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}
