package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/seca-assert/internal/checker"
	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
)

// setupTestAppContext installs a minimal AppContext backed by a temp results
// directory and restores the previous one on cleanup.
func setupTestAppContext(t *testing.T) *AppContext {
	t.Helper()

	original := globalAppContext
	resultsDir := filepath.Join(t.TempDir(), "results")
	if err := os.MkdirAll(resultsDir, consts.DefaultDirPerm); err != nil {
		t.Fatalf("failed to create results directory: %v", err)
	}

	appCtx := &AppContext{
		ResultsDir: resultsDir,
		Config:     newCLIConfig(),
		Registry:   checker.NewRegistry(),
	}
	globalAppContext = appCtx
	t.Cleanup(func() {
		globalAppContext = original
	})
	return appCtx
}

// resetCLIState puts flags, config and viper back to their defaults so
// commands can be executed repeatedly within one test binary.
func resetCLIState(t *testing.T) {
	t.Helper()

	reset := func() {
		*cliConfig = *newCLIConfig()
		cfgFile = ""
		debug = false
		listFamily, listKind, listYAML = "", "", false
		for _, flags := range []*pflag.FlagSet{runCmd.Flags(), listCmd.Flags(), versionCmd.Flags(), rootCmd.PersistentFlags()} {
			flags.VisitAll(func(f *pflag.Flag) {
				if sv, ok := f.Value.(pflag.SliceValue); ok {
					_ = sv.Replace(nil)
				} else {
					_ = f.Value.Set(f.DefValue)
				}
				f.Changed = false
			})
		}
		viper.Reset()
		exitCode = ExitClosed
	}

	reset()
	original := globalAppContext
	t.Cleanup(func() {
		reset()
		globalAppContext = original
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
}

// runCLI executes the root command with args inside an isolated HOME and
// results directory. It returns the exit code and captured stdout.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	resetCLIState(t)

	originalNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = originalNoColor
	})

	home := t.TempDir()
	t.Setenv("HOME", home)
	if os.Getenv(envPrefix+"_RESULTS_DIR") == "" {
		t.Setenv(envPrefix+"_RESULTS_DIR", filepath.Join(home, "results"))
	}

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)

	code := execute(args)
	return code, stdout.String(), stderr.String()
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), consts.DefaultDirPerm); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), consts.DefaultFilePerm); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
