package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/seca-assert/internal/infrastructure/telemetry"
)

func pythonSources(t *testing.T) (vulnerable, safe string) {
	t.Helper()
	dir := t.TempDir()
	vulnerable = writeTestFile(t, dir, "bad/app.py", "data = input()\nresult = eval(data)\n")
	safe = writeTestFile(t, dir, "good/app.py", "# eval is not used here\nprint(int(input()))\n")
	return vulnerable, safe
}

func TestRunInlineCheck(t *testing.T) {
	vulnerable, safe := pythonSources(t)

	code, out, _ := runCLI(t, "run", "--check", "lang.python.uses_eval", "--param", "path="+vulnerable)
	if code != ExitClosed {
		t.Fatalf("expected exit %d outside strict mode, got %d", ExitClosed, code)
	}
	if !strings.Contains(out, "[OPEN] lang.python.uses_eval") {
		t.Fatalf("expected OPEN status line, got %q", out)
	}
	if !strings.Contains(out, "summary: CLOSED 0, OPEN 1, UNKNOWN 0, ERROR 0") {
		t.Fatalf("expected summary, got %q", out)
	}

	code, out, _ = runCLI(t, "run", "-q", "--check", "lang.python.uses_eval", "--param", "path="+safe)
	if code != ExitClosed {
		t.Fatalf("expected exit %d, got %d", ExitClosed, code)
	}
	if !strings.Contains(out, "[CLOSED] lang.python.uses_eval") || strings.Contains(out, "---") {
		t.Fatalf("expected quiet CLOSED output, got %q", out)
	}
}

func TestRunStrictExitCodes(t *testing.T) {
	vulnerable, safe := pythonSources(t)
	missing := filepath.Join(t.TempDir(), "missing.py")
	t.Setenv("FA_STRICT", "true")

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "open", path: vulnerable, want: ExitOpen},
		{name: "closed", path: safe, want: ExitClosed},
		{name: "unknown", path: missing, want: ExitUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, _ := runCLI(t, "run", "-q", "--check", "lang.python.uses_eval", "--param", "path="+tt.path)
			if code != tt.want {
				t.Fatalf("expected exit %d, got %d (output %q)", tt.want, code, out)
			}
		})
	}
}

func TestRunPlan(t *testing.T) {
	vulnerable, safe := pythonSources(t)
	dir := t.TempDir()
	plan := writeTestFile(t, dir, "plan.yaml", `checks:
  - check: lang.python.uses_eval
    params:
      path: `+safe+`
  - check: lang.python.uses_eval
    params:
      path: `+vulnerable+`
  - check: lang.python.has_generic_exceptions
    params:
      path: `+safe+`
`)
	resultsDir := filepath.Join(dir, "results")
	t.Setenv(envPrefix+"_RESULTS_DIR", resultsDir)

	code, out, _ := runCLI(t, "run", "--plan", plan, "--output", "records.yaml", "--telemetry", "--concurrency", "2")
	if code != ExitClosed {
		t.Fatalf("expected exit %d, got %d", ExitClosed, code)
	}

	// Output keeps plan order.
	first := strings.Index(out, "[CLOSED] lang.python.uses_eval")
	second := strings.Index(out, "[OPEN] lang.python.uses_eval")
	third := strings.Index(out, "[CLOSED] lang.python.has_generic_exceptions")
	if first < 0 || second < first || third < second {
		t.Fatalf("expected executions in plan order, got %q", out)
	}

	recordsPath := filepath.Join(resultsDir, "records.yaml")
	data, err := os.ReadFile(recordsPath)
	if err != nil {
		t.Fatalf("expected records file: %v", err)
	}
	var records []map[string]any
	if err := yaml.Unmarshal(data, &records); err != nil {
		t.Fatalf("invalid records file: %v", err)
	}
	if len(records) != 3 || records[1]["status"] != "OPEN" {
		t.Fatalf("unexpected records: %#v", records)
	}
	if _, err := os.Stat(recordsPath + ".sha256"); err != nil {
		t.Fatalf("expected sha256 sidecar: %v", err)
	}
	if !strings.Contains(out, "records: "+recordsPath) {
		t.Fatalf("expected records path in output, got %q", out)
	}

	lines, err := os.ReadFile(filepath.Join(resultsDir, telemetry.FileName))
	if err != nil {
		t.Fatalf("expected telemetry file: %v", err)
	}
	if got := strings.Count(string(lines), "\n"); got != 4 {
		t.Fatalf("expected 3 result lines and 1 run line, got %d", got)
	}
	if !strings.Contains(string(lines), `"type":"run"`) {
		t.Fatalf("expected run summary in telemetry: %s", lines)
	}
}

func TestRunFailureExitCodes(t *testing.T) {
	_, safe := pythonSources(t)
	dir := t.TempDir()
	unknownParam := writeTestFile(t, dir, "unknown-param.yaml", "- check: lang.python.uses_eval\n  params:\n    path: "+safe+"\n    depth: 3\n")
	malformed := writeTestFile(t, dir, "malformed.yaml", "checks: nope\n")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "unknown check", args: []string{"run", "--check", "proto.does_not_exist"}, want: ExitExploitNotFound},
		{name: "missing plan", args: []string{"run", "--plan", filepath.Join(dir, "nope.yaml")}, want: ExitExploitNotFound},
		{name: "malformed plan", args: []string{"run", "--plan", malformed}, want: ExitExploitError},
		{name: "unknown param", args: []string{"run", "--plan", unknownParam}, want: ExitExploitError},
		{name: "no plan or check", args: []string{"run"}, want: ExitConfigError},
		{name: "plan and check", args: []string{"run", "--plan", malformed, "--check", "x"}, want: ExitConfigError},
		{name: "bad param", args: []string{"run", "--check", "x", "--param", "novalue"}, want: ExitConfigError},
		{name: "bad flag value", args: []string{"run", "--concurrency", "many"}, want: ExitConfigError},
		{name: "escaping output", args: []string{"run", "--check", "x", "--output", "../out.yaml"}, want: ExitConfigError},
		{name: "missing config file", args: []string{"--config", filepath.Join(dir, "absent.yaml"), "run", "--check", "x"}, want: ExitConfigError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runCLI(t, tt.args...)
			if code != tt.want {
				t.Fatalf("expected exit %d, got %d (stdout %q, stderr %q)", tt.want, code, out, errOut)
			}
		})
	}
}

func TestRunConfigFileStrict(t *testing.T) {
	vulnerable, _ := pythonSources(t)
	cfg := writeTestFile(t, t.TempDir(), "config.yaml", "strict: true\ndefaults:\n  concurrency: 1\n")

	code, _, _ := runCLI(t, "--config", cfg, "run", "-q", "--check", "lang.python.uses_eval", "--param", "path="+vulnerable)
	if code != ExitOpen {
		t.Fatalf("expected strict mode from config file, got exit %d", code)
	}
	if cliConfig.Run.Concurrency != 1 {
		t.Fatalf("expected concurrency from config file, got %d", cliConfig.Run.Concurrency)
	}
}
