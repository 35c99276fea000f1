package cmd

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestParsePlanForms(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		count int
	}{
		{
			name: "list",
			data: `
- check: lang.python.uses_eval
  params:
    path: ./src
- check: proto.ftp.is_anonymous_enabled
`,
			count: 2,
		},
		{
			name: "mapping",
			data: `
checks:
  - check: format.pdf.has_javascript
    params:
      path: ./docs
      exclude: [drafts]
`,
			count: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := parsePlan([]byte(tt.data))
			if err != nil {
				t.Fatalf("parsePlan failed: %v", err)
			}
			if len(plan) != tt.count {
				t.Fatalf("expected %d invocations, got %d", tt.count, len(plan))
			}
		})
	}
}

func TestParsePlanParams(t *testing.T) {
	plan, err := parsePlan([]byte("- check: sca.go.has_vulnerabilities\n  params:\n    path: go.mod\n    timeout: 5s\n"))
	if err != nil {
		t.Fatalf("parsePlan failed: %v", err)
	}
	params := plan[0].Params
	if params["path"] != "go.mod" || params["timeout"] != "5s" {
		t.Fatalf("unexpected params: %#v", params)
	}
}

func TestParsePlanRejects(t *testing.T) {
	tests := map[string]string{
		"empty document":  "",
		"scalar":          "just a string",
		"no checks":       "checks: []",
		"missing name":    "- params:\n    path: x\n",
		"bad yaml":        "- check: [unterminated",
		"wrong type list": "checks: 3",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := parsePlan([]byte(data)); err == nil {
				t.Fatalf("expected %q to be rejected", data)
			}
		})
	}
}

func TestLoadPlanErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := loadPlan(filepath.Join(dir, "missing.yaml"))
	var notFound *PlanNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected PlanNotFoundError, got %v", err)
	}

	path := writeTestFile(t, dir, "bad.yaml", "checks: []\n")
	_, err = loadPlan(path)
	var planErr *PlanError
	if !errors.As(err, &planErr) {
		t.Fatalf("expected PlanError, got %v", err)
	}
	if planErr.Path != path {
		t.Fatalf("expected plan path %s, got %s", path, planErr.Path)
	}
}

func TestInlineInvocation(t *testing.T) {
	plan, err := inlineInvocation("proto.dns.has_open_recursion", []string{"host=ns1.example.com", "port=53", "query=a=b"})
	if err != nil {
		t.Fatalf("inlineInvocation failed: %v", err)
	}
	if len(plan) != 1 || plan[0].Check != "proto.dns.has_open_recursion" {
		t.Fatalf("unexpected plan: %#v", plan)
	}
	params := plan[0].Params
	if params["host"] != "ns1.example.com" || params["port"] != "53" || params["query"] != "a=b" {
		t.Fatalf("unexpected params: %#v", params)
	}

	for _, bad := range []string{"novalue", "=x", " =x"} {
		_, err := inlineInvocation("x", []string{bad})
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError for %q, got %v", bad, err)
		}
	}
}
