package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

func TestConfigError(t *testing.T) {
	err := &ConfigError{Reason: "read config"}
	if err.Error() != "configuration error: read config" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}

	cause := errors.New("bad yaml")
	err = &ConfigError{Reason: "read config", Err: cause}
	want := "configuration error: read config: bad yaml"
	if err.Error() != want {
		t.Fatalf("expected %s, got %s", want, err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected ConfigError to unwrap its cause")
	}
}

func TestPlanErrors(t *testing.T) {
	notFound := &PlanNotFoundError{Path: "plan.yaml"}
	if notFound.Error() != "plan plan.yaml not found" {
		t.Fatalf("unexpected error string: %s", notFound.Error())
	}

	err := &PlanError{Path: "plan.yaml", Reason: "invalid plan", Err: errors.New("line 3")}
	want := "plan plan.yaml: invalid plan: line 3"
	if err.Error() != want {
		t.Fatalf("expected %s, got %s", want, err.Error())
	}

	err = &PlanError{Reason: "empty"}
	if err.Error() != "empty" {
		t.Fatalf("expected bare reason, got %s", err.Error())
	}
}

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "config", err: &ConfigError{Reason: "x"}, want: ExitConfigError},
		{name: "wrapped config", err: fmt.Errorf("run: %w", &ConfigError{Reason: "x"}), want: ExitConfigError},
		{name: "plan not found", err: &PlanNotFoundError{Path: "p"}, want: ExitExploitNotFound},
		{name: "plan error", err: &PlanError{Reason: "invalid"}, want: ExitExploitError},
		{name: "other", err: errors.New("boom"), want: ExitExploitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeForError(tt.err); got != tt.want {
				t.Fatalf("exitCodeForError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func execWithStatus(t *testing.T, outcome check.Outcome) assert.Execution {
	t.Helper()
	result, err := check.NewResult("test.check", "", check.RiskLow, check.KindDAST)
	if err != nil {
		t.Fatalf("NewResult failed: %v", err)
	}
	result.ApplyOutcome(outcome)
	return assert.Execution{Invocation: assert.Invocation{Check: "test.check"}, Result: result}
}

func TestExitCodeFor(t *testing.T) {
	closed := execWithStatus(t, check.Closed("fine"))
	open := execWithStatus(t, check.Open("bad", check.NewUnit("example.com", []string{"port 21"})))
	unknown := execWithStatus(t, check.Unknown("no idea"))
	notFound := assert.Execution{Invocation: assert.Invocation{Check: "nope"}, Err: sharedErrors.ErrCheckNotFound}
	failed := assert.Execution{Invocation: assert.Invocation{Check: "test.check"}, Err: errors.New("boom")}

	tests := []struct {
		name   string
		execs  []assert.Execution
		strict bool
		want   int
	}{
		{name: "empty", want: ExitClosed},
		{name: "closed", execs: []assert.Execution{closed}, strict: true, want: ExitClosed},
		{name: "open lenient", execs: []assert.Execution{closed, open}, want: ExitClosed},
		{name: "open strict", execs: []assert.Execution{closed, open}, strict: true, want: ExitOpen},
		{name: "unknown lenient", execs: []assert.Execution{unknown}, want: ExitClosed},
		{name: "unknown strict", execs: []assert.Execution{unknown}, strict: true, want: ExitUnknown},
		{name: "open beats unknown", execs: []assert.Execution{unknown, open}, strict: true, want: ExitOpen},
		{name: "error beats open", execs: []assert.Execution{open, failed}, strict: true, want: ExitExploitError},
		{name: "error lenient", execs: []assert.Execution{failed}, want: ExitExploitError},
		{name: "not found beats error", execs: []assert.Execution{failed, notFound}, want: ExitExploitNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.execs, tt.strict); got != tt.want {
				t.Fatalf("exitCodeFor() = %d, want %d", got, tt.want)
			}
		})
	}
}
