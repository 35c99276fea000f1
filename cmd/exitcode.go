package cmd

import (
	"errors"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

// Process exit codes. Open and unknown results only fail the process in
// strict mode.
const (
	ExitClosed          = 0
	ExitOpen            = 1
	ExitUnknown         = 3
	ExitExploitNotFound = 66
	ExitExploitError    = 70
	ExitConfigError     = 78
)

// exitCode is set by the command that ran and read by execute.
var exitCode = ExitClosed

// exitCodeFor folds the executions of a run into one exit code. Precedence
// is not-found, then exploit error, then open, then unknown.
func exitCodeFor(execs []assert.Execution, strict bool) int {
	var notFound, failed, open, unknown bool
	for _, exec := range execs {
		switch {
		case exec.Err != nil && errors.Is(exec.Err, sharedErrors.ErrCheckNotFound):
			notFound = true
		case exec.Err != nil:
			failed = true
		case exec.Result == nil:
			failed = true
		case exec.Result.Status() == check.StatusOpen:
			open = true
		case exec.Result.Status() == check.StatusUnknown:
			unknown = true
		}
	}

	switch {
	case notFound:
		return ExitExploitNotFound
	case failed:
		return ExitExploitError
	case open && strict:
		return ExitOpen
	case unknown && strict:
		return ExitUnknown
	default:
		return ExitClosed
	}
}
