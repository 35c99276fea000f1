package check

import (
	"fmt"

	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

// Outcome is what a check body returns: the status, a human message and the
// evidence split into vulnerable and safe units.
type Outcome struct {
	Status  Status
	Message string
	Vulns   []Unit
	Safes   []Unit
}

// Open reports a vulnerable finding.
func Open(message string, vulns ...Unit) Outcome {
	return Outcome{Status: StatusOpen, Message: message, Vulns: vulns}
}

// Closed reports that nothing vulnerable was found.
func Closed(message string, safes ...Unit) Outcome {
	return Outcome{Status: StatusClosed, Message: message, Safes: safes}
}

// Unknown reports that the check could not reach a verdict.
func Unknown(message string) Outcome {
	return Outcome{Status: StatusUnknown, Message: message}
}

// Classify picks OPEN when any vulnerable unit was collected and CLOSED
// otherwise, keeping both evidence lists.
func Classify(openMsg, closedMsg string, vulns, safes []Unit) Outcome {
	if len(vulns) > 0 {
		return Outcome{Status: StatusOpen, Message: openMsg, Vulns: vulns, Safes: safes}
	}
	return Outcome{Status: StatusClosed, Message: closedMsg, Safes: safes}
}

// Validate enforces the result invariants: a known status, OPEN backed by at
// least one vulnerable unit and CLOSED carrying none.
func (o Outcome) Validate() error {
	if !o.Status.Valid() {
		return fmt.Errorf("%w: status %q", sharedErrors.ErrInvalidOutcome, o.Status)
	}
	if o.Status == StatusOpen && len(o.Vulns) == 0 {
		return fmt.Errorf("%w: OPEN without vulnerable units", sharedErrors.ErrInvalidOutcome)
	}
	if o.Status == StatusClosed && len(o.Vulns) > 0 {
		return fmt.Errorf("%w: CLOSED with %d vulnerable units", sharedErrors.ErrInvalidOutcome, len(o.Vulns))
	}
	return nil
}
