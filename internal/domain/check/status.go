package check

import "fmt"

// Status is the three-valued outcome of a check, plus ERROR for checks that
// failed unexpectedly.
type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusClosed  Status = "CLOSED"
	StatusUnknown Status = "UNKNOWN"
	StatusError   Status = "ERROR"
)

// Valid reports whether s is a status a check body may return.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusClosed, StatusUnknown:
		return true
	}
	return false
}

// Risk is the impact assigned to a check when it comes back OPEN.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Kind groups checks by testing technique.
type Kind string

const (
	KindSAST Kind = "SAST"
	KindDAST Kind = "DAST"
	KindSCA  Kind = "SCA"
)

// ParseStatus converts a string into a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusOpen, StatusClosed, StatusUnknown, StatusError:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}
