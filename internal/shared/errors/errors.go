package errors

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/url"
	"os"
)

// Domain errors
var (
	// Environmental failures that checks turn into UNKNOWN results
	ErrConnection       = errors.New("connection failed")
	ErrTimeout          = errors.New("operation timed out")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrFileNotFound     = errors.New("file not found")
	ErrAuthentication   = errors.New("authentication failed")
	ErrUnsupported      = errors.New("unsupported")

	// Registry and runner errors
	ErrCheckNotFound  = errors.New("check not found")
	ErrDuplicateCheck = errors.New("check already registered")
	ErrInvalidOutcome = errors.New("invalid check outcome")

	// Configuration errors
	ErrConfig      = errors.New("configuration error")
	ErrInvalidPlan = errors.New("invalid plan")
)

var environmental = []error{
	ErrConnection, ErrTimeout, ErrInvalidParameter,
	ErrFileNotFound, ErrAuthentication, ErrUnsupported,
}

// Classify maps library and transport errors onto the sentinels above so
// callers can match them with errors.Is. Errors that do not fit any sentinel
// are returned as nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	for _, sentinel := range environmental {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return ErrTimeout
	case errors.Is(err, fs.ErrNotExist):
		return ErrFileNotFound
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrConnection
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrConnection
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrConnection
	}

	return nil
}

// Matches reports whether err is target, either directly or after Classify.
func Matches(err, target error) bool {
	if errors.Is(err, target) {
		return true
	}
	classified := Classify(err)
	return classified != nil && errors.Is(classified, target)
}
