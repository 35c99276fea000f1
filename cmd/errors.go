package cmd

import (
	"errors"
	"fmt"
)

// ConfigError reports an unusable configuration file, flag or environment.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// PlanNotFoundError indicates the plan file does not exist.
type PlanNotFoundError struct {
	Path string
}

func (e *PlanNotFoundError) Error() string {
	return fmt.Sprintf("plan %s not found", e.Path)
}

// PlanError signals a plan that exists but cannot be executed.
type PlanError struct {
	Path   string
	Reason string
	Err    error
}

func (e *PlanError) Error() string {
	msg := e.Reason
	if e.Path != "" {
		msg = fmt.Sprintf("plan %s: %s", e.Path, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *PlanError) Unwrap() error {
	return e.Err
}

// exitCodeForError maps a command failure to its process exit code.
func exitCodeForError(err error) int {
	var cfgErr *ConfigError
	var notFound *PlanNotFoundError
	switch {
	case errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.As(err, &notFound):
		return ExitExploitNotFound
	default:
		return ExitExploitError
	}
}
