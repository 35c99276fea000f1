// Package sast holds source-code checks built on grammar scans. Each check
// takes a file or directory and reports matching files with line numbers.
package sast

import (
	"context"
	"fmt"
	"strings"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/lang"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

// Params is the code location to scan. Paths containing any Exclude
// substring are skipped.
type Params struct {
	Path    string   `mapstructure:"path"`
	Exclude []string `mapstructure:"exclude"`
}

func (p Params) validate() error {
	if strings.TrimSpace(p.Path) == "" {
		return fmt.Errorf("%w: path is required", sharedErrors.ErrInvalidParameter)
	}
	return nil
}

// grammarCheck opens for every file where grammar matches.
func grammarCheck(meta assert.Meta, spec lang.Spec, grammar lang.Grammar, msgs lang.Messages) *assert.Check[Params] {
	meta.Kind = check.KindSAST
	return assert.API(meta, assert.UnknownIf(func(_ context.Context, p Params) (check.Outcome, error) {
		if err := p.validate(); err != nil {
			return check.Outcome{}, err
		}
		return lang.GenericMethod(p.Path, grammar, spec, msgs, p.Exclude)
	}, assert.FileErrors...))
}

// absentCheck opens for every file where grammar does not match.
func absentCheck(meta assert.Meta, spec lang.Spec, grammar lang.Grammar, msgs lang.Messages) *assert.Check[Params] {
	meta.Kind = check.KindSAST
	return assert.API(meta, assert.UnknownIf(func(_ context.Context, p Params) (check.Outcome, error) {
		if err := p.validate(); err != nil {
			return check.Outcome{}, err
		}
		return lang.GenericMethodAbsent(p.Path, grammar, spec, msgs, p.Exclude)
	}, assert.FileErrors...))
}

// Register adds every source-code check to r.
func Register(r *assert.Registry) {
	for _, c := range []*assert.Check[Params]{
		PythonUsesEval,
		PythonUsesUnsafeYAMLLoad,
		PythonHasGenericExceptions,
		PHPUsesEval,
		PHPHasUnsanitizedInput,
		CSharpUsesInsecureHash,
		CSharpHasGenericExceptions,
		HTMLHasAutocompleteEnabled,
		HTMLHasUnsafeTargetBlank,
		DockerfileRunsAsRoot,
		DockerfileUsesAddInsteadOfCopy,
		DockerfileUsesLatestTag,
		RPGHasDebugEnabled,
	} {
		assert.MustRegister(r, c)
	}
}
