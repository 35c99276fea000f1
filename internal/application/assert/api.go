package assert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-assert/internal/domain/check"
)

// Meta describes a check independently of any invocation.
type Meta struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Risk        check.Risk `json:"risk" yaml:"risk"`
	Kind        check.Kind `json:"kind" yaml:"kind"`
}

// Func is the body of a check. P is the check's parameter struct.
type Func[P any] func(ctx context.Context, params P) (check.Outcome, error)

// Check is a check body wrapped with result shaping, logging and tracking.
type Check[P any] struct {
	meta Meta
	fn   Func[P]
}

// API wraps fn so every call produces a fully populated Result.
func API[P any](meta Meta, fn Func[P]) *Check[P] {
	return &Check[P]{meta: meta, fn: fn}
}

// Meta returns the check description.
func (c *Check[P]) Meta() Meta {
	return c.meta
}

// Run invokes the check. Errors the body did not convert into an UNKNOWN
// outcome mark the result as ERROR and are returned to the caller.
func (c *Check[P]) Run(ctx context.Context, params P) (*check.Result, error) {
	result, err := check.NewResult(c.meta.Name, c.meta.Description, c.meta.Risk, c.meta.Kind)
	if err != nil {
		return nil, err
	}
	result.SetParameters(EncodeParams(params))

	start := time.Now()
	outcome, runErr := c.fn(ctx, params)
	result.SetElapsed(time.Since(start))

	if runErr == nil {
		runErr = outcome.Validate()
	}

	log := Logger().With(zap.String("check", c.meta.Name), zap.String("id", result.ID()))
	if runErr != nil {
		result.SetError(runErr)
		log.Error("check failed", zap.Error(runErr), zap.Duration("elapsed", result.Elapsed()))
		track(ctx, result)
		return result, fmt.Errorf("%s: %w", c.meta.Name, runErr)
	}

	result.ApplyOutcome(outcome)
	log.Info("check finished",
		zap.String("status", string(result.Status())),
		zap.Int("vulns", len(outcome.Vulns)),
		zap.Int("safes", len(outcome.Safes)),
		zap.Duration("elapsed", result.Elapsed()),
	)
	track(ctx, result)
	return result, nil
}
