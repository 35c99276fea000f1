// Package async runs I/O-bound lookups concurrently with a cap on how many are
// in flight, plus a fixed-count retry helper for flaky remote services.
package async

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
)

// RunFunc applies fn to every arg with at most limit calls in flight and
// returns the results in argument order. The first error cancels the
// remaining calls and is returned.
func RunFunc[A, R any](ctx context.Context, fn func(context.Context, A) (R, error), args []A, limit int) ([]R, error) {
	if limit <= 0 {
		limit = consts.AsyncBatchSize
	}

	results := make([]R, len(args))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, arg := range args {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := fn(gctx, arg)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Retry calls fn until it succeeds, attempts are exhausted or ctx is done.
// The last error is returned.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = consts.RetryAttempts
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
