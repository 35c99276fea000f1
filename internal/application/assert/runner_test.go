package assert

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-assert/internal/domain/check"
)

type sleepParams struct {
	Delay time.Duration `mapstructure:"delay"`
}

func newSleepRegistry(t *testing.T, inFlight, peak *int32) *Registry {
	t.Helper()
	r := NewRegistry()
	c := API(Meta{Name: "test.sleep", Description: "OPEN never.", Risk: check.RiskLow, Kind: check.KindDAST},
		UnknownIf(func(ctx context.Context, p sleepParams) (check.Outcome, error) {
			n := atomic.AddInt32(inFlight, 1)
			defer atomic.AddInt32(inFlight, -1)
			for {
				old := atomic.LoadInt32(peak)
				if n <= old || atomic.CompareAndSwapInt32(peak, old, n) {
					break
				}
			}
			select {
			case <-time.After(p.Delay):
				return check.Closed("slept"), nil
			case <-ctx.Done():
				return check.Outcome{}, ctx.Err()
			}
		}, NetworkErrors...))
	MustRegister(r, c)
	return r
}

func TestRunner_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	runner := &Runner{Registry: newSleepRegistry(t, &inFlight, &peak), Concurrency: 2}

	plan := make([]Invocation, 6)
	for i := range plan {
		plan[i] = Invocation{Check: "test.sleep", Params: map[string]any{"delay": "20ms"}}
	}
	execs := runner.Run(context.Background(), plan, nil)

	if got := atomic.LoadInt32(&peak); got > 2 {
		t.Fatalf("expected at most 2 checks in flight, saw %d", got)
	}
	for i, exec := range execs {
		if exec.Err != nil || exec.Result.Status() != check.StatusClosed {
			t.Fatalf("execution %d: unexpected %+v", i, exec)
		}
	}
}

func TestRunner_TimeoutBecomesUnknown(t *testing.T) {
	var inFlight, peak int32
	runner := &Runner{Registry: newSleepRegistry(t, &inFlight, &peak), Concurrency: 1, Timeout: 20 * time.Millisecond}

	execs := runner.Run(context.Background(), []Invocation{
		{Check: "test.sleep", Params: map[string]any{"delay": "5s"}},
	}, nil)

	exec := execs[0]
	if exec.Err != nil {
		t.Fatalf("expected timeout to be absorbed, got %v", exec.Err)
	}
	if exec.Result.Status() != check.StatusUnknown {
		t.Fatalf("expected UNKNOWN after timeout, got %s", exec.Result.Status())
	}
	if exec.Duration >= 5 {
		t.Fatalf("expected the check to stop at the timeout, took %.2fs", exec.Duration)
	}
}

func TestRunner_RateLimitCancelled(t *testing.T) {
	var inFlight, peak int32
	runner := &Runner{Registry: newSleepRegistry(t, &inFlight, &peak), Concurrency: 4, RateLimit: 1}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := []Invocation{{Check: "test.sleep"}, {Check: "test.sleep"}, {Check: "test.sleep"}}
	var callbacks int32
	execs := runner.Run(ctx, plan, func(exec Execution) {
		atomic.AddInt32(&callbacks, 1)
		if !errors.Is(exec.Err, context.Canceled) {
			t.Errorf("callback got %v, want context.Canceled", exec.Err)
		}
	})
	if got := atomic.LoadInt32(&callbacks); got != int32(len(plan)) {
		t.Fatalf("expected %d callbacks, got %d", len(plan), got)
	}
	for i, exec := range execs {
		if !errors.Is(exec.Err, context.Canceled) {
			t.Fatalf("execution %d: expected context.Canceled, got %v", i, exec.Err)
		}
		if exec.Invocation.Check != plan[i].Check {
			t.Fatalf("execution %d lost its invocation: %s", i, fmt.Sprint(exec.Invocation))
		}
	}
}
