package assert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/khanhnv2901/seca-assert/internal/domain/check"
)

// Invocation is one entry of a plan: a registered check name and its params.
type Invocation struct {
	Check  string         `json:"check" yaml:"check"`
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Execution pairs an invocation with what came back from it.
type Execution struct {
	Invocation Invocation
	Result     *check.Result
	Err        error
	Duration   float64
}

// ResultFunc is called once per finished invocation
type ResultFunc func(exec Execution)

// Runner orchestrates the execution of a plan with concurrency and rate limiting
type Runner struct {
	Registry    *Registry
	Concurrency int           // Maximum number of concurrent checks
	RateLimit   int           // Checks started per second (global), 0 disables
	Timeout     time.Duration // Timeout for each check
}

// Run executes every invocation of the plan. Executions are returned in plan
// order regardless of completion order.
func (r *Runner) Run(ctx context.Context, plan []Invocation, onResult ResultFunc) []Execution {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if r.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.RateLimit), r.RateLimit)
	}

	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	// Worker pool
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var cbMu sync.Mutex
	executions := make([]Execution, len(plan))

	for i, inv := range plan {
		wg.Add(1)
		go func(idx int, inv Invocation) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			exec := Execution{Invocation: inv}
			report := func() {
				executions[idx] = exec
				if onResult != nil {
					cbMu.Lock()
					onResult(exec)
					cbMu.Unlock()
				}
			}
			if err := limiter.Wait(ctx); err != nil {
				exec.Err = err
				report()
				return
			}

			start := time.Now()
			checkCtx := ctx
			if r.Timeout > 0 {
				var cancel context.CancelFunc
				checkCtx, cancel = context.WithTimeout(ctx, r.Timeout)
				defer cancel()
			}

			exec.Result, exec.Err = r.Registry.Invoke(checkCtx, inv.Check, inv.Params)
			exec.Duration = time.Since(start).Seconds()
			if exec.Err != nil {
				Logger().Warn("invocation failed", zap.String("check", inv.Check), zap.Error(exec.Err))
			}

			report()
		}(i, inv)
	}

	wg.Wait()
	return executions
}
