package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunFunc_PreservesOrder(t *testing.T) {
	args := []int{5, 1, 4, 2, 3}
	results, err := RunFunc(context.Background(), func(ctx context.Context, n int) (int, error) {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return n * n, nil
	}, args, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []int{25, 1, 16, 4, 9}
	for i := range expected {
		if results[i] != expected[i] {
			t.Errorf("index %d: expected %d, got %d", i, expected[i], results[i])
		}
	}
}

func TestRunFunc_RespectsLimit(t *testing.T) {
	var inFlight, peak int32
	args := make([]int, 50)

	_, err := RunFunc(context.Background(), func(ctx context.Context, _ int) (struct{}, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return struct{}{}, nil
	}, args, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak > 4 {
		t.Errorf("expected at most 4 in flight, saw %d", peak)
	}
}

func TestRunFunc_ReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	_, err := RunFunc(context.Background(), func(ctx context.Context, n int) (int, error) {
		if n == 3 {
			return 0, boom
		}
		return n, nil
	}, []int{1, 2, 3, 4}, 0)
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestRetry_SucceedsEventually(t *testing.T) {
	var calls int
	err := Retry(context.Background(), 5, time.Millisecond, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	var calls int
	flaky := errors.New("flaky")
	err := Retry(context.Background(), 4, time.Millisecond, func(ctx context.Context) error {
		calls++
		return flaky
	})
	if !errors.Is(err, flaky) {
		t.Errorf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	err := Retry(ctx, 12, time.Second, func(ctx context.Context) error {
		calls++
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected a single call before cancel, got %d", calls)
	}
}
