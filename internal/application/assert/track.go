package assert

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-assert/internal/domain/check"
)

// Tracker receives every finished result.
type Tracker interface {
	Track(ctx context.Context, result *check.Result)
}

// TrackerFunc adapts a function to the Tracker interface.
type TrackerFunc func(ctx context.Context, result *check.Result)

func (f TrackerFunc) Track(ctx context.Context, result *check.Result) {
	f(ctx, result)
}

type nopTracker struct{}

func (nopTracker) Track(context.Context, *check.Result) {}

var (
	trackerMu sync.RWMutex
	tracker   Tracker = nopTracker{}

	logger atomic.Pointer[zap.Logger]
)

// SetTracker installs the tracker used by every check. nil restores the no-op.
func SetTracker(t Tracker) {
	trackerMu.Lock()
	defer trackerMu.Unlock()
	if t == nil {
		t = nopTracker{}
	}
	tracker = t
}

func track(ctx context.Context, result *check.Result) {
	trackerMu.RLock()
	t := tracker
	trackerMu.RUnlock()
	t.Track(ctx, result)
}

// SetLogger installs the logger used by checks and the runner.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}

// Logger returns the installed logger, or a no-op logger.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}
