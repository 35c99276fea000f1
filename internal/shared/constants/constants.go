package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// AsyncBatchSize caps how many lookups run at once in async fan-outs.
	AsyncBatchSize = 64
	// RetryAttempts is the fixed number of tries for flaky remote lookups.
	RetryAttempts = 12
	// RetryDelay is the pause between retries.
	RetryDelay = 500 * time.Millisecond
)

const (
	// DefaultTimeout bounds a single network check.
	DefaultTimeout = 10 * time.Second
	// ResponseBodyLimitBytes caps how much of an HTTP body checks inspect.
	ResponseBodyLimitBytes = 1 << 20
	// TLSSoonExpiryWindow flags certificates that expire inside this window.
	TLSSoonExpiryWindow = 60 * 24 * time.Hour
	// MaxSourceFileBytes skips source files larger than this in grammar scans.
	MaxSourceFileBytes = 4 << 20
)
