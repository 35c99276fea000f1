// Package telemetry appends check results and run summaries to a JSONL file.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
)

// FileName is the telemetry file created under the results directory.
const FileName = "telemetry.jsonl"

type resultRecord struct {
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ID             string    `json:"id"`
	Check          string    `json:"check"`
	Status         string    `json:"status"`
	Risk           string    `json:"risk"`
	Kind           string    `json:"kind"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	VulnCount      int       `json:"vuln_count"`
}

type summaryRecord struct {
	Type                string    `json:"type"`
	Timestamp           time.Time `json:"timestamp"`
	Command             string    `json:"command"`
	Plan                string    `json:"plan"`
	CheckCount          int       `json:"check_count"`
	OpenCount           int       `json:"open_count"`
	ClosedCount         int       `json:"closed_count"`
	UnknownCount        int       `json:"unknown_count"`
	ErrorCount          int       `json:"error_count"`
	DurationSeconds     float64   `json:"duration_seconds"`
	AvgDurationPerCheck float64   `json:"avg_duration_per_check"`
}

// Tracker writes one line per finished check. It is safe for concurrent use
// and satisfies assert.Tracker.
type Tracker struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// New creates a tracker writing to FileName inside dir.
func New(dir string, logger *zap.Logger) (*Tracker, error) {
	if err := os.MkdirAll(dir, consts.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("create telemetry directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{path: filepath.Join(dir, FileName), logger: logger}, nil
}

// Path returns the telemetry file location.
func (t *Tracker) Path() string {
	return t.path
}

// Track records a finished result. Write failures are logged, never
// returned, so telemetry cannot change a check's outcome.
func (t *Tracker) Track(_ context.Context, result *check.Result) {
	if result == nil {
		return
	}
	record := resultRecord{
		Type:           "result",
		Timestamp:      time.Now().UTC(),
		ID:             result.ID(),
		Check:          result.Check(),
		Status:         string(result.Status()),
		Risk:           string(result.Risk()),
		Kind:           string(result.Kind()),
		ElapsedSeconds: result.Elapsed().Seconds(),
		VulnCount:      len(result.Vulns()),
	}
	if err := t.append(record); err != nil {
		t.logger.Warn("telemetry write failed", zap.String("check", record.Check), zap.Error(err))
	}
}

// Summary describes one CLI run.
type Summary struct {
	Command  string
	Plan     string
	Statuses []check.Status
	Duration time.Duration
}

// RecordRun appends the aggregate line for a run.
func (t *Tracker) RecordRun(s Summary) error {
	record := summaryRecord{
		Type:            "run",
		Timestamp:       time.Now().UTC(),
		Command:         s.Command,
		Plan:            s.Plan,
		CheckCount:      len(s.Statuses),
		DurationSeconds: s.Duration.Seconds(),
	}
	for _, status := range s.Statuses {
		switch status {
		case check.StatusOpen:
			record.OpenCount++
		case check.StatusClosed:
			record.ClosedCount++
		case check.StatusUnknown:
			record.UnknownCount++
		default:
			record.ErrorCount++
		}
	}
	if record.CheckCount > 0 {
		record.AvgDurationPerCheck = record.DurationSeconds / float64(record.CheckCount)
	}
	return t.append(record)
}

func (t *Tracker) append(record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, consts.DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("open telemetry file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write telemetry: %w", err)
	}
	return nil
}
