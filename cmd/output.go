package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
)

// errorRecord stands in for invocations that produced no result, such as
// unknown check names or undecodable params.
type errorRecord struct {
	Check  string `yaml:"check"`
	Status string `yaml:"status"`
	Error  string `yaml:"error"`
}

func recordFor(exec assert.Execution) any {
	if exec.Result != nil {
		return exec.Result.Record()
	}
	msg := "no result"
	if exec.Err != nil {
		msg = exec.Err.Error()
	}
	return errorRecord{Check: exec.Invocation.Check, Status: string(check.StatusError), Error: msg}
}

// summaryOrder is the order statuses appear in the run summary.
var summaryOrder = []check.Status{check.StatusClosed, check.StatusOpen, check.StatusUnknown, check.StatusError}

var (
	statusColors = map[check.Status]*color.Color{
		check.StatusClosed:  color.New(color.FgGreen),
		check.StatusOpen:    color.New(color.FgRed, color.Bold),
		check.StatusUnknown: color.New(color.FgYellow),
		check.StatusError:   color.New(color.FgMagenta),
	}
	checkNameColor = color.New(color.FgCyan)
	errorColor     = color.New(color.FgRed)
)

func paintStatus(status check.Status) string {
	if c, ok := statusColors[status]; ok {
		return c.Sprint(status)
	}
	return string(status)
}

func statusOf(exec assert.Execution) check.Status {
	if exec.Result == nil {
		return check.StatusError
	}
	return exec.Result.Status()
}

// printExecution writes a colored status line followed by the YAML record.
func printExecution(w io.Writer, exec assert.Execution, quiet bool) error {
	status := statusOf(exec)
	message := ""
	if exec.Result != nil {
		message = exec.Result.Message()
	} else if exec.Err != nil {
		message = exec.Err.Error()
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", paintStatus(status), checkNameColor.Sprint(exec.Invocation.Check), message)
	if quiet {
		return nil
	}

	data, err := yaml.Marshal(recordFor(exec))
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	fmt.Fprintf(w, "---\n%s", data)
	return nil
}

// printSummary writes the per-status totals of a run.
func printSummary(w io.Writer, execs []assert.Execution) {
	counts := map[check.Status]int{}
	for _, exec := range execs {
		counts[statusOf(exec)]++
	}
	parts := make([]string, 0, len(summaryOrder))
	for _, status := range summaryOrder {
		parts = append(parts, fmt.Sprintf("%s %d", paintStatus(status), counts[status]))
	}
	fmt.Fprintf(w, "\nsummary: %s\n", strings.Join(parts, ", "))
}

// writeRecords saves every record as one YAML list and writes the .sha256
// companion next to it.
func writeRecords(path string, execs []assert.Execution) (string, error) {
	records := make([]any, 0, len(execs))
	for _, exec := range execs {
		records = append(records, recordFor(exec))
	}
	data, err := yaml.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode records: %w", err)
	}
	if err := ensureParentDir(path); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, consts.DefaultFilePerm); err != nil {
		return "", fmt.Errorf("write records: %w", err)
	}
	return hashFileSHA256(path)
}

// hashFileSHA256 computes and writes a .sha256 companion file in the
// format sha256sum -c expects.
func hashFileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	sum := hex.EncodeToString(h.Sum(nil))
	content := fmt.Sprintf("%s  %s\n", sum, filepath.Base(path))
	if err := os.WriteFile(path+".sha256", []byte(content), consts.DefaultFilePerm); err != nil {
		return "", err
	}
	return sum, nil
}
