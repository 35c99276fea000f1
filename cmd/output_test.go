package cmd

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

func TestPaintStatus(t *testing.T) {
	original := color.NoColor
	t.Cleanup(func() {
		color.NoColor = original
	})

	color.NoColor = true
	for _, status := range summaryOrder {
		if got := paintStatus(status); got != string(status) {
			t.Fatalf("paintStatus(%s) = %q without color", status, got)
		}
	}

	color.NoColor = false
	if got := paintStatus(check.StatusOpen); got == string(check.StatusOpen) || !strings.Contains(got, "OPEN") {
		t.Fatalf("expected OPEN to be colorized, got %q", got)
	}
	if got := paintStatus(check.Status("PENDING")); got != "PENDING" {
		t.Fatalf("expected unrecognized status to stay plain, got %q", got)
	}
}

func TestPrintExecution(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})

	exec := execWithStatus(t, check.Open("Anonymous login allowed", check.NewUnit("ftp.example.com", []string{"anonymous"})))

	var buf bytes.Buffer
	if err := printExecution(&buf, exec, false); err != nil {
		t.Fatalf("printExecution failed: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "[OPEN] test.check: Anonymous login allowed\n---\n") {
		t.Fatalf("unexpected header: %q", out)
	}
	if !strings.Contains(out, "status: OPEN") || !strings.Contains(out, "where: ftp.example.com") {
		t.Fatalf("expected YAML record, got %q", out)
	}

	buf.Reset()
	if err := printExecution(&buf, exec, true); err != nil {
		t.Fatalf("printExecution failed: %v", err)
	}
	if strings.Contains(buf.String(), "---") {
		t.Fatalf("quiet output should not include the record: %q", buf.String())
	}
}

func TestPrintExecutionWithoutResult(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})

	exec := assert.Execution{
		Invocation: assert.Invocation{Check: "proto.nope"},
		Err:        sharedErrors.ErrCheckNotFound,
	}
	var buf bytes.Buffer
	if err := printExecution(&buf, exec, false); err != nil {
		t.Fatalf("printExecution failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "[ERROR] proto.nope: check not found") {
		t.Fatalf("unexpected status line: %q", out)
	}
	if !strings.Contains(out, "error: check not found") {
		t.Fatalf("expected error record, got %q", out)
	}
}

func TestPrintSummary(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})

	execs := []assert.Execution{
		execWithStatus(t, check.Closed("ok")),
		execWithStatus(t, check.Closed("ok")),
		execWithStatus(t, check.Unknown("?")),
		{Invocation: assert.Invocation{Check: "x"}, Err: errors.New("boom")},
	}
	var buf bytes.Buffer
	printSummary(&buf, execs)
	want := "summary: CLOSED 2, OPEN 0, UNKNOWN 1, ERROR 1"
	if !strings.Contains(buf.String(), want) {
		t.Fatalf("expected %q in %q", want, buf.String())
	}
}

func TestWriteRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "records.yaml")
	execs := []assert.Execution{
		execWithStatus(t, check.Closed("ok")),
		{Invocation: assert.Invocation{Check: "x"}, Err: errors.New("boom")},
	}

	sum, err := writeRecords(path, execs)
	if err != nil {
		t.Fatalf("writeRecords failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read records: %v", err)
	}
	var records []map[string]any
	if err := yaml.Unmarshal(data, &records); err != nil {
		t.Fatalf("records are not a YAML list: %v", err)
	}
	if len(records) != 2 || records[0]["status"] != "CLOSED" || records[1]["status"] != "ERROR" {
		t.Fatalf("unexpected records: %#v", records)
	}

	digest := sha256.Sum256(data)
	if sum != hex.EncodeToString(digest[:]) {
		t.Fatalf("returned hash %s does not match file contents", sum)
	}
	sidecar, err := os.ReadFile(path + ".sha256")
	if err != nil {
		t.Fatalf("missing sha256 sidecar: %v", err)
	}
	if string(sidecar) != sum+"  records.yaml\n" {
		t.Fatalf("unexpected sidecar contents: %q", sidecar)
	}
}
