package check

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Result represents the outcome of one check invocation
type Result struct {
	id          string
	check       string
	description string
	risk        Risk
	kind        Kind
	status      Status
	message     string
	vulns       []Unit
	safes       []Unit
	when        time.Time
	elapsed     time.Duration
	parameters  map[string]any
}

// NewResult creates a new result for the named check
func NewResult(checkName, description string, risk Risk, kind Kind) (*Result, error) {
	if checkName == "" {
		return nil, errors.New("check name cannot be empty")
	}

	return &Result{
		id:          uuid.NewString(),
		check:       checkName,
		description: description,
		risk:        risk,
		kind:        kind,
		status:      StatusUnknown,
		when:        time.Now().UTC(),
	}, nil
}

// Business methods

// ApplyOutcome copies a check body's outcome into the result
func (r *Result) ApplyOutcome(o Outcome) {
	r.status = o.Status
	r.message = o.Message
	r.vulns = append([]Unit(nil), o.Vulns...)
	r.safes = append([]Unit(nil), o.Safes...)
}

// SetError marks the result as failed unexpectedly
func (r *Result) SetError(err error) {
	r.status = StatusError
	if err != nil {
		r.message = err.Error()
	}
}

// SetElapsed records how long the check took
func (r *Result) SetElapsed(d time.Duration) {
	r.elapsed = d
}

// SetParameters records the call parameters
func (r *Result) SetParameters(params map[string]any) {
	r.parameters = params
}

// IsOpen reports whether the check found a vulnerability
func (r *Result) IsOpen() bool {
	return r.status == StatusOpen
}

// Evidence returns the authoritative unit list for the current status:
// vulnerable units when OPEN, safe units otherwise.
func (r *Result) Evidence() []Unit {
	if r.status == StatusOpen {
		return r.Vulns()
	}
	return r.Safes()
}

// Getters

func (r *Result) ID() string {
	return r.id
}

func (r *Result) Check() string {
	return r.check
}

func (r *Result) Description() string {
	return r.description
}

func (r *Result) Risk() Risk {
	return r.risk
}

func (r *Result) Kind() Kind {
	return r.kind
}

func (r *Result) Status() Status {
	return r.status
}

func (r *Result) Message() string {
	return r.message
}

func (r *Result) Vulns() []Unit {
	return append([]Unit(nil), r.vulns...)
}

func (r *Result) Safes() []Unit {
	return append([]Unit(nil), r.safes...)
}

func (r *Result) When() time.Time {
	return r.when
}

func (r *Result) Elapsed() time.Duration {
	return r.elapsed
}

func (r *Result) Parameters() map[string]any {
	if r.parameters == nil {
		return nil
	}
	out := make(map[string]any, len(r.parameters))
	for k, v := range r.parameters {
		out[k] = v
	}
	return out
}

// Record is the serializable view of a Result used for YAML and JSON output.
type Record struct {
	ID             string         `json:"id" yaml:"id"`
	Check          string         `json:"check" yaml:"check"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Status         Status         `json:"status" yaml:"status"`
	Message        string         `json:"message,omitempty" yaml:"message,omitempty"`
	Risk           Risk           `json:"risk" yaml:"risk"`
	Kind           Kind           `json:"kind" yaml:"kind"`
	Vulnerable     []UnitRecord   `json:"vulnerable,omitempty" yaml:"vulnerable,omitempty"`
	Safe           []UnitRecord   `json:"safe,omitempty" yaml:"safe,omitempty"`
	When           time.Time      `json:"when" yaml:"when"`
	ElapsedSeconds float64        `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	Parameters     map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Record returns the serializable view of the result
func (r *Result) Record() Record {
	rec := Record{
		ID:             r.id,
		Check:          r.check,
		Description:    r.description,
		Status:         r.status,
		Message:        r.message,
		Risk:           r.risk,
		Kind:           r.kind,
		When:           r.when,
		ElapsedSeconds: r.elapsed.Seconds(),
		Parameters:     r.Parameters(),
	}
	for _, u := range r.vulns {
		rec.Vulnerable = append(rec.Vulnerable, u.Record())
	}
	for _, u := range r.safes {
		rec.Safe = append(rec.Safe, u.Record())
	}
	return rec
}
