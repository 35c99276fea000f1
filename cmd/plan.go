package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
)

// planFile is the mapping form of a plan. A bare list of invocations is
// accepted too.
type planFile struct {
	Checks []assert.Invocation `yaml:"checks"`
}

// loadPlan reads the invocations of a YAML plan.
func loadPlan(path string) ([]assert.Invocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &PlanNotFoundError{Path: path}
		}
		return nil, &PlanError{Path: path, Reason: "read failed", Err: err}
	}
	plan, err := parsePlan(data)
	if err != nil {
		return nil, &PlanError{Path: path, Reason: "invalid plan", Err: err}
	}
	return plan, nil
}

func parsePlan(data []byte) ([]assert.Invocation, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("plan is empty")
	}

	var invocations []assert.Invocation
	switch root := doc.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&invocations); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var pf planFile
		if err := root.Decode(&pf); err != nil {
			return nil, err
		}
		invocations = pf.Checks
	default:
		return nil, fmt.Errorf("plan must be a list of checks or a mapping with a checks key (line %d)", root.Line)
	}

	if len(invocations) == 0 {
		return nil, errors.New("plan has no checks")
	}
	for i, inv := range invocations {
		if strings.TrimSpace(inv.Check) == "" {
			return nil, fmt.Errorf("entry %d has no check name", i+1)
		}
	}
	return invocations, nil
}

// inlineInvocation builds a single-entry plan from --check and --param
// flags. Params are key=value pairs; values stay strings and are converted
// by the check's parameter decoder.
func inlineInvocation(name string, params []string) ([]assert.Invocation, error) {
	raw := make(map[string]any, len(params))
	for _, p := range params {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, &ConfigError{Reason: fmt.Sprintf("param %q must be key=value", p)}
		}
		raw[key] = value
	}
	return []assert.Invocation{{Check: name, Params: raw}}, nil
}
