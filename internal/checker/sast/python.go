package sast

import (
	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/lang"
)

const sourcePython = "Python/Code"

// PythonUsesEval flags eval and exec calls.
var PythonUsesEval = grammarCheck(assert.Meta{
	Name:        "lang.python.uses_eval",
	Description: "OPEN when the code calls eval or exec.",
	Risk:        check.RiskHigh,
}, lang.Python, lang.Call("eval", "exec"), lang.Messages{
	Open:   "Code uses eval or exec",
	Closed: "Code does not use eval or exec",
	Source: sourcePython,
})

// PythonUsesUnsafeYAMLLoad flags yaml.load without an explicit safe loader,
// plus yaml.unsafe_load and yaml.full_load.
var PythonUsesUnsafeYAMLLoad = grammarCheck(assert.Meta{
	Name:        "lang.python.uses_unsafe_yaml_load",
	Description: "OPEN when YAML is loaded with a loader that can build arbitrary objects.",
	Risk:        check.RiskHigh,
}, lang.Python, lang.AnyOf(
	lang.Except(
		lang.Regexp(`\byaml\.load(?:_all)?\s*\(`),
		lang.Regexp(`Loader\s*=\s*(?:yaml\.)?(?:Safe|CSafe|Base)Loader`),
	),
	lang.Regexp(`\byaml\.(?:unsafe_load|unsafe_load_all|full_load|full_load_all)\s*\(`),
), lang.Messages{
	Open:   "Code loads YAML unsafely",
	Closed: "Code does not load YAML unsafely",
	Source: sourcePython,
})

// PythonHasGenericExceptions flags bare except clauses and catches of
// Exception or BaseException.
var PythonHasGenericExceptions = grammarCheck(assert.Meta{
	Name:        "lang.python.has_generic_exceptions",
	Description: "OPEN when the code catches generic exceptions.",
	Risk:        check.RiskLow,
}, lang.Python, lang.Regexp(`^[ \t]*except\s*(?::|\(?\s*(?:Exception|BaseException)\b)`), lang.Messages{
	Open:   "Code catches generic exceptions",
	Closed: "Code does not catch generic exceptions",
	Source: sourcePython,
})
