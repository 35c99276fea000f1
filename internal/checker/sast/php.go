package sast

import (
	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/lang"
)

const sourcePHP = "PHP/Code"

// superglobals carry request data.
const superglobals = `\$_(?:GET|POST|REQUEST|COOKIE|FILES|SERVER)\b`

// PHPUsesEval flags eval, create_function and the preg_replace /e modifier.
var PHPUsesEval = grammarCheck(assert.Meta{
	Name:        "lang.php.uses_eval",
	Description: "OPEN when the code evaluates strings as PHP code.",
	Risk:        check.RiskHigh,
}, lang.PHP, lang.AnyOf(
	lang.Call("eval", "create_function"),
	lang.Regexp(`preg_replace\s*\(\s*(?:'[^']*/[a-zA-Z]*e[a-zA-Z]*'|"[^"]*/[a-zA-Z]*e[a-zA-Z]*")`),
), lang.Messages{
	Open:   "Code uses eval",
	Closed: "Code does not use eval",
	Source: sourcePHP,
})

// PHPHasUnsanitizedInput flags request superglobals passed straight to
// output, shell, file or query sinks.
var PHPHasUnsanitizedInput = grammarCheck(assert.Meta{
	Name:        "lang.php.has_unsanitized_input",
	Description: "OPEN when request input reaches an output, shell, file or SQL sink unfiltered.",
	Risk:        check.RiskHigh,
}, lang.PHP, lang.Except(
	lang.AnyOf(
		lang.Regexp(`\b(?:echo|print)\b[^;]*`+superglobals),
		lang.Regexp(`\b(?:system|exec|shell_exec|passthru|popen|include|include_once|require|require_once|mysql_query|mysqli_query)\b[^;]*`+superglobals),
		lang.Regexp(`->\s*query\s*\([^;]*`+superglobals),
	),
	lang.Regexp(`\b(?:htmlspecialchars|htmlentities|escapeshellarg|escapeshellcmd|intval|filter_input|filter_var|mysqli_real_escape_string|basename)\s*\(`),
), lang.Messages{
	Open:   "Code uses unsanitized request input",
	Closed: "Code sanitizes request input",
	Source: sourcePHP,
})
