package sast

import (
	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/lang"
)

// RPGHasDebugEnabled flags DEBUG in fixed-form H specs and free-form
// ctl-opt statements, unless it is DEBUG(*NO).
var RPGHasDebugEnabled = grammarCheck(assert.Meta{
	Name:        "lang.rpg.has_debug_enabled",
	Description: "OPEN when the program is compiled with DEBUG enabled.",
	Risk:        check.RiskLow,
}, lang.RPG, lang.Except(
	lang.Regexp(`(?i)^[ \t]*(?:H\s|ctl-opt\b).*\bDEBUG\b`),
	lang.Regexp(`(?i)\bDEBUG\s*\(\s*\*NO\s*\)`),
), lang.Messages{
	Open:   "Program has DEBUG enabled",
	Closed: "Program does not have DEBUG enabled",
	Source: "RPG/Code",
})
