package sast

import (
	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/lang"
)

const sourceCSharp = "CSharp/Code"

// CSharpUsesInsecureHash flags MD5 and SHA1 primitives.
var CSharpUsesInsecureHash = grammarCheck(assert.Meta{
	Name:        "lang.csharp.uses_insecure_hash",
	Description: "OPEN when the code uses MD5 or SHA1.",
	Risk:        check.RiskMedium,
}, lang.CSharp, lang.AnyOf(
	lang.Keywords("MD5CryptoServiceProvider", "SHA1CryptoServiceProvider", "SHA1Managed", "MD5Cng", "SHA1Cng"),
	lang.Regexp(`\b(?:MD5|SHA1)\s*\.\s*(?:Create|HashData)\s*\(`),
), lang.Messages{
	Open:   "Code uses insecure hash functions",
	Closed: "Code does not use insecure hash functions",
	Source: sourceCSharp,
})

// CSharpHasGenericExceptions flags catch-all handlers.
var CSharpHasGenericExceptions = grammarCheck(assert.Meta{
	Name:        "lang.csharp.has_generic_exceptions",
	Description: "OPEN when the code catches generic exceptions.",
	Risk:        check.RiskLow,
}, lang.CSharp, lang.Regexp(`\bcatch\s*(?:\{|\(\s*(?:System\.)?Exception\b)`), lang.Messages{
	Open:   "Code catches generic exceptions",
	Closed: "Code does not catch generic exceptions",
	Source: sourceCSharp,
})
