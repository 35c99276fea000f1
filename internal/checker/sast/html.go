package sast

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/lang"
)

const sourceHTML = "HTML/Markup"

// tagVisitor sees each tag and reports whether a start tag is a finding.
// End tags are passed with start=false.
type tagVisitor func(tok html.Token, start bool) bool

// tagGrammar runs visit over the tokens of an HTML document.
func tagGrammar(newVisitor func() tagVisitor) lang.Grammar {
	return lang.GrammarFunc(func(code string) []int {
		visit := newVisitor()
		z := html.NewTokenizer(strings.NewReader(code))
		line := 1
		var lines []int
		for {
			tt := z.Next()
			if tt == html.ErrorToken {
				return lines
			}
			// Tags start at the current line; their raw text may span more.
			tokLine := line
			line += bytes.Count(z.Raw(), []byte("\n"))

			switch tt {
			case html.StartTagToken, html.SelfClosingTagToken:
				if visit(z.Token(), true) {
					lines = append(lines, tokLine)
				}
			case html.EndTagToken:
				visit(z.Token(), false)
			}
		}
	})
}

func attr(tok html.Token, name string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Key == name {
			return strings.ToLower(strings.TrimSpace(a.Val)), true
		}
	}
	return "", false
}

// autocompleteVisitor flags password inputs that neither the input nor
// its enclosing form opt out of autocomplete.
func autocompleteVisitor() tagVisitor {
	formOff := false
	return func(tok html.Token, start bool) bool {
		switch tok.Data {
		case "form":
			if start {
				v, _ := attr(tok, "autocomplete")
				formOff = v == "off"
			} else {
				formOff = false
			}
		case "input":
			if !start || formOff {
				return false
			}
			if typ, _ := attr(tok, "type"); typ != "password" {
				return false
			}
			v, _ := attr(tok, "autocomplete")
			return v != "off" && v != "new-password"
		}
		return false
	}
}

// targetBlankVisitor flags links opened in a new tab without noopener.
func targetBlankVisitor() tagVisitor {
	return func(tok html.Token, start bool) bool {
		if !start || (tok.Data != "a" && tok.Data != "area" && tok.Data != "form") {
			return false
		}
		if target, _ := attr(tok, "target"); target != "_blank" {
			return false
		}
		if href, ok := attr(tok, "href"); ok && !strings.Contains(href, "://") && !strings.HasPrefix(href, "//") {
			return false
		}
		rel, _ := attr(tok, "rel")
		for _, f := range strings.Fields(rel) {
			if f == "noopener" || f == "noreferrer" {
				return false
			}
		}
		return true
	}
}

// HTMLHasAutocompleteEnabled flags password fields browsers may remember.
var HTMLHasAutocompleteEnabled = grammarCheck(assert.Meta{
	Name:        "lang.html.has_autocomplete_enabled",
	Description: "OPEN when a password field allows browser autocomplete.",
	Risk:        check.RiskLow,
}, lang.HTML, tagGrammar(autocompleteVisitor), lang.Messages{
	Open:   "Password fields allow autocomplete",
	Closed: "Password fields disable autocomplete",
	Source: sourceHTML,
})

// HTMLHasUnsafeTargetBlank flags external links exposing window.opener.
var HTMLHasUnsafeTargetBlank = grammarCheck(assert.Meta{
	Name:        "lang.html.has_unsafe_target_blank",
	Description: `OPEN when an external link uses target="_blank" without rel="noopener".`,
	Risk:        check.RiskLow,
}, lang.HTML, tagGrammar(targetBlankVisitor), lang.Messages{
	Open:   "Links open new windows unsafely",
	Closed: "Links open new windows safely",
	Source: sourceHTML,
})
