package lang

import (
	"regexp"
	"sort"
	"strings"
)

// Grammar finds the lines of code that match a pattern.
type Grammar interface {
	// FindLines returns sorted, distinct 1-based line numbers.
	FindLines(code string) []int
}

type regexpGrammar struct {
	re *regexp.Regexp
}

// Regexp builds a grammar from a regular expression. Patterns are compiled in
// multi-line mode so ^ and $ anchor at line boundaries.
func Regexp(pattern string) Grammar {
	return regexpGrammar{re: regexp.MustCompile(`(?m)` + pattern)}
}

// Keywords matches any of the words as whole identifiers.
func Keywords(words ...string) Grammar {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	return Regexp(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Call matches invocations of any of the named functions, e.g. eval(.
func Call(names ...string) Grammar {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, regexp.QuoteMeta(n))
	}
	return Regexp(`(?:^|[^\w.$])(?:` + strings.Join(quoted, "|") + `)\s*\(`)
}

func (g regexpGrammar) FindLines(code string) []int {
	locs := g.re.FindAllStringIndex(code, -1)
	if len(locs) == 0 {
		return nil
	}

	lines := make([]int, 0, len(locs))
	line, pos := 1, 0
	for _, loc := range locs {
		// Leading context such as [^\w] may start on the previous line.
		start := loc[0]
		if start < len(code) && code[start] == '\n' && loc[1] > start+1 {
			start++
		}
		line += strings.Count(code[pos:start], "\n")
		pos = start
		lines = append(lines, line)
	}
	return dedupe(lines)
}

type anyOf []Grammar

// AnyOf matches lines matched by at least one grammar.
func AnyOf(grammars ...Grammar) Grammar {
	return anyOf(grammars)
}

func (a anyOf) FindLines(code string) []int {
	var lines []int
	for _, g := range a {
		lines = append(lines, g.FindLines(code)...)
	}
	return dedupe(lines)
}

type except struct {
	grammar Grammar
	filter  Grammar
}

// Except drops lines of g that filter also matches.
func Except(g, filter Grammar) Grammar {
	return except{grammar: g, filter: filter}
}

func (e except) FindLines(code string) []int {
	skip := make(map[int]bool)
	for _, l := range e.filter.FindLines(code) {
		skip[l] = true
	}
	var out []int
	for _, l := range e.grammar.FindLines(code) {
		if !skip[l] {
			out = append(out, l)
		}
	}
	return out
}

// GrammarFunc adapts a function to the Grammar interface.
type GrammarFunc func(code string) []int

func (f GrammarFunc) FindLines(code string) []int {
	return dedupe(f(code))
}

func dedupe(lines []int) []int {
	if len(lines) == 0 {
		return nil
	}
	sort.Ints(lines)
	out := lines[:1]
	for _, l := range lines[1:] {
		if l != out[len(out)-1] {
			out = append(out, l)
		}
	}
	return out
}
