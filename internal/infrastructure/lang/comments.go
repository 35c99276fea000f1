package lang

import "strings"

// NonCommented blanks every comment in code while keeping newlines, so line
// numbers of the remaining code are unchanged. Comment markers that appear
// inside string literals are left alone.
func NonCommented(code string, spec Spec) string {
	var b strings.Builder
	b.Grow(len(code))

	i := 0
	for i < len(code) {
		if end, ok := blockEnd(code, i, spec); ok {
			blank(&b, code[i:end])
			i = end
			continue
		}
		if hasAnyPrefix(code[i:], spec.LineComment) {
			end := strings.IndexByte(code[i:], '\n')
			if end < 0 {
				end = len(code) - i
			}
			blank(&b, code[i:i+end])
			i += end
			continue
		}
		if delim, ok := matchPrefix(code[i:], spec.StringDelims); ok {
			end := stringEnd(code, i+len(delim), delim)
			b.WriteString(code[i:end])
			i = end
			continue
		}
		b.WriteByte(code[i])
		i++
	}
	return b.String()
}

func blockEnd(code string, i int, spec Spec) (int, bool) {
	for _, pair := range spec.BlockComment {
		if !strings.HasPrefix(code[i:], pair[0]) {
			continue
		}
		start := i + len(pair[0])
		idx := strings.Index(code[start:], pair[1])
		if idx < 0 {
			return len(code), true
		}
		return start + idx + len(pair[1]), true
	}
	return 0, false
}

// stringEnd returns the index just past the closing delimiter. Unterminated
// strings end at the line break.
func stringEnd(code string, i int, delim string) int {
	for i < len(code) {
		switch {
		case code[i] == '\\' && delim != "`":
			i += 2
		case strings.HasPrefix(code[i:], delim):
			return i + len(delim)
		case code[i] == '\n' && delim != "`":
			return i
		default:
			i++
		}
	}
	return len(code)
}

func blank(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	_, ok := matchPrefix(s, prefixes)
	return ok
}

func matchPrefix(s string, prefixes []string) (string, bool) {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return p, true
		}
	}
	return "", false
}
