package lang

import (
	"path/filepath"
	"strings"
)

// Spec describes how to recognize a language's files and comments.
type Spec struct {
	Name         string
	Extensions   []string    // lowercase, without the dot
	FileNames    []string    // exact base names such as "Dockerfile"
	LineComment  []string    // markers that comment out the rest of the line
	BlockComment [][2]string // start/end pairs
	StringDelims []string    // quote characters; comment markers inside are ignored
}

// Matches reports whether the file at path belongs to the language.
func (s Spec) Matches(path string) bool {
	base := filepath.Base(path)
	for _, name := range s.FileNames {
		if base == name || strings.HasPrefix(base, name+".") {
			return true
		}
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")
	if ext == "" {
		return false
	}
	for _, e := range s.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

var (
	Python = Spec{
		Name:         "python",
		Extensions:   []string{"py"},
		LineComment:  []string{"#"},
		BlockComment: [][2]string{{`"""`, `"""`}, {`'''`, `'''`}},
		StringDelims: []string{`"`, `'`},
	}

	PHP = Spec{
		Name:         "php",
		Extensions:   []string{"php", "phtml"},
		LineComment:  []string{"//", "#"},
		BlockComment: [][2]string{{"/*", "*/"}},
		StringDelims: []string{`"`, `'`},
	}

	CSharp = Spec{
		Name:         "csharp",
		Extensions:   []string{"cs"},
		LineComment:  []string{"//"},
		BlockComment: [][2]string{{"/*", "*/"}},
		StringDelims: []string{`"`},
	}

	Java = Spec{
		Name:         "java",
		Extensions:   []string{"java"},
		LineComment:  []string{"//"},
		BlockComment: [][2]string{{"/*", "*/"}},
		StringDelims: []string{`"`},
	}

	Go = Spec{
		Name:         "go",
		Extensions:   []string{"go"},
		LineComment:  []string{"//"},
		BlockComment: [][2]string{{"/*", "*/"}},
		StringDelims: []string{`"`, "`"},
	}

	HTML = Spec{
		Name:         "html",
		Extensions:   []string{"html", "htm", "xhtml"},
		BlockComment: [][2]string{{"<!--", "-->"}},
	}

	Dockerfile = Spec{
		Name:         "dockerfile",
		Extensions:   []string{"dockerfile"},
		FileNames:    []string{"Dockerfile"},
		LineComment:  []string{"#"},
		StringDelims: []string{`"`, `'`},
	}

	RPG = Spec{
		Name:         "rpg",
		Extensions:   []string{"rpg", "rpgle", "sqlrpgle"},
		LineComment:  []string{"//"},
		StringDelims: []string{`'`},
	}
)
