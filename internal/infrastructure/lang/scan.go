package lang

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

// Match holds the matching lines of one file.
type Match struct {
	Lines  []int
	SHA256 string
}

// Scan is the outcome of running a grammar over a file tree.
type Scan struct {
	Matches map[string]Match  // files with at least one matching line
	Scanned map[string]string // every scanned file and its sha256
}

// Files returns the scanned files sorted by path.
func (s Scan) Files() []string {
	files := make([]string, 0, len(s.Scanned))
	for f := range s.Scanned {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// CheckGrammar runs grammar over the non-commented code of every file under
// path that belongs to spec. Paths containing any exclude substring are
// skipped. A path given directly as a file is scanned whatever its extension.
func CheckGrammar(grammar Grammar, path string, spec Spec, exclude []string) (Scan, error) {
	scan := Scan{Matches: map[string]Match{}, Scanned: map[string]string{}}

	files, err := sourceFiles(path, spec, exclude)
	if err != nil {
		return scan, err
	}

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return scan, fmt.Errorf("read %s: %w", file, err)
		}
		if !isLikelyText(content) {
			continue
		}

		sum := sha256.Sum256(content)
		digest := hex.EncodeToString(sum[:])
		scan.Scanned[file] = digest

		lines := grammar.FindLines(NonCommented(string(content), spec))
		if len(lines) > 0 {
			scan.Matches[file] = Match{Lines: lines, SHA256: digest}
		}
	}
	return scan, nil
}

// Messages are the texts a grammar-backed check reports.
type Messages struct {
	Open   string
	Closed string
	Source string
}

// GenericMethod reports every file where grammar matches as vulnerable and
// every other scanned file as safe.
func GenericMethod(path string, grammar Grammar, spec Spec, msgs Messages, exclude []string) (check.Outcome, error) {
	scan, err := CheckGrammar(grammar, path, spec, exclude)
	if err != nil {
		return check.Outcome{}, err
	}

	var vulns, safes []check.Unit
	for _, file := range scan.Files() {
		fp := check.WithFingerprint(map[string]string{"sha256": scan.Scanned[file]})
		if m, ok := scan.Matches[file]; ok {
			vulns = append(vulns, check.NewUnit(file, lineStrings(m.Lines), check.WithSource(msgs.Source), fp))
			continue
		}
		safes = append(safes, check.NewUnit(file, nil, check.WithSource(msgs.Source), fp))
	}
	return check.Classify(msgs.Open, msgs.Closed, vulns, safes), nil
}

// GenericMethodAbsent is the inverse of GenericMethod: a file is vulnerable
// when grammar does not match anywhere in it.
func GenericMethodAbsent(path string, grammar Grammar, spec Spec, msgs Messages, exclude []string) (check.Outcome, error) {
	scan, err := CheckGrammar(grammar, path, spec, exclude)
	if err != nil {
		return check.Outcome{}, err
	}

	var vulns, safes []check.Unit
	for _, file := range scan.Files() {
		fp := check.WithFingerprint(map[string]string{"sha256": scan.Scanned[file]})
		if m, ok := scan.Matches[file]; ok {
			safes = append(safes, check.NewUnit(file, lineStrings(m.Lines), check.WithSource(msgs.Source), fp))
			continue
		}
		vulns = append(vulns, check.NewUnit(file, nil, check.WithSource(msgs.Source), fp))
	}
	return check.Classify(msgs.Open, msgs.Closed, vulns, safes), nil
}

func sourceFiles(path string, spec Spec, exclude []string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", sharedErrors.ErrFileNotFound, path)
		}
		return nil, err
	}
	if !info.IsDir() {
		if isExcluded(path, exclude) {
			return nil, nil
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != path && shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if isExcluded(p, exclude) || !spec.Matches(p) {
			return nil
		}
		if fi, err := d.Info(); err == nil && fi.Size() > consts.MaxSourceFileBytes {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func shouldSkipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", "dist", "build", ".idea", ".vscode", "__pycache__":
		return true
	default:
		return false
	}
}

func isExcluded(path string, exclude []string) bool {
	for _, e := range exclude {
		if e != "" && strings.Contains(path, e) {
			return true
		}
	}
	return false
}

func isLikelyText(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	if bytes.IndexByte(b, 0x00) >= 0 {
		return false
	}
	return utf8.Valid(b)
}

func lineStrings(lines []int) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, strconv.Itoa(l))
	}
	return out
}
