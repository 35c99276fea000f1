package sca

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

// Package is one pinned dependency taken from a manifest.
type Package struct {
	Name    string
	Version string
}

func (p Package) String() string {
	return p.Name + "@" + p.Version
}

// parser extracts pinned packages from a manifest's content.
type parser func(path string, data []byte) ([]Package, error)

func dedupe(pkgs []Package) []Package {
	seen := make(map[Package]bool, len(pkgs))
	out := pkgs[:0]
	for _, p := range pkgs {
		if p.Name == "" || p.Version == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// parseGoMod lists the required modules of a go.mod file, indirect ones
// included.
func parseGoMod(path string, data []byte) ([]Package, error) {
	f, err := modfile.ParseLax(path, data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", sharedErrors.ErrInvalidParameter, path, err)
	}
	pkgs := make([]Package, 0, len(f.Require))
	for _, req := range f.Require {
		pkgs = append(pkgs, Package{Name: req.Mod.Path, Version: req.Mod.Version})
	}
	return dedupe(pkgs), nil
}

var requirementPattern = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)(?:\[[^\]]*\])?\s*===?\s*([A-Za-z0-9.!+_-]+)`)

// parseRequirements reads pip requirement files. Only exact pins are kept;
// ranges cannot be matched against a single advisory version.
func parseRequirements(_ string, data []byte) ([]Package, error) {
	var pkgs []Package
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, " #"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		line, _, _ = strings.Cut(line, ";")
		if m := requirementPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			name := strings.ToLower(strings.NewReplacer("_", "-", ".", "-").Replace(m[1]))
			pkgs = append(pkgs, Package{Name: name, Version: m[2]})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return dedupe(pkgs), nil
}

type npmLock struct {
	Packages map[string]struct {
		Version string `json:"version"`
		Link    bool   `json:"link"`
	} `json:"packages"`
	Dependencies map[string]npmLockDep `json:"dependencies"`
}

type npmLockDep struct {
	Version      string                `json:"version"`
	Dependencies map[string]npmLockDep `json:"dependencies"`
}

// parseNPMLock reads package-lock.json in both the nested v1 layout and the
// flat packages map used since v2.
func parseNPMLock(path string, data []byte) ([]Package, error) {
	var lock npmLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", sharedErrors.ErrInvalidParameter, path, err)
	}
	var pkgs []Package
	if len(lock.Packages) > 0 {
		for key, entry := range lock.Packages {
			i := strings.LastIndex(key, "node_modules/")
			if i < 0 || entry.Link {
				continue
			}
			pkgs = append(pkgs, Package{Name: key[i+len("node_modules/"):], Version: entry.Version})
		}
		return dedupe(pkgs), nil
	}
	var walk func(deps map[string]npmLockDep)
	walk = func(deps map[string]npmLockDep) {
		for name, dep := range deps {
			pkgs = append(pkgs, Package{Name: name, Version: dep.Version})
			walk(dep.Dependencies)
		}
	}
	walk(lock.Dependencies)
	return dedupe(pkgs), nil
}

var exactVersion = regexp.MustCompile(`^[~^=v]*(\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.-]+)?)$`)

// parsePackageJSON reads the direct dependencies of package.json. Caret and
// tilde ranges are reduced to their base version; other ranges are skipped.
func parsePackageJSON(path string, data []byte) ([]Package, error) {
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", sharedErrors.ErrInvalidParameter, path, err)
	}
	var pkgs []Package
	for _, deps := range []map[string]string{manifest.Dependencies, manifest.DevDependencies} {
		for name, spec := range deps {
			if m := exactVersion.FindStringSubmatch(strings.TrimSpace(spec)); m != nil {
				pkgs = append(pkgs, Package{Name: name, Version: m[1]})
			}
		}
	}
	return dedupe(pkgs), nil
}
