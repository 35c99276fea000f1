// Package format inspects binary artifacts: keystores, certificates, PDF
// documents and Android packages.
package format

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

// Params is a file, or a directory searched for files of the check's type.
// Paths containing any Exclude substring are skipped.
type Params struct {
	Path    string   `mapstructure:"path"`
	Exclude []string `mapstructure:"exclude"`
}

func (p Params) validate() error {
	if strings.TrimSpace(p.Path) == "" {
		return fmt.Errorf("%w: path is required", sharedErrors.ErrInvalidParameter)
	}
	return nil
}

// inspector looks at one file's content. It returns whether the file is
// vulnerable plus evidence lines. An error aborts the whole check.
type inspector func(path string, data []byte) (bool, []string, error)

type fileType struct {
	extensions []string
	source     string
}

func (t fileType) matches(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range t.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// files lists the files under path of type t. A path given directly as a
// file is returned whatever its extension.
func (t fileType) files(path string, exclude []string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", sharedErrors.ErrFileNotFound, path)
		}
		return nil, err
	}
	if !info.IsDir() {
		if excluded(path, exclude) {
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
			if p != path && d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !excluded(p, exclude) && t.matches(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func excluded(path string, exclude []string) bool {
	for _, e := range exclude {
		if e != "" && strings.Contains(path, e) {
			return true
		}
	}
	return false
}

// inspectFiles runs inspect over every file of type t under path.
func inspectFiles(path string, exclude []string, t fileType, inspect inspector) (vulns, safes []check.Unit, err error) {
	files, err := t.files(path, exclude)
	if err != nil {
		return nil, nil, err
	}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", file, err)
		}
		vulnerable, specific, err := inspect(file, data)
		if err != nil {
			return nil, nil, err
		}
		sum := sha256.Sum256(data)
		unit := check.NewUnit(file, specific,
			check.WithSource(t.source),
			check.WithFingerprint(map[string]string{"sha256": hex.EncodeToString(sum[:])}),
		)
		if vulnerable {
			vulns = append(vulns, unit)
		} else {
			safes = append(safes, unit)
		}
	}
	return vulns, safes, nil
}

// fileCheck builds a static check that opens for every file inspect flags.
func fileCheck(meta assert.Meta, t fileType, openMsg, closedMsg string, inspect inspector) *assert.Check[Params] {
	meta.Kind = check.KindSAST
	return assert.API(meta, assert.UnknownIf(func(_ context.Context, p Params) (check.Outcome, error) {
		if err := p.validate(); err != nil {
			return check.Outcome{}, err
		}
		vulns, safes, err := inspectFiles(p.Path, p.Exclude, t, inspect)
		if err != nil {
			return check.Outcome{}, err
		}
		return check.Classify(openMsg, closedMsg, vulns, safes), nil
	}, assert.FileErrors...))
}

func invalidFile(path, format string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s is not a valid %s: %v", sharedErrors.ErrInvalidParameter, path, format, err)
	}
	return fmt.Errorf("%w: %s is not a valid %s", sharedErrors.ErrInvalidParameter, path, format)
}

// Register adds every file format check to r.
func Register(r *assert.Registry) {
	for _, c := range []*assert.Check[Params]{
		PKCS12HasNoPassword,
		JKSHasNoPassword,
		PDFHasJavaScript,
		APKIsNotSigned,
		APKHasDebugLibraries,
		CertIsExpired,
		CertHasWeakKey,
	} {
		assert.MustRegister(r, c)
	}
	assert.MustRegister(r, JKSHasWeakPassword)
}
