// Package sca matches pinned dependencies of a manifest against the OSV
// vulnerability database.
package sca

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/async"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/httpsession"
	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

const (
	sourceOSV = "SCA/OSV"

	// DefaultOSVURL is the public OSV query endpoint.
	DefaultOSVURL = "https://api.osv.dev/v1/query"
)

// retryDelay is the pause between OSV attempts.
var retryDelay = consts.RetryDelay

var errorChecks = append(append([]error{}, assert.NetworkErrors...), sharedErrors.ErrFileNotFound)

// Params points at a manifest file or the directory holding it.
type Params struct {
	Path    string        `mapstructure:"path"`
	APIURL  string        `mapstructure:"api_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (p Params) apiURL() string {
	if strings.TrimSpace(p.APIURL) != "" {
		return p.APIURL
	}
	return DefaultOSVURL
}

// ecosystem ties an OSV ecosystem to the manifests it can read. Manifests
// are tried in order when Params.Path is a directory.
type ecosystem struct {
	name      string
	manifests []string
	parsers   map[string]parser
}

var (
	goEcosystem = ecosystem{
		name:      "Go",
		manifests: []string{"go.mod"},
		parsers:   map[string]parser{"go.mod": parseGoMod},
	}
	pypiEcosystem = ecosystem{
		name:      "PyPI",
		manifests: []string{"requirements.txt"},
		parsers:   map[string]parser{"requirements.txt": parseRequirements},
	}
	npmEcosystem = ecosystem{
		name:      "npm",
		manifests: []string{"package-lock.json", "package.json"},
		parsers: map[string]parser{
			"package-lock.json": parseNPMLock,
			"package.json":      parsePackageJSON,
		},
	}
)

// manifest resolves path to a manifest of the ecosystem and returns its
// parser. Files with unfamiliar names use the first parser.
func (e ecosystem) manifest(path string) (string, parser, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("%w: %s", sharedErrors.ErrFileNotFound, path)
		}
		return "", nil, err
	}
	if !info.IsDir() {
		if p, ok := e.parsers[filepath.Base(path)]; ok {
			return path, p, nil
		}
		return path, e.parsers[e.manifests[0]], nil
	}
	for _, name := range e.manifests {
		candidate := filepath.Join(path, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, e.parsers[name], nil
		}
	}
	return "", nil, fmt.Errorf("%w: no %s in %s", sharedErrors.ErrFileNotFound, strings.Join(e.manifests, " or "), path)
}

type osvQuery struct {
	Version string     `json:"version"`
	Package osvPackage `json:"package"`
}

type osvPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type osvVuln struct {
	ID      string   `json:"id"`
	Aliases []string `json:"aliases"`
	Summary string   `json:"summary"`
}

type osvResponse struct {
	Vulns []osvVuln `json:"vulns"`
}

// errPermanent marks OSV replies that retrying will not fix.
var errPermanent = errors.New("osv rejected the query")

func query(ctx context.Context, session *httpsession.Session, url, eco string, pkg Package) ([]osvVuln, error) {
	var out osvResponse
	resp, err := session.PostJSON(ctx, url, osvQuery{
		Version: pkg.Version,
		Package: osvPackage{Name: pkg.Name, Ecosystem: eco},
	}, &out)
	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: osv returned %d for %s", sharedErrors.ErrConnection, resp.StatusCode, pkg)
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("%w: %w: status %d for %s", sharedErrors.ErrInvalidParameter, errPermanent, resp.StatusCode, pkg)
		}
	}
	if err != nil {
		return nil, err
	}
	return out.Vulns, nil
}

// lookup queries OSV with retries. Permanent rejections are not retried.
func lookup(ctx context.Context, session *httpsession.Session, url, eco string, pkg Package) ([]osvVuln, error) {
	var vulns []osvVuln
	var permanent error
	err := async.Retry(ctx, consts.RetryAttempts, retryDelay, func(ctx context.Context) error {
		v, err := query(ctx, session, url, eco, pkg)
		if errors.Is(err, errPermanent) {
			permanent = err
			return nil
		}
		vulns = v
		return err
	})
	if permanent != nil {
		return nil, permanent
	}
	return vulns, err
}

func advisoryIDs(vulns []osvVuln) []string {
	seen := map[string]bool{}
	var ids []string
	for _, v := range vulns {
		for _, id := range append([]string{v.ID}, v.Aliases...) {
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// dependencyCheck builds the OSV-backed check for one ecosystem.
func dependencyCheck(meta assert.Meta, eco ecosystem) *assert.Check[Params] {
	meta.Kind = check.KindSCA
	return assert.API(meta, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
		if strings.TrimSpace(p.Path) == "" {
			return check.Outcome{}, fmt.Errorf("%w: path is required", sharedErrors.ErrInvalidParameter)
		}
		manifest, parse, err := eco.manifest(p.Path)
		if err != nil {
			return check.Outcome{}, err
		}
		data, err := os.ReadFile(manifest)
		if err != nil {
			return check.Outcome{}, fmt.Errorf("read %s: %w", manifest, err)
		}
		pkgs, err := parse(manifest, data)
		if err != nil {
			return check.Outcome{}, err
		}

		session, err := httpsession.New(httpsession.Options{Timeout: p.Timeout})
		if err != nil {
			return check.Outcome{}, err
		}
		url := p.apiURL()
		found, err := async.RunFunc(ctx, func(ctx context.Context, pkg Package) ([]osvVuln, error) {
			return lookup(ctx, session, url, eco.name, pkg)
		}, pkgs, consts.AsyncBatchSize)
		if err != nil {
			return check.Outcome{}, err
		}

		fp := map[string]string{"manifest": manifest, "ecosystem": eco.name}
		var vulns, safes []check.Unit
		for i, pkg := range pkgs {
			ids := advisoryIDs(found[i])
			unit := check.NewUnit(pkg.String(), ids, check.WithSource(sourceOSV), check.WithFingerprint(fp))
			if len(ids) > 0 {
				vulns = append(vulns, unit)
			} else {
				safes = append(safes, unit)
			}
		}
		return check.Classify(
			fmt.Sprintf("%s dependencies have known vulnerabilities", eco.name),
			fmt.Sprintf("%s dependencies have no known vulnerabilities", eco.name),
			vulns, safes,
		), nil
	}, errorChecks...))
}

// GoModuleHasVulnerabilities checks go.mod requirements.
var GoModuleHasVulnerabilities = dependencyCheck(assert.Meta{
	Name:        "sca.go.has_vulnerabilities",
	Description: "OPEN when a required Go module has a published advisory.",
	Risk:        check.RiskHigh,
}, goEcosystem)

// PyPIHasVulnerabilities checks pinned requirements.txt entries.
var PyPIHasVulnerabilities = dependencyCheck(assert.Meta{
	Name:        "sca.pypi.has_vulnerabilities",
	Description: "OPEN when a pinned Python package has a published advisory.",
	Risk:        check.RiskHigh,
}, pypiEcosystem)

// NPMHasVulnerabilities checks package-lock.json, or package.json when no
// lockfile exists.
var NPMHasVulnerabilities = dependencyCheck(assert.Meta{
	Name:        "sca.npm.has_vulnerabilities",
	Description: "OPEN when an npm package has a published advisory.",
	Risk:        check.RiskHigh,
}, npmEcosystem)

// Register adds every dependency check to r.
func Register(r *assert.Registry) {
	assert.MustRegister(r, GoModuleHasVulnerabilities)
	assert.MustRegister(r, PyPIHasVulnerabilities)
	assert.MustRegister(r, NPMHasVulnerabilities)
}
