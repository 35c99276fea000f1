package httpcheck

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

const (
	sourceBanner = "HTTP/Response/Headers/Banner"
	sourceBody   = "HTTP/Response/Body"
	sourceMethod = "HTTP/Request/Method"
)

// disclosureHeaders expose server software when they carry a version.
var disclosureHeaders = []string{
	"Server",
	"X-Powered-By",
	"X-AspNet-Version",
	"X-AspNetMvc-Version",
}

var versionPattern = regexp.MustCompile(`\d+(?:\.\d+)+`)

// BannerParams configures IsVersionVisible.
type BannerParams struct {
	Target `mapstructure:",squash"`
}

// IsVersionVisible looks for product versions in banner headers.
var IsVersionVisible = assert.API(assert.Meta{
	Name:        "proto.http.is_version_visible",
	Description: "OPEN when a response header discloses the server software version.",
	Risk:        check.RiskLow,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p BannerParams) (check.Outcome, error) {
	resp, err := p.fetch(ctx, http.MethodGet, nil)
	if err != nil {
		return check.Outcome{}, err
	}

	where := resp.URL.String()
	var vulns, safes []check.Unit
	for _, name := range disclosureHeaders {
		value := resp.Header.Get(name)
		if value == "" {
			continue
		}
		unit := check.NewUnit(where, []string{name + ": " + value}, check.WithSource(sourceBanner))
		if versionPattern.MatchString(value) {
			vulns = append(vulns, unit)
		} else {
			safes = append(safes, unit)
		}
	}
	if len(vulns) == 0 && len(safes) == 0 {
		safes = append(safes, check.NewUnit(where, []string{"no banner headers"}, check.WithSource(sourceBanner)))
	}
	return check.Classify("Server version is visible in response headers",
		"Server version is not visible", vulns, safes), nil
}, assert.NetworkErrors...))

// MethodParams configures HasTraceMethod.
type MethodParams struct {
	Target `mapstructure:",squash"`
}

// HasTraceMethod sends a TRACE request with a marker header and looks for
// the echo.
var HasTraceMethod = assert.API(assert.Meta{
	Name:        "proto.http.has_trace_method",
	Description: "OPEN when the server answers TRACE requests by echoing them back.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p MethodParams) (check.Outcome, error) {
	const marker = "X-Seca-Assert-Trace"
	resp, err := p.fetch(ctx, http.MethodTrace, map[string]string{marker: "echo"})
	if err != nil {
		return check.Outcome{}, err
	}
	unit := check.NewUnit(resp.URL.String(),
		[]string{fmt.Sprintf("TRACE returned %d", resp.StatusCode)},
		check.WithSource(sourceMethod))
	echoed := strings.Contains(strings.ToLower(resp.Text()), strings.ToLower(marker))
	if resp.StatusCode == http.StatusOK && echoed {
		return check.Open("TRACE method is enabled", unit), nil
	}
	return check.Closed("TRACE method is disabled", unit), nil
}, assert.NetworkErrors...))

// TextParams configures HasText and HasNotText. Text is a regular expression.
type TextParams struct {
	Target `mapstructure:",squash"`
	Text   string `mapstructure:"text"`
}

func (p TextParams) pattern() (*regexp.Regexp, error) {
	if p.Text == "" {
		return nil, fmt.Errorf("%w: text is required", sharedErrors.ErrInvalidParameter)
	}
	re, err := regexp.Compile(p.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: text: %v", sharedErrors.ErrInvalidParameter, err)
	}
	return re, nil
}

// HasText reports OPEN when the body matches the expression.
var HasText = assert.API(assert.Meta{
	Name:        "proto.http.has_text",
	Description: "OPEN when the response body matches the given expression.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p TextParams) (check.Outcome, error) {
	found, unit, err := matchBody(ctx, p)
	if err != nil {
		return check.Outcome{}, err
	}
	if found {
		return check.Open("Bad text is present in response", unit), nil
	}
	return check.Closed("Bad text not present in response", unit), nil
}, assert.NetworkErrors...))

// HasNotText reports OPEN when the body does not match the expression.
var HasNotText = assert.API(assert.Meta{
	Name:        "proto.http.has_not_text",
	Description: "OPEN when the response body does not match the given expression.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p TextParams) (check.Outcome, error) {
	found, unit, err := matchBody(ctx, p)
	if err != nil {
		return check.Outcome{}, err
	}
	if !found {
		return check.Open("Expected text is not present in response", unit), nil
	}
	return check.Closed("Expected text is present in response", unit), nil
}, assert.NetworkErrors...))

func matchBody(ctx context.Context, p TextParams) (bool, check.Unit, error) {
	re, err := p.pattern()
	if err != nil {
		return false, check.Unit{}, err
	}
	resp, err := p.fetch(ctx, http.MethodGet, nil)
	if err != nil {
		return false, check.Unit{}, err
	}
	unit := check.NewUnit(resp.URL.String(), []string{"expression: " + p.Text}, check.WithSource(sourceBody))
	return re.Match(resp.Body), unit, nil
}

var listingMarkers = []string{
	"<title>index of /",
	"<h1>index of /",
	"<title>directory listing for /",
	"[to parent directory]",
}

// ListingParams configures HasDirectoryListing.
type ListingParams struct {
	Target `mapstructure:",squash"`
}

// HasDirectoryListing looks for the autoindex pages of common web servers.
var HasDirectoryListing = assert.API(assert.Meta{
	Name:        "proto.http.has_dirlisting",
	Description: "OPEN when the URL serves an automatically generated directory index.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p ListingParams) (check.Outcome, error) {
	resp, err := p.fetch(ctx, http.MethodGet, nil)
	if err != nil {
		return check.Outcome{}, err
	}
	body := strings.ToLower(resp.Text())
	for _, marker := range listingMarkers {
		if strings.Contains(body, marker) {
			unit := check.NewUnit(resp.URL.String(), []string{"marker: " + marker}, check.WithSource(sourceBody))
			return check.Open("Directory listing is enabled", unit), nil
		}
	}
	unit := check.NewUnit(resp.URL.String(), []string{fmt.Sprintf("status %d", resp.StatusCode)}, check.WithSource(sourceBody))
	return check.Closed("Directory listing is not enabled", unit), nil
}, assert.NetworkErrors...))
