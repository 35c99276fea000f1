package httpcheck

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/shared/target"
)

const (
	sourceCookies  = "HTTP/Response/Cookies"
	sourceCORS     = "HTTP/Response/Headers/CORS"
	sourceRedirect = "HTTP/Response/Redirect"
)

// CookieParams configures HasInsecureCookies. Names limits the check to the
// listed cookies; empty means every cookie the response sets.
type CookieParams struct {
	Target `mapstructure:",squash"`
	Names  []string `mapstructure:"names"`
}

// HasInsecureCookies inspects Set-Cookie headers for missing Secure or
// HttpOnly flags.
var HasInsecureCookies = assert.API(assert.Meta{
	Name:        "proto.http.has_insecure_cookies",
	Description: "OPEN when the response sets a cookie without the Secure or HttpOnly flag.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p CookieParams) (check.Outcome, error) {
	resp, err := p.fetch(ctx, http.MethodGet, nil)
	if err != nil {
		return check.Outcome{}, err
	}
	vulns, safes := inspectCookies(resp.URL.String(), resp.Cookies, p.Names)
	return check.Classify("Cookies are missing security flags",
		"Cookies have Secure and HttpOnly flags", vulns, safes), nil
}, assert.NetworkErrors...))

func inspectCookies(where string, cookies []*http.Cookie, names []string) (vulns, safes []check.Unit) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	for _, c := range cookies {
		if len(wanted) > 0 && !wanted[c.Name] {
			continue
		}
		var missing []string
		if !c.Secure {
			missing = append(missing, "Secure")
		}
		if !c.HttpOnly {
			missing = append(missing, "HttpOnly")
		}
		if len(missing) > 0 {
			vulns = append(vulns, check.NewUnit(where,
				[]string{fmt.Sprintf("cookie %s missing %s", c.Name, strings.Join(missing, ", "))},
				check.WithSource(sourceCookies)))
			continue
		}
		safes = append(safes, check.NewUnit(where,
			[]string{"cookie " + c.Name + " is Secure and HttpOnly"},
			check.WithSource(sourceCookies)))
	}
	if len(vulns) == 0 && len(safes) == 0 {
		safes = append(safes, check.NewUnit(where, []string{"no cookies set"}, check.WithSource(sourceCookies)))
	}
	return vulns, safes
}

// CORSParams configures HasInsecureCORS. Origin is sent as the request's
// Origin header and should be one the application does not trust.
type CORSParams struct {
	Target `mapstructure:",squash"`
	Origin string `mapstructure:"origin"`
}

const defaultProbeOrigin = "https://seca-assert.invalid"

// HasInsecureCORS sends a request from a foreign origin and inspects the
// Access-Control headers of the reply.
var HasInsecureCORS = assert.API(assert.Meta{
	Name:        "proto.http.has_insecure_cors",
	Description: "OPEN when the server allows any origin or reflects an untrusted origin.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p CORSParams) (check.Outcome, error) {
	origin := p.Origin
	if origin == "" {
		origin = defaultProbeOrigin
	}
	resp, err := p.fetch(ctx, http.MethodGet, map[string]string{"Origin": origin})
	if err != nil {
		return check.Outcome{}, err
	}

	where := resp.URL.String()
	issues := corsIssues(resp.Header, origin)
	if len(issues) > 0 {
		return check.Open("CORS policy is insecure",
			check.NewUnit(where, issues, check.WithSource(sourceCORS))), nil
	}
	allow := resp.Header.Get("Access-Control-Allow-Origin")
	if allow == "" {
		allow = "<none>"
	}
	return check.Closed("CORS policy does not trust the probe origin",
		check.NewUnit(where, []string{"Access-Control-Allow-Origin: " + allow}, check.WithSource(sourceCORS))), nil
}, assert.NetworkErrors...))

func corsIssues(headers http.Header, origin string) []string {
	var issues []string
	allowOrigin := headers.Get("Access-Control-Allow-Origin")
	credentials := strings.EqualFold(headers.Get("Access-Control-Allow-Credentials"), "true")

	switch {
	case allowOrigin == "*":
		issues = append(issues, "allows any origin (*)")
		if credentials {
			issues = append(issues, "allows credentials with a wildcard origin")
		}
	case allowOrigin == "null":
		issues = append(issues, "trusts the null origin")
	case allowOrigin != "" && strings.EqualFold(allowOrigin, origin):
		issues = append(issues, "reflects untrusted origin "+origin)
		if credentials {
			issues = append(issues, "allows credentials for the reflected origin")
		}
	}
	if strings.Contains(headers.Get("Access-Control-Allow-Headers"), "*") {
		issues = append(issues, "allows any request header (*)")
	}
	if strings.Contains(headers.Get("Access-Control-Expose-Headers"), "*") {
		issues = append(issues, "exposes every response header (*)")
	}
	if len(issues) > 0 && allowOrigin != "*" && !varyIncludesOrigin(headers.Values("Vary")) {
		issues = append(issues, "Vary: Origin missing")
	}
	return issues
}

func varyIncludesOrigin(values []string) bool {
	for _, value := range values {
		for _, token := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(token), "origin") {
				return true
			}
		}
	}
	return false
}

// RedirectParams configures IsNotHTTPSRedirected. The URL's scheme is
// forced to http.
type RedirectParams struct {
	Target `mapstructure:",squash"`
}

// plainHTTPURL rewrites a target to http, dropping the HTTPS port. IPv6
// literals keep their brackets.
func plainHTTPURL(info *target.Info) string {
	host := info.Host
	switch {
	case info.Port != "" && info.Port != "443":
		host = net.JoinHostPort(host, info.Port)
	case strings.Contains(host, ":"):
		host = "[" + host + "]"
	}
	u := url.URL{Scheme: "http", Host: host, Path: info.Path}
	return u.String()
}

// IsNotHTTPSRedirected requests the plain-HTTP URL and expects a redirect to
// HTTPS.
var IsNotHTTPSRedirected = assert.API(assert.Meta{
	Name:        "proto.http.is_not_https_redirected",
	Description: "OPEN when the plain-HTTP URL is served without redirecting to HTTPS.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p RedirectParams) (check.Outcome, error) {
	raw, err := p.normalizedURL()
	if err != nil {
		return check.Outcome{}, err
	}
	plain := plainHTTPURL(target.Parse(raw))

	sess, err := p.session(true)
	if err != nil {
		return check.Outcome{}, err
	}
	resp, err := sess.Get(ctx, plain)
	if err != nil {
		return check.Outcome{}, err
	}

	location := resp.Header.Get("Location")
	specific := []string{fmt.Sprintf("status %d", resp.StatusCode)}
	if location != "" {
		specific = append(specific, "Location: "+location)
	}
	unit := check.NewUnit(plain, specific, check.WithSource(sourceRedirect))
	if resp.StatusCode >= 300 && resp.StatusCode < 400 && strings.HasPrefix(strings.ToLower(location), "https://") {
		return check.Closed("HTTP is redirected to HTTPS", unit), nil
	}
	return check.Open("HTTP is not redirected to HTTPS", unit), nil
}, assert.NetworkErrors...))
