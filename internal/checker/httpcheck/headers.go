package httpcheck

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
)

const sourceHeaders = "HTTP/Response/Headers"

// headerPolicy scores one response header. A present header scoring below
// half of maxScore is treated as weak.
type headerPolicy struct {
	name     string
	maxScore int
	evaluate func(value string) (int, []string)
	advice   string
}

var (
	hstsPolicy = headerPolicy{
		name:     "Strict-Transport-Security",
		maxScore: 20,
		evaluate: evaluateHSTS,
		advice:   "max-age=31536000; includeSubDomains; preload",
	}
	cspPolicy = headerPolicy{
		name:     "Content-Security-Policy",
		maxScore: 20,
		evaluate: evaluateCSP,
		advice:   "a strict policy with default-src and script-src",
	}
	xfoPolicy = headerPolicy{
		name:     "X-Frame-Options",
		maxScore: 15,
		evaluate: evaluateXFrameOptions,
		advice:   "DENY or SAMEORIGIN",
	}
	xctoPolicy = headerPolicy{
		name:     "X-Content-Type-Options",
		maxScore: 15,
		evaluate: evaluateXContentTypeOptions,
		advice:   "nosniff",
	}
)

// gradedPolicies is every header that contributes to the overall grade.
var gradedPolicies = []headerPolicy{
	hstsPolicy,
	cspPolicy,
	xfoPolicy,
	xctoPolicy,
	{name: "Referrer-Policy", maxScore: 10, evaluate: evaluateReferrerPolicy, advice: "strict-origin-when-cross-origin"},
	{name: "Permissions-Policy", maxScore: 10, evaluate: evaluatePermissionsPolicy, advice: "geolocation=(), microphone=()"},
	{name: "Cross-Origin-Opener-Policy", maxScore: 5, evaluate: evaluateCOOP, advice: "same-origin"},
	{name: "Cross-Origin-Embedder-Policy", maxScore: 5, evaluate: evaluateCOEP, advice: "require-corp"},
	{name: "Content-Type", maxScore: 5, evaluate: evaluateContentType, advice: "text/html; charset=utf-8"},
}

// inspect returns whether the header is missing or weak, plus the evidence.
func (p headerPolicy) inspect(url string, headers http.Header) (bool, check.Unit) {
	value := headers.Get(p.name)
	if value == "" {
		return true, check.NewUnit(url,
			[]string{p.name + " is missing", "Recommended: " + p.advice},
			check.WithSource(sourceHeaders))
	}
	score, issues := p.evaluate(value)
	specific := append([]string{fmt.Sprintf("%s: %s", p.name, value)}, issues...)
	return score*2 < p.maxScore, check.NewUnit(url, specific, check.WithSource(sourceHeaders))
}

// HeaderParams configures the single-header checks.
type HeaderParams struct {
	Target `mapstructure:",squash"`
}

func headerCheck(name, header string, policy headerPolicy) *assert.Check[HeaderParams] {
	return assert.API(assert.Meta{
		Name:        name,
		Description: fmt.Sprintf("OPEN when the response lacks a %s header or sets a weak value.", header),
		Risk:        check.RiskMedium,
		Kind:        check.KindDAST,
	}, assert.UnknownIf(func(ctx context.Context, p HeaderParams) (check.Outcome, error) {
		resp, err := p.fetch(ctx, http.MethodGet, nil)
		if err != nil {
			return check.Outcome{}, err
		}
		weak, unit := policy.inspect(resp.URL.String(), resp.Header)
		if weak {
			return check.Open(fmt.Sprintf("%s header is missing or insecure", header), unit), nil
		}
		return check.Closed(fmt.Sprintf("%s header is properly set", header), unit), nil
	}, assert.NetworkErrors...))
}

var (
	IsHeaderHSTSMissing = headerCheck("proto.http.is_header_hsts_missing",
		"Strict-Transport-Security", hstsPolicy)
	IsHeaderCSPMissing = headerCheck("proto.http.is_header_csp_missing",
		"Content-Security-Policy", cspPolicy)
	IsHeaderXFrameOptionsMissing = headerCheck("proto.http.is_header_x_frame_options_missing",
		"X-Frame-Options", xfoPolicy)
	IsHeaderXContentTypeOptionsMissing = headerCheck("proto.http.is_header_x_content_type_options_missing",
		"X-Content-Type-Options", xctoPolicy)
)

// GradeParams configures IsSecurityGradeLow.
type GradeParams struct {
	Target   `mapstructure:",squash"`
	MinGrade string `mapstructure:"min_grade"` // lowest acceptable grade, default C
}

// IsSecurityGradeLow scores all security headers together.
var IsSecurityGradeLow = assert.API(assert.Meta{
	Name:        "proto.http.is_security_grade_low",
	Description: "OPEN when the combined security-header grade is below the minimum grade.",
	Risk:        check.RiskLow,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p GradeParams) (check.Outcome, error) {
	minGrade := strings.ToUpper(strings.TrimSpace(p.MinGrade))
	if minGrade == "" {
		minGrade = "C"
	}
	resp, err := p.fetch(ctx, http.MethodGet, nil)
	if err != nil {
		return check.Outcome{}, err
	}

	grade, score, maxScore, missing := gradeHeaders(resp.Header)
	specific := []string{fmt.Sprintf("grade %s (%d/%d)", grade, score, maxScore)}
	for _, name := range missing {
		specific = append(specific, name+" is missing")
	}
	unit := check.NewUnit(resp.URL.String(), specific, check.WithSource(sourceHeaders))
	if grade > minGrade {
		return check.Open(fmt.Sprintf("Security header grade %s is below %s", grade, minGrade), unit), nil
	}
	return check.Closed(fmt.Sprintf("Security header grade %s meets %s", grade, minGrade), unit), nil
}, assert.NetworkErrors...))

func gradeHeaders(headers http.Header) (grade string, score, maxScore int, missing []string) {
	for _, p := range gradedPolicies {
		maxScore += p.maxScore
		value := headers.Get(p.name)
		if value == "" {
			missing = append(missing, p.name)
			continue
		}
		s, _ := p.evaluate(value)
		score += s
	}
	return gradeFor(score, maxScore), score, maxScore, missing
}

func gradeFor(score, maxScore int) string {
	percentage := float64(score) / float64(maxScore) * 100
	switch {
	case percentage >= 90:
		return "A"
	case percentage >= 80:
		return "B"
	case percentage >= 70:
		return "C"
	case percentage >= 60:
		return "D"
	default:
		return "F"
	}
}

func evaluateHSTS(value string) (int, []string) {
	var issues []string
	score := 20
	value = strings.ToLower(value)

	switch {
	case !strings.Contains(value, "max-age="):
		issues = append(issues, "missing max-age directive")
		score -= 10
	case strings.Contains(value, "max-age=0"):
		return 0, []string{"max-age=0 disables HSTS"}
	case !strings.Contains(value, "max-age=31536000") && !strings.Contains(value, "max-age=63072000"):
		issues = append(issues, "max-age shorter than one year")
		score -= 3
	}
	if !strings.Contains(value, "includesubdomains") {
		issues = append(issues, "missing includeSubDomains directive")
		score -= 5
	}
	if !strings.Contains(value, "preload") {
		issues = append(issues, "missing preload directive")
		score -= 2
	}
	return max(score, 0), issues
}

func evaluateCSP(value string) (int, []string) {
	var issues []string
	score := 20
	value = strings.ToLower(value)
	directives := parseCSPDirectives(value)

	if strings.Contains(value, "'unsafe-inline'") {
		issues = append(issues, "allows 'unsafe-inline'")
		score -= 5
	}
	if strings.Contains(value, "'unsafe-eval'") {
		issues = append(issues, "allows 'unsafe-eval'")
		score -= 5
	}
	if strings.Contains(value, "*") {
		issues = append(issues, "contains a wildcard source")
		score -= 3
	}
	if _, ok := directives["default-src"]; !ok {
		issues = append(issues, "missing default-src directive")
		score -= 3
	}
	if _, ok := directives["script-src"]; !ok {
		issues = append(issues, "missing script-src directive")
		score -= 2
	}
	for _, token := range directives["script-src"] {
		switch {
		case token == "data:" || token == "blob:" || token == "filesystem:":
			issues = append(issues, "script-src allows "+token+" URLs")
			score -= 2
		case strings.HasPrefix(token, "http:"):
			issues = append(issues, "script-src allows the insecure http scheme")
			score -= 2
		}
	}
	for _, token := range directives["style-src"] {
		switch token {
		case "data:":
			issues = append(issues, "style-src allows data: URIs")
			score--
		case "'unsafe-inline'":
			issues = append(issues, "style-src allows 'unsafe-inline'")
			score -= 2
		}
	}
	return max(score, 0), issues
}

func parseCSPDirectives(value string) map[string][]string {
	result := make(map[string][]string)
	for _, part := range strings.Split(value, ";") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		result[fields[0]] = fields[1:]
	}
	return result
}

func evaluateXFrameOptions(value string) (int, []string) {
	value = strings.ToUpper(strings.TrimSpace(value))
	switch {
	case value == "DENY" || value == "SAMEORIGIN":
		return 15, nil
	case strings.HasPrefix(value, "ALLOW-FROM"):
		return 5, []string{"ALLOW-FROM is not supported by modern browsers"}
	default:
		return 0, []string{"invalid X-Frame-Options value"}
	}
}

func evaluateXContentTypeOptions(value string) (int, []string) {
	if strings.EqualFold(strings.TrimSpace(value), "nosniff") {
		return 15, nil
	}
	return 0, []string{"value should be nosniff"}
}

func evaluateReferrerPolicy(value string) (int, []string) {
	value = strings.ToLower(value)
	for _, good := range []string{"no-referrer", "strict-origin", "strict-origin-when-cross-origin", "same-origin"} {
		if strings.Contains(value, good) {
			return 10, nil
		}
	}
	if strings.Contains(value, "unsafe-url") || strings.Contains(value, "origin-when-cross-origin") {
		return 5, []string{"policy leaks the full referrer cross-origin"}
	}
	return 7, []string{"unusual referrer policy"}
}

func evaluatePermissionsPolicy(value string) (int, []string) {
	if len(value) < 10 {
		return 7, []string{"policy restricts very few features"}
	}
	return 10, nil
}

func evaluateCOOP(value string) (int, []string) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "same-origin", "same-origin-allow-popups":
		return 5, nil
	case "unsafe-none":
		return 1, []string{"unsafe-none provides no isolation"}
	default:
		return 0, []string{"invalid Cross-Origin-Opener-Policy value"}
	}
}

func evaluateCOEP(value string) (int, []string) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "require-corp", "credentialless":
		return 5, nil
	case "unsafe-none":
		return 1, []string{"unsafe-none provides no isolation"}
	default:
		return 0, []string{"invalid Cross-Origin-Embedder-Policy value"}
	}
}

func evaluateContentType(value string) (int, []string) {
	value = strings.ToLower(value)
	for _, textType := range []string{"text/html", "text/plain", "text/css", "text/javascript", "application/javascript", "application/json"} {
		if strings.Contains(value, textType) && !strings.Contains(value, "charset") {
			return 2, []string{"text content without a charset"}
		}
	}
	return 5, nil
}
