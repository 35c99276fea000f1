package dnscheck

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/miekg/dns"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/httpsession"
)

const sourceTakeover = "DNS/Record/CNAME"

// TakeoverParams configures HasSubdomainTakeover. SkipHTTP disables the
// page fingerprinting that runs when the CNAME target still resolves.
type TakeoverParams struct {
	Params   `mapstructure:",squash"`
	SkipHTTP bool `mapstructure:"skip_http"`
}

// HasSubdomainTakeover follows the CNAME of a subdomain and reports targets
// that no longer exist or that serve a provider's "unclaimed" page.
var HasSubdomainTakeover = assert.API(assert.Meta{
	Name:        "proto.dns.has_subdomain_takeover",
	Description: "OPEN when the subdomain's CNAME points to a missing or unclaimed third-party resource.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p TakeoverParams) (check.Outcome, error) {
	name, err := p.fqdn()
	if err != nil {
		return check.Outcome{}, err
	}
	reply, _, err := p.query(ctx, name, dns.TypeCNAME, nil)
	if err != nil {
		return check.Outcome{}, err
	}

	cname := ""
	for _, rr := range reply.Answer {
		if c, ok := rr.(*dns.CNAME); ok {
			cname = c.Target
			break
		}
	}
	host := strings.TrimSuffix(name, ".")
	if cname == "" || strings.EqualFold(cname, name) {
		return check.Closed("Subdomain has no CNAME record",
			check.NewUnit(host, []string{"no CNAME"}, check.WithSource(sourceTakeover))), nil
	}

	target := strings.TrimSuffix(cname, ".")
	provider := detectProvider(target)
	specific := []string{"CNAME: " + target, "provider: " + provider}

	resolved, _, err := p.query(ctx, cname, dns.TypeA, nil)
	if err != nil {
		return check.Outcome{}, err
	}
	if resolved.Rcode == dns.RcodeNameError {
		specific = append(specific, "CNAME target does not resolve")
		return check.Open("Subdomain points to a dangling CNAME",
			check.NewUnit(host, specific, check.WithSource(sourceTakeover))), nil
	}

	if !p.SkipHTTP {
		if fpProvider, fingerprint := fetchFingerprint(ctx, p.Params, host); fingerprint != "" {
			specific = append(specific, fmt.Sprintf("%s fingerprint: %s", fpProvider, fingerprint))
			return check.Open("Subdomain serves an unclaimed provider page",
				check.NewUnit(host, specific, check.WithSource(sourceTakeover))), nil
		}
	}
	return check.Closed("Subdomain CNAME target is claimed",
		check.NewUnit(host, specific, check.WithSource(sourceTakeover))), nil
}, assert.NetworkErrors...))

// fetchFingerprint tries HTTPS then HTTP and stops at the first response.
// Transport failures are not findings.
func fetchFingerprint(ctx context.Context, p Params, host string) (string, string) {
	sess, err := httpsession.New(httpsession.Options{
		Timeout:        p.timeout(),
		Insecure:       true,
		NoRedirects:    true,
		BodyLimitBytes: 8 << 10,
	})
	if err != nil {
		return "", ""
	}
	for _, scheme := range []string{"https", "http"} {
		resp, err := sess.Get(ctx, scheme+"://"+host)
		if err != nil {
			continue
		}
		return matchFingerprint(resp.Text(), resp.Header.Get("Server"))
	}
	return "", ""
}

// matchFingerprint returns the provider and pattern found in a response.
func matchFingerprint(body, server string) (string, string) {
	providers := make([]string, 0, len(takeoverFingerprints))
	for provider := range takeoverFingerprints {
		providers = append(providers, provider)
	}
	sort.Strings(providers)
	for _, provider := range providers {
		for _, pattern := range takeoverFingerprints[provider] {
			if strings.Contains(body, pattern) || strings.Contains(server, pattern) {
				return provider, pattern
			}
		}
	}
	return "", ""
}

// takeoverFingerprints are page fragments served for unclaimed resources.
var takeoverFingerprints = map[string][]string{
	"GitHub Pages":     {"There isn't a GitHub Pages site here"},
	"AWS S3":           {"NoSuchBucket", "The specified bucket does not exist"},
	"Heroku":           {"No such app", "herokucdn.com/error-pages/no-such-app.html"},
	"Azure":            {"404 Web Site not found", "Error 404 - Web app not found"},
	"Shopify":          {"Sorry, this shop is currently unavailable"},
	"Tumblr":           {"Whatever you were looking for doesn't currently exist at this address"},
	"Ghost":            {"The thing you were looking for is no longer here"},
	"Bitbucket":        {"Repository not found"},
	"Fastly":           {"Fastly error: unknown domain"},
	"Pantheon":         {"404 error unknown site!"},
	"Zendesk":          {"Help Center Closed"},
	"UserVoice":        {"This UserVoice subdomain is currently available"},
	"Surge.sh":         {"project not found"},
	"Intercom":         {"This page is reserved for artistic dogs"},
	"Webflow":          {"The page you are looking for doesn't exist or has been moved"},
	"Cargo Collective": {"If you're moving your domain away from Cargo"},
	"Readme.io":        {"Project doesnt exist... yet!"},
}

// cnameProviders maps CNAME suffixes to hosting providers.
var cnameProviders = []struct {
	provider string
	suffixes []string
}{
	{"GitHub Pages", []string{"github.io", "githubusercontent.com"}},
	{"AWS S3", []string{".s3.amazonaws.com", ".s3-website"}},
	{"AWS CloudFront", []string{"cloudfront.net"}},
	{"AWS Elastic Beanstalk", []string{"elasticbeanstalk.com"}},
	{"Heroku", []string{"herokuapp.com", "herokussl.com"}},
	{"Azure", []string{"azurewebsites.net", "cloudapp.azure.com", "trafficmanager.net"}},
	{"Shopify", []string{"myshopify.com"}},
	{"Tumblr", []string{"tumblr.com"}},
	{"WordPress.com", []string{"wordpress.com"}},
	{"Ghost", []string{"ghost.io"}},
	{"Bitbucket", []string{"bitbucket.io"}},
	{"Fastly", []string{"fastly.net"}},
	{"Pantheon", []string{"pantheonsite.io"}},
	{"Zendesk", []string{"zendesk.com"}},
	{"UserVoice", []string{"uservoice.com"}},
	{"Surge.sh", []string{"surge.sh"}},
	{"Intercom", []string{"intercom.io", "intercomcdn.com"}},
	{"Webflow", []string{"webflow.io"}},
	{"Cargo Collective", []string{"cargocollective.com"}},
	{"Readme.io", []string{"readme.io"}},
	{"Netlify", []string{"netlify.app", "netlify.com"}},
	{"Vercel", []string{"vercel.app"}},
	{"DigitalOcean Spaces", []string{"digitaloceanspaces.com"}},
}

func detectProvider(cname string) string {
	lower := strings.ToLower(cname)
	for _, entry := range cnameProviders {
		for _, suffix := range entry.suffixes {
			if strings.Contains(lower, suffix) {
				return entry.provider
			}
		}
	}
	return "Unknown"
}
