// Package httpsession wraps net/http with the cookie jar, default headers and
// body limits that the HTTP-based checks share.
package httpsession

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

const defaultUserAgent = "seca-assert/1.0"

// Options configure a Session.
type Options struct {
	Timeout        time.Duration
	Insecure       bool // skip TLS certificate verification
	Headers        map[string]string
	NoRedirects    bool
	BodyLimitBytes int64
	Transport      http.RoundTripper // optional, for tests
}

// Session is a reusable HTTP client that keeps cookies between requests.
type Session struct {
	client    *http.Client
	headers   http.Header
	bodyLimit int64
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        *url.URL
	TLS        *tls.ConnectionState
	Cookies    []*http.Cookie
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// New creates a Session.
func New(opts Options) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = consts.DefaultTimeout
	}

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: opts.Insecure}, //nolint:gosec // operator opt-in
		}
	}

	client := &http.Client{
		Timeout:   timeout,
		Jar:       jar,
		Transport: transport,
	}
	if opts.NoRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	headers := http.Header{}
	headers.Set("User-Agent", defaultUserAgent)
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}

	limit := opts.BodyLimitBytes
	if limit <= 0 {
		limit = consts.ResponseBodyLimitBytes
	}

	return &Session{client: client, headers: headers, bodyLimit: limit}, nil
}

// Do performs a request and reads up to the body limit.
func (s *Session) Do(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", sharedErrors.ErrInvalidParameter, err)
	}
	for k, vals := range s.headers {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.bodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", rawURL, err)
	}
	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        resp.Request.URL,
		TLS:        resp.TLS,
		Cookies:    resp.Cookies(),
	}, nil
}

// Get performs a GET request.
func (s *Session) Get(ctx context.Context, rawURL string) (*Response, error) {
	return s.Do(ctx, http.MethodGet, rawURL, nil, nil)
}

// PostJSON sends payload as JSON and decodes a JSON reply into out when out
// is not nil.
func (s *Session) PostJSON(ctx context.Context, rawURL string, payload, out any) (*Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %v", sharedErrors.ErrInvalidParameter, err)
	}
	resp, err := s.Do(ctx, http.MethodPost, rawURL, bytes.NewReader(data), map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	})
	if err != nil {
		return nil, err
	}
	if out != nil && len(resp.Body) > 0 && isJSON(resp.Header) {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp, fmt.Errorf("decode response from %s: %w", rawURL, err)
		}
	}
	return resp, nil
}

func isJSON(h http.Header) bool {
	ct := strings.ToLower(h.Get("Content-Type"))
	return ct == "" || strings.Contains(ct, "json")
}
