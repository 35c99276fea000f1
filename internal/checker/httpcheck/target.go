// Package httpcheck holds DAST checks that talk HTTP to a single URL: security
// headers, cookie flags, CORS, banners, content matching and GraphQL limits.
package httpcheck

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-assert/internal/infrastructure/httpsession"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
	"github.com/khanhnv2901/seca-assert/internal/shared/target"
)

// Target is the request every HTTP check starts from.
type Target struct {
	URL      string            `mapstructure:"url"`
	Headers  map[string]string `mapstructure:"headers"`
	Insecure bool              `mapstructure:"insecure"`
	Timeout  time.Duration     `mapstructure:"timeout"`
}

func (t Target) normalizedURL() (string, error) {
	if strings.TrimSpace(t.URL) == "" {
		return "", fmt.Errorf("%w: url is required", sharedErrors.ErrInvalidParameter)
	}
	return target.NormalizeURL(strings.TrimSpace(t.URL)), nil
}

func (t Target) session(noRedirects bool) (*httpsession.Session, error) {
	return httpsession.New(httpsession.Options{
		Timeout:     t.Timeout,
		Insecure:    t.Insecure,
		Headers:     t.Headers,
		NoRedirects: noRedirects,
	})
}

// fetch performs one request against the target URL.
func (t Target) fetch(ctx context.Context, method string, headers map[string]string) (*httpsession.Response, error) {
	url, err := t.normalizedURL()
	if err != nil {
		return nil, err
	}
	sess, err := t.session(false)
	if err != nil {
		return nil, err
	}
	return sess.Do(ctx, method, url, nil, headers)
}
