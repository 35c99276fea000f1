// Package target normalizes the host/URL strings operators pass to checks.
package target

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Info contains parsed target information
type Info struct {
	Original string // Original target string
	Scheme   string // http, https, or empty
	Host     string // Hostname (without protocol, path, port)
	Port     string // Port if specified
	Path     string // Path if specified
	FullURL  string // Full normalized URL (for HTTP requests)
}

// Parse parses a target string into structured components.
// This handles various input formats:
//   - example.com
//   - http://example.com
//   - https://example.com:443/path
//   - example.com:8080
func Parse(target string) *Info {
	info := &Info{
		Original: target,
	}

	parsed, err := url.Parse(target)

	// A scheme containing dots is really a host ("example.com:8080")
	if err != nil || parsed.Scheme == "" || strings.Contains(parsed.Scheme, ".") {
		parsed, _ = url.Parse("http://" + target)
	}

	if parsed != nil {
		info.Scheme = parsed.Scheme
		info.Host = parsed.Hostname()
		info.Port = parsed.Port()
		info.Path = parsed.Path
		info.FullURL = parsed.String()
	}

	// Fallback: if URL parsing completely failed, extract host manually
	if info.Host == "" {
		host := target
		host = strings.TrimPrefix(host, "http://")
		host = strings.TrimPrefix(host, "https://")
		host = strings.Split(host, "/")[0]
		parts := strings.Split(host, ":")
		info.Host = parts[0]
		if len(parts) > 1 {
			info.Port = parts[1]
		}
		if info.Scheme == "" {
			info.Scheme = "http"
		}
		info.FullURL = info.Scheme + "://" + host
	}

	return info
}

// NormalizeURL returns a full URL with scheme.
func NormalizeURL(target string) string {
	return Parse(target).FullURL
}

// Host extracts just the hostname from a target.
func Host(target string) string {
	return Parse(target).Host
}

// Address joins host and port, keeping an explicit port in target when the
// caller did not pass one.
func Address(target string, port int, defaultPort string) string {
	info := Parse(target)
	p := info.Port
	if port > 0 {
		p = strconv.Itoa(port)
	}
	if p == "" {
		p = defaultPort
	}
	return net.JoinHostPort(info.Host, p)
}
