// Package netprobe has the raw TCP helpers banner-based checks share:
// dialing with a deadline and reading a service greeting.
package netprobe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"time"

	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
)

const bannerLimit = 512

var versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)*`)

// Dial opens a TCP connection bounded by timeout (DefaultTimeout when zero).
func Dial(ctx context.Context, addr string, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = consts.DefaultTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

// Banner connects to addr, optionally writes probe, and returns the first
// line the service sends.
func Banner(ctx context.Context, addr string, timeout time.Duration, probe []byte) (string, error) {
	if timeout <= 0 {
		timeout = consts.DefaultTimeout
	}
	conn, err := Dial(ctx, addr, timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", fmt.Errorf("set deadline on %s: %w", addr, err)
	}
	if len(probe) > 0 {
		if _, err := conn.Write(probe); err != nil {
			return "", fmt.Errorf("write to %s: %w", addr, err)
		}
	}

	reader := bufio.NewReader(io.LimitReader(conn, bannerLimit))
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read banner from %s: %w", addr, err)
	}
	return strings.TrimSpace(line), nil
}

// Version returns the first dotted version number in a banner, or "".
func Version(banner string) string {
	return versionPattern.FindString(banner)
}
