// Package tlscheck inspects a server's TLS configuration: the leaf
// certificate, the protocol versions it accepts and its cipher suites.
package tlscheck

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"strings"
	"time"

	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
	"github.com/khanhnv2901/seca-assert/internal/shared/target"
)

// versionSSL30 is SSL 3.0, kept local so the deprecated tls constant is not
// referenced.
const versionSSL30 uint16 = 0x0300

// Params is the endpoint every TLS check connects to.
type Params struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	ServerName string        `mapstructure:"server_name"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (p Params) address() (string, error) {
	if strings.TrimSpace(p.Host) == "" {
		return "", fmt.Errorf("%w: host is required", sharedErrors.ErrInvalidParameter)
	}
	return target.Address(p.Host, p.Port, "443"), nil
}

func (p Params) serverName() string {
	if p.ServerName != "" {
		return p.ServerName
	}
	return target.Host(p.Host)
}

// handshake dials the endpoint and attempts a TLS handshake with cfg. A
// completed TCP connection whose handshake fails is reported as not
// accepted rather than as an error.
func handshake(ctx context.Context, p Params, cfg *tls.Config) (tls.ConnectionState, bool, error) {
	addr, err := p.address()
	if err != nil {
		return tls.ConnectionState{}, false, err
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = consts.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return tls.ConnectionState{}, false, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer raw.Close()

	cfg = cfg.Clone()
	cfg.ServerName = p.serverName()
	cfg.InsecureSkipVerify = true //nolint:gosec // certificates are inspected, not trusted

	conn := tls.Client(raw, cfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		if ctx.Err() != nil {
			return tls.ConnectionState{}, false, fmt.Errorf("handshake with %s: %w", addr, ctx.Err())
		}
		return tls.ConnectionState{}, false, nil
	}
	return conn.ConnectionState(), true, nil
}

// peerCertificate returns the leaf certificate the endpoint presents.
func peerCertificate(ctx context.Context, p Params) (*x509.Certificate, string, error) {
	addr, err := p.address()
	if err != nil {
		return nil, "", err
	}
	state, ok, err := handshake(ctx, p, &tls.Config{MinVersion: tls.VersionTLS10})
	if err != nil {
		return nil, addr, err
	}
	if !ok || len(state.PeerCertificates) == 0 {
		return nil, addr, fmt.Errorf("%w: no certificate from %s", sharedErrors.ErrConnection, addr)
	}
	return state.PeerCertificates[0], addr, nil
}

func versionName(version uint16) string {
	switch version {
	case versionSSL30:
		return "SSL 3.0"
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return fmt.Sprintf("Unknown (0x%04x)", version)
	}
}
