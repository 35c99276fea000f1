// Package sshcheck probes SSH servers for weak algorithms, password logins
// and banner disclosure.
package sshcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/netprobe"
	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
	"github.com/khanhnv2901/seca-assert/internal/shared/target"
)

const (
	sourceAlgorithms = "SSH/Algorithms"
	sourceAuth       = "SSH/Authentication"
	sourceBanner     = "SSH/Banner"
	probeUser        = "seca-assert"
)

var errPasswordProbe = errors.New("password probe")

var (
	cbcCiphers = []string{"aes128-cbc", "3des-cbc"}
	ctrCiphers = []string{"aes128-ctr", "aes192-ctr", "aes256-ctr"}
	weakMACs   = []string{"hmac-sha1", "hmac-sha1-96"}

	softwarePattern = regexp.MustCompile(`^SSH-[\d.]+-(\S+)`)
)

// Params is the SSH endpoint.
type Params struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (p Params) address() (string, error) {
	if strings.TrimSpace(p.Host) == "" {
		return "", fmt.Errorf("%w: host is required", sharedErrors.ErrInvalidParameter)
	}
	return target.Address(p.Host, p.Port, "22"), nil
}

func (p Params) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return consts.DefaultTimeout
}

// handshake runs key exchange with the given algorithm preferences. The
// returned flag is true once the server agreed to them, which is observed
// through the host key callback; authentication is never expected to pass.
func handshake(ctx context.Context, p Params, algos ssh.Config, auth ...ssh.AuthMethod) (bool, string, error) {
	addr, err := p.address()
	if err != nil {
		return false, "", err
	}
	conn, err := netprobe.Dial(ctx, addr, p.timeout())
	if err != nil {
		return false, addr, err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(p.timeout())); err != nil {
		return false, addr, fmt.Errorf("set deadline on %s: %w", addr, err)
	}

	negotiated := false
	cfg := &ssh.ClientConfig{
		Config: algos,
		User:   probeUser,
		Auth:   auth,
		HostKeyCallback: func(string, net.Addr, ssh.PublicKey) error {
			negotiated = true
			return nil
		},
		Timeout: p.timeout(),
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err == nil {
		_ = ssh.NewClient(sshConn, chans, reqs).Close()
		return true, addr, nil
	}
	if negotiated {
		return true, addr, nil
	}
	if sharedErrors.Classify(err) != nil {
		return false, addr, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	return false, addr, nil
}

func algorithmCheck(meta assert.Meta, label string, algos ssh.Config, offered []string) *assert.Check[Params] {
	return assert.API(meta, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
		accepted, addr, err := handshake(ctx, p, algos)
		if err != nil {
			return check.Outcome{}, err
		}
		unit := check.NewUnit(addr, []string{label + ": " + strings.Join(offered, ", ")}, check.WithSource(sourceAlgorithms))
		if accepted {
			return check.Open("SSH server negotiates "+label, unit), nil
		}
		return check.Closed("SSH server rejects "+label, unit), nil
	}, assert.NetworkErrors...))
}

// IsCBCUsed offers only CBC ciphers.
var IsCBCUsed = algorithmCheck(assert.Meta{
	Name:        "proto.ssh.is_cbc_used",
	Description: "OPEN when the server accepts CBC mode ciphers.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, "CBC ciphers", ssh.Config{Ciphers: cbcCiphers}, cbcCiphers)

// IsHMACUsed offers only SHA-1 based MACs with a non-AEAD cipher so the
// MAC is actually negotiated.
var IsHMACUsed = algorithmCheck(assert.Meta{
	Name:        "proto.ssh.is_hmac_used",
	Description: "OPEN when the server accepts SHA-1 based HMAC algorithms.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, "weak HMAC", ssh.Config{Ciphers: ctrCiphers, MACs: weakMACs}, weakMACs)

// AcceptsPasswordAuth reports whether the server lists password among its
// authentication methods. No password is ever sent.
var AcceptsPasswordAuth = assert.API(assert.Meta{
	Name:        "proto.ssh.accepts_password_auth",
	Description: "OPEN when the server offers password authentication.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
	offered := false
	probe := ssh.PasswordCallback(func() (string, error) {
		offered = true
		return "", errPasswordProbe
	})
	_, addr, err := handshake(ctx, p, ssh.Config{}, probe)
	if err != nil {
		return check.Outcome{}, err
	}
	if offered {
		return check.Open("SSH server accepts password authentication",
			check.NewUnit(addr, []string{"password method offered"}, check.WithSource(sourceAuth))), nil
	}
	return check.Closed("SSH server does not accept password authentication",
		check.NewUnit(addr, []string{"password method not offered"}, check.WithSource(sourceAuth))), nil
}, assert.NetworkErrors...))

// IsVersionVisible reads the identification string and looks for a
// version number in the software part.
var IsVersionVisible = assert.API(assert.Meta{
	Name:        "proto.ssh.is_version_visible",
	Description: "OPEN when the SSH identification string discloses the software version.",
	Risk:        check.RiskLow,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
	addr, err := p.address()
	if err != nil {
		return check.Outcome{}, err
	}
	banner, err := netprobe.Banner(ctx, addr, p.timeout(), nil)
	if err != nil {
		return check.Outcome{}, err
	}
	unit := check.NewUnit(addr, []string{"banner: " + banner}, check.WithSource(sourceBanner))
	if netprobe.Version(software(banner)) != "" {
		return check.Open("SSH version is visible", unit), nil
	}
	return check.Closed("SSH version is not visible", unit), nil
}, assert.NetworkErrors...))

// software strips the protocol prefix from an identification string.
func software(banner string) string {
	m := softwarePattern.FindStringSubmatch(banner)
	if m == nil {
		return ""
	}
	return m[1]
}

// Register adds every SSH check to r.
func Register(r *assert.Registry) {
	assert.MustRegister(r, IsCBCUsed)
	assert.MustRegister(r, IsHMACUsed)
	assert.MustRegister(r, AcceptsPasswordAuth)
	assert.MustRegister(r, IsVersionVisible)
}
