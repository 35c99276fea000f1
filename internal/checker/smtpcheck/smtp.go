// Package smtpcheck probes SMTP servers for user enumeration, banner
// disclosure and missing STARTTLS.
package smtpcheck

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/netprobe"
	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
	"github.com/khanhnv2901/seca-assert/internal/shared/target"
)

const (
	sourceCommands = "SMTP/Commands"
	sourceBanner   = "SMTP/Banner"
	heloName       = "seca-assert.invalid"
	defaultVRFY    = "root"
)

// Params is the SMTP endpoint.
type Params struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (p Params) address() (string, error) {
	if strings.TrimSpace(p.Host) == "" {
		return "", fmt.Errorf("%w: host is required", sharedErrors.ErrInvalidParameter)
	}
	return target.Address(p.Host, p.Port, "25"), nil
}

func (p Params) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return consts.DefaultTimeout
}

// session opens a client that has already sent EHLO.
func session(ctx context.Context, p Params) (*smtp.Client, string, error) {
	addr, err := p.address()
	if err != nil {
		return nil, "", err
	}
	conn, err := netprobe.Dial(ctx, addr, p.timeout())
	if err != nil {
		return nil, addr, err
	}
	if err := conn.SetDeadline(time.Now().Add(p.timeout())); err != nil {
		_ = conn.Close()
		return nil, addr, fmt.Errorf("set deadline on %s: %w", addr, err)
	}
	client, err := smtp.NewClient(conn, target.Host(p.Host))
	if err != nil {
		_ = conn.Close()
		return nil, addr, fmt.Errorf("%w: smtp greeting from %s: %v", sharedErrors.ErrConnection, addr, err)
	}
	if err := client.Hello(heloName); err != nil {
		_ = client.Close()
		return nil, addr, fmt.Errorf("%w: ehlo to %s: %v", sharedErrors.ErrConnection, addr, err)
	}
	return client, addr, nil
}

// VRFYParams configures HasVRFY.
type VRFYParams struct {
	Params `mapstructure:",squash"`
	User   string `mapstructure:"user"`
}

// HasVRFY sends VRFY and treats any 25x reply as confirmation that the
// command can enumerate mailboxes.
var HasVRFY = assert.API(assert.Meta{
	Name:        "proto.smtp.has_vrfy",
	Description: "OPEN when the server answers VRFY, allowing user enumeration.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p VRFYParams) (check.Outcome, error) {
	client, addr, err := session(ctx, p.Params)
	if err != nil {
		return check.Outcome{}, err
	}
	defer client.Close()

	user := p.User
	if user == "" {
		user = defaultVRFY
	}
	id, err := client.Text.Cmd("VRFY %s", user)
	if err != nil {
		return check.Outcome{}, fmt.Errorf("%w: vrfy on %s: %v", sharedErrors.ErrConnection, addr, err)
	}
	client.Text.StartResponse(id)
	code, msg, err := client.Text.ReadResponse(0)
	client.Text.EndResponse(id)
	if err != nil && code == 0 {
		return check.Outcome{}, fmt.Errorf("%w: vrfy reply from %s: %v", sharedErrors.ErrConnection, addr, err)
	}
	_ = client.Quit()

	unit := check.NewUnit(addr, []string{fmt.Sprintf("VRFY %s: %d %s", user, code, msg)}, check.WithSource(sourceCommands))
	if code >= 250 && code < 260 {
		return check.Open("SMTP VRFY command is enabled", unit), nil
	}
	return check.Closed("SMTP VRFY command is disabled", unit), nil
}, assert.NetworkErrors...))

// IsVersionVisible reads the greeting and looks for a version number.
var IsVersionVisible = assert.API(assert.Meta{
	Name:        "proto.smtp.is_version_visible",
	Description: "OPEN when the SMTP greeting discloses the server version.",
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
	if netprobe.Version(banner) != "" {
		return check.Open("SMTP version is visible", unit), nil
	}
	return check.Closed("SMTP version is not visible", unit), nil
}, assert.NetworkErrors...))

// HasNoSTARTTLS checks the EHLO extensions for STARTTLS.
var HasNoSTARTTLS = assert.API(assert.Meta{
	Name:        "proto.smtp.has_no_starttls",
	Description: "OPEN when the server does not offer STARTTLS.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
	client, addr, err := session(ctx, p)
	if err != nil {
		return check.Outcome{}, err
	}
	defer client.Close()

	ok, _ := client.Extension("STARTTLS")
	_ = client.Quit()
	if !ok {
		return check.Open("SMTP server does not offer STARTTLS",
			check.NewUnit(addr, []string{"STARTTLS not advertised"}, check.WithSource(sourceCommands))), nil
	}
	return check.Closed("SMTP server offers STARTTLS",
		check.NewUnit(addr, []string{"STARTTLS advertised"}, check.WithSource(sourceCommands))), nil
}, assert.NetworkErrors...))

// Register adds every SMTP check to r.
func Register(r *assert.Registry) {
	assert.MustRegister(r, HasVRFY)
	assert.MustRegister(r, IsVersionVisible)
	assert.MustRegister(r, HasNoSTARTTLS)
}
