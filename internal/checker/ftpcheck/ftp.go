// Package ftpcheck tests FTP servers for weak logins and banner disclosure.
package ftpcheck

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/netprobe"
	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
	"github.com/khanhnv2901/seca-assert/internal/shared/target"
)

const (
	sourceAuth   = "FTP/Authentication"
	sourceBanner = "FTP/Banner"

	anonymousUser     = "anonymous"
	anonymousPassword = "anonymous@example.com"
	adminUser         = "root"
)

// Params is the FTP endpoint.
type Params struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (p Params) address() (string, error) {
	if strings.TrimSpace(p.Host) == "" {
		return "", fmt.Errorf("%w: host is required", sharedErrors.ErrInvalidParameter)
	}
	return target.Address(p.Host, p.Port, "21"), nil
}

func (p Params) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return consts.DefaultTimeout
}

// login reports whether the server accepts the credentials. Rejections are
// not errors; transport failures are.
func login(ctx context.Context, p Params, user, password string) (bool, string, error) {
	addr, err := p.address()
	if err != nil {
		return false, "", err
	}
	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(p.timeout()),
		ftp.DialWithDisabledUTF8(true),
	)
	if err != nil {
		return false, addr, fmt.Errorf("connect %s: %w", addr, err)
	}
	defer func() { _ = conn.Quit() }()

	if err := conn.Login(user, password); err != nil {
		if sharedErrors.Classify(err) != nil {
			return false, addr, fmt.Errorf("login on %s: %w", addr, err)
		}
		return false, addr, nil
	}
	_ = conn.Logout()
	return true, addr, nil
}

func loginOutcome(ok bool, addr, user, openMsg, closedMsg string) check.Outcome {
	unit := check.NewUnit(addr, []string{"user: " + user}, check.WithSource(sourceAuth))
	if ok {
		return check.Open(openMsg, unit)
	}
	return check.Closed(closedMsg, unit)
}

// IsAnonymousEnabled tries the conventional anonymous login.
var IsAnonymousEnabled = assert.API(assert.Meta{
	Name:        "proto.ftp.is_anonymous_enabled",
	Description: "OPEN when the server accepts anonymous logins.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
	ok, addr, err := login(ctx, p, anonymousUser, anonymousPassword)
	if err != nil {
		return check.Outcome{}, err
	}
	return loginOutcome(ok, addr, anonymousUser,
		"FTP anonymous login is enabled", "FTP anonymous login is disabled"), nil
}, assert.NetworkErrors...))

// UserParams configures UserWithoutPassword.
type UserParams struct {
	Params   `mapstructure:",squash"`
	Username string `mapstructure:"username"`
}

// UserWithoutPassword tries the given user with an empty password.
var UserWithoutPassword = assert.API(assert.Meta{
	Name:        "proto.ftp.user_without_password",
	Description: "OPEN when the user can log in with an empty password.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p UserParams) (check.Outcome, error) {
	if p.Username == "" {
		return check.Outcome{}, fmt.Errorf("%w: username is required", sharedErrors.ErrInvalidParameter)
	}
	ok, addr, err := login(ctx, p.Params, p.Username, "")
	if err != nil {
		return check.Outcome{}, err
	}
	return loginOutcome(ok, addr, p.Username,
		"FTP user can log in without a password", "FTP user requires a password"), nil
}, assert.NetworkErrors...))

// AdminParams configures IsAdminEnabled. Username defaults to root.
type AdminParams struct {
	Params   `mapstructure:",squash"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// IsAdminEnabled tries the administrative account with the given password.
var IsAdminEnabled = assert.API(assert.Meta{
	Name:        "proto.ftp.is_admin_enabled",
	Description: "OPEN when the administrative account can log in over FTP.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p AdminParams) (check.Outcome, error) {
	user := p.Username
	if user == "" {
		user = adminUser
	}
	ok, addr, err := login(ctx, p.Params, user, p.Password)
	if err != nil {
		return check.Outcome{}, err
	}
	return loginOutcome(ok, addr, user,
		"FTP admin login is enabled", "FTP admin login is disabled"), nil
}, assert.NetworkErrors...))

// IsVersionVisible reads the greeting and looks for a version number.
var IsVersionVisible = assert.API(assert.Meta{
	Name:        "proto.ftp.is_version_visible",
	Description: "OPEN when the FTP greeting discloses the server version.",
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
	if version := netprobe.Version(banner); version != "" {
		return check.Open("FTP version is visible", unit), nil
	}
	return check.Closed("FTP version is not visible", unit), nil
}, assert.NetworkErrors...))

// Register adds every FTP check to r.
func Register(r *assert.Registry) {
	assert.MustRegister(r, IsAnonymousEnabled)
	assert.MustRegister(r, UserWithoutPassword)
	assert.MustRegister(r, IsAdminEnabled)
	assert.MustRegister(r, IsVersionVisible)
}
