// Package mysqlcheck audits MySQL server configuration through an
// authenticated session.
package mysqlcheck

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/sqlprobe"
	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
	"github.com/khanhnv2901/seca-assert/internal/shared/target"
)

const sourceConfig = "MySQL/Configuration"

// Server error numbers that mean the account cannot run the probe.
const (
	errAccessDenied      = 1045
	errTableAccessDenied = 1142
	errSpecificAccess    = 1227
)

var errorChecks = append([]error{sharedErrors.ErrAuthentication}, assert.NetworkErrors...)

// Params identifies the server and the auditing account.
type Params struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p Params) config() (*mysql.Config, error) {
	if strings.TrimSpace(p.Host) == "" || p.User == "" {
		return nil, fmt.Errorf("%w: host and user are required", sharedErrors.ErrInvalidParameter)
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = consts.DefaultTimeout
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = target.Address(p.Host, p.Port, "3306")
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Timeout = timeout
	cfg.ReadTimeout = timeout
	cfg.WriteTimeout = timeout
	return cfg, nil
}

// connector is replaced in tests.
var connector = func(cfg *mysql.Config) (driver.Connector, error) {
	return mysql.NewConnector(cfg)
}

func open(ctx context.Context, p Params) (*sql.DB, string, error) {
	cfg, err := p.config()
	if err != nil {
		return nil, "", err
	}
	c, err := connector(cfg)
	if err != nil {
		return nil, cfg.Addr, fmt.Errorf("%w: %v", sharedErrors.ErrInvalidParameter, err)
	}
	db, err := sqlprobe.Connect(ctx, c, cfg.Timeout)
	if err != nil {
		return nil, cfg.Addr, classify(err)
	}
	return db, cfg.Addr, nil
}

// classify marks privilege failures as authentication errors.
func classify(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errAccessDenied, errTableAccessDenied, errSpecificAccess:
			return fmt.Errorf("%w: %v", sharedErrors.ErrAuthentication, err)
		}
	}
	return err
}

// enabled interprets MySQL boolean system variables.
func enabled(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "1", "ON", "YES", "TRUE":
		return true
	}
	return false
}

// variableCheck builds a check that reads one global variable and opens when
// openIf holds for its value.
func variableCheck(meta assert.Meta, variable string, openIf func(string) bool, openMsg, closedMsg string) *assert.Check[Params] {
	return assert.API(meta, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
		db, addr, err := open(ctx, p)
		if err != nil {
			return check.Outcome{}, err
		}
		defer db.Close()

		value, err := sqlprobe.Value(ctx, db, "SELECT @@GLOBAL."+variable)
		if err != nil {
			return check.Outcome{}, classify(err)
		}
		unit := check.NewUnit(addr, []string{variable + " = " + value}, check.WithSource(sourceConfig))
		if openIf(value) {
			return check.Open(openMsg, unit), nil
		}
		return check.Closed(closedMsg, unit), nil
	}, errorChecks...))
}

// HasEmptyPasswords lists accounts whose authentication string is empty.
var HasEmptyPasswords = assert.API(assert.Meta{
	Name:        "proto.mysql.has_empty_passwords",
	Description: "OPEN when any account has an empty password.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
	db, addr, err := open(ctx, p)
	if err != nil {
		return check.Outcome{}, err
	}
	defer db.Close()

	rows, err := sqlprobe.Rows(ctx, db,
		"SELECT user, host FROM mysql.user WHERE authentication_string = '' OR authentication_string IS NULL")
	if err != nil {
		return check.Outcome{}, classify(err)
	}
	var vulns []check.Unit
	for _, row := range rows {
		vulns = append(vulns, check.NewUnit(addr, []string{fmt.Sprintf("'%s'@'%s'", row[0], row[1])}, check.WithSource(sourceConfig)))
	}
	safes := []check.Unit{check.NewUnit(addr, []string{"mysql.user"}, check.WithSource(sourceConfig))}
	if len(vulns) > 0 {
		safes = nil
	}
	return check.Classify("MySQL has accounts without password", "All MySQL accounts have a password", vulns, safes), nil
}, errorChecks...))

// HasTestDatabase looks for the sample database shipped by old installers.
var HasTestDatabase = assert.API(assert.Meta{
	Name:        "proto.mysql.has_test_database",
	Description: "OPEN when the default test database is present.",
	Risk:        check.RiskLow,
	Kind:        check.KindDAST,
}, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
	db, addr, err := open(ctx, p)
	if err != nil {
		return check.Outcome{}, err
	}
	defer db.Close()

	rows, err := sqlprobe.Rows(ctx, db, "SHOW DATABASES LIKE 'test'")
	if err != nil {
		return check.Outcome{}, classify(err)
	}
	if len(rows) > 0 {
		return check.Open("MySQL test database is present",
			check.NewUnit(addr, []string{"database: test"}, check.WithSource(sourceConfig))), nil
	}
	return check.Closed("MySQL test database is not present",
		check.NewUnit(addr, []string{"database test not found"}, check.WithSource(sourceConfig))), nil
}, errorChecks...))

// IsLocalInfileEnabled reads local_infile, which lets clients make the
// server read arbitrary client files.
var IsLocalInfileEnabled = variableCheck(assert.Meta{
	Name:        "proto.mysql.is_local_infile_enabled",
	Description: "OPEN when LOAD DATA LOCAL INFILE is enabled on the server.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, "local_infile", enabled, "MySQL local_infile is enabled", "MySQL local_infile is disabled")

// IsSecureTransportNotRequired reads require_secure_transport.
var IsSecureTransportNotRequired = variableCheck(assert.Meta{
	Name:        "proto.mysql.is_secure_transport_not_required",
	Description: "OPEN when the server accepts unencrypted client connections.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, "require_secure_transport", func(v string) bool { return !enabled(v) },
	"MySQL does not require secure transport", "MySQL requires secure transport")

// Register adds every MySQL check to r.
func Register(r *assert.Registry) {
	assert.MustRegister(r, HasEmptyPasswords)
	assert.MustRegister(r, HasTestDatabase)
	assert.MustRegister(r, IsLocalInfileEnabled)
	assert.MustRegister(r, IsSecureTransportNotRequired)
}
