// Package pgcheck audits PostgreSQL server settings through an
// authenticated session.
package pgcheck

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/khanhnv2901/seca-assert/internal/application/assert"
	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	"github.com/khanhnv2901/seca-assert/internal/infrastructure/sqlprobe"
	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

const (
	sourceConfig    = "PostgreSQL/Configuration"
	defaultPort     = 5432
	defaultDatabase = "postgres"
	defaultSSLMode  = "disable"

	classInvalidAuthorization pq.ErrorClass = "28"
	codeInsufficientPrivilege pq.ErrorCode  = "42501"
)

var errorChecks = append([]error{sharedErrors.ErrAuthentication}, assert.NetworkErrors...)

// Params identifies the server and the auditing account. SSLMode defaults
// to disable so servers without TLS can still be audited.
type Params struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	Database string        `mapstructure:"database"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p Params) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return consts.DefaultTimeout
}

// dsn renders p in the key=value connection string form.
func (p Params) dsn() (string, error) {
	if strings.TrimSpace(p.Host) == "" || p.User == "" {
		return "", fmt.Errorf("%w: host and user are required", sharedErrors.ErrInvalidParameter)
	}
	port := p.Port
	if port == 0 {
		port = defaultPort
	}
	database := p.Database
	if database == "" {
		database = defaultDatabase
	}
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = defaultSSLMode
	}
	secs := int(p.timeout().Seconds())
	if secs < 1 {
		secs = 1
	}
	pairs := []string{
		"host=" + quote(p.Host),
		"port=" + strconv.Itoa(port),
		"user=" + quote(p.User),
		"password=" + quote(p.Password),
		"dbname=" + quote(database),
		"sslmode=" + quote(sslmode),
		"connect_timeout=" + strconv.Itoa(secs),
	}
	return strings.Join(pairs, " "), nil
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// connector is replaced in tests.
var connector = func(dsn string) (driver.Connector, error) {
	return pq.NewConnector(dsn)
}

func open(ctx context.Context, p Params) (*sql.DB, string, error) {
	dsn, err := p.dsn()
	if err != nil {
		return nil, "", err
	}
	where := fmt.Sprintf("%s:%d", p.Host, p.Port)
	if p.Port == 0 {
		where = fmt.Sprintf("%s:%d", p.Host, defaultPort)
	}
	c, err := connector(dsn)
	if err != nil {
		return nil, where, fmt.Errorf("%w: %v", sharedErrors.ErrInvalidParameter, err)
	}
	db, err := sqlprobe.Connect(ctx, c, p.timeout())
	if err != nil {
		return nil, where, classify(err)
	}
	return db, where, nil
}

// classify marks login and privilege failures as authentication errors.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == classInvalidAuthorization || pqErr.Code == codeInsufficientPrivilege {
			return fmt.Errorf("%w: %v", sharedErrors.ErrAuthentication, err)
		}
	}
	return err
}

// settingCheck builds a check that reads one server setting with SHOW and
// opens when openIf holds for its value.
func settingCheck(meta assert.Meta, setting string, openIf func(string) bool, openMsg, closedMsg string) *assert.Check[Params] {
	return assert.API(meta, assert.UnknownIf(func(ctx context.Context, p Params) (check.Outcome, error) {
		db, where, err := open(ctx, p)
		if err != nil {
			return check.Outcome{}, err
		}
		defer db.Close()

		value, err := sqlprobe.Value(ctx, db, "SHOW "+setting)
		if err != nil {
			return check.Outcome{}, classify(err)
		}
		unit := check.NewUnit(where, []string{setting + " = " + value}, check.WithSource(sourceConfig))
		if openIf(strings.ToLower(strings.TrimSpace(value))) {
			return check.Open(openMsg, unit), nil
		}
		return check.Closed(closedMsg, unit), nil
	}, errorChecks...))
}

func isOff(v string) bool { return v == "off" || v == "false" || v == "0" }

// IsSSLDisabled reads the ssl setting.
var IsSSLDisabled = settingCheck(assert.Meta{
	Name:        "proto.postgres.is_ssl_disabled",
	Description: "OPEN when the server has SSL disabled.",
	Risk:        check.RiskHigh,
	Kind:        check.KindDAST,
}, "ssl", isOff, "PostgreSQL SSL is disabled", "PostgreSQL SSL is enabled")

// IsLogConnectionsDisabled reads log_connections.
var IsLogConnectionsDisabled = settingCheck(assert.Meta{
	Name:        "proto.postgres.is_log_connections_disabled",
	Description: "OPEN when the server does not log connection attempts.",
	Risk:        check.RiskLow,
	Kind:        check.KindDAST,
}, "log_connections", isOff, "PostgreSQL does not log connections", "PostgreSQL logs connections")

// HasWeakPasswordEncryption reads password_encryption. Anything other than
// scram-sha-256 stores MD5 hashes.
var HasWeakPasswordEncryption = settingCheck(assert.Meta{
	Name:        "proto.postgres.has_weak_password_encryption",
	Description: "OPEN when passwords are hashed with MD5 instead of SCRAM-SHA-256.",
	Risk:        check.RiskMedium,
	Kind:        check.KindDAST,
}, "password_encryption", func(v string) bool { return v != "scram-sha-256" },
	"PostgreSQL uses weak password encryption", "PostgreSQL uses SCRAM-SHA-256 password encryption")

// Register adds every PostgreSQL check to r.
func Register(r *assert.Registry) {
	assert.MustRegister(r, IsSSLDisabled)
	assert.MustRegister(r, IsLogConnectionsDisabled)
	assert.MustRegister(r, HasWeakPasswordEncryption)
}
