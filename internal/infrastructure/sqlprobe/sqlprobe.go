// Package sqlprobe opens short-lived database handles for configuration
// checks and reads setting values from them.
package sqlprobe

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	consts "github.com/khanhnv2901/seca-assert/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

// Connect opens a single-connection pool on connector and pings it.
func Connect(ctx context.Context, connector driver.Connector, timeout time.Duration) (*sql.DB, error) {
	if timeout <= 0 {
		timeout = consts.DefaultTimeout
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(timeout)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		if errors.Is(err, driver.ErrBadConn) {
			return nil, fmt.Errorf("%w: %v", sharedErrors.ErrConnection, err)
		}
		return nil, err
	}
	return db, nil
}

// Value returns the first column of the first row, or "" for NULL.
func Value(ctx context.Context, db *sql.DB, query string, args ...any) (string, error) {
	var v sql.NullString
	if err := db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return "", fmt.Errorf("query %q: %w", query, err)
	}
	return v.String, nil
}

// Rows returns every row with each column rendered as a string.
func Rows(ctx context.Context, db *sql.DB, query string, args ...any) ([][]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out [][]string
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %q: %w", query, err)
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = v.String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
