package sqlprobe

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/khanhnv2901/seca-assert/internal/infrastructure/sqlprobe/sqlfake"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

func TestConnectAndQuery(t *testing.T) {
	fake := &sqlfake.Connector{Results: map[string]sqlfake.Result{
		"SHOW ssl": sqlfake.Single("ssl", "off"),
		"SELECT user, host FROM users": {
			Columns: []string{"user", "host"},
			Rows:    [][]driver.Value{{"root", "%"}, {"app", nil}},
		},
	}}
	db, err := Connect(context.Background(), fake, time.Second)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	v, err := Value(context.Background(), db, "SHOW ssl")
	if err != nil || v != "off" {
		t.Fatalf("Value = %q, %v", v, err)
	}

	rows, err := Rows(context.Background(), db, "SELECT user, host\n FROM users")
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(rows) != 2 || rows[0][1] != "%" || rows[1][1] != "" {
		t.Errorf("unexpected rows %v", rows)
	}

	if _, err := Value(context.Background(), db, "SELECT 1"); err == nil {
		t.Error("expected error for unknown query")
	}
}

func TestConnect_BadConnIsConnectionError(t *testing.T) {
	fake := &sqlfake.Connector{ConnectErr: driver.ErrBadConn}
	_, err := Connect(context.Background(), fake, time.Second)
	if !errors.Is(err, sharedErrors.ErrConnection) {
		t.Errorf("expected ErrConnection, got %v", err)
	}
}
