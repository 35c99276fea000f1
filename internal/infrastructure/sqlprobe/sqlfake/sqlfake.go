// Package sqlfake is an in-memory database/sql driver for tests. It answers
// queries from a fixed table keyed by the query text.
package sqlfake

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Result is the canned answer to one query.
type Result struct {
	Columns []string
	Rows    [][]driver.Value
	Err     error
}

// Connector implements driver.Connector. ConnectErr is returned on every
// connection attempt; Results are matched after collapsing whitespace.
type Connector struct {
	Results    map[string]Result
	ConnectErr error
}

// Connect implements driver.Connector.
func (c *Connector) Connect(context.Context) (driver.Conn, error) {
	if c.ConnectErr != nil {
		return nil, c.ConnectErr
	}
	return &conn{c: c}, nil
}

// Driver implements driver.Connector.
func (c *Connector) Driver() driver.Driver { return fakeDriver{c: c} }

type fakeDriver struct{ c *Connector }

func (d fakeDriver) Open(string) (driver.Conn, error) { return d.c.Connect(context.Background()) }

type conn struct{ c *Connector }

func (c *conn) Prepare(query string) (driver.Stmt, error) { return &stmt{c: c.c, query: query}, nil }
func (c *conn) Close() error                              { return nil }
func (c *conn) Begin() (driver.Tx, error)                 { return nil, errors.New("sqlfake: transactions unsupported") }

type stmt struct {
	c     *Connector
	query string
}

func (s *stmt) Close() error  { return nil }
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec([]driver.Value) (driver.Result, error) {
	return nil, errors.New("sqlfake: exec unsupported")
}

func (s *stmt) Query([]driver.Value) (driver.Rows, error) {
	res, ok := s.c.lookup(s.query)
	if !ok {
		return nil, fmt.Errorf("sqlfake: unexpected query %q", s.query)
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return &rows{columns: res.Columns, data: res.Rows}, nil
}

type rows struct {
	columns []string
	data    [][]driver.Value
	pos     int
}

func (r *rows) Columns() []string { return r.columns }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.pos])
	r.pos++
	return nil
}

// Single is a one-column, one-row result.
func Single(column string, value driver.Value) Result {
	return Result{Columns: []string{column}, Rows: [][]driver.Value{{value}}}
}

func (c *Connector) lookup(query string) (Result, bool) {
	want := normalize(query)
	for q, res := range c.Results {
		if normalize(q) == want {
			return res, true
		}
	}
	return Result{}, false
}

func normalize(q string) string {
	return strings.Join(strings.Fields(q), " ")
}
