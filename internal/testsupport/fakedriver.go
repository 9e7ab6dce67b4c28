// Package testsupport provides a hand-rolled database/sql/driver fake so
// internal/pool's tests can exercise factory.Opener without a real
// database, in the spirit of the teacher's MockConnection/
// MockConnectionPool pair used for backend pool tests.
package testsupport

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"sync"
	"sync/atomic"
)

// Behavior controls how the fake driver responds for one DSN.
type Behavior struct {
	OpenErr error // returned from every Open call for this DSN
	PingErr error // returned from every Ping call on connections opened for this DSN
	ExecErr error // returned from every ExecContext call on connections opened for this DSN

	mu     sync.Mutex
	opened int64
	closed int64
}

// Opened reports how many physical connections have been opened under
// this behavior.
func (b *Behavior) Opened() int64 { return atomic.LoadInt64(&b.opened) }

// Closed reports how many physical connections have been closed under
// this behavior.
func (b *Behavior) Closed() int64 { return atomic.LoadInt64(&b.closed) }

var registry sync.Map // dsn (string) -> *Behavior

// Register associates a Behavior with a DSN the fake driver will serve.
// Tests should use a unique DSN per case to avoid cross-test
// interference, since the registry is process-wide (mirroring how
// database/sql's own driver registry is process-wide).
func Register(dsn string, b *Behavior) {
	registry.Store(dsn, b)
}

const DriverName = "connpool_fake"

func init() {
	sql.Register(DriverName, fakeDriver{})
}

type fakeDriver struct{}

func (fakeDriver) Open(dsn string) (driver.Conn, error) {
	v, ok := registry.Load(dsn)
	var b *Behavior
	if ok {
		b = v.(*Behavior)
	} else {
		b = &Behavior{}
	}
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	atomic.AddInt64(&b.opened, 1)
	return &fakeConn{behavior: b}, nil
}

type fakeConn struct {
	behavior *Behavior
	mu       sync.Mutex
	closed   bool
}

func (c *fakeConn) Prepare(query string) (driver.Stmt, error) {
	return &fakeStmt{conn: c}, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		atomic.AddInt64(&c.behavior.closed, 1)
	}
	return nil
}

func (c *fakeConn) Begin() (driver.Tx, error) {
	return fakeTx{}, nil
}

// Ping implements driver.Pinger, exercised by (*sql.Conn).PingContext,
// which Handle.PingContext forwards to. The pool's liveness probe does
// not call it: its step 1 uses Raw.
func (c *fakeConn) Ping(ctx context.Context) error {
	return c.behavior.PingErr
}

// ExecContext implements driver.ExecerContext, exercised both by the
// pool's probe query (§4.3 step 3) and by ROLLBACK statements.
func (c *fakeConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if c.behavior.ExecErr != nil {
		return nil, c.behavior.ExecErr
	}
	return fakeResult{}, nil
}

type fakeStmt struct{ conn *fakeConn }

func (s *fakeStmt) Close() error  { return nil }
func (s *fakeStmt) NumInput() int { return -1 }
func (s *fakeStmt) Exec(args []driver.Value) (driver.Result, error) {
	return fakeResult{}, nil
}
func (s *fakeStmt) Query(args []driver.Value) (driver.Rows, error) {
	return &fakeRows{}, nil
}

type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 0, nil }

type fakeRows struct{}

func (*fakeRows) Columns() []string              { return nil }
func (*fakeRows) Close() error                   { return nil }
func (*fakeRows) Next(dest []driver.Value) error { return sql.ErrNoRows }
