package pool

import (
	"context"
	"database/sql"
)

// Handle is the caller-facing connection returned by Acquire. It exposes
// a subset of *sql.Conn's methods (ExecContext, QueryContext,
// QueryRowContext, PingContext, BeginTx, Raw) by explicit delegation rather than
// embedding, because each delegated call must first check that the
// underlying PooledConnection is still valid (§4.4) — a check embedding
// cannot express. Close is the one method that does not forward to the
// physical connection: it routes into DataSource.release instead.
type Handle struct {
	pc        *PooledConnection
	requestID string
}

// ExecContext forwards to the physical connection's ExecContext.
func (h *Handle) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if !h.pc.Valid() {
		return nil, ErrConnectionInvalid
	}
	return h.pc.real.ExecContext(ctx, query, args...)
}

// QueryContext forwards to the physical connection's QueryContext.
func (h *Handle) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if !h.pc.Valid() {
		return nil, ErrConnectionInvalid
	}
	return h.pc.real.QueryContext(ctx, query, args...)
}

// QueryRowContext forwards to the physical connection's QueryRowContext.
func (h *Handle) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	if !h.pc.Valid() {
		// *sql.Row has no exported constructor; callers scan the error by
		// calling Err()/Scan() on a row built from a pre-cancelled query,
		// which the standard library exposes via QueryRowContext itself.
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		return h.pc.real.QueryRowContext(cancelled, query, args...)
	}
	return h.pc.real.QueryRowContext(ctx, query, args...)
}

// PingContext forwards to the physical connection's PingContext.
func (h *Handle) PingContext(ctx context.Context) error {
	if !h.pc.Valid() {
		return ErrConnectionInvalid
	}
	return h.pc.real.PingContext(ctx)
}

// BeginTx forwards to the physical connection's BeginTx.
func (h *Handle) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if !h.pc.Valid() {
		return nil, ErrConnectionInvalid
	}
	return h.pc.real.BeginTx(ctx, opts)
}

// Raw forwards to the physical connection's Raw, for driver-specific
// diagnostics.
func (h *Handle) Raw(f func(driverConn interface{}) error) error {
	if !h.pc.Valid() {
		return ErrConnectionInvalid
	}
	return h.pc.real.Raw(f)
}

// Close intercepts disposal and routes it to the owning DataSource's
// release, instead of closing the physical connection directly. This is
// the Go expression of §4.4's interception rule: the proxy's "close" is
// the only method that does not forward to the real connection.
func (h *Handle) Close() error {
	return h.pc.ds.release(h.pc)
}

// PhysicalID identifies the underlying physical connection. Two handles
// issued across a release-then-reacquire re-wrap (§4.2) report the same
// PhysicalID even though they wrap distinct PooledConnection values,
// mirroring the equality contract described in §4.4.
func (h *Handle) PhysicalID() uint64 {
	return h.pc.physicalID()
}

// RequestID returns the correlation ID stamped on this handle at
// acquisition time, for log correlation.
func (h *Handle) RequestID() string {
	return h.requestID
}

// Valid reports whether this handle's connection is still usable.
func (h *Handle) Valid() bool {
	return h.pc.Valid()
}
