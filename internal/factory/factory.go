// Package factory defines the unpooled connection source that
// internal/pool fronts: one call, one fresh physical connection, no
// caching of its own.
package factory

import (
	"context"
	"database/sql"
)

// Opener opens exactly one fresh physical connection per call. It must be
// safe to call from arbitrary goroutines; internal/pool serializes calls
// to it only incidentally, via the pool's own monitor.
type Opener interface {
	// Open returns a new, unshared *sql.Conn. The caller owns it until it
	// is closed.
	Open(ctx context.Context) (*sql.Conn, error)

	// Identity returns the (driver, dsn, username) triple this opener was
	// constructed with, used by the pool to compute the connection
	// fingerprint (connection type code).
	Identity() (driver, dsn, username string)
}
