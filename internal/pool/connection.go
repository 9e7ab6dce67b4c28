package pool

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync/atomic"
	"time"
)

// PooledConnection wraps exactly one physical connection with the
// lifecycle metadata the pool needs to decide reuse, reclamation, and
// retirement. At most one PooledConnection owns a given *sql.Conn at a
// time; ownership transfers (without closing the physical connection)
// during a reclaim or a release re-wrap.
type PooledConnection struct {
	real *sql.Conn

	ds *DataSource

	connTypeCode uint32

	createdAt  time.Time
	lastUsedAt time.Time
	checkoutAt time.Time

	// valid is one-way true->false; read/written only while ds.state's
	// mutex is held, except for the fast-path check in Handle methods,
	// which is why it is an atomic.
	valid atomic.Bool
}

func newPooledConnection(ds *DataSource, real *sql.Conn, typeCode uint32) *PooledConnection {
	pc := &PooledConnection{
		real:         real,
		ds:           ds,
		connTypeCode: typeCode,
		createdAt:    time.Now(),
		lastUsedAt:   time.Now(),
	}
	pc.valid.Store(true)
	return pc
}

// rewrap mints a fresh PooledConnection around the same physical
// connection, inheriting created/last-used timestamps and invalidating
// the wrapper it was minted from. Used by both reclaim (§4.1 step 3) and
// release (§4.2 step 4).
func (pc *PooledConnection) rewrap() *PooledConnection {
	next := &PooledConnection{
		real:         pc.real,
		ds:           pc.ds,
		connTypeCode: pc.connTypeCode,
		createdAt:    pc.createdAt,
		lastUsedAt:   pc.lastUsedAt,
	}
	next.valid.Store(true)
	pc.invalidate()
	return next
}

func (pc *PooledConnection) invalidate() {
	pc.valid.Store(false)
}

// Valid reports whether this wrapper may still be used to reach the
// physical connection.
func (pc *PooledConnection) Valid() bool {
	return pc.valid.Load()
}

// checkoutTime returns how long this connection has been checked out, as
// of now. Only meaningful for an active connection.
func (pc *PooledConnection) checkoutTime() time.Duration {
	return time.Since(pc.checkoutAt)
}

// physicalID identifies the underlying physical connection for the
// purposes of the equality contract in §4.4: two PooledConnections born
// from the same rewrap() chain share a physicalID even though they are
// different Go values.
func (pc *PooledConnection) physicalID() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%p", pc.real)
	return h.Sum64()
}

func (pc *PooledConnection) closePhysical() error {
	return pc.real.Close()
}

func (pc *PooledConnection) rollback(ctx context.Context) error {
	_, err := pc.real.ExecContext(ctx, "ROLLBACK")
	return err
}
