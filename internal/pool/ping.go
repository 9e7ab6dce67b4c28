package pool

import (
	"context"
	"time"

	"github.com/catherinevee/connpool/internal/shared/logger"
)

// pingConnection implements the liveness probe from §4.3. It is called
// while the pool's monitor is held, immediately after a candidate is
// chosen — a known, documented performance limitation for steps 2-4
// (network I/O under lock), preserved here for behavioral fidelity
// rather than fixed.
func (ds *DataSource) pingConnection(ctx context.Context, pc *PooledConnection) bool {
	// Step 1 ("isClosed") is a local, no-I/O check, mirroring JDBC's
	// isClosed(): Raw's callback never runs once the underlying *sql.Conn
	// has had Close called on it, so this reports sql.ErrConnDone without
	// touching the network. The actual liveness probe is steps 2-4 below,
	// gated by PingEnabled so the default (false) never performs I/O here.
	if err := pc.real.Raw(func(interface{}) error { return nil }); err != nil {
		return false
	}

	if !ds.cfg.PingEnabled || ds.cfg.PingConnectionsNotUsedFor < 0 {
		return true
	}

	if time.Since(pc.lastUsedAt) <= ds.cfg.PingConnectionsNotUsedFor {
		return true
	}

	_, err := pc.real.ExecContext(ctx, ds.cfg.PingQuery)
	if err != nil {
		// Swallow the close error: the connection is already being
		// discarded by the caller, and a failure here never surfaces
		// (§7, ProbeFailure).
		_ = pc.closePhysical()
		return false
	}

	if !ds.cfg.AutoCommit {
		if err := pc.rollback(ctx); err != nil {
			ds.log.Warn("rollback after ping failed", logger.Err(err))
		}
	}
	return true
}
