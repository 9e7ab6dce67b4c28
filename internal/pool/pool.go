// Package pool implements a synchronous, thread-safe connection pool
// fronting an unpooled factory.Opener, per the design in SPEC_FULL.md
// §3-§5: one monitor (sync.Mutex + sync.Cond) serializes idle reuse,
// growth, overdue reclamation, bounded waiting, and liveness probing.
package pool

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/catherinevee/connpool/internal/factory"
	"github.com/catherinevee/connpool/internal/shared/logger"
)

// Config holds the pool's tunables. The caps, checkout and wait times,
// and ping settings can be changed later only through a DataSource setter
// that forces a drain (ForceCloseAll), never by mutating Config after
// construction in place. AutoCommit and MaxLocalBadConnTolerance have no
// setter and keep their construction-time values.
type Config struct {
	MaxActive                 int
	MaxIdle                   int
	MaxCheckoutTime           time.Duration
	TimeToWait                time.Duration
	MaxLocalBadConnTolerance  int
	PingQuery                 string
	PingEnabled               bool
	PingConnectionsNotUsedFor time.Duration
	AutoCommit                bool
}

// DefaultConfig returns the pool defaults named in SPEC_FULL.md §4.1.
func DefaultConfig() Config {
	return Config{
		MaxActive:                 10,
		MaxIdle:                   5,
		MaxCheckoutTime:           20 * time.Second,
		TimeToWait:                20 * time.Second,
		MaxLocalBadConnTolerance:  3,
		PingQuery:                 "NO PING QUERY SET",
		PingEnabled:               false,
		PingConnectionsNotUsedFor: 0,
		AutoCommit:                true,
	}
}

// DataSource is the pool façade: the only type application code talks
// to. It owns the configuration, the aggregated state, and the unpooled
// factory it fronts.
type DataSource struct {
	name    string
	opener  factory.Opener
	cfg     Config
	state   *state
	log     logger.Logger
	closed  bool
}

// NewDataSource constructs a pool fronting opener. name is used only for
// logging/metrics labels.
func NewDataSource(name string, opener factory.Opener, cfg Config) *DataSource {
	_, dsn, username := opener.Identity()
	ds := &DataSource{
		name:   name,
		opener: opener,
		cfg:    cfg,
		log:    logger.New("connpool." + name),
	}
	ds.state = newState(connectionTypeCode(dsn, username, ""))
	return ds
}

// Stats returns a point-in-time snapshot of the pool's counters.
func (ds *DataSource) Stats() Stats {
	ds.state.mu.Lock()
	defer ds.state.mu.Unlock()
	return ds.state.snapshot()
}

// Acquire implements §4.1's algorithm: idle reuse, else growth, else
// reclaim-if-overdue-else-wait, validate under lock, retry bad
// candidates against the local budget.
func (ds *DataSource) Acquire(ctx context.Context) (*Handle, error) {
	return ds.acquire(ctx, false, "", "")
}

// AcquireAs checks out a connection whose fingerprint is computed from
// the given credentials instead of the factory's default identity. The
// credentials are not passed to the factory: the connection comes from
// the same idle list or opener as Acquire. Per §6, the override
// changes this checkout's fingerprint: if it no longer matches the
// pool's expectedConnectionTypeCode, Release discards rather than idles
// the connection on return (§4.2 step 4).
func (ds *DataSource) AcquireAs(ctx context.Context, username, password string) (*Handle, error) {
	return ds.acquire(ctx, true, username, password)
}

func (ds *DataSource) acquire(ctx context.Context, override bool, username, password string) (*Handle, error) {
	start := time.Now()

	s := ds.state
	s.mu.Lock()
	defer s.mu.Unlock()

	typeCode := s.expectedTypeCode
	if override {
		typeCode = connectionTypeCode(ds.dsn(), username, password)
	}

	localBad := 0
	waitedOnce := false

	for {
		if ds.closed {
			return nil, ErrPoolClosed
		}

		var candidate *PooledConnection

		switch {
		case len(s.idle) > 0:
			candidate = s.popIdle()

		case len(s.active) < ds.cfg.MaxActive:
			// Opening the physical connection happens under the same
			// monitor as every other pool operation (§5): the design
			// trades request latency for the simplicity of one
			// invariant-preserving critical section, the same trade the
			// probe-under-lock limitation in §4.3/§9 documents.
			pc, err := ds.openNew(ctx, typeCode)
			if err != nil {
				localBad++
				s.badConnectionCount++
				ds.log.Warn("factory failed to open connection", logger.Err(err))
				if localBad > ds.cfg.MaxIdle+ds.cfg.MaxLocalBadConnTolerance {
					return nil, ErrPoolExhausted
				}
				continue
			}
			candidate = pc

		default:
			oldest := s.oldestActive()
			if oldest != nil && oldest.checkoutTime() > ds.cfg.MaxCheckoutTime {
				candidate = ds.reclaim(ctx, oldest)
			} else {
				if !waitedOnce {
					s.hadToWaitCount++
					waitedOnce = true
				}
				waitStart := time.Now()
				if err := ds.waitSlice(ctx); err != nil {
					return nil, err
				}
				s.accumulatedWaitTime += time.Since(waitStart)
				continue
			}
		}

		if candidate == nil {
			// Defensive: the selection above should always produce a
			// candidate or `continue`. Surface PoolExhausted rather than
			// returning a nil Handle (§7).
			return nil, ErrPoolExhausted
		}

		good := ds.pingConnection(ctx, candidate)
		if !good {
			s.badConnectionCount++
			localBad++
			if localBad > ds.cfg.MaxIdle+ds.cfg.MaxLocalBadConnTolerance {
				return nil, ErrPoolExhausted
			}
			continue
		}

		if !ds.cfg.AutoCommit {
			if err := candidate.rollback(ctx); err != nil {
				ds.log.Warn("rollback before handing out connection failed", logger.Err(err))
			}
		}

		candidate.connTypeCode = typeCode
		candidate.checkoutAt = time.Now()
		candidate.lastUsedAt = candidate.checkoutAt
		s.pushActive(candidate)
		s.requestCount++
		s.accumulatedRequestTime += time.Since(start)

		return &Handle{pc: candidate, requestID: uuid.NewString()}, nil
	}
}

// openNew opens a brand-new physical connection via the unpooled
// factory. Called with the state mutex held, so any network I/O that
// factory.Open performs blocks every other pool operation meanwhile.
func (ds *DataSource) openNew(ctx context.Context, typeCode uint32) (*PooledConnection, error) {
	real, err := ds.opener.Open(ctx)
	if err != nil {
		return nil, wrapFactoryFailure(ds.name, err)
	}
	return newPooledConnection(ds, real, typeCode), nil
}

// reclaim implements §4.1 step 3's overdue-reclamation path. Called with
// the state mutex held; oldest has already been confirmed overdue.
func (ds *DataSource) reclaim(ctx context.Context, oldest *PooledConnection) *PooledConnection {
	s := ds.state
	s.removeActive(oldest)

	age := oldest.checkoutTime()

	if !ds.cfg.AutoCommit {
		if err := oldest.rollback(ctx); err != nil {
			// Swallowed per §7: the connection is already suspect: the
			// reclamation proceeds regardless.
			ds.log.Warn("rollback during reclaim failed", logger.Err(err))
		}
	}

	next := oldest.rewrap()

	s.claimedOverdueConnectionCount++
	s.accumulatedCheckoutTimeOfOverdueConnections += age
	s.accumulatedCheckoutTime += age

	ds.log.Info("reclaimed overdue connection",
		logger.Duration("checkout_age", age),
		logger.Any("physical_id", next.physicalID()))

	return next
}

// waitSlice blocks on the condition variable for at most cfg.TimeToWait,
// or until ctx is cancelled, whichever comes first. Must be called with
// s.mu held; returns with s.mu held. Returns ctx.Err() only if the
// caller's own ctx (not the internal wait-slice timeout) was cancelled.
func (ds *DataSource) waitSlice(ctx context.Context) error {
	s := ds.state

	waitCtx, cancel := context.WithTimeout(ctx, ds.cfg.TimeToWait)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		select {
		case <-waitCtx.Done():
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-stopped:
		}
	}()

	s.cond.Wait()
	close(stopped)

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// release implements §4.2. Called via Handle.Close; pc is the inner
// wrapper, never the proxy.
func (ds *DataSource) release(pc *PooledConnection) error {
	s := ds.state
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeActive(pc)

	if !pc.Valid() {
		s.badConnectionCount++
		return nil
	}

	s.accumulatedCheckoutTime += pc.checkoutTime()

	if len(s.idle) < ds.cfg.MaxIdle && pc.connTypeCode == s.expectedTypeCode {
		var rollbackErr error
		if !ds.cfg.AutoCommit {
			rollbackErr = pc.rollback(context.Background())
		}

		idle := pc.rewrap()
		s.pushIdle(idle)
		s.cond.Broadcast()

		if rollbackErr != nil {
			// §7: rollback failure during release is propagated to the
			// caller of Close, since the caller's "close" legitimately
			// surfaced an error.
			return wrapRollbackFailure("release", rollbackErr)
		}
		return nil
	}

	var rollbackErr error
	if !ds.cfg.AutoCommit {
		rollbackErr = pc.rollback(context.Background())
	}
	if err := pc.closePhysical(); err != nil {
		ds.log.Warn("closing discarded connection failed", logger.Err(err))
	}
	pc.invalidate()

	if rollbackErr != nil {
		return wrapRollbackFailure("release", rollbackErr)
	}
	return nil
}

// ForceCloseAll drains both lists: rolls back (if non-autocommit),
// closes the physical connection, and invalidates every wrapper,
// swallowing per-connection errors. It recomputes expectedTypeCode so
// that connections minted afterward carry the pool's current identity.
func (ds *DataSource) ForceCloseAll(ctx context.Context) {
	s := ds.state
	s.mu.Lock()
	defer s.mu.Unlock()
	ds.forceCloseAllLocked(ctx)
}

func (ds *DataSource) forceCloseAllLocked(ctx context.Context) {
	s := ds.state

	drain := func(list []*PooledConnection) {
		for _, pc := range list {
			if !ds.cfg.AutoCommit {
				if err := pc.rollback(ctx); err != nil {
					ds.log.Warn("rollback during forceCloseAll failed", logger.Err(err))
				}
			}
			if err := pc.closePhysical(); err != nil {
				ds.log.Warn("close during forceCloseAll failed", logger.Err(err))
			}
			pc.invalidate()
		}
	}

	drain(s.active)
	drain(s.idle)
	s.active = nil
	s.idle = nil

	_, dsn, username := ds.opener.Identity()
	s.expectedTypeCode = connectionTypeCode(dsn, username, "")

	s.cond.Broadcast()
}

// Close permanently shuts the pool down: it drains every connection and
// marks the pool so that future Acquire calls fail fast with
// ErrPoolClosed rather than opening new connections.
func (ds *DataSource) Close(ctx context.Context) {
	s := ds.state
	s.mu.Lock()
	defer s.mu.Unlock()
	ds.closed = true
	ds.forceCloseAllLocked(ctx)
}

// Unwrap recovers the physical connection behind a handle, for
// diagnostic use. It does not check validity: callers are expected to
// use this only for introspection, never to issue queries directly.
func (ds *DataSource) Unwrap(h *Handle) (driverConn interface{}, err error) {
	var out interface{}
	rawErr := h.pc.real.Raw(func(dc interface{}) error {
		out = dc
		return nil
	})
	return out, rawErr
}

// dsn returns the fingerprinting DSN component of the opener's identity.
func (ds *DataSource) dsn() string {
	_, dsn, _ := ds.opener.Identity()
	return dsn
}

// setter helpers -----------------------------------------------------

// SetMaxActive changes the active-connection cap. Per §4.1, any mutation
// of connection-identity configuration — including the active/idle caps
// — forces a drain so that no connection minted under the old caps
// lingers past the change.
func (ds *DataSource) SetMaxActive(ctx context.Context, n int) {
	ds.state.mu.Lock()
	defer ds.state.mu.Unlock()
	ds.cfg.MaxActive = n
	ds.forceCloseAllLocked(ctx)
}

// SetMaxIdle changes the idle-connection cap and forces a drain (§4.1).
func (ds *DataSource) SetMaxIdle(ctx context.Context, n int) {
	ds.state.mu.Lock()
	defer ds.state.mu.Unlock()
	ds.cfg.MaxIdle = n
	ds.forceCloseAllLocked(ctx)
}

// SetMaxCheckoutTime changes the overdue-reclamation threshold and forces
// a drain (§4.1).
func (ds *DataSource) SetMaxCheckoutTime(ctx context.Context, d time.Duration) {
	ds.state.mu.Lock()
	defer ds.state.mu.Unlock()
	ds.cfg.MaxCheckoutTime = d
	ds.forceCloseAllLocked(ctx)
}

// SetTimeToWait changes the per-slice wait bound and forces a drain
// (§4.1).
func (ds *DataSource) SetTimeToWait(ctx context.Context, d time.Duration) {
	ds.state.mu.Lock()
	defer ds.state.mu.Unlock()
	ds.cfg.TimeToWait = d
	ds.forceCloseAllLocked(ctx)
}

// SetPingSettings changes the liveness-probe configuration and forces a
// drain. §4.1 names the ping query, enabled flag, and not-used-for
// threshold among the identity-affecting settings that must call
// forceCloseAll on change, regardless of whether the probe itself is
// part of the connection fingerprint.
func (ds *DataSource) SetPingSettings(ctx context.Context, query string, enabled bool, notUsedFor time.Duration) {
	ds.state.mu.Lock()
	defer ds.state.mu.Unlock()
	ds.cfg.PingQuery = query
	ds.cfg.PingEnabled = enabled
	ds.cfg.PingConnectionsNotUsedFor = notUsedFor
	ds.forceCloseAllLocked(ctx)
}

// SetCredentials reopens the pool under new identity-affecting
// credentials. Per §4.1, any identity-affecting mutation forces
// ForceCloseAll so that callers acquiring afterward only ever see
// freshly-minted connections carrying the new fingerprint.
func (ds *DataSource) SetCredentials(ctx context.Context, opener factory.Opener) {
	ds.state.mu.Lock()
	defer ds.state.mu.Unlock()
	ds.opener = opener
	ds.forceCloseAllLocked(ctx)
}
