package pool

import (
	"sync"
	"time"
)

// state is the aggregated mutable state of a DataSource: the idle and
// active lists, the monotonic counters, and the single monitor (mutex +
// condition variable) that serializes every pool operation. No
// individual connection is locked independently — the monitor protects
// the idle list, the active list, the counters, and expectedTypeCode as
// one atomic unit, per §5.
type state struct {
	mu   sync.Mutex
	cond *sync.Cond

	idle   []*PooledConnection // head-first; removal from index 0
	active []*PooledConnection // checkout-time order, oldest at index 0

	expectedTypeCode uint32

	// Counters. Monotonic non-decreasing for the lifetime of the pool.
	requestCount                                int64
	accumulatedRequestTime                      time.Duration
	accumulatedCheckoutTime                     time.Duration
	claimedOverdueConnectionCount               int64
	accumulatedCheckoutTimeOfOverdueConnections time.Duration
	hadToWaitCount                               int64
	accumulatedWaitTime                          time.Duration
	badConnectionCount                           int64
}

func newState(expectedTypeCode uint32) *state {
	s := &state{expectedTypeCode: expectedTypeCode}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// popIdle removes and returns the head of the idle list, or nil.
func (s *state) popIdle() *PooledConnection {
	if len(s.idle) == 0 {
		return nil
	}
	pc := s.idle[0]
	s.idle = s.idle[1:]
	return pc
}

// pushIdle appends to the tail of the idle list.
func (s *state) pushIdle(pc *PooledConnection) {
	s.idle = append(s.idle, pc)
}

// pushActive appends to the tail of the active list, preserving
// checkout-time FIFO order (oldest at index 0).
func (s *state) pushActive(pc *PooledConnection) {
	s.active = append(s.active, pc)
}

// removeActive removes pc from the active list; a no-op if absent, per
// §4.2 step 1's "defensive" removal.
func (s *state) removeActive(pc *PooledConnection) bool {
	for i, a := range s.active {
		if a == pc {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return true
		}
	}
	return false
}

// oldestActive returns the longest-checked-out active connection, or nil.
func (s *state) oldestActive() *PooledConnection {
	if len(s.active) == 0 {
		return nil
	}
	return s.active[0]
}

// Stats is a point-in-time, read-only snapshot of the pool's counters,
// exposed via DataSource.Stats for observability.
type Stats struct {
	ActiveConnections                           int
	IdleConnections                             int
	RequestCount                                int64
	AccumulatedRequestTime                      time.Duration
	AccumulatedCheckoutTime                     time.Duration
	ClaimedOverdueConnectionCount               int64
	AccumulatedCheckoutTimeOfOverdueConnections time.Duration
	HadToWaitCount                              int64
	AccumulatedWaitTime                         time.Duration
	BadConnectionCount                          int64
}

func (s *state) snapshot() Stats {
	return Stats{
		ActiveConnections:              len(s.active),
		IdleConnections:                len(s.idle),
		RequestCount:                   s.requestCount,
		AccumulatedRequestTime:         s.accumulatedRequestTime,
		AccumulatedCheckoutTime:        s.accumulatedCheckoutTime,
		ClaimedOverdueConnectionCount:  s.claimedOverdueConnectionCount,
		AccumulatedCheckoutTimeOfOverdueConnections: s.accumulatedCheckoutTimeOfOverdueConnections,
		HadToWaitCount:                 s.hadToWaitCount,
		AccumulatedWaitTime:            s.accumulatedWaitTime,
		BadConnectionCount:             s.badConnectionCount,
	}
}
