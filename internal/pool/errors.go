package pool

import (
	stderrors "errors"

	sharederrors "github.com/catherinevee/connpool/internal/shared/errors"
)

// Sentinel errors callers can compare against with errors.Is.
var (
	// ErrPoolExhausted is returned from Acquire when the local
	// bad-connection retry budget is exceeded, or a nil candidate
	// defensively escapes the selection loop.
	ErrPoolExhausted = stderrors.New("connpool: no good connection available, pool exhausted")

	// ErrConnectionInvalid is returned when an operation is dispatched
	// through a Handle whose PooledConnection has been invalidated.
	ErrConnectionInvalid = stderrors.New("connpool: connection is no longer valid")

	// ErrPoolClosed is returned from Acquire after Close has permanently
	// shut the pool down. ForceCloseAll alone only drains the pool.
	ErrPoolClosed = stderrors.New("connpool: pool is closed")
)

// wrapFactoryFailure converts a raw error from factory.Opener.Open into a
// structured PoolError, counted as a bad candidate by the caller.
func wrapFactoryFailure(resource string, cause error) *sharederrors.PoolError {
	return sharederrors.Wrap(sharederrors.KindFactory, sharederrors.SeverityMedium,
		"unpooled factory failed to open a physical connection", cause).
		WithDetail("resource", resource)
}

// wrapRollbackFailure converts a rollback error encountered while
// releasing or reclaiming a connection.
func wrapRollbackFailure(op string, cause error) *sharederrors.PoolError {
	return sharederrors.Wrap(sharederrors.KindRollback, sharederrors.SeverityLow,
		"rollback failed", cause).WithDetail("operation", op)
}
