package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolError_Error(t *testing.T) {
	e := New(KindExhausted, SeverityHigh, "pool exhausted")
	assert.Contains(t, e.Error(), "[exhausted]")
	assert.Contains(t, e.Error(), "pool exhausted")

	e = e.WithDetail("resource_dummy", "x")
	e.Resource = "primary-db"
	assert.Contains(t, e.Error(), "(resource: primary-db)")
}

func TestPoolError_Wrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	e := Wrap(KindFactory, SeverityMedium, "failed to open connection", cause)

	require.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "connection refused")
}

func TestPoolError_IsMatchesByKind(t *testing.T) {
	a := New(KindRollback, SeverityLow, "rollback failed")
	b := New(KindRollback, SeverityCritical, "a different rollback failure")
	c := New(KindConfig, SeverityLow, "bad config")

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestPoolError_WithDetail(t *testing.T) {
	e := New(KindInvalid, SeverityLow, "invalid handle")
	e.WithDetail("pool", "primary").WithDetail("attempt", 3)

	assert.Equal(t, "primary", e.Details["pool"])
	assert.Equal(t, 3, e.Details["attempt"])
}
