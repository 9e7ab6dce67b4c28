package pool_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/connpool/internal/pool"
	"github.com/catherinevee/connpool/internal/testsupport"
)

func newDS(t *testing.T, dsn string, cfg pool.Config) *pool.DataSource {
	t.Helper()
	opener, err := testsupport.NewFakeOpener(dsn, "")
	require.NoError(t, err)
	return pool.NewDataSource(t.Name(), opener, cfg)
}

func uniqueDSN(t *testing.T) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
}

// Scenario 1: simple reuse.
func TestAcquire_SimpleReuse(t *testing.T) {
	dsn := uniqueDSN(t)
	testsupport.Register(dsn, &testsupport.Behavior{})

	cfg := pool.DefaultConfig()
	cfg.MaxActive = 2
	cfg.MaxIdle = 2
	ds := newDS(t, dsn, cfg)

	ctx := context.Background()

	a, err := ds.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	b, err := ds.Acquire(ctx)
	require.NoError(t, err)

	stats := ds.Stats()
	assert.Equal(t, int64(2), stats.RequestCount)
	assert.Equal(t, 0, stats.IdleConnections)
	assert.Equal(t, 1, stats.ActiveConnections)
	require.NoError(t, b.Close())
}

// Scenario 2: saturation + wait + release.
func TestAcquire_SaturationWaitRelease(t *testing.T) {
	dsn := uniqueDSN(t)
	testsupport.Register(dsn, &testsupport.Behavior{})

	cfg := pool.DefaultConfig()
	cfg.MaxActive = 1
	cfg.TimeToWait = 200 * time.Millisecond
	cfg.MaxCheckoutTime = time.Hour
	ds := newDS(t, dsn, cfg)

	ctx := context.Background()

	t1, err := ds.Acquire(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(100 * time.Millisecond)
		_ = t1.Close()
	}()

	time.Sleep(10 * time.Millisecond)
	start := time.Now()
	t2, err := ds.Acquire(ctx)
	elapsed := time.Since(start)
	require.NoError(t, err)
	defer t2.Close()

	wg.Wait()

	stats := ds.Stats()
	assert.GreaterOrEqual(t, stats.HadToWaitCount, int64(1))
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
}

// Scenario 3: overdue reclamation.
func TestAcquire_OverdueReclamation(t *testing.T) {
	dsn := uniqueDSN(t)
	testsupport.Register(dsn, &testsupport.Behavior{})

	cfg := pool.DefaultConfig()
	cfg.MaxActive = 1
	cfg.MaxCheckoutTime = 50 * time.Millisecond
	cfg.TimeToWait = 50 * time.Millisecond
	ds := newDS(t, dsn, cfg)

	ctx := context.Background()

	t1, err := ds.Acquire(ctx)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	t2, err := ds.Acquire(ctx)
	require.NoError(t, err)
	defer t2.Close()

	stats := ds.Stats()
	assert.Equal(t, int64(1), stats.ClaimedOverdueConnectionCount)
	assert.False(t, t1.Valid())

	_, err = t1.ExecContext(ctx, "SELECT 1")
	assert.ErrorIs(t, err, pool.ErrConnectionInvalid)
}

// Scenario 4: idle overflow discards.
func TestAcquire_IdleOverflowDiscards(t *testing.T) {
	dsn := uniqueDSN(t)
	behavior := &testsupport.Behavior{}
	testsupport.Register(dsn, behavior)

	cfg := pool.DefaultConfig()
	cfg.MaxIdle = 1
	cfg.MaxActive = 3
	ds := newDS(t, dsn, cfg)

	ctx := context.Background()
	a, err := ds.Acquire(ctx)
	require.NoError(t, err)
	b, err := ds.Acquire(ctx)
	require.NoError(t, err)
	c, err := ds.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	require.NoError(t, c.Close())

	stats := ds.Stats()
	assert.Equal(t, 1, stats.IdleConnections)
	assert.Equal(t, int64(2), behavior.Closed())
}

// Scenario 5: fingerprint change drains.
func TestSetCredentials_Drains(t *testing.T) {
	dsn := uniqueDSN(t)
	behavior := &testsupport.Behavior{}
	testsupport.Register(dsn, behavior)

	cfg := pool.DefaultConfig()
	ds := newDS(t, dsn, cfg)

	ctx := context.Background()
	a, err := ds.Acquire(ctx)
	require.NoError(t, err)

	newOpener, err := testsupport.NewFakeOpener(dsn, "rotated-user")
	require.NoError(t, err)
	ds.SetCredentials(ctx, newOpener)

	assert.False(t, a.Valid())

	b, err := ds.Acquire(ctx)
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.PhysicalID(), b.PhysicalID())
}

// SetMaxIdle is identity-affecting configuration per §4.1 and must force
// a drain, same as SetCredentials.
func TestSetMaxIdle_Drains(t *testing.T) {
	dsn := uniqueDSN(t)
	behavior := &testsupport.Behavior{}
	testsupport.Register(dsn, behavior)

	cfg := pool.DefaultConfig()
	ds := newDS(t, dsn, cfg)

	ctx := context.Background()
	a, err := ds.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	stats := ds.Stats()
	require.Equal(t, 1, stats.IdleConnections)

	ds.SetMaxIdle(ctx, 2)

	stats = ds.Stats()
	assert.Equal(t, 0, stats.IdleConnections)
	assert.Equal(t, 0, stats.ActiveConnections)
	assert.Equal(t, int64(1), behavior.Closed())

	b, err := ds.Acquire(ctx)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, int64(2), behavior.Opened())
}

// Scenario 6: bad-candidate budget.
func TestAcquire_BadConnectionBudget(t *testing.T) {
	dsn := uniqueDSN(t)
	testsupport.Register(dsn, &testsupport.Behavior{ExecErr: errors.New("connection already closed")})

	cfg := pool.DefaultConfig()
	cfg.MaxIdle = 0
	cfg.MaxActive = 10
	cfg.MaxLocalBadConnTolerance = 3
	cfg.PingEnabled = true
	cfg.PingConnectionsNotUsedFor = 0
	ds := newDS(t, dsn, cfg)

	_, err := ds.Acquire(context.Background())
	require.ErrorIs(t, err, pool.ErrPoolExhausted)

	stats := ds.Stats()
	assert.Equal(t, int64(4), stats.BadConnectionCount)
}

// Invariant: active+idle never exceeds MaxActive+MaxIdle, and neither
// list exceeds its own cap once the workers are done.
func TestAcquire_ConcurrentInvariant(t *testing.T) {
	dsn := uniqueDSN(t)
	testsupport.Register(dsn, &testsupport.Behavior{})

	cfg := pool.DefaultConfig()
	cfg.MaxActive = 4
	cfg.MaxIdle = 4
	cfg.TimeToWait = 50 * time.Millisecond
	ds := newDS(t, dsn, cfg)

	ctx := context.Background()
	var wg sync.WaitGroup
	var maxObserved int64

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := ds.Acquire(ctx)
			if err != nil {
				return
			}
			stats := ds.Stats()
			total := int64(stats.ActiveConnections + stats.IdleConnections)
			for {
				old := atomic.LoadInt64(&maxObserved)
				if total <= old || atomic.CompareAndSwapInt64(&maxObserved, old, total) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			_ = h.Close()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxObserved, int64(cfg.MaxActive+cfg.MaxIdle))
	stats := ds.Stats()
	assert.LessOrEqual(t, stats.ActiveConnections, cfg.MaxActive)
	assert.LessOrEqual(t, stats.IdleConnections, cfg.MaxIdle)
}

func TestForceCloseAll_ResetsPool(t *testing.T) {
	dsn := uniqueDSN(t)
	behavior := &testsupport.Behavior{}
	testsupport.Register(dsn, behavior)

	cfg := pool.DefaultConfig()
	ds := newDS(t, dsn, cfg)
	ctx := context.Background()

	a, err := ds.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	ds.ForceCloseAll(ctx)

	stats := ds.Stats()
	assert.Equal(t, 0, stats.ActiveConnections)
	assert.Equal(t, 0, stats.IdleConnections)

	b, err := ds.Acquire(ctx)
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, int64(2), behavior.Opened())
}
