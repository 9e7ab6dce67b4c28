package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/catherinevee/connpool/internal/pool"
)

var benchFlags struct {
	pool        string
	concurrency int
	duration    time.Duration
}

func benchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Hammer one configured pool with concurrent acquire/release cycles",
		RunE:  runBench,
	}
	cmd.Flags().StringVar(&benchFlags.pool, "pool", "", "Name of the pool to benchmark (required)")
	cmd.Flags().IntVar(&benchFlags.concurrency, "concurrency", 8, "Number of concurrent worker goroutines")
	cmd.Flags().DurationVar(&benchFlags.duration, "duration", 10*time.Second, "How long to run the benchmark")
	cmd.MarkFlagRequired("pool")
	return cmd
}

func runBench(cmd *cobra.Command, args []string) error {
	mgr, err := loadManager()
	if err != nil {
		return err
	}
	cfg := mgr.Get()

	sources, err := openDataSources(cfg)
	if err != nil {
		return err
	}
	ds, ok := sources[benchFlags.pool]
	if !ok {
		return fmt.Errorf("no pool named %q in %s", benchFlags.pool, configFile)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ds.Close(ctx)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), benchFlags.duration)
	defer cancel()

	var acquired, failed int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < benchFlags.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, ds, &mu, &acquired, &failed)
		}()
	}
	wg.Wait()

	elapsed := benchFlags.duration
	fmt.Printf("pool=%s concurrency=%d duration=%s acquired=%d failed=%d throughput=%.1f/s\n",
		benchFlags.pool, benchFlags.concurrency, elapsed, acquired, failed,
		float64(acquired)/elapsed.Seconds())

	s := ds.Stats()
	fmt.Printf("final stats: active=%d idle=%d had_to_wait=%d bad_connections=%d claimed_overdue=%d\n",
		s.ActiveConnections, s.IdleConnections, s.HadToWaitCount, s.BadConnectionCount, s.ClaimedOverdueConnectionCount)

	return nil
}

func worker(ctx context.Context, ds *pool.DataSource, mu *sync.Mutex, acquired, failed *int64) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		h, err := ds.Acquire(ctx)
		if err != nil {
			mu.Lock()
			*failed++
			mu.Unlock()
			continue
		}

		_, _ = h.ExecContext(ctx, "SELECT 1")
		_ = h.Close()

		mu.Lock()
		*acquired++
		mu.Unlock()
	}
}
