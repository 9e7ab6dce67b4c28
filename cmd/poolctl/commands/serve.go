package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/catherinevee/connpool/internal/pool"
	"github.com/catherinevee/connpool/internal/shared/logger"
	"github.com/catherinevee/connpool/internal/shared/metrics"
)

var serveFlags struct {
	pollInterval time.Duration
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Open every configured pool and expose /metrics until interrupted",
		RunE:  runServe,
	}
	cmd.Flags().DurationVar(&serveFlags.pollInterval, "poll-interval", 5*time.Second, "How often to sample pool stats into metrics")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	mgr, err := loadManager()
	if err != nil {
		return err
	}
	cfg := mgr.Get()
	log := logger.New("poolctl.serve")

	sources, err := openDataSources(cfg)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for name, ds := range sources {
			log.Info("closing pool", logger.String("pool", name))
			ds.Close(ctx)
		}
	}()

	var pollers []func()
	if cfg.Metrics.Enabled {
		reg := prometheus.DefaultRegisterer
		for name, ds := range sources {
			pm := metrics.NewPoolMetrics(reg, name)
			pollers = append(pollers, newPoller(ds, pm))
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}

		go func() {
			log.Info("metrics server listening", logger.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", logger.Err(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	stop := make(chan struct{})
	ticker := time.NewTicker(serveFlags.pollInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				for _, poll := range pollers {
					poll()
				}
			case <-stop:
				return
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	close(stop)
	log.Info("shutting down")
	return nil
}

// newPoller returns a closure that samples ds.Stats and feeds the deltas
// since its previous call into pm.Observe.
func newPoller(ds *pool.DataSource, pm *metrics.PoolMetrics) func() {
	var prev pool.Stats
	return func() {
		cur := ds.Stats()
		snap := metrics.Snapshot{
			Active:                 cur.ActiveConnections,
			Idle:                   cur.IdleConnections,
			RequestCount:           cur.RequestCount,
			HadToWaitCount:         cur.HadToWaitCount,
			AccumulatedWaitTimeSec: cur.AccumulatedWaitTime.Seconds(),
			BadConnectionCount:     cur.BadConnectionCount,
			ClaimedOverdueCount:    cur.ClaimedOverdueConnectionCount,
			AccumulatedCheckoutSec: cur.AccumulatedCheckoutTime.Seconds(),
		}
		pm.Observe(snap,
			cur.RequestCount-prev.RequestCount,
			cur.HadToWaitCount-prev.HadToWaitCount,
			cur.AccumulatedWaitTime.Seconds()-prev.AccumulatedWaitTime.Seconds(),
			cur.BadConnectionCount-prev.BadConnectionCount,
			cur.ClaimedOverdueConnectionCount-prev.ClaimedOverdueConnectionCount,
			cur.AccumulatedCheckoutTime.Seconds()-prev.AccumulatedCheckoutTime.Seconds(),
		)
		prev = cur
	}
}
