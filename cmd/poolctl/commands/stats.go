package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print a one-shot snapshot of every configured pool's counters",
		RunE:  runStats,
	}
}

func runStats(cmd *cobra.Command, args []string) error {
	mgr, err := loadManager()
	if err != nil {
		return err
	}
	cfg := mgr.Get()

	sources, err := openDataSources(cfg)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, ds := range sources {
			ds.Close(ctx)
		}
	}()

	for _, p := range cfg.Pools {
		ds := sources[p.Name]
		s := ds.Stats()
		fmt.Printf("pool=%s active=%d idle=%d requests=%d had_to_wait=%d bad_connections=%d claimed_overdue=%d\n",
			p.Name, s.ActiveConnections, s.IdleConnections, s.RequestCount,
			s.HadToWaitCount, s.BadConnectionCount, s.ClaimedOverdueConnectionCount)
	}
	return nil
}
