// Package commands implements poolctl's cobra command tree.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catherinevee/connpool/internal/factory"
	"github.com/catherinevee/connpool/internal/pool"
	"github.com/catherinevee/connpool/internal/shared/config"
	"github.com/catherinevee/connpool/internal/shared/logger"
)

var configFile string

// Root builds poolctl's top-level command.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "poolctl",
		Short: "Run and inspect connpool connection pools",
		Long:  `poolctl loads a pool configuration file and serves, benchmarks, or reports statistics for the pools it describes.`,
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "poolctl.yaml", "Path to the pool configuration file")

	root.AddCommand(serveCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(benchCmd())

	return root
}

// loadManager loads the configuration file at configFile and initializes
// the shared logger from its logging settings.
func loadManager() (*config.Manager, error) {
	mgr, err := config.NewManager(configFile)
	if err != nil {
		return nil, err
	}
	cfg := mgr.Get()
	logger.Initialize(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	return mgr, nil
}

// openDataSources builds one pool.DataSource per entry in cfg.Pools.
func openDataSources(cfg *config.Config) (map[string]*pool.DataSource, error) {
	sources := make(map[string]*pool.DataSource, len(cfg.Pools))
	for _, p := range cfg.Pools {
		opener, err := factory.NewSQLOpener(p.Driver, p.DSN, p.Username)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", p.Name, err)
		}
		pcfg := pool.Config{
			MaxActive:                 p.MaxActive,
			MaxIdle:                   p.MaxIdle,
			MaxCheckoutTime:           p.MaxCheckoutTime,
			TimeToWait:                p.TimeToWait,
			MaxLocalBadConnTolerance:  p.MaxLocalBadConnTolerance,
			PingQuery:                 p.PingQuery,
			PingEnabled:               p.PingEnabled,
			PingConnectionsNotUsedFor: p.PingConnectionsNotUsedFor,
			AutoCommit:                p.AutoCommit,
		}
		sources[p.Name] = pool.NewDataSource(p.Name, opener, pcfg)
	}
	return sources, nil
}
