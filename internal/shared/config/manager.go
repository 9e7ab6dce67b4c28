// Package config loads poolctl's YAML configuration and watches it for
// changes, in the style of the platform's hot-reloading config manager.
// This is CLI-only ambient configuration: internal/pool.Config remains a
// plain Go struct with no file-parsing concern of its own.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// DataSourceConfig is one pool's settings as loaded from YAML.
type DataSourceConfig struct {
	Name                      string        `yaml:"name"`
	Driver                    string        `yaml:"driver"`
	DSN                       string        `yaml:"dsn"`
	Username                  string        `yaml:"username,omitempty"`
	MaxActive                 int           `yaml:"max_active"`
	MaxIdle                   int           `yaml:"max_idle"`
	MaxCheckoutTime           time.Duration `yaml:"max_checkout_time"`
	TimeToWait                time.Duration `yaml:"time_to_wait"`
	MaxLocalBadConnTolerance  int           `yaml:"max_local_bad_conn_tolerance"`
	PingQuery                 string        `yaml:"ping_query,omitempty"`
	PingEnabled               bool          `yaml:"ping_enabled"`
	PingConnectionsNotUsedFor time.Duration `yaml:"ping_connections_not_used_for"`
	AutoCommit                bool          `yaml:"auto_commit"`
}

// Config is the top-level poolctl configuration file.
type Config struct {
	Pools   []DataSourceConfig `yaml:"pools"`
	Logging LoggingConfig      `yaml:"logging"`
	Metrics MetricsConfig      `yaml:"metrics"`
}

// LoggingConfig controls the shared zerolog sink.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus HTTP exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Manager owns a loaded Config and optionally watches its source file for
// changes, invoking registered callbacks on reload.
type Manager struct {
	config     *Config
	configPath string
	mu         sync.RWMutex
	watcher    *fsnotify.Watcher
	callbacks  []func(*Config)
	stopCh     chan struct{}
}

// NewManager loads configPath and starts watching its directory for hot
// reload of that file, whether or not the file exists yet. A missing file
// is not an error: defaults are used. If the watcher cannot be set up,
// the manager is returned without hot reload.
func NewManager(configPath string) (*Manager, error) {
	configPath = expandPath(configPath)

	m := &Manager{
		configPath: configPath,
		stopCh:     make(chan struct{}),
	}

	if err := m.Load(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return m, nil
	}
	m.watcher = watcher

	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		m.watcher = nil
		return m, nil
	}

	go m.watchChanges()
	return m, nil
}

// Load reads and validates the configuration file, falling back to
// defaults if it does not exist.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.configPath); os.IsNotExist(err) {
		m.config = defaultConfig()
	} else {
		data, err := os.ReadFile(m.configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		m.config = &cfg
	}

	applyDefaults(m.config)
	return validate(m.config)
}

// Get returns the currently loaded configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnChange registers a callback invoked with the new configuration after
// each successful reload.
func (m *Manager) OnChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// Stop stops the file watcher, if one is running.
func (m *Manager) Stop() {
	close(m.stopCh)
	if m.watcher != nil {
		m.watcher.Close()
	}
}

func (m *Manager) watchChanges() {
	if m.watcher == nil {
		return
	}
	defer m.watcher.Close()

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(m.configPath) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := m.Load(); err != nil {
				continue
			}
			m.mu.RLock()
			cfg := m.config
			callbacks := append([]func(*Config){}, m.callbacks...)
			m.mu.RUnlock()
			for _, cb := range callbacks {
				cb(cfg)
			}
		case _, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
		case <-m.stopCh:
			return
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Metrics: MetricsConfig{Enabled: true, Addr: ":9090"},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	for i := range cfg.Pools {
		p := &cfg.Pools[i]
		if p.MaxActive == 0 {
			p.MaxActive = 10
		}
		if p.MaxIdle == 0 {
			p.MaxIdle = 5
		}
		if p.MaxCheckoutTime == 0 {
			p.MaxCheckoutTime = 20 * time.Second
		}
		if p.TimeToWait == 0 {
			p.TimeToWait = 20 * time.Second
		}
		if p.MaxLocalBadConnTolerance == 0 {
			p.MaxLocalBadConnTolerance = 3
		}
		if p.PingQuery == "" {
			p.PingQuery = "NO PING QUERY SET"
		}
	}
}

func validate(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Pools))
	for _, p := range cfg.Pools {
		if p.Name == "" {
			return fmt.Errorf("pool entry missing name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate pool name: %s", p.Name)
		}
		seen[p.Name] = true
		if p.Driver == "" {
			return fmt.Errorf("pool %s: driver is required", p.Name)
		}
		if p.DSN == "" {
			return fmt.Errorf("pool %s: dsn is required", p.Name)
		}
		if p.MaxIdle > p.MaxActive {
			return fmt.Errorf("pool %s: max_idle (%d) exceeds max_active (%d)", p.Name, p.MaxIdle, p.MaxActive)
		}
	}
	return nil
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
