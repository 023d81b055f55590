// Package config persists the host-managed preferences: remote-access
// toggle, API key, port, and verbose-logging toggle. Discovery of the
// config path is overridable via a package-level function variable so
// tests can redirect it to a temp directory without touching the real
// per-user config directory.
package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/mcphost/bridge/pkg/instance"
)

// Config is the full persisted preference set.
type Config struct {
	RemoteAccess   bool   `mapstructure:"remote_access"`
	APIKey         string `mapstructure:"api_key"`
	Port           int    `mapstructure:"port"`
	VerboseLogging bool   `mapstructure:"verbose_logging"`
}

func defaultConfig() *Config {
	return &Config{Port: instance.DefaultPort}
}

// Store is the persistence contract; LocalStore is the only implementation
// this bridge needs (see NewConfigStoreWithDetector).
type Store interface {
	Load(ctx context.Context) (*Config, error)
	Save(ctx context.Context, cfg *Config) error
}

// getConfigPath resolves the default config file location. It is a
// package var, not a plain function, so tests can redirect it to a
// temporary directory.
var getConfigPath = func() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mcphost-bridge", "config.yaml"), nil
}

// LocalStore persists Config as YAML on the local filesystem via viper.
type LocalStore struct {
	mu   sync.Mutex
	path string // explicit override; empty means "ask getConfigPath"
}

// NewLocalStore constructs a LocalStore rooted at path. An empty path
// defers to getConfigPath at Load/Save time.
func NewLocalStore(path string) *LocalStore {
	return &LocalStore{path: path}
}

func (s *LocalStore) resolvePath() (string, error) {
	if s.path != "" {
		return s.path, nil
	}
	return getConfigPath()
}

// Load reads the config file, returning a default Config (not an error) if
// the file does not yet exist.
func (s *LocalStore) Load(_ context.Context) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.resolvePath()
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if _, statErr := os.Stat(path); statErr != nil {
		if os.IsNotExist(statErr) {
			return cfg, nil
		}
		return nil, statErr
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to the config file, creating its parent directory if
// needed.
func (s *LocalStore) Save(_ context.Context, cfg *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.resolvePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("remote_access", cfg.RemoteAccess)
	v.Set("api_key", cfg.APIKey)
	v.Set("port", cfg.Port)
	v.Set("verbose_logging", cfg.VerboseLogging)
	return v.WriteConfigAs(path)
}

// NewConfigStoreWithDetector always returns a LocalStore. This bridge
// never runs as a cluster workload, so there is no alternate backing
// store to dispatch to; the detector parameter is accepted for call-site
// symmetry and ignored.
func NewConfigStoreWithDetector(path string, _ any) (Store, error) {
	return NewLocalStore(path), nil
}

// NewConfigStore constructs the default config store.
func NewConfigStore() (Store, error) {
	return NewConfigStoreWithDetector("", nil)
}
