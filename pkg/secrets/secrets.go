// Package secrets stores the bearer API key in the OS keyring when one is
// available, falling back to the plain config file (with a warning) on
// platforms or environments where it is not. Headless CI and editor
// automation hosts commonly have no keyring service, so falling back
// beats failing.
package secrets

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"

	"github.com/mcphost/bridge/pkg/config"
	"github.com/mcphost/bridge/pkg/logger"
)

const (
	service   = "mcphost-bridge"
	apiKeyKey = "api-key"
)

// ErrNotFound mirrors keyring.ErrNotFound so callers don't need to import
// go-keyring directly.
var ErrNotFound = keyring.ErrNotFound

// Store saves and retrieves the API key, preferring the OS keyring.
type Store struct {
	fallback config.Store
}

// New constructs a Store; fallback is consulted (and written to) whenever
// the OS keyring is unavailable.
func New(fallback config.Store) *Store {
	return &Store{fallback: fallback}
}

// SetAPIKey stores key in the OS keyring, or in the config file fallback
// if the keyring backend errors (headless CI, missing D-Bus session, etc).
func (s *Store) SetAPIKey(ctx context.Context, key string) error {
	if err := keyring.Set(service, apiKeyKey, key); err != nil {
		logger.Warnf("secrets: OS keyring unavailable (%v); storing API key in the config file instead", err)
		return s.saveFallback(ctx, key)
	}
	return nil
}

// GetAPIKey retrieves the stored key, falling back to the config file.
func (s *Store) GetAPIKey(ctx context.Context) (string, error) {
	key, err := keyring.Get(service, apiKeyKey)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, keyring.ErrNotFound) {
		logger.Warnf("secrets: OS keyring unavailable (%v); reading API key from the config file instead", err)
	}
	return s.loadFallback(ctx)
}

func (s *Store) saveFallback(ctx context.Context, key string) error {
	if s.fallback == nil {
		return errors.New("secrets: no fallback store configured")
	}
	cfg, err := s.fallback.Load(ctx)
	if err != nil {
		return err
	}
	cfg.APIKey = key
	return s.fallback.Save(ctx, cfg)
}

func (s *Store) loadFallback(ctx context.Context) (string, error) {
	if s.fallback == nil {
		return "", ErrNotFound
	}
	cfg, err := s.fallback.Load(ctx)
	if err != nil {
		return "", err
	}
	if cfg.APIKey == "" {
		return "", ErrNotFound
	}
	return cfg.APIKey, nil
}
