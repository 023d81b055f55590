package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_Load(t *testing.T) {
	t.Parallel()

	t.Run("load with empty path uses default", func(t *testing.T) {
		t.Parallel()

		store := NewLocalStore("")

		tempConfig := t.TempDir() + "/config.yaml"
		original := getConfigPath
		getConfigPath = func() (string, error) { return tempConfig, nil }
		defer func() { getConfigPath = original }()

		cfg, err := store.Load(context.Background())
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "", cfg.APIKey)
		assert.False(t, cfg.RemoteAccess)
		assert.Equal(t, 8081, cfg.Port)
	})

	t.Run("round trip through Save", func(t *testing.T) {
		t.Parallel()

		path := t.TempDir() + "/config.yaml"
		store := NewLocalStore(path)

		want := &Config{RemoteAccess: true, APIKey: "umcp_test", Port: 9090, VerboseLogging: true}
		require.NoError(t, store.Save(context.Background(), want))

		got, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestNewConfigStoreWithDetector(t *testing.T) {
	t.Parallel()

	store, err := NewConfigStoreWithDetector("", nil)
	require.NoError(t, err)

	_, ok := store.(*LocalStore)
	assert.True(t, ok, "expected LocalStore")
}

func TestNewConfigStore(t *testing.T) {
	t.Parallel()

	store, err := NewConfigStore()
	require.NoError(t, err)

	_, ok := store.(*LocalStore)
	assert.True(t, ok, "expected LocalStore")
}
