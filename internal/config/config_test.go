package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultHasOneSecondTick(t *testing.T) {
	cfg := Default()
	require.Equal(t, time.Second, cfg.TickIntervalDuration())
}

func TestLoadWithEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default().ServerAddress, cfg.ServerAddress)
}

func TestLoadOverridesOnlyPresentFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_address": ":9090", "tick_interval": "2s"}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ServerAddress)
	require.Equal(t, 2*time.Second, cfg.TickIntervalDuration())
	require.Equal(t, Default().DatabasePath, cfg.DatabasePath)
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tick_interval": "not-a-duration"}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
