package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 4, cfg.Game.MinPlayers)
	assert.False(t, cfg.Game.AllowDuplicateNames)
	assert.Equal(t, 2*time.Hour, cfg.Rooms.IdleTimeout)

	d := cfg.Game.Distribution()
	mafia, police, civilian, err := d.Counts(7)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 5}, []int{mafia, police, civilian})
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  http_address: ":9999"
database:
  driver: gorm
game:
  min_players: 6
rooms:
  idle_timeout: 30m
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))
	t.Setenv("MAFIA_GAME_ALLOW_DUPLICATE_NAMES", "true")
	t.Setenv("MAFIA_SERVER_HTTP_ADDRESS", ":7000")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.HTTPAddress, "environment overrides the file")
	assert.Equal(t, DriverGorm, cfg.Database.Driver)
	assert.Equal(t, 6, cfg.Game.MinPlayers)
	assert.True(t, cfg.Game.AllowDuplicateNames)
	assert.Equal(t, 30*time.Minute, cfg.Rooms.IdleTimeout)
	assert.Equal(t, time.Minute, cfg.Rooms.ReapInterval)
}

func TestLoadConfig_RejectsExtraRoles(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("game:\n  max_mafia: 3\n  max_police: 3\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_mafia=3")

	t.Setenv("MAFIA_GAME_MAX_POLICE", "2")
	_, err = LoadConfig(t.TempDir())
	assert.Error(t, err, "the environment is checked too")
}

func TestLoadConfig_BrokenFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o644))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}
