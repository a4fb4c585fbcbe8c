package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/addonkit/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "addonkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, storage.BackendBolt, cfg.Storage.Backend)
	assert.Equal(t, 50, cfg.Options.QueueMax)
	assert.Equal(t, 100, cfg.Options.CacheMax)
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Options, cfg.Options)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  table:
    enabled: true
    max_rows: 10
storage:
  backend: pebble
  data_dir: /tmp/addonkit
options:
  queue_max: 5
hooks:
  - name: stamp
    channel: page.view
    action: merge
    when: payload.kind == "article"
    args:
      stamped: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Table.Enabled)
	assert.Equal(t, 10, cfg.Log.Table.MaxRows)
	assert.Equal(t, "warn", cfg.Log.Table.Level)
	assert.Equal(t, storage.BackendPebble, cfg.Storage.Backend)
	assert.Equal(t, 5, cfg.Options.QueueMax)
	assert.Equal(t, 100, cfg.Options.CacheMax)

	require.Len(t, cfg.Hooks, 1)
	assert.Equal(t, "stamp", cfg.Hooks[0].Name)
	assert.Equal(t, `payload.kind == "article"`, cfg.Hooks[0].When)
	assert.Equal(t, map[string]any{"stamped": true}, cfg.Hooks[0].Args)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvDataDir, "/var/lib/addonkit")
	t.Setenv(EnvStorageBackend, "pebble")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "/var/lib/addonkit", cfg.Storage.DataDir)
	assert.Equal(t, storage.BackendPebble, cfg.Storage.Backend)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "log: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  backend: sqlite\n"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "loud" }, want: "log.level"},
		{name: "bad table level", mutate: func(c *Config) {
			c.Log.Table.Enabled = true
			c.Log.Table.Level = "loud"
		}, want: "log.table.level"},
		{name: "no data dir", mutate: func(c *Config) { c.Storage.DataDir = " " }, want: "storage.data_dir"},
		{name: "zero queue", mutate: func(c *Config) { c.Options.QueueMax = 0 }, want: "options.queue_max"},
		{name: "zero batch", mutate: func(c *Config) { c.Options.BatchSize = 0 }, want: "options.batch_size"},
		{name: "hook without name", mutate: func(c *Config) {
			c.Hooks = []HookConfig{{Channel: "c", Action: "log"}}
		}, want: "hooks[0].name"},
		{name: "duplicate hook", mutate: func(c *Config) {
			c.Hooks = []HookConfig{
				{Name: "a", Channel: "c", Action: "log"},
				{Name: "a", Channel: "c", Action: "log"},
			}
		}, want: "duplicated"},
		{name: "hook without action", mutate: func(c *Config) {
			c.Hooks = []HookConfig{{Name: "a", Channel: "c"}}
		}, want: "hooks[0].action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
