package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cuemby/addonkit/pkg/log"
	"github.com/cuemby/addonkit/pkg/storage"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate for a configuration that cannot be used
var ErrInvalid = errors.New("invalid configuration")

// Environment overrides applied after the file
const (
	EnvLogLevel       = "ADDONKIT_LOG_LEVEL"
	EnvDataDir        = "ADDONKIT_DATA_DIR"
	EnvStorageBackend = "ADDONKIT_STORAGE_BACKEND"
)

// Config is the runtime configuration
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Options OptionsConfig `yaml:"options"`
	Hooks   []HookConfig  `yaml:"hooks"`
}

// LogConfig configures console output and the table sink
type LogConfig struct {
	Level string      `yaml:"level"`
	JSON  bool        `yaml:"json"`
	Table TableConfig `yaml:"table"`
}

// TableConfig configures persisting log lines to storage
type TableConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	MaxRows int    `yaml:"max_rows"`
}

// StorageConfig selects the persistence engine
type StorageConfig struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data_dir"`
}

// OptionsConfig sizes the deferred options store
type OptionsConfig struct {
	QueueMax  int `yaml:"queue_max"`
	CacheMax  int `yaml:"cache_max"`
	AbsentMax int `yaml:"absent_max"`
	BatchSize int `yaml:"batch_size"`
}

// HookConfig declares a hook backed by a built-in action
type HookConfig struct {
	Name    string         `yaml:"name"`
	Channel string         `yaml:"channel"`
	Action  string         `yaml:"action"`
	Once    bool           `yaml:"once"`
	When    string         `yaml:"when"`
	Args    map[string]any `yaml:"args"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: string(log.InfoLevel),
			Table: TableConfig{
				Level:   string(log.WarnLevel),
				MaxRows: 1000,
			},
		},
		Storage: StorageConfig{
			Backend: storage.BackendBolt,
			DataDir: "./addonkit-data",
		},
		Options: OptionsConfig{
			QueueMax:  50,
			CacheMax:  100,
			AbsentMax: 100,
			BatchSize: 25,
		},
	}
}

// Load reads path onto the defaults, applies environment overrides and
// validates the result. An empty path loads the defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.Storage.DataDir = v
	}
	if v, ok := lookup(EnvStorageBackend); ok && v != "" {
		c.Storage.Backend = v
	}
}

// Validate checks every section and reports all problems at once
func (c *Config) Validate() error {
	var problems []string

	if _, ok := log.ParseLevel(c.Log.Level); !ok {
		problems = append(problems, fmt.Sprintf("log.level %q is not a level", c.Log.Level))
	}
	if c.Log.Table.Enabled {
		if _, ok := log.ParseLevel(c.Log.Table.Level); !ok {
			problems = append(problems, fmt.Sprintf("log.table.level %q is not a level", c.Log.Table.Level))
		}
		if c.Log.Table.MaxRows < 0 {
			problems = append(problems, "log.table.max_rows must not be negative")
		}
	}

	switch c.Storage.Backend {
	case storage.BackendBolt, storage.BackendPebble:
	default:
		problems = append(problems, fmt.Sprintf("storage.backend %q must be %s or %s",
			c.Storage.Backend, storage.BackendBolt, storage.BackendPebble))
	}
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		problems = append(problems, "storage.data_dir is required")
	}

	if c.Options.QueueMax < 1 {
		problems = append(problems, "options.queue_max must be at least 1")
	}
	if c.Options.CacheMax < 1 {
		problems = append(problems, "options.cache_max must be at least 1")
	}
	if c.Options.AbsentMax < 1 {
		problems = append(problems, "options.absent_max must be at least 1")
	}
	if c.Options.BatchSize < 1 {
		problems = append(problems, "options.batch_size must be at least 1")
	}

	seen := make(map[string]bool, len(c.Hooks))
	for i, h := range c.Hooks {
		switch {
		case h.Name == "":
			problems = append(problems, fmt.Sprintf("hooks[%d].name is required", i))
		case seen[h.Name]:
			problems = append(problems, fmt.Sprintf("hooks[%d].name %q is duplicated", i, h.Name))
		}
		seen[h.Name] = true
		if h.Channel == "" {
			problems = append(problems, fmt.Sprintf("hooks[%d].channel is required", i))
		}
		if h.Action == "" {
			problems = append(problems, fmt.Sprintf("hooks[%d].action is required", i))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
