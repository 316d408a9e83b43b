package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override, e.g. SPELLBOOK_STORE_BACKEND.
const EnvPrefix = "SPELLBOOK"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
// homeDir is searched for config.yaml when cfgFile is empty.
func NewManager(cfgFile, homeDir string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile, homeDir); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile, homeDir string) error {
	v := cm.v
	for _, s := range defaultSettings() {
		v.SetDefault(s.key, s.value)
	}

	// Environment variables with SPELLBOOK_ prefix; nested keys use underscores.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if homeDir != "" {
			v.AddConfigPath(homeDir)
		} else {
			v.AddConfigPath("$HOME/.spellbook")
		}
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Handoff.PromptPath = ResolveEnvVars(cfg.Handoff.PromptPath)
	cfg.Store.Path = ResolveEnvVars(cfg.Store.Path)
	cfg.Seed.Path = ResolveEnvVars(cfg.Seed.Path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFileUsed returns the config file that was read, or "" when running on
// defaults and environment only.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. An edit that fails to
// parse or validate keeps the previous configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			slog.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string. ${ENV_VAR:-fallback}
// uses fallback when the variable is unset or empty.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		name, fallback, _ := strings.Cut(match[2:len(match)-1], ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		return fallback
	})
}

// ParseLevel converts a log_level value to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

type setting struct {
	key   string
	value any
}

// defaultSettings flattens DefaultConfig into dotted viper keys, in the order
// they are written by WriteDefault. Durations are kept as strings.
func defaultSettings() []setting {
	d := DefaultConfig()
	return []setting{
		{"server.host", d.Server.Host},
		{"server.port", d.Server.Port},
		{"store.backend", d.Store.Backend},
		{"store.path", d.Store.Path},
		{"defra.container_name", d.Defra.ContainerName},
		{"defra.image", d.Defra.Image},
		{"defra.port", d.Defra.Port},
		{"defra.ready_timeout", d.Defra.ReadyTimeout.String()},
		{"seed.path", d.Seed.Path},
		{"seed.url", d.Seed.URL},
		{"seed.retries", d.Seed.Retries},
		{"seed.timeout", d.Seed.Timeout.String()},
		{"handoff.app_url", d.Handoff.AppURL},
		{"handoff.store_url", d.Handoff.StoreURL},
		{"handoff.prompt_path", d.Handoff.PromptPath},
		{"handoff.timeout", d.Handoff.Timeout.String()},
		{"cache.tag_cache_size", d.Cache.TagCacheSize},
		{"cache.tag_cache_ttl", d.Cache.TagCacheTTL.String()},
		{"session.idle_timeout", d.Session.IdleTimeout.String()},
		{"log_level", d.LogLevel},
	}
}

// nest turns dotted settings into ordered YAML sections.
func nest(settings []setting) yaml.MapSlice {
	var out yaml.MapSlice
	for _, s := range settings {
		section, key, ok := strings.Cut(s.key, ".")
		if !ok {
			out = append(out, yaml.MapItem{Key: s.key, Value: s.value})
			continue
		}
		idx := slices.IndexFunc(out, func(item yaml.MapItem) bool { return item.Key == section })
		if idx < 0 {
			out = append(out, yaml.MapItem{Key: section, Value: yaml.MapSlice{}})
			idx = len(out) - 1
		}
		out[idx].Value = append(out[idx].Value.(yaml.MapSlice), yaml.MapItem{Key: key, Value: s.value})
	}
	return out
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(nest(defaultSettings()))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Spellbook configuration
# Every key can be overridden from the environment, e.g. SPELLBOOK_STORE_BACKEND=sqlite
# store.backend: memory, file, sqlite or defra
# Paths use ${ENV_VAR} or ${ENV_VAR:-fallback} syntax to reference environment variables

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
