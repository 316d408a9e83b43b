package config

import (
	"fmt"
	"time"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendDefra  = "defra"
)

// Config holds spellbook configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server   ServerConfig  `mapstructure:"server" yaml:"server"`
	Store    StoreConfig   `mapstructure:"store" yaml:"store"`
	Defra    DefraConfig   `mapstructure:"defra" yaml:"defra"`
	Seed     SeedConfig    `mapstructure:"seed" yaml:"seed"`
	Handoff  HandoffConfig `mapstructure:"handoff" yaml:"handoff"`
	Cache    CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Session  SessionConfig `mapstructure:"session" yaml:"session"`
	LogLevel string        `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error
}

// ServerConfig is the HTTP listen address.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	// Backend is one of memory, file, sqlite or defra.
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Path is the store directory (file) or database file (sqlite).
	// Empty means a location under the home directory.
	Path string `mapstructure:"path" yaml:"path"`
}

// DefraConfig holds DefraDB container configuration.
type DefraConfig struct {
	// ContainerName is the Docker container name. Empty derives one from the
	// home directory.
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: sourcenetwork/defradb:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 9181)
	Port string `mapstructure:"port" yaml:"port"`
	// ReadyTimeout bounds the wait for the DefraDB API after a start.
	ReadyTimeout time.Duration `mapstructure:"ready_timeout" yaml:"ready_timeout"`
}

// SeedConfig says where first-run data comes from. URL wins over Path; with
// neither set, init.json in the data directory is used if present and the
// built-in seed otherwise.
type SeedConfig struct {
	Path    string        `mapstructure:"path" yaml:"path"`
	URL     string        `mapstructure:"url" yaml:"url"`
	Retries uint          `mapstructure:"retries" yaml:"retries"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// HandoffConfig points at the external image app.
type HandoffConfig struct {
	AppURL     string        `mapstructure:"app_url" yaml:"app_url"`
	StoreURL   string        `mapstructure:"store_url" yaml:"store_url"`
	PromptPath string        `mapstructure:"prompt_path" yaml:"prompt_path"` // supports ${ENV_VAR} syntax
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CacheConfig sizes the tag lookup cache.
type CacheConfig struct {
	TagCacheSize int           `mapstructure:"tag_cache_size" yaml:"tag_cache_size"`
	TagCacheTTL  time.Duration `mapstructure:"tag_cache_ttl" yaml:"tag_cache_ttl"`
}

// SessionConfig controls composer session lifetime.
type SessionConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Store: StoreConfig{
			Backend: BackendFile,
		},
		Defra: DefraConfig{
			Image:        "sourcenetwork/defradb:latest",
			Port:         "9181",
			ReadyTimeout: 30 * time.Second,
		},
		Seed: SeedConfig{
			Retries: 3,
			Timeout: 30 * time.Second,
		},
		Handoff: HandoffConfig{
			AppURL:     "https://catimg.kagee.heiyu.space/",
			StoreURL:   "lzc://appstore?path=detail/cloud.lazycat.aipod.catimg",
			PromptPath: "/lzcapp/run/mnt/home/${LAZYCAT_APP_DEPLOY_UID:-default}/.catimg_prompt.json",
			Timeout:    5 * time.Second,
		},
		Cache: CacheConfig{
			TagCacheSize: 256,
			TagCacheTTL:  time.Minute,
		},
		Session: SessionConfig{
			IdleTimeout: 24 * time.Hour,
		},
		LogLevel: "info",
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendSQLite, BackendDefra:
	default:
		return fmt.Errorf("unknown store backend %q (want memory, file, sqlite or defra)", c.Store.Backend)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
