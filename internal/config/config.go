// Package config loads voicelink.yml and applies environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultStatusPort       = 18790
	DefaultDiscoveryService = "_lavalink._tcp"
	DefaultDiscoveryTimeout = 2 * time.Second
)

// Config is the top-level voicelink.yml document.
type Config struct {
	Discord  DiscordConfig `yaml:"discord"`
	Audio    AudioConfig   `yaml:"audio"`
	Status   StatusConfig  `yaml:"status"`
	LogLevel string        `yaml:"log_level"`
	StateDir string        `yaml:"state_dir"`
}

type DiscordConfig struct {
	Token      string `yaml:"token"`
	ClientID   string `yaml:"client_id"`
	GuildID    string `yaml:"guild_id"` // command registration scope, empty = global
	ShardCount int    `yaml:"shard_count"`
}

// AudioConfig controls the remote node pool. With Enabled false or no usable
// nodes the in-process player is used.
type AudioConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Nodes     []NodeEntry     `yaml:"nodes"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// NodeEntry is one configured remote node. Entries with an empty field are
// ignored by the pool.
type NodeEntry struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"` // ws:// or wss:// URI
	Pass string `yaml:"pass"`
}

type DiscoveryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Service  string        `yaml:"service"`
	Password string        `yaml:"password"` // used for every discovered node
	Timeout  time.Duration `yaml:"timeout"`
}

type StatusConfig struct {
	Port  int    `yaml:"port"`
	Bind  string `yaml:"bind"` // loopback | lan
	Token string `yaml:"token"`
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads path, applies defaults and env overrides, and validates.
// A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	cfg := &Config{Audio: AudioConfig{Enabled: true}}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Discord.Token = envStr("DISCORD_BOT_TOKEN", c.Discord.Token)
	c.Discord.ClientID = envStr("DISCORD_CLIENT_ID", c.Discord.ClientID)
	c.Discord.GuildID = envStr("DISCORD_GUILD_ID", c.Discord.GuildID)
	c.Status.Port = envInt("VOICELINK_STATUS_PORT", c.Status.Port)
	c.Status.Token = envStr("VOICELINK_STATUS_TOKEN", c.Status.Token)
	c.LogLevel = envStr("VOICELINK_LOG_LEVEL", c.LogLevel)
}

func (c *Config) applyDefaults() {
	if c.Discord.ShardCount < 1 {
		c.Discord.ShardCount = 1
	}
	if c.Audio.Discovery.Service == "" {
		c.Audio.Discovery.Service = DefaultDiscoveryService
	}
	if c.Audio.Discovery.Timeout <= 0 {
		c.Audio.Discovery.Timeout = DefaultDiscoveryTimeout
	}
	if c.Status.Port == 0 {
		c.Status.Port = DefaultStatusPort
	}
	if c.Status.Bind == "" {
		c.Status.Bind = "loopback"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.StateDir == "" {
		c.StateDir = DefaultStateDir()
	}
}

// Validate checks values that would make the process misbehave at runtime.
func (c *Config) Validate() error {
	if c.Status.Port <= 0 || c.Status.Port > 65535 {
		return fmt.Errorf("invalid status port: %d (must be 1-65535)", c.Status.Port)
	}
	if c.Status.Bind != "loopback" && c.Status.Bind != "lan" {
		return fmt.Errorf("invalid bind mode: %q (must be \"loopback\" or \"lan\")", c.Status.Bind)
	}
	if c.Status.Bind == "lan" && c.Status.Token == "" {
		return fmt.Errorf("refusing to start: status bind lan requires a token to prevent unauthenticated access")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}
	return nil
}

// DefaultStateDir returns XDG_STATE_HOME/voicelink or ~/.local/state/voicelink.
func DefaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "voicelink")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".voicelink", "state")
	}
	return filepath.Join(home, ".local", "state", "voicelink")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return fallback
	}
	return n
}
