package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend modes.
const (
	ModeCLI = "cli"
	ModeAPI = "api"
)

// EnvConfigPath names the variable that points at a YAML config file.
const EnvConfigPath = "ASKBRIDGE_CONFIG"

var defaultDisabledMCPServers = []string{"serena", "chrome-devtools", "playwright"}

// Config represents runtime configuration for the service.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	CLI          CLIConfig          `mapstructure:"cli"`
	Codex        BackendConfig      `mapstructure:"codex"`
	Claude       BackendConfig      `mapstructure:"claude"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type ConversationConfig struct {
	MaxHistory    int           `mapstructure:"max_history"`
	TTL           time.Duration `mapstructure:"ttl"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

type CLIConfig struct {
	// Timeout applies to requests that do not carry their own.
	Timeout time.Duration `mapstructure:"timeout"`
}

// BackendConfig configures one tool. In cli mode Command (and Model for
// claude) are used; api mode needs APIKey and APIModel.
type BackendConfig struct {
	Mode               string   `mapstructure:"mode"`
	Command            string   `mapstructure:"command"`
	Model              string   `mapstructure:"model"`
	DisabledMCPServers []string `mapstructure:"disabled_mcp_servers"`
	Fallback           bool     `mapstructure:"fallback"`
	APIKey             string   `mapstructure:"api_key"`
	BaseURL            string   `mapstructure:"base_url"`
	APIModel           string   `mapstructure:"api_model"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

var defaults = map[string]any{
	"server.host":                 "127.0.0.1",
	"server.port":                 5000,
	"conversation.max_history":    50,
	"conversation.ttl":            "1h",
	"conversation.purge_interval": "5m",
	"cli.timeout":                 "300s",
	"codex.mode":                  ModeCLI,
	"codex.command":               "codex",
	"codex.disabled_mcp_servers":  defaultDisabledMCPServers,
	"codex.fallback":              true,
	"codex.api_model":             "gpt-4o-mini",
	"claude.mode":                 ModeCLI,
	"claude.command":              "claude",
	"claude.model":                "sonnet",
	"claude.fallback":             true,
	"claude.api_model":            "claude-sonnet-4-20250514",
	"log.level":                   "info",
	"log.pretty":                  false,
}

// Environment names kept compatible with earlier deployments.
var envBindings = map[string][]string{
	"server.host":                 {"HOST"},
	"server.port":                 {"PORT"},
	"conversation.max_history":    {"MAX_HISTORY"},
	"conversation.ttl":            {"CONVERSATION_TTL"},
	"conversation.purge_interval": {"CONVERSATION_PURGE_INTERVAL"},
	"cli.timeout":                 {"CLI_TIMEOUT"},
	"codex.mode":                  {"CODEX_MODE"},
	"codex.command":               {"CODEX_CMD"},
	"codex.disabled_mcp_servers":  {"CODEX_DISABLED_MCP_SERVERS"},
	"codex.fallback":              {"CODEX_FALLBACK"},
	"codex.api_key":               {"CODEX_API_KEY", "OPENAI_API_KEY"},
	"codex.base_url":              {"CODEX_BASE_URL", "OPENAI_BASE_URL"},
	"codex.api_model":             {"CODEX_API_MODEL"},
	"claude.mode":                 {"CLAUDE_MODE"},
	"claude.command":              {"CLAUDE_CMD"},
	"claude.model":                {"CLAUDE_MODEL"},
	"claude.fallback":             {"CLAUDE_FALLBACK"},
	"claude.api_key":              {"CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	"claude.base_url":             {"CLAUDE_BASE_URL"},
	"claude.api_model":            {"CLAUDE_API_MODEL"},
	"log.level":                   {"LOG_LEVEL"},
	"log.pretty":                  {"LOG_PRETTY"},
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing priority. An explicit path (argument or
// ASKBRIDGE_CONFIG) must exist; otherwise ./config.yaml is used when present.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// normalize replaces non-positive and blank values with defaults.
func (c *Config) normalize() {
	if strings.TrimSpace(c.Server.Host) == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 5000
	}
	if c.Conversation.MaxHistory <= 0 {
		c.Conversation.MaxHistory = 50
	}
	if c.Conversation.TTL <= 0 {
		c.Conversation.TTL = time.Hour
	}
	if c.Conversation.PurgeInterval <= 0 {
		c.Conversation.PurgeInterval = 5 * time.Minute
	}
	if c.CLI.Timeout <= 0 {
		c.CLI.Timeout = 300 * time.Second
	}
	if strings.TrimSpace(c.Codex.Command) == "" {
		c.Codex.Command = "codex"
	}
	if strings.TrimSpace(c.Claude.Command) == "" {
		c.Claude.Command = "claude"
	}
	c.Codex.Mode = strings.ToLower(strings.TrimSpace(c.Codex.Mode))
	c.Claude.Mode = strings.ToLower(strings.TrimSpace(c.Claude.Mode))
	c.Codex.DisabledMCPServers = ParseServerList(c.Codex.DisabledMCPServers)
	c.Claude.Model = strings.TrimSpace(c.Claude.Model)
}

// Validate reports settings that cannot be served.
func (c *Config) Validate() error {
	if c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	for name, b := range map[string]BackendConfig{"codex": c.Codex, "claude": c.Claude} {
		switch b.Mode {
		case ModeCLI:
		case ModeAPI:
			if b.APIKey == "" {
				return fmt.Errorf("%s: api mode requires an api key", name)
			}
		default:
			return fmt.Errorf("%s: unknown mode %q", name, b.Mode)
		}
	}
	return nil
}

// ParseServerList trims, splits comma-joined entries and removes blanks and
// duplicates. An empty result selects the default list.
func ParseServerList(items []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, item := range items {
		for _, name := range strings.Split(item, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultDisabledMCPServers...)
	}
	return out
}
