package server

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/dagbolade/mcp-guard/internal/policy"
)

// envPrefix scopes the proxy's environment variables.
const envPrefix = "GUARD_"

// Config is read once at startup and never mutated afterwards.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Proxy  ProxyConfig  `koanf:"proxy"`
	Policy PolicyConfig `koanf:"policy"`
	MCP    MCPConfig    `koanf:"mcp"`
	Log    LogConfig    `koanf:"log"`
}

type ServerConfig struct {
	Port               int `koanf:"port"`
	ReadTimeoutSec     int `koanf:"read_timeout_sec"`
	WriteTimeoutSec    int `koanf:"write_timeout_sec"`
	ShutdownTimeoutSec int `koanf:"shutdown_timeout_sec"`
}

type ProxyConfig struct {
	Upstream   string `koanf:"upstream"`
	TimeoutSec int    `koanf:"timeout_sec"`
}

// PolicyConfig selects and parameterizes the evaluation strategy.
type PolicyConfig struct {
	Mode       string `koanf:"mode"`
	Path       string `koanf:"path"`
	Query      string `koanf:"query"`
	URL        string `koanf:"url"`
	FailMode   string `koanf:"fail_mode"`
	TimeoutSec int    `koanf:"timeout_sec"`
}

type MCPConfig struct {
	ExtraMethods string `koanf:"extra_methods"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

const (
	ModeCLI    = "cli"
	ModeServer = "server"
)

var defaults = map[string]any{
	"server.port":                 8080,
	"server.read_timeout_sec":     30,
	"server.write_timeout_sec":    30,
	"server.shutdown_timeout_sec": 10,
	"proxy.upstream":              "http://localhost:8000",
	"proxy.timeout_sec":           30,
	"policy.mode":                 ModeCLI,
	"policy.path":                 "./policy/guard.rego",
	"policy.query":                "data.mcp.guard.decision",
	"policy.url":                  "http://localhost:8181/v1/data/mcp/guard/decision",
	"policy.fail_mode":            string(policy.FailClosed),
	"policy.timeout_sec":          5,
	"mcp.extra_methods":           "",
	"log.level":                   "info",
}

// LoadConfig merges environment variables over defaults. GUARD_POLICY_URL
// maps to policy.url: the first underscore after the prefix separates the
// section from the key.
func LoadConfig() (Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		k.Set(key, value)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Policy.Mode {
	case ModeCLI:
		if c.Policy.Path == "" {
			return fmt.Errorf("policy path is required in cli mode")
		}
	case ModeServer:
		if c.Policy.URL == "" {
			return fmt.Errorf("policy url is required in server mode")
		}
	default:
		return fmt.Errorf("policy mode must be %q or %q, got %q", ModeCLI, ModeServer, c.Policy.Mode)
	}

	switch policy.FailMode(c.Policy.FailMode) {
	case policy.FailOpen, policy.FailClosed:
	default:
		return fmt.Errorf("policy fail_mode must be %q or %q, got %q",
			policy.FailOpen, policy.FailClosed, c.Policy.FailMode)
	}

	if c.Policy.TimeoutSec <= 0 {
		return fmt.Errorf("policy timeout must be positive, got %d", c.Policy.TimeoutSec)
	}
	return nil
}

// ExtraMethodNames splits the configured method additions.
func (c MCPConfig) ExtraMethodNames() []string {
	if c.ExtraMethods == "" {
		return nil
	}
	parts := strings.Split(c.ExtraMethods, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}
