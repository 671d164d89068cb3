// Package config loads the engine configuration from YAML or JSON with
// environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tyneline/dispatch/core/availability"
	"github.com/tyneline/dispatch/core/fare"
	"github.com/tyneline/dispatch/core/metrics"
	"github.com/tyneline/dispatch/core/schedule"
	"github.com/tyneline/dispatch/core/validate"
	"github.com/tyneline/dispatch/infra/board"
	"github.com/tyneline/dispatch/infra/routing"
)

type Config struct {
	Server       ServerConfig        `json:"server"`
	Registry     RegistryConfig      `json:"registry"`
	Validation   validate.Config     `json:"validation"`
	Availability availability.Config `json:"availability"`
	Fare         fare.Config         `json:"fare"`
	Schedule     schedule.Config     `json:"schedule"`
	Metrics      metrics.Config      `json:"metrics"`
	Board        board.Config        `json:"board"`
	Routing      routing.Config      `json:"routing"`
	Audit        AuditConfig         `json:"audit"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `json:"addr"`
	// APIToken guards the audit log endpoint. Empty disables the check.
	APIToken string `json:"api_token"`
}

// SetDefaults applies the default listen address.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// RegistryConfig selects the schedule store.
type RegistryConfig struct {
	// Backend selects the registry type: "memory" or "postgres".
	Backend string `json:"backend"`
	DSN     string `json:"dsn"`
}

// SetDefaults applies the in-memory backend.
func (c *RegistryConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks mandatory fields.
func (c RegistryConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("registry: dsn is required for the postgres backend")
		}
		return nil
	default:
		return fmt.Errorf("registry: unknown backend %s", c.Backend)
	}
}

// AuditConfig defines settings for allocation audit storage.
type AuditConfig struct {
	// Backend selects the store type: "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
}

// SetDefaults applies sane defaults.
func (c *AuditConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "allocations.log"
	}
}

// Validate checks mandatory fields.
func (c AuditConfig) Validate() error {
	if c.Backend != "jsonl" && c.Backend != "sqlite" {
		return fmt.Errorf("audit: unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("audit: path is required")
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("TD_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "td_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Server.SetDefaults()
	cfg.Registry.SetDefaults()
	cfg.Validation.SetDefaults()
	cfg.Availability.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Board.SetDefaults()
	cfg.Routing.SetDefaults()
	cfg.Audit.SetDefaults()
	if err := cfg.Registry.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Audit.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
