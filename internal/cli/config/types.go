// Package config provides configuration management for the DashQL CLI.
//
// Configuration is layered with koanf: built-in defaults, then dashql.yaml
// (searched upward from the working directory), then DASHQL_ environment
// variables, then explicitly set command-line flags.
package config

import (
	"time"

	"github.com/leapstack-labs/dashql/internal/refresh"
	"github.com/leapstack-labs/dashql/pkg/adapter"
)

// Config holds all CLI configuration options.
type Config struct {
	ProjectRoot  string           `koanf:"-"`
	StatePath    string           `koanf:"state_path"`
	SchemaFiles  []string         `koanf:"schema_files"`
	ScriptFiles  []string         `koanf:"script_files"`
	Catalog      CatalogConfig    `koanf:"catalog"`
	Completion   CompletionConfig `koanf:"completion"`
	Refresh      RefreshConfig    `koanf:"refresh"`
	Sources      []SourceConfig   `koanf:"sources"`
	Verbose      bool             `koanf:"verbose"`
	LogLevel     string           `koanf:"log_level"`
	OutputFormat string           `koanf:"output"`
}

// CatalogConfig holds the names unqualified table references resolve in.
type CatalogConfig struct {
	DefaultDatabase string `koanf:"default_database"`
	DefaultSchema   string `koanf:"default_schema"`
}

// CompletionConfig holds completion engine settings.
type CompletionConfig struct {
	Limit int `koanf:"limit"`
}

// RefreshConfig holds metadata refresh settings.
type RefreshConfig struct {
	Concurrency int           `koanf:"concurrency"`
	Interval    time.Duration `koanf:"interval"`
	// Keep is the number of snapshots kept per source.
	Keep int `koanf:"keep"`
}

// SourceConfig describes a database whose information_schema is loaded
// into the catalog as a descriptor pool.
type SourceConfig struct {
	Name     string            `koanf:"name"`
	Type     string            `koanf:"type"`
	Rank     uint32            `koanf:"rank"`
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Schemas  []string          `koanf:"schemas"`
	Options  map[string]string `koanf:"options"`
	Params   map[string]any    `koanf:"params"`
}

// AdapterConfig converts the source into an adapter configuration.
func (s SourceConfig) AdapterConfig() adapter.Config {
	return adapter.Config{
		Name:     s.Name,
		Type:     s.Type,
		Path:     s.Path,
		Host:     s.Host,
		Port:     s.Port,
		Database: s.Database,
		Username: s.User,
		Password: s.Password,
		Schemas:  s.Schemas,
		Options:  s.Options,
		Params:   s.Params,
	}
}

// RefreshSources returns the configured sources for the refresh scheduler.
func (c *Config) RefreshSources() []refresh.Source {
	out := make([]refresh.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		out = append(out, refresh.Source{Config: s.AdapterConfig(), Rank: s.Rank})
	}
	return out
}

// Default configuration values.
const (
	DefaultStateFile       = ".dashql/state.db"
	DefaultDatabase        = "dashql"
	DefaultSchema          = "public"
	DefaultCompletionLimit = 32
	DefaultLogLevel        = "warn"
	DefaultOutput          = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultSnapshotKeep    = 5

	// DefaultFileRank places watched files behind open documents.
	DefaultFileRank uint32 = 10
	// DefaultSourceRank places sources behind watched files and scripts.
	// Sources without a rank get DefaultSourceRank plus their position.
	DefaultSourceRank uint32 = 100
)

// FileNames are the config file names searched for, in order.
var FileNames = []string{"dashql.yaml", "dashql.yml"}
