package config

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/dashql/internal/cli/output"
	"github.com/leapstack-labs/dashql/pkg/adapter"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Catalog.DefaultDatabase == "" {
		errs = append(errs, errors.New("catalog.default_database is required"))
	}
	if c.Catalog.DefaultSchema == "" {
		errs = append(errs, errors.New("catalog.default_schema is required"))
	}
	if c.Completion.Limit < 0 {
		errs = append(errs, fmt.Errorf("completion.limit must not be negative, got %d", c.Completion.Limit))
	}
	if c.Refresh.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("refresh.concurrency must not be negative, got %d", c.Refresh.Concurrency))
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		errs = append(errs, err)
	}
	if c.Refresh.Interval < 0 {
		errs = append(errs, fmt.Errorf("refresh.interval must not be negative, got %s", c.Refresh.Interval))
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if err := src.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sources[%d]: %w", i, err))
			continue
		}
		if seen[src.Name] {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate source name %q", i, src.Name))
		}
		seen[src.Name] = true
	}
	return errors.Join(errs...)
}

// Validate checks a source definition.
func (s SourceConfig) Validate() error {
	if s.Name == "" {
		return errors.New("source name is required")
	}
	if s.Type == "" {
		return fmt.Errorf("source %q: type is required", s.Name)
	}
	if !adapter.IsRegistered(s.Type) {
		return &adapter.UnknownAdapterError{Type: s.Type, Available: adapter.ListAdapters()}
	}
	return nil
}
