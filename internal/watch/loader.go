package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/leapstack-labs/dashql/pkg/catalog"
	"github.com/leapstack-labs/dashql/pkg/schemafile"
	"github.com/leapstack-labs/dashql/pkg/script"
)

// FileIDBase is the first external id handed out to watched files.
const FileIDBase uint32 = 1 << 19

// Loader keeps catalog entries in sync with schema files (.yaml, .yml) and
// schema scripts (.sql). Each path owns one catalog entry.
type Loader struct {
	cat    *catalog.Catalog
	rank   uint32
	logger *slog.Logger

	mu      sync.Mutex
	ids     map[string]uint32
	scripts map[string]*script.Script
	nextID  uint32
}

// NewLoader creates a loader that registers entries at the given rank.
func NewLoader(cat *catalog.Catalog, rank uint32, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		cat:     cat,
		rank:    rank,
		logger:  logger,
		ids:     make(map[string]uint32),
		scripts: make(map[string]*script.Script),
		nextID:  FileIDBase,
	}
}

// Supported reports whether the loader handles the file.
func Supported(path string) bool {
	switch filepath.Ext(path) {
	case ".sql", ".yaml", ".yml":
		return true
	}
	return false
}

// ExternalID returns the id assigned to a path.
func (l *Loader) ExternalID(path string) (uint32, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.ids[path]
	return id, ok
}

// Paths returns the loaded paths.
func (l *Loader) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.ids))
	for p := range l.ids {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (l *Loader) idFor(path string) uint32 {
	id, ok := l.ids[path]
	if !ok {
		id = l.nextID
		l.nextID++
		l.ids[path] = id
	}
	return id
}

// Sync loads every changed path and removes entries of deleted ones.
func (l *Loader) Sync(ctx context.Context, paths []string) error {
	var firstErr error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			l.Remove(path)
		} else {
			err = l.Load(path)
		}
		if err != nil {
			l.logger.Warn("failed to load file", "path", path, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Load reads a supported file and replaces its catalog entry.
func (l *Loader) Load(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch filepath.Ext(path) {
	case ".sql":
		return l.loadScript(path)
	case ".yaml", ".yml":
		return l.loadSchemaFile(path)
	}
	return fmt.Errorf("unsupported file %s", path)
}

func (l *Loader) loadSchemaFile(path string) error {
	f, err := schemafile.Load(path)
	if err != nil {
		return err
	}
	id := l.idFor(path)
	if err := l.cat.ReplaceDescriptorPool(id, l.rank, f.Schemas); err != nil {
		return err
	}
	l.logger.Info("schema file loaded", "path", path, "external_id", id, "schemas", len(f.Schemas))
	return nil
}

func (l *Loader) loadScript(path string) error {
	text, err := os.ReadFile(path) //nolint:gosec // watched paths come from configuration
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	s, ok := l.scripts[path]
	if !ok {
		s = script.New(l.cat, l.idFor(path), script.WithLogger(l.logger))
		l.scripts[path] = s
	}
	if err := s.ReplaceText(string(text)); err != nil {
		return err
	}
	if _, err := s.Scan(); err != nil {
		return err
	}
	if _, err := s.Parse(); err != nil {
		return err
	}
	if _, err := s.Analyze(); err != nil {
		return err
	}
	if err := s.LoadInto(l.cat, l.rank); err != nil {
		return err
	}
	l.logger.Info("schema script loaded", "path", path, "external_id", s.ExternalID())
	return nil
}

// Remove drops the catalog entry of a path.
func (l *Loader) Remove(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.ids[path]
	if !ok {
		return
	}
	if s, ok := l.scripts[path]; ok {
		s.Release()
		delete(l.scripts, path)
	} else if l.cat.Contains(id) {
		if err := l.cat.DropDescriptorPool(id); err != nil {
			l.logger.Warn("failed to drop descriptor pool", "path", path, "external_id", id, "error", err)
		}
	}
	delete(l.ids, path)
	l.logger.Info("file removed", "path", path, "external_id", id)
}
