package catalog

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/dashql/pkg/core"
)

// Default names used to qualify partial table names.
const (
	DefaultDatabase = "dashql"
	DefaultSchema   = "public"
)

// Catalog is a ranked, versioned set of entries.
// It is safe for concurrent use.
type Catalog struct {
	mu              sync.RWMutex
	logger          *slog.Logger
	defaultDatabase string
	defaultSchema   string
	state           *state
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithDefaults sets the database and schema used for partial names.
func WithDefaults(database, schema string) Option {
	return func(c *Catalog) {
		if database != "" {
			c.defaultDatabase = database
		}
		if schema != "" {
			c.defaultSchema = schema
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		logger:          slog.New(slog.DiscardHandler),
		defaultDatabase: DefaultDatabase,
		defaultSchema:   DefaultSchema,
		state:           newState(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type entryState struct {
	entry  Entry
	rank   uint32
	origin any
}

// state is never mutated once published.
type state struct {
	version     uint64
	entries     map[uint32]*entryState
	ranked      []*entryState
	databaseIDs map[string]uint32
	schemaIDs   map[QualifiedSchemaName]uint32
}

func newState(version uint64) *state {
	return &state{
		version:     version,
		entries:     make(map[uint32]*entryState),
		databaseIDs: make(map[string]uint32),
		schemaIDs:   make(map[QualifiedSchemaName]uint32),
	}
}

func (s *state) clone() *state {
	next := &state{
		version:     s.version + 1,
		entries:     make(map[uint32]*entryState, len(s.entries)+1),
		databaseIDs: make(map[string]uint32, len(s.databaseIDs)),
		schemaIDs:   make(map[QualifiedSchemaName]uint32, len(s.schemaIDs)),
	}
	for k, v := range s.entries {
		next.entries[k] = v
	}
	for k, v := range s.databaseIDs {
		next.databaseIDs[k] = v
	}
	for k, v := range s.schemaIDs {
		next.schemaIDs[k] = v
	}
	return next
}

// put stores an entry and registers ids for its schemas.
func (s *state) put(e *entryState) {
	s.entries[e.entry.ExternalID()] = e
	for _, schema := range e.entry.Schemas() {
		if _, ok := s.databaseIDs[schema.Database]; !ok {
			s.databaseIDs[schema.Database] = uint32(len(s.databaseIDs))
		}
		if _, ok := s.schemaIDs[schema]; !ok {
			s.schemaIDs[schema] = uint32(len(s.schemaIDs))
		}
	}
}

// seal orders entries by (rank, external id).
func (s *state) seal() *state {
	s.ranked = make([]*entryState, 0, len(s.entries))
	for _, e := range s.entries {
		s.ranked = append(s.ranked, e)
	}
	sort.Slice(s.ranked, func(i, j int) bool {
		a, b := s.ranked[i], s.ranked[j]
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.entry.ExternalID() < b.entry.ExternalID()
	})
	return s
}

func (c *Catalog) commit(next *state) {
	c.state = next.seal()
}

// DefaultDatabase returns the database used for partial names.
func (c *Catalog) DefaultDatabase() string { return c.defaultDatabase }

// DefaultSchema returns the schema used for partial names.
func (c *Catalog) DefaultSchema() string { return c.defaultSchema }

// Version returns a counter that increases with every mutation.
func (c *Catalog) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.version
}

// Contains reports whether an entry with the external id exists.
func (c *Catalog) Contains(externalID uint32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.state.entries[externalID]
	return ok
}

// Clear removes all entries and resets the database and schema ids.
func (c *Catalog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commit(newState(c.state.version + 1))
	c.logger.Debug("catalog cleared")
}

// AddDescriptorPool adds an empty descriptor pool.
func (c *Catalog) AddDescriptorPool(externalID uint32, rank uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.state.entries[externalID]; ok {
		return &CollisionError{ExternalID: externalID, First: existing.entry.ExternalID(), Second: externalID}
	}
	next := c.state.clone()
	next.put(&entryState{entry: newDescriptorPool(externalID), rank: rank})
	c.commit(next)
	c.logger.Debug("descriptor pool added", "external_id", externalID, "rank", rank)
	return nil
}

// DropDescriptorPool removes a descriptor pool.
func (c *Catalog) DropDescriptorPool(externalID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.pool(externalID); err != nil {
		return err
	}
	next := c.state.clone()
	delete(next.entries, externalID)
	c.commit(next)
	c.logger.Debug("descriptor pool dropped", "external_id", externalID)
	return nil
}

// AddSchemaDescriptor adds one schema descriptor to a pool.
func (c *Catalog) AddSchemaDescriptor(externalID uint32, desc SchemaDescriptor) error {
	return c.AddSchemaDescriptors(externalID, []SchemaDescriptor{desc})
}

// AddSchemaDescriptors adds schema descriptors to a pool. The batch is
// applied atomically: on error the pool is left unchanged.
func (c *Catalog) AddSchemaDescriptors(externalID uint32, descs []SchemaDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	es, err := c.pool(externalID)
	if err != nil {
		return err
	}
	pool, err := es.entry.(*DescriptorPool).withDescriptors(descs, c.defaultDatabase, c.defaultSchema)
	if err != nil {
		return fmt.Errorf("descriptor pool %d: %w", externalID, err)
	}
	next := c.state.clone()
	next.put(&entryState{entry: pool, rank: es.rank})
	c.commit(next)
	c.logger.Debug("schema descriptors added",
		"external_id", externalID,
		"schemas", len(descs),
		"tables", len(pool.Tables()))
	return nil
}

// ReplaceDescriptorPool swaps the contents and rank of a descriptor pool
// in a single commit, creating the pool if it does not exist. On error the
// previous pool stays in place.
func (c *Catalog) ReplaceDescriptorPool(externalID uint32, rank uint32, descs []SchemaDescriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.state.entries[externalID]; ok && existing.entry.Kind() != EntryDescriptorPool {
		return &CollisionError{ExternalID: externalID, First: existing.entry.ExternalID(), Second: externalID}
	}
	pool, err := newDescriptorPool(externalID).withDescriptors(descs, c.defaultDatabase, c.defaultSchema)
	if err != nil {
		return fmt.Errorf("descriptor pool %d: %w", externalID, err)
	}
	next := c.state.clone()
	next.put(&entryState{entry: pool, rank: rank})
	c.commit(next)
	c.logger.Debug("descriptor pool replaced",
		"external_id", externalID,
		"rank", rank,
		"tables", len(pool.Tables()))
	return nil
}

func (c *Catalog) pool(externalID uint32) (*entryState, error) {
	es, ok := c.state.entries[externalID]
	if !ok || es.entry.Kind() != EntryDescriptorPool {
		return nil, fmt.Errorf("%w: %d", core.ErrDescriptorPoolUnknown, externalID)
	}
	return es, nil
}

// LoadScript loads or replaces an analyzed script entry. An entry with the
// same external id but another origin is a collision.
func (c *Catalog) LoadScript(entry ScriptEntry, rank uint32) error {
	if entry == nil {
		return core.ErrScriptNotAnalyzed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id := entry.ExternalID()
	if existing, ok := c.state.entries[id]; ok {
		if existing.entry.Kind() != EntryScript || existing.origin != entry.Origin() {
			return &CollisionError{ExternalID: id, First: id, Second: id}
		}
	}
	next := c.state.clone()
	next.put(&entryState{entry: entry, rank: rank, origin: entry.Origin()})
	c.commit(next)
	c.logger.Debug("script loaded", "external_id", id, "rank", rank, "tables", len(entry.Tables()))
	return nil
}

// DropScript removes a script entry if it was loaded from the same origin.
func (c *Catalog) DropScript(entry ScriptEntry) {
	if entry == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	id := entry.ExternalID()
	existing, ok := c.state.entries[id]
	if !ok || existing.entry.Kind() != EntryScript || existing.origin != entry.Origin() {
		return
	}
	next := c.state.clone()
	delete(next.entries, id)
	c.commit(next)
	c.logger.Debug("script dropped", "external_id", id)
}

// CreateSnapshot returns an immutable view of the current state.
func (c *Catalog) CreateSnapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Snapshot{
		state:           c.state,
		defaultDatabase: c.defaultDatabase,
		defaultSchema:   c.defaultSchema,
	}
}

// DescribeEntries describes all entries ranked by (rank, external id).
func (c *Catalog) DescribeEntries() []EntryDescription {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]EntryDescription, 0, len(c.state.ranked))
	for _, e := range c.state.ranked {
		out = append(out, Describe(e.entry, e.rank))
	}
	return out
}

// DescribeEntriesOf describes the entry with the external id.
func (c *Catalog) DescribeEntriesOf(externalID uint32) ([]EntryDescription, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.state.entries[externalID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", core.ErrDescriptorPoolUnknown, externalID)
	}
	return []EntryDescription{Describe(e.entry, e.rank)}, nil
}
