// Package refresh keeps catalog descriptor pools in sync with metadata
// sources.
//
// Metadata is fetched from all sources concurrently, bounded by the
// configured concurrency. Catalog writes and snapshot saves happen on the
// calling goroutine after all fetches finished, so the catalog only ever
// sees one writer.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/dashql/internal/state"
	"github.com/leapstack-labs/dashql/pkg/adapter"
	"github.com/leapstack-labs/dashql/pkg/catalog"
)

// DefaultConcurrency bounds concurrent fetches when none is configured.
const DefaultConcurrency = 4

// Source is a metadata source and the rank of its descriptor pool.
type Source struct {
	adapter.Config
	Rank uint32
}

// Result reports the outcome of refreshing one source.
type Result struct {
	Source     string
	ExternalID uint32
	Tables     int
	Duration   time.Duration
	Err        error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore persists every fetch and assigns external ids from the store.
func WithStore(store *state.SQLiteStore) Option {
	return func(s *Scheduler) { s.store = store }
}

// WithConcurrency bounds the number of concurrent fetches.
func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithAdapterFactory replaces adapter.NewAdapter.
func WithAdapterFactory(f func(adapter.Config, *slog.Logger) (adapter.Adapter, error)) Option {
	return func(s *Scheduler) {
		if f != nil {
			s.newAdapter = f
		}
	}
}

// Scheduler refreshes descriptor pools of a catalog.
type Scheduler struct {
	cat         *catalog.Catalog
	sources     []Source
	store       *state.SQLiteStore
	concurrency int
	logger      *slog.Logger
	newAdapter  func(adapter.Config, *slog.Logger) (adapter.Adapter, error)
}

// New creates a scheduler for the given sources.
func New(cat *catalog.Catalog, sources []Source, opts ...Option) *Scheduler {
	s := &Scheduler{
		cat:         cat,
		sources:     sources,
		concurrency: DefaultConcurrency,
		logger:      slog.New(slog.DiscardHandler),
		newAdapter:  adapter.NewAdapter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type fetched struct {
	schemas []catalog.SchemaDescriptor
	elapsed time.Duration
	err     error
}

// Refresh fetches every source once and replaces its descriptor pool.
// A failing source keeps its previous pool; its error is reported in the
// result and joined into the returned error.
func (s *Scheduler) Refresh(ctx context.Context) ([]Result, error) {
	out := make([]fetched, len(s.sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range s.sources {
		g.Go(func() error {
			start := time.Now()
			schemas, err := s.fetch(gctx, s.sources[i].Config)
			out[i] = fetched{schemas: schemas, elapsed: time.Since(start), err: err}
			// Source errors stay per source; only cancellation stops the group.
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([]Result, len(s.sources))
	var errs []error
	for i, src := range s.sources {
		r := Result{Source: src.Name, Duration: out[i].elapsed, Err: out[i].err}
		if r.Err == nil {
			r.ExternalID, r.Tables, r.Err = s.apply(ctx, src, out[i].schemas)
		}
		if r.Err != nil {
			r.Err = fmt.Errorf("source %s: %w", src.Name, r.Err)
			errs = append(errs, r.Err)
			s.logger.Warn("source refresh failed", "source", src.Name, "error", r.Err)
		} else {
			s.logger.Info("source refreshed",
				"source", src.Name,
				"external_id", r.ExternalID,
				"tables", r.Tables,
				"duration", r.Duration)
		}
		results[i] = r
	}
	return results, errors.Join(errs...)
}

func (s *Scheduler) fetch(ctx context.Context, cfg adapter.Config) ([]catalog.SchemaDescriptor, error) {
	adp, err := s.newAdapter(cfg, s.logger)
	if err != nil {
		return nil, err
	}
	if err := adp.Connect(ctx, cfg); err != nil {
		return nil, err
	}
	defer func() { _ = adp.Close() }()
	return adp.LoadSchemas(ctx)
}

// apply replaces the pool of a source. Runs on the refreshing goroutine only.
func (s *Scheduler) apply(ctx context.Context, src Source, schemas []catalog.SchemaDescriptor) (uint32, int, error) {
	id, err := s.externalID(ctx, src)
	if err != nil {
		return 0, 0, err
	}
	if err := s.cat.ReplaceDescriptorPool(id, src.Rank, schemas); err != nil {
		return id, 0, err
	}
	tables := 0
	for _, schema := range schemas {
		tables += len(schema.Tables)
	}
	if s.store != nil {
		if _, err := s.store.SaveSnapshot(ctx, src.Name, schemas); err != nil {
			return id, tables, err
		}
	}
	return id, tables, nil
}

func (s *Scheduler) externalID(ctx context.Context, src Source) (uint32, error) {
	if s.store != nil {
		stored, err := s.store.UpsertSource(ctx, src.Name, src.Type, src.Rank)
		if err != nil {
			return 0, err
		}
		return stored.ExternalID, nil
	}
	for i, other := range s.sources {
		if other.Name == src.Name {
			return state.SourceIDBase + uint32(i), nil
		}
	}
	return 0, fmt.Errorf("unknown source %q", src.Name)
}

// Run refreshes immediately and then on every tick until ctx is done.
// A non-positive interval refreshes once.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration, onResult func([]Result)) error {
	for {
		results, err := s.Refresh(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if onResult != nil {
			onResult(results)
		}
		if interval <= 0 {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
