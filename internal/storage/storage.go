// Package storage persists the nutrition dataset and merges new records into
// it across runs.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IshaanNene/NutriGoat/internal/config"
	"github.com/IshaanNene/NutriGoat/internal/types"
)

// Backend is the interface for all dataset backends. A backend stores the
// whole dataset and rewrites it in full on Save.
type Backend interface {
	// Load returns the persisted dataset, or an empty one if none exists.
	Load(ctx context.Context) (*Dataset, error)

	// Save replaces the persisted dataset.
	Save(ctx context.Context, ds *Dataset) error

	// Close releases resources.
	Close() error

	// Name returns the backend identifier.
	Name() string
}

// Dataset is an ordered set of records unique by identity key.
type Dataset struct {
	Schema  types.Schema
	Records []*types.Record
}

// MergeResult summarizes one merge.
type MergeResult struct {
	// Added is the size of the merged batch.
	Added int

	// Total is the dataset size after deduplication.
	Total int

	// New counts batch keys that were not in the dataset.
	New int

	// Replaced counts batch keys that overwrote an existing record.
	Replaced int
}

// Store merges batches into a backend. Merges are serialized.
type Store struct {
	backend Backend
	schema  types.Schema
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewStore creates a Store writing records of schema to backend.
func NewStore(backend Backend, schema types.Schema, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		schema:  schema,
		logger:  logger.With("component", "store", "backend", backend.Name()),
	}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Load returns the current dataset.
func (s *Store) Load(ctx context.Context) (*Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) (*Dataset, error) {
	ds, err := s.backend.Load(ctx)
	if err != nil {
		return nil, &types.StorageError{Backend: s.backend.Name(), Op: "load", Err: err}
	}
	if ds == nil {
		ds = &Dataset{}
	}
	return ds, nil
}

// Merge loads the dataset, appends batch, keeps the last occurrence of every
// identity key and persists the result. A StorageError is returned when the
// dataset cannot be loaded or saved; the previous persisted state is then
// left untouched.
func (s *Store) Merge(ctx context.Context, batch []*types.Record) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return MergeResult{}, err
	}

	existing, err := s.load(ctx)
	if err != nil {
		return MergeResult{}, err
	}

	merged, res := mergeRecords(existing, batch, s.schema.Union(existing.Schema))

	if err := s.backend.Save(ctx, merged); err != nil {
		return MergeResult{}, &types.StorageError{Backend: s.backend.Name(), Op: "save", Err: err}
	}

	s.logger.Debug("batch merged",
		"added", res.Added,
		"new", res.New,
		"replaced", res.Replaced,
		"total", res.Total,
	)
	return res, nil
}

// mergeRecords concatenates existing and batch and drops every record that
// has a later record with the same key. Survivors keep their position.
func mergeRecords(existing *Dataset, batch []*types.Record, schema types.Schema) (*Dataset, MergeResult) {
	all := make([]*types.Record, 0, len(existing.Records)+len(batch))
	all = append(all, existing.Records...)
	all = append(all, batch...)

	last := make(map[string]int, len(all))
	for i, r := range all {
		last[r.Key()] = i
	}

	before := make(map[string]bool, len(existing.Records))
	for _, r := range existing.Records {
		before[r.Key()] = true
	}

	res := MergeResult{Added: len(batch)}
	counted := make(map[string]bool, len(batch))
	for _, r := range batch {
		if counted[r.Key()] {
			continue
		}
		counted[r.Key()] = true
		if before[r.Key()] {
			res.Replaced++
		} else {
			res.New++
		}
	}

	out := &Dataset{Schema: schema, Records: make([]*types.Record, 0, len(last))}
	for i, r := range all {
		if last[r.Key()] != i {
			continue
		}
		rec := r.Clone()
		rec.Conform(schema)
		out.Records = append(out.Records, rec)
	}
	res.Total = len(out.Records)
	return out, res
}

// NewBackend creates the dataset backend selected by storage.type, writing
// CSV datasets to path.
func NewBackend(cfg *config.StorageConfig, path string, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "csv":
		return NewCSVBackend(path, logger), nil
	case "sqlite":
		return NewSQLiteBackend(cfg.SQLitePath, logger)
	case "mongodb":
		return NewMongoBackend(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
