// Package store defines the record-store contract and a backend factory.
//
// A Store is append-only and write-once: records are never rewritten,
// compacted, or deleted. Dedup state is loaded once per run via LoadSeenKeys.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"regetl/internal/record"
)

// Config is the minimal configuration needed to open a store backend.
//
// Edge cases:
//   - Kind must be non-empty and match a registered backend kind.
//   - DSN interpretation is backend-specific: a file path for "jsonl", a
//     database DSN for the SQL backends.
type Config struct {
	Kind string
	DSN  string

	// Table is the destination table for SQL backends; ignored by "jsonl".
	Table string

	// Logger receives per-line load warnings. Zero value discards.
	Logger zerolog.Logger
}

// Store is the backend-agnostic record store.
//
// IMPORTANT: the interface is intentionally minimal: exactly the operations
// the extraction orchestrator needs. Each backend implements idempotent
// persistence in its own way (O_APPEND+fsync for JSONL, INSERT OR IGNORE for
// SQLite, ON CONFLICT DO NOTHING for Postgres, guarded INSERT for MSSQL).
type Store interface {
	// LoadSeenKeys reads the registration ids of all persisted records.
	//
	// Edge cases:
	//   - An absent store yields an empty set, not an error.
	//   - A corrupt line/row is skipped with a warning; only an unreadable
	//     store is an error.
	LoadSeenKeys(ctx context.Context) (map[string]struct{}, error)

	// Append durably persists one record. A failed append must be treated as
	// fatal by callers: durability can no longer be guaranteed.
	Append(ctx context.Context, rec record.Record) error

	// Close releases backend resources. Call once at shutdown.
	Close() error
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a store backend under a kind (e.g. "jsonl", "sqlite").
//
// Call Register from an init() function in a backend package. Registering the
// same kind twice panics: failing fast beats ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("store: Register called with empty kind")
	}
	if f == nil {
		panic("store: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("store: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Store using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("store: missing Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported store.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds, for error messages and -h text.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
