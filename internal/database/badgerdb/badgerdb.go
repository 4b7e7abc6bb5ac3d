// Package badgerdb opens the embedded BadgerDB instance that backs the
// device-local settings tier.
package badgerdb

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"techno-etl-service/internal/config"
)

// Open opens the store at the configured path with synchronous writes,
// so a settings write that reported success survives a crash.
func Open(cfg config.LocalStoreConfig) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open local settings store at %s: %w", cfg.Path, err)
	}
	return db, nil
}

// OpenInMemory opens a throwaway in-memory store for tests.
func OpenInMemory() (*badger.DB, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory settings store: %w", err)
	}
	return db, nil
}
