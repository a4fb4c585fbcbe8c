package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Get when the key has no row
	ErrNotFound = errors.New("storage: row not found")

	// ErrNoTable is returned when a table was never created with EnsureTable
	ErrNoTable = errors.New("storage: table does not exist")
)

// Backend names accepted by Open
const (
	BackendBolt   = "bolt"
	BackendPebble = "pebble"
)

// Row is a single keyed record in a table
type Row struct {
	Key   string
	Value []byte
}

// Store defines the narrow relational surface the core persists through.
// Tables are flat key/value spaces with rows ordered by key.
type Store interface {
	// Tables
	EnsureTable(table string) error
	HasTable(table string) (bool, error)

	// Rows
	Upsert(table string, rows ...Row) error
	Get(table, key string) ([]byte, error)
	Delete(table, key string) error

	// Ranges
	Count(table string) (int, error)
	Scan(table string, limit int, fn func(key string, value []byte) error) error
	DeleteRange(table, start, end string) (int, error)

	// Utility
	Close() error
}

// Open opens the store for the named backend rooted at dataDir
func Open(backend, dataDir string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendBolt:
		return NewBoltStore(dataDir)
	case BackendPebble:
		return NewPebbleStore(dataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// inRange reports whether key falls in [start, end); empty end is unbounded
func inRange(key, start, end string) bool {
	if key < start {
		return false
	}
	return end == "" || key < end
}
