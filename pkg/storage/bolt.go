package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore implements Store using BoltDB, one bucket per table
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "addonkit.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// EnsureTable creates the bucket backing table if it is missing
func (s *BoltStore) EnsureTable(table string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(table)); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", table, err)
		}
		return nil
	})
}

// HasTable reports whether the table's bucket exists
func (s *BoltStore) HasTable(table string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket([]byte(table)) != nil
		return nil
	})
	return exists, err
}

// Upsert writes all rows in a single transaction, replacing existing keys
func (s *BoltStore) Upsert(table string, rows ...Row) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNoTable, table)
		}
		for _, row := range rows {
			if err := b.Put([]byte(row.Key), row.Value); err != nil {
				return fmt.Errorf("failed to put %s/%s: %w", table, row.Key, err)
			}
		}
		return nil
	})
}

func (s *BoltStore) Get(table, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNoTable, table)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// Bolt memory is only valid inside the transaction
		value = append([]byte(nil), data...)
		return nil
	})
	return value, err
}

func (s *BoltStore) Delete(table, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNoTable, table)
		}
		return b.Delete([]byte(key))
	})
}

func (s *BoltStore) Count(table string) (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNoTable, table)
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

// Scan calls fn for up to limit rows in ascending key order (limit <= 0 means all)
func (s *BoltStore) Scan(table string, limit int, fn func(key string, value []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNoTable, table)
		}
		c := b.Cursor()
		seen := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && seen >= limit {
				break
			}
			if err := fn(string(k), append([]byte(nil), v...)); err != nil {
				return err
			}
			seen++
		}
		return nil
	})
}

// DeleteRange removes every key in [start, end) and returns how many were removed
func (s *BoltStore) DeleteRange(table, start, end string) (int, error) {
	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrNoTable, table)
		}

		// Collect first, deleting under a live cursor skips entries
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.Seek([]byte(start)); k != nil && inRange(string(k), start, end); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)
		return nil
	})
	return removed, err
}
