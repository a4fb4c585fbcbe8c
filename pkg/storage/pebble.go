package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Key layout:
//
//	c\x00<table>          table catalogue entry
//	t\x00<table>\x00<key> row
var (
	catalogPrefix = []byte("c\x00")
	rowPrefix     = []byte("t\x00")
)

// PebbleStore implements Store on a Pebble LSM, one key prefix per table
type PebbleStore struct {
	db *pebble.DB
}

// NewPebbleStore opens (or creates) a Pebble database under dataDir
func NewPebbleStore(dataDir string) (*PebbleStore, error) {
	if dataDir == "" {
		return nil, errors.New("pebble: data directory is required")
	}
	db, err := pebble.Open(dataDir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func catalogKey(table string) []byte {
	return append(append([]byte(nil), catalogPrefix...), table...)
}

func tablePrefix(table string) []byte {
	p := append(append([]byte(nil), rowPrefix...), table...)
	return append(p, 0)
}

// tableUpper is the exclusive upper bound of every key under tablePrefix
func tableUpper(table string) []byte {
	p := append(append([]byte(nil), rowPrefix...), table...)
	return append(p, 1)
}

func rowKey(table, key string) []byte {
	return append(tablePrefix(table), key...)
}

func (s *PebbleStore) EnsureTable(table string) error {
	if err := s.db.Set(catalogKey(table), nil, pebble.Sync); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

func (s *PebbleStore) HasTable(table string) (bool, error) {
	_, closer, err := s.db.Get(catalogKey(table))
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_ = closer.Close()
	return true, nil
}

func (s *PebbleStore) requireTable(table string) error {
	ok, err := s.HasTable(table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTable, table)
	}
	return nil
}

// Upsert commits all rows in one batch
func (s *PebbleStore) Upsert(table string, rows ...Row) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.requireTable(table); err != nil {
		return err
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, row := range rows {
		if err := b.Set(rowKey(table, row.Key), row.Value, nil); err != nil {
			return fmt.Errorf("failed to stage %s/%s: %w", table, row.Key, err)
		}
	}
	return b.Commit(pebble.Sync)
}

func (s *PebbleStore) Get(table, key string) ([]byte, error) {
	if err := s.requireTable(table); err != nil {
		return nil, err
	}
	val, closer, err := s.db.Get(rowKey(table, key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

func (s *PebbleStore) Delete(table, key string) error {
	if err := s.requireTable(table); err != nil {
		return err
	}
	return s.db.Delete(rowKey(table, key), pebble.Sync)
}

func (s *PebbleStore) iterate(table string, lower, upper []byte, fn func(key string, value []byte) (bool, error)) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()

	prefixLen := len(tablePrefix(table))
	for iter.First(); iter.Valid(); iter.Next() {
		more, err := fn(string(iter.Key()[prefixLen:]), append([]byte(nil), iter.Value()...))
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return iter.Error()
}

func (s *PebbleStore) Count(table string) (int, error) {
	if err := s.requireTable(table); err != nil {
		return 0, err
	}
	n := 0
	err := s.iterate(table, tablePrefix(table), tableUpper(table), func(string, []byte) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}

func (s *PebbleStore) Scan(table string, limit int, fn func(key string, value []byte) error) error {
	if err := s.requireTable(table); err != nil {
		return err
	}
	seen := 0
	return s.iterate(table, tablePrefix(table), tableUpper(table), func(k string, v []byte) (bool, error) {
		if limit > 0 && seen >= limit {
			return false, nil
		}
		seen++
		return true, fn(k, v)
	})
}

// DeleteRange removes [start, end) with a single range tombstone
func (s *PebbleStore) DeleteRange(table, start, end string) (int, error) {
	if err := s.requireTable(table); err != nil {
		return 0, err
	}
	lower := rowKey(table, start)
	upper := tableUpper(table)
	if end != "" {
		upper = rowKey(table, end)
	}

	n := 0
	if err := s.iterate(table, lower, upper, func(string, []byte) (bool, error) {
		n++
		return true, nil
	}); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(lower, upper, nil); err != nil {
		return 0, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, err
	}
	return n, nil
}
