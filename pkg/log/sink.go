package log

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/cuemby/addonkit/pkg/storage"
	"github.com/google/uuid"
)

// DefaultTable is the table log lines are persisted to
const DefaultTable = "logs"

// TableSink persists log lines as rows of a storage table. Row keys are
// UUIDv7 strings, so key order is write order and trimming is a single range
// delete from the start of the table.
type TableSink struct {
	store   storage.Store
	table   string
	maxRows int

	mu     sync.Mutex
	closed bool
}

// Entry is one persisted log line
type Entry struct {
	Key  string
	Line []byte
}

// NewTableSink ensures table exists and returns a sink keeping at most
// maxRows lines (maxRows <= 0 keeps everything)
func NewTableSink(store storage.Store, table string, maxRows int) (*TableSink, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := store.EnsureTable(table); err != nil {
		return nil, fmt.Errorf("failed to create log table: %w", err)
	}
	return &TableSink{store: store, table: table, maxRows: maxRows}, nil
}

// Write stores p as one row. It never reports failure to the logger.
func (s *TableSink) Write(p []byte) (int, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return len(p), nil
	}

	line := bytes.TrimRight(p, "\n")
	row := storage.Row{Key: id.String(), Value: append([]byte(nil), line...)}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return len(p), nil
	}
	if err := s.store.Upsert(s.table, row); err != nil {
		return len(p), nil
	}
	_, _ = s.trimLocked()
	return len(p), nil
}

// Close stops persisting lines. The store stays open; its owner closes it
// after the sink.
func (s *TableSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Trim removes the oldest rows beyond maxRows and returns how many went
func (s *TableSink) Trim() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trimLocked()
}

func (s *TableSink) trimLocked() (int, error) {
	if s.maxRows <= 0 {
		return 0, nil
	}
	n, err := s.store.Count(s.table)
	if err != nil || n <= s.maxRows {
		return 0, err
	}

	// The first key to keep bounds the range delete
	excess := n - s.maxRows
	var boundary string
	seen := 0
	err = s.store.Scan(s.table, excess+1, func(key string, _ []byte) error {
		seen++
		if seen == excess+1 {
			boundary = key
		}
		return nil
	})
	if err != nil || boundary == "" {
		return 0, err
	}
	return s.store.DeleteRange(s.table, "", boundary)
}

// Tail returns the newest limit entries, oldest first (limit <= 0 returns all)
func (s *TableSink) Tail(limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []Entry
	err := s.store.Scan(s.table, 0, func(key string, value []byte) error {
		entries = append(entries, Entry{Key: key, Line: value})
		if limit > 0 && len(entries) > limit {
			entries = entries[1:]
		}
		return nil
	})
	return entries, err
}
