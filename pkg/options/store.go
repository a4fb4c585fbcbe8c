package options

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cuemby/addonkit/pkg/log"
	"github.com/cuemby/addonkit/pkg/metrics"
	"github.com/cuemby/addonkit/pkg/serial"
	"github.com/cuemby/addonkit/pkg/storage"
	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/rs/zerolog"
)

// Table is the storage table options persist to
const Table = "options"

// Config bounds the in-memory tiers of the store
type Config struct {
	QueueMax  int // pending writes that trigger a flush
	CacheMax  int // confirmed values kept in memory
	AbsentMax int // keys remembered as missing from storage
	BatchSize int // rows per upsert during a flush
}

// DefaultConfig returns the default bounds
func DefaultConfig() Config {
	return Config{
		QueueMax:  50,
		CacheMax:  100,
		AbsentMax: 100,
		BatchSize: 25,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.QueueMax <= 0 {
		c.QueueMax = def.QueueMax
	}
	if c.CacheMax <= 0 {
		c.CacheMax = def.CacheMax
	}
	if c.AbsentMax <= 0 {
		c.AbsentMax = def.AbsentMax
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	return c
}

// ErrFlushFailed is returned by Close when the final flush dropped values
var ErrFlushFailed = errors.New("options flush failed")

// Stats counts store activity since creation
type Stats struct {
	Lookups     int // storage reads performed by Get/Has
	Flushes     int
	FlushedRows int
	FlushErrors int // queued values that never reached storage
}

// record is the persisted row value
type record struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type pending struct {
	name  string
	value any
}

// Store is a write-behind key/value cache over the options table.
//
// Reads resolve write-queue → confirmed cache → negative cache → storage.
// Writes are queued and flushed in batches when the queue fills or on Close,
// which owners must call on every exit path.
type Store struct {
	mu     sync.Mutex
	store  storage.Store
	cfg    Config
	logger zerolog.Logger

	queue  map[string]*pending
	order  []string
	cache  *simplelru.LRU
	absent *simplelru.LRU

	closed bool
	stats  Stats
}

// New creates a store over backing, creating the options table if needed
func New(backing storage.Store, logger zerolog.Logger, cfg Config) (*Store, error) {
	cfg = cfg.withDefaults()

	if err := backing.EnsureTable(Table); err != nil {
		return nil, fmt.Errorf("failed to create options table: %w", err)
	}

	cache, err := simplelru.NewLRU(cfg.CacheMax, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create option cache: %w", err)
	}
	absent, err := simplelru.NewLRU(cfg.AbsentMax, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create absent cache: %w", err)
	}

	return &Store{
		store:  backing,
		cfg:    cfg,
		logger: log.WithComponent(logger, "options"),
		queue:  make(map[string]*pending),
		cache:  cache,
		absent: absent,
	}, nil
}

// Normalize returns the lookup key for an option name
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Get returns the value for name and whether it exists
func (s *Store) Get(name string) (any, bool) {
	key := Normalize(name)
	if key == "" {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.queue[key]; ok {
		metrics.OptionLookupsTotal.WithLabelValues(metrics.SourceQueue).Inc()
		return p.value, true
	}
	if v, ok := s.cache.Get(key); ok {
		metrics.OptionLookupsTotal.WithLabelValues(metrics.SourceCache).Inc()
		return v, true
	}
	if s.absent.Contains(key) {
		metrics.OptionLookupsTotal.WithLabelValues(metrics.SourceAbsent).Inc()
		return nil, false
	}

	s.stats.Lookups++
	data, err := s.store.Get(Table, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		metrics.OptionLookupsTotal.WithLabelValues(metrics.SourceMiss).Inc()
		s.absent.Add(key, struct{}{})
		return nil, false
	case err != nil:
		// Degrade to not found; leave it out of the negative cache so a
		// later read can retry
		metrics.OptionLookupsTotal.WithLabelValues(metrics.SourceError).Inc()
		s.logger.Warn().Err(err).Str("option", key).Msg("Option lookup failed")
		return nil, false
	}

	metrics.OptionLookupsTotal.WithLabelValues(metrics.SourceStorage).Inc()
	v := decode(data)
	s.cache.Add(key, v)
	return v, true
}

func decode(data []byte) any {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return serial.Unserialize(string(data))
	}
	return serial.Unserialize(rec.Value)
}

// Has reports whether name exists
func (s *Store) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Set queues value under name. It returns false for empty names, values that
// cannot be serialized, and after Close.
func (s *Store) Set(name string, value any) bool {
	key := Normalize(name)
	if key == "" {
		return false
	}

	v, err := serial.Check(value)
	if err != nil {
		s.logger.Warn().Err(err).Str("option", key).Msg("Rejected option value")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Warn().Str("option", key).Msg("Option set after close")
		return false
	}

	if p, ok := s.queue[key]; ok {
		p.name = name
		p.value = v
	} else {
		s.queue[key] = &pending{name: name, value: v}
		s.order = append(s.order, key)
	}

	// The queue now shadows both caches
	s.cache.Remove(key)
	s.absent.Remove(key)

	if len(s.queue) >= s.cfg.QueueMax {
		s.flushLocked()
	}
	return true
}

// Delete removes name from storage immediately and forgets any queued or
// cached value. It returns false when the storage delete failed.
func (s *Store) Delete(name string) bool {
	key := Normalize(name)
	if key == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queue[key]; ok {
		delete(s.queue, key)
		s.order = removeKey(s.order, key)
	}
	s.cache.Remove(key)

	if err := s.store.Delete(Table, key); err != nil {
		s.logger.Error().Err(err).Str("option", key).Msg("Failed to delete option")
		return false
	}
	s.absent.Add(key, struct{}{})
	return true
}

func removeKey(keys []string, key string) []string {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}

// Flush writes every queued value to storage
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

// flushLocked writes the queue and returns how many values were dropped
func (s *Store) flushLocked() int {
	if len(s.queue) == 0 {
		return 0
	}

	// Flushed values move into the confirmed cache, so make room first,
	// oldest confirmed entries going first
	for excess := s.cache.Len() + len(s.queue) - s.cfg.CacheMax; excess > 0 && s.cache.Len() > 0; excess-- {
		s.cache.RemoveOldest()
	}

	keys, entries := s.order, s.queue
	s.order = nil
	s.queue = make(map[string]*pending)

	flushed, dropped := 0, 0
	for start := 0; start < len(keys); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(keys) {
			end = len(keys)
		}

		rows := make([]storage.Row, 0, end-start)
		written := make([]string, 0, end-start)
		for _, key := range keys[start:end] {
			p := entries[key]
			value, err := serial.Serialize(p.value)
			if err != nil {
				metrics.OptionFlushErrorsTotal.Inc()
				dropped++
				s.logger.Error().Err(err).Str("option", key).Msg("Skipping unserializable option")
				continue
			}
			data, err := json.Marshal(record{Name: p.name, Value: value})
			if err != nil {
				metrics.OptionFlushErrorsTotal.Inc()
				dropped++
				s.logger.Error().Err(err).Str("option", key).Msg("Skipping unencodable option")
				continue
			}
			rows = append(rows, storage.Row{Key: key, Value: data})
			written = append(written, key)
		}
		if len(rows) == 0 {
			continue
		}

		if err := s.store.Upsert(Table, rows...); err != nil {
			metrics.OptionFlushErrorsTotal.Inc()
			dropped += len(rows)
			s.logger.Error().Err(err).Int("rows", len(rows)).Msg("Failed to flush option batch")
			continue
		}

		for _, key := range written {
			s.cache.Add(key, entries[key].value)
		}
		flushed += len(rows)
	}

	s.stats.Flushes++
	s.stats.FlushedRows += flushed
	s.stats.FlushErrors += dropped
	metrics.OptionFlushesTotal.Inc()
	metrics.OptionFlushedRowsTotal.Add(float64(flushed))

	s.logger.Debug().
		Int("queued", len(keys)).
		Int("flushed", flushed).
		Msg("Flushed option queue")
	return dropped
}

// Close performs the final flush and reports values it could not write.
// Later Set calls are rejected; reads keep working until the backing storage
// is closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	dropped := s.flushLocked()
	s.closed = true
	if dropped > 0 {
		return fmt.Errorf("%w: %d option(s) not written", ErrFlushFailed, dropped)
	}
	return nil
}

// Pending returns the number of queued writes
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stats returns a snapshot of store activity
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
