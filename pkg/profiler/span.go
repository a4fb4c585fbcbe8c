package profiler

import (
	"sync"
	"time"

	"github.com/cuemby/addonkit/pkg/metrics"
)

// Span is one named timing and memory measurement.
//
// A span starts open, may be ended once (again only with force while
// unlocked), and may be locked after it has ended to freeze its data. Misuse
// such as a wrong stop token or mutating a locked span is silently ignored.
type Span struct {
	mu sync.Mutex

	name  string
	group *Group
	reg   *Registry

	start    time.Time
	startMem uint64

	ended   bool
	end     time.Time
	endMem  uint64
	elapsed time.Duration

	memUsed     uint64
	memComputed bool

	data     map[string]any
	locked   bool
	stopCode string
}

// Name returns the span name
func (s *Span) Name() string {
	return s.name
}

// Group returns the group the span currently belongs to
func (s *Span) Group() *Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.group
}

// Start returns the wall-clock start time
func (s *Span) Start() time.Time {
	return s.start
}

// Ended reports whether End has taken effect
func (s *Span) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Locked reports whether the span's data is frozen
func (s *Span) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// SetStopCode requires code to be passed to End and Stop from now on
func (s *Span) SetStopCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCode = code
}

// NewStopCode generates a random stop code, sets it and returns it
func (s *Span) NewStopCode() string {
	code := s.reg.random.Token(16)
	s.SetStopCode(code)
	return code
}

// End records the end time and memory. Without force it only acts on an open
// span; with force it re-ends an unlocked span. data is merged recursively.
// When a stop code is set, stopToken must match or the call does nothing.
func (s *Span) End(force bool, data map[string]any, stopToken string) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopCode != "" && s.stopCode != stopToken {
		return s
	}
	if s.ended && (!force || s.locked) {
		return s
	}

	s.ended = true
	s.end = s.reg.now()
	s.endMem = s.reg.memory()
	s.elapsed = s.end.Sub(s.start)
	s.memComputed = false
	if len(data) > 0 {
		s.data = mergeMaps(s.data, data)
	}

	group := "unknown"
	if s.group != nil {
		group = s.group.name
	}
	metrics.ProfileSpanDuration.WithLabelValues(group).Observe(s.elapsed.Seconds())
	return s
}

// Stop ends the span (without force) and locks it
func (s *Span) Stop(data map[string]any, stopToken string) *Span {
	s.End(false, data, stopToken)
	s.Lock()
	return s
}

// Lock freezes the span's data. It only takes effect on an ended span and
// reports whether the span is locked afterwards.
func (s *Span) Lock() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		s.locked = true
	}
	return s.locked
}

// Elapsed returns the measured duration, or the live duration of an open span
func (s *Span) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return s.elapsed
	}
	return s.reg.now().Sub(s.start)
}

// MemoryUsed returns max(0, end - start) memory, computed once after the span
// ends, or against current memory for an open span
func (s *Span) MemoryUsed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ended {
		return memDelta(s.startMem, s.reg.memory())
	}
	if !s.memComputed {
		s.memUsed = memDelta(s.startMem, s.endMem)
		s.memComputed = true
	}
	return s.memUsed
}

func memDelta(start, end uint64) uint64 {
	if end <= start {
		return 0
	}
	return end - start
}

// Data returns a copy of the span's data
func (s *Span) Data() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyMap(s.data)
}

// SetData sets one data key unless the span is locked
func (s *Span) SetData(key string, value any) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locked {
		return s
	}
	if s.data == nil {
		s.data = make(map[string]any)
	}
	s.data[key] = value
	return s
}

// MergeData merges data recursively unless the span is locked
func (s *Span) MergeData(data map[string]any) *Span {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.locked {
		s.data = mergeMaps(s.data, data)
	}
	return s
}

// ClearData removes all data unless the span is locked
func (s *Span) ClearData() *Span {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.locked {
		s.data = nil
	}
	return s
}

// Migrate moves the span into group; it does nothing if already there
func (s *Span) Migrate(group *Group) *Span {
	if group == nil {
		return s
	}
	current := s.Group()
	if current == group {
		return s
	}
	if current != nil {
		current.Remove(s)
	}
	group.Add(s)
	return s
}

func (s *Span) setGroup(g *Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.group = g
}

// mergeMaps merges src into dst, descending into nested maps
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = mergeMaps(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			dst[k] = mergeMaps(nil, srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = copyMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
