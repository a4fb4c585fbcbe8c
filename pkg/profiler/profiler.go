package profiler

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/addonkit/pkg/random"
)

// Clock returns the current wall-clock time
type Clock func() time.Time

// MemorySampler returns the current memory usage in bytes
type MemorySampler func() uint64

// HeapAlloc samples the Go heap's allocated bytes
func HeapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

// Option configures a Registry
type Option func(*Registry)

// WithClock replaces the wall clock
func WithClock(c Clock) Option {
	return func(r *Registry) {
		r.now = c
	}
}

// WithMemorySampler replaces the memory sampler
func WithMemorySampler(m MemorySampler) Option {
	return func(r *Registry) {
		r.memory = m
	}
}

// WithRandom sets the generator used for stop codes
func WithRandom(g *random.Generator) Option {
	return func(r *Registry) {
		r.random = g
	}
}

// Registry owns the named groups of one runtime
type Registry struct {
	mu     sync.Mutex
	groups map[string]*Group
	order  []string

	now    Clock
	memory MemorySampler
	random *random.Generator
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		groups: make(map[string]*Group),
		now:    time.Now,
		memory: HeapAlloc,
		random: random.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Group returns the named group, creating it on first use
func (r *Registry) Group(name string) *Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.groups[name]; ok {
		return g
	}
	g := &Group{name: name, reg: r}
	r.groups[name] = g
	r.order = append(r.order, name)
	return g
}

// Groups returns every group in creation order
func (r *Registry) Groups() []*Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Group, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.groups[name])
	}
	return out
}

// Profile starts a span in the named group
func (r *Registry) Profile(group, name string, data map[string]any) *Span {
	return r.Group(group).Profile(name, data)
}

// Group is a named set of spans
type Group struct {
	mu    sync.Mutex
	name  string
	reg   *Registry
	spans []*Span
}

// Name returns the group name
func (g *Group) Name() string {
	return g.name
}

// Profile starts a new open span in the group
func (g *Group) Profile(name string, data map[string]any) *Span {
	s := &Span{
		name:     name,
		reg:      g.reg,
		start:    g.reg.now(),
		startMem: g.reg.memory(),
	}
	if len(data) > 0 {
		s.data = mergeMaps(nil, data)
	}
	g.Add(s)
	return s
}

// Add attaches s to the group; a span is held at most once
func (g *Group) Add(s *Span) {
	g.mu.Lock()
	for _, existing := range g.spans {
		if existing == s {
			g.mu.Unlock()
			return
		}
	}
	g.spans = append(g.spans, s)
	g.mu.Unlock()

	s.setGroup(g)
}

// Remove detaches s from the group and reports whether it was present
func (g *Group) Remove(s *Span) bool {
	g.mu.Lock()
	found := false
	for i, existing := range g.spans {
		if existing == s {
			g.spans = append(g.spans[:i:i], g.spans[i+1:]...)
			found = true
			break
		}
	}
	g.mu.Unlock()

	if found && s.Group() == g {
		s.setGroup(nil)
	}
	return found
}

// Contains reports whether s belongs to the group
func (g *Group) Contains(s *Span) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, existing := range g.spans {
		if existing == s {
			return true
		}
	}
	return false
}

// Spans returns the group's spans in attachment order
func (g *Group) Spans() []*Span {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*Span(nil), g.spans...)
}

// Len returns the number of spans in the group
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.spans)
}

// MigrateAll moves every span of g into to
func (g *Group) MigrateAll(to *Group) int {
	if to == nil || to == g {
		return 0
	}
	spans := g.Spans()
	for _, s := range spans {
		s.Migrate(to)
	}
	return len(spans)
}

// SpanReport is a point-in-time view of a span
type SpanReport struct {
	Name       string         `json:"name"`
	Start      time.Time      `json:"start"`
	Elapsed    time.Duration  `json:"elapsed"`
	MemoryUsed uint64         `json:"memory_used"`
	Ended      bool           `json:"ended"`
	Locked     bool           `json:"locked"`
	Data       map[string]any `json:"data,omitempty"`
}

// GroupReport summarises a group
type GroupReport struct {
	Name  string        `json:"name"`
	Total time.Duration `json:"total"`
	Spans []SpanReport  `json:"spans"`
}

// Report returns every group with its spans, slowest group first
func (r *Registry) Report() []GroupReport {
	groups := r.Groups()
	reports := make([]GroupReport, 0, len(groups))
	for _, g := range groups {
		gr := GroupReport{Name: g.Name()}
		for _, s := range g.Spans() {
			sr := SpanReport{
				Name:       s.Name(),
				Start:      s.Start(),
				Elapsed:    s.Elapsed(),
				MemoryUsed: s.MemoryUsed(),
				Ended:      s.Ended(),
				Locked:     s.Locked(),
			}
			if data := s.Data(); len(data) > 0 {
				sr.Data = data
			}
			gr.Total += sr.Elapsed
			gr.Spans = append(gr.Spans, sr)
		}
		reports = append(reports, gr)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Total > reports[j].Total
	})
	return reports
}
