package hooks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cuemby/addonkit/pkg/events"
	"github.com/cuemby/addonkit/pkg/log"
	"github.com/cuemby/addonkit/pkg/services"
	"github.com/rs/zerolog"
)

var (
	// ErrDuplicateHook is returned when a hook name is already queued
	ErrDuplicateHook = errors.New("hook already queued")

	// ErrInvalidHook is returned for a hook missing its name, channel or
	// handler, or with a condition that does not compile
	ErrInvalidHook = errors.New("invalid hook")
)

const (
	// Key is the service key the hook registry is registered under
	Key = "hooks"

	// ProfileGroup receives one span per hook invocation
	ProfileGroup = "hooks"
)

// Hook binds a handler to a channel, optionally guarded by a CEL condition
// over the variables channel (string) and payload (dyn)
type Hook struct {
	Name    string
	Channel string
	Once    bool
	When    string
	Handler events.Handler
}

type entry struct {
	hook     Hook
	cond     condition
	id       events.ListenerID
	attached bool
}

// Service queues hooks and attaches them to the host's dispatcher when run
type Service struct {
	mu      sync.Mutex
	host    services.Host
	entries map[string]*entry
	order   []string
	running bool
	logger  zerolog.Logger
}

// New creates an empty hook registry for host
func New(host services.Host) *Service {
	return &Service{
		host:    host,
		entries: make(map[string]*entry),
		logger:  log.WithComponent(host.Logger(), "hooks"),
	}
}

// Factory registers the hook registry with a services.Registry
func Factory(host services.Host) (services.Service, error) {
	return New(host), nil
}

// Queue validates h and compiles its condition. Before Run the hook waits;
// after Run it is attached immediately.
func (s *Service) Queue(h Hook) error {
	switch {
	case h.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidHook)
	case h.Channel == "":
		return fmt.Errorf("%w: %s has no channel", ErrInvalidHook, h.Name)
	case h.Handler == nil:
		return fmt.Errorf("%w: %s has no handler", ErrInvalidHook, h.Name)
	}

	cond, err := newCondition(h.When)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidHook, h.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[h.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHook, h.Name)
	}
	e := &entry{hook: h, cond: cond}
	s.entries[h.Name] = e
	s.order = append(s.order, h.Name)

	if s.running {
		s.attachLocked(e)
	}
	return nil
}

// Run attaches every queued hook. It is safe to call more than once.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = true
	for _, name := range s.order {
		e := s.entries[name]
		if !e.attached {
			s.attachLocked(e)
		}
	}
	s.logger.Info().Int("hooks", len(s.order)).Msg("Hooks attached")
	return nil
}

func (s *Service) attachLocked(e *entry) {
	e.id = s.host.Dispatcher().Attach(e.hook.Channel, s.wrap(e), e.hook.Once)
	e.attached = true
	s.logger.Debug().
		Str("hook", e.hook.Name).
		Str("channel", e.hook.Channel).
		Bool("once", e.hook.Once).
		Msg("Hook attached")
}

// Remove detaches and forgets the named hook
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return false
	}
	if e.attached {
		s.host.Dispatcher().Detach(e.hook.Channel, e.id)
	}
	delete(s.entries, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Queued returns every known hook name in queue order
func (s *Service) Queued() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Attached returns the names of hooks currently attached to the dispatcher
func (s *Service) Attached() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for _, name := range s.order {
		if s.entries[name].attached {
			names = append(names, name)
		}
	}
	return names
}

// wrap adapts a hook to a dispatcher handler that evaluates the condition and
// profiles the invocation
func (s *Service) wrap(e *entry) events.Handler {
	return func(ctx context.Context, payload any, args ...any) (out any, err error) {
		if e.hook.Once {
			// The dispatcher has already dropped a one-shot listener
			s.mu.Lock()
			e.attached = false
			s.mu.Unlock()
		}

		span := s.host.Profiler().Profile(ProfileGroup, "hook:"+e.hook.Name, map[string]any{
			"channel": e.hook.Channel,
		})
		result := map[string]any{}
		defer func() {
			span.Stop(result, "")
		}()

		ok, err := e.cond.Eval(e.hook.Channel, payload)
		if err != nil {
			result["error"] = err.Error()
			return payload, err
		}
		if !ok {
			result["skipped"] = true
			return payload, nil
		}

		out, err = e.hook.Handler(ctx, payload, args...)
		if err != nil {
			result["error"] = err.Error()
		}
		return out, err
	}
}

