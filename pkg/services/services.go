package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/cuemby/addonkit/pkg/events"
	"github.com/cuemby/addonkit/pkg/log"
	"github.com/cuemby/addonkit/pkg/metrics"
	"github.com/cuemby/addonkit/pkg/options"
	"github.com/cuemby/addonkit/pkg/profiler"
	"github.com/rs/zerolog"
)

var (
	// ErrUnknownService is returned by Get for a key that was never registered
	ErrUnknownService = errors.New("unknown service")

	// ErrDuplicateService is returned by Register when the key is taken
	ErrDuplicateService = errors.New("service already registered")

	// ErrInvalidService is returned by Register for an empty key or nil factory
	ErrInvalidService = errors.New("invalid service registration")

	// ErrCycle is returned when factories request each other recursively
	ErrCycle = errors.New("service dependency cycle")
)

// ProfileGroup is the profiler group that receives one span per service run
const ProfileGroup = "services"

// Host is the runtime a service is built against
type Host interface {
	Dispatcher() *events.Dispatcher
	Options() *options.Store
	Profiler() *profiler.Registry
	Logger() zerolog.Logger
}

// Service is a value produced by a Factory
type Service any

// Runner is a service with startup work run by RunAll
type Runner interface {
	Run(ctx context.Context) error
}

// Factory builds a service against a host
type Factory func(Host) (Service, error)

// Registry maps service keys to factories and caches the instances they build
type Registry struct {
	mu        sync.Mutex
	host      Host
	health    *metrics.HealthChecker
	factories map[string]Factory
	order     []string
	instances map[string]Service
	building  map[string]bool
	logger    zerolog.Logger
}

// NewRegistry creates an empty registry. health may be nil.
func NewRegistry(host Host, health *metrics.HealthChecker) *Registry {
	return &Registry{
		host:      host,
		health:    health,
		factories: make(map[string]Factory),
		instances: make(map[string]Service),
		building:  make(map[string]bool),
		logger:    log.WithComponent(host.Logger(), "services"),
	}
}

// Register adds a factory under key
func (r *Registry) Register(key string, factory Factory) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidService)
	}
	if factory == nil {
		return fmt.Errorf("%w: nil factory for %q", ErrInvalidService, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateService, key)
	}
	r.factories[key] = factory
	r.order = append(r.order, key)
	return nil
}

// Keys returns registered keys in registration order
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Has reports whether key is registered
func (r *Registry) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[key]
	return ok
}

// Get returns the instance for key, building it on first use. A factory error
// is returned and nothing is cached, so a later Get retries.
func (r *Registry) Get(key string) (Service, error) {
	r.mu.Lock()
	if svc, ok := r.instances[key]; ok {
		r.mu.Unlock()
		return svc, nil
	}
	factory, ok := r.factories[key]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, key)
	}
	if r.building[key] {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCycle, key)
	}
	r.building[key] = true
	r.mu.Unlock()

	// Factories may call Get for their own dependencies
	svc, err := factory(r.host)

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.building, key)
	if err != nil {
		return nil, fmt.Errorf("failed to build service %s: %w", key, err)
	}
	r.instances[key] = svc
	r.logger.Debug().Str("service", key).Msg("Service instantiated")
	return svc, nil
}

// RunAll builds every registered service in registration order and runs the
// ones that implement Runner. A failing service is logged and reported as
// unhealthy; the remaining services still run. All failures are returned
// joined.
func (r *Registry) RunAll(ctx context.Context) error {
	var errs []error
	for _, key := range r.Keys() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		svc, err := r.Get(key)
		if err != nil {
			r.report(key, err)
			errs = append(errs, err)
			continue
		}
		runner, ok := svc.(Runner)
		if !ok {
			continue
		}

		if err := r.run(ctx, key, runner); err != nil {
			err = fmt.Errorf("service %s failed: %w", key, err)
			r.report(key, err)
			errs = append(errs, err)
			continue
		}
		r.report(key, nil)
	}
	return errors.Join(errs...)
}

func (r *Registry) run(ctx context.Context, key string, runner Runner) (err error) {
	span := r.host.Profiler().Profile(ProfileGroup, key, nil)
	timer := metrics.NewTimer()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().
				Str("service", key).
				Str("panic", fmt.Sprint(p)).
				Bytes("stack", debug.Stack()).
				Msg("Service panicked")
			err = fmt.Errorf("panic: %v", p)
		}
		timer.ObserveDurationVec(metrics.ServiceRunDuration, key)
		span.Stop(map[string]any{"ok": err == nil}, "")
	}()

	return runner.Run(ctx)
}

func (r *Registry) report(key string, err error) {
	logger := log.WithService(r.logger, key)
	if err != nil {
		logger.Error().Err(err).Msg("Service run failed")
		if r.health != nil {
			r.health.Update(key, false, err.Error())
		}
		return
	}
	logger.Info().Msg("Service started")
	if r.health != nil {
		r.health.Update(key, true, "")
	}
}
