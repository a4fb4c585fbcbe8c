package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/addonkit/pkg/config"
	"github.com/cuemby/addonkit/pkg/events"
	"github.com/cuemby/addonkit/pkg/hooks"
	"github.com/cuemby/addonkit/pkg/log"
	"github.com/cuemby/addonkit/pkg/metrics"
	"github.com/cuemby/addonkit/pkg/options"
	"github.com/cuemby/addonkit/pkg/profiler"
	"github.com/cuemby/addonkit/pkg/services"
	"github.com/cuemby/addonkit/pkg/storage"
	"github.com/rs/zerolog"
)

// Lifecycle channels applied by Start and Shutdown
const (
	ChannelStarted  = "addonkit.started"
	ChannelShutdown = "addonkit.shutdown"
)

// LifecycleGroup is the profiler group holding the start and shutdown spans
const LifecycleGroup = "lifecycle"

// ErrShutdown is returned by Start after Shutdown
var ErrShutdown = errors.New("manager is shut down")

// Option customises a Manager
type Option func(*settings)

type settings struct {
	output      io.Writer
	version     string
	profilerOps []profiler.Option
}

// WithOutput sends console log output to w instead of stdout
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		s.output = w
	}
}

// WithVersion sets the version reported by the health checker
func WithVersion(v string) Option {
	return func(s *settings) {
		s.version = v
	}
}

// WithProfilerOptions passes options to the profiler registry
func WithProfilerOptions(opts ...profiler.Option) Option {
	return func(s *settings) {
		s.profilerOps = append(s.profilerOps, opts...)
	}
}

// Manager owns one runtime: storage, logging, the dispatcher, the options
// store, the profiler and the service registry
type Manager struct {
	cfg *config.Config

	store      storage.Store
	sink       *log.TableSink
	logger     zerolog.Logger
	dispatcher *events.Dispatcher
	options    *options.Store
	profiler   *profiler.Registry
	health     *metrics.HealthChecker
	services   *services.Registry
	hooks      *hooks.Service

	mu       sync.Mutex
	started  bool
	shutdown bool
}

// New opens storage and builds every component from cfg. The hook registry
// is registered and the declared hooks are queued; nothing runs until Start.
func New(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	set := settings{version: "dev"}
	for _, opt := range opts {
		opt(&set)
	}

	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	m := &Manager{
		cfg:   cfg,
		store: store,
	}

	level, _ := log.ParseLevel(cfg.Log.Level)
	logCfg := log.Config{
		Level:      level,
		JSONOutput: cfg.Log.JSON,
		Output:     set.output,
	}
	if cfg.Log.Table.Enabled {
		sink, err := log.NewTableSink(store, log.DefaultTable, cfg.Log.Table.MaxRows)
		if err != nil {
			store.Close()
			return nil, err
		}
		sinkLevel, _ := log.ParseLevel(cfg.Log.Table.Level)
		m.sink = sink
		logCfg.Sink = sink
		logCfg.SinkLevel = sinkLevel
	}
	m.logger = log.New(logCfg)

	m.dispatcher = events.NewDispatcher(m.logger)
	m.options, err = options.New(store, m.logger, options.Config{
		QueueMax:  cfg.Options.QueueMax,
		CacheMax:  cfg.Options.CacheMax,
		AbsentMax: cfg.Options.AbsentMax,
		BatchSize: cfg.Options.BatchSize,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create options store: %w", err)
	}
	m.profiler = profiler.NewRegistry(set.profilerOps...)
	m.health = metrics.NewHealthChecker(set.version, hooks.Key)
	m.services = services.NewRegistry(m, m.health)

	if err := m.registerHooks(cfg.Hooks); err != nil {
		store.Close()
		return nil, err
	}

	logger := log.WithComponent(m.logger, "manager")
	logger.Info().
		Str("backend", cfg.Storage.Backend).
		Str("data_dir", cfg.Storage.DataDir).
		Int("hooks", len(cfg.Hooks)).
		Msg("Manager created")
	return m, nil
}

func (m *Manager) registerHooks(declared []config.HookConfig) error {
	if err := m.services.Register(hooks.Key, hooks.Factory); err != nil {
		return err
	}
	svc, err := m.services.Get(hooks.Key)
	if err != nil {
		return err
	}
	m.hooks = svc.(*hooks.Service)

	for _, h := range declared {
		err := m.hooks.Declare(hooks.Declaration{
			Name:    h.Name,
			Channel: h.Channel,
			Action:  h.Action,
			Once:    h.Once,
			When:    h.When,
			Args:    h.Args,
		})
		if err != nil {
			return fmt.Errorf("failed to declare hook: %w", err)
		}
	}
	return nil
}

// Start runs every registered service under the lifecycle/start span, then
// applies ChannelStarted. Service failures are returned joined; the channel
// is applied regardless. A second Start does nothing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return ErrShutdown
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	logger := log.WithComponent(m.logger, "manager")
	span := m.profiler.Profile(LifecycleGroup, "start", nil)
	code := span.NewStopCode()

	err := m.services.RunAll(ctx)
	span.Stop(map[string]any{
		"services": len(m.services.Keys()),
		"ok":       err == nil,
	}, code)

	if err != nil {
		logger.Error().Err(err).Msg("Some services failed to start")
	} else {
		logger.Info().Dur("elapsed", span.Elapsed()).Msg("Manager started")
	}

	m.dispatcher.Apply(ctx, ChannelStarted, nil)
	return err
}

// Apply passes payload through the listeners of channel
func (m *Manager) Apply(ctx context.Context, channel string, payload any, args ...any) any {
	return m.dispatcher.Apply(ctx, channel, payload, args...)
}

// Shutdown applies ChannelShutdown, closes the options store (flushing the
// write queue) and closes storage. Later calls return nil.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	m.mu.Unlock()

	logger := log.WithComponent(m.logger, "manager")
	span := m.profiler.Profile(LifecycleGroup, "shutdown", nil)
	m.dispatcher.Apply(context.Background(), ChannelShutdown, nil)

	var errs []error
	if err := m.options.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close options store: %w", err))
	}
	span.Stop(map[string]any{"pending": m.options.Pending()}, "")
	logger.Info().Dur("elapsed", span.Elapsed()).Msg("Manager shut down")

	if m.sink != nil {
		m.sink.Close()
	}
	if err := m.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}
	return errors.Join(errs...)
}

// Dispatcher returns the shared event dispatcher
func (m *Manager) Dispatcher() *events.Dispatcher {
	return m.dispatcher
}

// Options returns the deferred options store
func (m *Manager) Options() *options.Store {
	return m.options
}

// Profiler returns the profiler registry
func (m *Manager) Profiler() *profiler.Registry {
	return m.profiler
}

// Logger returns the root logger
func (m *Manager) Logger() zerolog.Logger {
	return m.logger
}

// Services returns the service registry; register extra services before Start
func (m *Manager) Services() *services.Registry {
	return m.services
}

// Hooks returns the hook registry service
func (m *Manager) Hooks() *hooks.Service {
	return m.hooks
}

// Health returns the component health checker
func (m *Manager) Health() *metrics.HealthChecker {
	return m.health
}

// Logs returns the persisted log table, or nil when the table sink is off
func (m *Manager) Logs() *log.TableSink {
	return m.sink
}

// Config returns the configuration the manager was built from
func (m *Manager) Config() *config.Config {
	return m.cfg
}
