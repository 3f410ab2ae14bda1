// Package manager keeps a registry of named loggers.
//
// A name resolves to a DriverConfig, and the config's Driver to a Factory
// that builds the logger. Built loggers are cached, so asking twice for the
// same name (and override) returns the same *logger.Logger.
package manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/predatorx7/logtopus/pkg/diag"
	"github.com/predatorx7/logtopus/pkg/logctx"
	"github.com/predatorx7/logtopus/pkg/logger"
	"go.uber.org/zap"
)

// ErrUnknownDriver is returned for names that are neither a registered
// driver nor a stack.
var ErrUnknownDriver = errors.New("unknown log driver")

const DefaultDriver = "console"

// Factory builds a logger from a resolved config. base carries the logger
// settings already decoded from cfg; the factory adds transports.
type Factory func(cfg DriverConfig, base logger.Config) (*logger.Logger, error)

type instance struct {
	logger *logger.Logger
	config DriverConfig
}

type Manager struct {
	mu            sync.Mutex
	factories     map[string]Factory
	drivers       map[string]DriverConfig
	stacks        map[string][]string
	instances     map[string]instance
	stackCache    map[string]*logger.Logger
	defaultDriver string
	store         *logctx.Store
	errLog        *zap.Logger
}

type Option func(*Manager)

// WithStore makes every logger built by the manager share store.
func WithStore(store *logctx.Store) Option {
	return func(m *Manager) { m.store = store }
}

// WithErrorLog sets the side-channel logger handed to loggers and transports.
func WithErrorLog(l *zap.Logger) Option {
	return func(m *Manager) { m.errLog = l }
}

func WithDefaultDriver(name string) Option {
	return func(m *Manager) { m.defaultDriver = name }
}

func New(opts ...Option) *Manager {
	m := &Manager{
		factories:     make(map[string]Factory),
		drivers:       make(map[string]DriverConfig),
		stacks:        make(map[string][]string),
		instances:     make(map[string]instance),
		stackCache:    make(map[string]*logger.Logger),
		defaultDriver: DefaultDriver,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = logctx.Default()
	}
	m.errLog = diag.Or(m.errLog)

	for name, f := range builtins {
		m.factories[name] = f
		m.drivers[name] = DriverConfig{Driver: name}
	}
	return m
}

// Extend registers a driver factory under name, replacing any existing one.
// The name also becomes usable with Instance.
func (m *Manager) Extend(name string, f Factory) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[name] = f
	if _, ok := m.drivers[name]; !ok {
		m.drivers[name] = DriverConfig{Driver: name}
	}
	return m
}

// Register binds name to cfg. cfg.Driver must name a registered factory.
func (m *Manager) Register(name string, cfg DriverConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg.Driver == "" {
		cfg.Driver = name
	}
	if _, ok := m.factories[cfg.Driver]; !ok {
		return fmt.Errorf("driver %q: %w: %s", name, ErrUnknownDriver, cfg.Driver)
	}
	m.drivers[name] = cfg
	return nil
}

// Instance returns the logger for name, building it on first use. With an
// override the registered config is merged with it and the result is cached
// separately.
func (m *Manager) Instance(name string, override ...DriverConfig) (*logger.Logger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(override) == 0 {
		if _, isDriver := m.drivers[name]; !isDriver {
			if members, isStack := m.stacks[name]; isStack {
				return m.stack(name, members)
			}
		}
	}
	return m.instance(name, override...)
}

func (m *Manager) instance(name string, override ...DriverConfig) (*logger.Logger, error) {
	key, err := cacheKey(name, override)
	if err != nil {
		return nil, err
	}
	if inst, ok := m.instances[key]; ok {
		return inst.logger, nil
	}

	cfg, ok := m.drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, name)
	}
	for _, o := range override {
		cfg = cfg.Merge(o)
	}
	factory, ok := m.factories[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}

	base, err := cfg.loggerConfig()
	if err != nil {
		return nil, fmt.Errorf("driver %q: %w", name, err)
	}
	base.Store = m.store
	base.ErrorLog = m.errLog

	l, err := factory(cfg, base)
	if err != nil {
		return nil, fmt.Errorf("driver %q: %w", name, err)
	}
	m.instances[key] = instance{logger: l, config: cfg}
	m.errLog.Debug("created logger", zap.String("name", name), zap.String("driver", cfg.Driver))
	return l, nil
}

func cacheKey(name string, override []DriverConfig) (string, error) {
	if len(override) == 0 {
		return name, nil
	}
	var v any = override
	if len(override) == 1 {
		v = override[0]
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode override for %q: %w", name, err)
	}
	return name + ":" + string(data), nil
}

// Stack returns a logger fanning out to the transports of every listed
// driver. The first driver supplies the logger settings. Without drivers the
// stack must have been defined by Load or an earlier Stack call. Stacks are cached by name and member
// list, so redefining a name with other drivers builds a new stack.
func (m *Manager) Stack(name string, drivers ...string) (*logger.Logger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(drivers) == 0 {
		drivers = m.stacks[name]
	}
	l, err := m.stack(name, drivers)
	if err != nil {
		return nil, err
	}
	m.stacks[name] = slices.Clone(drivers)
	return l, nil
}

func (m *Manager) stack(name string, drivers []string) (*logger.Logger, error) {
	key := "stack:" + name + ":" + strings.Join(drivers, ",")
	if l, ok := m.stackCache[key]; ok {
		return l, nil
	}
	if len(drivers) == 0 {
		return nil, fmt.Errorf("%w: stack %s", ErrUnknownDriver, name)
	}

	first, err := m.instance(drivers[0])
	if err != nil {
		return nil, err
	}
	stacked := first.Clone()
	for _, d := range drivers[1:] {
		l, err := m.instance(d)
		if err != nil {
			return nil, err
		}
		for _, t := range l.Transports() {
			stacked.AddTransport(t)
		}
	}
	m.stackCache[key] = stacked
	return stacked, nil
}

func (m *Manager) SetDefaultDriver(name string) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultDriver = name
	return m
}

func (m *Manager) DefaultDriver() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultDriver
}

// Default returns the logger for the default driver.
func (m *Manager) Default() (*logger.Logger, error) {
	return m.Instance(m.DefaultDriver())
}

// Config returns the config the cached logger for name (and override) was
// built with.
func (m *Manager) Config(name string, override ...DriverConfig) (DriverConfig, error) {
	key, err := cacheKey(name, override)
	if err != nil {
		return DriverConfig{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[key]
	if !ok {
		return DriverConfig{}, fmt.Errorf("%w: no instance %s", ErrUnknownDriver, name)
	}
	return inst.config, nil
}

// Drivers lists the registered driver names, sorted.
func (m *Manager) Drivers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.drivers))
}

// Close closes the transports of every cached logger and empties the cache.
// Stacks only hold transports of cached instances, so they are covered.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for key, inst := range m.instances {
		if err := inst.logger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	clear(m.instances)
	clear(m.stackCache)
	return errors.Join(errs...)
}
