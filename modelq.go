// Package modelq is a model-driven data access engine: models are named
// entity definitions registered at runtime, queries are built through a
// fluent Queryable bound to one model, and execution flows through an
// ordered hook pipeline before being dispatched to a backing-store
// adapter. Association expansion attaches related objects to result rows
// after execution.
package modelq

import (
	"fmt"
	"sync"

	"github.com/modelkit/modelq/logger"
	"github.com/modelkit/modelq/schema"
)

// Config configures an engine instance.
type Config struct {
	Logger logger.Interface
	Naming schema.NamingStrategy
	// DefaultPageSize bounds List when no take was set; defaults to 25.
	DefaultPageSize int
	// DisableMigrations skips the migrate-once step before execution.
	DisableMigrations bool
}

// DB is the engine handle: it owns the model registry, the adapter, the
// hook sets and the migration cache.
type DB struct {
	adapter  Adapter
	registry *schema.Registry
	logger   logger.Interface
	config   *Config

	hooksMu sync.Mutex
	hooks   map[string]*hookSet

	// migrations caches completed migrations keyed by model name and
	// version, so each model version migrates at most once per engine.
	migrations sync.Map
}

// Open initializes an engine over the given adapter.
func Open(adapter Adapter, config *Config) (*DB, error) {
	if adapter == nil {
		return nil, ErrAdapterRequired
	}
	if config == nil {
		config = &Config{}
	}
	if config.Logger == nil {
		config.Logger = logger.Default
	}
	if config.DefaultPageSize <= 0 {
		config.DefaultPageSize = 25
	}

	return &DB{
		adapter:  adapter,
		registry: schema.NewRegistry(config.Naming),
		logger:   config.Logger,
		config:   config,
		hooks:    map[string]*hookSet{},
	}, nil
}

// Define registers model definitions.
func (db *DB) Define(models ...*schema.Model) error {
	return db.registry.Add(models...)
}

// Model returns a handle bound to a registered model definition.
func (db *DB) Model(name string) (*Model, error) {
	def, err := db.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return &Model{db: db, def: def}, nil
}

// MustModel is Model for names known to be registered.
func (db *DB) MustModel(name string) *Model {
	m, err := db.Model(name)
	if err != nil {
		panic(fmt.Sprintf("modelq: %v", err))
	}
	return m
}

// Registry exposes the model registry.
func (db *DB) Registry() *schema.Registry {
	return db.registry
}

// Logger exposes the configured logger.
func (db *DB) Logger() logger.Interface {
	return db.logger
}

// Adapter exposes the backing-store adapter.
func (db *DB) Adapter() Adapter {
	return db.adapter
}

func (db *DB) hookSet(model string) *hookSet {
	db.hooksMu.Lock()
	defer db.hooksMu.Unlock()
	hs, ok := db.hooks[model]
	if !ok {
		hs = &hookSet{}
		db.hooks[model] = hs
	}
	return hs
}
