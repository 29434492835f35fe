// Package engine manages the named collections of the local index: it creates, loads,
// persists and deletes them, and builds them in the background through the job manager.
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/internal/jobs"
	"github.com/gcbaptista/go-titlematch/model"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// Engine manages multiple local collections.
type Engine struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	dataDir     string
	jobManager  *jobs.Manager
	logger      *slog.Logger
	changeHooks []func(name string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithJobManager enables background builds through jobManager.
func WithJobManager(jobManager *jobs.Manager) Option {
	return func(e *Engine) {
		e.jobManager = jobManager
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine rooted at dataDir and loads the collections found there.
// An empty dataDir keeps every collection in memory only.
func NewEngine(dataDir string, opts ...Option) *Engine {
	eng := &Engine{
		collections: make(map[string]*Collection),
		dataDir:     dataDir,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(eng)
	}
	eng.logger = eng.logger.With("component", "engine")

	if dataDir != "" {
		eng.loadCollectionsFromDisk()
	}
	return eng
}

// OnCollectionChange registers fn to run after a collection is rebuilt, modified or deleted.
// fn runs with the engine lock held and must not call back into the engine.
func (e *Engine) OnCollectionChange(fn func(name string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changeHooks = append(e.changeHooks, fn)
}

// notifyChangeUnsafe must be called with e.mu held.
func (e *Engine) notifyChangeUnsafe(name string) {
	for _, hook := range e.changeHooks {
		hook(name)
	}
}

// JobManager returns the job manager used for background builds, or nil.
func (e *Engine) JobManager() *jobs.Manager {
	return e.jobManager
}

// CreateCollection creates a new empty collection and persists it.
func (e *Engine) CreateCollection(settings config.CollectionSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return internalErrors.NewValidationError("collection", err.Error())
	}
	if _, exists := e.collections[settings.Name]; exists {
		return fmt.Errorf("collection named '%s' already exists", settings.Name)
	}

	collection, err := NewCollection(settings)
	if err != nil {
		return fmt.Errorf("failed to create collection '%s': %w", settings.Name, err)
	}
	if err := e.persistCollectionUnsafe(settings.Name, collection); err != nil {
		return fmt.Errorf("failed to persist new collection '%s': %w", settings.Name, err)
	}

	e.collections[settings.Name] = collection
	e.logger.Info("collection created", "collection", settings.Name, "searchable_fields", settings.SearchableFields)
	return nil
}

// GetCollection retrieves a collection by its name.
func (e *Engine) GetCollection(name string) (*Collection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	collection, exists := e.collections[name]
	if !exists {
		return nil, internalErrors.NewCollectionNotFoundError(name)
	}
	return collection, nil
}

// DeleteCollection removes a collection from memory and disk.
func (e *Engine) DeleteCollection(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.collections[name]; !exists {
		return internalErrors.NewCollectionNotFoundError(name)
	}
	delete(e.collections, name)
	e.notifyChangeUnsafe(name)

	if e.dataDir != "" {
		collectionPath := filepath.Join(e.dataDir, name)
		if err := os.RemoveAll(collectionPath); err != nil {
			return fmt.Errorf("failed to delete collection data directory %s: %w", collectionPath, err)
		}
	}
	e.logger.Info("collection deleted", "collection", name)
	return nil
}

// ListCollections returns the names of all loaded collections, sorted.
func (e *Engine) ListCollections() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.collections))
	for name := range e.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddDocuments indexes docs into an existing collection and persists it.
func (e *Engine) AddDocuments(name string, docs []model.TargetDocument) error {
	collection, err := e.GetCollection(name)
	if err != nil {
		return err
	}
	if err := collection.AddDocuments(docs); err != nil {
		return fmt.Errorf("failed to add documents to collection '%s': %w", name, err)
	}
	e.logger.Debug("documents added", "collection", name, "count", len(docs))
	if err := e.PersistCollection(name); err != nil {
		return err
	}

	e.mu.Lock()
	e.notifyChangeUnsafe(name)
	e.mu.Unlock()
	return nil
}
