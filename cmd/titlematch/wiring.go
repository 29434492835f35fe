package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/internal/engine"
	"github.com/gcbaptista/go-titlematch/internal/jobs"
	"github.com/gcbaptista/go-titlematch/internal/providers/cached"
	"github.com/gcbaptista/go-titlematch/internal/providers/elastic"
	"github.com/gcbaptista/go-titlematch/internal/providers/localindex"
	"github.com/gcbaptista/go-titlematch/internal/providers/resilient"
	"github.com/gcbaptista/go-titlematch/internal/resultstore"
	"github.com/gcbaptista/go-titlematch/services"
)

// providerStack is the candidate provider with its decorators.
type providerStack struct {
	Provider services.CandidateProvider
	Lister   services.CollectionLister
	Engine   *engine.Engine // Set for the local provider
	cache    *cached.Provider
}

// Close releases the response cache.
func (s *providerStack) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

// CacheStats reports cache hits and misses, or nil without a cache.
func (s *providerStack) CacheStats() *cached.Stats {
	if s.cache == nil {
		return nil
	}
	stats := s.cache.Stats()
	return &stats
}

// newProviderStack builds backend -> retry/timeout -> cache for cfg.
// manager, when set, enables background builds of local collections.
func newProviderStack(cfg *config.Config, manager *jobs.Manager, logger *slog.Logger) (*providerStack, error) {
	stack := &providerStack{}

	var backend services.CandidateProvider
	switch cfg.Provider.Kind {
	case config.ProviderKindLocal:
		opts := []engine.Option{engine.WithLogger(logger)}
		if manager != nil {
			opts = append(opts, engine.WithJobManager(manager))
		}
		stack.Engine = engine.NewEngine(cfg.LocalIndex.DataDir, opts...)
		local := localindex.New(stack.Engine, logger)
		backend, stack.Lister = local, local
	case config.ProviderKindElasticsearch:
		provider, err := elastic.New(cfg.Elasticsearch, nil, logger)
		if err != nil {
			return nil, err
		}
		backend, stack.Lister = provider, provider
	default:
		return nil, fmt.Errorf("unsupported provider kind '%s'", cfg.Provider.Kind)
	}

	provider := services.CandidateProvider(resilient.Wrap(backend, resilient.PolicyFromSettings(cfg.Provider), logger))

	if cfg.Cache.Enabled {
		cache, err := cached.Open(provider, cached.OptionsFromSettings(cfg.Cache, logger))
		if err != nil {
			return nil, err
		}
		stack.cache = cache
		provider = cache
		if stack.Engine != nil {
			stack.Engine.OnCollectionChange(func(name string) {
				if err := cache.InvalidateCollection(name); err != nil {
					logger.Warn("failed to invalidate cached responses", "collection", name, "error", err)
				}
			})
		}
	}

	stack.Provider = provider
	return stack, nil
}

// openResultStore opens the SQLite result store, or returns nil when none is configured.
func openResultStore(cfg *config.Config) (*resultstore.Store, error) {
	if cfg.Results.SQLitePath == "" {
		return nil, nil
	}
	return resultstore.Open(cfg.Results.SQLitePath)
}

var errNoResultStore = errors.New("no result store configured (set results.sqlite_path)")
