// Package cached decorates a candidate provider with a BadgerDB-backed response cache.
//
// Re-running a batch against the same collection issues the same queries again; the cache
// serves them without a backend round trip until their TTL expires.
package cached

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/services"
)

const keyPrefix = "q\x00"

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("response cache is closed")

// Options configures the cache.
type Options struct {
	Dir      string        // Directory of the badger files; ignored when InMemory is set
	InMemory bool          // Keep everything in RAM
	TTL      time.Duration // Entry lifetime; 0 keeps entries forever
	Logger   *slog.Logger
}

// OptionsFromSettings builds Options from the cache section of the configuration.
func OptionsFromSettings(settings config.CacheSettings, logger *slog.Logger) Options {
	return Options{
		Dir:      settings.Dir,
		InMemory: settings.InMemory,
		TTL:      settings.TTL(),
		Logger:   logger,
	}
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Provider is a caching CandidateProvider.
// Safe for concurrent use from multiple goroutines.
type Provider struct {
	inner  services.CandidateProvider
	db     *badger.DB
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	hits   atomic.Int64
	misses atomic.Int64
}

// Open opens the cache and returns inner decorated with it.
func Open(inner services.CandidateProvider, opts Options) (*Provider, error) {
	badgerOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	badgerOpts = badgerOpts.
		WithLogger(nil).
		WithMemTableSize(16 << 20).
		WithValueLogFileSize(64 << 20).
		WithNumMemtables(2).
		WithBlockCacheSize(16 << 20).
		WithIndexCacheSize(8 << 20)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open response cache: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Provider{
		inner:  inner,
		db:     db,
		ttl:    opts.TTL,
		logger: logger,
	}, nil
}

// Query implements services.CandidateProvider.
// Errors are never cached.
func (p *Provider) Query(ctx context.Context, query services.ProviderQuery) (*services.ProviderResponse, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}

	query.ApplyDefaults()
	key, err := cacheKey(query)
	if err != nil {
		return nil, err
	}

	if response, ok := p.get(key); ok {
		p.hits.Add(1)
		return response, nil
	}
	p.misses.Add(1)

	response, err := p.inner.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := p.put(key, response); err != nil {
		p.logger.Warn("failed to cache candidate response",
			"collection", query.TargetCollection, "error", err)
	}
	return response, nil
}

func (p *Provider) get(key []byte) (*services.ProviderResponse, bool) {
	var response services.ProviderResponse
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &response)
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			p.logger.Warn("failed to read cached candidate response", "error", err)
		}
		return nil, false
	}
	return &response, true
}

func (p *Provider) put(key []byte, response *services.ProviderResponse) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return p.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, data)
		if p.ttl > 0 {
			entry = entry.WithTTL(p.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// InvalidateCollection drops every cached response of a collection.
func (p *Provider) InvalidateCollection(collection string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	return p.db.DropPrefix(collectionPrefix(collection))
}

// Stats returns the hit and miss counters.
func (p *Provider) Stats() Stats {
	return Stats{Hits: p.hits.Load(), Misses: p.misses.Load()}
}

// Close flushes and closes the cache. The wrapped provider is not closed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}

func collectionPrefix(collection string) []byte {
	return []byte(keyPrefix + collection + "\x00")
}

// cacheKey identifies a query by everything that can change its hits.
func cacheKey(query services.ProviderQuery) ([]byte, error) {
	options := ""
	if len(query.Options) > 0 {
		// encoding/json sorts map keys, so equal options encode equally.
		data, err := json.Marshal(query.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query options: %w", err)
		}
		options = string(data)
	}

	parts := []string{
		query.FieldToQuery,
		query.IDField,
		string(query.QueryType),
		strconv.Itoa(query.Size),
		options,
		query.Title,
	}
	return append(collectionPrefix(query.TargetCollection), strings.Join(parts, "\x00")...), nil
}
