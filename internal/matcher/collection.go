package matcher

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/model"
	"github.com/gcbaptista/go-titlematch/services"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// ProgressFunc is called after each origin document is processed.
// It is always called from a single goroutine.
type ProgressFunc func(done, total int)

// Option configures a CollectionMatcher.
type Option func(*CollectionMatcher)

// WithConcurrency sets how many origin documents are matched in parallel.
// Values below 1 select sequential matching.
func WithConcurrency(n int) Option {
	return func(m *CollectionMatcher) {
		if n < 1 {
			n = 1
		}
		m.concurrency = n
	}
}

// WithLogger sets the logger for batch progress and per-document failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *CollectionMatcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(m *CollectionMatcher) {
		m.progress = fn
	}
}

// WithProviderSettings sets the field, id field, query type, size and options of every query.
func WithProviderSettings(settings config.ProviderSettings) Option {
	return func(m *CollectionMatcher) {
		m.providerSettings = settings
	}
}

// WithDuplicatePolicy sets how duplicate origin identifiers in entries are resolved.
func WithDuplicatePolicy(policy config.DuplicatePolicy) Option {
	return func(m *CollectionMatcher) {
		if policy != "" {
			m.duplicatePolicy = policy
		}
	}
}

// CollectionMatcher matches a batch of origin documents against one target collection.
type CollectionMatcher struct {
	originDataset    string
	targetCollection string
	provider         services.CandidateProvider
	scorer           Scorer

	concurrency      int
	logger           *slog.Logger
	progress         ProgressFunc
	providerSettings config.ProviderSettings
	duplicatePolicy  config.DuplicatePolicy

	docs  map[string]*DocMatch
	order []string

	mu     sync.RWMutex
	result *model.CollectionResult
}

// NewCollectionMatcher creates a matcher with one DocMatch per entry of origins,
// which maps origin identifiers to titles.
func NewCollectionMatcher(origins map[string]string, originDataset, targetCollection string, provider services.CandidateProvider, scorer Scorer, opts ...Option) (*CollectionMatcher, error) {
	entries := make([]model.OriginEntry, 0, len(origins))
	for id, title := range origins {
		entries = append(entries, model.OriginEntry{ID: id, Title: title})
	}
	return NewCollectionMatcherFromEntries(entries, originDataset, targetCollection, provider, scorer, opts...)
}

// NewCollectionMatcherFromEntries creates a matcher from tabular rows.
// With the "error" duplicate policy a repeated identifier fails construction; with
// "last_wins" the last row for an identifier replaces the earlier ones.
func NewCollectionMatcherFromEntries(entries []model.OriginEntry, originDataset, targetCollection string, provider services.CandidateProvider, scorer Scorer, opts ...Option) (*CollectionMatcher, error) {
	if provider == nil {
		return nil, internalErrors.NewPreconditionError("new collection matcher", "candidate provider is required")
	}
	if scorer == nil {
		return nil, internalErrors.NewPreconditionError("new collection matcher", "scorer is required")
	}
	if targetCollection == "" {
		return nil, internalErrors.NewPreconditionError("new collection matcher", "target collection is required")
	}

	m := &CollectionMatcher{
		originDataset:    originDataset,
		targetCollection: targetCollection,
		provider:         provider,
		scorer:           scorer,
		concurrency:      1,
		logger:           slog.New(slog.DiscardHandler),
		duplicatePolicy:  config.DuplicatePolicyError,
		docs:             make(map[string]*DocMatch, len(entries)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.providerSettings.ApplyDefaults()

	for _, entry := range entries {
		if _, exists := m.docs[entry.ID]; exists {
			if m.duplicatePolicy != config.DuplicatePolicyLastWins {
				err := internalErrors.NewPreconditionError("new collection matcher", "duplicate origin identifier "+entry.ID)
				err.Err = internalErrors.NewDuplicateOriginError(entry.ID)
				return nil, err
			}
			m.logger.Warn("duplicate origin identifier, keeping last title",
				"origin_id", entry.ID, "title", entry.Title)
		} else {
			m.order = append(m.order, entry.ID)
		}
		origin := model.NewOriginDocument(entry.ID, entry.Title, originDataset)
		m.docs[entry.ID] = NewDocMatch(origin, targetCollection, provider, scorer, m.providerSettings)
	}
	sort.Strings(m.order)

	return m, nil
}

// OriginIDs returns the origin identifiers of the batch, sorted.
func (m *CollectionMatcher) OriginIDs() []string {
	ids := make([]string, len(m.order))
	copy(ids, m.order)
	return ids
}

// Len returns the number of origin documents in the batch.
func (m *CollectionMatcher) Len() int {
	return len(m.order)
}

// DocMatch returns the matcher for one origin identifier.
func (m *CollectionMatcher) DocMatch(originID string) (*DocMatch, bool) {
	dm, ok := m.docs[originID]
	return dm, ok
}

// Result returns the result of the last GetAllConfidentMatches call, or nil.
func (m *CollectionMatcher) Result() *model.CollectionResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.result
}

type docOutcome struct {
	originID string
	ids      []string
	err      error
}

// GetAllConfidentMatches computes the confident matches of every origin document.
//
// A document whose candidates cannot be retrieved is recorded in Failures and does not
// stop the batch. When ctx is cancelled the documents already processed are returned
// together with ctx.Err().
func (m *CollectionMatcher) GetAllConfidentMatches(ctx context.Context) (*model.CollectionResult, error) {
	start := time.Now()
	total := len(m.order)
	m.logger.Info("matching collection",
		"origin_dataset", m.originDataset,
		"target_collection", m.targetCollection,
		"origins", total,
		"concurrency", m.concurrency)

	outcomes := make(chan docOutcome, m.concurrency)
	collected := make([]docOutcome, 0, total)
	collectorDone := make(chan struct{})

	go func() {
		defer close(collectorDone)
		for outcome := range outcomes {
			collected = append(collected, outcome)
			if m.progress != nil {
				m.progress(len(collected), total)
			}
		}
	}()

	workerSlots := make(chan struct{}, m.concurrency)
	var wg sync.WaitGroup

dispatch:
	for _, originID := range m.order {
		if ctx.Err() != nil {
			break
		}
		select {
		case workerSlots <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}

		wg.Add(1)
		go func(dm *DocMatch, originID string) {
			defer wg.Done()
			defer func() { <-workerSlots }()

			ids, err := dm.ConfidentMatchIDs(ctx)
			outcomes <- docOutcome{originID: originID, ids: ids, err: err}
		}(m.docs[originID], originID)
	}

	wg.Wait()
	close(outcomes)
	<-collectorDone

	result := model.NewCollectionResult(m.originDataset, m.targetCollection)
	for _, outcome := range collected {
		if outcome.err != nil {
			result.Failures[outcome.originID] = outcome.err.Error()
			m.logger.Warn("failed to match origin document",
				"origin_id", outcome.originID,
				"target_collection", m.targetCollection,
				"error", outcome.err)
			continue
		}
		result.Matches[outcome.originID] = outcome.ids
	}

	m.mu.Lock()
	m.result = result
	m.mu.Unlock()

	m.logger.Info("collection matched",
		"target_collection", m.targetCollection,
		"matched", result.MatchedCount(),
		"failed", len(result.Failures),
		"duration", time.Since(start))

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}
