// Package localindex serves candidates from the in-process collections of an engine.
package localindex

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gcbaptista/go-titlematch/internal/engine"
	"github.com/gcbaptista/go-titlematch/services"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// Provider implements services.CandidateProvider and services.CollectionLister over an engine.
type Provider struct {
	engine *engine.Engine
	logger *slog.Logger
}

// New creates a provider backed by eng.
func New(eng *engine.Engine, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{engine: eng, logger: logger.With("provider", "local")}
}

// Query implements services.CandidateProvider. The search itself is not interruptible, so
// ctx is only checked before it starts.
func (p *Provider) Query(ctx context.Context, query services.ProviderQuery) (*services.ProviderResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, internalErrors.NewProviderError(query.TargetCollection, "search", err)
	}

	collection, err := p.engine.GetCollection(query.TargetCollection)
	if err != nil {
		return nil, internalErrors.NewProviderError(query.TargetCollection, "search", err)
	}

	response, err := collection.Search(query)
	if err != nil {
		return nil, internalErrors.NewProviderError(query.TargetCollection, "search", err)
	}

	raw, err := json.Marshal(response.Hits)
	if err == nil {
		response.Raw = raw
	}
	p.logger.Debug("local query",
		"collection", query.TargetCollection,
		"query_id", response.QueryID,
		"hits", len(response.Hits),
		"total", response.Total,
		"took_ms", response.TookMs)
	return response, nil
}

// ListCollections implements services.CollectionLister.
func (p *Provider) ListCollections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.engine.ListCollections(), nil
}
