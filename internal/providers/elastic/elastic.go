// Package elastic serves candidates from an Elasticsearch cluster.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/services"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// DefaultCutoffFrequency is sent with common terms queries when no cutoff_frequency option is set.
const DefaultCutoffFrequency = 0.01

// Provider implements services.CandidateProvider and services.CollectionLister.
type Provider struct {
	client *elasticsearch.Client
	logger *slog.Logger
}

// New creates a provider from connection settings.
// transport may be nil to use the client's default HTTP transport.
func New(settings config.ElasticsearchSettings, transport http.RoundTripper, logger *slog.Logger) (*Provider, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: settings.Addresses,
		Username:  settings.Username,
		Password:  settings.Password,
		APIKey:    settings.APIKey,
		Transport: transport,
		// Retries belong to the resilient decorator, which knows which failures are transient.
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return NewWithClient(client, logger), nil
}

// NewWithClient creates a provider around an existing client.
func NewWithClient(client *elasticsearch.Client, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{client: client, logger: logger.With("provider", "elasticsearch")}
}

// searchResponse is the subset of the search API response the provider reads.
type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string                 `json:"_id"`
			Score  *float64               `json:"_score"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Query implements services.CandidateProvider.
// A missing index is reported as a non-transient error wrapping ErrCollectionNotFound.
// Rate limiting, server errors and transport failures are transient.
func (p *Provider) Query(ctx context.Context, query services.ProviderQuery) (*services.ProviderResponse, error) {
	query.ApplyDefaults()
	start := time.Now()
	collection := query.TargetCollection

	body, err := BuildQueryBody(query)
	if err != nil {
		return nil, internalErrors.NewProviderError(collection, "search", err)
	}

	res, err := p.client.Search(
		p.client.Search.WithContext(ctx),
		p.client.Search.WithIndex(collection),
		p.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, internalErrors.NewProviderError(collection, "search", ctx.Err())
		}
		return nil, internalErrors.NewTransientProviderError(collection, "search", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, internalErrors.NewTransientProviderError(collection, "search", fmt.Errorf("failed to read response: %w", err))
	}
	if res.IsError() {
		return nil, statusError(collection, res, raw)
	}

	// Numbers in _source stay json.Number so large numeric identifiers keep every digit.
	var parsed searchResponse
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&parsed); err != nil {
		return nil, internalErrors.NewProviderError(collection, "decode", err)
	}

	hits := make([]services.Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hit := services.Hit{
			ID:     stringField(h.Source, query.IDField),
			Title:  stringField(h.Source, query.FieldToQuery),
			Source: h.Source,
		}
		if hit.ID == "" {
			hit.ID = h.ID
		}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		hits = append(hits, hit)
	}

	response := &services.ProviderResponse{
		Hits:    hits,
		Total:   parsed.Hits.Total.Value,
		TookMs:  parsed.Took,
		QueryID: uuid.New().String(),
		Query:   query,
		Raw:     raw,
	}
	p.logger.Debug("elasticsearch query",
		"collection", collection,
		"query_id", response.QueryID,
		"hits", len(hits),
		"total", response.Total,
		"took_ms", response.TookMs,
		"elapsed", time.Since(start))
	return response, nil
}

// ListCollections implements services.CollectionLister using the cat indices API.
func (p *Provider) ListCollections(ctx context.Context) ([]string, error) {
	res, err := p.client.Cat.Indices(
		p.client.Cat.Indices.WithContext(ctx),
		p.client.Cat.Indices.WithFormat("json"),
		p.client.Cat.Indices.WithH("index"),
	)
	if err != nil {
		return nil, internalErrors.NewTransientProviderError("", "list", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, internalErrors.NewTransientProviderError("", "list", err)
	}
	if res.IsError() {
		return nil, statusError("", res, raw)
	}

	var rows []struct {
		Index string `json:"index"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, internalErrors.NewProviderError("", "list", err)
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Index)
	}
	sort.Strings(names)
	return names, nil
}

// BuildQueryBody returns the search request body for query. Options are copied into the
// field clause, so backend parameters such as cutoff_frequency or operator pass through.
func BuildQueryBody(query services.ProviderQuery) ([]byte, error) {
	clause := map[string]interface{}{"query": query.Title}
	for name, value := range query.Options {
		clause[name] = value
	}

	switch query.QueryType {
	case services.QueryTypeCommon:
		if _, ok := clause["cutoff_frequency"]; !ok {
			clause["cutoff_frequency"] = DefaultCutoffFrequency
		}
	case services.QueryTypeMatch, services.QueryTypeMatchPhrase:
	default:
		return nil, fmt.Errorf("unsupported query type '%s'", query.QueryType)
	}

	return json.Marshal(map[string]interface{}{
		"size": query.Size,
		"query": map[string]interface{}{
			string(query.QueryType): map[string]interface{}{
				query.FieldToQuery: clause,
			},
		},
	})
}

// statusError converts an error response into a ProviderError.
func statusError(collection string, res *esapi.Response, raw []byte) error {
	cause := fmt.Errorf("elasticsearch returned %s: %s", res.Status(), truncate(raw, 512))

	switch {
	case res.StatusCode == http.StatusNotFound && collection != "":
		return internalErrors.NewProviderError(collection, "search",
			errors.Join(internalErrors.NewCollectionNotFoundError(collection), cause))
	case res.StatusCode == http.StatusTooManyRequests, res.StatusCode >= 500:
		return internalErrors.NewTransientProviderError(collection, "search", cause)
	default:
		return internalErrors.NewProviderError(collection, "search", cause)
	}
}

// stringField returns a source field as a string. Numeric identifiers are common in
// bibliographic indexes and are formatted without exponent.
func stringField(source map[string]interface{}, field string) string {
	switch v := source[field].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
