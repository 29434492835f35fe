package services

import (
	"context"
	"encoding/json"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/model"
)

// QueryType selects how a provider turns an origin title into a full-text query.
type QueryType string

const (
	// QueryTypeCommon matches any term but lets frequent terms only refine documents
	// already matched by a rarer term.
	QueryTypeCommon QueryType = "common"
	// QueryTypeMatch matches any term of the title.
	QueryTypeMatch QueryType = "match"
	// QueryTypeMatchPhrase requires the title terms to appear consecutively and in order.
	QueryTypeMatchPhrase QueryType = "match_phrase"
)

// ProviderQuery is a request for the candidates of one origin title.
type ProviderQuery struct {
	Title            string                 `json:"title"`
	TargetCollection string                 `json:"target_collection"`
	FieldToQuery     string                 `json:"field_to_query"` // Defaults to "title"
	IDField          string                 `json:"id_field"`       // Defaults to "Paper_ID"
	QueryType        QueryType              `json:"query_type"`     // Defaults to "common"
	Size             int                    `json:"size"`           // Maximum hits, defaults to 10
	Options          map[string]interface{} `json:"options,omitempty"`
}

// NewProviderQuery builds a query for title using the field, id field, query type,
// size and options of the provider settings.
func NewProviderQuery(title, targetCollection string, settings config.ProviderSettings) ProviderQuery {
	q := ProviderQuery{
		Title:            title,
		TargetCollection: targetCollection,
		FieldToQuery:     settings.FieldToQuery,
		IDField:          settings.IDField,
		QueryType:        QueryType(settings.QueryType),
		Size:             settings.Size,
		Options:          settings.Options,
	}
	q.ApplyDefaults()
	return q
}

// ApplyDefaults fills in the fields left empty.
func (q *ProviderQuery) ApplyDefaults() {
	if q.FieldToQuery == "" {
		q.FieldToQuery = "title"
	}
	if q.IDField == "" {
		q.IDField = "Paper_ID"
	}
	if q.QueryType == "" {
		q.QueryType = QueryTypeCommon
	}
	if q.Size <= 0 {
		q.Size = 10
	}
}

// OptionFloat returns a numeric option, or def when it is absent or not a number.
func (q ProviderQuery) OptionFloat(name string, def float64) float64 {
	switch v := q.Options[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Hit is one ranked search result.
type Hit struct {
	ID     string                 `json:"id"`
	Title  string                 `json:"title"`
	Score  float64                `json:"score"`
	Source map[string]interface{} `json:"source,omitempty"` // Full stored document when the backend returns it
}

// ProviderResponse holds the hits of a query, ordered by descending score.
type ProviderResponse struct {
	Hits    []Hit           `json:"hits"`
	Total   int             `json:"total"`
	TookMs  int64           `json:"took_ms"`
	QueryID string          `json:"query_id"` // Unique UUID for this query
	Query   ProviderQuery   `json:"query"`
	Raw     json.RawMessage `json:"raw,omitempty"` // Backend response body, kept for diagnostics
}

// Candidates converts the hits into model candidates of the given target dataset.
func (r *ProviderResponse) Candidates(dataset string) []*model.Candidate {
	candidates := make([]*model.Candidate, 0, len(r.Hits))
	for _, hit := range r.Hits {
		candidates = append(candidates, &model.Candidate{
			ID:      hit.ID,
			Title:   hit.Title,
			Dataset: dataset,
			Score:   hit.Score,
		})
	}
	return candidates
}

// CandidateProvider returns ranked candidates for an origin title.
// Failures are reported as *errors.ProviderError.
type CandidateProvider interface {
	Query(ctx context.Context, query ProviderQuery) (*ProviderResponse, error)
}

// CollectionLister is implemented by providers that can enumerate their target collections.
type CollectionLister interface {
	ListCollections(ctx context.Context) ([]string, error)
}

// JobManager defines operations for managing background jobs
type JobManager interface {
	GetJob(jobID string) (*model.Job, error)
	ListJobs(targetCollection string, status *model.JobStatus) []*model.Job
}
