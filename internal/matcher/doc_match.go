package matcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/internal/scoring"
	"github.com/gcbaptista/go-titlematch/model"
	"github.com/gcbaptista/go-titlematch/services"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// State is the lifecycle phase of a DocMatch.
type State int

const (
	// StateUninitialized means no candidates have been retrieved yet.
	StateUninitialized State = iota
	// StateCandidatesLoaded means the candidate list is populated but not scored.
	StateCandidatesLoaded
	// StateScored means the confident match count is known.
	StateScored
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCandidatesLoaded:
		return "candidates_loaded"
	case StateScored:
		return "scored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Scorer evaluates a ranked candidate list for an origin title.
// *scoring.Scorer implements it.
type Scorer interface {
	Evaluate(originTitle string, candidates []*model.Candidate) (scoring.Outcome, error)
}

// DocMatch couples one origin document to its candidates in a target collection
// and to the number of those candidates that are confident matches.
//
// Candidates are retrieved at most once and the count is computed at most once.
// A failed retrieval leaves the DocMatch uninitialized so a later call can retry it.
type DocMatch struct {
	mu sync.Mutex

	origin           model.OriginDocument
	targetCollection string
	provider         services.CandidateProvider
	scorer           Scorer
	settings         config.ProviderSettings

	state      State
	candidates []*model.Candidate
	response   *services.ProviderResponse
	outcome    scoring.Outcome
}

// NewDocMatch creates a DocMatch for origin against targetCollection.
func NewDocMatch(origin model.OriginDocument, targetCollection string, provider services.CandidateProvider, scorer Scorer, settings config.ProviderSettings) *DocMatch {
	settings.ApplyDefaults()
	return &DocMatch{
		origin:           origin,
		targetCollection: targetCollection,
		provider:         provider,
		scorer:           scorer,
		settings:         settings,
	}
}

// Origin returns the origin document.
func (d *DocMatch) Origin() model.OriginDocument {
	return d.origin
}

// TargetCollection returns the collection candidates are retrieved from.
func (d *DocMatch) TargetCollection() string {
	return d.targetCollection
}

// State returns the current lifecycle phase.
func (d *DocMatch) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Candidates returns the retrieved candidates, ordered by descending score.
func (d *DocMatch) Candidates() []*model.Candidate {
	d.mu.Lock()
	defer d.mu.Unlock()
	candidates := make([]*model.Candidate, len(d.candidates))
	copy(candidates, d.candidates)
	return candidates
}

// Response returns the provider response the candidates came from, or nil before retrieval.
func (d *DocMatch) Response() *services.ProviderResponse {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.response
}

// Outcome returns the scan outcome and whether scoring has happened.
func (d *DocMatch) Outcome() (scoring.Outcome, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outcome, d.state == StateScored
}

// EnsureCandidates retrieves the candidates when they have not been retrieved yet.
func (d *DocMatch) EnsureCandidates(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ensureCandidates(ctx)
}

// ensureCandidates must be called with d.mu held.
func (d *DocMatch) ensureCandidates(ctx context.Context) error {
	if d.state != StateUninitialized {
		return nil
	}

	query := services.NewProviderQuery(d.origin.Title, d.targetCollection, d.settings)
	response, err := d.provider.Query(ctx, query)
	if err != nil {
		var providerErr *internalErrors.ProviderError
		if errors.As(err, &providerErr) {
			return err
		}
		return internalErrors.NewProviderError(d.targetCollection, "search", err)
	}
	if response == nil {
		return internalErrors.NewProviderError(d.targetCollection, "search", errors.New("provider returned no response"))
	}
	if err := validateOrder(response.Hits); err != nil {
		return internalErrors.NewProviderError(d.targetCollection, "validate", err)
	}

	d.candidates = response.Candidates(d.targetCollection)
	d.response = response
	d.state = StateCandidatesLoaded
	return nil
}

// ConfidentMatchCount returns the number of leading confident matches, retrieving and
// scoring the candidates on first use. An empty candidate list yields 0 without scoring.
func (d *DocMatch) ConfidentMatchCount(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.confidentMatchCount(ctx)
}

func (d *DocMatch) confidentMatchCount(ctx context.Context) (int, error) {
	if err := d.ensureCandidates(ctx); err != nil {
		return 0, err
	}
	if d.state == StateScored {
		return d.outcome.Count, nil
	}

	if len(d.candidates) == 0 {
		d.outcome = scoring.Outcome{Count: 0, Reason: scoring.StopExhausted, Index: -1}
		d.state = StateScored
		return 0, nil
	}

	outcome, err := d.scorer.Evaluate(d.origin.Title, d.candidates)
	if err != nil {
		return 0, fmt.Errorf("failed to score candidates for origin '%s': %w", d.origin.ID, err)
	}
	d.outcome = outcome
	d.state = StateScored
	return outcome.Count, nil
}

// ConfidentMatchIDs returns the identifiers of the confident matches in rank order.
// Its length always equals ConfidentMatchCount.
func (d *DocMatch) ConfidentMatchIDs(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	count, err := d.confidentMatchCount(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, count)
	for i := 0; i < count; i++ {
		ids[i] = d.candidates[i].ID
	}
	return ids, nil
}

// validateOrder rejects hits that are not ordered by descending score.
func validateOrder(hits []services.Hit) error {
	for i := 1; i < len(hits); i++ {
		prev, cur := hits[i-1].Score, hits[i].Score
		if math.IsNaN(prev) || math.IsNaN(cur) {
			continue
		}
		if cur > prev {
			return fmt.Errorf("hits not ordered by descending score: rank %d (%v) follows rank %d (%v)", i, cur, i-1, prev)
		}
	}
	return nil
}
