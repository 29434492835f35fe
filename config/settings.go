// Package config provides configuration structures for title matching.
// It defines the confidence thresholds, candidate provider settings, storage
// locations and other configuration options, decoded from a TOML file.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gcbaptista/go-titlematch/internal/fuzzy"
)

// DuplicatePolicy decides what happens when a batch supplies the same origin identifier twice.
type DuplicatePolicy string

const (
	// DuplicatePolicyError rejects the batch at construction time.
	DuplicatePolicyError DuplicatePolicy = "error"
	// DuplicatePolicyLastWins keeps the last title seen for an identifier.
	DuplicatePolicyLastWins DuplicatePolicy = "last_wins"
)

// Provider kinds
const (
	ProviderKindElasticsearch = "elasticsearch"
	ProviderKindLocal         = "local"
)

var supportedQueryTypes = []string{"common", "match", "match_phrase"}

// MatchSettings contains the thresholds of the confidence scorer and how batches are run.
//
// A candidate passes when its relevance score reaches ScoreThreshold, or failing that when
// its fuzzy similarity to the origin title reaches FuzzThreshold. Scanning stops when the
// relative score drop to the next candidate exceeds ScoreDropThreshold.
type MatchSettings struct {
	ScoreThreshold     float64         `toml:"score_threshold" json:"score_threshold"`           // Relevance score that passes without a fuzzy check (e.g., 70)
	FuzzThreshold      float64         `toml:"fuzz_threshold" json:"fuzz_threshold"`             // Minimum fuzzy similarity, 0-100 (e.g., 80)
	ScoreDropThreshold float64         `toml:"score_drop_threshold" json:"score_drop_threshold"` // Maximum relative drop between consecutive candidates (e.g., 0.25)
	FuzzAlgorithm      string          `toml:"fuzz_algorithm" json:"fuzz_algorithm"`             // Similarity measure, see fuzzy.Algorithms()
	Concurrency        int             `toml:"concurrency" json:"concurrency"`                   // Origin documents matched in parallel; 1 is sequential
	DuplicatePolicy    DuplicatePolicy `toml:"duplicate_policy" json:"duplicate_policy"`         // "error" or "last_wins"
}

// StrictMatchSettings returns the stricter illustrative preset (score >= 70, fuzz >= 80, drop > 0.25).
func StrictMatchSettings() MatchSettings {
	return MatchSettings{
		ScoreThreshold:     70,
		FuzzThreshold:      80,
		ScoreDropThreshold: 0.25,
		FuzzAlgorithm:      fuzzy.AlgorithmRatio,
		Concurrency:        1,
		DuplicatePolicy:    DuplicatePolicyError,
	}
}

// LooseMatchSettings returns the looser illustrative preset (score >= 45, fuzz >= 50, drop > 0.25).
func LooseMatchSettings() MatchSettings {
	settings := StrictMatchSettings()
	settings.ScoreThreshold = 45
	settings.FuzzThreshold = 50
	return settings
}

// PresetMatchSettings returns the named preset ("strict" or "loose").
func PresetMatchSettings(name string) (MatchSettings, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "strict":
		return StrictMatchSettings(), true
	case "loose":
		return LooseMatchSettings(), true
	default:
		return MatchSettings{}, false
	}
}

// ApplyDefaults fills in the non-threshold fields left empty.
// Thresholds are never defaulted here because zero is a legitimate value for each of them.
func (s *MatchSettings) ApplyDefaults() {
	if s.FuzzAlgorithm == "" {
		s.FuzzAlgorithm = fuzzy.AlgorithmRatio
	}
	if s.Concurrency <= 0 {
		s.Concurrency = 1
	}
	if s.DuplicatePolicy == "" {
		s.DuplicatePolicy = DuplicatePolicyError
	}
}

// Validate returns one message per problem found in the settings.
func (s *MatchSettings) Validate() []string {
	var problems []string

	if math.IsNaN(s.ScoreThreshold) || s.ScoreThreshold < 0 {
		problems = append(problems, "match.score_threshold must be a non-negative number")
	}
	if math.IsNaN(s.FuzzThreshold) || s.FuzzThreshold < 0 || s.FuzzThreshold > 100 {
		problems = append(problems, "match.fuzz_threshold must be between 0 and 100")
	}
	if math.IsNaN(s.ScoreDropThreshold) || s.ScoreDropThreshold < 0 {
		problems = append(problems, "match.score_drop_threshold must be a non-negative number")
	}
	if s.FuzzAlgorithm != "" && !fuzzy.IsSupported(s.FuzzAlgorithm) {
		problems = append(problems, fmt.Sprintf("match.fuzz_algorithm '%s' is not supported (use one of %s)",
			s.FuzzAlgorithm, strings.Join(fuzzy.Algorithms(), ", ")))
	}
	if s.Concurrency < 0 {
		problems = append(problems, "match.concurrency cannot be negative")
	}
	switch s.DuplicatePolicy {
	case "", DuplicatePolicyError, DuplicatePolicyLastWins:
	default:
		problems = append(problems, "match.duplicate_policy must be 'error' or 'last_wins'")
	}

	return problems
}

// ProviderSettings describes how candidates are requested from the search backend.
type ProviderSettings struct {
	Kind                  string                 `toml:"kind" json:"kind"`                     // "elasticsearch" or "local"
	FieldToQuery          string                 `toml:"field_to_query" json:"field_to_query"` // Text field matched against the origin title
	IDField               string                 `toml:"id_field" json:"id_field"`             // Field holding the target document identifier
	QueryType             string                 `toml:"query_type" json:"query_type"`         // "common", "match" or "match_phrase"
	Size                  int                    `toml:"size" json:"size"`                     // Maximum candidates requested per origin
	TimeoutSeconds        int                    `toml:"timeout_seconds" json:"timeout_seconds"`
	RetryAttempts         int                    `toml:"retry_attempts" json:"retry_attempts"` // Total attempts per query; 1 disables retries
	RetryInitialBackoffMs int                    `toml:"retry_initial_backoff_ms" json:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs     int                    `toml:"retry_max_backoff_ms" json:"retry_max_backoff_ms"`
	Options               map[string]interface{} `toml:"options" json:"options,omitempty"` // Passed through to the query (e.g., cutoff_frequency)
}

// ApplyDefaults applies default values to the provider settings
func (p *ProviderSettings) ApplyDefaults() {
	if p.Kind == "" {
		p.Kind = ProviderKindElasticsearch
	}
	if p.FieldToQuery == "" {
		p.FieldToQuery = "title"
	}
	if p.IDField == "" {
		p.IDField = "Paper_ID"
	}
	if p.QueryType == "" {
		p.QueryType = "common"
	}
	if p.Size <= 0 {
		p.Size = 10
	}
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = 60
	}
	if p.RetryAttempts <= 0 {
		p.RetryAttempts = 1
	}
	if p.RetryInitialBackoffMs <= 0 {
		p.RetryInitialBackoffMs = 100
	}
	if p.RetryMaxBackoffMs < p.RetryInitialBackoffMs {
		p.RetryMaxBackoffMs = p.RetryInitialBackoffMs * 20
	}
	if p.Options == nil {
		p.Options = map[string]interface{}{}
	}
}

// Validate returns one message per problem found in the settings.
func (p *ProviderSettings) Validate() []string {
	var problems []string

	switch p.Kind {
	case ProviderKindElasticsearch, ProviderKindLocal:
	default:
		problems = append(problems, "provider.kind must be 'elasticsearch' or 'local'")
	}
	if strings.TrimSpace(p.FieldToQuery) == "" {
		problems = append(problems, "provider.field_to_query cannot be empty or whitespace-only")
	}
	if strings.TrimSpace(p.IDField) == "" {
		problems = append(problems, "provider.id_field cannot be empty or whitespace-only")
	}
	supported := false
	for _, qt := range supportedQueryTypes {
		if p.QueryType == qt {
			supported = true
			break
		}
	}
	if !supported {
		problems = append(problems, "Invalid query type '"+p.QueryType+"' (must be one of "+strings.Join(supportedQueryTypes, ", ")+")")
	}
	if p.Size < 0 {
		problems = append(problems, "provider.size cannot be negative")
	}

	return problems
}

// Timeout returns the per-request timeout.
func (p ProviderSettings) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// RetryInitialBackoff returns the delay before the first retry.
func (p ProviderSettings) RetryInitialBackoff() time.Duration {
	return time.Duration(p.RetryInitialBackoffMs) * time.Millisecond
}

// RetryMaxBackoff returns the upper bound for the delay between retries.
func (p ProviderSettings) RetryMaxBackoff() time.Duration {
	return time.Duration(p.RetryMaxBackoffMs) * time.Millisecond
}
