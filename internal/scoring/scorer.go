// Package scoring decides how many of the leading candidates returned for an origin title
// are confident matches.
//
// The scan walks the ranked candidates once, front to back. A candidate passes when its
// relevance score reaches the score threshold, or otherwise when its fuzzy similarity to
// the origin title reaches the fuzz threshold. After each passing candidate, the relative
// score drop to the next one is checked; a drop above the drop threshold ends the scan.
// The first disqualified candidate ends the scan as well, so later candidates never count.
package scoring

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/internal/fuzzy"
	"github.com/gcbaptista/go-titlematch/model"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// StopReason tells why a scan ended.
type StopReason string

const (
	// StopExhausted means every candidate was counted.
	StopExhausted StopReason = "exhausted"
	// StopFuzzyBelowThreshold means a candidate failed both the relevance and the fuzzy gate.
	StopFuzzyBelowThreshold StopReason = "fuzzy_below_threshold"
	// StopScoreDrop means the score drop to the next candidate exceeded the drop threshold.
	StopScoreDrop StopReason = "score_drop"
	// StopDegenerateScore means a counted candidate had a zero, negative or NaN score,
	// so the drop to the next candidate could not be computed.
	StopDegenerateScore StopReason = "degenerate_score"
)

// Outcome describes the result of one scan.
type Outcome struct {
	Count  int        `json:"count"`  // Number of leading confident matches
	Reason StopReason `json:"reason"` // Why the scan ended
	Index  int        `json:"index"`  // Rank of the candidate at which the scan ended
}

// Scorer applies the confidence thresholds of a MatchSettings.
// A Scorer holds no per-scan state and is safe for concurrent use, but the candidates
// passed to a scan are modified (their fuzzy ratio is cached) and must not be shared
// across goroutines during it.
type Scorer struct {
	settings   config.MatchSettings
	similarity fuzzy.Func
	logger     *slog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithLogger sets the logger used for scan diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSimilarity replaces the similarity measure selected by the settings.
func WithSimilarity(fn fuzzy.Func) Option {
	return func(s *Scorer) {
		if fn != nil {
			s.similarity = fn
		}
	}
}

// NewScorer creates a Scorer for the given thresholds.
func NewScorer(settings config.MatchSettings, opts ...Option) (*Scorer, error) {
	settings.ApplyDefaults()
	if problems := settings.Validate(); len(problems) > 0 {
		return nil, internalErrors.NewValidationError("match", problems[0])
	}

	similarity, err := fuzzy.Lookup(settings.FuzzAlgorithm)
	if err != nil {
		return nil, internalErrors.NewValidationError("match.fuzz_algorithm", err.Error())
	}

	s := &Scorer{
		settings:   settings,
		similarity: similarity,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Settings returns the thresholds the scorer applies.
func (s *Scorer) Settings() config.MatchSettings {
	return s.settings
}

// Score returns the number of leading confident matches among candidates.
// candidates must be ordered by descending score and must not be empty.
func (s *Scorer) Score(originTitle string, candidates []*model.Candidate) (int, error) {
	outcome, err := s.Evaluate(originTitle, candidates)
	if err != nil {
		return 0, err
	}
	return outcome.Count, nil
}

// Evaluate runs the scan and reports the count together with where and why it stopped.
func (s *Scorer) Evaluate(originTitle string, candidates []*model.Candidate) (Outcome, error) {
	if len(candidates) == 0 {
		return Outcome{}, internalErrors.NewPreconditionError("score", "candidate list is empty")
	}

	count := 0
	for i, doc := range candidates {
		if !s.passesRelevance(doc) {
			ratio := doc.CachedFuzzRatio(originTitle, s.similarity)
			if ratio < s.settings.FuzzThreshold {
				s.logger.Debug("candidate below fuzz threshold",
					"origin_title", originTitle, "rank", i, "candidate_id", doc.ID,
					"score", doc.Score, "fuzz_ratio", ratio)
				return Outcome{Count: count, Reason: StopFuzzyBelowThreshold, Index: i}, nil
			}
		}

		count++

		if i == len(candidates)-1 {
			return Outcome{Count: count, Reason: StopExhausted, Index: i}, nil
		}

		drop, err := scoreDrop(i, doc.Score, candidates[i+1].Score)
		if err != nil {
			if errors.Is(err, internalErrors.ErrDegenerateScore) {
				s.logger.Debug("treating degenerate score as a drop",
					"origin_title", originTitle, "error", err)
				return Outcome{Count: count, Reason: StopDegenerateScore, Index: i}, nil
			}
			return Outcome{}, fmt.Errorf("failed to compute score drop: %w", err)
		}
		if drop > s.settings.ScoreDropThreshold {
			s.logger.Debug("score drop above threshold",
				"origin_title", originTitle, "rank", i, "drop", drop)
			return Outcome{Count: count, Reason: StopScoreDrop, Index: i}, nil
		}
	}

	return Outcome{Count: count, Reason: StopExhausted, Index: len(candidates) - 1}, nil
}

func (s *Scorer) passesRelevance(doc *model.Candidate) bool {
	return doc.Score >= s.settings.ScoreThreshold
}

// scoreDrop returns the relative decline from score to next.
// A score that is not strictly positive cannot be divided by and yields a DegenerateScoreError.
func scoreDrop(index int, score, next float64) (float64, error) {
	if math.IsNaN(score) || score <= 0 {
		return 0, internalErrors.NewDegenerateScoreError(index, score)
	}
	if math.IsNaN(next) {
		return 0, internalErrors.NewDegenerateScoreError(index+1, next)
	}
	return (score - next) / score, nil
}
