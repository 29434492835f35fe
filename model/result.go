package model

import "sort"

// CollectionResult is the aggregated outcome of matching a batch of origin documents.
// An origin identifier appears in exactly one of Matches or Failures: a failed
// candidate retrieval is never reported as a zero-match result.
type CollectionResult struct {
	OriginDataset    string              `json:"origin_dataset"`
	TargetCollection string              `json:"target_collection"`
	Matches          map[string][]string `json:"matches"`            // Origin ID -> confident target IDs, in rank order
	Failures         map[string]string   `json:"failures,omitempty"` // Origin ID -> failure message
}

// NewCollectionResult creates an empty result for the given datasets.
func NewCollectionResult(originDataset, targetCollection string) *CollectionResult {
	return &CollectionResult{
		OriginDataset:    originDataset,
		TargetCollection: targetCollection,
		Matches:          make(map[string][]string),
		Failures:         make(map[string]string),
	}
}

// OriginIDs returns every origin identifier in the result, sorted.
func (r *CollectionResult) OriginIDs() []string {
	ids := make([]string, 0, len(r.Matches)+len(r.Failures))
	for id := range r.Matches {
		ids = append(ids, id)
	}
	for id := range r.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MatchedCount returns the number of origins with at least one confident match.
func (r *CollectionResult) MatchedCount() int {
	n := 0
	for _, ids := range r.Matches {
		if len(ids) > 0 {
			n++
		}
	}
	return n
}
