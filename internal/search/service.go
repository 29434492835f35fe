package search

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gcbaptista/go-titlematch/index"
	"github.com/gcbaptista/go-titlematch/internal/tokenizer"
	"github.com/gcbaptista/go-titlematch/services"
	"github.com/gcbaptista/go-titlematch/store"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// DefaultCutoffFrequency is the document frequency ratio above which a term counts as
// high-frequency in a common terms query.
const DefaultCutoffFrequency = 0.01

// Service implements the search logic for a single collection.
type Service struct {
	invertedIndex *index.InvertedIndex
	documentStore *store.DocumentStore
}

// NewService creates a new search Service.
func NewService(invIndex *index.InvertedIndex, docStore *store.DocumentStore) (*Service, error) {
	if invIndex == nil {
		return nil, fmt.Errorf("inverted index cannot be nil")
	}
	if docStore == nil {
		return nil, fmt.Errorf("document store cannot be nil")
	}
	if invIndex.Settings == nil {
		return nil, fmt.Errorf("inverted index settings cannot be nil")
	}
	return &Service{
		invertedIndex: invIndex,
		documentStore: docStore,
	}, nil
}

// scoredDoc is one matching document before ranking.
type scoredDoc struct {
	docID      uint32
	externalID string
	score      float64
}

// Search runs query against the collection and returns its hits ordered by descending
// score. Equal scores are ordered by identifier so results are reproducible.
func (s *Service) Search(query services.ProviderQuery) (*services.ProviderResponse, error) {
	startTime := time.Now()
	query.ApplyDefaults()

	s.documentStore.Mu.RLock()
	s.invertedIndex.Mu.RLock()
	defer s.documentStore.Mu.RUnlock()
	defer s.invertedIndex.Mu.RUnlock()

	settings := s.invertedIndex.Settings
	if !settings.IsSearchable(query.FieldToQuery) {
		return nil, internalErrors.NewValidationError("field_to_query",
			fmt.Sprintf("field '%s' is not searchable in collection '%s'", query.FieldToQuery, settings.Name))
	}

	calc := NewBM25Calculator(s.invertedIndex, s.documentStore, query.FieldToQuery)
	terms := tokenizer.Tokenize(query.Title)

	var scores map[uint32]float64
	switch query.QueryType {
	case services.QueryTypeMatch:
		scores = s.matchScores(calc, uniqueTerms(terms), query.FieldToQuery)
	case services.QueryTypeCommon:
		scores = s.commonScores(calc, uniqueTerms(terms), query.FieldToQuery, query.OptionFloat("cutoff_frequency", DefaultCutoffFrequency))
	case services.QueryTypeMatchPhrase:
		scores = s.phraseScores(calc, terms, query.FieldToQuery)
	default:
		return nil, internalErrors.NewValidationError("query_type", fmt.Sprintf("unsupported query type '%s'", query.QueryType))
	}

	ranked := make([]scoredDoc, 0, len(scores))
	for docID, score := range scores {
		doc := s.documentStore.Docs[docID]
		externalID, ok := doc.Get(query.IDField)
		if !ok {
			externalID, _ = doc.Get(settings.IDField)
		}
		ranked = append(ranked, scoredDoc{docID: docID, externalID: externalID, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].externalID < ranked[j].externalID
	})

	total := len(ranked)
	if len(ranked) > query.Size {
		ranked = ranked[:query.Size]
	}

	hits := make([]services.Hit, 0, len(ranked))
	for _, r := range ranked {
		doc := s.documentStore.Docs[r.docID]
		title, _ := doc.Get(query.FieldToQuery)
		hits = append(hits, services.Hit{
			ID:     r.externalID,
			Title:  title,
			Score:  r.score,
			Source: doc.Source(),
		})
	}

	return &services.ProviderResponse{
		Hits:    hits,
		Total:   total,
		TookMs:  time.Since(startTime).Milliseconds(),
		QueryID: uuid.New().String(),
		Query:   query,
	}, nil
}

// matchScores scores every document containing at least one of terms.
func (s *Service) matchScores(calc *BM25Calculator, terms []string, field string) map[uint32]float64 {
	scores := make(map[uint32]float64)
	for _, term := range terms {
		for _, entry := range s.invertedIndex.Index[term] {
			if entry.FieldName != field {
				continue
			}
			scores[entry.DocID] += calc.Score(term, entry)
		}
	}
	return scores
}

// commonScores splits terms by document frequency. Documents must contain a low-frequency
// term to match; high-frequency terms only add to the score of documents already matched.
// When every term is high-frequency the query behaves like a match query.
// A cutoff of 1 or more is an absolute document count rather than a ratio.
func (s *Service) commonScores(calc *BM25Calculator, terms []string, field string, cutoff float64) map[uint32]float64 {
	var low, high []string
	for _, term := range terms {
		frequency := calc.DocumentFrequencyRatio(term)
		if cutoff >= 1 {
			frequency = float64(s.invertedIndex.DocumentFrequency(term, field))
		}
		if frequency > cutoff {
			high = append(high, term)
		} else {
			low = append(low, term)
		}
	}

	if len(low) == 0 {
		return s.matchScores(calc, high, field)
	}

	scores := s.matchScores(calc, low, field)
	for _, term := range high {
		for _, entry := range s.invertedIndex.Index[term] {
			if entry.FieldName != field {
				continue
			}
			if _, matched := scores[entry.DocID]; matched {
				scores[entry.DocID] += calc.Score(term, entry)
			}
		}
	}
	return scores
}

// phraseScores scores documents where terms appear consecutively and in order.
func (s *Service) phraseScores(calc *BM25Calculator, terms []string, field string) map[uint32]float64 {
	scores := make(map[uint32]float64)
	if len(terms) == 0 {
		return scores
	}

	// positions[i][docID] holds the positions of terms[i] in the field of docID.
	positions := make([]map[uint32][]int, len(terms))
	for i, term := range terms {
		positions[i] = make(map[uint32][]int)
		for _, entry := range s.invertedIndex.Index[term] {
			if entry.FieldName == field {
				positions[i][entry.DocID] = entry.Positions
			}
		}
	}

	for docID, starts := range positions[0] {
		if !containsPhrase(docID, starts, positions) {
			continue
		}
		score := 0.0
		for _, term := range uniqueTerms(terms) {
			for _, entry := range s.invertedIndex.Index[term] {
				if entry.DocID == docID && entry.FieldName == field {
					score += calc.Score(term, entry)
					break
				}
			}
		}
		scores[docID] = score
	}
	return scores
}

func containsPhrase(docID uint32, starts []int, positions []map[uint32][]int) bool {
	for _, start := range starts {
		found := true
		for offset := 1; offset < len(positions); offset++ {
			if !containsInt(positions[offset][docID], start+offset) {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}

// containsInt reports whether the ascending slice values contains v.
func containsInt(values []int, v int) bool {
	i := sort.SearchInts(values, v)
	return i < len(values) && values[i] == v
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	unique := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		unique = append(unique, term)
	}
	return unique
}
