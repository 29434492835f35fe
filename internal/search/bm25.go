package search

import (
	"math"

	"github.com/gcbaptista/go-titlematch/index"
	"github.com/gcbaptista/go-titlematch/store"
)

// BM25 parameters
const (
	bm25K1 = 1.2  // Controls term frequency saturation
	bm25B  = 0.75 // Controls how much effect document length has
)

// BM25Calculator scores terms of one field. It snapshots the collection size and the
// average field length at creation, so it must be used under the same read locks.
type BM25Calculator struct {
	invertedIndex *index.InvertedIndex
	documentStore *store.DocumentStore
	field         string
	totalDocs     float64
	avgFieldLen   float64
	idfCache      map[string]float64
}

// NewBM25Calculator creates a calculator for field.
// The caller must hold read locks on both the index and the store.
func NewBM25Calculator(invIndex *index.InvertedIndex, docStore *store.DocumentStore, field string) *BM25Calculator {
	return &BM25Calculator{
		invertedIndex: invIndex,
		documentStore: docStore,
		field:         field,
		totalDocs:     float64(len(docStore.Docs)),
		avgFieldLen:   docStore.AverageFieldLength(field),
		idfCache:      make(map[string]float64),
	}
}

// IDF returns the inverse document frequency of term in the field.
// IDF = log(1 + (N - df + 0.5) / (df + 0.5)), which stays positive even when every
// document contains the term.
func (calc *BM25Calculator) IDF(term string) float64 {
	if idf, ok := calc.idfCache[term]; ok {
		return idf
	}
	if calc.totalDocs == 0 {
		return 0
	}
	docFreq := float64(calc.invertedIndex.DocumentFrequency(term, calc.field))
	if docFreq == 0 {
		calc.idfCache[term] = 0
		return 0
	}
	idf := math.Log(1 + (calc.totalDocs-docFreq+0.5)/(docFreq+0.5))
	calc.idfCache[term] = idf
	return idf
}

// DocumentFrequencyRatio returns the share of documents containing term, in [0, 1].
func (calc *BM25Calculator) DocumentFrequencyRatio(term string) float64 {
	if calc.totalDocs == 0 {
		return 0
	}
	return float64(calc.invertedIndex.DocumentFrequency(term, calc.field)) / calc.totalDocs
}

// Score calculates the BM25 score of term for one posting.
// BM25 = IDF * (tf * (k1 + 1)) / (tf + k1 * (1 - b + b * (|d| / avgdl)))
func (calc *BM25Calculator) Score(term string, entry index.PostingEntry) float64 {
	idf := calc.IDF(term)
	if idf == 0 {
		return 0
	}

	tf := float64(entry.TermFreq)
	docLength := float64(calc.documentStore.FieldLengths[entry.DocID][calc.field])
	norm := 1.0
	if calc.avgFieldLen > 0 {
		norm = 1 - bm25B + bm25B*(docLength/calc.avgFieldLen)
	}
	return idf * (tf * (bm25K1 + 1)) / (tf + bm25K1*norm)
}
