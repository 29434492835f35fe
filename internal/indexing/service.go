package indexing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gcbaptista/go-titlematch/index"
	"github.com/gcbaptista/go-titlematch/internal/tokenizer"
	"github.com/gcbaptista/go-titlematch/model"
	"github.com/gcbaptista/go-titlematch/store"
)

// Service implements the indexing logic for a single collection.
type Service struct {
	invertedIndex *index.InvertedIndex
	documentStore *store.DocumentStore
	// settings are accessible via invertedIndex.Settings
}

// NewService creates a new indexing Service.
// invertedIndex.Settings must not be nil.
func NewService(invertedIndex *index.InvertedIndex, documentStore *store.DocumentStore) (*Service, error) {
	if invertedIndex == nil {
		return nil, fmt.Errorf("inverted index cannot be nil")
	}
	if documentStore == nil {
		return nil, fmt.Errorf("document store cannot be nil")
	}
	if invertedIndex.Settings == nil {
		return nil, fmt.Errorf("inverted index settings cannot be nil")
	}
	if invertedIndex.Index == nil {
		invertedIndex.Index = make(map[string]index.PostingList)
	}
	if documentStore.Docs == nil {
		documentStore.Docs = make(map[uint32]model.TargetDocument)
	}
	if documentStore.ExternalIDtoInternalID == nil {
		documentStore.ExternalIDtoInternalID = make(map[string]uint32)
	}
	if documentStore.FieldLengths == nil {
		documentStore.FieldLengths = make(map[uint32]map[string]int)
	}
	return &Service{
		invertedIndex: invertedIndex,
		documentStore: documentStore,
	}, nil
}

// AddDocuments adds a batch of documents to the collection.
// A document whose identifier already exists replaces the stored one.
func (s *Service) AddDocuments(docs []model.TargetDocument) error {
	s.documentStore.Mu.Lock()
	s.invertedIndex.Mu.Lock()
	defer s.documentStore.Mu.Unlock()
	defer s.invertedIndex.Mu.Unlock()

	for i, doc := range docs {
		if err := s.addSingleDocumentUnsafe(doc); err != nil {
			return fmt.Errorf("failed to add document at position %d: %w", i, err)
		}
	}
	return nil
}

// AddDocumentsInBatches adds docs in batches of batchSize, releasing the locks between
// batches so searches can interleave with a long build. It stops between batches when ctx
// is done. progress, when set, is called after each batch.
func (s *Service) AddDocumentsInBatches(ctx context.Context, docs []model.TargetDocument, batchSize int, progress func(done, total int)) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	for i := 0; i < len(docs); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, len(docs))
		if err := s.AddDocuments(docs[i:end]); err != nil {
			return fmt.Errorf("failed to add batch starting at position %d: %w", i, err)
		}
		if progress != nil {
			progress(end, len(docs))
		}
	}
	return nil
}

// addSingleDocumentUnsafe indexes one document.
// It assumes that the caller already holds locks on documentStore and invertedIndex.
func (s *Service) addSingleDocumentUnsafe(doc model.TargetDocument) error {
	settings := s.invertedIndex.Settings

	docID, ok := doc.Get(settings.IDField)
	docID = strings.TrimSpace(docID)
	if !ok || docID == "" {
		return fmt.Errorf("document field '%s' is missing or empty", settings.IDField)
	}

	internalID, exists := s.documentStore.ExternalIDtoInternalID[docID]
	if exists {
		s.removePostingsUnsafe(internalID)
	} else {
		internalID = s.documentStore.NextID
		s.documentStore.ExternalIDtoInternalID[docID] = internalID
		s.documentStore.NextID++
	}

	stored := doc.Clone()
	stored[settings.IDField] = docID
	s.documentStore.Docs[internalID] = stored

	lengths := make(map[string]int, len(settings.SearchableFields))
	for _, fieldName := range settings.SearchableFields {
		text, ok := doc.Get(fieldName)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}

		tokens := tokenizer.Tokenize(text)
		lengths[fieldName] = len(tokens)

		positions := make(map[string][]int)
		for pos, token := range tokens {
			positions[token] = append(positions[token], pos)
		}

		for token, tokenPositions := range positions {
			entry := index.PostingEntry{
				DocID:     internalID,
				FieldName: fieldName,
				TermFreq:  len(tokenPositions),
				Positions: tokenPositions,
			}
			s.insertPostingUnsafe(token, entry)
		}
	}
	s.documentStore.FieldLengths[internalID] = lengths

	return nil
}

// insertPostingUnsafe keeps the posting list sorted by DocID, then FieldName.
func (s *Service) insertPostingUnsafe(token string, entry index.PostingEntry) {
	list := s.invertedIndex.Index[token]
	insertionIdx := sort.Search(len(list), func(i int) bool {
		if list[i].DocID != entry.DocID {
			return list[i].DocID > entry.DocID
		}
		return list[i].FieldName >= entry.FieldName
	})

	list = append(list, index.PostingEntry{})
	copy(list[insertionIdx+1:], list[insertionIdx:])
	list[insertionIdx] = entry
	s.invertedIndex.Index[token] = list
}

// removePostingsUnsafe drops every posting of a document, using its stored text to find the terms.
func (s *Service) removePostingsUnsafe(internalID uint32) {
	doc, ok := s.documentStore.Docs[internalID]
	if !ok {
		return
	}

	for _, fieldName := range s.invertedIndex.Settings.SearchableFields {
		text, ok := doc.Get(fieldName)
		if !ok {
			continue
		}
		for _, token := range tokenizer.Unique(text) {
			postingList, ok := s.invertedIndex.Index[token]
			if !ok {
				continue
			}
			newList := make(index.PostingList, 0, len(postingList))
			for _, entry := range postingList {
				if entry.DocID != internalID || entry.FieldName != fieldName {
					newList = append(newList, entry)
				}
			}
			if len(newList) == 0 {
				delete(s.invertedIndex.Index, token)
			} else {
				s.invertedIndex.Index[token] = newList
			}
		}
	}
	delete(s.documentStore.FieldLengths, internalID)
}

// DeleteAllDocuments removes all documents from the collection.
func (s *Service) DeleteAllDocuments() error {
	s.documentStore.Mu.Lock()
	s.invertedIndex.Mu.Lock()
	defer s.documentStore.Mu.Unlock()
	defer s.invertedIndex.Mu.Unlock()

	s.documentStore.NextID = 0
	s.documentStore.Docs = make(map[uint32]model.TargetDocument)
	s.documentStore.ExternalIDtoInternalID = make(map[string]uint32)
	s.documentStore.FieldLengths = make(map[uint32]map[string]int)
	s.invertedIndex.Index = make(map[string]index.PostingList)
	return nil
}

// DeleteDocument removes a specific document by its external ID.
func (s *Service) DeleteDocument(docID string) error {
	s.documentStore.Mu.Lock()
	s.invertedIndex.Mu.Lock()
	defer s.documentStore.Mu.Unlock()
	defer s.invertedIndex.Mu.Unlock()

	internalID, exists := s.documentStore.ExternalIDtoInternalID[docID]
	if !exists {
		return fmt.Errorf("document with ID '%s' not found", docID)
	}

	s.removePostingsUnsafe(internalID)
	delete(s.documentStore.Docs, internalID)
	delete(s.documentStore.ExternalIDtoInternalID, docID)
	return nil
}

// DocumentCount returns the number of stored documents.
func (s *Service) DocumentCount() int {
	s.documentStore.Mu.RLock()
	defer s.documentStore.Mu.RUnlock()
	return len(s.documentStore.Docs)
}
