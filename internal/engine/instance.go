package engine

import (
	"context"
	"fmt"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/index"
	"github.com/gcbaptista/go-titlematch/internal/indexing"
	"github.com/gcbaptista/go-titlematch/internal/search"
	"github.com/gcbaptista/go-titlematch/model"
	"github.com/gcbaptista/go-titlematch/services"
	"github.com/gcbaptista/go-titlematch/store"
)

// Collection holds all components and services for a single target collection.
type Collection struct {
	settings      *config.CollectionSettings
	InvertedIndex *index.InvertedIndex
	DocumentStore *store.DocumentStore
	indexer       *indexing.Service
	searcher      *search.Service
}

// NewCollection creates an empty collection with the given settings.
func NewCollection(settings config.CollectionSettings) (*Collection, error) {
	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return newCollectionFromParts(&settings, index.NewInvertedIndex(&settings), store.NewDocumentStore())
}

// newCollectionFromParts wires services around an index and store, typically loaded from disk.
func newCollectionFromParts(settings *config.CollectionSettings, invIndex *index.InvertedIndex, docStore *store.DocumentStore) (*Collection, error) {
	invIndex.Settings = settings

	indexerService, err := indexing.NewService(invIndex, docStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexer service: %w", err)
	}
	searchService, err := search.NewService(invIndex, docStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create search service: %w", err)
	}

	return &Collection{
		settings:      settings,
		InvertedIndex: invIndex,
		DocumentStore: docStore,
		indexer:       indexerService,
		searcher:      searchService,
	}, nil
}

// AddDocuments delegates to the underlying indexing service.
func (c *Collection) AddDocuments(docs []model.TargetDocument) error {
	return c.indexer.AddDocuments(docs)
}

// AddDocumentsInBatches delegates to the underlying indexing service.
func (c *Collection) AddDocumentsInBatches(ctx context.Context, docs []model.TargetDocument, batchSize int, progress func(done, total int)) error {
	return c.indexer.AddDocumentsInBatches(ctx, docs, batchSize, progress)
}

// DeleteAllDocuments delegates to the underlying indexing service.
func (c *Collection) DeleteAllDocuments() error {
	return c.indexer.DeleteAllDocuments()
}

// DeleteDocument delegates to the underlying indexing service.
func (c *Collection) DeleteDocument(docID string) error {
	return c.indexer.DeleteDocument(docID)
}

// DocumentCount returns the number of documents in the collection.
func (c *Collection) DocumentCount() int {
	return c.indexer.DocumentCount()
}

// Search delegates to the underlying search service.
func (c *Collection) Search(query services.ProviderQuery) (*services.ProviderResponse, error) {
	return c.searcher.Search(query)
}

// Settings returns a copy of the collection settings.
func (c *Collection) Settings() config.CollectionSettings {
	settings := *c.settings
	settings.SearchableFields = append([]string(nil), c.settings.SearchableFields...)
	return settings
}

// Documents returns a copy of every stored document.
func (c *Collection) Documents() []model.TargetDocument {
	c.DocumentStore.Mu.RLock()
	defer c.DocumentStore.Mu.RUnlock()

	docs := make([]model.TargetDocument, 0, len(c.DocumentStore.Docs))
	for _, doc := range c.DocumentStore.Docs {
		docs = append(docs, doc.Clone())
	}
	return docs
}
