package indexing

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/index"
	"github.com/gcbaptista/go-titlematch/model"
	"github.com/gcbaptista/go-titlematch/store"
)

// Helper to create basic CollectionSettings for tests
func newTestSettings() *config.CollectionSettings {
	return &config.CollectionSettings{
		Name:             "mag",
		IDField:          "Paper_ID",
		SearchableFields: []string{"title", "venue"},
	}
}

func newTestService(t *testing.T) (*Service, *index.InvertedIndex, *store.DocumentStore) {
	t.Helper()
	invIdx := index.NewInvertedIndex(newTestSettings())
	docStore := store.NewDocumentStore()
	service, err := NewService(invIdx, docStore)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return service, invIdx, docStore
}

func postingFor(list index.PostingList, docID uint32, field string) (index.PostingEntry, bool) {
	for _, entry := range list {
		if entry.DocID == docID && entry.FieldName == field {
			return entry, true
		}
	}
	return index.PostingEntry{}, false
}

func TestNewService(t *testing.T) {
	t.Run("valid initialization", func(t *testing.T) {
		invIdx := &index.InvertedIndex{Settings: newTestSettings()}
		docStore := &store.DocumentStore{}
		_, err := NewService(invIdx, docStore)
		if err != nil {
			t.Errorf("NewService() error = %v, wantErr nil", err)
		}
		if invIdx.Index == nil || docStore.Docs == nil || docStore.ExternalIDtoInternalID == nil || docStore.FieldLengths == nil {
			t.Error("NewService() should initialize nil maps")
		}
	})

	t.Run("nil inverted index", func(t *testing.T) {
		_, err := NewService(nil, &store.DocumentStore{})
		if err == nil {
			t.Error("NewService() with nil invertedIndex, wantErr, got nil")
		}
	})

	t.Run("nil document store", func(t *testing.T) {
		_, err := NewService(&index.InvertedIndex{Settings: newTestSettings()}, nil)
		if err == nil {
			t.Error("NewService() with nil documentStore, wantErr, got nil")
		}
	})

	t.Run("nil inverted index settings", func(t *testing.T) {
		_, err := NewService(&index.InvertedIndex{}, &store.DocumentStore{})
		if err == nil {
			t.Error("NewService() with nil invertedIndex.Settings, wantErr, got nil")
		}
	})
}

func TestAddDocuments(t *testing.T) {
	service, invIdx, docStore := newTestService(t)

	docs := []model.TargetDocument{
		{"Paper_ID": "p1", "title": "To be or not to be", "venue": "Stage"},
		{"Paper_ID": "p2", "title": "Citation networks", "abstract": "not indexed"},
	}
	if err := service.AddDocuments(docs); err != nil {
		t.Fatalf("AddDocuments() error = %v", err)
	}

	if got := service.DocumentCount(); got != 2 {
		t.Fatalf("DocumentCount() = %d, want 2", got)
	}

	p1 := docStore.ExternalIDtoInternalID["p1"]
	p2 := docStore.ExternalIDtoInternalID["p2"]
	if p1 == p2 {
		t.Fatalf("documents should get distinct internal IDs")
	}

	t.Run("positions and term frequency", func(t *testing.T) {
		entry, ok := postingFor(invIdx.Index["be"], p1, "title")
		if !ok {
			t.Fatal("expected posting for 'be' in p1 title")
		}
		if entry.TermFreq != 2 {
			t.Errorf("TermFreq = %d, want 2", entry.TermFreq)
		}
		if !reflect.DeepEqual(entry.Positions, []int{1, 5}) {
			t.Errorf("Positions = %v, want [1 5]", entry.Positions)
		}
	})

	t.Run("fields indexed separately", func(t *testing.T) {
		if _, ok := postingFor(invIdx.Index["stage"], p1, "venue"); !ok {
			t.Error("expected venue posting for 'stage'")
		}
		if _, ok := invIdx.Index["indexed"]; ok {
			t.Error("non-searchable field should not be indexed")
		}
		if got := invIdx.DocumentFrequency("networks", "title"); got != 1 {
			t.Errorf("DocumentFrequency(networks, title) = %d, want 1", got)
		}
		if got := invIdx.DocumentFrequency("networks", "venue"); got != 0 {
			t.Errorf("DocumentFrequency(networks, venue) = %d, want 0", got)
		}
	})

	t.Run("field lengths", func(t *testing.T) {
		if got := docStore.FieldLengths[p1]["title"]; got != 6 {
			t.Errorf("title length = %d, want 6", got)
		}
		if _, ok := docStore.FieldLengths[p2]["venue"]; ok {
			t.Error("missing field should have no length")
		}
	})

	t.Run("stored document keeps all fields", func(t *testing.T) {
		if got := docStore.Docs[p2]["abstract"]; got != "not indexed" {
			t.Errorf("stored abstract = %q", got)
		}
	})
}

func TestAddDocumentsReplacesExisting(t *testing.T) {
	service, invIdx, docStore := newTestService(t)

	if err := service.AddDocuments([]model.TargetDocument{{"Paper_ID": "p1", "title": "old words"}}); err != nil {
		t.Fatalf("AddDocuments() error = %v", err)
	}
	internalID := docStore.ExternalIDtoInternalID["p1"]

	if err := service.AddDocuments([]model.TargetDocument{{"Paper_ID": " p1 ", "title": "new words"}}); err != nil {
		t.Fatalf("AddDocuments() error = %v", err)
	}

	if service.DocumentCount() != 1 {
		t.Errorf("DocumentCount() = %d, want 1", service.DocumentCount())
	}
	if docStore.ExternalIDtoInternalID["p1"] != internalID {
		t.Error("replacement should keep the internal ID")
	}
	if _, ok := invIdx.Index["old"]; ok {
		t.Error("postings of the replaced title should be removed")
	}
	if entry, ok := postingFor(invIdx.Index["words"], internalID, "title"); !ok || entry.TermFreq != 1 {
		t.Errorf("expected exactly one posting for 'words', got %v", invIdx.Index["words"])
	}
}

func TestAddDocumentsMissingID(t *testing.T) {
	service, _, _ := newTestService(t)

	for _, doc := range []model.TargetDocument{{"title": "no id"}, {"Paper_ID": "  ", "title": "blank id"}} {
		if err := service.AddDocuments([]model.TargetDocument{doc}); err == nil {
			t.Errorf("AddDocuments(%v) expected error", doc)
		}
	}
}

func TestAddDocumentsInBatches(t *testing.T) {
	service, _, _ := newTestService(t)

	docs := make([]model.TargetDocument, 0, 7)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		docs = append(docs, model.TargetDocument{"Paper_ID": id, "title": "title " + id})
	}

	var progress []int
	err := service.AddDocumentsInBatches(context.Background(), docs, 3, func(done, total int) {
		if total != 7 {
			t.Errorf("progress total = %d, want 7", total)
		}
		progress = append(progress, done)
	})
	if err != nil {
		t.Fatalf("AddDocumentsInBatches() error = %v", err)
	}
	if !reflect.DeepEqual(progress, []int{3, 6, 7}) {
		t.Errorf("progress = %v, want [3 6 7]", progress)
	}
	if service.DocumentCount() != 7 {
		t.Errorf("DocumentCount() = %d, want 7", service.DocumentCount())
	}
}

func TestAddDocumentsInBatchesCancelled(t *testing.T) {
	service, _, _ := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	docs := []model.TargetDocument{{"Paper_ID": "a", "title": "a"}, {"Paper_ID": "b", "title": "b"}}
	err := service.AddDocumentsInBatches(ctx, docs, 1, func(done, total int) { cancel() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("AddDocumentsInBatches() error = %v, want context.Canceled", err)
	}
	if service.DocumentCount() != 1 {
		t.Errorf("DocumentCount() = %d, want 1", service.DocumentCount())
	}
}

func TestPostingListsStaySorted(t *testing.T) {
	service, invIdx, _ := newTestService(t)

	docs := []model.TargetDocument{
		{"Paper_ID": "c", "title": "shared", "venue": "shared"},
		{"Paper_ID": "a", "title": "shared"},
		{"Paper_ID": "b", "venue": "shared"},
	}
	if err := service.AddDocuments(docs); err != nil {
		t.Fatalf("AddDocuments() error = %v", err)
	}
	// Re-adding the first document reinserts its postings.
	if err := service.AddDocuments(docs[:1]); err != nil {
		t.Fatalf("AddDocuments() error = %v", err)
	}

	list := invIdx.Index["shared"]
	if len(list) != 4 {
		t.Fatalf("len(postings) = %d, want 4", len(list))
	}
	for i := 1; i < len(list); i++ {
		prev, cur := list[i-1], list[i]
		if prev.DocID > cur.DocID || (prev.DocID == cur.DocID && prev.FieldName > cur.FieldName) {
			t.Errorf("postings out of order at %d: %+v before %+v", i, prev, cur)
		}
	}
}

func TestDeleteDocument(t *testing.T) {
	service, invIdx, docStore := newTestService(t)

	docs := []model.TargetDocument{
		{"Paper_ID": "p1", "title": "unique shared"},
		{"Paper_ID": "p2", "title": "shared"},
	}
	if err := service.AddDocuments(docs); err != nil {
		t.Fatalf("AddDocuments() error = %v", err)
	}

	if err := service.DeleteDocument("p1"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if _, ok := invIdx.Index["unique"]; ok {
		t.Error("term only in the deleted document should be gone")
	}
	if len(invIdx.Index["shared"]) != 1 {
		t.Errorf("shared postings = %d, want 1", len(invIdx.Index["shared"]))
	}
	if _, ok := docStore.ExternalIDtoInternalID["p1"]; ok {
		t.Error("deleted ID should be unmapped")
	}

	if err := service.DeleteDocument("p1"); err == nil {
		t.Error("deleting a missing document should fail")
	}
}

func TestDeleteAllDocuments(t *testing.T) {
	service, invIdx, docStore := newTestService(t)

	if err := service.AddDocuments([]model.TargetDocument{{"Paper_ID": "p1", "title": "something"}}); err != nil {
		t.Fatalf("AddDocuments() error = %v", err)
	}
	if err := service.DeleteAllDocuments(); err != nil {
		t.Fatalf("DeleteAllDocuments() error = %v", err)
	}

	if service.DocumentCount() != 0 || len(invIdx.Index) != 0 || docStore.NextID != 0 {
		t.Error("DeleteAllDocuments() should reset the collection")
	}

	// The service stays usable.
	if err := service.AddDocuments([]model.TargetDocument{{"Paper_ID": "p2", "title": "again"}}); err != nil {
		t.Fatalf("AddDocuments() after reset error = %v", err)
	}
	if service.DocumentCount() != 1 {
		t.Errorf("DocumentCount() = %d, want 1", service.DocumentCount())
	}
}
