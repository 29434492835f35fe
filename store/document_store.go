package store

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/gcbaptista/go-titlematch/model"
)

// DocumentStore holds the stored documents of a collection and the token count of each
// searchable field, which BM25 needs for length normalization.
type DocumentStore struct {
	Mu                     sync.RWMutex
	Docs                   map[uint32]model.TargetDocument // Internal ID to full document
	ExternalIDtoInternalID map[string]uint32               // User-provided ID to internal uint32 ID
	FieldLengths           map[uint32]map[string]int       // Internal ID -> field -> token count
	NextID                 uint32
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	ds := &DocumentStore{}
	ds.init()
	return ds
}

func (ds *DocumentStore) init() {
	if ds.Docs == nil {
		ds.Docs = make(map[uint32]model.TargetDocument)
	}
	if ds.ExternalIDtoInternalID == nil {
		ds.ExternalIDtoInternalID = make(map[string]uint32)
	}
	if ds.FieldLengths == nil {
		ds.FieldLengths = make(map[uint32]map[string]int)
	}
}

// AverageFieldLength returns the mean token count of field across all documents.
// The caller must hold Mu.
func (ds *DocumentStore) AverageFieldLength(field string) float64 {
	if len(ds.FieldLengths) == 0 {
		return 0
	}
	total := 0
	for _, lengths := range ds.FieldLengths {
		total += lengths[field]
	}
	return float64(total) / float64(len(ds.FieldLengths))
}

// gobDocumentStoreData is a helper struct for Gob encoding/decoding DocumentStore data.
// It excludes the mutex.
type gobDocumentStoreData struct {
	Docs                   map[uint32]model.TargetDocument
	ExternalIDtoInternalID map[string]uint32
	FieldLengths           map[uint32]map[string]int
	NextID                 uint32
}

// GobEncode implements the gob.GobEncoder interface for DocumentStore.
func (ds *DocumentStore) GobEncode() ([]byte, error) {
	ds.Mu.RLock()
	defer ds.Mu.RUnlock()

	dataToEncode := gobDocumentStoreData{
		Docs:                   ds.Docs,
		ExternalIDtoInternalID: ds.ExternalIDtoInternalID,
		FieldLengths:           ds.FieldLengths,
		NextID:                 ds.NextID,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(dataToEncode); err != nil {
		return nil, fmt.Errorf("failed to gob encode document store data: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface for DocumentStore.
func (ds *DocumentStore) GobDecode(data []byte) error {
	decodedData := gobDocumentStoreData{}
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&decodedData); err != nil {
		return fmt.Errorf("failed to gob decode document store data: %w", err)
	}

	ds.Mu.Lock()
	defer ds.Mu.Unlock()

	ds.Docs = decodedData.Docs
	ds.ExternalIDtoInternalID = decodedData.ExternalIDtoInternalID
	ds.FieldLengths = decodedData.FieldLengths
	ds.NextID = decodedData.NextID

	// Maps are nil after decoding an empty store
	ds.init()
	return nil
}
