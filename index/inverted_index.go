package index

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/gcbaptista/go-titlematch/config"
)

// InvertedIndex maps a term (token) to the documents containing it.
type InvertedIndex struct {
	Mu       sync.RWMutex
	Index    map[string]PostingList
	Settings *config.CollectionSettings // Reference to settings for this collection
}

// NewInvertedIndex creates an empty index for a collection.
func NewInvertedIndex(settings *config.CollectionSettings) *InvertedIndex {
	return &InvertedIndex{
		Index:    make(map[string]PostingList),
		Settings: settings,
	}
}

// DocumentFrequency returns the number of documents with term in field.
// A document has at most one entry per term and field. The caller must hold Mu.
func (ii *InvertedIndex) DocumentFrequency(term, field string) int {
	n := 0
	for _, entry := range ii.Index[term] {
		if entry.FieldName == field {
			n++
		}
	}
	return n
}

// gobInvertedIndexData is a helper struct for Gob encoding/decoding InvertedIndex data.
// It excludes the mutex.
type gobInvertedIndexData struct {
	Index    map[string]PostingList
	Settings *config.CollectionSettings
}

// GobEncode implements the gob.GobEncoder interface for InvertedIndex.
func (ii *InvertedIndex) GobEncode() ([]byte, error) {
	ii.Mu.RLock()
	defer ii.Mu.RUnlock()

	dataToEncode := gobInvertedIndexData{
		Index:    ii.Index,
		Settings: ii.Settings,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(dataToEncode); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface for InvertedIndex.
func (ii *InvertedIndex) GobDecode(data []byte) error {
	decodedData := gobInvertedIndexData{}
	if err := gob.NewDecoder(bytes.NewBuffer(data)).Decode(&decodedData); err != nil {
		return err
	}

	ii.Mu.Lock()
	defer ii.Mu.Unlock()

	ii.Index = decodedData.Index
	if decodedData.Settings != nil {
		ii.Settings = decodedData.Settings
	}
	if ii.Index == nil {
		ii.Index = make(map[string]PostingList)
	}
	return nil
}
