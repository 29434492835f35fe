package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/index"
	"github.com/gcbaptista/go-titlematch/internal/persistence"
	"github.com/gcbaptista/go-titlematch/store"
)

const (
	dataDirPerm       = 0755
	settingsFile      = "settings.gob"
	invertedIndexFile = "inverted_index.gob"
	documentStoreFile = "document_store.gob"
)

// loadCollectionsFromDisk loads every collection found in the data directory.
// A collection that cannot be read is skipped with a warning.
func (e *Engine) loadCollectionsFromDisk() {
	logger := e.logger.With("data_dir", e.dataDir)

	if err := os.MkdirAll(e.dataDir, dataDirPerm); err != nil {
		logger.Warn("could not create data directory", "error", err)
	}

	items, err := os.ReadDir(e.dataDir)
	if err != nil {
		logger.Warn("failed to read data directory, no collections loaded", "error", err)
		return
	}

	for _, item := range items {
		if !item.IsDir() {
			continue
		}
		name := item.Name()
		collection, err := e.loadCollection(name)
		if err != nil {
			logger.Warn("skipping collection", "collection", name, "error", err)
			continue
		}
		e.collections[name] = collection
		logger.Info("collection loaded", "collection", name, "documents", collection.DocumentCount())
	}
}

func (e *Engine) loadCollection(name string) (*Collection, error) {
	collectionPath := filepath.Join(e.dataDir, name)

	var settings config.CollectionSettings
	if err := persistence.LoadGob(filepath.Join(collectionPath, settingsFile), &settings); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings.Name != name {
		return nil, fmt.Errorf("collection name in settings ('%s') does not match directory name", settings.Name)
	}

	docStore := store.NewDocumentStore()
	if err := persistence.LoadGob(filepath.Join(collectionPath, documentStoreFile), docStore); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load document store: %w", err)
	}

	invIndex := index.NewInvertedIndex(&settings)
	if err := persistence.LoadGob(filepath.Join(collectionPath, invertedIndexFile), invIndex); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load inverted index: %w", err)
	}

	return newCollectionFromParts(&settings, invIndex, docStore)
}

// PersistCollection saves the current state of a collection to disk.
func (e *Engine) PersistCollection(name string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	collection, exists := e.collections[name]
	if !exists {
		return fmt.Errorf("cannot persist: collection '%s' not found", name)
	}
	return e.persistCollectionUnsafe(name, collection)
}

// persistCollectionUnsafe writes a collection to disk.
// This method assumes the caller holds e.mu. It is a no-op for an in-memory engine.
func (e *Engine) persistCollectionUnsafe(name string, collection *Collection) error {
	if e.dataDir == "" {
		return nil
	}

	collectionPath := filepath.Join(e.dataDir, name)
	if err := os.MkdirAll(collectionPath, dataDirPerm); err != nil {
		return fmt.Errorf("failed to create directory for collection %s: %w", name, err)
	}

	settings := collection.Settings()
	if err := persistence.SaveGob(filepath.Join(collectionPath, settingsFile), settings); err != nil {
		return fmt.Errorf("failed to save settings for collection %s: %w", name, err)
	}
	if err := persistence.SaveGob(filepath.Join(collectionPath, invertedIndexFile), collection.InvertedIndex); err != nil {
		return fmt.Errorf("failed to save inverted index for %s: %w", name, err)
	}
	if err := persistence.SaveGob(filepath.Join(collectionPath, documentStoreFile), collection.DocumentStore); err != nil {
		return fmt.Errorf("failed to save document store for %s: %w", name, err)
	}
	return nil
}
