package engine

import (
	"fmt"
	"slices"

	"github.com/gcbaptista/go-titlematch/config"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

// UpdateCollectionSettings changes the settings of a collection. When the identifier field or
// the searchable fields change, the stored documents are reindexed into a fresh collection
// that replaces the old one once it is complete, so concurrent searches never see a partial index.
func (e *Engine) UpdateCollectionSettings(name string, newSettings config.CollectionSettings) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, exists := e.collections[name]
	if !exists {
		return internalErrors.NewCollectionNotFoundError(name)
	}
	if newSettings.Name != "" && newSettings.Name != name {
		return fmt.Errorf("cannot change collection name from '%s' to '%s' during settings update", name, newSettings.Name)
	}
	newSettings.Name = name
	newSettings.ApplyDefaults()
	if err := newSettings.Validate(); err != nil {
		return internalErrors.NewValidationError("collection", err.Error())
	}

	oldSettings := current.Settings()
	if !requiresReindexing(oldSettings, newSettings) {
		return nil
	}

	rebuilt, err := NewCollection(newSettings)
	if err != nil {
		return fmt.Errorf("failed to create collection '%s' with new settings: %w", name, err)
	}
	docs := current.Documents()
	if err := rebuilt.AddDocuments(docs); err != nil {
		return fmt.Errorf("failed to reindex collection '%s': %w", name, err)
	}
	if err := e.persistCollectionUnsafe(name, rebuilt); err != nil {
		return fmt.Errorf("failed to persist reindexed collection '%s': %w", name, err)
	}

	e.collections[name] = rebuilt
	e.notifyChangeUnsafe(name)
	e.logger.Info("collection reindexed", "collection", name, "documents", len(docs),
		"id_field", newSettings.IDField, "searchable_fields", newSettings.SearchableFields)
	return nil
}

// requiresReindexing reports whether switching settings changes what the index holds.
func requiresReindexing(oldSettings, newSettings config.CollectionSettings) bool {
	return oldSettings.IDField != newSettings.IDField ||
		!slices.Equal(oldSettings.SearchableFields, newSettings.SearchableFields)
}
