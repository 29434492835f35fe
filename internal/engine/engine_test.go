package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/model"
	"github.com/gcbaptista/go-titlematch/services"

	internalErrors "github.com/gcbaptista/go-titlematch/internal/errors"
)

func TestEngine_CollectionLifecycle(t *testing.T) {
	dataDir := t.TempDir()
	engine := NewEngine(dataDir)

	require.NoError(t, engine.CreateCollection(config.CollectionSettings{Name: "mag"}))
	assert.Error(t, engine.CreateCollection(config.CollectionSettings{Name: "mag"}), "duplicate collection")
	assert.Equal(t, []string{"mag"}, engine.ListCollections())

	collection, err := engine.GetCollection("mag")
	require.NoError(t, err)
	settings := collection.Settings()
	assert.Equal(t, "Paper_ID", settings.IDField)
	assert.Equal(t, []string{"title"}, settings.SearchableFields)

	require.NoError(t, engine.AddDocuments("mag", []model.TargetDocument{
		{"Paper_ID": "2074872390", "title": "The Eigenfactor Metrics"},
	}))
	assert.FileExists(t, filepath.Join(dataDir, "mag", documentStoreFile))
	assert.FileExists(t, filepath.Join(dataDir, "mag", invertedIndexFile))

	require.NoError(t, engine.DeleteCollection("mag"))
	assert.Empty(t, engine.ListCollections())
	assert.NoDirExists(t, filepath.Join(dataDir, "mag"))
}

func TestEngine_MissingCollection(t *testing.T) {
	engine := NewEngine("")

	_, err := engine.GetCollection("dblp")
	assert.True(t, errors.Is(err, internalErrors.ErrCollectionNotFound))
	assert.True(t, errors.Is(engine.DeleteCollection("dblp"), internalErrors.ErrCollectionNotFound))
	assert.True(t, errors.Is(engine.AddDocuments("dblp", nil), internalErrors.ErrCollectionNotFound))
}

func TestEngine_InvalidSettings(t *testing.T) {
	engine := NewEngine("")

	for _, settings := range []config.CollectionSettings{
		{Name: ""},
		{Name: "a/b"},
		{Name: "mag", SearchableFields: []string{"title", "title"}},
	} {
		err := engine.CreateCollection(settings)
		assert.True(t, errors.Is(err, internalErrors.ErrInvalidInput), "settings %+v", settings)
	}
}

func TestEngine_ReloadsFromDisk(t *testing.T) {
	dataDir := t.TempDir()

	engine := NewEngine(dataDir)
	docs := []model.TargetDocument{
		{"Paper_ID": "1", "title": "Citation networks in the social sciences"},
		{"Paper_ID": "2", "title": "The structure of scientific collaboration networks"},
	}
	require.NoError(t, engine.BuildCollection(context.Background(), config.CollectionSettings{Name: "mag"}, docs, nil))

	// Unreadable collections are skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "broken", settingsFile), []byte("not gob"), 0o600))

	reloaded := NewEngine(dataDir)
	assert.Equal(t, []string{"mag"}, reloaded.ListCollections())

	collection, err := reloaded.GetCollection("mag")
	require.NoError(t, err)
	assert.Equal(t, 2, collection.DocumentCount())

	response, err := collection.Search(services.ProviderQuery{Title: "collaboration networks", QueryType: services.QueryTypeMatchPhrase})
	require.NoError(t, err)
	require.Len(t, response.Hits, 1)
	assert.Equal(t, "2", response.Hits[0].ID)
}

func TestEngine_UpdateCollectionSettingsReindexes(t *testing.T) {
	engine := NewEngine(t.TempDir())
	docs := []model.TargetDocument{
		{"Paper_ID": "1", "title": "Eigenfactor", "venue": "Journal of the American Society for Information Science"},
	}
	require.NoError(t, engine.BuildCollection(context.Background(), config.CollectionSettings{Name: "mag"}, docs, nil))

	collection, err := engine.GetCollection("mag")
	require.NoError(t, err)
	_, err = collection.Search(services.ProviderQuery{Title: "american", FieldToQuery: "venue"})
	assert.True(t, errors.Is(err, internalErrors.ErrInvalidInput))

	require.NoError(t, engine.UpdateCollectionSettings("mag", config.CollectionSettings{SearchableFields: []string{"title", "venue"}}))

	collection, err = engine.GetCollection("mag")
	require.NoError(t, err)
	response, err := collection.Search(services.ProviderQuery{Title: "american", FieldToQuery: "venue", QueryType: services.QueryTypeMatch})
	require.NoError(t, err)
	require.Len(t, response.Hits, 1)
	assert.Equal(t, "1", response.Hits[0].ID)

	assert.Error(t, engine.UpdateCollectionSettings("mag", config.CollectionSettings{Name: "renamed"}))
	assert.True(t, errors.Is(engine.UpdateCollectionSettings("dblp", config.CollectionSettings{}), internalErrors.ErrCollectionNotFound))
}

func TestEngine_OnCollectionChange(t *testing.T) {
	engine := NewEngine("")
	var changed []string
	engine.OnCollectionChange(func(name string) { changed = append(changed, name) })

	require.NoError(t, engine.BuildCollection(context.Background(), config.CollectionSettings{Name: "mag"},
		[]model.TargetDocument{{"Paper_ID": "1", "title": "Eigenfactor"}}, nil))
	require.NoError(t, engine.AddDocuments("mag", []model.TargetDocument{{"Paper_ID": "2", "title": "Citations"}}))
	require.NoError(t, engine.UpdateCollectionSettings("mag", config.CollectionSettings{SearchableFields: []string{"title", "venue"}}))
	require.NoError(t, engine.DeleteCollection("mag"))

	assert.Equal(t, []string{"mag", "mag", "mag", "mag"}, changed)
}
