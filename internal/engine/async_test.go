package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/internal/jobs"
	"github.com/gcbaptista/go-titlematch/model"
	"github.com/gcbaptista/go-titlematch/services"

	testutil "github.com/gcbaptista/go-titlematch/internal/testing"
)

func magDocuments(n int) []model.TargetDocument {
	docs := make([]model.TargetDocument, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, model.TargetDocument{
			"Paper_ID": "M" + string(rune('a'+i%26)) + string(rune('a'+i/26)),
			"title":    "scholarly paper number " + string(rune('a'+i%26)),
		})
	}
	return docs
}

func TestEngine_BuildCollectionAsync(t *testing.T) {
	manager := jobs.NewManager(1, nil)
	defer manager.Stop()

	engine := NewEngine(t.TempDir(), WithJobManager(manager))
	docs := magDocuments(1200)

	jobID, err := engine.BuildCollectionAsync(config.CollectionSettings{Name: "mag"}, docs)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job := testutil.WaitForJob(t, manager, jobID, testutil.DefaultJobPollingOptions())
	testutil.AssertJobCompleted(t, job, model.JobTypeBuildIndex, "mag")
	require.NotNil(t, job.Progress)
	assert.Equal(t, 1200, job.Progress.Current)
	assert.Equal(t, 1200, job.Progress.Total)
	assert.Equal(t, "1200", job.Metadata["document_count"])

	collection, err := engine.GetCollection("mag")
	require.NoError(t, err)
	assert.Equal(t, 1200, collection.DocumentCount())

	response, err := collection.Search(services.ProviderQuery{Title: "scholarly paper number c", QueryType: services.QueryTypeMatch, Size: 5})
	require.NoError(t, err)
	assert.Len(t, response.Hits, 5)
	testutil.AssertDescending(t, response.Hits)
}

func TestEngine_BuildCollectionAsyncFailure(t *testing.T) {
	manager := jobs.NewManager(1, nil)
	defer manager.Stop()

	engine := NewEngine("", WithJobManager(manager))
	docs := []model.TargetDocument{{"Paper_ID": "1", "title": "ok"}, {"title": "missing identifier"}}

	jobID, err := engine.BuildCollectionAsync(config.CollectionSettings{Name: "mag"}, docs)
	require.NoError(t, err)

	job := testutil.WaitForJob(t, manager, jobID, testutil.DefaultJobPollingOptions())
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "Paper_ID")

	_, err = engine.GetCollection("mag")
	assert.Error(t, err, "a failed build never publishes a partial collection")
}

func TestEngine_BuildCollectionAsyncRequiresManager(t *testing.T) {
	engine := NewEngine("")
	_, err := engine.BuildCollectionAsync(config.CollectionSettings{Name: "mag"}, nil)
	assert.Error(t, err)

	manager := jobs.NewManager(1, nil)
	defer manager.Stop()
	engine = NewEngine("", WithJobManager(manager))
	_, err = engine.BuildCollectionAsync(config.CollectionSettings{Name: "../escape"}, nil)
	assert.Error(t, err)
}

func TestEngine_BuildCollectionCancelled(t *testing.T) {
	engine := NewEngine("")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := engine.BuildCollection(ctx, config.CollectionSettings{Name: "mag"}, magDocuments(10), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, engine.ListCollections())
}
