package resultstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-titlematch/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "results", "titlematch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResult() *model.CollectionResult {
	result := model.NewCollectionResult("wos", "mag")
	result.Matches["W1"] = []string{"M9", "M3"}
	result.Matches["W2"] = []string{}
	result.Failures["W3"] = "provider search failed for collection 'mag': timeout"
	return result
}

func TestSaveAndLoadRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	runID, err := store.SaveRun(ctx, sampleResult(), `{"score_threshold":70}`)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, "wos", run.OriginDataset)
	assert.Equal(t, "mag", run.TargetCollection)
	assert.Equal(t, 3, run.OriginCount)
	assert.Equal(t, 1, run.MatchedCount)
	assert.Equal(t, 1, run.FailureCount)
	assert.JSONEq(t, `{"score_threshold":70}`, run.SettingsJSON)
	assert.False(t, run.CreatedAt.IsZero())

	loaded, err := store.LoadResult(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, sampleResult(), loaded, "rank order, zero-match origins and failures survive")
}

func TestListAndDeleteRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.SaveRun(ctx, sampleResult(), "")
	require.NoError(t, err)
	second, err := store.SaveRun(ctx, model.NewCollectionResult("wos", "dblp"), "")
	require.NoError(t, err)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second, runs[0].ID)
	assert.Empty(t, runs[1].SettingsJSON)

	limited, err := store.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	origins, err := store.OriginsMatching(ctx, first, "M3")
	require.NoError(t, err)
	assert.Equal(t, []string{"W1"}, origins)

	require.NoError(t, store.DeleteRun(ctx, first))
	_, err = store.LoadResult(ctx, first)
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.True(t, errors.Is(store.DeleteRun(ctx, first), ErrRunNotFound))

	origins, err = store.OriginsMatching(ctx, first, "M3")
	require.NoError(t, err)
	assert.Empty(t, origins, "rows are removed with the run")
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "titlematch.db")
	store, err := Open(path)
	require.NoError(t, err)
	runID, err := store.SaveRun(context.Background(), sampleResult(), "")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	run, err := reopened.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, path, reopened.Path())
	assert.Equal(t, 3, run.OriginCount)
}

func TestSaveRunRejectsNil(t *testing.T) {
	store := openTestStore(t)
	_, err := store.SaveRun(context.Background(), nil, "")
	assert.Error(t, err)
}
