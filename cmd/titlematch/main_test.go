package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-titlematch/internal/resultstore"
	"github.com/gcbaptista/go-titlematch/model"
)

const targetsTSV = "Paper_ID\ttitle\n" +
	"1\tThe Eigenfactor Metrics\n" +
	"2\tCitation networks in sociology\n" +
	"3\tProtein folding simulations\n"

const originsTSV = "id\ttitle\n" +
	"o1\tThe Eigenfactor Metrics\n" +
	"o2\tquantum chromodynamics lattice\n"

type cliFixture struct {
	dir        string
	configPath string
}

func newCLIFixture(t *testing.T, withResults bool) cliFixture {
	t.Helper()
	dir := t.TempDir()

	var cfg strings.Builder
	cfg.WriteString("[provider]\nkind = \"local\"\nquery_type = \"match\"\n\n")
	cfg.WriteString("[local_index]\ndata_dir = \"" + filepath.ToSlash(filepath.Join(dir, "data")) + "\"\n\n")
	cfg.WriteString("[logging]\nlevel = \"error\"\n\n")
	if withResults {
		cfg.WriteString("[results]\nsqlite_path = \"" + filepath.ToSlash(filepath.Join(dir, "runs.db")) + "\"\n")
	}

	configPath := filepath.Join(dir, "titlematch.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg.String()), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "targets.tsv"), []byte(targetsTSV), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "origins.tsv"), []byte(originsTSV), 0o600))

	return cliFixture{dir: dir, configPath: configPath}
}

func (f cliFixture) path(name string) string {
	return filepath.Join(f.dir, name)
}

// run executes the CLI with a fresh root command and returns stdout and stderr.
func (f cliFixture) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", f.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (f cliFixture) buildIndex(t *testing.T) {
	t.Helper()
	out, _, err := f.run(t, "index", "build", "mag", f.path("targets.tsv"))
	require.NoError(t, err)
	assert.Contains(t, out, "built collection 'mag' with 3 documents")
}

func TestIndexCommands(t *testing.T) {
	f := newCLIFixture(t, false)
	f.buildIndex(t)

	out, _, err := f.run(t, "index", "list", "--format", "json")
	require.NoError(t, err)
	var collections []struct {
		Name          string `json:"name"`
		IDField       string `json:"id_field"`
		DocumentCount int    `json:"document_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &collections))
	require.Len(t, collections, 1)
	assert.Equal(t, "mag", collections[0].Name)
	assert.Equal(t, "Paper_ID", collections[0].IDField)
	assert.Equal(t, 3, collections[0].DocumentCount)

	out, _, err = f.run(t, "index", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "mag")

	_, _, err = f.run(t, "index", "delete", "mag")
	require.NoError(t, err)
	_, _, err = f.run(t, "index", "delete", "mag")
	assert.Error(t, err)
}

func TestMatchSingleTitle(t *testing.T) {
	f := newCLIFixture(t, false)
	f.buildIndex(t)

	out, _, err := f.run(t, "match", "--collection", "mag", "--title", "The Eigenfactor Metrics", "--format", "json")
	require.NoError(t, err)

	var got docMatchOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, []string{"1"}, got.Matches)
	assert.Equal(t, "The Eigenfactor Metrics", got.Origin.Title)
	require.NotEmpty(t, got.Candidates)
	assert.Equal(t, "1", got.Candidates[0].ID)

	out, _, err = f.run(t, "match", "--collection", "mag", "--title", "The Eigenfactor Metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "1 confident matches in 'mag'")
}

func TestMatchOriginsFileAndRuns(t *testing.T) {
	f := newCLIFixture(t, true)
	f.buildIndex(t)

	out, stderr, err := f.run(t, "match", "--collection", "mag", "--origins", f.path("origins.tsv"), "--format", "json", "--save")
	require.NoError(t, err)
	assert.Contains(t, stderr, "saved run ")

	var result model.CollectionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "origins", result.OriginDataset)
	assert.Equal(t, "mag", result.TargetCollection)
	assert.Equal(t, []string{"1"}, result.Matches["o1"])
	assert.Empty(t, result.Matches["o2"])
	assert.Contains(t, result.Matches, "o2")
	assert.Empty(t, result.Failures)

	out, _, err = f.run(t, "runs", "list", "--format", "json")
	require.NoError(t, err)
	var runs []resultstore.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].OriginCount)
	assert.Equal(t, 1, runs[0].MatchedCount)

	out, _, err = f.run(t, "runs", "show", runs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "2 origins, 1 matched, 0 failed")

	_, _, err = f.run(t, "runs", "delete", runs[0].ID)
	require.NoError(t, err)
	_, _, err = f.run(t, "runs", "show", runs[0].ID)
	assert.ErrorIs(t, err, resultstore.ErrRunNotFound)
}

func TestMatchErrors(t *testing.T) {
	f := newCLIFixture(t, false)
	f.buildIndex(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "no input", args: []string{"match", "--collection", "mag"}},
		{name: "both inputs", args: []string{"match", "--collection", "mag", "--title", "x", "--origins", f.path("origins.tsv")}},
		{name: "unknown format", args: []string{"match", "--collection", "mag", "--title", "x", "--format", "xml"}},
		{name: "unknown preset", args: []string{"match", "--collection", "mag", "--title", "x", "--preset", "medium"}},
		{name: "missing collection", args: []string{"match", "--collection", "dblp", "--title", "x"}},
		{name: "save without store", args: []string{"match", "--collection", "mag", "--origins", f.path("origins.tsv"), "--save"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.run(t, tt.args...)
			assert.Error(t, err)
		})
	}

	_, _, err := f.run(t, "runs", "list")
	assert.ErrorIs(t, err, errNoResultStore)
}
