package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchSettingsPresets(t *testing.T) {
	strict := StrictMatchSettings()
	assert.Equal(t, 70.0, strict.ScoreThreshold)
	assert.Equal(t, 80.0, strict.FuzzThreshold)
	assert.Equal(t, 0.25, strict.ScoreDropThreshold)

	loose := LooseMatchSettings()
	assert.Equal(t, 45.0, loose.ScoreThreshold)
	assert.Equal(t, 50.0, loose.FuzzThreshold)
	assert.Equal(t, 0.25, loose.ScoreDropThreshold)

	preset, ok := PresetMatchSettings(" Loose ")
	require.True(t, ok)
	assert.Equal(t, loose, preset)

	_, ok = PresetMatchSettings("medium")
	assert.False(t, ok)
}

func TestMatchSettingsValidate(t *testing.T) {
	tests := []struct {
		name           string
		settings       MatchSettings
		expectedErrors int
	}{
		{
			name:           "strict preset is valid",
			settings:       StrictMatchSettings(),
			expectedErrors: 0,
		},
		{
			name:           "zero thresholds are valid",
			settings:       MatchSettings{},
			expectedErrors: 0,
		},
		{
			name:           "negative score threshold",
			settings:       MatchSettings{ScoreThreshold: -1},
			expectedErrors: 1,
		},
		{
			name:           "fuzz threshold above 100",
			settings:       MatchSettings{FuzzThreshold: 101},
			expectedErrors: 1,
		},
		{
			name:           "unknown algorithm and policy",
			settings:       MatchSettings{FuzzAlgorithm: "soundex", DuplicatePolicy: "first_wins"},
			expectedErrors: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := tt.settings.Validate()
			if len(problems) != tt.expectedErrors {
				t.Errorf("Validate() returned %d problems %v, want %d", len(problems), problems, tt.expectedErrors)
			}
		})
	}
}

func TestProviderSettingsApplyDefaults(t *testing.T) {
	var p ProviderSettings
	p.ApplyDefaults()

	assert.Equal(t, ProviderKindElasticsearch, p.Kind)
	assert.Equal(t, "title", p.FieldToQuery)
	assert.Equal(t, "Paper_ID", p.IDField)
	assert.Equal(t, "common", p.QueryType)
	assert.Equal(t, 10, p.Size)
	assert.Equal(t, 60, p.TimeoutSeconds)
	assert.Equal(t, 1, p.RetryAttempts)
	assert.NotNil(t, p.Options)
	assert.Empty(t, p.Validate())
}

func TestProviderSettingsValidate(t *testing.T) {
	p := ProviderSettings{Kind: "solr", FieldToQuery: " ", IDField: "id", QueryType: "fuzzy"}
	problems := p.Validate()
	assert.Len(t, problems, 3)
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Elasticsearch.Addresses)
	assert.Equal(t, StrictMatchSettings(), cfg.Match)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "titlematch.toml")
	content := `
[match]
score_threshold = 45.0
fuzz_threshold = 50.0
score_drop_threshold = 0.3
concurrency = 4

[provider]
kind = "local"
id_field = "id"
query_type = "match"

[provider.options]
cutoff_frequency = 0.01

[local_index]
data_dir = "` + filepath.ToSlash(dir) + `"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 45.0, cfg.Match.ScoreThreshold)
	assert.Equal(t, 50.0, cfg.Match.FuzzThreshold)
	assert.Equal(t, 0.3, cfg.Match.ScoreDropThreshold)
	assert.Equal(t, 4, cfg.Match.Concurrency)
	assert.Equal(t, "ratio", cfg.Match.FuzzAlgorithm, "unset fields keep their defaults")
	assert.Equal(t, ProviderKindLocal, cfg.Provider.Kind)
	assert.Equal(t, "id", cfg.Provider.IDField)
	assert.Equal(t, "title", cfg.Provider.FieldToQuery)
	assert.Equal(t, 0.01, cfg.Provider.Options["cutoff_frequency"])
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[match]\nfuzz_threshold = 150.0\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fuzz_threshold")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
}
