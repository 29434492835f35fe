package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ElasticsearchSettings contains connection settings for the Elasticsearch provider.
type ElasticsearchSettings struct {
	Addresses []string `toml:"addresses"`
	Username  string   `toml:"username"`
	Password  string   `toml:"password"`
	APIKey    string   `toml:"api_key"`
}

// LocalIndexSettings contains settings for the in-process index provider.
type LocalIndexSettings struct {
	DataDir string `toml:"data_dir"` // Directory holding one gob snapshot per collection
}

// CacheSettings contains settings for the provider response cache.
type CacheSettings struct {
	Enabled  bool   `toml:"enabled"`
	Dir      string `toml:"dir"`
	TTLHours int    `toml:"ttl_hours"` // 0 keeps entries forever
	InMemory bool   `toml:"in_memory"`
}

// TTL returns the cache entry lifetime.
func (c CacheSettings) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// ResultsSettings contains settings for persisting collection results.
type ResultsSettings struct {
	SQLitePath string `toml:"sqlite_path"` // Empty disables persistence
}

// ServerSettings contains settings for the HTTP API.
type ServerSettings struct {
	Bind string `toml:"bind"`
	Mode string `toml:"mode"` // gin mode: "debug", "release" or "test"
}

// JobsSettings contains settings for background matching jobs.
type JobsSettings struct {
	MaxWorkers     int `toml:"max_workers"`
	RetentionHours int `toml:"retention_hours"`
}

// LoggingSettings contains configuration for log output.
type LoggingSettings struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json" for stderr; the file is always JSON
	File   string `toml:"file"`
}

// Config encapsulates all configuration values.
//
// Configuration sections by subsystem:
//   - Match: confidence scorer thresholds and batch behaviour
//   - Provider: how candidates are requested (field, id field, query type, timeout, retries)
//   - Elasticsearch: connection to the external search backend
//   - LocalIndex: the in-process index used for fixtures and offline runs
//   - Cache: badger-backed provider response cache
//   - Results: SQLite persistence of collection results
//   - Server: HTTP API bind address
//   - Jobs: background job workers and retention
//   - Logging: log level, format and file
type Config struct {
	Match         MatchSettings         `toml:"match"`
	Provider      ProviderSettings      `toml:"provider"`
	Elasticsearch ElasticsearchSettings `toml:"elasticsearch"`
	LocalIndex    LocalIndexSettings    `toml:"local_index"`
	Cache         CacheSettings         `toml:"cache"`
	Results       ResultsSettings       `toml:"results"`
	Server        ServerSettings        `toml:"server"`
	Jobs          JobsSettings          `toml:"jobs"`
	Logging       LoggingSettings       `toml:"logging"`
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	cfg := Config{
		Match: StrictMatchSettings(),
		Elasticsearch: ElasticsearchSettings{
			Addresses: []string{"http://localhost:9200"},
		},
		LocalIndex: LocalIndexSettings{DataDir: "./titlematch_data"},
		Cache:      CacheSettings{Dir: "./titlematch_data/cache", TTLHours: 24},
		Server:     ServerSettings{Bind: "127.0.0.1:8080", Mode: "release"},
		Jobs:       JobsSettings{MaxWorkers: 2, RetentionHours: 24},
		Logging:    LoggingSettings{Level: "info", Format: "text"},
	}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a TOML configuration file on top of the defaults, then validates it.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		file, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults applies default values to every section.
func (c *Config) ApplyDefaults() {
	c.Match.ApplyDefaults()
	c.Provider.ApplyDefaults()
	if len(c.Elasticsearch.Addresses) == 0 {
		c.Elasticsearch.Addresses = []string{"http://localhost:9200"}
	}
	if c.Jobs.MaxWorkers <= 0 {
		c.Jobs.MaxWorkers = 2
	}
	if c.Jobs.RetentionHours <= 0 {
		c.Jobs.RetentionHours = 24
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	var problems []string
	problems = append(problems, c.Match.Validate()...)
	problems = append(problems, c.Provider.Validate()...)

	if c.Provider.Kind == ProviderKindLocal && strings.TrimSpace(c.LocalIndex.DataDir) == "" {
		problems = append(problems, "local_index.data_dir is required when provider.kind is 'local'")
	}
	if c.Cache.Enabled && !c.Cache.InMemory && strings.TrimSpace(c.Cache.Dir) == "" {
		problems = append(problems, "cache.dir is required when the cache is enabled on disk")
	}
	if c.Cache.TTLHours < 0 {
		problems = append(problems, "cache.ttl_hours cannot be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		problems = append(problems, "logging.format must be 'text' or 'json'")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
