package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/vecprep/internal/db"
)

// Config holds the vecprep configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Index    IndexConfig    `yaml:"index"`
	Storage  StorageConfig  `yaml:"storage"`
	Features FeaturesConfig `yaml:"features"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Source   SourceConfig   `yaml:"source"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds the vector index settings.
type IndexConfig struct {
	Name            string `yaml:"name"`
	Dimension       int    `yaml:"dimension"` // 0 = taken from the first saved batch
	Algorithm       string `yaml:"algorithm"` // FLAT (default), HNSW
	Distance        string `yaml:"distance"`  // COSINE (default), L2, IP
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	BatchSize       int    `yaml:"batch_size"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// FeaturesConfig points at the externally supplied feature configuration.
type FeaturesConfig struct {
	ColumnSpec     string `yaml:"column_spec"`
	Neighbourhoods string `yaml:"neighbourhoods"`
}

// PipelineConfig holds preprocessing settings.
type PipelineConfig struct {
	Workers   int          `yaml:"workers"`
	KeyColumn string       `yaml:"key_column"`
	Columns   ColumnLayout `yaml:"columns"`

	// Optional steps outside the default sequence.
	CategoricalEncoding string        `yaml:"categorical_encoding"`
	RemoveDuplicates    bool          `yaml:"remove_duplicates"`
	Missing             MissingConfig `yaml:"missing"`
}

// MissingConfig enables null handling before freezing. An empty strategy
// leaves nulls to the store.
type MissingConfig struct {
	Strategy string   `yaml:"strategy"`
	Columns  []string `yaml:"columns"`
}

// ColumnLayout overrides raw column names. Empty fields keep the defaults.
type ColumnLayout struct {
	Identity           []string `yaml:"identity"`
	Neighbourhood      string   `yaml:"neighbourhood"`
	NeighbourhoodGroup string   `yaml:"neighbourhood_group"`
	LastReview         string   `yaml:"last_review"`
	RecencyHelpers     []string `yaml:"recency_helpers"`
	HostListings       string   `yaml:"host_listing_count"`
	Availability       string   `yaml:"availability"`
	Superseded         []string `yaml:"superseded"`
}

// SourceConfig holds the data-arrival settings.
type SourceConfig struct {
	DataDir    string   `yaml:"data_dir"`
	Patterns   []string `yaml:"patterns"`
	DebounceMs int      `yaml:"watch_debounce_ms"`
}

// Load reads configuration from a YAML file on fs.
func Load(fs afero.Fs, path string) (Config, error) {
	data, err := afero.ReadFile(fs, filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Path returns override when set, else config/<env>.yaml.
func Path(env, override string) string {
	if override != "" {
		return override
	}
	return filepath.Join("config", env+".yaml")
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 8 << 20
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.Name == "" {
		c.Index.Name = "listings"
	}
	if c.Index.Algorithm == "" {
		c.Index.Algorithm = string(db.VectorFlat)
	}
	if c.Index.Distance == "" {
		c.Index.Distance = string(db.DistanceCosine)
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 64
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "vecprep:"
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 1
	}
	if c.Pipeline.KeyColumn == "" {
		c.Pipeline.KeyColumn = "id"
	}
	if c.Pipeline.CategoricalEncoding == "" {
		c.Pipeline.CategoricalEncoding = "onehot"
	}
	if c.Source.DataDir == "" {
		c.Source.DataDir = "data"
	}
	if len(c.Source.Patterns) == 0 {
		c.Source.Patterns = []string{"*.csv", "*.parquet"}
	}
	if c.Source.DebounceMs <= 0 {
		c.Source.DebounceMs = 500
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if !db.IsValidIdentifier(c.Index.Name) {
		return fmt.Errorf("index.name %q must match [a-zA-Z0-9_:-]+", c.Index.Name)
	}
	if c.Index.Dimension < 0 {
		return fmt.Errorf("index.dimension must not be negative, got %d", c.Index.Dimension)
	}
	if _, err := db.ParseAlgorithm(c.Index.Algorithm); err != nil {
		return fmt.Errorf("index.algorithm: %w", err)
	}
	if _, err := db.ParseDistance(c.Index.Distance); err != nil {
		return fmt.Errorf("index.distance: %w", err)
	}
	if c.Features.ColumnSpec == "" {
		return fmt.Errorf("features.column_spec is required")
	}
	if c.Features.Neighbourhoods == "" {
		return fmt.Errorf("features.neighbourhoods is required")
	}
	switch c.Pipeline.CategoricalEncoding {
	case "onehot", "label":
	default:
		return fmt.Errorf("pipeline.categorical_encoding must be \"onehot\" or \"label\", got %q",
			c.Pipeline.CategoricalEncoding)
	}
	switch c.Pipeline.Missing.Strategy {
	case "", "mean", "median", "mode", "drop":
	default:
		return fmt.Errorf("pipeline.missing.strategy must be one of mean, median, mode, drop, got %q",
			c.Pipeline.Missing.Strategy)
	}
	if c.Pipeline.Missing.Strategy == "" && len(c.Pipeline.Missing.Columns) > 0 {
		return fmt.Errorf("pipeline.missing.columns requires pipeline.missing.strategy")
	}
	for _, p := range c.Source.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("source.patterns: bad pattern %q: %w", p, err)
		}
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
