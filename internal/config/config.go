package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/domain/mapping"
	"github.com/kailas-cloud/hybridq/internal/domain/modality"
	"github.com/kailas-cloud/hybridq/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridq/internal/usecase/compile"
)

// Config holds the hybridq service configuration.
type Config struct {
	HTTP     HTTPConfig               `yaml:"http"`
	Cache    CacheConfig              `yaml:"cache"`
	Encoders map[string]EncoderConfig `yaml:"encoders"`
	Schema   SchemaConfig             `yaml:"schema"`
	Query    QueryConfig              `yaml:"query"`
	Encoding EncodingConfig           `yaml:"encoding"`
	Logging  LoggingConfig            `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxBodyKB       int `yaml:"max_body_kb"`
}

// CacheConfig holds the query embedding cache connection.
type CacheConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLSec           int      `yaml:"ttl_sec"` // 0 = no expiry
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSec) * time.Second }

// EncoderConfig holds one OpenAI-compatible encoder.
type EncoderConfig struct {
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	Dimensions  int      `yaml:"dimensions"`
	Modalities  []string `yaml:"modalities"` // default: [text]
	Instruction string   `yaml:"instruction"`
	User        string   `yaml:"user"`
}

// SchemaConfig describes the index schema queries are compiled against.
type SchemaConfig struct {
	IndexName    string          `yaml:"index_name"`
	LexicalField string          `yaml:"lexical_field"`
	Mappings     []MappingConfig `yaml:"mappings"`
	Tags         []TagConfig     `yaml:"tags"`
}

// MappingConfig lists the index fields one encoder produces.
type MappingConfig struct {
	Encoder   string   `yaml:"encoder"`
	Dimension int      `yaml:"dimension"`
	Fields    []string `yaml:"fields"`
}

// TagConfig declares a filterable tag for index mapping generation.
type TagConfig struct {
	Path string `yaml:"path"`
	Type string `yaml:"type"` // keyword (default), numeric
}

// QueryConfig holds query assembly settings.
type QueryConfig struct {
	K                int      `yaml:"k"`
	NumCandidates    int      `yaml:"num_candidates"`
	LexicalBoost     *float64 `yaml:"lexical_boost"`     // unset: 10; an explicit 0 is kept
	TextSearchSuffix string   `yaml:"text_search_suffix"`
	FieldTemplate    string   `yaml:"field_template"`
	EmptyCalculation string   `yaml:"empty_calculation"` // allow (default), reject
	FilterConflict   string   `yaml:"filter_conflict"`   // reject (default), combine
}

// EncodingConfig holds query encoding settings.
type EncodingConfig struct {
	PoolSize int `yaml:"pool_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (Config, error) {
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

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
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
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyKB <= 0 {
		c.HTTP.MaxBodyKB = 1024
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "valkey"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Schema.IndexName == "" {
		c.Schema.IndexName = "hybridq"
	}
	if c.Query.K <= 0 {
		c.Query.K = compile.DefaultK
	}
	if c.Query.NumCandidates <= 0 {
		c.Query.NumCandidates = compile.DefaultNumCandidates
	}
	if c.Query.FieldTemplate == "" {
		c.Query.FieldTemplate = compile.DefaultFieldTemplate
	}
	if c.Query.EmptyCalculation == "" {
		c.Query.EmptyCalculation = string(compile.EmptyAllow)
	}
	if c.Query.FilterConflict == "" {
		c.Query.FilterConflict = string(filter.ConflictReject)
	}
	for name, e := range c.Encoders {
		if len(e.Modalities) == 0 {
			e.Modalities = []string{string(modality.Text)}
			c.Encoders[name] = e
		}
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Cache.Enabled {
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required when the cache is enabled")
		}
		switch c.Cache.Driver {
		case "valkey", "redis":
		default:
			return fmt.Errorf("cache.driver must be \"valkey\" or \"redis\", got %q", c.Cache.Driver)
		}
	}
	if c.Cache.TTLSec < 0 {
		return fmt.Errorf("cache.ttl_sec must not be negative")
	}
	set, err := c.Schema.MappingSet()
	if err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	for name, e := range c.Encoders {
		if e.Model == "" {
			return fmt.Errorf("encoders.%s.model is required", name)
		}
		for _, m := range e.Modalities {
			if !modality.Modality(m).IsValid() {
				return fmt.Errorf("encoders.%s.modalities: unknown modality %q", name, m)
			}
		}
		if m, ok := set.Lookup(name); ok && e.Dimensions > 0 && m.Dimension() != e.Dimensions {
			return fmt.Errorf("encoders.%s.dimensions %d does not match schema dimension %d",
				name, e.Dimensions, m.Dimension())
		}
	}
	if c.Encoding.PoolSize < 0 {
		return fmt.Errorf("encoding.pool_size must not be negative")
	}
	if err := c.Query.CompileOptions().Validate(); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	return nil
}

// MappingSet builds the immutable schema of the search app.
// At least one mapping is required: without vector fields there is nothing to compile.
func (s SchemaConfig) MappingSet() (mapping.Set, error) {
	if len(s.Mappings) == 0 {
		return mapping.Set{}, fmt.Errorf("%w: schema.mappings must declare at least one encoder", domain.ErrInvalidSchema)
	}
	mappings := make([]mapping.Mapping, 0, len(s.Mappings))
	for i, m := range s.Mappings {
		mm, err := mapping.New(m.Encoder, m.Dimension, m.Fields)
		if err != nil {
			return mapping.Set{}, fmt.Errorf("%w: mappings[%d]: %w", domain.ErrInvalidSchema, i, err)
		}
		mappings = append(mappings, mm)
	}
	set, err := mapping.NewSet(s.LexicalField, mappings...)
	if err != nil {
		return mapping.Set{}, fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
	}
	return set, nil
}

// CompileTags converts the declared tags for index mapping generation.
func (s SchemaConfig) CompileTags() []compile.Tag {
	out := make([]compile.Tag, len(s.Tags))
	for i, t := range s.Tags {
		out[i] = compile.Tag{Path: t.Path, Type: compile.TagType(t.Type)}
	}
	return out
}

// CompileOptions converts the query section into compiler options.
func (q QueryConfig) CompileOptions() compile.Options {
	return compile.Options{
		K:                q.K,
		NumCandidates:    q.NumCandidates,
		LexicalBoost:     q.LexicalBoost,
		TextSearchSuffix: q.TextSearchSuffix,
		FieldTemplate:    q.FieldTemplate,
		EmptyCalculation: compile.EmptyPolicy(q.EmptyCalculation),
		FilterConflict:   filter.ConflictPolicy(q.FilterConflict),
	}
}

// ModalityList converts the configured modality names.
func (e EncoderConfig) ModalityList() []modality.Modality {
	out := make([]modality.Modality, len(e.Modalities))
	for i, m := range e.Modalities {
		out[i] = modality.Modality(m)
	}
	return out
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
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
