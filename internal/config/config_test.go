package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kailas-cloud/hybridq/internal/domain"
	"github.com/kailas-cloud/hybridq/internal/domain/modality"
	"github.com/kailas-cloud/hybridq/internal/domain/search/filter"
	"github.com/kailas-cloud/hybridq/internal/usecase/compile"
)

func validConfig() Config {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Encoders: map[string]EncoderConfig{
			"clip": {Model: "clip-vit", Dimensions: 4, Modalities: []string{"text", "image"}},
		},
		Schema: SchemaConfig{
			LexicalField: "title",
			Mappings: []MappingConfig{
				{Encoder: "clip", Dimension: 4, Fields: []string{"title", "gif"}},
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"invalid port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"cache without addrs", func(c *Config) { c.Cache.Enabled = true }, "cache.addrs"},
		{"bad cache driver", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.Addrs = []string{"localhost:6379"}
			c.Cache.Driver = "memcached"
		}, "cache.driver"},
		{"negative ttl", func(c *Config) { c.Cache.TTLSec = -1 }, "ttl_sec"},
		{"encoder without model", func(c *Config) {
			c.Encoders["clip"] = EncoderConfig{Modalities: []string{"text"}}
		}, "encoders.clip.model"},
		{"unknown modality", func(c *Config) {
			c.Encoders["clip"] = EncoderConfig{Model: "m", Modalities: []string{"smell"}}
		}, "unknown modality"},
		{"dimension mismatch", func(c *Config) {
			c.Encoders["clip"] = EncoderConfig{Model: "m", Dimensions: 8, Modalities: []string{"text"}}
		}, "does not match schema dimension"},
		{"field under two encoders", func(c *Config) {
			c.Schema.Mappings = append(c.Schema.Mappings, MappingConfig{Encoder: "sbert", Dimension: 3, Fields: []string{"title"}})
		}, "schema"},
		{"no mappings", func(c *Config) { c.Schema.Mappings = nil }, "at least one encoder"},
		{"bad field template", func(c *Config) { c.Query.FieldTemplate = "static" }, "field template"},
		{"bad empty policy", func(c *Config) { c.Query.EmptyCalculation = "maybe" }, "empty calculation"},
		{"bad conflict policy", func(c *Config) { c.Query.FilterConflict = "merge" }, "filter conflict"},
		{"negative pool", func(c *Config) { c.Encoding.PoolSize = -1 }, "pool_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestMappingSet_InvalidSchema(t *testing.T) {
	tests := []struct {
		name   string
		schema SchemaConfig
	}{
		{"zero dimension", SchemaConfig{Mappings: []MappingConfig{{Encoder: "clip", Dimension: 0, Fields: []string{"title"}}}}},
		{"no mappings", SchemaConfig{LexicalField: "title"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.schema.MappingSet()
			if !errors.Is(err, domain.ErrInvalidSchema) {
				t.Fatalf("error = %v, want ErrInvalidSchema", err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Encoders: map[string]EncoderConfig{"sbert": {Model: "m"}}}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("expected Port=8080, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeoutSec != 10 || cfg.HTTP.WriteTimeoutSec != 10 || cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("unexpected timeouts: %+v", cfg.HTTP)
	}
	if cfg.HTTP.MaxBodyKB != 1024 {
		t.Errorf("expected MaxBodyKB=1024, got %d", cfg.HTTP.MaxBodyKB)
	}
	if cfg.Cache.Driver != "valkey" || cfg.Cache.ReadinessTimeout != 10 {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Query.K != compile.DefaultK || cfg.Query.NumCandidates != compile.DefaultNumCandidates {
		t.Errorf("unexpected query defaults: %+v", cfg.Query)
	}
	if cfg.Query.FieldTemplate != compile.DefaultFieldTemplate {
		t.Errorf("FieldTemplate = %q", cfg.Query.FieldTemplate)
	}
	if cfg.Query.EmptyCalculation != "allow" || cfg.Query.FilterConflict != "reject" {
		t.Errorf("unexpected policies: %+v", cfg.Query)
	}
	if m := cfg.Encoders["sbert"].Modalities; len(m) != 1 || m[0] != "text" {
		t.Errorf("default modalities = %v", m)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:  HTTPConfig{Port: 9090, ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Cache: CacheConfig{Driver: "redis", ReadinessTimeout: 15},
		Query: QueryConfig{K: 5, NumCandidates: 50, FilterConflict: "combine"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 9090 || cfg.HTTP.ReadTimeoutSec != 30 || cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("http overridden: %+v", cfg.HTTP)
	}
	if cfg.Cache.Driver != "redis" || cfg.Cache.ReadinessTimeout != 15 {
		t.Errorf("cache overridden: %+v", cfg.Cache)
	}
	if cfg.Query.K != 5 || cfg.Query.NumCandidates != 50 || cfg.Query.FilterConflict != "combine" {
		t.Errorf("query overridden: %+v", cfg.Query)
	}
}

func TestCompileOptions(t *testing.T) {
	boost := 2.5
	q := QueryConfig{K: 7, LexicalBoost: &boost, EmptyCalculation: "reject", FilterConflict: "combine"}
	o := q.CompileOptions()
	if o.K != 7 || *o.LexicalBoost != 2.5 {
		t.Errorf("options = %+v", o)
	}
	if o.EmptyCalculation != compile.EmptyReject || o.FilterConflict != filter.ConflictCombine {
		t.Errorf("policies = %q, %q", o.EmptyCalculation, o.FilterConflict)
	}
}

func TestModalityList(t *testing.T) {
	got := EncoderConfig{Modalities: []string{"text", "video"}}.ModalityList()
	if len(got) != 2 || got[1] != modality.Video {
		t.Errorf("ModalityList = %v", got)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("HYBRIDQ_TEST_KEY", "secret")

	got := string(expandEnvVars([]byte("a: ${HYBRIDQ_TEST_KEY}\nb: ${HYBRIDQ_TEST_MISSING:-fallback}\nc: ${HYBRIDQ_TEST_MISSING}")))
	want := "a: secret\nb: fallback\nc: "
	if got != want {
		t.Errorf("expandEnvVars = %q, want %q", got, want)
	}
}

func TestParse_YAML(t *testing.T) {
	t.Setenv("HYBRIDQ_TEST_PORT", "9191")
	cfg, err := Parse([]byte(`
http:
  port: ${HYBRIDQ_TEST_PORT}
encoders:
  clip:
    model: clip-vit
    modalities: [text, image]
schema:
  lexical_field: title
  mappings:
    - encoder: clip
      dimension: 4
      fields: [title, gif]
  tags:
    - path: tags__price
      type: numeric
query:
  filter_conflict: combine
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9191 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}
	set, err := cfg.Schema.MappingSet()
	if err != nil {
		t.Fatalf("MappingSet: %v", err)
	}
	if enc, _ := set.EncoderForField("gif"); enc != "clip" {
		t.Errorf("gif encoder = %q", enc)
	}
	tags := cfg.Schema.CompileTags()
	if len(tags) != 1 || tags[0].Type != compile.TagNumeric {
		t.Errorf("tags = %+v", tags)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 8081\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 8081 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_LocalConfig(t *testing.T) {
	cfg, err := Load("local")
	if err != nil {
		t.Fatalf("local config must load: %v", err)
	}
	if cfg.Schema.LexicalField != "title" {
		t.Errorf("lexical field = %q", cfg.Schema.LexicalField)
	}
}
