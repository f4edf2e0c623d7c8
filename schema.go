package hybridq

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/kailas-cloud/hybridq/internal/config"
	"github.com/kailas-cloud/hybridq/internal/domain"
)

const tagKey = "hybridq"

// Schema describes the index queries are compiled against.
type Schema struct {
	IndexName string
	// LexicalField is the BM25 text field; empty disables lexical matching.
	LexicalField string
	Mappings     []Mapping
	// Tags are the filterable attributes, used for index mapping generation only.
	Tags []Tag
}

// Mapping lists the index fields one encoder produces vectors for.
type Mapping struct {
	Encoder   string
	Dimension int
	Fields    []string
}

// TagType is the engine type of a filterable tag.
type TagType string

// Tag types.
const (
	TagKeyword TagType = "keyword"
	TagNumeric TagType = "numeric"
)

// Tag is a filterable document attribute. Path uses filter notation (tags__color).
type Tag struct {
	Path string
	Type TagType
}

func (s Schema) toConfig() config.SchemaConfig {
	out := config.SchemaConfig{
		IndexName:    s.IndexName,
		LexicalField: s.LexicalField,
		Mappings:     make([]config.MappingConfig, len(s.Mappings)),
		Tags:         make([]config.TagConfig, len(s.Tags)),
	}
	for i, m := range s.Mappings {
		out.Mappings[i] = config.MappingConfig{Encoder: m.Encoder, Dimension: m.Dimension, Fields: m.Fields}
	}
	for i, t := range s.Tags {
		out.Tags[i] = config.TagConfig{Path: t.Path, Type: string(t.Type)}
	}
	return out
}

// SchemaOf derives a Schema from the hybridq struct tags of T.
//
// Tag grammar: `hybridq:"name[,modifier...]"` where modifiers are
//   - lexical: the field is the BM25 text field (at most one)
//   - vector=encoder/dimension: the encoder produces vectors for the field (repeatable)
//   - tag: keyword filter attribute
//   - numeric: numeric filter attribute
//
// Fields tagged "-" or untagged are ignored.
func SchemaOf[T any](indexName string) (Schema, error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return Schema{}, fmt.Errorf("hybridq: %w: type %v is not a struct", domain.ErrInvalidSchema, t)
	}

	b := schemaBuilder{schema: Schema{IndexName: indexName}, byEncoder: map[string]int{}}
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" {
			continue
		}
		if err := b.apply(f.Name, tag); err != nil {
			return Schema{}, fmt.Errorf("hybridq: %w: %w", domain.ErrInvalidSchema, err)
		}
	}
	if len(b.schema.Mappings) == 0 {
		return Schema{}, fmt.Errorf("hybridq: %w: no field of %s carries a vector modifier", domain.ErrInvalidSchema, t)
	}
	return b.schema, nil
}

type schemaBuilder struct {
	schema    Schema
	byEncoder map[string]int
}

// apply processes a single struct field's hybridq tag.
func (b *schemaBuilder) apply(fieldName, tag string) error {
	parts := strings.Split(tag, ",")
	name := parts[0]
	if name == "" {
		return fmt.Errorf("field %s: empty name", fieldName)
	}

	for _, mod := range parts[1:] {
		key, value, _ := strings.Cut(mod, "=")
		switch key {
		case "lexical":
			if b.schema.LexicalField != "" {
				return fmt.Errorf("field %s: duplicate lexical field (already %q)", fieldName, b.schema.LexicalField)
			}
			b.schema.LexicalField = name
		case "tag":
			b.schema.Tags = append(b.schema.Tags, Tag{Path: name, Type: TagKeyword})
		case "numeric":
			b.schema.Tags = append(b.schema.Tags, Tag{Path: name, Type: TagNumeric})
		case "vector":
			if err := b.addVector(fieldName, name, value); err != nil {
				return err
			}
		default:
			return fmt.Errorf("field %s: unknown modifier %q", fieldName, mod)
		}
	}
	return nil
}

func (b *schemaBuilder) addVector(fieldName, name, spec string) error {
	encoder, dimStr, ok := strings.Cut(spec, "/")
	if !ok || encoder == "" {
		return fmt.Errorf("field %s: vector modifier must be encoder/dimension, got %q", fieldName, spec)
	}
	dim, err := strconv.Atoi(dimStr)
	if err != nil || dim <= 0 {
		return fmt.Errorf("field %s: invalid dimension %q", fieldName, dimStr)
	}

	i, seen := b.byEncoder[encoder]
	if !seen {
		b.byEncoder[encoder] = len(b.schema.Mappings)
		b.schema.Mappings = append(b.schema.Mappings, Mapping{Encoder: encoder, Dimension: dim, Fields: []string{name}})
		return nil
	}
	m := &b.schema.Mappings[i]
	if m.Dimension != dim {
		return fmt.Errorf("field %s: encoder %q declared with dimension %d and %d", fieldName, encoder, m.Dimension, dim)
	}
	m.Fields = append(m.Fields, name)
	return nil
}
