package elastic

import (
	"errors"
	"fmt"
	"strings"
)

// Similarity is the dense_vector similarity function.
type Similarity string

const (
	// SimilarityCosine is cosine similarity.
	SimilarityCosine Similarity = "cosine"
	// SimilarityDotProduct is dot product similarity.
	SimilarityDotProduct Similarity = "dot_product"
	// SimilarityL2 is Euclidean distance.
	SimilarityL2 Similarity = "l2_norm"
)

// FieldType enumerates supported mapping field types.
type FieldType int

const (
	// FieldKeyword is an exact-match keyword field.
	FieldKeyword FieldType = iota
	// FieldText is an analyzed text field.
	FieldText
	// FieldNumeric is a float field.
	FieldNumeric
	// FieldDenseVector is a dense_vector field.
	FieldDenseVector
)

// IndexField describes a single field of an index mapping. Dotted names nest as object properties.
type IndexField struct {
	Name string
	Type FieldType

	// keyword options
	TextSubField string // analyzed text sub-field, e.g. "text_search"

	// dense_vector options
	Dims       int
	Similarity Similarity
}

// IndexDefinition is a complete index mapping.
type IndexDefinition struct {
	Name   string
	Fields []IndexField
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIndexName(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool)
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field name is required at index %d", i)
		}
		if seen[f.Name] {
			return errors.New("duplicate field name: " + f.Name)
		}
		seen[f.Name] = true

		if f.Type == FieldDenseVector && f.Dims <= 0 {
			return errors.New("dense_vector field requires positive dims")
		}
	}
	for name := range seen {
		for parent := parentOf(name); parent != ""; parent = parentOf(parent) {
			if seen[parent] {
				return fmt.Errorf("field %q conflicts with object field %q", parent, name)
			}
		}
	}
	return nil
}

func parentOf(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[:i]
}

// Properties renders the nested "properties" object of the mapping.
func (idx *IndexDefinition) Properties() map[string]any {
	root := make(map[string]any)
	for i := range idx.Fields {
		f := &idx.Fields[i]
		parts := strings.Split(f.Name, ".")
		props := root
		for _, p := range parts[:len(parts)-1] {
			obj, ok := props[p].(map[string]any)
			if !ok {
				obj = map[string]any{"properties": map[string]any{}}
				props[p] = obj
			}
			props = obj["properties"].(map[string]any)
		}
		props[parts[len(parts)-1]] = f.spec()
	}
	return root
}

// Body renders the create-index request body: {"mappings": {"properties": ...}}.
func (idx *IndexDefinition) Body() map[string]any {
	return map[string]any{"mappings": map[string]any{"properties": idx.Properties()}}
}

func (f *IndexField) spec() map[string]any {
	switch f.Type {
	case FieldText:
		return map[string]any{"type": "text"}
	case FieldNumeric:
		return map[string]any{"type": "float"}
	case FieldDenseVector:
		sim := f.Similarity
		if sim == "" {
			sim = SimilarityCosine
		}
		return map[string]any{
			"type":       "dense_vector",
			"dims":       f.Dims,
			"index":      true,
			"similarity": string(sim),
		}
	default:
		spec := map[string]any{"type": "keyword"}
		if f.TextSubField != "" {
			spec["fields"] = map[string]any{f.TextSubField: map[string]any{"type": "text"}}
		}
		return spec
	}
}

// IsValidIndexName returns true if s is lowercase [a-z0-9_.-]+ and does not start with '_', '-' or '.'.
func IsValidIndexName(s string) bool {
	if s == "" || s[0] == '_' || s[0] == '-' || s[0] == '.' {
		return false
	}
	for _, r := range s {
		isLower := r >= 'a' && r <= 'z'
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == '-' || r == '.'
		if !isLower && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
