package elastic

import (
	"sort"
	"strings"
)

// IndexBuilder is a fluent builder for index mappings.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an index mapping.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Keyword adds a keyword field.
func (b *IndexBuilder) Keyword(name string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Type: FieldKeyword})
	return b
}

// KeywordWithText adds a keyword field with an analyzed text sub-field for match filters.
func (b *IndexBuilder) KeywordWithText(name, subField string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{
		Name:         name,
		Type:         FieldKeyword,
		TextSubField: subField,
	})
	return b
}

// Text adds an analyzed text field.
func (b *IndexBuilder) Text(name string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Type: FieldText})
	return b
}

// Numeric adds a float field.
func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Type: FieldNumeric})
	return b
}

// DenseVector adds a dense_vector field.
func (b *IndexBuilder) DenseVector(name string, dims int, sim Similarity) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{
		Name:       name,
		Type:       FieldDenseVector,
		Dims:       dims,
		Similarity: sim,
	})
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}

// MustBuild calls Build and panics on error.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// String returns a debug representation: index name followed by sorted "field:type" pairs.
func (idx *IndexDefinition) String() string {
	parts := make([]string, 0, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		switch f.Type {
		case FieldKeyword:
			parts = append(parts, f.Name+":keyword")
		case FieldText:
			parts = append(parts, f.Name+":text")
		case FieldNumeric:
			parts = append(parts, f.Name+":float")
		case FieldDenseVector:
			parts = append(parts, f.Name+":dense_vector")
		}
	}
	sort.Strings(parts)
	return "PUT " + idx.Name + " " + strings.Join(parts, " ")
}
