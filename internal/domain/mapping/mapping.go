package mapping

import (
	"fmt"
	"regexp"
	"strings"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxFieldsPerEncoder bounds the field list of a single mapping.
const MaxFieldsPerEncoder = 64

// Mapping describes which index fields one encoder populates (immutable value object).
type Mapping struct {
	encoder   string
	dimension int
	fields    []string
}

// New validates and creates a Mapping.
// Encoder and field names: ^[a-zA-Z0-9_-]+$, no "__" (reserved as filter path separator).
func New(encoder string, dimension int, fields []string) (Mapping, error) {
	if err := validateName("encoder", encoder); err != nil {
		return Mapping{}, err
	}
	if dimension <= 0 {
		return Mapping{}, fmt.Errorf("embedding dimension for encoder %q must be positive", encoder)
	}
	if len(fields) == 0 {
		return Mapping{}, fmt.Errorf("encoder %q has no fields", encoder)
	}
	if len(fields) > MaxFieldsPerEncoder {
		return Mapping{}, fmt.Errorf("encoder %q has too many fields (max %d)", encoder, MaxFieldsPerEncoder)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if err := validateName("field", f); err != nil {
			return Mapping{}, err
		}
		if seen[f] {
			return Mapping{}, fmt.Errorf("duplicate field %q under encoder %q", f, encoder)
		}
		seen[f] = true
	}

	return Mapping{
		encoder:   encoder,
		dimension: dimension,
		fields:    append([]string(nil), fields...),
	}, nil
}

func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name is required", kind)
	}
	if len(name) > 64 {
		return fmt.Errorf("%s name %q too long (max 64)", kind, name)
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("%s name %q must be alphanumeric with underscores and hyphens", kind, name)
	}
	if strings.Contains(name, "__") {
		return fmt.Errorf("%s name %q must not contain \"__\"", kind, name)
	}
	return nil
}

// Encoder returns the encoder (vector space) identifier.
func (m Mapping) Encoder() string { return m.encoder }

// Dimension returns the embedding dimension of the encoder.
func (m Mapping) Dimension() int { return m.dimension }

// Fields returns the index fields populated by the encoder, in declaration order.
func (m Mapping) Fields() []string { return m.fields }

// HasField reports whether the encoder populates the given index field.
func (m Mapping) HasField(name string) bool {
	for _, f := range m.fields {
		if f == name {
			return true
		}
	}
	return false
}

// EncoderFields pairs an encoder with the index fields it populates.
type EncoderFields struct {
	Encoder string
	Fields  []string
}

// Set is the complete index schema of a search app: ordered mappings plus the lexical field.
// A Set is immutable after construction and safe for concurrent use.
type Set struct {
	mappings     []Mapping
	lexicalField string
	byEncoder    map[string]int
	byField      map[string]string
}

// NewSet validates and creates a Set.
// Encoders must be unique and every field must belong to exactly one encoder.
// lexicalField may be empty (no BM25 contribution).
func NewSet(lexicalField string, mappings ...Mapping) (Set, error) {
	if lexicalField != "" {
		if err := validateName("lexical field", lexicalField); err != nil {
			return Set{}, err
		}
	}

	byEncoder := make(map[string]int, len(mappings))
	byField := make(map[string]string)
	for i, m := range mappings {
		if m.encoder == "" {
			return Set{}, fmt.Errorf("mapping %d is not initialized", i)
		}
		if _, dup := byEncoder[m.encoder]; dup {
			return Set{}, fmt.Errorf("duplicate encoder %q", m.encoder)
		}
		byEncoder[m.encoder] = i
		for _, f := range m.fields {
			if other, taken := byField[f]; taken {
				return Set{}, fmt.Errorf("field %q is produced by both %q and %q", f, other, m.encoder)
			}
			byField[f] = m.encoder
		}
	}

	return Set{
		mappings:     append([]Mapping(nil), mappings...),
		lexicalField: lexicalField,
		byEncoder:    byEncoder,
		byField:      byField,
	}, nil
}

// Mappings returns the mappings in declaration order.
func (s Set) Mappings() []Mapping { return s.mappings }

// LexicalField returns the designated BM25 text field ("" when lexical matching is off).
func (s Set) LexicalField() string { return s.lexicalField }

// IsEmpty reports whether the set has no vector mappings.
func (s Set) IsEmpty() bool { return len(s.mappings) == 0 }

// Lookup returns the mapping of an encoder.
func (s Set) Lookup(encoder string) (Mapping, bool) {
	i, ok := s.byEncoder[encoder]
	if !ok {
		return Mapping{}, false
	}
	return s.mappings[i], true
}

// EncoderForField returns the encoder that produces the given index field.
func (s Set) EncoderForField(field string) (string, bool) {
	enc, ok := s.byField[field]
	return enc, ok
}

// Encoders returns encoder names in declaration order.
func (s Set) Encoders() []string {
	out := make([]string, len(s.mappings))
	for i, m := range s.mappings {
		out[i] = m.encoder
	}
	return out
}

// EncoderToFields returns encoder -> index fields in declaration order.
func (s Set) EncoderToFields() []EncoderFields {
	out := make([]EncoderFields, len(s.mappings))
	for i, m := range s.mappings {
		out[i] = EncoderFields{Encoder: m.encoder, Fields: m.fields}
	}
	return out
}
