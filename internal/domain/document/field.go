package document

import "github.com/kailas-cloud/hybridq/internal/domain/modality"

// QueryField is one searchable field of a flattened query document as seen by one encoder.
// Encoder is empty for a raw-text field without embeddings (lexical only).
type QueryField struct {
	Field    string
	Encoder  string
	Modality modality.Modality
	Vector   []float32
	Text     string
}

// HasLexicalText reports whether the field can drive a BM25 match.
func (f QueryField) HasLexicalText() bool {
	return f.Modality.IsLexical() && f.Text != ""
}

// EncoderQueryFields pairs an encoder with the query fields it produced.
type EncoderQueryFields struct {
	Encoder string
	Fields  []QueryField
}

// QueryFields lists the query fields of a flattened document, one entry per
// (leaf, embedding). A text leaf without embeddings still yields one entry so that
// it can take part in lexical matching. Leaves without a field name are skipped.
func QueryFields(doc Document) []QueryField {
	var out []QueryField
	for _, c := range doc.Chunks {
		if c == nil || c.Field == "" {
			continue
		}
		if len(c.Embeddings) == 0 {
			if c.Text != "" {
				out = append(out, QueryField{Field: c.Field, Modality: c.Modality, Text: c.Text})
			}
			continue
		}
		for _, e := range c.Embeddings {
			out = append(out, QueryField{
				Field:    c.Field,
				Encoder:  e.Encoder,
				Modality: c.Modality,
				Vector:   e.Vector,
				Text:     c.Text,
			})
		}
	}
	return out
}

// GroupByEncoder groups query fields by encoder in order of first appearance.
// Fields without an encoder are left out.
func GroupByEncoder(fields []QueryField) []EncoderQueryFields {
	var out []EncoderQueryFields
	idx := make(map[string]int)
	for _, f := range fields {
		if f.Encoder == "" {
			continue
		}
		i, ok := idx[f.Encoder]
		if !ok {
			i = len(out)
			idx[f.Encoder] = i
			out = append(out, EncoderQueryFields{Encoder: f.Encoder})
		}
		out[i].Fields = append(out[i].Fields, f)
	}
	return out
}

// Lookup finds the query field produced by an encoder for a named field.
func Lookup(fields []QueryField, field, encoder string) (QueryField, bool) {
	for _, f := range fields {
		if f.Field == field && f.Encoder == encoder {
			return f, true
		}
	}
	return QueryField{}, false
}

// LexicalText returns the raw text of the named field if it can drive a BM25 match.
func LexicalText(fields []QueryField, field string) (string, bool) {
	for _, f := range fields {
		if f.Field == field && f.HasLexicalText() {
			return f.Text, true
		}
	}
	return "", false
}
