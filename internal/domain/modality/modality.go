package modality

// Modality is the content kind of a document field.
type Modality string

// Modality constants.
const (
	Text  Modality = "text"
	Image Modality = "image"
	Audio Modality = "audio"
	// Video covers gifs and other moving-image content.
	Video Modality = "video"
)

// IsValid checks if the modality is one of the supported values.
func (m Modality) IsValid() bool {
	return m == Text || m == Image || m == Audio || m == Video
}

// IsFilterable reports whether fields of this modality can be used in filters.
func (m Modality) IsFilterable() bool { return m == Text }

// IsLexical reports whether fields of this modality take part in BM25 matching.
func (m Modality) IsLexical() bool { return m == Text }
