package pairing

// ContentKind tags the variant held by a ContentPart.
type ContentKind string

const (
	ContentImage    ContentKind = "image"
	ContentDocument ContentKind = "document"
	ContentText     ContentKind = "text"
)

// MimePDF is the only document type accepted.
const MimePDF = "application/pdf"

// ContentPart is one unit of source material submitted to the model: an
// image, a PDF document or plain text. Only the fields of its Kind are set.
type ContentPart struct {
	Kind     ContentKind
	MimeType string
	Data     []byte
	Text     string
}

// ImagePart wraps image bytes without re-encoding them.
func ImagePart(mimeType string, data []byte) ContentPart {
	return ContentPart{Kind: ContentImage, MimeType: mimeType, Data: data}
}

// DocumentPart wraps PDF bytes without re-encoding them.
func DocumentPart(data []byte) ContentPart {
	return ContentPart{Kind: ContentDocument, MimeType: MimePDF, Data: data}
}

// TextPart wraps plain text.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, MimeType: "text/plain", Text: text}
}

// IsBinary reports whether the part carries bytes rather than text.
func (p ContentPart) IsBinary() bool {
	return p.Kind == ContentImage || p.Kind == ContentDocument
}
