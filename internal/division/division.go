package division

// Division is one labeled partition of a source document.
type Division struct {
	Label            string // Vocabulary label, e.g. "DEPARTMENT OF DEFENSE"
	SourceDocumentID string // Source file the division was cut from
	RawText          string // Full text span of the division
}

// Chunk is a fixed-size span of a division's text, ready for embedding.
type Chunk struct {
	Text          string // Chunk text content
	DivisionLabel string // Label of the owning division
	Sequence      int    // Position within the division, starting at 0
}

// Document is the plain-text rendition of one parsed source file.
type Document struct {
	Title  string   // Document title (from metadata or filename)
	Source string   // Base filename the document was read from
	Blocks []string // Text blocks in reading order
}

// Text joins the document's blocks, one per line.
func (d *Document) Text() string {
	n := 0
	for _, b := range d.Blocks {
		n += len(b) + 1
	}
	buf := make([]byte, 0, n)
	for i, b := range d.Blocks {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, b...)
	}
	return string(buf)
}
