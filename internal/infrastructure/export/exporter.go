package export

import (
	"context"
	"fmt"

	"github.com/tesis/backend/internal/domain/thesis"
)

// Exporter renders a thesis in any supported format
type Exporter struct {
	html *HTMLBuilder
	docx *DOCXWriter
	pdf  PDFRenderer
}

// NewExporter wires the builders. pdf may be nil, in which case PDF
// exports fail with RENDER_FAILED.
func NewExporter(pdf PDFRenderer) (*Exporter, error) {
	b, err := NewHTMLBuilder()
	if err != nil {
		return nil, err
	}
	return &Exporter{html: b, docx: NewDOCXWriter(b), pdf: pdf}, nil
}

// Render produces the document bytes for f
func (e *Exporter) Render(ctx context.Context, t *thesis.Thesis, f Format) ([]byte, error) {
	switch f {
	case FormatHTML:
		return e.html.Build(t)
	case FormatDOCX:
		return e.docx.Write(t)
	case FormatPDF:
		if e.pdf == nil {
			return nil, NewRenderError(ErrCodeRenderFailed, "PDF rendering is not configured", nil)
		}
		doc, err := e.html.Build(t)
		if err != nil {
			return nil, err
		}
		return e.pdf.Render(ctx, doc)
	}
	return nil, fmt.Errorf("unsupported format %q", f)
}
