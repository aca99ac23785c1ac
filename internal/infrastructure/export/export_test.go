package export

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tesis/backend/internal/domain/shared"
	"github.com/tesis/backend/internal/domain/thesis"
)

func newThesis(t *testing.T) *thesis.Thesis {
	t.Helper()
	th, err := thesis.NewThesis(uuid.New(), thesis.Metadata{
		Title:       "Impacto de la IA en la educación",
		Institution: "Universidad Nacional",
		Faculty:     "Facultad de Ingeniería",
		Author:      "Ana Pérez",
		Advisor:     "Dr. Luis Gómez",
		City:        "Lima",
		Year:        2025,
		DegreeLevel: thesis.DegreeMaestria,
	})
	require.NoError(t, err)
	require.NoError(t, th.StartGeneration("gemini", "gemini-2.0-flash"))
	require.NoError(t, th.ApplyGeneratedSection("introduccion", "Primer párrafo.\n\nSegundo 3 < 5 & más."))
	require.NoError(t, th.ApplyGeneratedSection("objetivos", "# Objetivo general\n- Analizar\n- Proponer"))
	require.NoError(t, th.CompleteGeneration())
	require.NoError(t, th.EditSection("conclusiones", `<p>Texto <strong>fuerte</strong> y <em>suave</em><script>alert(1)</script></p>`))
	return th
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"", FormatDOCX, false},
		{"DOCX", FormatDOCX, false},
		{" pdf ", FormatPDF, false},
		{"html", FormatHTML, false},
		{"odt", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, shared.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "impacto-de-la-ia-en-la-educacion.docx", Filename("Impacto de la IA en la educación", FormatDOCX))
	assert.Equal(t, "tesis.pdf", Filename("¿¡!?", FormatPDF))
	long := Filename(strings.Repeat("palabra ", 30), FormatHTML)
	assert.LessOrEqual(t, len(long), maxSlugLength+len(".html"))
	assert.False(t, strings.Contains(long, "-.html"))
}

func TestFormat_ContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
	assert.Contains(t, FormatHTML.ContentType(), "text/html")
	assert.Contains(t, FormatDOCX.ContentType(), "wordprocessingml")
}

func TestHTMLBuilder_Build(t *testing.T) {
	b, err := NewHTMLBuilder()
	require.NoError(t, err)

	out, err := b.Build(newThesis(t))
	require.NoError(t, err)
	doc := string(out)

	assert.Contains(t, doc, "Universidad Nacional")
	assert.Contains(t, doc, "Tesis para obtener el grado de Maestría")
	assert.Contains(t, doc, "Asesor:")
	assert.Contains(t, doc, `id="introduccion"`)
	assert.Contains(t, doc, "<p>Primer párrafo.</p>")
	assert.Contains(t, doc, "Segundo 3 &lt; 5 &amp; más.")
	assert.Contains(t, doc, "<h2>Objetivo general</h2>")
	assert.Contains(t, doc, "<li>Analizar</li>")
	assert.Contains(t, doc, "<strong>fuerte</strong>")
	assert.NotContains(t, doc, "<script>")
	assert.NotContains(t, doc, `id="resumen"`, "empty sections are skipped")

	assert.Less(t, strings.Index(doc, `id="introduccion"`), strings.Index(doc, `id="conclusiones"`))
}

func TestTextToHTML(t *testing.T) {
	got := textToHTML("línea uno\nlínea dos\n\n* a\n* b\n\n### Sub")
	assert.Equal(t, "<p>línea uno<br>línea dos</p>\n<ul>\n<li>a</li>\n<li>b</li>\n</ul>\n<h4>Sub</h4>\n", got)
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		files[f.Name] = string(b)
	}
	return files
}

func TestDOCXWriter_Write(t *testing.T) {
	b, err := NewHTMLBuilder()
	require.NoError(t, err)

	data, err := NewDOCXWriter(b).Write(newThesis(t))
	require.NoError(t, err)

	files := readZip(t, data)
	for _, name := range []string{
		"[Content_Types].xml", "_rels/.rels", "word/_rels/document.xml.rels",
		"word/document.xml", "word/styles.xml", "docProps/core.xml",
	} {
		assert.Contains(t, files, name)
	}

	doc := files["word/document.xml"]
	assert.Contains(t, doc, `<w:br w:type="page"/>`)
	assert.Contains(t, doc, `<w:pStyle w:val="Heading1First"/>`)
	assert.Contains(t, doc, `<w:pStyle w:val="Heading1"/>`)
	assert.Contains(t, doc, "Introducción")
	assert.Contains(t, doc, "Segundo 3 &lt; 5 &amp; más.")
	assert.Contains(t, doc, `<w:pStyle w:val="ListParagraph"/>`)
	assert.Contains(t, doc, "• ")
	assert.Contains(t, doc, `<w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">fuerte</w:t></w:r>`)
	assert.NotContains(t, doc, "alert")

	assert.Contains(t, files["word/styles.xml"], "<w:pageBreakBefore/>")
	assert.Contains(t, files["docProps/core.xml"], "<dc:creator>Ana Pérez</dc:creator>")
}

func TestHTMLParagraphs(t *testing.T) {
	ps := htmlParagraphs("<h3>Sub</h3><p>uno  <u>dos</u><br>tres</p><ol><li>a</li><li>b</li></ol>")
	require.Len(t, ps, 4)

	assert.Equal(t, "Heading3", ps[0].style)
	assert.Equal(t, "Sub", ps[0].runs[0].text)

	assert.Equal(t, "Normal", ps[1].style)
	require.Len(t, ps[1].runs, 4)
	assert.Equal(t, "uno ", ps[1].runs[0].text)
	assert.True(t, ps[1].runs[1].underline)
	assert.True(t, ps[1].runs[2].lineBreak)
	assert.Equal(t, "tres", ps[1].runs[3].text)

	assert.Equal(t, "1. ", ps[2].runs[0].text)
	assert.Equal(t, "2. ", ps[3].runs[0].text)
}

func TestBuildPrintParams(t *testing.T) {
	p := buildPrintParams()
	assert.InDelta(t, 8.27, p.PaperWidth, 0.01)
	assert.InDelta(t, 11.69, p.PaperHeight, 0.01)
	assert.InDelta(t, 0.984, p.MarginTop, 0.01)
	assert.InDelta(t, 0.984, p.MarginLeft, 0.01)
	assert.False(t, p.Landscape)
	assert.True(t, p.DisplayHeaderFooter)
	assert.Contains(t, p.FooterTemplate, "pageNumber")
}

type fakePDF struct {
	got []byte
}

func (f *fakePDF) Render(_ context.Context, html []byte) ([]byte, error) {
	f.got = html
	return []byte("%PDF-1.7"), nil
}

func (f *fakePDF) Close() error { return nil }

func TestExporter_Render(t *testing.T) {
	pdf := &fakePDF{}
	e, err := NewExporter(pdf)
	require.NoError(t, err)
	th := newThesis(t)

	out, err := e.Render(context.Background(), th, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(out))
	assert.Contains(t, string(pdf.got), "<!DOCTYPE html>")

	out, err = e.Render(context.Background(), th, FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Introducción")

	e, err = NewExporter(nil)
	require.NoError(t, err)
	_, err = e.Render(context.Background(), th, FormatPDF)
	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeRenderFailed, re.Code)
}

func TestChromedpRenderer_EmptyHTML(t *testing.T) {
	r := NewChromedpRenderer(ChromedpConfig{})
	defer r.Close()

	_, err := r.Render(context.Background(), []byte("  \n"))
	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeInvalidHTML, re.Code)
}
