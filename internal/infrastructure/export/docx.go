package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tesis/backend/internal/domain/thesis"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DOCXWriter renders a thesis as a WordprocessingML package
type DOCXWriter struct {
	html *HTMLBuilder
	now  func() time.Time
}

// NewDOCXWriter creates a writer that sanitises content with b
func NewDOCXWriter(b *HTMLBuilder) *DOCXWriter {
	return &DOCXWriter{html: b, now: time.Now}
}

type run struct {
	text      string
	bold      bool
	italic    bool
	underline bool
	lineBreak bool
}

type paragraph struct {
	style string
	align string
	runs  []run
}

// Write builds the .docx bytes
func (w *DOCXWriter) Write(t *thesis.Thesis) ([]byte, error) {
	m := t.Metadata.Normalize()

	var body bytes.Buffer
	for _, p := range titlePage(m) {
		writeParagraph(&body, p)
	}
	body.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)

	first := true
	for _, s := range t.OrderedSections() {
		if !s.HasContent() {
			continue
		}
		style := "Heading1"
		if first {
			style = "Heading1First"
			first = false
		}
		writeParagraph(&body, paragraph{style: style, runs: []run{{text: s.Title}}})
		for _, p := range htmlParagraphs(string(w.html.SectionHTML(s.Content))) {
			writeParagraph(&body, p)
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", rootRelsXML},
		{"word/_rels/document.xml.rels", documentRelsXML},
		{"word/document.xml", documentXMLHead + body.String() + documentXMLTail},
		{"word/styles.xml", stylesXML},
		{"docProps/core.xml", coreXML(m, w.now())},
	}
	for _, f := range files {
		fw, err := zw.Create(f.name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.name, err)
		}
		if _, err := fw.Write([]byte(f.content)); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx: %w", err)
	}
	return buf.Bytes(), nil
}

func titlePage(m thesis.Metadata) []paragraph {
	centered := func(style, text string, bold bool) paragraph {
		return paragraph{style: style, align: "center", runs: []run{{text: text, bold: bold}}}
	}
	ps := []paragraph{centered("Normal", strings.ToUpper(m.Institution), true)}
	if m.Faculty != "" {
		ps = append(ps, centered("Normal", m.Faculty, false))
	}
	if m.Career != "" {
		ps = append(ps, centered("Normal", m.Career, false))
	}
	ps = append(ps,
		paragraph{style: "Normal"},
		centered("Title", m.Title, false),
		paragraph{style: "Normal"},
		centered("Normal", "Tesis para obtener el grado de "+m.DegreeLevel.DisplayName(), false),
		centered("Normal", "Presenta: "+m.Author, false),
	)
	if m.Advisor != "" {
		ps = append(ps, centered("Normal", "Asesor: "+m.Advisor, false))
	}
	if m.City != "" {
		ps = append(ps, centered("Normal", m.City, false))
	}
	if m.Year != 0 {
		ps = append(ps, centered("Normal", strconv.Itoa(m.Year), false))
	}
	return ps
}

// htmlParagraphs flattens sanitised HTML into styled paragraphs
func htmlParagraphs(fragment string) []paragraph {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return []paragraph{{style: "Normal", runs: []run{{text: fragment}}}}
	}

	c := &collector{}
	for _, n := range nodes {
		c.walk(n, run{})
	}
	c.flush()
	return c.out
}

type listState struct {
	ordered bool
	index   int
}

type collector struct {
	out   []paragraph
	cur   *paragraph
	lists []listState
}

func (c *collector) flush() {
	if c.cur != nil && len(c.cur.runs) > 0 {
		c.out = append(c.out, *c.cur)
	}
	c.cur = nil
}

func (c *collector) open(style string) {
	c.flush()
	c.cur = &paragraph{style: style}
}

func (c *collector) add(r run) {
	if c.cur == nil {
		c.cur = &paragraph{style: "Normal"}
	}
	if !r.lineBreak {
		r.text = collapseSpace(r.text, len(c.cur.runs) == 0)
		if r.text == "" {
			return
		}
	}
	c.cur.runs = append(c.cur.runs, r)
}

func (c *collector) walk(n *html.Node, format run) {
	switch n.Type {
	case html.TextNode:
		r := format
		r.text = n.Data
		c.add(r)
		return
	case html.ElementNode:
	default:
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			c.walk(ch, format)
		}
		return
	}

	block := false
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Blockquote:
		c.open("Normal")
		block = true
	case atom.H1, atom.H2:
		c.open("Heading2")
		block = true
	case atom.H3, atom.H4, atom.H5, atom.H6:
		c.open("Heading3")
		block = true
	case atom.Ul, atom.Ol:
		c.flush()
		c.lists = append(c.lists, listState{ordered: n.DataAtom == atom.Ol})
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			c.walk(ch, format)
		}
		c.lists = c.lists[:len(c.lists)-1]
		c.flush()
		return
	case atom.Li:
		c.open("ListParagraph")
		prefix := "• "
		if len(c.lists) > 0 {
			l := &c.lists[len(c.lists)-1]
			l.index++
			if l.ordered {
				prefix = strconv.Itoa(l.index) + ". "
			}
		}
		c.cur.runs = append(c.cur.runs, run{text: prefix})
		block = true
	case atom.Br:
		c.add(run{lineBreak: true})
		return
	case atom.Strong, atom.B:
		format.bold = true
	case atom.Em, atom.I:
		format.italic = true
	case atom.U:
		format.underline = true
	}

	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.walk(ch, format)
	}
	if block {
		c.flush()
	}
}

// collapseSpace applies HTML whitespace rules to a text node
func collapseSpace(s string, leading bool) string {
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		if leading {
			return ""
		}
		return " "
	}
	out := strings.Join(fields, " ")
	if !leading && isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

func writeParagraph(buf *bytes.Buffer, p paragraph) {
	buf.WriteString("<w:p>")
	if p.style != "" || p.align != "" {
		buf.WriteString("<w:pPr>")
		if p.style != "" {
			fmt.Fprintf(buf, `<w:pStyle w:val="%s"/>`, p.style)
		}
		if p.align != "" {
			fmt.Fprintf(buf, `<w:jc w:val="%s"/>`, p.align)
		}
		buf.WriteString("</w:pPr>")
	}
	for _, r := range p.runs {
		buf.WriteString("<w:r>")
		if r.bold || r.italic || r.underline {
			buf.WriteString("<w:rPr>")
			if r.bold {
				buf.WriteString("<w:b/>")
			}
			if r.italic {
				buf.WriteString("<w:i/>")
			}
			if r.underline {
				buf.WriteString(`<w:u w:val="single"/>`)
			}
			buf.WriteString("</w:rPr>")
		}
		if r.lineBreak {
			buf.WriteString("<w:br/>")
		} else {
			buf.WriteString(`<w:t xml:space="preserve">`)
			_ = xml.EscapeText(buf, []byte(r.text))
			buf.WriteString("</w:t>")
		}
		buf.WriteString("</w:r>")
	}
	buf.WriteString("</w:p>")
}

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func coreXML(m thesis.Metadata, now time.Time) string {
	ts := now.UTC().Format(time.RFC3339)
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + escape(m.Title) + `</dc:title>` +
		`<dc:creator>` + escape(m.Author) + `</dc:creator>` +
		`<dc:language>` + escape(m.Language) + `</dc:language>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + ts + `</dcterms:created>` +
		`<dcterms:modified xsi:type="dcterms:W3CDTF">` + ts + `</dcterms:modified>` +
		`</cp:coreProperties>`
}

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`</Types>`

const rootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`</Relationships>`

const documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const documentXMLHead = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`

// A4 portrait, 2.5 cm (1418 twips) margins
const documentXMLTail = `<w:sectPr><w:pgSz w:w="11906" w:h="16838"/>` +
	`<w:pgMar w:top="1418" w:right="1418" w:bottom="1418" w:left="1418" w:header="708" w:footer="708" w:gutter="0"/>` +
	`</w:sectPr></w:body></w:document>`

const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Times New Roman" w:hAnsi="Times New Roman" w:cs="Times New Roman"/><w:sz w:val="24"/><w:lang w:val="es-ES"/></w:rPr></w:rPrDefault>` +
	`<w:pPrDefault><w:pPr><w:spacing w:after="160" w:line="360" w:lineRule="auto"/></w:pPr></w:pPrDefault></w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:pPr><w:jc w:val="both"/></w:pPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:pPr><w:jc w:val="center"/><w:spacing w:before="480" w:after="480"/></w:pPr><w:rPr><w:b/><w:sz w:val="36"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:pageBreakBefore/><w:jc w:val="center"/><w:spacing w:after="240"/><w:outlineLvl w:val="0"/></w:pPr><w:rPr><w:b/><w:caps/><w:sz w:val="28"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1First"><w:name w:val="heading 1 first"/><w:basedOn w:val="Heading1"/><w:pPr><w:pageBreakBefore w:val="0"/></w:pPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading2"><w:name w:val="heading 2"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:jc w:val="left"/><w:outlineLvl w:val="1"/></w:pPr><w:rPr><w:b/><w:sz w:val="26"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading3"><w:name w:val="heading 3"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:pPr><w:keepNext/><w:jc w:val="left"/><w:outlineLvl w:val="2"/></w:pPr><w:rPr><w:b/><w:i/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="ListParagraph"><w:name w:val="List Paragraph"/><w:basedOn w:val="Normal"/><w:pPr><w:ind w:left="720" w:hanging="360"/><w:jc w:val="left"/></w:pPr></w:style>` +
	`</w:styles>`
