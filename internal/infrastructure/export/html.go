package export

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tesis/backend/internal/domain/thesis"
)

//go:embed templates/document.html.tmpl
var templatesFS embed.FS

var htmlTagRe = regexp.MustCompile(`(?i)<(p|h[1-6]|ul|ol|li|br|strong|b|em|i|u|div|span|blockquote|table)\b`)

// HTMLBuilder renders a thesis as a standalone HTML document
type HTMLBuilder struct {
	tmpl   *template.Template
	policy *bluemonday.Policy
}

// NewHTMLBuilder parses the embedded document template
func NewHTMLBuilder() (*HTMLBuilder, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/document.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse document template: %w", err)
	}
	return &HTMLBuilder{tmpl: tmpl, policy: bluemonday.UGCPolicy()}, nil
}

type documentSection struct {
	Name  string
	Title string
	Body  template.HTML
}

type documentData struct {
	Language    string
	Title       string
	Institution string
	Faculty     string
	Career      string
	Degree      string
	Author      string
	Advisor     string
	City        string
	Year        int
	Sections    []documentSection
}

// Build renders the title page and every section that has content
func (b *HTMLBuilder) Build(t *thesis.Thesis) ([]byte, error) {
	m := t.Metadata.Normalize()
	data := documentData{
		Language:    m.Language,
		Title:       m.Title,
		Institution: m.Institution,
		Faculty:     m.Faculty,
		Career:      m.Career,
		Degree:      m.DegreeLevel.DisplayName(),
		Author:      m.Author,
		Advisor:     m.Advisor,
		City:        m.City,
		Year:        m.Year,
	}
	for _, s := range t.OrderedSections() {
		if !s.HasContent() {
			continue
		}
		data.Sections = append(data.Sections, documentSection{
			Name:  s.Name,
			Title: s.Title,
			Body:  b.SectionHTML(s.Content),
		})
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return buf.Bytes(), nil
}

// SectionHTML returns sanitised HTML for section content. Canvas content
// is HTML already; model output is plain text and becomes paragraphs.
func (b *HTMLBuilder) SectionHTML(content string) template.HTML {
	if htmlTagRe.MatchString(content) {
		return template.HTML(b.policy.Sanitize(content))
	}
	return template.HTML(b.policy.Sanitize(textToHTML(content)))
}

// textToHTML splits plain text into paragraphs on blank lines. Lines
// starting with "#" become headings and lines starting with "- " or "* "
// become list items.
func textToHTML(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out strings.Builder
	var para []string
	inList := false

	flushPara := func() {
		if len(para) > 0 {
			out.WriteString("<p>")
			out.WriteString(strings.Join(para, "<br>"))
			out.WriteString("</p>\n")
			para = nil
		}
	}
	closeList := func() {
		if inList {
			out.WriteString("</ul>\n")
			inList = false
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flushPara()
			closeList()
		case strings.HasPrefix(trimmed, "#"):
			flushPara()
			closeList()
			level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
			level = min(max(level+1, 2), 4)
			fmt.Fprintf(&out, "<h%d>%s</h%d>\n", level, html.EscapeString(strings.TrimSpace(strings.TrimLeft(trimmed, "#"))), level)
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			flushPara()
			if !inList {
				out.WriteString("<ul>\n")
				inList = true
			}
			out.WriteString("<li>" + html.EscapeString(strings.TrimSpace(trimmed[2:])) + "</li>\n")
		default:
			closeList()
			para = append(para, html.EscapeString(trimmed))
		}
	}
	flushPara()
	closeList()
	return out.String()
}
