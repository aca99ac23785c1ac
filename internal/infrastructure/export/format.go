// Package export renders a thesis into downloadable documents: a standalone
// HTML page, a WordprocessingML (.docx) package and a PDF printed by Chrome.
package export

import (
	"strings"

	"github.com/tesis/backend/internal/domain/shared"
	"github.com/tesis/backend/internal/domain/thesis"
)

// Format is an export file format
type Format string

const (
	FormatDOCX Format = "docx"
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// ParseFormat accepts the format case-insensitively, defaulting to docx
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatDOCX:
		return FormatDOCX, nil
	case FormatPDF:
		return FormatPDF, nil
	case FormatHTML:
		return FormatHTML, nil
	}
	return "", shared.NewDomainError("INVALID_INPUT", "Unsupported export format: "+s)
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

const maxSlugLength = 80

// Filename builds a download name from the thesis title
func Filename(title string, f Format) string {
	var b strings.Builder
	dash := false
	for _, r := range thesis.NormalizeSectionName(title) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		slug = "tesis"
	}
	return slug + f.Extension()
}
