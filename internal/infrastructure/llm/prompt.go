package llm

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/tesis/backend/internal/domain/shared"
	"github.com/tesis/backend/internal/domain/thesis"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// PromptBuilder renders the system and user prompts for a generation
type PromptBuilder struct {
	catalogue *thesis.Catalogue
	system    *template.Template
	user      *template.Template
}

// NewPromptBuilder parses the embedded templates
func NewPromptBuilder(catalogue *thesis.Catalogue) (*PromptBuilder, error) {
	if catalogue == nil {
		catalogue = thesis.DefaultCatalogue()
	}
	funcs := template.FuncMap{"join": strings.Join}
	system, err := template.New("system.tmpl").Funcs(funcs).ParseFS(promptFS, "prompts/system.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse system prompt: %w", err)
	}
	user, err := template.New("user.tmpl").Funcs(funcs).ParseFS(promptFS, "prompts/user.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse user prompt: %w", err)
	}
	return &PromptBuilder{catalogue: catalogue, system: system, user: user}, nil
}

type promptSection struct {
	Name     string
	Title    string
	Guidance string
}

// Sections resolves the requested section names against the catalogue.
// An empty list selects the whole catalogue; unknown names are kept with
// a derived title.
func (b *PromptBuilder) Sections(names []string) ([]thesis.CatalogueEntry, error) {
	if len(names) == 0 {
		return b.catalogue.Entries(), nil
	}
	out := make([]thesis.CatalogueEntry, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, raw := range names {
		name := thesis.NormalizeSectionName(raw)
		if !thesis.ValidSectionName(name) {
			return nil, shared.NewDomainError("INVALID_INPUT", fmt.Sprintf("invalid section name %q", raw))
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		if entry, ok := b.catalogue.Lookup(name); ok {
			out = append(out, entry)
			continue
		}
		out = append(out, thesis.CatalogueEntry{Name: name, Title: thesis.TitleFromName(name)})
	}
	return out, nil
}

// Build renders both prompts for the metadata and the given sections
func (b *PromptBuilder) Build(m thesis.Metadata, sections []thesis.CatalogueEntry) (system, user string, err error) {
	m = m.Normalize()

	ps := make([]promptSection, 0, len(sections))
	names := make([]string, 0, len(sections))
	for _, s := range sections {
		ps = append(ps, promptSection{Name: s.Name, Title: s.Title, Guidance: s.Guidance})
		names = append(names, s.Name)
	}

	var sb bytes.Buffer
	if err := b.system.Execute(&sb, map[string]any{
		"LanguageName": languageName(m.Language),
		"Sections":     ps,
	}); err != nil {
		return "", "", fmt.Errorf("render system prompt: %w", err)
	}

	var ub bytes.Buffer
	if err := b.user.Execute(&ub, map[string]any{
		"Title":        m.Title,
		"Institution":  m.Institution,
		"Faculty":      m.Faculty,
		"Career":       m.Career,
		"Degree":       m.DegreeLevel.DisplayName(),
		"Author":       m.Author,
		"Advisor":      m.Advisor,
		"City":         m.City,
		"Year":         m.Year,
		"Topic":        m.Topic,
		"SectionNames": names,
	}); err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return sb.String(), ub.String(), nil
}

func languageName(code string) string {
	switch code {
	case "", "es":
		return "español"
	case "en":
		return "inglés"
	case "pt":
		return "portugués"
	default:
		return code
	}
}
