package thesis

import (
	"strings"
	"unicode/utf8"

	"github.com/tesis/backend/internal/domain/shared"
)

// DegreeLevel is the academic degree the thesis is written for
type DegreeLevel string

const (
	DegreeLicenciatura DegreeLevel = "LICENCIATURA"
	DegreeMaestria     DegreeLevel = "MAESTRIA"
	DegreeDoctorado    DegreeLevel = "DOCTORADO"
)

// IsValid checks if the degree level is known
func (d DegreeLevel) IsValid() bool {
	switch d {
	case DegreeLicenciatura, DegreeMaestria, DegreeDoctorado:
		return true
	}
	return false
}

// DisplayName returns the degree as printed on the title page
func (d DegreeLevel) DisplayName() string {
	switch d {
	case DegreeMaestria:
		return "Maestría"
	case DegreeDoctorado:
		return "Doctorado"
	default:
		return "Licenciatura"
	}
}

// DefaultLanguage is used when the wizard leaves the language blank
const DefaultLanguage = "es"

// Metadata is what the wizard collects before generation
type Metadata struct {
	Title       string
	Institution string
	Faculty     string
	Career      string
	Author      string
	Advisor     string
	City        string
	Year        int
	DegreeLevel DegreeLevel
	Language    string
	Topic       string
}

// Normalize trims every field and fills defaults
func (m Metadata) Normalize() Metadata {
	m.Title = strings.TrimSpace(m.Title)
	m.Institution = strings.TrimSpace(m.Institution)
	m.Faculty = strings.TrimSpace(m.Faculty)
	m.Career = strings.TrimSpace(m.Career)
	m.Author = strings.TrimSpace(m.Author)
	m.Advisor = strings.TrimSpace(m.Advisor)
	m.City = strings.TrimSpace(m.City)
	m.Topic = strings.TrimSpace(m.Topic)
	m.Language = strings.ToLower(strings.TrimSpace(m.Language))
	if m.Language == "" {
		m.Language = DefaultLanguage
	}
	m.DegreeLevel = DegreeLevel(strings.ToUpper(strings.TrimSpace(string(m.DegreeLevel))))
	if m.DegreeLevel == "" {
		m.DegreeLevel = DegreeLicenciatura
	}
	return m
}

// Validate checks a normalised metadata value
func (m Metadata) Validate() error {
	if err := required("Title", m.Title, 300); err != nil {
		return err
	}
	if err := required("Institution", m.Institution, 200); err != nil {
		return err
	}
	if err := required("Author", m.Author, 200); err != nil {
		return err
	}
	for field, v := range map[string]string{
		"Faculty": m.Faculty,
		"Career":  m.Career,
		"Advisor": m.Advisor,
		"City":    m.City,
	} {
		if utf8.RuneCountInString(v) > 200 {
			return shared.NewDomainError("INVALID_INPUT", field+" cannot exceed 200 characters")
		}
	}
	if utf8.RuneCountInString(m.Topic) > 2000 {
		return shared.NewDomainError("INVALID_INPUT", "Topic cannot exceed 2000 characters")
	}
	if m.Year != 0 && (m.Year < 1900 || m.Year > 2100) {
		return shared.NewDomainError("INVALID_INPUT", "Year must be between 1900 and 2100")
	}
	if !m.DegreeLevel.IsValid() {
		return shared.NewDomainError("INVALID_INPUT", "Unknown degree level")
	}
	if len(m.Language) > 10 {
		return shared.NewDomainError("INVALID_INPUT", "Language cannot exceed 10 characters")
	}
	return nil
}

func required(field, v string, max int) error {
	if v == "" {
		return shared.NewDomainError("INVALID_INPUT", field+" is required")
	}
	if utf8.RuneCountInString(v) > max {
		return shared.NewDomainError("INVALID_INPUT", field+" is too long")
	}
	return nil
}
