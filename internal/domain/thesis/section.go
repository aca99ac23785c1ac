package thesis

import "time"

// SectionStatus tracks where a section's content came from
type SectionStatus string

const (
	SectionEmpty     SectionStatus = "EMPTY"
	SectionGenerated SectionStatus = "GENERATED"
	SectionEdited    SectionStatus = "EDITED"
	SectionError     SectionStatus = "ERROR"
)

// Section is one part of the thesis document
type Section struct {
	Name         string
	Title        string
	Position     int
	Content      string
	Status       SectionStatus
	ErrorMessage string
	UpdatedAt    time.Time
}

// HasContent reports whether the section carries any non-blank text
func (s *Section) HasContent() bool {
	for _, r := range s.Content {
		if r != ' ' && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
