package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tesis/backend/internal/domain/thesis"
)

// ThesisModel is the persistence model for the Thesis aggregate.
// Metadata fields are flattened into columns.
type ThesisModel struct {
	AggregateModel
	OwnerID       uuid.UUID     `gorm:"type:uuid;not null;index"`
	Title         string        `gorm:"type:varchar(300);not null"`
	Institution   string        `gorm:"type:varchar(200);not null"`
	Faculty       string        `gorm:"type:varchar(200)"`
	Career        string        `gorm:"type:varchar(200)"`
	Author        string        `gorm:"type:varchar(200);not null"`
	Advisor       string        `gorm:"type:varchar(200)"`
	City          string        `gorm:"type:varchar(200)"`
	Year          int           `gorm:"not null;default:0"`
	DegreeLevel   string        `gorm:"type:varchar(20);not null"`
	Language      string        `gorm:"type:varchar(10);not null"`
	Topic         string        `gorm:"type:text"`
	Provider      string        `gorm:"type:varchar(50)"`
	Model         string        `gorm:"type:varchar(100)"`
	Status        thesis.Status `gorm:"type:varchar(20);not null;index"`
	FailureReason string        `gorm:"type:varchar(500)"`
	GeneratedAt   *time.Time

	Sections []ThesisSectionModel `gorm:"foreignKey:ThesisID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (ThesisModel) TableName() string {
	return "theses"
}

// ThesisSectionModel is one row per section of a thesis
type ThesisSectionModel struct {
	ThesisID     uuid.UUID            `gorm:"type:uuid;primaryKey"`
	Name         string               `gorm:"type:varchar(64);primaryKey"`
	Title        string               `gorm:"type:varchar(200);not null"`
	Position     int                  `gorm:"not null"`
	Content      string               `gorm:"type:text;not null;default:''"`
	Status       thesis.SectionStatus `gorm:"type:varchar(20);not null"`
	ErrorMessage string               `gorm:"type:varchar(500)"`
	UpdatedAt    time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ThesisSectionModel) TableName() string {
	return "thesis_sections"
}

// ToDomain converts the persistence model to a domain Thesis.
// Sections are included only when they were preloaded.
func (m *ThesisModel) ToDomain() *thesis.Thesis {
	t := &thesis.Thesis{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		OwnerID:           m.OwnerID,
		Metadata: thesis.Metadata{
			Title:       m.Title,
			Institution: m.Institution,
			Faculty:     m.Faculty,
			Career:      m.Career,
			Author:      m.Author,
			Advisor:     m.Advisor,
			City:        m.City,
			Year:        m.Year,
			DegreeLevel: thesis.DegreeLevel(m.DegreeLevel),
			Language:    m.Language,
			Topic:       m.Topic,
		},
		Provider:      m.Provider,
		Model:         m.Model,
		Status:        m.Status,
		FailureReason: m.FailureReason,
		GeneratedAt:   m.GeneratedAt,
	}

	sections := make([]ThesisSectionModel, len(m.Sections))
	copy(sections, m.Sections)
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Position < sections[j].Position })
	for _, s := range sections {
		t.Sections = append(t.Sections, &thesis.Section{
			Name:         s.Name,
			Title:        s.Title,
			Position:     s.Position,
			Content:      s.Content,
			Status:       s.Status,
			ErrorMessage: s.ErrorMessage,
			UpdatedAt:    s.UpdatedAt,
		})
	}
	return t
}

// FromDomain populates the persistence model from a domain Thesis
func (m *ThesisModel) FromDomain(t *thesis.Thesis) {
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	m.OwnerID = t.OwnerID
	m.Title = t.Metadata.Title
	m.Institution = t.Metadata.Institution
	m.Faculty = t.Metadata.Faculty
	m.Career = t.Metadata.Career
	m.Author = t.Metadata.Author
	m.Advisor = t.Metadata.Advisor
	m.City = t.Metadata.City
	m.Year = t.Metadata.Year
	m.DegreeLevel = string(t.Metadata.DegreeLevel)
	m.Language = t.Metadata.Language
	m.Topic = t.Metadata.Topic
	m.Provider = t.Provider
	m.Model = t.Model
	m.Status = t.Status
	m.FailureReason = t.FailureReason
	m.GeneratedAt = t.GeneratedAt

	m.Sections = make([]ThesisSectionModel, 0, len(t.Sections))
	for _, s := range t.Sections {
		m.Sections = append(m.Sections, ThesisSectionModel{
			ThesisID:     t.ID,
			Name:         s.Name,
			Title:        s.Title,
			Position:     s.Position,
			Content:      s.Content,
			Status:       s.Status,
			ErrorMessage: s.ErrorMessage,
			UpdatedAt:    s.UpdatedAt,
		})
	}
}

// ThesisModelFromDomain creates a new persistence model from a domain Thesis
func ThesisModelFromDomain(t *thesis.Thesis) *ThesisModel {
	m := &ThesisModel{}
	m.FromDomain(t)
	return m
}

// UpdateColumns returns the mutable thesis columns, including zero values
func (m *ThesisModel) UpdateColumns() map[string]any {
	return map[string]any{
		"updated_at":     m.UpdatedAt,
		"version":        m.Version,
		"title":          m.Title,
		"institution":    m.Institution,
		"faculty":        m.Faculty,
		"career":         m.Career,
		"author":         m.Author,
		"advisor":        m.Advisor,
		"city":           m.City,
		"year":           m.Year,
		"degree_level":   m.DegreeLevel,
		"language":       m.Language,
		"topic":          m.Topic,
		"provider":       m.Provider,
		"model":          m.Model,
		"status":         m.Status,
		"failure_reason": m.FailureReason,
		"generated_at":   m.GeneratedAt,
	}
}

// AllModels lists every model for AutoMigrate in tests
func AllModels() []any {
	return []any{&UserModel{}, &ThesisModel{}, &ThesisSectionModel{}}
}
