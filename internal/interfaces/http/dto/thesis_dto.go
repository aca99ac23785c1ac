package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/tesis/backend/internal/domain/thesis"
)

// MetadataRequest is the wizard payload
type MetadataRequest struct {
	Title       string `json:"title" binding:"required,max=300"`
	Institution string `json:"institution" binding:"required,max=200"`
	Faculty     string `json:"faculty" binding:"max=200"`
	Career      string `json:"career" binding:"max=200"`
	Author      string `json:"author" binding:"required,max=200"`
	Advisor     string `json:"advisor" binding:"max=200"`
	City        string `json:"city" binding:"max=200"`
	Year        int    `json:"year" binding:"omitempty,gte=1900,lte=2100"`
	DegreeLevel string `json:"degree_level" binding:"omitempty,oneof=LICENCIATURA MAESTRIA DOCTORADO"`
	Language    string `json:"language" binding:"omitempty,max=10"`
	Topic       string `json:"topic" binding:"max=2000"`
}

// ToDomain converts the request to thesis metadata
func (r MetadataRequest) ToDomain() thesis.Metadata {
	return thesis.Metadata{
		Title:       r.Title,
		Institution: r.Institution,
		Faculty:     r.Faculty,
		Career:      r.Career,
		Author:      r.Author,
		Advisor:     r.Advisor,
		City:        r.City,
		Year:        r.Year,
		DegreeLevel: thesis.DegreeLevel(r.DegreeLevel),
		Language:    r.Language,
		Topic:       r.Topic,
	}
}

// UpdateThesisRequest replaces the metadata of a thesis
type UpdateThesisRequest struct {
	MetadataRequest
	Version int `json:"version" binding:"gte=0"`
}

// EditSectionRequest is a canvas save
type EditSectionRequest struct {
	Content string `json:"content"`
	Version int    `json:"version" binding:"gte=0"`
}

// GenerateRequest selects provider, model and sections
type GenerateRequest struct {
	Provider string   `json:"provider" binding:"omitempty,max=50"`
	Model    string   `json:"model" binding:"omitempty,max=100"`
	Sections []string `json:"sections" binding:"omitempty,max=50,dive,max=64"`
}

// ListThesesRequest are the query parameters of GET /theses
type ListThesesRequest struct {
	ListRequest
	Status string `form:"status" binding:"omitempty,oneof=DRAFT GENERATING GENERATED FAILED draft generating generated failed"`
}

// ExportRequest are the parameters of an export
type ExportRequest struct {
	Format string `form:"format" json:"format" binding:"omitempty,oneof=docx pdf html DOCX PDF HTML"`
}

// MetadataResponse is the wizard data of a thesis
type MetadataResponse struct {
	Title       string `json:"title"`
	Institution string `json:"institution"`
	Faculty     string `json:"faculty,omitempty"`
	Career      string `json:"career,omitempty"`
	Author      string `json:"author"`
	Advisor     string `json:"advisor,omitempty"`
	City        string `json:"city,omitempty"`
	Year        int    `json:"year,omitempty"`
	DegreeLevel string `json:"degree_level"`
	Language    string `json:"language"`
	Topic       string `json:"topic,omitempty"`
}

// SectionResponse is one section of a thesis
type SectionResponse struct {
	Name         string    `json:"name"`
	Title        string    `json:"title"`
	Position     int       `json:"position"`
	Content      string    `json:"content"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ThesisResponse is a thesis with its sections
type ThesisResponse struct {
	ID            uuid.UUID         `json:"id"`
	Metadata      MetadataResponse  `json:"metadata"`
	Status        string            `json:"status"`
	Provider      string            `json:"provider,omitempty"`
	Model         string            `json:"model,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	GeneratedAt   *time.Time        `json:"generated_at,omitempty"`
	Version       int               `json:"version"`
	Sections      []SectionResponse `json:"sections,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// ThesisSummaryResponse is a list row
type ThesisSummaryResponse struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Institution string     `json:"institution"`
	Status      string     `json:"status"`
	Completed   int        `json:"completed_sections"`
	Total       int        `json:"total_sections"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toMetadataResponse(m thesis.Metadata) MetadataResponse {
	return MetadataResponse{
		Title:       m.Title,
		Institution: m.Institution,
		Faculty:     m.Faculty,
		Career:      m.Career,
		Author:      m.Author,
		Advisor:     m.Advisor,
		City:        m.City,
		Year:        m.Year,
		DegreeLevel: string(m.DegreeLevel),
		Language:    m.Language,
		Topic:       m.Topic,
	}
}

// ToThesisResponse converts a thesis with all its sections
func ToThesisResponse(t *thesis.Thesis) ThesisResponse {
	sections := t.OrderedSections()
	out := make([]SectionResponse, 0, len(sections))
	for _, s := range sections {
		out = append(out, SectionResponse{
			Name:         s.Name,
			Title:        s.Title,
			Position:     s.Position,
			Content:      s.Content,
			Status:       string(s.Status),
			ErrorMessage: s.ErrorMessage,
			UpdatedAt:    s.UpdatedAt,
		})
	}
	return ThesisResponse{
		ID:            t.ID,
		Metadata:      toMetadataResponse(t.Metadata),
		Status:        string(t.Status),
		Provider:      t.Provider,
		Model:         t.Model,
		FailureReason: t.FailureReason,
		GeneratedAt:   t.GeneratedAt,
		Version:       t.Version,
		Sections:      out,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// ToThesisSummaries converts a page of theses to list rows
func ToThesisSummaries(items []*thesis.Thesis) []ThesisSummaryResponse {
	out := make([]ThesisSummaryResponse, 0, len(items))
	for _, t := range items {
		completed := 0
		for _, s := range t.Sections {
			if s.HasContent() {
				completed++
			}
		}
		out = append(out, ThesisSummaryResponse{
			ID:          t.ID,
			Title:       t.Metadata.Title,
			Institution: t.Metadata.Institution,
			Status:      string(t.Status),
			Completed:   completed,
			Total:       len(t.Sections),
			GeneratedAt: t.GeneratedAt,
			UpdatedAt:   t.UpdatedAt,
		})
	}
	return out
}
