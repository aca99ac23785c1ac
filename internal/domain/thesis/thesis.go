package thesis

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tesis/backend/internal/domain/shared"
)

// Status is the generation lifecycle of a thesis
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusGenerating Status = "GENERATING"
	StatusGenerated  Status = "GENERATED"
	StatusFailed     Status = "FAILED"
)

// MaxSectionContentBytes bounds a single canvas save
const MaxSectionContentBytes = 1 << 20

// Thesis is the aggregate root for a thesis draft and its sections
type Thesis struct {
	shared.BaseAggregateRoot
	OwnerID       uuid.UUID
	Metadata      Metadata
	Provider      string
	Model         string
	Status        Status
	Sections      []*Section
	FailureReason string
	GeneratedAt   *time.Time
}

// NewThesis creates a draft seeded with every catalogue section as EMPTY
func NewThesis(ownerID uuid.UUID, metadata Metadata) (*Thesis, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Owner ID cannot be empty")
	}
	metadata = metadata.Normalize()
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	t := &Thesis{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OwnerID:           ownerID,
		Metadata:          metadata,
		Status:            StatusDraft,
	}
	for i, e := range DefaultCatalogue().Entries() {
		t.Sections = append(t.Sections, &Section{
			Name:      e.Name,
			Title:     e.Title,
			Position:  i,
			Status:    SectionEmpty,
			UpdatedAt: t.CreatedAt,
		})
	}
	return t, nil
}

// IsGenerating reports whether a generation is in flight
func (t *Thesis) IsGenerating() bool {
	return t.Status == StatusGenerating
}

// UpdateMetadata replaces the wizard metadata
func (t *Thesis) UpdateMetadata(m Metadata) error {
	if t.IsGenerating() {
		return shared.NewDomainError("INVALID_STATE", "Cannot update metadata while generating")
	}
	m = m.Normalize()
	if err := m.Validate(); err != nil {
		return err
	}
	t.Metadata = m
	t.Touch()
	return nil
}

// StartGeneration moves the thesis into GENERATING
func (t *Thesis) StartGeneration(provider, model string) error {
	if t.IsGenerating() {
		return shared.NewDomainError("INVALID_STATE", "Thesis is already being generated")
	}
	if strings.TrimSpace(provider) == "" {
		return shared.NewDomainError("INVALID_INPUT", "Provider cannot be empty")
	}
	t.Provider = provider
	t.Model = model
	t.Status = StatusGenerating
	t.FailureReason = ""
	t.Touch()
	return nil
}

// ApplyGeneratedSection stores model output for a section. Names the
// catalogue does not know are appended after the existing sections.
func (t *Thesis) ApplyGeneratedSection(name, content string) error {
	if !t.IsGenerating() {
		return shared.NewDomainError("INVALID_STATE", "Sections can only be generated during a generation")
	}
	s, err := t.sectionForGeneration(name)
	if err != nil {
		return err
	}
	s.Content = content
	s.Status = SectionGenerated
	s.ErrorMessage = ""
	s.UpdatedAt = time.Now()
	t.Touch()
	return nil
}

// MarkSectionError records a provider-reported failure for one section;
// existing content is kept.
func (t *Thesis) MarkSectionError(name, message string) error {
	if !t.IsGenerating() {
		return shared.NewDomainError("INVALID_STATE", "Sections can only be marked during a generation")
	}
	s, err := t.sectionForGeneration(name)
	if err != nil {
		return err
	}
	s.Status = SectionError
	s.ErrorMessage = message
	s.UpdatedAt = time.Now()
	t.Touch()
	return nil
}

// CompleteGeneration marks the generation successful
func (t *Thesis) CompleteGeneration() error {
	if !t.IsGenerating() {
		return shared.NewDomainError("INVALID_STATE", "Thesis is not being generated")
	}
	now := time.Now()
	t.Status = StatusGenerated
	t.GeneratedAt = &now
	t.Touch()
	return nil
}

// FailGeneration marks the generation failed with a reason
func (t *Thesis) FailGeneration(reason string) error {
	if !t.IsGenerating() {
		return shared.NewDomainError("INVALID_STATE", "Thesis is not being generated")
	}
	t.Status = StatusFailed
	t.FailureReason = truncateReason(reason)
	t.Touch()
	return nil
}

// AbortCompletion turns a completed but unsaved generation into a failure.
// Generated sections are kept.
func (t *Thesis) AbortCompletion(reason string) error {
	if t.Status != StatusGenerated {
		return shared.NewDomainError("INVALID_STATE", "Thesis generation is not complete")
	}
	t.Status = StatusFailed
	t.GeneratedAt = nil
	t.FailureReason = truncateReason(reason)
	t.Touch()
	return nil
}

// MaxFailureReasonBytes bounds the stored failure reason
const MaxFailureReasonBytes = 500

// truncateReason cuts on a rune boundary so the result stays valid UTF-8
func truncateReason(reason string) string {
	if len(reason) <= MaxFailureReasonBytes {
		return reason
	}
	cut := MaxFailureReasonBytes
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}

// EditSection saves canvas content for an existing section
func (t *Thesis) EditSection(name, content string) error {
	if t.IsGenerating() {
		return shared.NewDomainError("INVALID_STATE", "Cannot edit while generating")
	}
	if len(content) > MaxSectionContentBytes {
		return shared.NewDomainError("INVALID_INPUT", "Section content is too large")
	}
	s := t.Section(name)
	if s == nil {
		return shared.NewDomainError("NOT_FOUND", "Section not found")
	}
	s.Content = content
	s.Status = SectionEdited
	s.ErrorMessage = ""
	s.UpdatedAt = time.Now()
	t.Touch()
	return nil
}

// Section finds a section by name, normalising it first
func (t *Thesis) Section(name string) *Section {
	name = NormalizeSectionName(name)
	for _, s := range t.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// OrderedSections returns the sections sorted by position
func (t *Thesis) OrderedSections() []*Section {
	out := make([]*Section, len(t.Sections))
	copy(out, t.Sections)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Position < out[j].Position
	})
	return out
}

// HasContent reports whether at least one section has text
func (t *Thesis) HasContent() bool {
	for _, s := range t.Sections {
		if s.HasContent() {
			return true
		}
	}
	return false
}

func (t *Thesis) sectionForGeneration(name string) (*Section, error) {
	name = NormalizeSectionName(name)
	if !ValidSectionName(name) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid section name")
	}
	if s := t.Section(name); s != nil {
		return s, nil
	}

	title := TitleFromName(name)
	if e, ok := DefaultCatalogue().Lookup(name); ok {
		title = e.Title
	}
	s := &Section{
		Name:      name,
		Title:     title,
		Position:  t.nextPosition(),
		Status:    SectionEmpty,
		UpdatedAt: time.Now(),
	}
	t.Sections = append(t.Sections, s)
	return s, nil
}

func (t *Thesis) nextPosition() int {
	next := 0
	for _, s := range t.Sections {
		if s.Position >= next {
			next = s.Position + 1
		}
	}
	return next
}
