package thesis

import (
	"time"

	"github.com/tesis/backend/internal/domain/thesis"
)

// ListInput selects a page of the caller's theses
type ListInput struct {
	Page     int
	PageSize int
	Search   string
	Status   string
	OrderBy  string
	OrderDir string
}

// UpdateMetadataInput replaces the wizard metadata. A non-zero Version
// must match the stored version.
type UpdateMetadataInput struct {
	Metadata thesis.Metadata
	Version  int
}

// EditSectionInput is a canvas save
type EditSectionInput struct {
	Content string
	Version int
}

// GenerateRequest selects the provider, model and sections to generate.
// Empty values fall back to the registry default, the provider default
// model and the whole catalogue.
type GenerateRequest struct {
	Provider string
	Model    string
	Sections []string
}

// Event types sent to a Sink
const (
	EventSectionStart = "section_start"
	EventSectionDelta = "section_delta"
	EventSectionEnd   = "section_end"
	EventSectionError = "section_error"
	EventDone         = "done"
)

// Event is one step of a generation as seen by the client
type Event struct {
	Type    string `json:"-"`
	Section string `json:"section,omitempty"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`

	// done only
	Status    thesis.Status `json:"status,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Provider  string        `json:"provider,omitempty"`
	Model     string        `json:"model,omitempty"`
	Completed []string      `json:"completed,omitempty"`
	Failed    []string      `json:"failed,omitempty"`
	Version   int           `json:"version,omitempty"`
	Duration  time.Duration `json:"-"`
	Elapsed   int64         `json:"elapsed_ms,omitempty"`
}

// Sink receives generation events. An error aborts the generation as
// cancelled, which is how a disconnected client is detected.
type Sink interface {
	Send(Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Event) error

// Send implements Sink
func (f SinkFunc) Send(ev Event) error { return f(ev) }

// DiscardSink drops every event
var DiscardSink Sink = SinkFunc(func(Event) error { return nil })

// Document is a rendered export
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ArchivedExport points at an export kept in object storage
type ArchivedExport struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}
