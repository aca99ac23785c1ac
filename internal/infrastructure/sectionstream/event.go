package sectionstream

// EventKind identifies a parser event
type EventKind int

const (
	// EventStart opens a section
	EventStart EventKind = iota + 1
	// EventDelta carries text for the open section
	EventDelta
	// EventEnd closes a section
	EventEnd
	// EventError reports a section the model could not write
	EventError
)

// String returns the wire name used for SSE events
func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "section_start"
	case EventDelta:
		return "section_delta"
	case EventEnd:
		return "section_end"
	case EventError:
		return "section_error"
	default:
		return "unknown"
	}
}

// Event is produced by the Parser
type Event struct {
	Kind    EventKind
	Section string
	Text    string // EventDelta only
	Message string // EventError only
}

// Start returns an EventStart
func Start(section string) Event { return Event{Kind: EventStart, Section: section} }

// Delta returns an EventDelta
func Delta(section, text string) Event { return Event{Kind: EventDelta, Section: section, Text: text} }

// End returns an EventEnd
func End(section string) Event { return Event{Kind: EventEnd, Section: section} }

// Error returns an EventError
func Error(section, message string) Event {
	return Event{Kind: EventError, Section: section, Message: message}
}
