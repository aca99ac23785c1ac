package sectionstream

import "strings"

// Section is the assembled content of one completed section
type Section struct {
	Name    string
	Content string
}

// SectionError is an error block reported by the model
type SectionError struct {
	Name    string
	Message string
}

// Assembler folds parser events into section contents.
//
// A section's text only becomes visible once its End event arrives, so an
// interrupted stream never leaves a half-written section behind. When the
// same section is opened again its previous content is replaced.
type Assembler struct {
	contents map[string]string
	order    []string
	drafts   map[string]*strings.Builder
	errors   map[string]string
	errOrder []string
	bytes    int
}

// NewAssembler returns an empty assembler
func NewAssembler() *Assembler {
	return &Assembler{
		contents: make(map[string]string),
		drafts:   make(map[string]*strings.Builder),
		errors:   make(map[string]string),
	}
}

// Apply folds a single event
func (a *Assembler) Apply(ev Event) {
	switch ev.Kind {
	case EventStart:
		a.drafts[ev.Section] = &strings.Builder{}
	case EventDelta:
		d, ok := a.drafts[ev.Section]
		if !ok {
			d = &strings.Builder{}
			a.drafts[ev.Section] = d
		}
		d.WriteString(ev.Text)
		a.bytes += len(ev.Text)
	case EventEnd:
		d, ok := a.drafts[ev.Section]
		if !ok {
			return
		}
		delete(a.drafts, ev.Section)
		if _, seen := a.contents[ev.Section]; !seen {
			a.order = append(a.order, ev.Section)
		}
		a.contents[ev.Section] = strings.TrimSpace(d.String())
		if _, failed := a.errors[ev.Section]; failed {
			delete(a.errors, ev.Section)
			a.errOrder = remove(a.errOrder, ev.Section)
		}
	case EventError:
		if _, seen := a.errors[ev.Section]; !seen {
			a.errOrder = append(a.errOrder, ev.Section)
		}
		a.errors[ev.Section] = ev.Message
	}
}

// ApplyAll folds a batch of events
func (a *Assembler) ApplyAll(events []Event) {
	for _, ev := range events {
		a.Apply(ev)
	}
}

// Sections returns completed sections in the order they were first completed
func (a *Assembler) Sections() []Section {
	out := make([]Section, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, Section{Name: name, Content: a.contents[name]})
	}
	return out
}

// Content returns the completed content of a section
func (a *Assembler) Content(name string) (string, bool) {
	c, ok := a.contents[name]
	return c, ok
}

// Errors returns reported section errors in arrival order
func (a *Assembler) Errors() []SectionError {
	out := make([]SectionError, 0, len(a.errOrder))
	for _, name := range a.errOrder {
		out = append(out, SectionError{Name: name, Message: a.errors[name]})
	}
	return out
}

// Bytes returns the number of section text bytes seen
func (a *Assembler) Bytes() int {
	return a.bytes
}

func remove(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
