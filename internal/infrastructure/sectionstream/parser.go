package sectionstream

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tesis/backend/internal/domain/thesis"
)

// MaxMarkerLength bounds how far a candidate marker may extend, in bytes,
// before it is given up on and treated as text.
const MaxMarkerLength = 96

const fence = "---"

type markerKind int

const (
	markerSection markerKind = iota + 1
	markerError
)

var keywords = []struct {
	word string
	kind markerKind
}{
	{"seccion", markerSection},
	{"sección", markerSection},
	{"error", markerError},
}

type matchResult int

const (
	noMatch matchResult = iota
	needMore
	matched
)

type blockState int

const (
	statePreamble blockState = iota
	stateSection
	stateError
)

// Parser is an incremental marker scanner. It is not safe for concurrent use.
type Parser struct {
	pending   []byte
	state     blockState
	current   string
	errMsg    strings.Builder
	swallowNL bool
	preamble  int
	flushed   bool
}

// NewParser returns a parser positioned before the first marker
func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes the next chunk of the stream
func (p *Parser) Feed(chunk string) []Event {
	if p.flushed || chunk == "" {
		return nil
	}
	data := make([]byte, 0, len(p.pending)+len(chunk))
	data = append(data, p.pending...)
	data = append(data, chunk...)
	p.pending = nil
	return p.scan(data, false)
}

// Flush emits any held-back text and closes the open block.
// The parser accepts no input afterwards.
func (p *Parser) Flush() []Event {
	if p.flushed {
		return nil
	}
	data := p.pending
	p.pending = nil
	events := p.scan(data, true)
	events = p.closeBlock(events)
	p.state = statePreamble
	p.flushed = true
	return events
}

// Preamble returns how many bytes arrived before the first marker
func (p *Parser) Preamble() int {
	return p.preamble
}

// Current returns the section being written, or "" outside a section
func (p *Parser) Current() string {
	if p.state == stateSection {
		return p.current
	}
	return ""
}

// Buffered returns how many bytes are held back waiting for more input
func (p *Parser) Buffered() int {
	return len(p.pending)
}

func (p *Parser) scan(data []byte, final bool) []Event {
	var events []Event
	start, i := 0, 0

	for i < len(data) {
		if p.swallowNL {
			switch {
			case data[i] == '\n':
				i++
			case data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n':
				i += 2
			case data[i] == '\r' && i+1 == len(data) && !final:
				p.pending = append(p.pending, data[i:]...)
				return events
			}
			p.swallowNL = false
			start = i
			continue
		}

		if data[i] != '-' {
			i++
			continue
		}

		kind, name, n, res := matchMarker(data[i:], final)
		switch res {
		case needMore:
			events = p.text(events, data[start:i])
			p.pending = append(p.pending, data[i:]...)
			return events
		case matched:
			events = p.text(events, data[start:i])
			events = p.open(events, kind, name)
			i += n
			start = i
			p.swallowNL = true
		default:
			i++
		}
	}

	end := len(data)
	if !final {
		end = completeRunes(data, start)
		p.pending = append(p.pending, data[end:]...)
	}
	return p.text(events, data[start:end])
}

// completeRunes returns the end of the longest prefix of data[start:] that
// does not finish with a truncated UTF-8 sequence.
func completeRunes(data []byte, start int) int {
	end := len(data)
	for k := end - 1; k >= start && k >= end-utf8.UTFMax; k-- {
		if utf8.RuneStart(data[k]) {
			if !utf8.FullRune(data[k:end]) {
				return k
			}
			break
		}
	}
	return end
}

func (p *Parser) text(events []Event, b []byte) []Event {
	if len(b) == 0 {
		return events
	}
	switch p.state {
	case stateSection:
		events = append(events, Delta(p.current, string(b)))
	case stateError:
		p.errMsg.Write(b)
	default:
		p.preamble += len(b)
	}
	return events
}

func (p *Parser) open(events []Event, kind markerKind, name string) []Event {
	events = p.closeBlock(events)
	p.current = name
	if kind == markerError {
		p.state = stateError
		p.errMsg.Reset()
		return events
	}
	p.state = stateSection
	return append(events, Start(name))
}

func (p *Parser) closeBlock(events []Event) []Event {
	switch p.state {
	case stateSection:
		events = append(events, End(p.current))
	case stateError:
		events = append(events, Error(p.current, strings.TrimSpace(p.errMsg.String())))
		p.errMsg.Reset()
	}
	return events
}

// matchMarker checks whether b starts with a complete marker. When final
// is false and b ends before the marker could be decided, needMore is
// returned so the caller can hold the bytes back.
func matchMarker(b []byte, final bool) (markerKind, string, int, matchResult) {
	limit := len(b)
	if limit > MaxMarkerLength {
		limit = MaxMarkerLength
	}
	more := func() (markerKind, string, int, matchResult) {
		if final || limit == MaxMarkerLength {
			return 0, "", 0, noMatch
		}
		return 0, "", 0, needMore
	}

	pos := 0
	for ; pos < len(fence); pos++ {
		if pos >= limit {
			return more()
		}
		if b[pos] != '-' {
			return 0, "", 0, noMatch
		}
	}
	pos = skipSpaces(b, pos, limit)
	if pos >= limit {
		return more()
	}

	kind, n, res := matchKeyword(b[pos:limit])
	switch res {
	case noMatch:
		return 0, "", 0, noMatch
	case needMore:
		return more()
	}
	pos += n

	pos = skipSpaces(b, pos, limit)
	if pos >= limit {
		return more()
	}
	if b[pos] != ':' {
		return 0, "", 0, noMatch
	}
	pos++

	nameStart := pos
	for ; pos+len(fence) <= limit; pos++ {
		if b[pos] == '\n' || b[pos] == '\r' {
			return 0, "", 0, noMatch
		}
		if string(b[pos:pos+len(fence)]) == fence {
			name := thesis.NormalizeSectionName(string(b[nameStart:pos]))
			if !thesis.ValidSectionName(name) {
				return 0, "", 0, noMatch
			}
			return kind, name, pos + len(fence), matched
		}
	}
	for ; pos < limit; pos++ {
		if b[pos] == '\n' || b[pos] == '\r' {
			return 0, "", 0, noMatch
		}
	}
	return more()
}

func matchKeyword(b []byte) (markerKind, int, matchResult) {
	partial := false
	for _, kw := range keywords {
		n, res := matchFold(b, kw.word)
		switch res {
		case matched:
			return kw.kind, n, matched
		case needMore:
			partial = true
		}
	}
	if partial {
		return 0, 0, needMore
	}
	return 0, 0, noMatch
}

// matchFold compares the start of b against a lower-case word, ignoring case.
func matchFold(b []byte, word string) (int, matchResult) {
	pos := 0
	for _, want := range word {
		if pos >= len(b) {
			return 0, needMore
		}
		if !utf8.FullRune(b[pos:]) {
			return 0, needMore
		}
		r, size := utf8.DecodeRune(b[pos:])
		if unicode.ToLower(r) != want {
			return 0, noMatch
		}
		pos += size
	}
	return pos, matched
}

func skipSpaces(b []byte, pos, limit int) int {
	for pos < limit && (b[pos] == ' ' || b[pos] == '\t') {
		pos++
	}
	return pos
}

// ParseAll runs a complete text through a fresh parser
func ParseAll(text string) []Event {
	p := NewParser()
	events := p.Feed(text)
	return append(events, p.Flush()...)
}
