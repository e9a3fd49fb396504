// Package fence finds triple-backtick code fence boundaries in a growing
// text buffer.
//
// A Detector is fed the same buffer repeatedly as it grows. It remembers
// how far it has scanned, so every byte is examined exactly once and the
// events it reports do not depend on where the buffer was split into
// chunks.
package fence

import "strings"

// Marker is the fence delimiter.
const Marker = "```"

// Kind classifies a detector event.
type Kind int

const (
	None Kind = iota
	Start
	Language
	End
)

func (k Kind) String() string {
	switch k {
	case Start:
		return "start"
	case Language:
		return "language"
	case End:
		return "end"
	default:
		return "none"
	}
}

// Event is the next significant position found by Scan.
//
// For Start and End, Index is the first backtick of the fence. For
// Language, Index is the newline terminating the language line.
type Event struct {
	Kind     Kind
	Index    int
	Language string
}

// Detector is the incremental fence scanner. The zero value is ready to
// use on a fresh buffer.
type Detector struct {
	// Pos is the next byte to examine.
	Pos int
	// InCode is set between a Language event and the matching End.
	InCode bool

	run      int
	runStart int

	awaiting   bool
	fenceStart int
	langStart  int
}

// Reset returns d to its zero state.
func (d *Detector) Reset() {
	*d = Detector{}
}

// Awaiting reports whether an opening fence was seen and its language line
// has not ended yet.
func (d *Detector) Awaiting() bool {
	return d.awaiting
}

// Run returns the number of consecutive backticks (0-2) seen at the end of
// the scanned range that have not yet resolved into a fence or plain text.
func (d *Detector) Run() int {
	return d.run
}

// FenceStart is the index of the opening fence while Awaiting.
func (d *Detector) FenceStart() int {
	return d.fenceStart
}

// PendingLanguage returns the language text collected so far while
// Awaiting.
func (d *Detector) PendingLanguage(buf string) string {
	if !d.awaiting {
		return ""
	}
	return strings.TrimSpace(buf[d.langStart:d.Pos])
}

// Scan examines buf[d.Pos:limit] and returns the first event found,
// leaving Pos just past the bytes that produced it. It returns an event of
// kind None once the range is exhausted; the caller re-invokes it after
// more text has been appended. buf must only ever grow between calls.
func (d *Detector) Scan(buf string, limit int) Event {
	if limit > len(buf) {
		limit = len(buf)
	}

	for d.Pos < limit {
		c := buf[d.Pos]
		d.Pos++

		if d.awaiting {
			if c != '\n' {
				continue
			}
			lang := strings.TrimSpace(buf[d.langStart : d.Pos-1])
			d.awaiting = false
			d.InCode = true
			return Event{Kind: Language, Index: d.Pos - 1, Language: lang}
		}

		if c != '`' {
			d.run = 0
			continue
		}

		if d.run == 0 {
			d.runStart = d.Pos - 1
		}
		d.run++
		if d.run < len(Marker) {
			continue
		}

		d.run = 0
		if d.InCode {
			d.InCode = false
			return Event{Kind: End, Index: d.runStart}
		}
		d.awaiting = true
		d.fenceStart = d.runStart
		d.langStart = d.Pos
		return Event{Kind: Start, Index: d.runStart}
	}
	return Event{Kind: None}
}

// Settled returns the index up to which scanned text is known not to be
// part of an unresolved backtick run. Live rendering stops there.
func (d *Detector) Settled() int {
	if d.run > 0 {
		return d.runStart
	}
	return d.Pos
}

// IncompleteTail returns where the text should be cut when the stream ends
// at d.Pos. An opening fence with no language text is dropped from its
// first backtick and a dangling pair of backticks is dropped; a single
// trailing backtick is kept as text.
func (d *Detector) IncompleteTail(buf string) int {
	switch {
	case d.awaiting && d.PendingLanguage(buf) == "":
		return d.fenceStart
	case d.run == 2:
		return d.runStart
	default:
		return d.Pos
	}
}
