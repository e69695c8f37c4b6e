// Package segment holds the conversion data model shared by the converter
// backend and the conversion session: segments, their ranked candidates and
// the fixed-slot transliteration (meta) candidates.
package segment

import (
	"strings"
)

// Type tags how a segment's boundary and value were decided.
type Type int

const (
	// Free segments may be resized and reconverted by the backend.
	Free Type = iota
	// FixedBoundary segments keep their boundary but not their value.
	FixedBoundary
	// FixedValue segments have a committed candidate at index 0.
	FixedValue
	// History segments are already committed context.
	History
)

// String returns the string representation of the segment type.
func (t Type) String() string {
	switch t {
	case Free:
		return "free"
	case FixedBoundary:
		return "fixed_boundary"
	case FixedValue:
		return "fixed_value"
	case History:
		return "history"
	default:
		return "unknown"
	}
}

// Attribute is a bit set describing a candidate's origin and treatment.
type Attribute uint32

const (
	UserDictionary Attribute = 1 << iota
	UserHistoryPrediction
	SpellingCorrection
	TypingCorrection
	PartiallyKeyConsumed
	CommandCandidate
	NoVariantsExpansion
	NoLearning
)

// Has reports whether all bits of a are set.
func (a Attribute) Has(bits Attribute) bool {
	return a&bits == bits
}

// Command is the side effect executed when a command candidate is committed.
type Command int

const (
	DefaultCommand Command = iota
	EnableIncognitoMode
	DisableIncognitoMode
	EnablePresentationMode
	DisablePresentationMode
)

// String returns the string representation of the command.
func (c Command) String() string {
	switch c {
	case DefaultCommand:
		return "default"
	case EnableIncognitoMode:
		return "enable_incognito_mode"
	case DisableIncognitoMode:
		return "disable_incognito_mode"
	case EnablePresentationMode:
		return "enable_presentation_mode"
	case DisablePresentationMode:
		return "disable_presentation_mode"
	default:
		return "unknown"
	}
}

// Candidate is one concrete text option for a segment.
type Candidate struct {
	Key          string
	Value        string
	ContentKey   string
	ContentValue string

	Attributes Attribute

	// ConsumedKeySize is the number of key runes this candidate covers when
	// PartiallyKeyConsumed is set.
	ConsumedKeySize int

	// Command is meaningful only when CommandCandidate is set.
	Command Command

	// InnerSegmentBoundary lists the rune lengths of the sub-segments the
	// candidate was built from, used to display segment counts.
	InnerSegmentBoundary []int
}

// NewCandidate returns a candidate whose content fields mirror key and value.
func NewCandidate(key, value string) Candidate {
	return Candidate{
		Key:          key,
		Value:        value,
		ContentKey:   key,
		ContentValue: value,
	}
}

// IsCommand reports whether committing the candidate executes a command
// instead of producing text.
func (c *Candidate) IsCommand() bool {
	return c.Attributes.Has(CommandCandidate)
}

func (c Candidate) clone() Candidate {
	if c.InnerSegmentBoundary != nil {
		c.InnerSegmentBoundary = append([]int(nil), c.InnerSegmentBoundary...)
	}
	return c
}

// Segment is one phonetic unit of the composition with its ranked options.
type Segment struct {
	Key            string
	Type           Type
	Candidates     []Candidate
	MetaCandidates []Candidate
}

// IsValidIndex reports whether id addresses a candidate or, when negative,
// a meta candidate (id -1 is meta candidate 0).
func (s *Segment) IsValidIndex(id int) bool {
	if id < 0 {
		return -id-1 < len(s.MetaCandidates)
	}
	return id < len(s.Candidates)
}

// Candidate returns the candidate addressed by id using the same encoding
// as IsValidIndex. The result is nil for an invalid id.
func (s *Segment) Candidate(id int) *Candidate {
	if !s.IsValidIndex(id) {
		return nil
	}
	if id < 0 {
		return &s.MetaCandidates[-id-1]
	}
	return &s.Candidates[id]
}

// IsEmpty reports whether the segment has neither candidates nor meta
// candidates.
func (s *Segment) IsEmpty() bool {
	return len(s.Candidates) == 0 && len(s.MetaCandidates) == 0
}

// PushFront inserts candidates at the head preserving their order.
func (s *Segment) PushFront(cands ...Candidate) {
	merged := make([]Candidate, 0, len(cands)+len(s.Candidates))
	merged = append(merged, cands...)
	s.Candidates = append(merged, s.Candidates...)
}

// MoveToFront moves the candidate at id to index 0. Meta candidates are
// copied to the front instead.
func (s *Segment) MoveToFront(id int) bool {
	c := s.Candidate(id)
	if c == nil {
		return false
	}
	if id < 0 {
		s.PushFront(*c)
		return true
	}
	if id == 0 {
		return true
	}
	moved := s.Candidates[id]
	copy(s.Candidates[1:id+1], s.Candidates[:id])
	s.Candidates[0] = moved
	return true
}

// Clone returns a deep copy of the segment.
func (s Segment) Clone() Segment {
	out := s
	out.Candidates = cloneCandidates(s.Candidates)
	out.MetaCandidates = cloneCandidates(s.MetaCandidates)
	return out
}

func cloneCandidates(in []Candidate) []Candidate {
	if in == nil {
		return nil
	}
	out := make([]Candidate, len(in))
	for i, c := range in {
		out[i] = c.clone()
	}
	return out
}

// Segments is the ordered list of history segments followed by conversion
// segments.
type Segments struct {
	segments []Segment

	// MaxHistorySize caps the number of history segments kept on Finish.
	MaxHistorySize int
}

// Len returns the total number of segments.
func (s *Segments) Len() int {
	return len(s.segments)
}

// Segment returns the i-th segment counting history segments.
func (s *Segments) Segment(i int) *Segment {
	if i < 0 || i >= len(s.segments) {
		return nil
	}
	return &s.segments[i]
}

// HistorySize returns the number of leading history segments.
func (s *Segments) HistorySize() int {
	n := 0
	for n < len(s.segments) && s.segments[n].Type == History {
		n++
	}
	return n
}

// ConversionSize returns the number of conversion segments.
func (s *Segments) ConversionSize() int {
	return len(s.segments) - s.HistorySize()
}

// ConversionSegment returns the i-th conversion segment or nil.
func (s *Segments) ConversionSegment(i int) *Segment {
	if i < 0 || i >= s.ConversionSize() {
		return nil
	}
	return &s.segments[s.HistorySize()+i]
}

// ConversionSegments returns the live conversion segments. The slice aliases
// the internal storage.
func (s *Segments) ConversionSegments() []Segment {
	return s.segments[s.HistorySize():]
}

// HistorySegments returns the committed history segments. The slice aliases
// the internal storage.
func (s *Segments) HistorySegments() []Segment {
	return s.segments[:s.HistorySize()]
}

// AddSegment appends a conversion segment and returns it.
func (s *Segments) AddSegment(seg Segment) *Segment {
	s.segments = append(s.segments, seg)
	return &s.segments[len(s.segments)-1]
}

// ReplaceConversionSegments swaps the conversion part for segs.
func (s *Segments) ReplaceConversionSegments(segs []Segment) {
	s.ClearConversionSegments()
	s.segments = append(s.segments, segs...)
}

// InsertConversionSegment inserts seg before conversion segment i. An index
// equal to ConversionSize appends.
func (s *Segments) InsertConversionSegment(i int, seg Segment) *Segment {
	at := s.HistorySize() + i
	if i < 0 || at > len(s.segments) {
		return nil
	}
	s.segments = append(s.segments, Segment{})
	copy(s.segments[at+1:], s.segments[at:])
	s.segments[at] = seg
	return &s.segments[at]
}

// ClearConversionSegments drops every non-history segment.
func (s *Segments) ClearConversionSegments() {
	s.segments = s.segments[:s.HistorySize()]
}

// ClearHistorySegments drops the committed context.
func (s *Segments) ClearHistorySegments() {
	h := s.HistorySize()
	s.segments = append([]Segment(nil), s.segments[h:]...)
}

// Clear drops every segment.
func (s *Segments) Clear() {
	s.segments = nil
}

// HistoryText concatenates the top candidate of each history segment.
func (s *Segments) HistoryText() string {
	var b strings.Builder
	for _, seg := range s.HistorySegments() {
		if len(seg.Candidates) == 0 {
			break
		}
		b.WriteString(seg.Candidates[0].Value)
	}
	return b.String()
}

// FixConversionToHistory turns the committed conversion segments into
// history, keeping at most MaxHistorySize history segments.
func (s *Segments) FixConversionToHistory() {
	for i := range s.segments {
		s.segments[i].Type = History
	}
	if s.MaxHistorySize > 0 && len(s.segments) > s.MaxHistorySize {
		s.segments = append([]Segment(nil), s.segments[len(s.segments)-s.MaxHistorySize:]...)
	}
}

// Clone returns a deep copy of the segments.
func (s *Segments) Clone() *Segments {
	out := &Segments{MaxHistorySize: s.MaxHistorySize}
	if s.segments != nil {
		out.segments = make([]Segment, len(s.segments))
		for i, seg := range s.segments {
			out.segments[i] = seg.Clone()
		}
	}
	return out
}

// Equal reports whether two segment lists hold the same keys, types and
// candidate values in the same order.
func (s *Segments) Equal(o *Segments) bool {
	if s.Len() != o.Len() {
		return false
	}
	for i := range s.segments {
		a, b := &s.segments[i], &o.segments[i]
		if a.Key != b.Key || a.Type != b.Type ||
			len(a.Candidates) != len(b.Candidates) ||
			len(a.MetaCandidates) != len(b.MetaCandidates) {
			return false
		}
		for j := range a.Candidates {
			if a.Candidates[j].Value != b.Candidates[j].Value {
				return false
			}
		}
		for j := range a.MetaCandidates {
			if a.MetaCandidates[j].Value != b.MetaCandidates[j].Value {
				return false
			}
		}
	}
	return true
}
