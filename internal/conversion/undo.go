package conversion

import (
	"unicode/utf8"

	"henkan/internal/candidates"
	"henkan/internal/composer"
	"henkan/internal/converter"
	"henkan/internal/segment"
)

// undoContext is everything needed to return to the moment before a
// commit.
type undoContext struct {
	state               State
	segments            *segment.Segments
	list                *candidates.List
	listVisible         bool
	segmentIndex        int
	selected            []int
	previousSuggestions segment.Segment
	predictionQuery     string
	expanded            bool
	requestType         converter.RequestType
	composer            composer.Editor

	// committed is filled once the commit produced its result.
	committed string
}

func (s *Session) snapshot(c composer.Composer) *undoContext {
	return &undoContext{
		state:               s.state,
		segments:            s.segments.Clone(),
		list:                s.list.Clone(),
		listVisible:         s.listVisible,
		segmentIndex:        s.segmentIndex,
		selected:            append([]int(nil), s.selected...),
		previousSuggestions: s.previousSuggestions.Clone(),
		predictionQuery:     s.predictionQuery,
		expanded:            s.expanded,
		requestType:         s.requestType,
		composer:            c.Clone(),
	}
}

func (s *Session) saveUndo(u *undoContext) {
	u.committed = s.result.Value
	s.undo = u
}

func (u *undoContext) clone() *undoContext {
	out := *u
	out.segments = u.segments.Clone()
	out.list = u.list.Clone()
	out.selected = append([]int(nil), u.selected...)
	out.previousSuggestions = u.previousSuggestions.Clone()
	if u.composer != nil {
		out.composer = u.composer.Clone()
	}
	return &out
}

// CanUndo reports whether Undo would do anything.
func (s *Session) CanUndo() bool {
	return s.undo != nil && s.capability&DeletePrecedingText != 0
}

// ClearUndo forgets the last commit.
func (s *Session) ClearUndo() {
	s.undo = nil
}

// Undo rolls back the last commit: the backend forgets what it learned, the
// session returns to its state before the commit and the output asks the
// client to delete the committed text. It returns the composition to
// restore. Without the DeletePrecedingText capability nothing happens and
// the snapshot is kept.
func (s *Session) Undo() (composer.Editor, bool) {
	if s.capability&DeletePrecedingText == 0 {
		s.log.Debug("undo needs the delete preceding text capability")
		return nil, false
	}
	u := s.undo
	if u == nil {
		return nil, false
	}
	s.undo = nil

	s.conv.RevertConversion(s.segments)

	s.state = u.state
	s.segments = u.segments
	s.list = u.list
	s.listVisible = u.listVisible
	s.segmentIndex = u.segmentIndex
	s.selected = u.selected
	s.previousSuggestions = u.previousSuggestions
	s.predictionQuery = u.predictionQuery
	s.expanded = u.expanded
	s.requestType = u.requestType
	s.resetResult()

	n := utf8.RuneCountInString(u.committed)
	s.deletion = &Deletion{Offset: -n, Length: n}
	return u.composer, true
}
