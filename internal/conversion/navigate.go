package conversion

import (
	"henkan/internal/candidates"
	"henkan/internal/composer"
	"henkan/internal/converter"
	"henkan/internal/segment"
)

// t13nAttributes renders each transliteration slot in the candidate list.
var t13nAttributes = [segment.NumTransliterationTypes]candidates.Attributes{
	segment.Hiragana:             candidates.Hiragana,
	segment.FullKatakana:         candidates.FullWidth | candidates.Katakana,
	segment.HalfKatakana:         candidates.HalfWidth | candidates.Katakana,
	segment.HalfASCII:            candidates.HalfWidth | candidates.ASCII,
	segment.HalfASCIIUpper:       candidates.HalfWidth | candidates.ASCII | candidates.Upper,
	segment.HalfASCIILower:       candidates.HalfWidth | candidates.ASCII | candidates.Lower,
	segment.HalfASCIICapitalized: candidates.HalfWidth | candidates.ASCII | candidates.Capitalized,
	segment.FullASCII:            candidates.FullWidth | candidates.ASCII,
	segment.FullASCIIUpper:       candidates.FullWidth | candidates.ASCII | candidates.Upper,
	segment.FullASCIILower:       candidates.FullWidth | candidates.ASCII | candidates.Lower,
	segment.FullASCIICapitalized: candidates.FullWidth | candidates.ASCII | candidates.Capitalized,
}

func (s *Session) updateCandidateList() {
	s.list.Clear()
	s.list.SetPageSize(s.cfg.Request.PageSize())
	s.appendCandidateList()
}

// appendCandidateList adds the candidates of the focused segment that the
// list does not show yet. Meta candidates are only added to an empty list,
// which keeps a rebuild from growing a second transliteration group.
func (s *Session) appendCandidateList() {
	seg := s.segments.ConversionSegment(s.segmentIndex)
	if seg == nil {
		return
	}
	wasEmpty := s.list.Size() == 0

	for id := s.list.NextAvailableID(); id < len(seg.Candidates); id++ {
		s.list.AddCandidate(id)
		if seg.Candidates[id].Attributes.Has(segment.SpellingCorrection) {
			s.listVisible = true
		}
	}

	switch s.requestType {
	case converter.Suggestion, converter.PartialSuggestion, converter.PartialPrediction:
		s.list.SetFocused(false)
	default:
		s.list.SetFocused(true)
	}

	if !wasEmpty || len(seg.MetaCandidates) == 0 || degenerateMeta(seg) {
		return
	}
	target := s.list
	if s.cfg.Conversion.UseCascadingWindow {
		target = s.list.AllocateSubList(false)
		target.SetFocused(true)
		target.SetName(transliterationListName)
	}
	for i := range seg.MetaCandidates {
		attrs := candidates.NoAttributes
		if i < len(t13nAttributes) {
			attrs = t13nAttributes[i]
		}
		target.AddCandidateWithAttributes(segment.TransliterationType(i).ID(), attrs)
	}
}

// degenerateMeta reports whether every transliteration equals the top
// candidate, in which case the group adds nothing.
func degenerateMeta(seg *segment.Segment) bool {
	if len(seg.Candidates) == 0 {
		return false
	}
	top := seg.Candidates[0].Value
	for _, m := range seg.MetaCandidates {
		if m.Value != top {
			return false
		}
	}
	return true
}

func (s *Session) initSelectedIndices() {
	s.selected = make([]int, s.segments.ConversionSize())
}

// updateSelectedIndex records the focused entry of the list for usage
// statistics. A focus inside the transliteration group is stored as -(k+1).
func (s *Session) updateSelectedIndex() {
	e := s.list.FocusedEntry()
	if e == nil {
		return
	}
	index := s.list.FocusedIndex()
	if e.HasSubList() {
		index = -(e.SubList().FocusedIndex() + 1)
	}
	pos := s.segmentIndex
	if s.checkState(Prediction | Suggestion) {
		pos = 0
	}
	if pos < len(s.selected) {
		s.selected[pos] = index
	}
}

// candidateIndexForConverter returns the candidate id of conversion segment
// i to hand to the backend. Only the focused segment can have moved off
// its top candidate.
func (s *Session) candidateIndexForConverter(i int) int {
	if i != s.segmentIndex {
		return 0
	}
	return s.list.FocusedID()
}

func (s *Session) selectedCandidate(i int) *segment.Candidate {
	seg := s.segments.ConversionSegment(i)
	if seg == nil {
		return nil
	}
	return seg.Candidate(s.candidateIndexForConverter(i))
}

func (s *Session) segmentFocus() {
	if !s.conv.FocusSegmentValue(s.segments, s.segmentIndex, s.candidateIndexForConverter(s.segmentIndex)) {
		s.log.Debug("focus declined", "segment", s.segmentIndex)
	}
}

func (s *Session) segmentFix() {
	if !s.conv.CommitSegmentValue(s.segments, s.segmentIndex, s.candidateIndexForConverter(s.segmentIndex)) {
		s.log.Warn("segment value not fixed", "segment", s.segmentIndex)
	}
}

// CandidateNext focuses the next candidate, fetching more predictions when
// the end of reused suggestions is reached.
func (s *Session) CandidateNext(c composer.Composer) {
	if !s.checkState(Prediction | Conversion) {
		return
	}
	s.resetResult()
	s.maybeExpandPrediction(c)
	s.list.MoveNext()
	s.listVisible = true
	s.updateSelectedIndex()
	s.segmentFocus()
}

// CandidateNextPage focuses the first candidate of the next page.
func (s *Session) CandidateNextPage(c composer.Composer) {
	if !s.checkState(Prediction | Conversion) {
		return
	}
	s.resetResult()
	s.maybeExpandPrediction(c)
	s.list.MoveNextPage()
	s.listVisible = true
	s.updateSelectedIndex()
	s.segmentFocus()
}

// CandidatePrev focuses the previous candidate.
func (s *Session) CandidatePrev() {
	if !s.checkState(Prediction | Conversion) {
		return
	}
	s.resetResult()
	s.list.MovePrev()
	s.listVisible = true
	s.updateSelectedIndex()
	s.segmentFocus()
}

// CandidatePrevPage focuses the first candidate of the previous page.
func (s *Session) CandidatePrevPage() {
	if !s.checkState(Prediction | Conversion) {
		return
	}
	s.resetResult()
	s.list.MovePrevPage()
	s.listVisible = true
	s.updateSelectedIndex()
	s.segmentFocus()
}

// CandidateMoveToID focuses candidate id. From SUGGESTION the session moves
// to PREDICTION first.
func (s *Session) CandidateMoveToID(id int, c composer.Composer) bool {
	if s.state == Suggestion && !s.Predict(c) {
		return false
	}
	if !s.checkState(Prediction | Conversion) {
		return false
	}
	s.resetResult()
	if !s.list.MoveToID(id) {
		return false
	}
	s.updateSelectedIndex()
	s.segmentFocus()
	return true
}

// CandidateMoveToPageIndex focuses the index-th entry of the focused page.
func (s *Session) CandidateMoveToPageIndex(index int) bool {
	if !s.checkState(Prediction | Conversion) {
		return false
	}
	s.resetResult()
	if !s.list.MoveToPageIndex(index) {
		return false
	}
	s.listVisible = true
	s.updateSelectedIndex()
	s.segmentFocus()
	return true
}

// CandidateMoveToShortcut focuses the entry labelled r. It only applies
// while the candidate window is shown.
func (s *Session) CandidateMoveToShortcut(r rune) bool {
	if !s.listVisible {
		return false
	}
	keys := s.cfg.Conversion.Shortcuts()
	if keys == "" {
		return false
	}
	index, ok := s.list.PageIndexForShortcut(keys, r)
	if !ok {
		return false
	}
	return s.CandidateMoveToPageIndex(index)
}

func (s *Session) segmentFocusInternal(index int) {
	s.listVisible = false
	if s.state != Conversion {
		return
	}
	s.resetResult()
	if index == s.segmentIndex {
		return
	}
	s.segmentFix()
	s.segmentIndex = index
	s.updateCandidateList()
}

// SegmentFocusRight focuses the next segment, wrapping to the first.
func (s *Session) SegmentFocusRight() {
	if s.segmentIndex+1 >= s.segments.ConversionSize() {
		s.SegmentFocusLeftEdge()
		return
	}
	s.segmentFocusInternal(s.segmentIndex + 1)
}

// SegmentFocusLeft focuses the previous segment, wrapping to the last.
func (s *Session) SegmentFocusLeft() {
	if s.segmentIndex <= 0 {
		s.SegmentFocusLast()
		return
	}
	s.segmentFocusInternal(s.segmentIndex - 1)
}

// SegmentFocusLeftEdge focuses the first segment.
func (s *Session) SegmentFocusLeftEdge() {
	s.segmentFocusInternal(0)
}

// SegmentFocusLast focuses the last segment.
func (s *Session) SegmentFocusLast() {
	if n := s.segments.ConversionSize(); n > 0 {
		s.segmentFocusInternal(n - 1)
	}
}

// SegmentWidthExpand grows the focused segment by one rune.
func (s *Session) SegmentWidthExpand(c composer.Composer) {
	s.resizeSegmentWidth(c, 1)
}

// SegmentWidthShrink shrinks the focused segment by one rune.
func (s *Session) SegmentWidthShrink(c composer.Composer) {
	s.resizeSegmentWidth(c, -1)
}

func (s *Session) resizeSegmentWidth(c composer.Composer, delta int) {
	s.listVisible = false
	if s.state != Conversion {
		return
	}
	s.resetResult()

	req := s.newRequest(converter.Conversion, c, s.prefs)
	if !s.conv.ResizeSegment(s.segments, req, s.segmentIndex, delta) {
		s.log.Debug("resize declined", "segment", s.segmentIndex, "delta", delta)
		return
	}
	s.afterResize()
}

// afterResize rebuilds the list and forgets the selections of the focused
// segment and everything after it.
func (s *Session) afterResize() {
	s.updateCandidateList()
	n := s.segments.ConversionSize()
	selected := make([]int, n)
	copy(selected, s.selected[:min(len(s.selected), s.segmentIndex+1)])
	s.selected = selected
	s.updateSelectedIndex()
}
