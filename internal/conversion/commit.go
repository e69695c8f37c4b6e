package conversion

import (
	"strings"
	"unicode/utf8"

	"henkan/internal/composer"
	"henkan/internal/converter"
	"henkan/internal/segment"
	"henkan/internal/usagestats"
)

// maybePerformCommand runs the command of the first selected command
// candidate among conversion segments [index, index+size).
func (s *Session) maybePerformCommand(index, size int) bool {
	for i := index; i < index+size; i++ {
		cand := s.selectedCandidate(i)
		if cand == nil || !cand.IsCommand() {
			continue
		}
		s.performCommand(cand.Command)
		return true
	}
	return false
}

// performCommand records a config copy with the command applied. The
// session keeps using its own config until the client sends it back.
func (s *Session) performCommand(cmd segment.Command) {
	cfg := s.cfg.Clone()
	switch cmd {
	case segment.EnableIncognitoMode:
		cfg.Conversion.IncognitoMode = true
	case segment.DisableIncognitoMode:
		cfg.Conversion.IncognitoMode = false
	case segment.EnablePresentationMode:
		cfg.Conversion.PresentationMode = true
	case segment.DisablePresentationMode:
		cfg.Conversion.PresentationMode = false
	case segment.DefaultCommand:
		return
	default:
		s.log.Warn("unknown command candidate", "command", cmd.String())
		return
	}
	s.log.Info("command candidate performed", "command", cmd.String())
	s.updatedConfig = cfg
}

// preeditOf concatenates the reading of conversion segments [index,
// index+size). Suggestions may cover different keys per candidate, so their
// content key is used instead of the segment key.
func (s *Session) preeditOf(index, size int) string {
	var b strings.Builder
	for i := index; i < index+size; i++ {
		if s.checkState(Suggestion | Prediction) {
			if cand := s.selectedCandidate(i); cand != nil {
				b.WriteString(cand.ContentKey)
			}
			continue
		}
		b.WriteString(s.segments.ConversionSegment(i).Key)
	}
	return b.String()
}

func (s *Session) conversionOf(index, size int) string {
	var b strings.Builder
	for i := index; i < index+size; i++ {
		if cand := s.selectedCandidate(i); cand != nil {
			b.WriteString(cand.Value)
		}
	}
	return b.String()
}

// updateResult fills the result from conversion segments [index,
// index+size) and returns the number of composition runes they cover. It
// fails without a result when a command candidate is selected.
func (s *Session) updateResult(index, size int) (int, bool) {
	if s.maybePerformCommand(index, size) {
		return 0, false
	}
	key := s.preeditOf(index, size)
	value := s.conversionOf(index, size)
	s.result = Result{
		Type:         ResultString,
		Key:          key,
		Value:        value,
		CursorOffset: cursorOffset(value),
	}
	return utf8.RuneCountInString(key), true
}

func (s *Session) fillPreeditResult(key, value string) {
	s.result = Result{
		Type:         ResultString,
		Key:          key,
		Value:        value,
		CursorOffset: cursorOffset(value),
	}
}

// Commit submits every conversion segment with its focused candidate. It
// reports whether text was produced.
func (s *Session) Commit(c composer.Composer) bool {
	if !s.checkState(Prediction | Conversion) {
		return false
	}
	snap := s.snapshot(c)
	s.resetResult()

	n := s.segments.ConversionSize()
	if _, ok := s.updateResult(0, n); !ok {
		s.cancel()
		return false
	}
	for i := 0; i < n; i++ {
		if !s.conv.CommitSegmentValue(s.segments, i, s.candidateIndexForConverter(i)) {
			s.log.Warn("segment value not committed", "segment", i)
		}
	}
	s.commitUsageStats(s.state, n)
	s.conv.FinishConversion(s.newRequest(converter.Conversion, c, s.prefs), s.segments)
	s.resetState()
	s.saveUndo(snap)
	return true
}

// CommitPreedit submits the raw composition. It works in any state.
func (s *Session) CommitPreedit(c composer.Composer) bool {
	value := c.StringForSubmission()
	if value == "" {
		return false
	}
	snap := s.snapshot(c)
	key := c.QueryForConversion()
	s.fillPreeditResult(key, value)

	s.segments.ClearConversionSegments()
	s.segments.AddSegment(segment.Segment{
		Key:        key,
		Type:       segment.FixedValue,
		Candidates: []segment.Candidate{segment.NewCandidate(key, value)},
	})
	s.commitUsageStats(Composition, 0)
	s.conv.FinishConversion(s.newRequest(converter.Conversion, c, s.prefs), s.segments)
	s.resetState()
	s.saveUndo(snap)
	return true
}

// CommitHead submits the first n runes of the composition without touching
// the segments. It returns the number of runes the caller should remove
// from the composer.
func (s *Session) CommitHead(n int, c composer.Composer) int {
	runes := []rune(c.StringForSubmission())
	consumed := min(max(n, 0), len(runes))
	if consumed == 0 {
		return 0
	}
	snap := s.snapshot(c)
	head := string(runes[:consumed])
	s.fillPreeditResult(head, head)
	s.commitUsageStats(Composition, 0)
	s.saveUndo(snap)
	return consumed
}

// CommitSuggestionByIndex submits the index-th entry of the suggestion
// list. consumed is the number of composition runes the candidate covers;
// it is less than the composition length for partial suggestions.
func (s *Session) CommitSuggestionByIndex(index int, c composer.Composer) (consumed int, ok bool) {
	if s.state != Suggestion {
		return 0, false
	}
	if index < 0 || index >= s.list.Size() {
		s.log.Error("suggestion index out of range", "index", index, "size", s.list.Size())
		return 0, false
	}
	e := s.list.Entry(index)
	if e.HasSubList() {
		return 0, false
	}
	snap := s.snapshot(c)
	s.list.MoveToID(e.ID())
	s.updateSelectedIndex()
	return s.commitSuggestion(c, snap)
}

// CommitSuggestionByID submits suggestion candidate id.
func (s *Session) CommitSuggestionByID(id int, c composer.Composer) (consumed int, ok bool) {
	if s.state != Suggestion {
		return 0, false
	}
	if !s.list.Contains(id) {
		s.log.Error("suggestion id not found", "id", id)
		return 0, false
	}
	snap := s.snapshot(c)
	s.list.MoveToID(id)
	s.updateSelectedIndex()
	return s.commitSuggestion(c, snap)
}

func (s *Session) commitSuggestion(c composer.Composer, snap *undoContext) (int, bool) {
	s.resetResult()
	if _, ok := s.updateResult(0, 1); !ok {
		s.cancel()
		return 0, false
	}

	id := s.list.FocusedID()
	cand := s.segments.ConversionSegment(0).Candidate(id)
	consumed := c.Length()
	if cand != nil && cand.Attributes.Has(segment.PartiallyKeyConsumed) {
		consumed = cand.ConsumedKeySize
	}

	if consumed < c.Length() {
		runes := []rune(c.Preedit())
		head, rest := string(runes[:consumed]), string(runes[consumed:])
		s.result.Key = head
		if !s.conv.CommitPartialSuggestionSegmentValue(s.segments, 0, id, head, rest) {
			s.log.Warn("partial suggestion not committed", "id", id)
		}
		s.commitUsageStats(Suggestion, 1)
		s.initSelectedIndices()
	} else {
		if !s.conv.CommitSegmentValue(s.segments, 0, id) {
			s.log.Warn("suggestion not committed", "id", id)
		}
		s.commitUsageStats(Suggestion, 1)
		s.conv.FinishConversion(s.newRequest(converter.Suggestion, c, s.prefs), s.segments)
		s.resetState()
	}
	s.saveUndo(snap)
	return consumed, true
}

// CommitCandidate submits candidate id. In CONVERSION and PREDICTION the
// segments up to the focused one are committed; in SUGGESTION the
// suggestion is.
func (s *Session) CommitCandidate(id int, c composer.Composer) (consumed int, ok bool) {
	switch s.state {
	case Conversion, Prediction:
		if !s.CandidateMoveToID(id, c) {
			return 0, false
		}
		return s.CommitHeadToFocusedSegments(c)
	case Suggestion:
		return s.CommitSuggestionByID(id, c)
	default:
		return 0, false
	}
}

// CommitFirstSegment submits the first conversion segment and keeps
// converting the rest.
func (s *Session) CommitFirstSegment(c composer.Composer) (consumed int, ok bool) {
	return s.commitSegments(c, 1)
}

// CommitSegment is the dispatcher's name for CommitFirstSegment.
func (s *Session) CommitSegment(c composer.Composer) (consumed int, ok bool) {
	return s.CommitFirstSegment(c)
}

// CommitHeadToFocusedSegments submits every segment up to and including
// the focused one.
func (s *Session) CommitHeadToFocusedSegments(c composer.Composer) (consumed int, ok bool) {
	return s.commitSegments(c, s.segmentIndex+1)
}

func (s *Session) commitSegments(c composer.Composer, n int) (int, bool) {
	if !s.checkState(Prediction|Conversion) || n <= 0 {
		return 0, false
	}
	if n >= s.segments.ConversionSize() {
		if !s.Commit(c) {
			return 0, false
		}
		return c.Length(), true
	}

	snap := s.snapshot(c)
	s.resetResult()
	s.listVisible = false
	consumed, ok := s.updateResult(0, n)
	if !ok {
		s.cancel()
		return 0, false
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = s.candidateIndexForConverter(i)
	}
	if !s.conv.CommitSegments(s.segments, ids) {
		s.log.Warn("segments not committed", "count", n)
	}
	s.commitUsageStats(s.state, n)

	if s.segmentIndex > n {
		s.segmentIndex -= n
	} else {
		s.segmentIndex = 0
	}
	s.updateCandidateList()
	s.saveUndo(snap)
	return consumed, true
}

// commitUsageStats counts a commit made from state and the selected
// indices of the first n conversion segments, which are then forgotten.
func (s *Session) commitUsageStats(state State, n int) {
	var source string
	switch state {
	case Composition:
		source = "Composition"
	case Suggestion, Prediction:
		source = "Prediction"
	case Conversion:
		source = "Conversion"
	default:
		return
	}
	s.stats.IncrementCount(usagestats.Commit)
	s.stats.IncrementCount(usagestats.CommitFrom(source))
	if state == Composition {
		return
	}

	n = min(n, len(s.selected))
	for _, index := range s.selected[:n] {
		s.stats.IncrementCount(usagestats.CandidateName(source, index))
	}
	s.selected = s.selected[n:]
}
