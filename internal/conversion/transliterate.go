package conversion

import (
	"unicode"

	"henkan/internal/candidates"
	"henkan/internal/composer"
	"henkan/internal/converter"
	"henkan/internal/segment"
)

// convertWhole converts the composition as a single segment.
func (s *Session) convertWhole(c composer.Composer) bool {
	if !s.Convert(c) {
		s.log.Error("conversion failed", "composition", c.Preedit())
		return false
	}
	if s.segments.ConversionSize() == 1 {
		return true
	}
	total := 0
	for _, seg := range s.segments.ConversionSegments() {
		total += len([]rune(seg.Key))
	}
	req := s.newRequest(converter.Conversion, c, s.prefs)
	if s.conv.ResizeSegmentBoundaries(s.segments, req, 0, []int{total}) {
		s.updateCandidateList()
		s.initSelectedIndices()
	}
	return true
}

// ConvertToTransliteration shows the composition in transliteration t.
// Repeating it in CONVERSION cycles through the variants sharing the script
// and width of t.
func (s *Session) ConvertToTransliteration(c composer.Composer, t segment.TransliterationType) bool {
	if s.state == Prediction {
		s.cancel()
	}
	if t < 0 || t >= segment.NumTransliterationTypes {
		return false
	}
	query := t13nAttributes[t] & (candidates.HalfWidth | candidates.FullWidth |
		candidates.ASCII | candidates.Hiragana | candidates.Katakana)

	if s.checkState(Composition | Suggestion) {
		if !s.convertWhole(c) {
			return false
		}
		s.list.MoveToAttributes(query)
	} else {
		current := candidates.NoAttributes
		if e := s.list.DeepestFocused(); e != nil {
			current = e.Attributes()
		}
		// Switching width keeps the case variant.
		if query&current&candidates.ASCII != 0 &&
			(query&candidates.HalfWidth != 0 && current&candidates.FullWidth != 0 ||
				query&candidates.FullWidth != 0 && current&candidates.HalfWidth != 0) {
			query |= current & (candidates.Upper | candidates.Lower | candidates.Capitalized)
		}
		s.list.MoveNextAttributes(query)
	}
	s.afterTransliteration()
	return true
}

// ConvertToHalfWidth picks half-width katakana for Japanese text and
// half-width ASCII otherwise.
func (s *Session) ConvertToHalfWidth(c composer.Composer) bool {
	if s.state == Prediction {
		s.cancel()
	}
	var text string
	if s.checkState(Composition | Suggestion) {
		text = c.Preedit()
	} else if cand := s.selectedCandidate(s.segmentIndex); cand != nil {
		text = cand.Value
	}
	if containsJapanese(text) {
		return s.ConvertToTransliteration(c, segment.HalfKatakana)
	}
	return s.ConvertToTransliteration(c, segment.HalfASCII)
}

// SwitchKanaType cycles hiragana, full katakana and half katakana.
func (s *Session) SwitchKanaType(c composer.Composer) bool {
	if s.state == Prediction {
		s.cancel()
	}
	var attrs candidates.Attributes
	if s.checkState(Composition | Suggestion) {
		if !s.convertWhole(c) {
			return false
		}
		attrs = candidates.FullWidth | candidates.Katakana
	} else {
		current := candidates.NoAttributes
		if e := s.list.DeepestFocused(); e != nil {
			current = e.Attributes()
		}
		switch {
		case current&candidates.Hiragana != 0:
			attrs = candidates.FullWidth | candidates.Katakana
		case current&candidates.Katakana != 0 && current&candidates.FullWidth != 0:
			attrs = candidates.HalfWidth | candidates.Katakana
		default:
			attrs = candidates.Hiragana
		}
	}
	s.list.MoveNextAttributes(attrs)
	s.afterTransliteration()
	return true
}

func (s *Session) afterTransliteration() {
	s.listVisible = false
	// Transliterations count as the top candidate.
	if s.segmentIndex < len(s.selected) {
		s.selected[s.segmentIndex] = 0
	}
	s.segmentFocus()
}

var kanaSymbols = map[rune]bool{
	'。': true, '「': true, '」': true, '、': true, '・': true, 'ー': true,
	'゛': true, '゜': true,
}

func containsJapanese(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) || kanaSymbols[r] {
			return true
		}
	}
	return false
}
