package conversion

import (
	"unicode/utf8"

	"henkan/internal/candidates"
	"henkan/internal/composer"
	"henkan/internal/config"
	"henkan/internal/segment"
)

// Output is the snapshot of a session handed to the client.
type Output struct {
	State                   string             `json:"state"`
	Preedit                 *Preedit           `json:"preedit,omitempty"`
	Candidates              *CandidateWindow   `json:"candidates,omitempty"`
	AllCandidateWords       *CandidateWordList `json:"all_candidate_words,omitempty"`
	IncognitoCandidateWords *CandidateWordList `json:"incognito_candidate_words,omitempty"`
	Result                  *OutputResult      `json:"result,omitempty"`
	DeletionRange           *Deletion          `json:"deletion_range,omitempty"`
	// SelectedIndices holds the candidate index chosen per conversion segment.
	SelectedIndices []int `json:"selected_indices,omitempty"`
	// Config is set after a command candidate ran; the client applies it.
	Config *config.Config `json:"config,omitempty"`
}

// Preedit is the composition or conversion shown inline.
type Preedit struct {
	Segments            []PreeditSegment `json:"segments"`
	Cursor              int              `json:"cursor"`
	HighlightedPosition *int             `json:"highlighted_position,omitempty"`
}

// Preedit segment annotations.
const (
	AnnotationUnderline = "underline"
	AnnotationHighlight = "highlight"
)

type PreeditSegment struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	ValueLength int    `json:"value_length"`
	Annotation  string `json:"annotation"`
}

// CandidateWindow is one page of the candidate list.
type CandidateWindow struct {
	Size          int               `json:"size"`
	Position      int               `json:"position"`
	FocusedIndex  *int              `json:"focused_index,omitempty"`
	PageSize      int               `json:"page_size"`
	Category      string            `json:"category"`
	Name          string            `json:"name,omitempty"`
	Candidates    []WindowCandidate `json:"candidates"`
	SubCandidates *CandidateWindow  `json:"subcandidates,omitempty"`
}

type WindowCandidate struct {
	Index       int    `json:"index"`
	ID          int    `json:"id"`
	Value       string `json:"value"`
	Shortcut    string `json:"shortcut,omitempty"`
	Description string `json:"description,omitempty"`
}

// CandidateWordList lists every candidate of the focused segment in
// display order, regardless of paging.
type CandidateWordList struct {
	FocusedIndex *int            `json:"focused_index,omitempty"`
	Category     string          `json:"category"`
	Candidates   []CandidateWord `json:"candidates"`
}

type CandidateWord struct {
	Index int    `json:"index"`
	ID    int    `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type OutputResult struct {
	Type         string `json:"type"`
	Value        string `json:"value"`
	Key          string `json:"key"`
	CursorOffset int    `json:"cursor_offset,omitempty"`
}

func (s *Session) category() string {
	switch s.state {
	case Suggestion:
		return "suggestion"
	case Prediction:
		return "prediction"
	default:
		return "conversion"
	}
}

// Output renders the session without consuming anything.
func (s *Session) Output(c composer.Composer) *Output {
	out := &Output{State: s.state.String()}

	switch s.state {
	case Composition, Suggestion:
		if c != nil && !c.Empty() {
			out.Preedit = compositionPreedit(c)
		}
	default:
		out.Preedit = s.conversionPreedit()
	}

	if s.IsActive() && s.list.Size() > 0 {
		if s.listVisible {
			out.Candidates = s.candidateWindow(s.list, s.preeditPosition())
		}
		out.AllCandidateWords = s.candidateWords(s.segments.ConversionSegment(s.segmentIndex), s.list)
		out.SelectedIndices = s.SelectedIndices()
	}
	if s.incognitoSegments.ConversionSize() > 0 {
		seg := s.incognitoSegments.ConversionSegment(0)
		words := &CandidateWordList{Category: "suggestion"}
		for i, cand := range seg.Candidates {
			words.Candidates = append(words.Candidates, CandidateWord{Index: i, ID: i, Key: cand.Key, Value: cand.Value})
		}
		out.IncognitoCandidateWords = words
	}

	if !s.result.IsZero() {
		out.Result = &OutputResult{
			Type:         "string",
			Value:        s.result.Value,
			Key:          s.result.Key,
			CursorOffset: s.result.CursorOffset,
		}
	}
	if s.deletion != nil {
		d := *s.deletion
		out.DeletionRange = &d
	}
	if s.updatedConfig != nil {
		out.Config = s.updatedConfig.Clone()
	}
	return out
}

// PopOutput renders the session and consumes the result, the deletion
// range and the pending config change.
func (s *Session) PopOutput(c composer.Composer) *Output {
	out := s.Output(c)
	s.resetResult()
	s.deletion = nil
	s.updatedConfig = nil
	return out
}

func compositionPreedit(c composer.Composer) *Preedit {
	value := c.Preedit()
	return &Preedit{
		Segments: []PreeditSegment{{
			Key:         c.QueryForConversion(),
			Value:       value,
			ValueLength: utf8.RuneCountInString(value),
			Annotation:  AnnotationUnderline,
		}},
		Cursor: c.Cursor(),
	}
}

func (s *Session) conversionPreedit() *Preedit {
	p := &Preedit{}
	n := s.segments.ConversionSize()
	if s.state == Prediction {
		n = min(n, 1)
	}
	pos := 0
	for i := 0; i < n; i++ {
		seg := s.segments.ConversionSegment(i)
		value := seg.Key
		if cand := s.selectedCandidate(i); cand != nil {
			value = cand.Value
		}
		annotation := AnnotationUnderline
		if i == s.segmentIndex {
			annotation = AnnotationHighlight
			hp := pos
			p.HighlightedPosition = &hp
		}
		length := utf8.RuneCountInString(value)
		p.Segments = append(p.Segments, PreeditSegment{
			Key:         seg.Key,
			Value:       value,
			ValueLength: length,
			Annotation:  annotation,
		})
		pos += length
	}
	p.Cursor = pos
	return p
}

// preeditPosition is the rune offset of the focused segment in the preedit.
func (s *Session) preeditPosition() int {
	if s.state != Conversion {
		return 0
	}
	pos := 0
	for i := 0; i < s.segmentIndex; i++ {
		if cand := s.selectedCandidate(i); cand != nil {
			pos += utf8.RuneCountInString(cand.Value)
		}
	}
	return pos
}

func (s *Session) candidateWindow(l *candidates.List, position int) *CandidateWindow {
	seg := s.segments.ConversionSegment(s.segmentIndex)
	w := &CandidateWindow{
		Size:     l.Size(),
		Position: position,
		PageSize: l.PageSize(),
		Category: s.category(),
		Name:     l.Name(),
	}
	if l.Size() == 0 || seg == nil {
		return w
	}
	if l.Focused() {
		fi := l.FocusedIndex()
		w.FocusedIndex = &fi
	}

	begin, end, ok := l.PageRange(l.FocusedIndex())
	if !ok {
		return w
	}
	var shortcuts []string
	if keys := s.cfg.Conversion.Shortcuts(); keys != "" && l.Focused() {
		shortcuts = l.PageShortcuts(keys)
	}
	for i := begin; i <= end; i++ {
		e := l.Entry(i)
		if e.HasSubList() {
			sub := e.SubList()
			w.Candidates = append(w.Candidates, WindowCandidate{Index: i, Value: sub.Name()})
			if l.Focused() && i == l.FocusedIndex() {
				w.SubCandidates = s.candidateWindow(sub, position)
			}
			continue
		}
		wc := WindowCandidate{Index: i, ID: e.ID(), Description: describe(e.Attributes())}
		if cand := seg.Candidate(e.ID()); cand != nil {
			wc.Value = cand.Value
		}
		if i-begin < len(shortcuts) {
			wc.Shortcut = shortcuts[i-begin]
		}
		w.Candidates = append(w.Candidates, wc)
	}
	return w
}

func (s *Session) candidateWords(seg *segment.Segment, l *candidates.List) *CandidateWordList {
	words := &CandidateWordList{Category: s.category()}
	if seg == nil {
		return words
	}
	focused := l.FocusedID()
	for i, id := range l.IDs() {
		cand := seg.Candidate(id)
		if cand == nil {
			continue
		}
		if l.Focused() && id == focused && words.FocusedIndex == nil {
			fi := i
			words.FocusedIndex = &fi
		}
		words.Candidates = append(words.Candidates, CandidateWord{Index: i, ID: id, Key: cand.Key, Value: cand.Value})
	}
	return words
}

// describe labels transliteration entries by script and width.
func describe(a candidates.Attributes) string {
	switch {
	case a&candidates.Hiragana != 0:
		return "ひらがな"
	case a&candidates.Katakana != 0 && a&candidates.HalfWidth != 0:
		return "[半] カタカナ"
	case a&candidates.Katakana != 0:
		return "[全] カタカナ"
	case a&candidates.ASCII != 0 && a&candidates.HalfWidth != 0:
		return "[半] 英数"
	case a&candidates.ASCII != 0:
		return "[全] 英数"
	default:
		return ""
	}
}
