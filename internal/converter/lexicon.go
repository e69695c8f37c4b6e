package converter

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"henkan/internal/composer"
	"henkan/internal/logging"
	"henkan/internal/segment"
)

const (
	maxSuggestions = 3
	maxPredictions = 20
)

type command struct {
	value   string
	command segment.Command
}

// Lexicon is an in-memory Converter over a reading table. Segmentation is
// greedy longest match; runs of unknown runes form one segment whose only
// candidates are the reading itself and its katakana form.
//
// A Lexicon is safe for concurrent use.
type Lexicon struct {
	mu sync.Mutex

	readings      map[string][]string
	order         []string
	maxReadingLen int
	reverse       map[string]string
	zeroQuery     map[string][]string
	commands      map[string][]command

	learned     map[string]string
	lastLearned map[string]string

	calls   map[string]int
	failing map[string]bool
}

var _ Converter = (*Lexicon)(nil)

// NewLexicon builds a Lexicon from data.
func NewLexicon(data *Data) (*Lexicon, error) {
	l := &Lexicon{
		readings:  make(map[string][]string),
		reverse:   make(map[string]string),
		zeroQuery: make(map[string][]string),
		commands:  make(map[string][]command),
		learned:   make(map[string]string),
		calls:     make(map[string]int),
		failing:   make(map[string]bool),
	}

	for _, e := range data.Entries {
		if e.Reading == "" {
			return nil, errors.New("lexicon entry without reading")
		}
		if _, ok := l.readings[e.Reading]; !ok {
			l.order = append(l.order, e.Reading)
		}
		l.readings[e.Reading] = append(l.readings[e.Reading], e.Values...)
		l.maxReadingLen = max(l.maxReadingLen, utf8.RuneCountInString(e.Reading))
		for _, v := range e.Values {
			if _, ok := l.reverse[v]; !ok {
				l.reverse[v] = e.Reading
			}
		}
	}
	for _, z := range data.ZeroQuery {
		l.zeroQuery[z.After] = append(l.zeroQuery[z.After], z.Values...)
	}
	for _, c := range data.Commands {
		cmd, err := ParseCommand(c.Command)
		if err != nil {
			return nil, fmt.Errorf("lexicon command for %q: %w", c.Reading, err)
		}
		l.commands[c.Reading] = append(l.commands[c.Reading], command{value: c.Value, command: cmd})
	}
	return l, nil
}

// CallCount returns how often op was invoked.
func (l *Lexicon) CallCount(op string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[op]
}

// ResetCallCounts zeroes every call counter.
func (l *Lexicon) ResetCallCounts() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = make(map[string]int)
}

// SetFailure makes op decline until cleared.
func (l *Lexicon) SetFailure(op string, fail bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failing[op] = fail
}

// Learned returns the value learned for reading, if any.
func (l *Lexicon) Learned(reading string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.learned[reading]
	return v, ok
}

// enter counts a call and reports whether op should proceed. Callers hold mu.
func (l *Lexicon) enter(op string) bool {
	l.calls[op]++
	return !l.failing[op]
}

// split segments key by greedy longest match.
func (l *Lexicon) split(key string) []string {
	runes := []rune(key)
	var parts []string
	unknown := 0
	flush := func(end int) {
		if unknown > 0 {
			parts = append(parts, string(runes[end-unknown:end]))
			unknown = 0
		}
	}
	for i := 0; i < len(runes); {
		matched := 0
		for n := min(l.maxReadingLen, len(runes)-i); n > 0; n-- {
			if _, ok := l.readings[string(runes[i:i+n])]; ok {
				matched = n
				break
			}
		}
		if matched == 0 {
			unknown++
			i++
			continue
		}
		flush(i)
		parts = append(parts, string(runes[i:i+matched]))
		i += matched
	}
	flush(len(runes))
	return parts
}

func (l *Lexicon) rankedValues(req *Request, reading string) []string {
	var values []string
	seen := make(map[string]bool)
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	if !req.Incognito() {
		add(l.learned[reading])
	}
	for _, v := range l.readings[reading] {
		add(v)
	}
	add(reading)
	add(composer.ToKatakana(reading))
	return values
}

func (l *Lexicon) commandCandidates(req *Request, reading string) []segment.Candidate {
	var out []segment.Candidate
	for _, c := range l.commands[reading] {
		if !commandApplies(req, c.command) {
			continue
		}
		cand := segment.NewCandidate(reading, c.value)
		cand.Attributes = segment.CommandCandidate | segment.NoLearning
		cand.Command = c.command
		out = append(out, cand)
	}
	return out
}

// commandApplies offers only the command that changes the current mode.
func commandApplies(req *Request, cmd segment.Command) bool {
	if req.Config == nil {
		return cmd == segment.EnableIncognitoMode || cmd == segment.EnablePresentationMode
	}
	conv := req.Config.Conversion
	switch cmd {
	case segment.EnableIncognitoMode:
		return !conv.IncognitoMode
	case segment.DisableIncognitoMode:
		return conv.IncognitoMode
	case segment.EnablePresentationMode:
		return !conv.PresentationMode
	case segment.DisablePresentationMode:
		return conv.PresentationMode
	default:
		return false
	}
}

func (l *Lexicon) buildSegment(req *Request, reading string, transliterations []string) segment.Segment {
	seg := segment.Segment{Key: reading, Type: segment.Free}
	for _, v := range l.rankedValues(req, reading) {
		seg.Candidates = append(seg.Candidates, segment.NewCandidate(reading, v))
	}
	seg.Candidates = append(seg.Candidates, l.commandCandidates(req, reading)...)

	if transliterations == nil {
		transliterations = composer.Transliterate(reading, reading)
	}
	seg.MetaCandidates = make([]segment.Candidate, len(transliterations))
	for i, t := range transliterations {
		seg.MetaCandidates[i] = segment.NewCandidate(reading, t)
	}
	return seg
}

func (l *Lexicon) buildSegments(req *Request, parts []string, fixed int) []segment.Segment {
	segs := make([]segment.Segment, 0, len(parts))
	for i, p := range parts {
		var tr []string
		if len(parts) == 1 && req.Composer != nil && p == req.Composer.QueryForConversion() {
			tr = req.Composer.Transliterations()
		}
		seg := l.buildSegment(req, p, tr)
		if i < fixed {
			seg.Type = segment.FixedBoundary
		}
		segs = append(segs, seg)
	}
	return segs
}

// StartConversion implements Converter.
func (l *Lexicon) StartConversion(req *Request, segs *segment.Segments) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enter(OpStartConversion) || req.Composer == nil {
		return false
	}
	key := req.Composer.QueryForConversion()
	if key == "" {
		return false
	}
	if req.SkipHistory {
		segs.ClearHistorySegments()
	}
	segs.ReplaceConversionSegments(l.buildSegments(req, l.split(key), 0))
	return true
}

// StartPrediction implements Converter.
func (l *Lexicon) StartPrediction(req *Request, segs *segment.Segments) bool {
	return l.predict(req, segs, OpStartPrediction, maxPredictions)
}

// StartSuggestion implements Converter.
func (l *Lexicon) StartSuggestion(req *Request, segs *segment.Segments) bool {
	return l.predict(req, segs, OpStartSuggestion, maxSuggestions)
}

// StartPartialPrediction implements Converter.
func (l *Lexicon) StartPartialPrediction(req *Request, segs *segment.Segments) bool {
	return l.predict(req, segs, OpStartPartialPrediction, maxPredictions)
}

// StartPartialSuggestion implements Converter.
func (l *Lexicon) StartPartialSuggestion(req *Request, segs *segment.Segments) bool {
	return l.predict(req, segs, OpStartPartialSuggestion, maxSuggestions)
}

func predictionKey(req *Request) string {
	if req.Type.IsPartial() {
		runes := []rune(req.Composer.QueryForConversion())
		return string(runes[:min(req.Composer.Cursor(), len(runes))])
	}
	return req.Composer.QueryForPrediction()
}

func (l *Lexicon) predict(req *Request, segs *segment.Segments, op string, limit int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enter(op) || req.Composer == nil {
		return false
	}

	key := predictionKey(req)
	var cands []segment.Candidate
	if key == "" {
		cands = l.zeroQueryCandidates(segs)
	} else {
		cands = l.prefixCandidates(req, key, limit)
	}
	if req.Type.IsPartial() {
		consumed := utf8.RuneCountInString(key)
		for i := range cands {
			cands[i].Attributes |= segment.PartiallyKeyConsumed
			cands[i].ConsumedKeySize = consumed
		}
	} else if req.CreatePartialCandidates {
		if parts := l.split(key); len(parts) > 1 {
			if values := l.rankedValues(req, parts[0]); len(values) > 0 {
				c := segment.NewCandidate(parts[0], values[0])
				c.Attributes |= segment.PartiallyKeyConsumed
				c.ConsumedKeySize = utf8.RuneCountInString(parts[0])
				cands = append(cands, c)
			}
		}
	}
	if len(cands) == 0 {
		return false
	}

	segs.ReplaceConversionSegments([]segment.Segment{{Key: key, Type: segment.Free, Candidates: cands}})
	return true
}

func (l *Lexicon) zeroQueryCandidates(segs *segment.Segments) []segment.Candidate {
	hist := segs.HistorySegments()
	if len(hist) == 0 || len(hist[len(hist)-1].Candidates) == 0 {
		return nil
	}
	var out []segment.Candidate
	for _, v := range l.zeroQuery[hist[len(hist)-1].Candidates[0].Value] {
		out = append(out, segment.NewCandidate("", v))
	}
	return out
}

func (l *Lexicon) prefixCandidates(req *Request, key string, limit int) []segment.Candidate {
	var out []segment.Candidate
	seen := make(map[string]bool)
	add := func(reading, value string, attrs segment.Attribute) {
		if len(out) >= limit || value == "" || seen[value] {
			return
		}
		seen[value] = true
		c := segment.NewCandidate(reading, value)
		c.Attributes |= attrs
		out = append(out, c)
	}

	readings := make([]string, 0, len(l.order))
	for _, r := range l.order {
		if strings.HasPrefix(r, key) {
			readings = append(readings, r)
		}
	}
	sort.SliceStable(readings, func(i, j int) bool {
		return utf8.RuneCountInString(readings[i]) < utf8.RuneCountInString(readings[j])
	})

	if !req.Incognito() {
		for _, r := range readings {
			if v, ok := l.learned[r]; ok {
				add(r, v, segment.UserHistoryPrediction)
			}
		}
	}
	for _, r := range readings {
		for _, v := range l.readings[r] {
			add(r, v, 0)
		}
	}
	return out
}

// FinishConversion implements Converter.
func (l *Lexicon) FinishConversion(req *Request, segs *segment.Segments) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter(OpFinishConversion)

	l.lastLearned = make(map[string]string)
	if !req.Incognito() {
		for _, seg := range segs.ConversionSegments() {
			if seg.Key == "" || len(seg.Candidates) == 0 {
				continue
			}
			top := seg.Candidates[0]
			if top.Attributes.Has(segment.NoLearning) {
				continue
			}
			if _, done := l.lastLearned[seg.Key]; !done {
				l.lastLearned[seg.Key] = l.learned[seg.Key]
			}
			l.learned[seg.Key] = top.Value
		}
	}
	segs.FixConversionToHistory()
}

// CancelConversion implements Converter.
func (l *Lexicon) CancelConversion(segs *segment.Segments) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter(OpCancelConversion)
	segs.ClearConversionSegments()
}

// ResetConversion implements Converter.
func (l *Lexicon) ResetConversion(segs *segment.Segments) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter(OpResetConversion)
	segs.Clear()
}

// RevertConversion implements Converter.
func (l *Lexicon) RevertConversion(segs *segment.Segments) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enter(OpRevertConversion)
	for reading, prev := range l.lastLearned {
		if prev == "" {
			delete(l.learned, reading)
		} else {
			l.learned[reading] = prev
		}
	}
	l.lastLearned = nil
}

// ReconstructHistory implements Converter. The longest suffix of text that
// is a known value becomes the single history segment.
func (l *Lexicon) ReconstructHistory(segs *segment.Segments, text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enter(OpReconstructHistory) || text == "" {
		return false
	}
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		suffix := string(runes[i:])
		reading, ok := l.reverse[suffix]
		if !ok {
			continue
		}
		segs.Clear()
		seg := segment.Segment{Key: reading, Type: segment.History}
		seg.Candidates = []segment.Candidate{segment.NewCandidate(reading, suffix)}
		segs.AddSegment(seg)
		return true
	}
	logging.Component("converter").Debug("history not reconstructed", "preceding_text", text)
	return false
}

// CommitSegmentValue implements Converter.
func (l *Lexicon) CommitSegmentValue(segs *segment.Segments, i, id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enter(OpCommitSegmentValue) {
		return false
	}
	return commitValue(segs, i, id, segment.FixedValue)
}

func commitValue(segs *segment.Segments, i, id int, t segment.Type) bool {
	seg := segs.ConversionSegment(i)
	if seg == nil || !seg.MoveToFront(id) {
		return false
	}
	seg.Type = t
	return true
}

// CommitPartialSuggestionSegmentValue implements Converter. Only the first
// conversion segment can be submitted this way.
func (l *Lexicon) CommitPartialSuggestionSegmentValue(segs *segment.Segments, i, id int, currentKey, newKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enter(OpCommitPartialSuggestion) || i != 0 {
		return false
	}
	l.lastLearned = nil
	seg := segs.ConversionSegment(0)
	if !commitValue(segs, 0, id, segment.History) {
		return false
	}
	seg.Key = currentKey
	segs.InsertConversionSegment(0, segment.Segment{Key: newKey, Type: segment.Free})
	return true
}

// FocusSegmentValue implements Converter.
func (l *Lexicon) FocusSegmentValue(segs *segment.Segments, i, id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enter(OpFocusSegmentValue) {
		return false
	}
	seg := segs.ConversionSegment(i)
	return seg != nil && seg.IsValidIndex(id)
}

// CommitSegments implements Converter.
func (l *Lexicon) CommitSegments(segs *segment.Segments, ids []int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enter(OpCommitSegments) {
		return false
	}
	// Revert only undoes learning from the latest commit.
	l.lastLearned = nil
	for _, id := range ids {
		// Each submitted segment turns into history, so the next one is
		// always at index 0.
		if !commitValue(segs, 0, id, segment.History) {
			return false
		}
	}
	return true
}

// ResizeSegment implements Converter.
func (l *Lexicon) ResizeSegment(segs *segment.Segments, req *Request, i, offset int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enter(OpResizeSegment) || offset == 0 {
		return false
	}
	convs := segs.ConversionSegments()
	if i < 0 || i >= len(convs) {
		return false
	}
	if offset > 0 && i == len(convs)-1 {
		return false
	}
	newLen := utf8.RuneCountInString(convs[i].Key) + offset
	if newLen <= 0 {
		return false
	}
	return l.reshape(segs, req, i, []int{newLen})
}

// ResizeSegmentBoundaries implements Converter.
func (l *Lexicon) ResizeSegmentBoundaries(segs *segment.Segments, req *Request, start int, sizes []int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enter(OpResizeSegmentBoundaries) || len(sizes) == 0 {
		return false
	}
	if start < 0 || start >= segs.ConversionSize() {
		return false
	}
	for _, n := range sizes {
		if n <= 0 {
			return false
		}
	}
	return l.reshape(segs, req, start, sizes)
}

// reshape carves the keys of conversion segments from start onward into
// sizes and re-splits the rest.
func (l *Lexicon) reshape(segs *segment.Segments, req *Request, start int, sizes []int) bool {
	convs := segs.ConversionSegments()
	var rest strings.Builder
	for _, seg := range convs[start:] {
		rest.WriteString(seg.Key)
	}
	runes := []rune(rest.String())

	var parts []string
	pos := 0
	for _, n := range sizes {
		if pos+n > len(runes) {
			return false
		}
		parts = append(parts, string(runes[pos:pos+n]))
		pos += n
	}
	if pos < len(runes) {
		parts = append(parts, l.split(string(runes[pos:]))...)
	}

	kept := make([]segment.Segment, 0, start+len(parts))
	for _, seg := range convs[:start] {
		kept = append(kept, seg.Clone())
	}
	kept = append(kept, l.buildSegments(req, parts, len(sizes))...)
	segs.ReplaceConversionSegments(kept)
	return true
}
