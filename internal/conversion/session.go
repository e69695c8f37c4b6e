// Package conversion implements the conversion session of the input method:
// the state machine that turns a composition into committed text through
// suggestion, prediction and conversion.
//
// A Session owns the segments produced by the converter backend, the
// candidate list of the focused segment and a one-step undo snapshot. It is
// not safe for concurrent use; the dispatcher drives it from one goroutine.
package conversion

import (
	"context"

	"henkan/internal/candidates"
	"henkan/internal/composer"
	"henkan/internal/config"
	"henkan/internal/converter"
	"henkan/internal/logging"
	"henkan/internal/segment"
	"henkan/internal/usagestats"
)

const transliterationListName = "そのほかの文字種"

// Session is the conversion state of one input context.
type Session struct {
	conv  converter.Converter
	cfg   *config.Config
	stats usagestats.Sink
	ctx   context.Context
	log   *logging.Logger

	state               State
	segments            *segment.Segments
	incognitoSegments   *segment.Segments
	segmentIndex        int
	previousSuggestions segment.Segment
	predictionQuery     string
	expanded            bool

	prefs       Preferences
	result      Result
	list        *candidates.List
	listVisible bool
	selected    []int
	requestType converter.RequestType

	// updatedConfig is the config a committed command candidate asks for.
	updatedConfig *config.Config

	capability     Capability
	clientRevision int
	lastHint       string
	undo           *undoContext
	deletion       *Deletion
}

// Option configures a Session.
type Option func(*Session)

// WithStats routes usage counters to sink.
func WithStats(sink usagestats.Sink) Option {
	return func(s *Session) {
		if sink != nil {
			s.stats = sink
		}
	}
}

// WithPreferences replaces the default preferences.
func WithPreferences(p Preferences) Option {
	return func(s *Session) { s.prefs = p }
}

// WithLogger replaces the component logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// New returns a session in COMPOSITION state. A nil cfg selects the
// default configuration.
func New(conv converter.Converter, cfg *config.Config, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Session{
		conv:              conv,
		cfg:               cfg,
		stats:             usagestats.Nop{},
		ctx:               context.Background(),
		log:               logging.Component("conversion"),
		state:             Composition,
		segments:          &segment.Segments{},
		incognitoSegments: &segment.Segments{},
		list:              candidates.New(true),
		prefs:             DefaultPreferences(),
	}
	if n := cfg.Conversion.MaxHistorySize; n > 0 {
		s.prefs.MaxHistorySize = n
	}
	for _, opt := range opts {
		opt(s)
	}
	s.segments.MaxHistorySize = s.prefs.MaxHistorySize
	s.list.SetPageSize(cfg.Request.PageSize())
	return s
}

// SetContext sets the context attached to backend requests, typically the
// span of the key event being handled.
func (s *Session) SetContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx = ctx
}

// SetConfig replaces the configuration used by subsequent requests.
func (s *Session) SetConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.cfg = cfg
	if n := cfg.Conversion.MaxHistorySize; n > 0 {
		s.prefs.MaxHistorySize = n
		s.segments.MaxHistorySize = n
	}
	s.list.SetPageSize(cfg.Request.PageSize())
}

// Config returns the configuration in use.
func (s *Session) Config() *config.Config { return s.cfg }

// SetCapability sets what the client can do with an output.
func (s *Session) SetCapability(c Capability) { s.capability = c }

// SetPreferences replaces the preferences used by the plain verbs.
func (s *Session) SetPreferences(p Preferences) { s.prefs = p }

// Preferences returns the preferences used by the plain verbs.
func (s *Session) Preferences() Preferences { return s.prefs }

// State returns the current state.
func (s *Session) State() State { return s.state }

// IsActive reports whether a suggestion, prediction or conversion is shown.
func (s *Session) IsActive() bool { return s.state != Composition }

// Segments returns the live segments. Callers must not modify them.
func (s *Session) Segments() *segment.Segments { return s.segments }

// CandidateList returns the list of the focused segment.
func (s *Session) CandidateList() *candidates.List { return s.list }

// SegmentIndex returns the focused conversion segment.
func (s *Session) SegmentIndex() int { return s.segmentIndex }

// SelectedIndices returns a copy of the selected-candidate index history.
func (s *Session) SelectedIndices() []int {
	return append([]int(nil), s.selected...)
}

// CandidateListVisible reports whether the candidate window is shown.
func (s *Session) CandidateListVisible() bool { return s.listVisible }

// SetCandidateListVisible shows or hides the candidate window.
func (s *Session) SetCandidateListVisible(v bool) { s.listVisible = v }

// Result returns the pending commit result.
func (s *Session) Result() Result { return s.result }

func (s *Session) checkState(states State) bool {
	return s.state&states != 0
}

func (s *Session) resetResult() {
	s.result = Result{}
}

func (s *Session) resetState() {
	s.state = Composition
	s.segmentIndex = 0
	s.previousSuggestions = segment.Segment{}
	s.predictionQuery = ""
	s.expanded = false
	s.listVisible = false
	s.list.Clear()
	s.selected = nil
	s.incognitoSegments.Clear()
}

func (s *Session) applyPreferences(p Preferences) {
	if p.MaxHistorySize > 0 {
		s.segments.MaxHistorySize = p.MaxHistorySize
	}
}

func (s *Session) newRequest(t converter.RequestType, c composer.Composer, p Preferences) *converter.Request {
	req := converter.NewRequest(t, c, s.cfg).WithContext(s.ctx)
	req.SkipHistory = !p.UseHistory
	return req
}

// hasCandidates reports whether every conversion segment can be shown.
func (s *Session) hasCandidates() bool {
	segs := s.segments.ConversionSegments()
	if len(segs) == 0 {
		return false
	}
	for i := range segs {
		if len(segs[i].Candidates) == 0 {
			return false
		}
	}
	return true
}

// Convert converts the whole composition with the session preferences.
func (s *Session) Convert(c composer.Composer) bool {
	return s.ConvertWithPreferences(c, s.prefs)
}

// ConvertWithPreferences converts the whole composition and focuses the
// first segment.
func (s *Session) ConvertWithPreferences(c composer.Composer, p Preferences) bool {
	s.resetResult()
	s.applyPreferences(p)

	s.requestType = converter.Conversion
	req := s.newRequest(converter.Conversion, c, p)
	if !s.conv.StartConversion(req, s.segments) {
		s.log.Warn("conversion declined", "composition", c.Preedit())
		s.conv.CancelConversion(s.segments)
		s.resetState()
		return false
	}
	if !s.hasCandidates() {
		s.log.Warn("conversion produced no candidates", "composition", c.Preedit())
		s.conv.CancelConversion(s.segments)
		s.resetState()
		return false
	}

	s.segmentIndex = 0
	s.state = Conversion
	s.previousSuggestions = segment.Segment{}
	s.listVisible = false
	s.updateCandidateList()
	s.initSelectedIndices()
	return true
}

// Suggest shows suggestions for the composition with the session
// preferences.
func (s *Session) Suggest(c composer.Composer) bool {
	return s.SuggestWithPreferences(c, s.prefs)
}

// SuggestWithPreferences asks the backend for a short list of completions.
// The resulting list is shown but not focused.
func (s *Session) SuggestWithPreferences(c composer.Composer, p Preferences) bool {
	s.resetResult()
	s.resetState()

	if c.InputFieldType() == composer.FieldPassword || !p.RequestSuggestion {
		return false
	}
	s.applyPreferences(p)

	cursor, length := c.Cursor(), c.Length()
	inside := cursor != 0 && cursor != length

	var ok bool
	switch {
	case s.cfg.Request.MixedConversion && inside:
		s.requestType = converter.PartialPrediction
		ok = s.conv.StartPartialPrediction(s.newRequest(converter.PartialPrediction, c, p), s.segments)
	case s.cfg.Request.MixedConversion:
		s.requestType = converter.Prediction
		ok = s.conv.StartPrediction(s.newRequest(converter.Prediction, c, p), s.segments)
	case inside:
		s.requestType = converter.PartialSuggestion
		ok = s.conv.StartPartialSuggestion(s.newRequest(converter.PartialSuggestion, c, p), s.segments)
	default:
		s.requestType = converter.Suggestion
		req := s.newRequest(converter.Suggestion, c, p)
		req.CreatePartialCandidates = s.cfg.Request.AutoPartialSuggestion
		ok = s.conv.StartSuggestion(req, s.segments)
	}
	if !ok || !s.hasCandidates() {
		s.log.Debug("no suggestions", "composition", c.Preedit())
		s.conv.CancelConversion(s.segments)
		return false
	}

	if s.cfg.Request.FillIncognitoCandidateWords {
		s.fillIncognitoSuggestions(c, p)
	}

	// Predict relies on the request type to decide the focus.
	if !s.requestType.IsPartial() {
		s.requestType = converter.Suggestion
	}
	s.previousSuggestions = s.segments.ConversionSegment(0).Clone()
	s.segmentIndex = 0
	s.state = Suggestion
	s.updateCandidateList()
	s.listVisible = true
	s.initSelectedIndices()
	return true
}

// fillIncognitoSuggestions runs a shadow suggestion with learning off so
// the output can carry the words an incognito client would see.
func (s *Session) fillIncognitoSuggestions(c composer.Composer, p Preferences) {
	cfg := s.cfg.Clone()
	cfg.Conversion.IncognitoMode = true

	s.incognitoSegments.Clear()
	req := converter.NewRequest(converter.Suggestion, c, cfg).WithContext(s.ctx)
	req.SkipHistory = !p.UseHistory
	req.CreatePartialCandidates = s.cfg.Request.AutoPartialSuggestion
	if !s.conv.StartSuggestion(req, s.incognitoSegments) {
		s.log.Debug("no incognito suggestions")
		s.incognitoSegments.Clear()
	}
}

// Predict shows the prediction list with the session preferences.
func (s *Session) Predict(c composer.Composer) bool {
	return s.PredictWithPreferences(c, s.prefs)
}

// PredictWithPreferences moves to PREDICTION. Coming from SUGGESTION the
// suggestions are reused without a backend call; a fresh prediction is only
// fetched when nothing is shown yet or the focus reached the end of the
// suggestions.
func (s *Session) PredictWithPreferences(c composer.Composer, p Preferences) bool {
	query := c.QueryForPrediction()
	expand := s.canExpandPrediction()
	if s.state == Prediction && !expand {
		if query == s.predictionQuery {
			return true
		}
		s.resetState()
	}
	first := s.state != Prediction && s.previousSuggestions.IsEmpty()

	s.resetResult()
	s.applyPreferences(p)
	s.segments.ClearConversionSegments()

	if first || expand {
		s.requestType = converter.Prediction
		if !s.conv.StartPrediction(s.newRequest(converter.Prediction, c, p), s.segments) {
			s.log.Debug("prediction declined", "composition", c.Preedit())
			if first {
				s.resetState()
				return false
			}
		}
		if expand {
			s.expanded = true
		}
	}
	prependCandidates(s.previousSuggestions, query, s.segments)
	if !s.hasCandidates() {
		s.conv.CancelConversion(s.segments)
		s.resetState()
		return false
	}

	s.requestType = converter.Prediction
	s.predictionQuery = query
	s.segmentIndex = 0
	s.state = Prediction
	s.updateCandidateList()
	s.listVisible = true
	s.initSelectedIndices()
	return true
}

// ExpandSuggestion appends prediction results to the shown suggestions
// without focusing them.
func (s *Session) ExpandSuggestion(c composer.Composer) bool {
	return s.ExpandSuggestionWithPreferences(c, s.prefs)
}

// ExpandSuggestionWithPreferences is ExpandSuggestion with explicit
// preferences. It does nothing in COMPOSITION.
func (s *Session) ExpandSuggestionWithPreferences(c composer.Composer, p Preferences) bool {
	if !s.checkState(Suggestion | Prediction) {
		return false
	}
	s.resetResult()
	s.applyPreferences(p)

	query := c.QueryForPrediction()
	cursor, length := c.Cursor(), c.Length()
	if cursor == length || cursor == 0 || !s.cfg.Request.MixedConversion {
		req := s.newRequest(converter.Prediction, c, p)
		req.CreatePartialCandidates = s.cfg.Request.AutoPartialSuggestion
		if !s.conv.StartPrediction(req, s.segments) {
			s.log.Debug("suggestion expansion declined", "composition", c.Preedit())
		}
	} else if !s.conv.StartPartialPrediction(s.newRequest(converter.PartialPrediction, c, p), s.segments) {
		s.conv.CancelConversion(s.segments)
		return false
	}

	s.requestType = converter.Suggestion
	prependCandidates(s.previousSuggestions, query, s.segments)
	s.segmentIndex = 0
	s.appendCandidateList()
	s.listVisible = true
	return true
}

// prependCandidates puts prev in front of the first conversion segment,
// dropping later candidates whose value prev already shows.
func prependCandidates(prev segment.Segment, key string, segs *segment.Segments) {
	if prev.IsEmpty() {
		return
	}
	if segs.ConversionSize() == 0 {
		segs.AddSegment(segment.Segment{Key: key, Type: segment.Free})
	}
	seg := segs.ConversionSegment(0)

	seen := make(map[string]bool, len(prev.Candidates))
	merged := make([]segment.Candidate, 0, len(prev.Candidates)+len(seg.Candidates))
	for _, c := range prev.Clone().Candidates {
		seen[c.Value] = true
		merged = append(merged, c)
	}
	for _, c := range seg.Candidates {
		if !seen[c.Value] {
			merged = append(merged, c)
		}
	}
	seg.Candidates = merged
	if len(prev.MetaCandidates) > 0 {
		seg.MetaCandidates = prev.Clone().MetaCandidates
	}
}

func (s *Session) canExpandPrediction() bool {
	return s.state == Prediction &&
		!s.expanded &&
		!s.previousSuggestions.IsEmpty() &&
		s.list.Size() > 0 &&
		s.list.Focused() &&
		s.list.FocusedIndex() == s.list.LastIndex()
}

// maybeExpandPrediction fetches more predictions once the focus sits on the
// last reused suggestion, keeping that candidate focused.
func (s *Session) maybeExpandPrediction(c composer.Composer) {
	if !s.canExpandPrediction() {
		return
	}
	id := s.list.FocusedID()
	if !s.PredictWithPreferences(c, s.prefs) {
		return
	}
	s.list.MoveToID(id)
	s.updateSelectedIndex()
}

// Cancel drops the conversion segments and returns to COMPOSITION. The
// committed context is kept.
func (s *Session) Cancel() {
	s.undo = nil
	if s.state == Composition {
		return
	}
	s.cancel()
}

func (s *Session) cancel() {
	s.resetResult()
	s.conv.CancelConversion(s.segments)
	s.resetState()
}

// Reset drops every segment including the committed context.
func (s *Session) Reset() {
	s.undo = nil
	s.lastHint = ""
	s.conv.ResetConversion(s.segments)
	if s.state == Composition {
		return
	}
	s.resetResult()
	s.resetState()
}

// Revert asks the backend to forget what the last commit taught it.
func (s *Session) Revert() {
	s.undo = nil
	s.conv.RevertConversion(s.segments)
}

// OnStartComposition checks the committed context against the text the
// client reports in front of the caret and rebuilds it when they disagree.
func (s *Session) OnStartComposition(cc ClientContext) {
	revisionChanged := false
	if cc.HasRevision {
		revisionChanged = cc.Revision != s.clientRevision
		s.clientRevision = cc.Revision
	}
	if !cc.HasPrecedingText {
		if revisionChanged {
			s.resetHistory()
		}
		return
	}
	hint := cc.PrecedingText
	if hint == "" {
		s.resetHistory()
		return
	}

	if history := s.segments.HistoryText(); history != "" {
		if endsWithEither(hint, history) {
			return
		}
	}
	if hint == s.lastHint {
		return
	}
	s.lastHint = hint
	if !s.conv.ReconstructHistory(s.segments, hint) {
		s.log.Debug("history reconstruction failed", "preceding_text", hint)
		s.conv.ResetConversion(s.segments)
	}
}

func (s *Session) resetHistory() {
	s.lastHint = ""
	s.conv.ResetConversion(s.segments)
}

// endsWithEither reports whether the shorter string is a suffix of the
// longer one.
func endsWithEither(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return len(b) >= len(a) && b[len(b)-len(a):] == a
}

// Clone returns an independent copy. The converter, config and stats sink
// are shared.
func (s *Session) Clone() *Session {
	out := *s
	out.segments = s.segments.Clone()
	out.incognitoSegments = s.incognitoSegments.Clone()
	out.previousSuggestions = s.previousSuggestions.Clone()
	out.list = s.list.Clone()
	out.selected = append([]int(nil), s.selected...)
	if s.undo != nil {
		out.undo = s.undo.clone()
	}
	if s.deletion != nil {
		d := *s.deletion
		out.deletion = &d
	}
	return &out
}
