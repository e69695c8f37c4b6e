package ime

import (
	"context"
	"strings"

	"henkan/internal/composer"
	"henkan/internal/config"
	"henkan/internal/conversion"
	"henkan/internal/converter"
	"henkan/internal/logging"
	"henkan/internal/segment"
	"henkan/internal/usagestats"
)

// State is the dispatcher state of a session.
type State uint8

const (
	// Direct passes every key to the application.
	Direct State = 1 << iota
	// Precomposition is on with nothing typed yet.
	Precomposition
	Composition
	Conversion
)

var stateNames = map[State][2]string{
	Direct:         {"direct", "Direct"},
	Precomposition: {"precomposition", "Precomposition"},
	Composition:    {"composition", "Composition"},
	Conversion:     {"conversion", "Conversion"},
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n[0]
	}
	return "none"
}

// statName is the state as it appears in Performed_* counters.
func (s State) statName() string {
	if n, ok := stateNames[s]; ok {
		return n[1]
	}
	return "None"
}

// Session turns key events and client commands into conversion verbs. It
// owns the composition and one conversion session, and is not safe for
// concurrent use.
type Session struct {
	id       string
	conv     *conversion.Session
	composer composer.Editor
	cfg      *config.Config
	keymap   *Keymap
	stats    usagestats.Sink
	log      *logging.Logger

	state         State
	clientContext conversion.ClientContext
	kanaMode      composer.InputMode

	pending  pending
	consumed bool
	callback string
	echo     string
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

// WithLogger replaces the session logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithKeymap replaces the default key bindings.
func WithKeymap(k *Keymap) Option {
	return func(s *Session) {
		if k != nil {
			s.keymap = k
		}
	}
}

// WithComposer replaces the default hiragana buffer.
func WithComposer(c composer.Editor) Option {
	return func(s *Session) {
		if c != nil {
			s.composer = c
		}
	}
}

// NewSession returns a session in PRECOMPOSITION. A nil cfg selects the
// default configuration.
func NewSession(id string, conv converter.Converter, cfg *config.Config, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Session{
		id:       id,
		composer: composer.NewBuffer(),
		cfg:      cfg,
		keymap:   DefaultKeymap(),
		stats:    usagestats.Nop{},
		log:      logging.Component("ime"),
		state:    Precomposition,
		kanaMode: composer.ModeHiragana,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithSession(id)
	s.conv = conversion.New(conv, cfg,
		conversion.WithStats(s.stats),
		conversion.WithLogger(s.log.WithComponent("conversion")),
	)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the dispatcher state.
func (s *Session) State() State { return s.state }

// Composer returns a read view of the composition.
func (s *Session) Composer() composer.Composer { return s.composer }

// Config returns the configuration in use.
func (s *Session) Config() *config.Config { return s.cfg }

// SetConfig replaces the configuration of the session.
func (s *Session) SetConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	s.cfg = cfg
	s.conv.SetConfig(cfg)
}

// SetCapability declares what the client can do with an output.
func (s *Session) SetCapability(c conversion.Capability) {
	s.conv.SetCapability(c)
}

// SetClientContext records the text around the caret. It is read when a
// composition starts.
func (s *Session) SetClientContext(cc conversion.ClientContext) {
	s.clientContext = cc
}

// SetContext attaches ctx to backend requests of the next event.
func (s *Session) SetContext(ctx context.Context) {
	s.conv.SetContext(ctx)
}

// SendKey handles one key event.
func (s *Session) SendKey(ev KeyEvent) (*Output, error) {
	if !ev.Valid() && !ev.IsModifierOnly() {
		return nil, ErrNoKeyEvent
	}

	if ev.IsModifierOnly() {
		if s.state&(Direct|Precomposition) != 0 {
			s.echoBack(ev, false)
		} else {
			s.doNothing()
		}
		return s.output(), nil
	}

	cmd, ok := s.keymap.Lookup(s.keymapState(), ev)
	if !ok {
		if s.state&(Direct|Precomposition) != 0 {
			s.echoBack(ev, true)
		} else {
			s.doNothing()
		}
		return s.output(), nil
	}
	s.stats.IncrementCount(usagestats.Performed(s.state.statName(), cmd.String()))
	s.log.Debug("key", "key", ev.String(), "command", cmd.String(), "state", s.state.String())
	s.run(cmd, ev)
	return s.output(), nil
}

// SendCommand handles one client command.
func (s *Session) SendCommand(cmd SessionCommand) *Output {
	switch cmd.Type {
	case CommandTypeSubmit:
		s.commit(s.cfg.Request.ZeroQuerySuggestion)
	case CommandTypeRevert:
		s.revert(KeyEvent{})
	case CommandTypeSelectCandidate:
		s.selectCandidate(cmd.ID, false)
	case CommandTypeSubmitCandidate:
		s.commitCandidate(cmd.ID)
	case CommandTypeHighlightCandidate:
		s.selectCandidate(cmd.ID, true)
	case CommandTypeUndo:
		s.undo()
	case CommandTypeResetContext:
		s.resetContext()
	case CommandTypeExpandSuggestion:
		s.expandSuggestion()
	case CommandTypeSwitchInputMode:
		s.switchInputMode(cmd.Mode)
	case CommandTypeTurnOnIME:
		s.makeSureIMEOn(cmd)
	case CommandTypeTurnOffIME:
		s.makeSureIMEOff(cmd)
	case CommandTypeConvertNextPage:
		s.inConversion(func() { s.conv.CandidateNextPage(s.composer) })
	case CommandTypeConvertPrevPage:
		s.inConversion(s.conv.CandidatePrevPage)
	case CommandTypeSwitchInputFieldType:
		s.consumed = true
		s.composer.SetInputFieldType(cmd.FieldType)
	default:
		s.log.Warn("unknown command", "command", cmd.Type.String())
		s.doNothing()
	}
	return s.output()
}

func (s *Session) keymapState() keymapState {
	switch s.state {
	case Direct:
		return keymapDirect
	case Precomposition:
		if s.conv.State() == conversion.Suggestion {
			return keymapZeroQuerySuggestion
		}
		return keymapPrecomposition
	case Composition:
		if s.conv.State() == conversion.Suggestion {
			return keymapSuggestion
		}
		return keymapComposition
	default:
		if s.conv.State() == conversion.Prediction {
			return keymapPrediction
		}
		return keymapConversion
	}
}

func (s *Session) run(cmd Command, ev KeyEvent) {
	switch cmd {
	case CommandInsertCharacter:
		s.insertCharacter(ev)
	case CommandInsertSpace:
		s.insertSpace(ev)
	case CommandCommit:
		s.commit(s.cfg.Request.ZeroQuerySuggestion)
	case CommandCommitFirstSuggestion:
		s.commitFirstSuggestion()
	case CommandCommitSegment:
		s.commitSegment()
	case CommandConvert:
		s.convert(ev)
	case CommandConvertWithoutHistory:
		s.convertWithoutHistory()
	case CommandPredictAndConvert:
		s.predictAndConvert()
	case CommandConvertNext:
		s.consumed = true
		s.conv.CandidateNext(s.composer)
	case CommandConvertPrev:
		s.consumed = true
		s.conv.CandidatePrev()
	case CommandConvertNextPage:
		s.inConversion(func() { s.conv.CandidateNextPage(s.composer) })
	case CommandConvertPrevPage:
		s.inConversion(s.conv.CandidatePrevPage)
	case CommandConvertCancel:
		s.convertCancel()
	case CommandBackspace:
		s.backspace()
	case CommandMoveCursorLeft:
		s.moveCursor(s.composer.MoveCursorLeft)
	case CommandMoveCursorRight:
		s.moveCursor(s.composer.MoveCursorRight)
	case CommandMoveCursorToEnd:
		s.moveCursor(s.composer.MoveCursorToEnd)
	case CommandCancel:
		s.editCancel()
	case CommandCancelAndIMEOff:
		s.editCancelAndIMEOff()
	case CommandUndo:
		s.requestUndo(ev)
	case CommandRevert:
		s.revert(ev)
	case CommandIMEOn:
		s.imeOn()
	case CommandIMEOff:
		s.imeOff()
	case CommandSegmentFocusLeft:
		s.inConversion(s.conv.SegmentFocusLeft)
	case CommandSegmentFocusRight:
		s.inConversion(s.conv.SegmentFocusRight)
	case CommandSegmentFocusFirst:
		s.inConversion(s.conv.SegmentFocusLeftEdge)
	case CommandSegmentFocusLast:
		s.inConversion(s.conv.SegmentFocusLast)
	case CommandSegmentWidthExpand:
		s.inConversion(func() { s.conv.SegmentWidthExpand(s.composer) })
	case CommandSegmentWidthShrink:
		s.inConversion(func() { s.conv.SegmentWidthShrink(s.composer) })
	case CommandConvertToHiragana:
		s.transliterate(func() bool { return s.conv.ConvertToTransliteration(s.composer, segment.Hiragana) })
	case CommandConvertToFullKatakana:
		s.transliterate(func() bool { return s.conv.ConvertToTransliteration(s.composer, segment.FullKatakana) })
	case CommandConvertToHalfWidth:
		s.transliterate(func() bool { return s.conv.ConvertToHalfWidth(s.composer) })
	case CommandConvertToFullAlphanumeric:
		s.transliterate(func() bool { return s.conv.ConvertToTransliteration(s.composer, segment.FullASCII) })
	case CommandConvertToHalfAlphanumeric:
		s.transliterate(func() bool { return s.conv.ConvertToTransliteration(s.composer, segment.HalfASCII) })
	case CommandSwitchKanaType:
		s.transliterate(func() bool { return s.conv.SwitchKanaType(s.composer) })
	case CommandToggleAlphanumericMode:
		s.toggleAlphanumericMode()
	default:
		s.doNothing()
	}
}

// setState moves the dispatcher. Leaving the composition empties the
// composer; starting one lets the conversion session check the client
// context.
func (s *Session) setState(next State) {
	prev := s.state
	s.state = next
	switch next {
	case Direct, Precomposition:
		s.composer.Reset()
		if s.conv.IsActive() {
			s.conv.Cancel()
		}
	case Composition:
		if prev == Precomposition {
			s.conv.OnStartComposition(s.clientContext)
		}
	}
}

func (s *Session) zeroQuerySuggest() {
	if s.cfg.Request.ZeroQuerySuggestion {
		s.conv.Suggest(s.composer)
	}
}

// echoBack hands the key back to the application.
func (s *Session) echoBack(ev KeyEvent, clearUndo bool) {
	s.consumed = false
	s.echo = ev.String()
	if ev.IsModifierOnly() {
		return
	}
	if clearUndo {
		s.conv.ClearUndo()
	}
	s.conv.Reset()
}

func (s *Session) doNothing() {
	s.consumed = true
	if s.cfg.Request.ZeroQuerySuggestion && s.conv.IsActive() && s.state == Precomposition {
		s.conv.Reset()
	}
}

func (s *Session) inConversion(fn func()) {
	if s.state != Conversion {
		s.doNothing()
		return
	}
	s.consumed = true
	fn()
}

func isHalfWidthASCII(text string) bool {
	return len(text) == 1 && text[0] < 0x80
}

func (s *Session) insertCharacter(ev KeyEvent) {
	if ev.Style == DirectInput && s.state == Precomposition {
		if isHalfWidthASCII(ev.Text) && ev.Text != " " {
			s.echoBack(ev, true)
			return
		}
		s.composer.InsertText(ev.Text)
		s.commitCompositionDirectly()
		s.conv.ClearUndo()
		return
	}
	s.consumed = true

	if s.state == Conversion && s.conv.CandidateMoveToShortcut(ev.rune()) {
		return
	}

	shouldCommit := s.state == Conversion
	if s.cfg.Request.SpaceOnAlphanumeric == config.SpaceOrConvertCommittingComposition &&
		s.state == Composition && strings.HasSuffix(s.composer.QueryForConversion(), " ") {
		shouldCommit = true
	}
	if shouldCommit {
		s.commit(false)
		if ev.Style == DirectInput {
			s.conv.ClearUndo()
			s.composer.InsertText(ev.Text)
			s.commitCompositionDirectly()
			return
		}
	}

	s.composer.InsertText(ev.Text)
	s.setState(Composition)
	if s.canStartAutoConversion(ev) {
		s.convert(ev)
		return
	}
	s.conv.Suggest(s.composer)
}

// fullWidthSpace reports whether a space key inserts U+3000.
func (s *Session) fullWidthSpace() bool {
	if s.state == Direct {
		return false
	}
	switch s.composer.InputMode() {
	case composer.ModeHalfASCII, composer.ModeHalfKatakana:
		return false
	default:
		return true
	}
}

func (s *Session) insertSpace(ev KeyEvent) {
	if !s.fullWidthSpace() {
		if s.state == Precomposition {
			s.echoBack(ev, true)
			return
		}
		s.insertCharacter(KeyEvent{Text: " ", Style: AsIs})
		return
	}
	if s.state == Precomposition {
		s.consumed = true
		s.composer.InsertText("　")
		s.commitCompositionDirectly()
		s.conv.ClearUndo()
		return
	}
	s.insertCharacter(KeyEvent{Text: "　", Style: AsIs})
}

// commitCompositionDirectly submits the composition without conversion.
func (s *Session) commitCompositionDirectly() {
	key := s.composer.QueryForConversion()
	value := s.composer.StringForSubmission()
	if key == "" || value == "" {
		return
	}
	s.consumed = true
	s.conv.Reset()
	s.pending.result = &conversion.OutputResult{Type: "string", Key: key, Value: value}
	s.setState(Precomposition)
	s.zeroQuerySuggest()
}

func (s *Session) commit(zeroQuery bool) {
	if s.state&(Composition|Conversion) == 0 {
		s.doNothing()
		return
	}
	s.consumed = true
	if s.state == Composition {
		s.conv.CommitPreedit(s.composer)
	} else {
		s.conv.Commit(s.composer)
	}
	s.collect()
	s.setState(Precomposition)
	if zeroQuery {
		s.conv.Suggest(s.composer)
	}
}

func (s *Session) commitFirstSuggestion() {
	if s.state&(Composition|Precomposition) == 0 || !s.conv.IsActive() {
		s.doNothing()
		return
	}
	s.consumed = true
	s.conv.CommitSuggestionByIndex(0, s.composer)
	s.collect()
	s.setState(Precomposition)
	s.zeroQuerySuggest()
}

// afterPartialCommit leaves CONVERSION once the last segment is gone.
func (s *Session) afterPartialCommit(consumed int) {
	if consumed > 0 {
		s.composer.DeleteRange(0, consumed)
	}
	if !s.conv.IsActive() {
		s.setState(Precomposition)
		s.zeroQuerySuggest()
	}
}

func (s *Session) commitSegment() {
	if s.state != Conversion {
		s.doNothing()
		return
	}
	s.consumed = true
	consumed, _ := s.conv.CommitSegment(s.composer)
	s.collect()
	s.afterPartialCommit(consumed)
}

func (s *Session) commitCandidate(id int) {
	if s.state&(Precomposition|Composition|Conversion) == 0 {
		return
	}
	if !s.conv.IsActive() {
		s.log.Warn("no candidates to submit", "id", id)
		return
	}
	s.consumed = true

	if s.state == Conversion {
		consumed, _ := s.conv.CommitCandidate(id, s.composer)
		s.collect()
		s.afterPartialCommit(consumed)
		return
	}

	consumed, ok := s.conv.CommitSuggestionByID(id, s.composer)
	s.collect()
	if ok && consumed < s.composer.Length() {
		s.composer.DeleteRange(0, consumed)
		s.composer.MoveCursorToEnd()
		s.conv.Suggest(s.composer)
		return
	}
	s.afterPartialCommit(0)
}

func (s *Session) selectCandidate(id int, highlight bool) {
	if s.state&(Precomposition|Composition|Conversion) == 0 {
		return
	}
	if !s.conv.IsActive() {
		s.log.Warn("no candidates to select", "id", id)
		return
	}
	s.consumed = true
	s.conv.CandidateMoveToID(id, s.composer)
	s.setState(Conversion)
	if highlight {
		s.conv.SetCandidateListVisible(true)
	}
}

func (s *Session) convert(ev KeyEvent) {
	s.consumed = true
	if s.state == Composition && s.composer.InputMode().IsASCII() && ev.Special == KeySpace {
		if !strings.HasSuffix(s.composer.QueryForConversion(), " ") {
			if s.cfg.Request.SpaceOnAlphanumeric == config.SpaceCommit {
				s.composer.InsertText(" ")
				s.commit(s.cfg.Request.ZeroQuerySuggestion)
				return
			}
			s.insertCharacter(KeyEvent{Text: " ", Style: AsIs})
			return
		}
		s.composer.Backspace()
	}

	if !s.conv.Convert(s.composer) {
		s.log.Error("conversion failed")
		return
	}
	s.setState(Conversion)
}

func (s *Session) convertWithoutHistory() {
	s.consumed = true
	p := s.conv.Preferences()
	p.UseHistory = false
	if !s.conv.ConvertWithPreferences(s.composer, p) {
		s.log.Error("conversion failed")
		return
	}
	s.setState(Conversion)
}

func (s *Session) predictAndConvert() {
	s.consumed = true
	if s.state == Conversion {
		s.conv.CandidateNext(s.composer)
		return
	}
	if s.conv.Predict(s.composer) {
		s.setState(Conversion)
	}
}

func (s *Session) expandSuggestion() {
	if s.state&(Conversion|Direct) != 0 {
		s.doNothing()
		return
	}
	s.consumed = true
	s.conv.ExpandSuggestion(s.composer)
}

func (s *Session) transliterate(fn func() bool) {
	s.consumed = true
	if fn() {
		s.setState(Conversion)
	}
}

func (s *Session) convertCancel() {
	s.consumed = true
	s.setState(Composition)
	s.conv.Cancel()
	s.conv.Suggest(s.composer)
}

func (s *Session) backspace() {
	s.consumed = true
	s.composer.Backspace()
	if s.composer.Empty() {
		s.setState(Precomposition)
		return
	}
	s.conv.Suggest(s.composer)
}

func (s *Session) moveCursor(fn func()) {
	s.consumed = true
	fn()
	s.conv.Suggest(s.composer)
}

func (s *Session) editCancel() {
	s.consumed = true
	s.setState(Precomposition)
}

func (s *Session) editCancelAndIMEOff() {
	if s.state&(Precomposition|Composition|Conversion) == 0 {
		s.doNothing()
		return
	}
	s.consumed = true
	s.conv.ClearUndo()
	s.conv.Reset()
	s.setState(Direct)
}

// requestUndo asks the client to send the undo command, which lets it
// delete the committed text first.
func (s *Session) requestUndo(ev KeyEvent) {
	if s.state == Direct {
		s.doNothing()
		return
	}
	if s.state == Precomposition && !s.conv.CanUndo() {
		s.echoBack(ev, false)
		return
	}
	s.consumed = true
	s.callback = CallbackUndo
}

func (s *Session) undo() {
	if s.state == Direct {
		s.doNothing()
		return
	}
	s.consumed = true
	restored, ok := s.conv.Undo()
	if !ok {
		s.doNothing()
		return
	}
	s.composer = restored
	switch s.conv.State() {
	case conversion.Conversion, conversion.Prediction:
		s.state = Conversion
	default:
		if s.composer.Empty() {
			s.state = Precomposition
		} else {
			s.state = Composition
		}
	}
}

func (s *Session) revert(ev KeyEvent) {
	if s.state == Precomposition {
		s.conv.Revert()
		s.echoBack(ev, true)
		return
	}
	if s.state&(Composition|Conversion) == 0 {
		s.doNothing()
		return
	}
	s.consumed = true
	s.conv.ClearUndo()
	if s.state == Conversion {
		s.conv.Cancel()
	}
	s.setState(Precomposition)
}

func (s *Session) resetContext() {
	if s.state == Precomposition {
		s.conv.Reset()
		s.echoBack(KeyEvent{}, true)
		return
	}
	s.consumed = true
	s.conv.ClearUndo()
	s.conv.Reset()
	s.setState(Precomposition)
}

func (s *Session) imeOn() {
	s.consumed = true
	s.conv.ClearUndo()
	s.setState(Precomposition)
}

func (s *Session) imeOff() {
	s.consumed = true
	s.conv.ClearUndo()
	if s.state&(Composition|Conversion) != 0 {
		s.commit(s.cfg.Request.ZeroQuerySuggestion)
	}
	s.conv.Reset()
	s.setState(Direct)
}

func (s *Session) makeSureIMEOn(cmd SessionCommand) {
	s.consumed = true
	if s.state == Direct {
		s.conv.ClearUndo()
		s.setState(Precomposition)
	}
	if cmd.HasMode {
		s.setInputMode(cmd.Mode)
	}
}

func (s *Session) makeSureIMEOff(cmd SessionCommand) {
	s.consumed = true
	if s.state != Direct {
		s.imeOff()
	}
	if cmd.HasMode {
		s.setInputMode(cmd.Mode)
	}
}

func (s *Session) setInputMode(mode composer.InputMode) {
	if !mode.IsASCII() {
		s.kanaMode = mode
	}
	s.composer.SetInputMode(mode)
}

func (s *Session) switchInputMode(mode composer.InputMode) {
	s.consumed = true
	if s.state == Direct {
		s.conv.ClearUndo()
		s.setState(Precomposition)
	}
	s.setInputMode(mode)
}

// toggleAlphanumericMode switches between half-width ASCII and the last
// kana mode.
func (s *Session) toggleAlphanumericMode() {
	s.consumed = true
	if s.composer.InputMode().IsASCII() {
		s.setInputMode(s.kanaMode)
		return
	}
	s.setInputMode(composer.ModeHalfASCII)
}
