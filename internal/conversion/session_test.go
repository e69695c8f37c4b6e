package conversion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"henkan/internal/composer"
	"henkan/internal/config"
	"henkan/internal/converter"
	"henkan/internal/logging"
	"henkan/internal/segment"
	"henkan/internal/usagestats"
)

type fixture struct {
	s     *Session
	lex   *converter.Lexicon
	stats *usagestats.Memory
	cfg   *config.Config
}

func newFixture(t *testing.T, data *converter.Data, tweak ...func(*config.Config)) *fixture {
	t.Helper()
	if data == nil {
		data = converter.BuiltinData()
	}
	lex, err := converter.NewLexicon(data)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	for _, fn := range tweak {
		fn(cfg)
	}
	stats := usagestats.NewMemory()
	s := New(lex, cfg, WithStats(stats), WithLogger(logging.Discard()))
	return &fixture{s: s, lex: lex, stats: stats, cfg: cfg}
}

// kamabokoData segments かまぼこのいんぼう into two readings.
func kamabokoData() *converter.Data {
	return &converter.Data{
		Entries: []converter.Entry{
			{Reading: "かまぼこの", Values: []string{"かまぼこの"}},
			{Reading: "いんぼう", Values: []string{"陰謀", "印房"}},
		},
	}
}

func typed(text string) *composer.Buffer {
	b := composer.NewBuffer()
	b.InsertText(text)
	return b
}

func focusedValue(s *Session) string {
	if c := s.selectedCandidate(s.segmentIndex); c != nil {
		return c.Value
	}
	return ""
}

// =============================================================================
// Convert
// =============================================================================

func TestConvertUnknownRun(t *testing.T) {
	f := newFixture(t, nil)
	c := typed("aiueo")
	require.Equal(t, "あいうえお", c.Preedit())

	require.True(t, f.s.Convert(c))
	assert.Equal(t, Conversion, f.s.State())
	assert.Equal(t, 1, f.s.Segments().ConversionSize())
	assert.Equal(t, []int{0}, f.s.SelectedIndices())
	assert.False(t, f.s.CandidateListVisible())

	l := f.s.CandidateList()
	require.Equal(t, 3, l.Size())
	assert.Equal(t, 0, l.Entry(0).ID())
	assert.Equal(t, 1, l.Entry(1).ID())
	require.True(t, l.Entry(2).HasSubList())
	assert.Equal(t, transliterationListName, l.Entry(2).SubList().Name())
	assert.Equal(t, int(segment.NumTransliterationTypes), l.Entry(2).SubList().Size())

	f.s.CandidateNext(c)
	assert.Equal(t, "アイウエオ", focusedValue(f.s))
	assert.Equal(t, []int{1}, f.s.SelectedIndices())
	assert.True(t, f.s.CandidateListVisible())
}

func TestConvertFlatTransliterations(t *testing.T) {
	f := newFixture(t, nil, func(cfg *config.Config) {
		cfg.Conversion.UseCascadingWindow = false
	})
	require.True(t, f.s.Convert(typed("aiueo")))

	l := f.s.CandidateList()
	assert.Equal(t, 2+int(segment.NumTransliterationTypes), l.Size())
	assert.Equal(t, segment.Hiragana.ID(), l.Entry(2).ID())
}

func TestConvertDeclined(t *testing.T) {
	f := newFixture(t, nil)
	f.lex.SetFailure(converter.OpStartConversion, true)

	assert.False(t, f.s.Convert(typed("neko")))
	assert.Equal(t, Composition, f.s.State())
	assert.Zero(t, f.s.Segments().ConversionSize())
}

func TestConvertDeclinedFromSuggestion(t *testing.T) {
	f := newFixture(t, nil)
	c := typed("きょう")
	require.True(t, f.s.Suggest(c))
	require.Equal(t, Suggestion, f.s.State())

	f.lex.SetFailure(converter.OpStartConversion, true)
	assert.False(t, f.s.Convert(c))
	assert.Equal(t, Composition, f.s.State())
	assert.Zero(t, f.s.Segments().ConversionSize())
	assert.Zero(t, f.s.CandidateList().Size())
	assert.False(t, f.s.CandidateListVisible())
}

func TestConvertWithoutHistory(t *testing.T) {
	f := newFixture(t, nil)
	require.True(t, f.s.Convert(typed("きょう")))
	require.True(t, f.s.Commit(typed("きょう")))
	require.Equal(t, "今日", f.s.Segments().HistoryText())

	p := DefaultPreferences()
	p.UseHistory = false
	require.True(t, f.s.ConvertWithPreferences(typed("は"), p))
	assert.Zero(t, f.s.Segments().HistorySize())
}

// =============================================================================
// Suggest / Predict
// =============================================================================

func TestSuggestShowsUnfocusedList(t *testing.T) {
	f := newFixture(t, nil)
	c := typed("てん")

	require.True(t, f.s.Suggest(c))
	assert.Equal(t, Suggestion, f.s.State())
	assert.True(t, f.s.CandidateListVisible())
	assert.False(t, f.s.CandidateList().Focused())
	assert.Equal(t, 3, f.s.CandidateList().Size())
	assert.Equal(t, 1, f.lex.CallCount(converter.OpStartSuggestion))
}

func TestSuggestSuppressed(t *testing.T) {
	f := newFixture(t, nil)

	c := typed("てん")
	c.SetInputFieldType(composer.FieldPassword)
	assert.False(t, f.s.Suggest(c))

	p := DefaultPreferences()
	p.RequestSuggestion = false
	assert.False(t, f.s.SuggestWithPreferences(typed("てん"), p))

	assert.Zero(t, f.lex.CallCount(converter.OpStartSuggestion))
	assert.Equal(t, Composition, f.s.State())
}

func TestSuggestMixedConversionUsesPrediction(t *testing.T) {
	f := newFixture(t, nil, func(cfg *config.Config) {
		cfg.Request.MixedConversion = true
	})
	c := typed("てん")
	require.True(t, f.s.Suggest(c))
	assert.Equal(t, 1, f.lex.CallCount(converter.OpStartPrediction))
	assert.Zero(t, f.lex.CallCount(converter.OpStartSuggestion))

	c.MoveCursorLeft()
	require.True(t, f.s.Suggest(c))
	assert.Equal(t, 1, f.lex.CallCount(converter.OpStartPartialPrediction))
}

func TestSuggestFillsIncognitoWords(t *testing.T) {
	f := newFixture(t, nil, func(cfg *config.Config) {
		cfg.Request.FillIncognitoCandidateWords = true
	})
	require.True(t, f.s.Suggest(typed("てん")))

	out := f.s.Output(typed("てん"))
	require.NotNil(t, out.IncognitoCandidateWords)
	assert.NotEmpty(t, out.IncognitoCandidateWords.Candidates)
	assert.Equal(t, 2, f.lex.CallCount(converter.OpStartSuggestion))
}

func TestPredictIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	c := typed("てん")

	require.True(t, f.s.Predict(c))
	require.Equal(t, 1, f.lex.CallCount(converter.OpStartPrediction))
	before := f.s.Segments().Clone()

	require.True(t, f.s.Predict(c))
	assert.Equal(t, 1, f.lex.CallCount(converter.OpStartPrediction))
	assert.True(t, before.Equal(f.s.Segments()))
	assert.Equal(t, Prediction, f.s.State())
}

func TestPredictReusesSuggestionsAndExpandsOnce(t *testing.T) {
	f := newFixture(t, nil)
	c := typed("てん")

	require.True(t, f.s.Suggest(c))
	require.True(t, f.s.Predict(c))
	assert.Zero(t, f.lex.CallCount(converter.OpStartPrediction))
	assert.True(t, f.s.CandidateList().Focused())
	require.Equal(t, 3, f.s.CandidateList().Size())

	f.s.CandidateNext(c)
	f.s.CandidateNext(c)
	assert.Equal(t, 2, f.s.CandidateList().FocusedIndex())
	assert.Zero(t, f.lex.CallCount(converter.OpStartPrediction))

	// Moving past the last suggestion fetches predictions behind them.
	f.s.CandidateNext(c)
	assert.Equal(t, 1, f.lex.CallCount(converter.OpStartPrediction))
	assert.Equal(t, 4, f.s.CandidateList().Size())
	assert.Equal(t, 3, f.s.CandidateList().FocusedIndex())
	assert.Equal(t, "天気予報", focusedValue(f.s))

	f.s.CandidateNext(c)
	assert.Equal(t, 0, f.s.CandidateList().FocusedIndex())
	assert.Equal(t, 1, f.lex.CallCount(converter.OpStartPrediction))
}

func TestPredictDeclinedFallsBack(t *testing.T) {
	f := newFixture(t, nil)
	assert.False(t, f.s.Predict(typed("ぬ")))
	assert.Equal(t, Composition, f.s.State())
}

func TestExpandSuggestion(t *testing.T) {
	f := newFixture(t, nil)
	c := typed("てん")
	assert.False(t, f.s.ExpandSuggestion(c))

	require.True(t, f.s.Suggest(c))
	require.True(t, f.s.ExpandSuggestion(c))
	assert.Equal(t, 4, f.s.CandidateList().Size())
	assert.False(t, f.s.CandidateList().Focused())
	assert.Equal(t, Suggestion, f.s.State())
}

// =============================================================================
// Navigation
// =============================================================================

func TestSegmentFocusWraps(t *testing.T) {
	f := newFixture(t, kamabokoData())
	c := typed("かまぼこのいんぼう")
	require.True(t, f.s.Convert(c))
	require.Equal(t, 2, f.s.Segments().ConversionSize())

	f.s.SegmentFocusLeft()
	assert.Equal(t, 1, f.s.SegmentIndex())
	assert.Equal(t, 1, f.lex.CallCount(converter.OpCommitSegmentValue))

	f.s.SegmentFocusRight()
	assert.Equal(t, 0, f.s.SegmentIndex())
	assert.Equal(t, 2, f.lex.CallCount(converter.OpCommitSegmentValue))

	f.s.SegmentFocusLast()
	assert.Equal(t, 1, f.s.SegmentIndex())
	f.s.SegmentFocusLeftEdge()
	assert.Equal(t, 0, f.s.SegmentIndex())
}

func TestSegmentFocusIgnoredInPrediction(t *testing.T) {
	f := newFixture(t, nil)
	require.True(t, f.s.Predict(typed("てん")))
	f.s.SegmentFocusRight()
	assert.Equal(t, 0, f.s.SegmentIndex())
	assert.Zero(t, f.lex.CallCount(converter.OpCommitSegmentValue))
}

func TestSegmentWidth(t *testing.T) {
	f := newFixture(t, nil)
	c := typed("にほんごかな")
	require.True(t, f.s.Convert(c))
	require.Equal(t, 2, f.s.Segments().ConversionSize())

	f.s.SegmentWidthShrink(c)
	assert.Equal(t, 3, f.s.Segments().ConversionSize())
	assert.Equal(t, "にほん", f.s.Segments().ConversionSegment(0).Key)
	assert.Equal(t, []int{0, 0, 0}, f.s.SelectedIndices())

	f.s.SegmentFocusLast()
	before := f.s.Segments().Clone()
	f.s.SegmentWidthExpand(c)
	assert.True(t, before.Equal(f.s.Segments()), "declined resize leaves segments")
	assert.Equal(t, Conversion, f.s.State())
}

func TestCandidateMoveToIDFromSuggestion(t *testing.T) {
	f := newFixture(t, nil)
	c := typed("てん")
	require.True(t, f.s.Suggest(c))

	require.True(t, f.s.CandidateMoveToID(1, c))
	assert.Equal(t, Prediction, f.s.State())
	assert.Equal(t, 1, f.s.CandidateList().FocusedID())
}

func TestCandidateMoveToShortcut(t *testing.T) {
	f := newFixture(t, kamabokoData())
	c := typed("いんぼう")
	require.True(t, f.s.Convert(c))

	assert.False(t, f.s.CandidateMoveToShortcut('2'), "window hidden")
	f.s.SetCandidateListVisible(true)
	require.True(t, f.s.CandidateMoveToShortcut('2'))
	assert.Equal(t, "印房", focusedValue(f.s))
	assert.False(t, f.s.CandidateMoveToShortcut('x'))
}

func TestCandidatePaging(t *testing.T) {
	f := newFixture(t, nil, func(cfg *config.Config) {
		cfg.Request.CandidatePageSize = 2
	})
	c := typed("aiueo")
	require.True(t, f.s.Convert(c))

	f.s.CandidateNextPage(c)
	assert.Equal(t, 2, f.s.CandidateList().FocusedIndex())
	f.s.CandidatePrevPage()
	assert.Equal(t, 0, f.s.CandidateList().FocusedIndex())
	f.s.CandidatePrev()
	assert.True(t, f.s.SelectedIndices()[0] < 0, "wrapped into the transliteration group")
}

// =============================================================================
// Transliteration
// =============================================================================

func TestConvertToTransliteration(t *testing.T) {
	f := newFixture(t, nil)
	c := typed("aiueo")

	require.True(t, f.s.ConvertToTransliteration(c, segment.HalfASCII))
	assert.Equal(t, Conversion, f.s.State())
	assert.Equal(t, "aiueo", focusedValue(f.s))
	assert.Equal(t, []int{0}, f.s.SelectedIndices())

	require.True(t, f.s.ConvertToTransliteration(c, segment.HalfASCII))
	assert.Equal(t, "AIUEO", focusedValue(f.s))

	// Switching width keeps the upper case variant.
	require.True(t, f.s.ConvertToTransliteration(c, segment.FullASCII))
	assert.Equal(t, "ＡＩＵＥＯ", focusedValue(f.s))
}

func TestConvertToHalfWidth(t *testing.T) {
	f := newFixture(t, nil)
	require.True(t, f.s.ConvertToHalfWidth(typed("aiueo")))
	assert.Equal(t, "ｱｲｳｴｵ", focusedValue(f.s))
}

func TestSwitchKanaType(t *testing.T) {
	f := newFixture(t, nil)
	c := typed("aiueo")

	require.True(t, f.s.SwitchKanaType(c))
	assert.Equal(t, "アイウエオ", focusedValue(f.s))
	require.True(t, f.s.SwitchKanaType(c))
	assert.Equal(t, "ｱｲｳｴｵ", focusedValue(f.s))
	require.True(t, f.s.SwitchKanaType(c))
	assert.Equal(t, "あいうえお", focusedValue(f.s))
}

func TestTransliterationMergesSegments(t *testing.T) {
	f := newFixture(t, kamabokoData())
	c := typed("かまぼこのいんぼう")

	require.True(t, f.s.ConvertToTransliteration(c, segment.FullKatakana))
	assert.Equal(t, 1, f.s.Segments().ConversionSize())
	assert.Equal(t, "カマボコノインボウ", focusedValue(f.s))
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestCancelKeepsHistory(t *testing.T) {
	f := newFixture(t, nil)
	require.True(t, f.s.Convert(typed("きょう")))
	require.True(t, f.s.Commit(typed("きょう")))

	require.True(t, f.s.Convert(typed("ねこ")))
	f.s.Cancel()
	assert.Equal(t, Composition, f.s.State())
	assert.Zero(t, f.s.Segments().ConversionSize())
	assert.Equal(t, "今日", f.s.Segments().HistoryText())
	assert.Nil(t, f.s.SelectedIndices())
}

func TestResetDropsHistory(t *testing.T) {
	f := newFixture(t, nil)
	require.True(t, f.s.Convert(typed("きょう")))
	require.True(t, f.s.Commit(typed("きょう")))

	f.s.Reset()
	assert.Zero(t, f.s.Segments().Len())
	assert.Equal(t, 1, f.lex.CallCount(converter.OpResetConversion))
}

func TestOnStartComposition(t *testing.T) {
	f := newFixture(t, nil)

	f.s.OnStartComposition(ClientContext{PrecedingText: "私は今日", HasPrecedingText: true})
	assert.Equal(t, "今日", f.s.Segments().HistoryText())
	assert.Equal(t, 1, f.lex.CallCount(converter.OpReconstructHistory))

	// Consistent with the history: nothing to do.
	f.s.OnStartComposition(ClientContext{PrecedingText: "今日", HasPrecedingText: true, Revision: 1, HasRevision: true})
	assert.Equal(t, 1, f.lex.CallCount(converter.OpReconstructHistory))

	// An unknown hint is tried once, then memoised.
	f.s.OnStartComposition(ClientContext{PrecedingText: "ほげ", HasPrecedingText: true})
	f.s.OnStartComposition(ClientContext{PrecedingText: "ほげ", HasPrecedingText: true, Revision: 2, HasRevision: true})
	assert.Equal(t, 2, f.lex.CallCount(converter.OpReconstructHistory))
	assert.Empty(t, f.s.Segments().HistoryText())

	f.lex.ResetCallCounts()
	f.s.OnStartComposition(ClientContext{HasPrecedingText: true})
	assert.Equal(t, 1, f.lex.CallCount(converter.OpResetConversion))

	f.s.OnStartComposition(ClientContext{Revision: 3, HasRevision: true})
	assert.Equal(t, 2, f.lex.CallCount(converter.OpResetConversion))
	f.s.OnStartComposition(ClientContext{Revision: 3, HasRevision: true})
	assert.Equal(t, 2, f.lex.CallCount(converter.OpResetConversion))
}

func TestCloneIsIndependent(t *testing.T) {
	f := newFixture(t, kamabokoData())
	c := typed("かまぼこのいんぼう")
	require.True(t, f.s.Convert(c))

	clone := f.s.Clone()
	clone.CandidateNext(c)
	clone.SegmentFocusRight()

	assert.Equal(t, 0, f.s.SegmentIndex())
	assert.Equal(t, 0, f.s.CandidateList().FocusedIndex())
	assert.Equal(t, 1, clone.SegmentIndex())
	assert.Equal(t, f.s.Segments().ConversionSize(), clone.Segments().ConversionSize())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "conversion", Conversion.String())
	assert.Equal(t, "suggestion|prediction", (Suggestion | Prediction).String())
	assert.Equal(t, "none", State(0).String())
}
