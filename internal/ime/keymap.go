package ime

// Command is what a key means in a given state.
type Command uint8

const (
	CommandNone Command = iota
	CommandInsertCharacter
	CommandInsertSpace
	CommandCommit
	CommandCommitFirstSuggestion
	CommandCommitSegment
	CommandConvert
	CommandConvertWithoutHistory
	CommandPredictAndConvert
	CommandConvertNext
	CommandConvertPrev
	CommandConvertNextPage
	CommandConvertPrevPage
	CommandConvertCancel
	CommandBackspace
	CommandMoveCursorLeft
	CommandMoveCursorRight
	CommandMoveCursorToEnd
	CommandCancel
	CommandCancelAndIMEOff
	CommandUndo
	CommandRevert
	CommandIMEOn
	CommandIMEOff
	CommandSegmentFocusLeft
	CommandSegmentFocusRight
	CommandSegmentFocusFirst
	CommandSegmentFocusLast
	CommandSegmentWidthExpand
	CommandSegmentWidthShrink
	CommandConvertToHiragana
	CommandConvertToFullKatakana
	CommandConvertToHalfWidth
	CommandConvertToFullAlphanumeric
	CommandConvertToHalfAlphanumeric
	CommandSwitchKanaType
	CommandToggleAlphanumericMode
)

// commandNames are the names used in Performed_* usage counters.
var commandNames = map[Command]string{
	CommandInsertCharacter:           "InsertCharacter",
	CommandInsertSpace:               "InsertSpace",
	CommandCommit:                    "Commit",
	CommandCommitFirstSuggestion:     "CommitFirstSuggestion",
	CommandCommitSegment:             "CommitOnlyFirstSegment",
	CommandConvert:                   "Convert",
	CommandConvertWithoutHistory:     "ConvertWithoutHistory",
	CommandPredictAndConvert:         "PredictAndConvert",
	CommandConvertNext:               "ConvertNext",
	CommandConvertPrev:               "ConvertPrev",
	CommandConvertNextPage:           "ConvertNextPage",
	CommandConvertPrevPage:           "ConvertPrevPage",
	CommandConvertCancel:             "Cancel",
	CommandBackspace:                 "Backspace",
	CommandMoveCursorLeft:            "MoveCursorLeft",
	CommandMoveCursorRight:           "MoveCursorRight",
	CommandMoveCursorToEnd:           "MoveCursorToEnd",
	CommandCancel:                    "Cancel",
	CommandCancelAndIMEOff:           "CancelAndIMEOff",
	CommandUndo:                      "Undo",
	CommandRevert:                    "Revert",
	CommandIMEOn:                     "IMEOn",
	CommandIMEOff:                    "IMEOff",
	CommandSegmentFocusLeft:          "SegmentFocusLeft",
	CommandSegmentFocusRight:         "SegmentFocusRight",
	CommandSegmentFocusFirst:         "SegmentFocusFirst",
	CommandSegmentFocusLast:          "SegmentFocusLast",
	CommandSegmentWidthExpand:        "SegmentWidthExpand",
	CommandSegmentWidthShrink:        "SegmentWidthShrink",
	CommandConvertToHiragana:         "ConvertToHiragana",
	CommandConvertToFullKatakana:     "ConvertToFullKatakana",
	CommandConvertToHalfWidth:        "ConvertToHalfWidth",
	CommandConvertToFullAlphanumeric: "ConvertToFullAlphanumeric",
	CommandConvertToHalfAlphanumeric: "ConvertToHalfAlphanumeric",
	CommandSwitchKanaType:            "SwitchKanaType",
	CommandToggleAlphanumericMode:    "ToggleAlphanumericMode",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "None"
}

// keymapState selects a binding table. The suggestion, prediction and
// zero-query tables only override their base table.
type keymapState uint8

const (
	keymapDirect keymapState = iota
	keymapPrecomposition
	keymapZeroQuerySuggestion
	keymapComposition
	keymapSuggestion
	keymapConversion
	keymapPrediction
)

var keymapBase = map[keymapState]keymapState{
	keymapZeroQuerySuggestion: keymapPrecomposition,
	keymapSuggestion:          keymapComposition,
	keymapPrediction:          keymapConversion,
}

type binding struct {
	special SpecialKey
	mods    Modifiers
	r       rune
}

func bindingOf(ev KeyEvent) binding {
	b := binding{special: ev.Special, mods: ev.normalizedModifiers()}
	if ev.Special == NoSpecialKey {
		b.r = ev.rune()
	}
	return b
}

func bind(k SpecialKey) binding { return binding{special: k} }

func bindMods(k SpecialKey, m Modifiers) binding {
	return binding{special: k, mods: m}
}

// Keymap maps key events to commands per dispatcher state.
type Keymap struct {
	tables map[keymapState]map[binding]Command
}

// DefaultKeymap returns the built-in bindings, close to the MS-IME layout.
func DefaultKeymap() *Keymap {
	transliterations := map[binding]Command{
		bind(KeyF6):       CommandConvertToHiragana,
		bind(KeyF7):       CommandConvertToFullKatakana,
		bind(KeyF8):       CommandConvertToHalfWidth,
		bind(KeyF9):       CommandConvertToFullAlphanumeric,
		bind(KeyF10):      CommandConvertToHalfAlphanumeric,
		bind(KeyMuhenkan): CommandSwitchKanaType,
	}

	composition := map[binding]Command{
		bind(KeyEnter):                     CommandCommit,
		bind(KeySpace):                     CommandConvert,
		bind(KeyHenkan):                    CommandConvert,
		bindMods(KeyHenkan, ModShift):      CommandConvertWithoutHistory,
		bind(KeyTab):                       CommandPredictAndConvert,
		bind(KeyBackspace):                 CommandBackspace,
		bindMods(KeyBackspace, ModControl): CommandUndo,
		bind(KeyEscape):                    CommandCancel,
		bindMods(KeyEscape, ModShift):      CommandCancelAndIMEOff,
		bind(KeyLeft):                      CommandMoveCursorLeft,
		bind(KeyRight):                     CommandMoveCursorRight,
		bind(KeyEnd):                       CommandMoveCursorToEnd,
		bind(KeyHankaku):                   CommandIMEOff,
		bind(KeyEisu):                      CommandToggleAlphanumericMode,
	}
	conversion := map[binding]Command{
		bind(KeyEnter):                     CommandCommit,
		bind(KeySpace):                     CommandConvertNext,
		bind(KeyHenkan):                    CommandConvertNext,
		bind(KeyDown):                      CommandConvertNext,
		bindMods(KeySpace, ModShift):       CommandConvertPrev,
		bind(KeyUp):                        CommandConvertPrev,
		bind(KeyPageDown):                  CommandConvertNextPage,
		bind(KeyPageUp):                    CommandConvertPrevPage,
		bind(KeyTab):                       CommandPredictAndConvert,
		bind(KeyBackspace):                 CommandConvertCancel,
		bind(KeyEscape):                    CommandConvertCancel,
		bindMods(KeyBackspace, ModControl): CommandUndo,
		bind(KeyLeft):                      CommandSegmentFocusLeft,
		bind(KeyRight):                     CommandSegmentFocusRight,
		bind(KeyHome):                      CommandSegmentFocusFirst,
		bind(KeyEnd):                       CommandSegmentFocusLast,
		bindMods(KeyLeft, ModShift):        CommandSegmentWidthShrink,
		bindMods(KeyRight, ModShift):       CommandSegmentWidthExpand,
		bindMods(KeyDown, ModControl):      CommandCommitSegment,
		bind(KeyHankaku):                   CommandIMEOff,
	}
	for b, c := range transliterations {
		composition[b] = c
		conversion[b] = c
	}

	return &Keymap{tables: map[keymapState]map[binding]Command{
		keymapDirect: {
			bind(KeyHankaku): CommandIMEOn,
		},
		keymapPrecomposition: {
			bind(KeySpace):                     CommandInsertSpace,
			bindMods(KeyBackspace, ModControl): CommandUndo,
			bind(KeyHankaku):                   CommandIMEOff,
			bind(KeyEisu):                      CommandToggleAlphanumericMode,
		},
		keymapZeroQuerySuggestion: {
			bind(KeyEscape):              CommandCancel,
			bind(KeyTab):                 CommandPredictAndConvert,
			bindMods(KeyEnter, ModShift): CommandCommitFirstSuggestion,
		},
		keymapComposition: composition,
		keymapSuggestion: {
			bind(KeyDown):                CommandPredictAndConvert,
			bindMods(KeyEnter, ModShift): CommandCommitFirstSuggestion,
		},
		keymapConversion: conversion,
		keymapPrediction: {
			bindMods(KeyTab, ModShift): CommandConvertPrev,
		},
	}}
}

// Lookup returns the command bound to ev. Printable keys without a binding
// insert a character everywhere except DIRECT.
func (k *Keymap) Lookup(state keymapState, ev KeyEvent) (Command, bool) {
	b := bindingOf(ev)
	for s, ok := state, true; ok; s, ok = keymapBase[s] {
		if cmd, found := k.tables[s][b]; found {
			return cmd, true
		}
	}
	if state != keymapDirect && ev.IsPrintable() {
		return CommandInsertCharacter, true
	}
	return CommandNone, false
}
