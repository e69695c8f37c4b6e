package ime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeymapLookup(t *testing.T) {
	k := DefaultKeymap()

	tests := []struct {
		name  string
		state keymapState
		ev    KeyEvent
		want  Command
		found bool
	}{
		{"space converts", keymapComposition, NewSpecialKey(KeySpace, 0), CommandConvert, true},
		{"space in conversion", keymapConversion, NewSpecialKey(KeySpace, 0), CommandConvertNext, true},
		{"space in precomposition", keymapPrecomposition, NewSpecialKey(KeySpace, 0), CommandInsertSpace, true},
		{"suggestion falls back", keymapSuggestion, NewSpecialKey(KeyEnter, 0), CommandCommit, true},
		{"suggestion override", keymapSuggestion, NewSpecialKey(KeyDown, 0), CommandPredictAndConvert, true},
		{"prediction falls back", keymapPrediction, NewSpecialKey(KeySpace, 0), CommandConvertNext, true},
		{"prediction override", keymapPrediction, NewSpecialKey(KeyTab, ModShift), CommandConvertPrev, true},
		{"zero query escape", keymapZeroQuerySuggestion, NewSpecialKey(KeyEscape, 0), CommandCancel, true},
		{"zero query falls back", keymapZeroQuerySuggestion, NewSpecialKey(KeyHankaku, 0), CommandIMEOff, true},
		{"caps ignored", keymapConversion, NewSpecialKey(KeyRight, ModShift|ModCaps), CommandSegmentWidthExpand, true},
		{"ctrl down commits segment", keymapConversion, NewSpecialKey(KeyDown, ModControl), CommandCommitSegment, true},
		{"printable inserts", keymapComposition, NewKey('k'), CommandInsertCharacter, true},
		{"printable in conversion", keymapConversion, NewKey('1'), CommandInsertCharacter, true},
		{"direct hankaku", keymapDirect, NewSpecialKey(KeyHankaku, 0), CommandIMEOn, true},
		{"direct printable", keymapDirect, NewKey('a'), CommandNone, false},
		{"ctrl letter", keymapComposition, KeyEvent{Text: "a", Modifiers: ModControl}, CommandNone, false},
		{"enter in precomposition", keymapPrecomposition, NewSpecialKey(KeyEnter, 0), CommandNone, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := k.Lookup(tt.state, tt.ev)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandNames(t *testing.T) {
	assert.Equal(t, "CommitOnlyFirstSegment", CommandCommitSegment.String())
	assert.Equal(t, "Cancel", CommandConvertCancel.String())
	assert.Equal(t, "InsertCharacter", CommandInsertCharacter.String())
	assert.Equal(t, "None", Command(250).String())
}

func TestCommandTypeNames(t *testing.T) {
	for typ := CommandTypeSubmit; typ <= CommandTypeSwitchInputFieldType; typ++ {
		parsed, ok := ParseCommandType(typ.String())
		assert.True(t, ok, typ.String())
		assert.Equal(t, typ, parsed)
	}
	_, ok := ParseCommandType("explode")
	assert.False(t, ok)
}
