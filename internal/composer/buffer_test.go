package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"henkan/internal/segment"
)

func TestRomajiInput(t *testing.T) {
	tests := []struct {
		input   string
		preedit string
	}{
		{"aiueo", "あいうえお"},
		{"nihongo", "にほんご"},
		{"kanji", "かんじ"},
		{"kitte", "きって"},
		{"kyouha", "きょうは"},
		{"shinbun", "しんぶn"},
		{"a.", "あ。"},
		{"a1", "あ１"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			b := NewBuffer()
			b.InsertText(tt.input)
			assert.Equal(t, tt.preedit, b.Preedit())
		})
	}
}

func TestPendingRomaji(t *testing.T) {
	b := NewBuffer()
	b.InsertText("kan")

	assert.Equal(t, "かn", b.Preedit())
	assert.Equal(t, 2, b.Length())
	assert.Equal(t, 2, b.Cursor())
	assert.Equal(t, "かん", b.QueryForConversion())
	assert.Equal(t, "か", b.QueryForPrediction())

	b.MoveCursorToEnd()
	assert.Equal(t, "かん", b.Preedit())
}

func TestDirectKanaInput(t *testing.T) {
	b := NewBuffer()
	b.InsertText("がな")
	assert.Equal(t, "がな", b.Preedit())
	assert.Equal(t, 2, b.Length())
}

func TestKatakanaMode(t *testing.T) {
	b := NewBuffer()
	b.SetInputMode(ModeFullKatakana)
	b.InsertText("aiu")
	assert.Equal(t, "アイウ", b.Preedit())
}

func TestASCIIMode(t *testing.T) {
	b := NewBuffer()
	b.SetInputMode(ModeHalfASCII)
	b.InsertText("ka")
	assert.Equal(t, "ka", b.Preedit())
	assert.True(t, b.InputMode().IsASCII())
}

func TestBackspaceAndDeleteRange(t *testing.T) {
	b := NewBuffer()
	b.InsertText("aiueo")

	b.Backspace()
	assert.Equal(t, "あいうえ", b.Preedit())

	b.DeleteRange(0, 2)
	assert.Equal(t, "うえ", b.Preedit())
	assert.Equal(t, 2, b.Cursor())

	b.DeleteRange(5, 1)
	assert.Equal(t, "うえ", b.Preedit())
}

func TestCursorMovement(t *testing.T) {
	b := NewBuffer()
	b.InsertText("aiu")
	b.MoveCursorLeft()
	b.InsertText("e")
	assert.Equal(t, "あいえう", b.Preedit())
	assert.Equal(t, 3, b.Cursor())

	b.MoveCursorRight()
	assert.Equal(t, 4, b.Cursor())
}

func TestTransliterations(t *testing.T) {
	b := NewBuffer()
	b.InsertText("aiueo")

	tr := b.Transliterations()
	require.Len(t, tr, int(segment.NumTransliterationTypes))
	assert.Equal(t, "あいうえお", tr[segment.Hiragana])
	assert.Equal(t, "アイウエオ", tr[segment.FullKatakana])
	assert.Equal(t, "aiueo", tr[segment.HalfASCII])
	assert.Equal(t, "AIUEO", tr[segment.HalfASCIIUpper])
	assert.Equal(t, "Aiueo", tr[segment.HalfASCIICapitalized])
	assert.Equal(t, "ａｉｕｅｏ", tr[segment.FullASCII])
	assert.Equal(t, "ＡＩＵＥＯ", tr[segment.FullASCIIUpper])
	assert.NotEmpty(t, tr[segment.HalfKatakana])
}

func TestVoicedKanaWidth(t *testing.T) {
	tr := Transliterate("がっこう", "gakkou")
	assert.Equal(t, "ｶﾞｯｺｳ", tr[segment.HalfKatakana])
	assert.Equal(t, "ガッコウ", tr[segment.FullKatakana])

	assert.Equal(t, "ﾊﾟﾝｳﾞｧ", HalfWidth("パンヴァ"))
	assert.Equal(t, "パンヴァ", FullWidth("ﾊﾟﾝｳﾞｧ"))
	assert.Equal(t, "がっこう", ToHiragana("ｶﾞｯｺｳ"))
	assert.Equal(t, "abc", HalfWidth("ａｂｃ"))
}

func TestKanaShift(t *testing.T) {
	assert.Equal(t, "カタカナ", ToKatakana("かたかな"))
	assert.Equal(t, "ひらがな", ToHiragana("ヒラガナ"))
	assert.Equal(t, "abc", ToKatakana("abc"))
}

func TestResetKeepsMode(t *testing.T) {
	b := NewBuffer()
	b.SetInputMode(ModeFullKatakana)
	b.SetInputFieldType(FieldPassword)
	b.InsertText("a")
	b.Reset()

	assert.True(t, b.Empty())
	assert.Equal(t, ModeFullKatakana, b.InputMode())
	assert.Equal(t, FieldPassword, b.InputFieldType())
}

func TestCloneIsIndependent(t *testing.T) {
	b := NewBuffer()
	b.InsertText("aiu")

	c := b.Clone()
	c.InsertText("eo")

	assert.Equal(t, "あいう", b.Preedit())
	assert.Equal(t, "あいうえお", c.Preedit())
}

func TestParseInputMode(t *testing.T) {
	m, ok := ParseInputMode("half_ascii")
	require.True(t, ok)
	assert.Equal(t, ModeHalfASCII, m)
	_, ok = ParseInputMode("klingon")
	assert.False(t, ok)
}
