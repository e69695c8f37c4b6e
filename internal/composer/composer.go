// Package composer holds the phonetic composition the user is typing.
//
// The conversion layer reads it through Composer; the key dispatcher edits
// it through Editor. Buffer is the in-memory implementation used by the CLI
// and tests.
package composer

// InputMode selects how typed characters are stored in the composition.
type InputMode int

const (
	ModeHiragana InputMode = iota
	ModeFullKatakana
	ModeHalfKatakana
	ModeHalfASCII
	ModeFullASCII
)

var inputModeNames = [...]string{"hiragana", "full_katakana", "half_katakana", "half_ascii", "full_ascii"}

func (m InputMode) String() string {
	if m < 0 || int(m) >= len(inputModeNames) {
		return "unknown"
	}
	return inputModeNames[m]
}

// IsASCII reports whether the mode stores Latin text.
func (m InputMode) IsASCII() bool {
	return m == ModeHalfASCII || m == ModeFullASCII
}

// ParseInputMode parses the names produced by InputMode.String.
func ParseInputMode(s string) (InputMode, bool) {
	for i, name := range inputModeNames {
		if name == s {
			return InputMode(i), true
		}
	}
	return ModeHiragana, false
}

// InputFieldType describes the host text field.
type InputFieldType int

const (
	FieldNormal InputFieldType = iota
	FieldPassword
	FieldTel
	FieldNumber
)

// Composer is the read view of a composition.
type Composer interface {
	// Preedit returns the composition as displayed.
	Preedit() string
	// Cursor returns the cursor position in runes.
	Cursor() int
	// Length returns the preedit length in runes.
	Length() int
	Empty() bool
	QueryForConversion() string
	// QueryForPrediction drops an incomplete trailing romaji sequence.
	QueryForPrediction() string
	StringForSubmission() string
	// Transliterations returns one string per segment.TransliterationType.
	Transliterations() []string
	InputFieldType() InputFieldType
	Clone() Editor
}

// Editor is a composition that can be modified.
type Editor interface {
	Composer
	InsertText(text string)
	Backspace()
	// DeleteRange removes length runes starting at pos.
	DeleteRange(pos, length int)
	MoveCursorToEnd()
	MoveCursorLeft()
	MoveCursorRight()
	Reset()
	SetInputMode(mode InputMode)
	InputMode() InputMode
	SetInputFieldType(t InputFieldType)
}
