package segment

// TransliterationType indexes the fixed meta candidate slots of a segment.
type TransliterationType int

// Canonical meta candidate order.
const (
	Hiragana TransliterationType = iota
	FullKatakana
	HalfKatakana
	HalfASCII
	HalfASCIIUpper
	HalfASCIILower
	HalfASCIICapitalized
	FullASCII
	FullASCIIUpper
	FullASCIILower
	FullASCIICapitalized

	NumTransliterationTypes
)

var transliterationNames = [...]string{
	Hiragana:             "hiragana",
	FullKatakana:         "full_katakana",
	HalfKatakana:         "half_katakana",
	HalfASCII:            "half_ascii",
	HalfASCIIUpper:       "half_ascii_upper",
	HalfASCIILower:       "half_ascii_lower",
	HalfASCIICapitalized: "half_ascii_capitalized",
	FullASCII:            "full_ascii",
	FullASCIIUpper:       "full_ascii_upper",
	FullASCIILower:       "full_ascii_lower",
	FullASCIICapitalized: "full_ascii_capitalized",
}

// String returns the string representation of the transliteration type.
func (t TransliterationType) String() string {
	if t < 0 || t >= NumTransliterationTypes {
		return "unknown"
	}
	return transliterationNames[t]
}

// ParseTransliterationType is the inverse of String.
func ParseTransliterationType(s string) (TransliterationType, bool) {
	for i, name := range transliterationNames {
		if name == s {
			return TransliterationType(i), true
		}
	}
	return 0, false
}

// ID returns the candidate id addressing this meta candidate slot.
func (t TransliterationType) ID() int {
	return -(int(t) + 1)
}

// TransliterationFromID is the inverse of TransliterationType.ID.
func TransliterationFromID(id int) (TransliterationType, bool) {
	if id >= 0 || -id-1 >= int(NumTransliterationTypes) {
		return 0, false
	}
	return TransliterationType(-id - 1), true
}
