package composer

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"henkan/internal/segment"
)

const kanaShift = 'ァ' - 'ぁ'

// ToKatakana shifts hiragana to full-width katakana.
func ToKatakana(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'ぁ' && r <= 'ゖ' || r == 'ゝ' || r == 'ゞ' {
			return r + kanaShift
		}
		return r
	}, s)
}

// ToHiragana shifts full-width katakana to hiragana. Half-width katakana is
// widened first.
func ToHiragana(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'ァ' && r <= 'ヶ' || r == 'ヽ' || r == 'ヾ' {
			return r - kanaShift
		}
		return r
	}, FullWidth(s))
}

// HalfWidth narrows full-width characters, including katakana. Voiced and
// semi-voiced katakana become a base letter followed by ﾞ or ﾟ.
func HalfWidth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 'ァ' || r > 'ヿ' {
			b.WriteRune(r)
			continue
		}
		for _, d := range norm.NFD.String(string(r)) {
			switch d {
			case '\u3099':
				d = 'ﾞ'
			case '\u309a':
				d = 'ﾟ'
			}
			b.WriteRune(d)
		}
	}
	return width.Narrow.String(b.String())
}

// FullWidth widens half-width characters, including ASCII. A half-width
// sound mark is folded into the preceding kana.
func FullWidth(s string) string {
	marks := false
	s = strings.Map(func(r rune) rune {
		switch r {
		case 'ﾞ':
			marks = true
			return '\u3099'
		case 'ﾟ':
			marks = true
			return '\u309a'
		}
		return r
	}, s)
	s = width.Widen.String(s)
	if marks {
		s = norm.NFC.String(s)
	}
	return s
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return strings.ToUpper(string(r)) + strings.ToLower(s[size:])
}

// Transliterate renders kana and the raw keystrokes that produced it in
// every transliteration form, indexed by segment.TransliterationType.
func Transliterate(kana, raw string) []string {
	out := make([]string, segment.NumTransliterationTypes)
	hira := ToHiragana(kana)
	kata := ToKatakana(hira)
	ascii := HalfWidth(raw)

	out[segment.Hiragana] = hira
	out[segment.FullKatakana] = kata
	out[segment.HalfKatakana] = HalfWidth(kata)
	out[segment.HalfASCII] = ascii
	out[segment.HalfASCIIUpper] = strings.ToUpper(ascii)
	out[segment.HalfASCIILower] = strings.ToLower(ascii)
	out[segment.HalfASCIICapitalized] = capitalize(ascii)
	out[segment.FullASCII] = FullWidth(ascii)
	out[segment.FullASCIIUpper] = FullWidth(out[segment.HalfASCIIUpper])
	out[segment.FullASCIILower] = FullWidth(out[segment.HalfASCIILower])
	out[segment.FullASCIICapitalized] = FullWidth(out[segment.HalfASCIICapitalized])
	return out
}
