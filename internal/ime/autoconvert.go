package ime

import (
	"unicode"
	"unicode/utf8"

	"henkan/internal/config"
)

// autoConversionTriggers maps punctuation to the setting that enables it.
var autoConversionTriggers = map[string]config.AutoConversionKey{
	".": config.AutoConversionKuten,
	"．": config.AutoConversionKuten,
	"。": config.AutoConversionKuten,
	"｡": config.AutoConversionKuten,
	",": config.AutoConversionTouten,
	"，": config.AutoConversionTouten,
	"、": config.AutoConversionTouten,
	"､": config.AutoConversionTouten,
	"?": config.AutoConversionQuestionMark,
	"？": config.AutoConversionQuestionMark,
	"!": config.AutoConversionExclamationMark,
	"！": config.AutoConversionExclamationMark,
}

// canStartAutoConversion reports whether the key just inserted should
// convert the composition right away.
func (s *Session) canStartAutoConversion(ev KeyEvent) bool {
	if !s.cfg.Conversion.UseAutoConversion {
		return false
	}
	if ev.Style != FollowMode || s.composer.InputMode().IsASCII() {
		return false
	}

	length := s.composer.Length()
	if length <= 1 || length != s.composer.Cursor() {
		return false
	}

	preedit := []rune(s.composer.Preedit())
	if len(preedit) < 2 {
		return false
	}
	last := string(preedit[len(preedit)-1])
	prev := preedit[len(preedit)-2]

	mask, ok := autoConversionTriggers[last]
	if !ok || s.cfg.Conversion.AutoConversionKeyMask()&mask == 0 {
		return false
	}

	// "1." and "。。" are not sentence ends.
	if string(prev) == last || unicode.IsDigit(prev) {
		return false
	}
	return prev != utf8.RuneError
}
