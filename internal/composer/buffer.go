package composer

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// char is one rune of the preedit and the keystrokes that produced it.
// Keystrokes producing several runes are attached to the first one.
type char struct {
	raw  string
	text string
}

// Buffer is an in-memory Editor with romaji input for the kana modes.
// Romaji that does not yet form a kana stays pending at the cursor.
type Buffer struct {
	chars     []char
	pending   string
	cursor    int
	mode      InputMode
	fieldType InputFieldType
}

var _ Editor = (*Buffer)(nil)

// NewBuffer returns an empty hiragana buffer.
func NewBuffer() *Buffer {
	return &Buffer{mode: ModeHiragana}
}

func (b *Buffer) render(s string) string {
	switch b.mode {
	case ModeFullKatakana:
		return ToKatakana(s)
	case ModeHalfKatakana:
		return HalfWidth(ToKatakana(s))
	case ModeHalfASCII:
		return HalfWidth(s)
	case ModeFullASCII:
		return FullWidth(s)
	default:
		return s
	}
}

func (b *Buffer) insertChars(raw, text string) {
	text = b.render(text)
	added := make([]char, 0, utf8.RuneCountInString(text))
	for i, r := range []rune(text) {
		c := char{text: string(r)}
		if i == 0 {
			c.raw = raw
		}
		added = append(added, c)
	}
	b.chars = append(b.chars[:b.cursor], append(added, b.chars[b.cursor:]...)...)
	b.cursor += len(added)
}

func (b *Buffer) insertOutputs(outs []romajiOutput) {
	for _, o := range outs {
		text := o.kana
		if o.kana == o.raw {
			text = FullWidth(o.raw)
		}
		b.insertChars(o.raw, text)
	}
}

func (b *Buffer) flush() {
	if b.pending == "" {
		return
	}
	outs := flushRomaji(b.pending)
	b.pending = ""
	b.insertOutputs(outs)
}

func isRomajiInput(r rune) bool {
	return r < utf8.RuneSelf && r > ' '
}

// InsertText inserts text at the cursor. Text is composed to NFC first so
// combining sound marks join their base kana.
func (b *Buffer) InsertText(text string) {
	for _, r := range norm.NFC.String(text) {
		if b.mode.IsASCII() {
			b.insertChars(string(r), string(r))
			continue
		}
		if !isRomajiInput(r) {
			b.flush()
			b.insertChars(string(r), string(r))
			continue
		}
		outs, rest := convertRomaji(b.pending + string(r))
		b.pending = ""
		b.insertOutputs(outs)
		b.pending = rest
	}
}

// Backspace removes the rune before the cursor.
func (b *Buffer) Backspace() {
	if b.pending != "" {
		b.pending = b.pending[:len(b.pending)-1]
		return
	}
	if b.cursor == 0 {
		return
	}
	b.chars = append(b.chars[:b.cursor-1], b.chars[b.cursor:]...)
	b.cursor--
}

// DeleteRange removes length runes starting at pos.
func (b *Buffer) DeleteRange(pos, length int) {
	b.flush()
	if pos < 0 || length <= 0 || pos >= len(b.chars) {
		return
	}
	end := min(pos+length, len(b.chars))
	b.chars = append(b.chars[:pos], b.chars[end:]...)
	switch {
	case b.cursor >= end:
		b.cursor -= end - pos
	case b.cursor > pos:
		b.cursor = pos
	}
}

func (b *Buffer) MoveCursorToEnd() {
	b.flush()
	b.cursor = len(b.chars)
}

func (b *Buffer) MoveCursorLeft() {
	b.flush()
	if b.cursor > 0 {
		b.cursor--
	}
}

func (b *Buffer) MoveCursorRight() {
	b.flush()
	if b.cursor < len(b.chars) {
		b.cursor++
	}
}

// Reset clears the composition. The input mode and field type survive.
func (b *Buffer) Reset() {
	b.chars = nil
	b.pending = ""
	b.cursor = 0
}

func (b *Buffer) SetInputMode(mode InputMode) {
	b.flush()
	b.mode = mode
}

func (b *Buffer) InputMode() InputMode { return b.mode }

func (b *Buffer) SetInputFieldType(t InputFieldType) { b.fieldType = t }

func (b *Buffer) InputFieldType() InputFieldType { return b.fieldType }

func (b *Buffer) text(from, to int) string {
	var sb strings.Builder
	for _, c := range b.chars[from:to] {
		sb.WriteString(c.text)
	}
	return sb.String()
}

func (b *Buffer) Preedit() string {
	return b.text(0, b.cursor) + b.pending + b.text(b.cursor, len(b.chars))
}

func (b *Buffer) Cursor() int { return b.cursor + len(b.pending) }

func (b *Buffer) Length() int { return len(b.chars) + len(b.pending) }

func (b *Buffer) Empty() bool { return b.Length() == 0 }

func (b *Buffer) QueryForConversion() string {
	var sb strings.Builder
	sb.WriteString(b.text(0, b.cursor))
	for _, o := range flushRomaji(b.pending) {
		sb.WriteString(o.kana)
	}
	sb.WriteString(b.text(b.cursor, len(b.chars)))
	return sb.String()
}

func (b *Buffer) QueryForPrediction() string {
	return b.text(0, len(b.chars))
}

func (b *Buffer) StringForSubmission() string {
	return b.QueryForConversion()
}

func (b *Buffer) raw() string {
	var sb strings.Builder
	for i, c := range b.chars {
		if i == b.cursor {
			sb.WriteString(b.pending)
		}
		sb.WriteString(c.raw)
	}
	if b.cursor == len(b.chars) {
		sb.WriteString(b.pending)
	}
	return sb.String()
}

func (b *Buffer) Transliterations() []string {
	return Transliterate(b.QueryForConversion(), b.raw())
}

func (b *Buffer) Clone() Editor {
	c := *b
	c.chars = append([]char(nil), b.chars...)
	return &c
}
