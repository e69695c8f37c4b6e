package ime

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SpecialKey names a non-character key.
type SpecialKey uint8

const (
	NoSpecialKey SpecialKey = iota
	KeySpace
	KeyEnter
	KeyBackspace
	KeyEscape
	KeyTab
	KeyLeft
	KeyRight
	KeyUp
	KeyDown
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyHenkan
	KeyMuhenkan
	// KeyHankaku is the half-width/full-width key that toggles the IME.
	KeyHankaku
	KeyEisu
)

var specialKeyNames = map[SpecialKey]string{
	KeySpace:     "Space",
	KeyEnter:     "Enter",
	KeyBackspace: "Backspace",
	KeyEscape:    "Escape",
	KeyTab:       "Tab",
	KeyLeft:      "Left",
	KeyRight:     "Right",
	KeyUp:        "Up",
	KeyDown:      "Down",
	KeyHome:      "Home",
	KeyEnd:       "End",
	KeyPageUp:    "PageUp",
	KeyPageDown:  "PageDown",
	KeyF6:        "F6",
	KeyF7:        "F7",
	KeyF8:        "F8",
	KeyF9:        "F9",
	KeyF10:       "F10",
	KeyHenkan:    "Henkan",
	KeyMuhenkan:  "Muhenkan",
	KeyHankaku:   "Hankaku",
	KeyEisu:      "Eisu",
}

func (k SpecialKey) String() string {
	if name, ok := specialKeyNames[k]; ok {
		return name
	}
	return "None"
}

// Modifiers represents modifier key state.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
	ModMeta // Command on macOS, Windows key on Windows
	ModCaps
)

var modifierNames = []struct {
	m    Modifiers
	name string
}{
	{ModControl, "Ctrl"},
	{ModAlt, "Alt"},
	{ModMeta, "Meta"},
	{ModShift, "Shift"},
	{ModCaps, "Caps"},
}

// InputStyle tells how a character key should enter the composition.
type InputStyle uint8

const (
	// FollowMode inserts the key through the current input mode.
	FollowMode InputStyle = iota
	// AsIs inserts the key text unchanged.
	AsIs
	// DirectInput bypasses the composition in PRECOMPOSITION.
	DirectInput
)

// KeyEvent is one key press delivered by the client.
type KeyEvent struct {
	// Text is the character the key produces, empty for special keys.
	Text      string
	Special   SpecialKey
	Modifiers Modifiers
	Style     InputStyle
}

// NewKey creates a character key event.
func NewKey(r rune) KeyEvent {
	return KeyEvent{Text: string(r)}
}

// NewSpecialKey creates a special key event.
func NewSpecialKey(k SpecialKey, mods Modifiers) KeyEvent {
	return KeyEvent{Special: k, Modifiers: mods}
}

// Valid reports whether the event carries a key.
func (k KeyEvent) Valid() bool {
	return k.Text != "" || k.Special != NoSpecialKey
}

// IsModifierOnly reports whether only modifier keys are held.
func (k KeyEvent) IsModifierOnly() bool {
	return k.Text == "" && k.Special == NoSpecialKey && k.Modifiers != 0
}

// normalizedModifiers drops caps lock, which never changes a binding.
func (k KeyEvent) normalizedModifiers() Modifiers {
	return k.Modifiers &^ ModCaps
}

// IsPrintable reports whether the event inserts text without a command
// modifier.
func (k KeyEvent) IsPrintable() bool {
	return k.Text != "" && k.Special == NoSpecialKey && k.normalizedModifiers()&(ModControl|ModAlt|ModMeta) == 0
}

// rune returns the first rune of Text, lowered.
func (k KeyEvent) rune() rune {
	r, _ := utf8.DecodeRuneInString(k.Text)
	if r == utf8.RuneError {
		return 0
	}
	return unicode.ToLower(r)
}

func (k KeyEvent) String() string {
	var parts []string
	for _, m := range modifierNames {
		if k.Modifiers&m.m != 0 {
			parts = append(parts, m.name)
		}
	}
	switch {
	case k.Special != NoSpecialKey:
		parts = append(parts, k.Special.String())
	case k.Text != "":
		parts = append(parts, k.Text)
	}
	return strings.Join(parts, "+")
}

// ParseKeyEvent parses the notation produced by KeyEvent.String, such as
// "Shift+Space", "Ctrl+Backspace" or "a".
func ParseKeyEvent(s string) (KeyEvent, error) {
	if s == "" {
		return KeyEvent{}, ErrNoKeyEvent
	}
	var ev KeyEvent
	fields := strings.Split(s, "+")
	// A trailing "+" is the plus key itself.
	if strings.HasSuffix(s, "++") || s == "+" {
		fields = append(fields[:len(fields)-2], "+")
	}
	for i, f := range fields {
		last := i == len(fields)-1
		if !last {
			m, ok := parseModifier(f)
			if !ok {
				return KeyEvent{}, fmt.Errorf("unknown modifier %q in %q", f, s)
			}
			ev.Modifiers |= m
			continue
		}
		if k, ok := parseSpecialKey(f); ok {
			ev.Special = k
			continue
		}
		if utf8.RuneCountInString(f) != 1 {
			return KeyEvent{}, fmt.Errorf("unknown key %q in %q", f, s)
		}
		ev.Text = f
	}
	return ev, nil
}

func parseModifier(s string) (Modifiers, bool) {
	for _, m := range modifierNames {
		if strings.EqualFold(m.name, s) {
			return m.m, true
		}
	}
	if strings.EqualFold(s, "Control") {
		return ModControl, true
	}
	return 0, false
}

func parseSpecialKey(s string) (SpecialKey, bool) {
	for k, name := range specialKeyNames {
		if strings.EqualFold(name, s) {
			return k, true
		}
	}
	return NoSpecialKey, false
}
