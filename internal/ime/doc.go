// Package ime turns the key events and commands of an input method client
// into conversion-session verbs.
//
// # Architecture Overview
//
// A client (the CLI REPL, a platform IME wrapper, a test) owns a session id
// in the Engine and feeds it key events. Each event is looked up in the
// keymap of the current state and runs one command, which edits the
// composition, drives the conversion session, or both. The reply is an
// Output: whether the key was consumed plus the rendered preedit, candidate
// window and committed text.
//
//	Key Event → Keymap → Command → Output
//	                       ↓
//	          [composer + conversion.Session]
//	                       ↓
//	             converter.Converter
//
// # States
//
//	┌────────────────┬──────────────────────────────────────────────────┐
//	│ State          │ Meaning                                          │
//	├────────────────┼──────────────────────────────────────────────────┤
//	│ Direct         │ IME off; keys are echoed back to the application │
//	│ Precomposition │ IME on, nothing typed (zero-query suggestions)   │
//	│ Composition    │ Typing; suggestions follow the composition       │
//	│ Conversion     │ Segments converted; candidate selection          │
//	└────────────────┴──────────────────────────────────────────────────┘
//
// Precomposition and Composition pick an alternate table while the
// conversion session shows suggestions, and Conversion while it shows
// predictions. The alternate tables only override a few keys.
//
// # Default Bindings
//
//	┌───────────────┬──────────────────────┬───────────────────────────┐
//	│ Key           │ Composition          │ Conversion                │
//	├───────────────┼──────────────────────┼───────────────────────────┤
//	│ Space/Henkan  │ Convert              │ ConvertNext               │
//	│ Enter         │ Commit               │ Commit                    │
//	│ Tab           │ PredictAndConvert    │ ConvertNext               │
//	│ Escape        │ Cancel               │ Cancel (back to typing)   │
//	│ Left/Right    │ Move cursor          │ Focus segment             │
//	│ Shift+←/→     │                      │ Resize segment            │
//	│ Ctrl+Down     │                      │ Commit first segment      │
//	│ F6..F10       │ Transliterate        │ Transliterate             │
//	│ Ctrl+Backspace│ Undo                 │ Undo                      │
//	│ Hankaku       │ IME off (commits)    │ IME off (commits)         │
//	└───────────────┴──────────────────────┴───────────────────────────┘
//
// # Commits
//
// Commits collect the conversion result before anything else runs, so a
// zero-query suggestion shown right after a commit does not swallow the
// committed text. Undo is a two step exchange: Ctrl+Backspace answers with
// the "undo" callback and the client replies with CommandTypeUndo once it
// can delete the text it inserted.
package ime
