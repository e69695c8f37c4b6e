package ime

import (
	"henkan/internal/composer"
)

// CommandType is a request sent by the client outside of key events, such
// as a click on a candidate.
type CommandType uint8

const (
	CommandTypeSubmit CommandType = iota + 1
	CommandTypeRevert
	CommandTypeSelectCandidate
	CommandTypeSubmitCandidate
	CommandTypeHighlightCandidate
	CommandTypeUndo
	CommandTypeResetContext
	CommandTypeExpandSuggestion
	CommandTypeSwitchInputMode
	CommandTypeTurnOnIME
	CommandTypeTurnOffIME
	CommandTypeConvertNextPage
	CommandTypeConvertPrevPage
	CommandTypeSwitchInputFieldType
)

var commandTypeNames = map[CommandType]string{
	CommandTypeSubmit:               "submit",
	CommandTypeRevert:               "revert",
	CommandTypeSelectCandidate:      "select_candidate",
	CommandTypeSubmitCandidate:      "submit_candidate",
	CommandTypeHighlightCandidate:   "highlight_candidate",
	CommandTypeUndo:                 "undo",
	CommandTypeResetContext:         "reset_context",
	CommandTypeExpandSuggestion:     "expand_suggestion",
	CommandTypeSwitchInputMode:      "switch_input_mode",
	CommandTypeTurnOnIME:            "turn_on_ime",
	CommandTypeTurnOffIME:           "turn_off_ime",
	CommandTypeConvertNextPage:      "convert_next_page",
	CommandTypeConvertPrevPage:      "convert_prev_page",
	CommandTypeSwitchInputFieldType: "switch_input_field_type",
}

func (t CommandType) String() string {
	if name, ok := commandTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// ParseCommandType is the inverse of CommandType.String.
func ParseCommandType(s string) (CommandType, bool) {
	for t, name := range commandTypeNames {
		if name == s {
			return t, true
		}
	}
	return 0, false
}

// SessionCommand is one client command.
type SessionCommand struct {
	Type CommandType
	// ID is the candidate id for the candidate commands.
	ID int
	// Mode is the input mode for SwitchInputMode and, when HasMode is set,
	// for TurnOnIME and TurnOffIME.
	Mode      composer.InputMode
	HasMode   bool
	FieldType composer.InputFieldType
}
