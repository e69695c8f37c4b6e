package conversion

import (
	"strings"
)

// State is a bit set so that verbs can accept several states at once.
type State uint8

const (
	Composition State = 1 << iota
	Suggestion
	Prediction
	Conversion
)

var stateNames = []struct {
	s    State
	name string
}{
	{Composition, "composition"},
	{Suggestion, "suggestion"},
	{Prediction, "prediction"},
	{Conversion, "conversion"},
}

// String returns the string representation of the state.
func (s State) String() string {
	var parts []string
	for _, n := range stateNames {
		if s&n.s != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Preferences tune a single conversion request.
type Preferences struct {
	// UseHistory feeds committed context to the backend.
	UseHistory bool
	// RequestSuggestion allows Suggest to produce anything.
	RequestSuggestion bool
	// MaxHistorySize caps the history segments kept after a commit.
	MaxHistorySize int
}

// DefaultPreferences returns the preferences a new session starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		UseHistory:        true,
		RequestSuggestion: true,
		MaxHistorySize:    defaultMaxHistorySize,
	}
}

const defaultMaxHistorySize = 3

// ClientContext describes the text surrounding the caret in the host field.
type ClientContext struct {
	PrecedingText    string
	HasPrecedingText bool
	Revision         int
	HasRevision      bool
}

// Capability lists what the client can do with an output.
type Capability uint8

const (
	// DeletePrecedingText lets the engine ask the client to remove text it
	// already committed, which Undo depends on.
	DeletePrecedingText Capability = 1 << iota
)

// ResultType tags what produced a Result.
type ResultType int

const (
	NoResult ResultType = iota
	ResultString
)

// Result is text handed to the client for insertion.
type Result struct {
	Type  ResultType
	Value string
	Key   string
	// CursorOffset moves the client caret after insertion, e.g. -1 to land
	// inside a committed bracket pair.
	CursorOffset int
}

// IsZero reports whether r carries nothing.
func (r Result) IsZero() bool {
	return r.Type == NoResult
}

// Deletion asks the client to delete committed text relative to the caret.
type Deletion struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}
