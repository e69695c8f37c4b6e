package usagestats

import "strconv"

// Counter names recorded by the conversion session and the engine.
const (
	Commit                = "Commit"
	CommitFromComposition = "CommitFromComposition"
	CommitFromPrediction  = "CommitFromPrediction"
	CommitFromConversion  = "CommitFromConversion"

	SessionCreated  = "SessionCreated"
	SessionDeleted  = "SessionDeleted"
	SessionAllEvent = "SessionAllEvent"
	SetConfig       = "SetConfig"
	ElapsedTimeUSec = "ElapsedTimeUSec"

	transliterationBase = "Transliteration"
)

// CommitFrom names the counter for commits made in the given source state,
// one of "Composition", "Prediction" or "Conversion".
func CommitFrom(source string) string {
	return "CommitFrom" + source
}

// CandidateName names the counter bumped when the candidate at index was
// committed from base ("Prediction" or "Conversion"). Negative indices are
// transliteration slots -(k+1) and are counted as TransliterationCandidatesK.
// Indices from 10 on share the GE10 bucket.
func CandidateName(base string, index int) string {
	if index < 0 {
		base = transliterationBase
		index = -1 - index
	}
	name := base + "Candidates"
	if index <= 9 {
		return name + strconv.Itoa(index)
	}
	return name + "GE10"
}

// Performed names the counter bumped when a dispatcher command ran in state.
func Performed(state, command string) string {
	return "Performed_" + state + "_" + command
}
