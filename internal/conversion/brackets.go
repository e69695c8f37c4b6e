package conversion

// bracketPairs maps each opening bracket to its closing bracket.
var bracketPairs = map[rune]rune{
	'(': ')',
	'[': ']',
	'{': '}',
	'〈': '〉',
	'《': '》',
	'「': '」',
	'『': '』',
	'【': '】',
	'〔': '〕',
	'〘': '〙',
	'〚': '〛',
	'（': '）',
	'［': '］',
	'｛': '｝',
	'｢': '｣',
}

// isBracketPair reports whether s is exactly an opening bracket followed by
// its closing bracket.
func isBracketPair(s string) bool {
	r := []rune(s)
	if len(r) != 2 {
		return false
	}
	closing, ok := bracketPairs[r[0]]
	return ok && closing == r[1]
}

// cursorOffset places the caret between a committed bracket pair.
func cursorOffset(value string) int {
	if isBracketPair(value) {
		return -1
	}
	return 0
}
