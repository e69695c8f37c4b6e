package composer

import "strings"

// romajiTable maps romaji sequences to hiragana.
var romajiTable = map[string]string{
	"a": "あ", "i": "い", "u": "う", "e": "え", "o": "お",
	"ka": "か", "ki": "き", "ku": "く", "ke": "け", "ko": "こ",
	"sa": "さ", "si": "し", "shi": "し", "su": "す", "se": "せ", "so": "そ",
	"ta": "た", "ti": "ち", "chi": "ち", "tu": "つ", "tsu": "つ", "te": "て", "to": "と",
	"na": "な", "ni": "に", "nu": "ぬ", "ne": "ね", "no": "の",
	"ha": "は", "hi": "ひ", "hu": "ふ", "fu": "ふ", "he": "へ", "ho": "ほ",
	"ma": "ま", "mi": "み", "mu": "む", "me": "め", "mo": "も",
	"ya": "や", "yu": "ゆ", "yo": "よ",
	"ra": "ら", "ri": "り", "ru": "る", "re": "れ", "ro": "ろ",
	"wa": "わ", "wo": "を", "nn": "ん", "n'": "ん",
	"ga": "が", "gi": "ぎ", "gu": "ぐ", "ge": "げ", "go": "ご",
	"za": "ざ", "zi": "じ", "ji": "じ", "zu": "ず", "ze": "ぜ", "zo": "ぞ",
	"da": "だ", "di": "ぢ", "du": "づ", "de": "で", "do": "ど",
	"ba": "ば", "bi": "び", "bu": "ぶ", "be": "べ", "bo": "ぼ",
	"pa": "ぱ", "pi": "ぴ", "pu": "ぷ", "pe": "ぺ", "po": "ぽ",
	"kya": "きゃ", "kyu": "きゅ", "kyo": "きょ",
	"sha": "しゃ", "shu": "しゅ", "sho": "しょ",
	"cha": "ちゃ", "chu": "ちゅ", "cho": "ちょ",
	"nya": "にゃ", "nyu": "にゅ", "nyo": "にょ",
	"hya": "ひゃ", "hyu": "ひゅ", "hyo": "ひょ",
	"mya": "みゃ", "myu": "みゅ", "myo": "みょ",
	"rya": "りゃ", "ryu": "りゅ", "ryo": "りょ",
	"gya": "ぎゃ", "gyu": "ぎゅ", "gyo": "ぎょ",
	"ja": "じゃ", "ju": "じゅ", "jo": "じょ",
	"bya": "びゃ", "byu": "びゅ", "byo": "びょ",
	"pya": "ぴゃ", "pyu": "ぴゅ", "pyo": "ぴょ",
	"xa": "ぁ", "xi": "ぃ", "xu": "ぅ", "xe": "ぇ", "xo": "ぉ", "xtu": "っ",
	"-": "ー", ".": "。", ",": "、", "?": "？", "!": "！", "[": "「", "]": "」",
}

var romajiPrefixes = func() map[string]bool {
	prefixes := make(map[string]bool)
	for k := range romajiTable {
		for i := 1; i < len(k); i++ {
			prefixes[k[:i]] = true
		}
	}
	return prefixes
}()

func isConsonant(c byte) bool {
	return c >= 'a' && c <= 'z' && !strings.ContainsRune("aiueon", rune(c))
}

type romajiOutput struct {
	raw  string
	kana string
}

// convertRomaji consumes pending romaji and reports the produced kana with
// the raw letters that produced each. rest is what stays pending.
func convertRomaji(pending string) (out []romajiOutput, rest string) {
	for pending != "" {
		if kana, ok := romajiTable[pending]; ok && !romajiPrefixes[pending] {
			return append(out, romajiOutput{raw: pending, kana: kana}), ""
		}
		if romajiPrefixes[pending] {
			return out, pending
		}
		if kana, ok := romajiTable[pending]; ok {
			return append(out, romajiOutput{raw: pending, kana: kana}), ""
		}
		// "kk" doubles into a small tsu, "nk" into ん.
		if len(pending) >= 2 {
			c0, c1 := pending[0], pending[1]
			if c0 == c1 && isConsonant(c0) {
				out = append(out, romajiOutput{raw: pending[:1], kana: "っ"})
				pending = pending[1:]
				continue
			}
			if c0 == 'n' && c1 != 'y' {
				out = append(out, romajiOutput{raw: "n", kana: "ん"})
				pending = pending[1:]
				continue
			}
		}
		if len(pending) == 1 {
			return append(out, romajiOutput{raw: pending, kana: pending}), ""
		}
		// Everything but the last letter, then retry the remainder.
		split := len(pending) - 1
		head := pending[:split]
		if kana, ok := romajiTable[head]; ok {
			out = append(out, romajiOutput{raw: head, kana: kana})
		} else {
			out = append(out, romajiOutput{raw: head, kana: head})
		}
		pending = pending[split:]
	}
	return out, ""
}

// flushRomaji converts whatever is pending, turning a lone "n" into ん.
func flushRomaji(pending string) []romajiOutput {
	if pending == "n" {
		return []romajiOutput{{raw: "n", kana: "ん"}}
	}
	out, rest := convertRomaji(pending)
	if rest != "" {
		out = append(out, romajiOutput{raw: rest, kana: rest})
	}
	return out
}
