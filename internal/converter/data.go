package converter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"henkan/internal/segment"
)

// Data is the serialized form of a Lexicon.
type Data struct {
	Entries   []Entry          `toml:"entry" json:"entries" yaml:"entries"`
	ZeroQuery []ZeroQueryEntry `toml:"zero_query" json:"zero_query" yaml:"zero_query"`
	Commands  []CommandEntry   `toml:"command" json:"commands" yaml:"commands"`
}

// Entry maps a reading to its values, best first.
type Entry struct {
	Reading string   `toml:"reading" json:"reading" yaml:"reading"`
	Values  []string `toml:"values" json:"values" yaml:"values"`
}

// ZeroQueryEntry lists suggestions offered after After was committed.
type ZeroQueryEntry struct {
	After  string   `toml:"after" json:"after" yaml:"after"`
	Values []string `toml:"values" json:"values" yaml:"values"`
}

// CommandEntry offers a command candidate for a reading.
type CommandEntry struct {
	Reading string `toml:"reading" json:"reading" yaml:"reading"`
	Value   string `toml:"value" json:"value" yaml:"value"`
	// Command is one of the segment.Command names, e.g. "enable_incognito_mode".
	Command string `toml:"command" json:"command" yaml:"command"`
}

// ParseCommand parses the names produced by segment.Command.String.
func ParseCommand(s string) (segment.Command, error) {
	for _, c := range []segment.Command{
		segment.DefaultCommand,
		segment.EnableIncognitoMode,
		segment.DisableIncognitoMode,
		segment.EnablePresentationMode,
		segment.DisablePresentationMode,
	} {
		if c.String() == s {
			return c, nil
		}
	}
	return segment.DefaultCommand, fmt.Errorf("unknown command %q", s)
}

// LoadData reads lexicon data from a TOML, YAML or JSON file.
func LoadData(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}

	var data Data
	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(raw), &data); err != nil {
			return nil, fmt.Errorf("decode TOML lexicon: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode YAML lexicon: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode JSON lexicon: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported lexicon format: %s", path)
	}
	return &data, nil
}

// LoadLexicon reads a lexicon file. An empty path selects the built-in table.
func LoadLexicon(path string) (*Lexicon, error) {
	if path == "" {
		return NewLexicon(BuiltinData())
	}
	data, err := LoadData(path)
	if err != nil {
		return nil, err
	}
	return NewLexicon(data)
}

// BuiltinData is a small table for demos and tests.
func BuiltinData() *Data {
	return &Data{
		Entries: []Entry{
			{Reading: "かまぼこ", Values: []string{"蒲鉾", "かまぼこ"}},
			{Reading: "の", Values: []string{"の", "之", "乃"}},
			{Reading: "いんぼう", Values: []string{"陰謀", "印房", "インボウ"}},
			{Reading: "きょう", Values: []string{"今日", "京", "強"}},
			{Reading: "は", Values: []string{"は", "葉", "歯"}},
			{Reading: "いい", Values: []string{"良い", "いい", "言い"}},
			{Reading: "てんき", Values: []string{"天気", "転機", "電気"}},
			{Reading: "てんきよほう", Values: []string{"天気予報"}},
			{Reading: "わたし", Values: []string{"私", "渡し"}},
			{Reading: "ねこ", Values: []string{"猫", "ネコ"}},
			{Reading: "ねこじた", Values: []string{"猫舌"}},
			{Reading: "にほん", Values: []string{"日本", "二本"}},
			{Reading: "にほんご", Values: []string{"日本語"}},
			{Reading: "かな", Values: []string{"仮名", "かな", "カナ"}},
			{Reading: "かんじ", Values: []string{"漢字", "感じ", "幹事"}},
			{Reading: "へんかん", Values: []string{"変換", "返還", "偏官"}},
			{Reading: "ありがとう", Values: []string{"ありがとう", "有難う"}},
		},
		ZeroQuery: []ZeroQueryEntry{
			{After: "今日", Values: []string{"は", "も", "の"}},
			{After: "ありがとう", Values: []string{"ございます"}},
		},
		Commands: []CommandEntry{
			{Reading: "ひみつ", Value: "シークレットモードをオン", Command: "enable_incognito_mode"},
			{Reading: "ひみつ", Value: "シークレットモードをオフ", Command: "disable_incognito_mode"},
			{Reading: "ぷれぜんてーしょん", Value: "プレゼンテーションモードをオン", Command: "enable_presentation_mode"},
			{Reading: "ぷれぜんてーしょん", Value: "プレゼンテーションモードをオフ", Command: "disable_presentation_mode"},
		},
	}
}
