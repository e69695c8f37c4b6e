package schemavalidation

import (
	"context"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"henkan/internal/config"
	"henkan/internal/conversion"
	"henkan/internal/converter"
	"henkan/internal/ime"
	"henkan/internal/logging"
	"henkan/internal/usagestats"
)

func outputValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := Output()
	require.NoError(t, err)
	return v
}

func newEngine(t *testing.T) *ime.Engine {
	t.Helper()
	lex, err := converter.NewLexicon(converter.BuiltinData())
	require.NoError(t, err)
	return ime.NewEngine(lex, nil,
		ime.WithEngineStats(usagestats.Nop{}),
		ime.WithEngineLogger(logging.Discard()),
	)
}

// =============================================================================
// Session traffic
// =============================================================================

func TestSessionOutputMatchesSchema(t *testing.T) {
	v := outputValidator(t)
	e := newEngine(t)
	id := e.CreateSession()
	ctx := context.Background()

	check := func(out *ime.Output, err error) {
		t.Helper()
		require.NoError(t, err)
		require.NoError(t, v.Validate(out))
	}

	require.NoError(t, e.SetCapability(id, conversion.DeletePrecedingText))

	for _, r := range "neko" {
		check(e.SendKey(ctx, id, ime.NewKey(r)))
	}
	check(e.SendKey(ctx, id, ime.NewSpecialKey(ime.KeySpace, 0)))
	check(e.SendKey(ctx, id, ime.NewSpecialKey(ime.KeySpace, 0)))
	check(e.SendKey(ctx, id, ime.NewSpecialKey(ime.KeyF7, 0)))
	check(e.SendKey(ctx, id, ime.NewSpecialKey(ime.KeyEnter, 0)))

	check(e.SendCommand(ctx, id, ime.SessionCommand{Type: ime.CommandTypeUndo}))

	for _, r := range "himitu" {
		check(e.SendKey(ctx, id, ime.NewKey(r)))
	}
	check(e.SendCommand(ctx, id, ime.SessionCommand{Type: ime.CommandTypeSubmit}))

	check(e.SendKey(ctx, id, ime.NewSpecialKey(ime.KeyEscape, 0)))
}

func TestConfigInOutputMatchesSchema(t *testing.T) {
	v := outputValidator(t)
	e := newEngine(t)
	id := e.CreateSession()
	ctx := context.Background()

	for _, r := range "himitu" {
		_, err := e.SendKey(ctx, id, ime.NewKey(r))
		require.NoError(t, err)
	}
	_, err := e.SendKey(ctx, id, ime.NewSpecialKey(ime.KeySpace, 0))
	require.NoError(t, err)
	_, err = e.SendCommand(ctx, id, ime.SessionCommand{Type: ime.CommandTypeSelectCandidate, ID: 2})
	require.NoError(t, err)
	out, err := e.SendCommand(ctx, id, ime.SessionCommand{Type: ime.CommandTypeSubmit})
	require.NoError(t, err)

	require.NotNil(t, out.Config)
	assert.Equal(t, config.Version, out.Config.Version)
	assert.NoError(t, v.Validate(out))
}

// =============================================================================
// Rejections
// =============================================================================

func TestRejectsMalformedOutput(t *testing.T) {
	v := outputValidator(t)

	cases := []struct {
		name string
		doc  string
	}{
		{"missing id", `{"consumed":true,"status":"composition","mode":"hiragana","state":"composition"}`},
		{"unknown status", `{"id":"a","consumed":true,"status":"typing","mode":"hiragana","state":"composition"}`},
		{"positive deletion offset", `{"id":"a","consumed":true,"status":"composition","mode":"hiragana","state":"composition","deletion_range":{"offset":2,"length":2}}`},
		{"unknown field", `{"id":"a","consumed":true,"status":"composition","mode":"hiragana","state":"composition","extra":1}`},
		{"bad annotation", `{"id":"a","consumed":true,"status":"composition","mode":"hiragana","state":"composition","preedit":{"segments":[{"key":"a","value":"a","value_length":1,"annotation":"bold"}],"cursor":1}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateJSON([]byte(tc.doc))
			require.Error(t, err)
			var verr *jsonschema.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestValidateJSONRejectsGarbage(t *testing.T) {
	v := outputValidator(t)
	assert.Error(t, v.ValidateJSON([]byte("{")))
}

func TestCompileRejectsBadSchema(t *testing.T) {
	_, err := Compile("https://henkan.dev/schema/bad.json", []byte(`{"type": 12}`))
	assert.Error(t, err)
}
