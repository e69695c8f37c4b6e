package ime

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"henkan/internal/conversion"
	"henkan/internal/converter"
	"henkan/internal/logging"
	"henkan/internal/usagestats"
)

func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *usagestats.Memory) {
	t.Helper()
	lex, err := converter.NewLexicon(converter.BuiltinData())
	require.NoError(t, err)

	stats := usagestats.NewMemory()
	opts = append([]EngineOption{
		WithEngineStats(stats),
		WithEngineLogger(logging.Discard()),
	}, opts...)
	return NewEngine(lex, nil, opts...), stats
}

func sendText(t *testing.T, e *Engine, id, text string) *Output {
	t.Helper()
	var out *Output
	for _, r := range text {
		var err error
		out, err = e.SendKey(context.Background(), id, NewKey(r))
		require.NoError(t, err)
	}
	return out
}

// =============================================================================
// Session lifecycle
// =============================================================================

func TestEngineSessions(t *testing.T) {
	e, stats := newTestEngine(t)

	a := e.CreateSession()
	b := e.CreateSession()
	assert.NotEqual(t, a, b)
	assert.Len(t, e.Sessions(), 2)
	assert.EqualValues(t, 2, stats.Count(usagestats.SessionCreated))

	require.NoError(t, e.DeleteSession(a))
	assert.Equal(t, []string{b}, e.Sessions())
	assert.EqualValues(t, 1, stats.Count(usagestats.SessionDeleted))

	err := e.DeleteSession(a)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = e.SendKey(context.Background(), a, NewKey('a'))
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = e.SendCommand(context.Background(), a, SessionCommand{Type: CommandTypeSubmit})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, e.SetCapability(a, conversion.DeletePrecedingText), ErrSessionNotFound)
	assert.ErrorIs(t, e.SetClientContext(a, conversion.ClientContext{}), ErrSessionNotFound)
}

func TestEngineRejectsEmptyKey(t *testing.T) {
	e, _ := newTestEngine(t)
	id := e.CreateSession()

	_, err := e.SendKey(context.Background(), id, KeyEvent{})
	assert.ErrorIs(t, err, ErrNoKeyEvent)
}

func TestEngineConvertAndCommit(t *testing.T) {
	e, stats := newTestEngine(t)
	id := e.CreateSession()

	out := sendText(t, e, id, "ねこ")
	assert.Equal(t, id, out.ID)

	out, err := e.SendKey(context.Background(), id, NewSpecialKey(KeySpace, 0))
	require.NoError(t, err)
	assert.Equal(t, "conversion", out.Status)

	out, err = e.SendCommand(context.Background(), id, SessionCommand{Type: CommandTypeSubmit})
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Equal(t, "猫", out.Result.Value)

	assert.EqualValues(t, 4, stats.Count(usagestats.SessionAllEvent))
	assert.EqualValues(t, 4, stats.Timing(usagestats.ElapsedTimeUSec).Count)
}

// =============================================================================
// Configuration
// =============================================================================

func TestEngineSetConfigBroadcasts(t *testing.T) {
	e, stats := newTestEngine(t)
	id := e.CreateSession()

	cfg := e.Config().Clone()
	cfg.Conversion.UseAutoConversion = true
	e.SetConfig(cfg)

	assert.True(t, e.Config().Conversion.UseAutoConversion)
	assert.EqualValues(t, 1, stats.Count(usagestats.SetConfig))

	sendText(t, e, id, "あい")
	out := sendText(t, e, id, "。")
	assert.Equal(t, "conversion", out.Status)

	other := e.CreateSession()
	sendText(t, e, other, "あい")
	out = sendText(t, e, other, "。")
	assert.Equal(t, "conversion", out.Status, "new sessions start with the engine config")
}

func TestEngineCommandCandidateBroadcasts(t *testing.T) {
	e, _ := newTestEngine(t)
	a := e.CreateSession()
	b := e.CreateSession()

	sendText(t, e, a, "ひみつ")
	_, err := e.SendKey(context.Background(), a, NewSpecialKey(KeySpace, 0))
	require.NoError(t, err)
	_, err = e.SendCommand(context.Background(), a, SessionCommand{Type: CommandTypeSelectCandidate, ID: 2})
	require.NoError(t, err)
	out, err := e.SendCommand(context.Background(), a, SessionCommand{Type: CommandTypeSubmit})
	require.NoError(t, err)
	assert.Nil(t, out.Result)

	assert.True(t, e.Config().Conversion.IncognitoMode)

	h, err := e.lookup(b)
	require.NoError(t, err)
	assert.True(t, h.session.Config().Conversion.IncognitoMode)
}

// =============================================================================
// Tracing
// =============================================================================

func TestEngineSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	e, _ := newTestEngine(t, WithTracer(tp.Tracer("test")))
	id := e.CreateSession()

	_, err := e.SendKey(context.Background(), id, NewSpecialKey(KeyEnter, 0))
	require.NoError(t, err)
	_, err = e.SendCommand(context.Background(), id, SessionCommand{Type: CommandTypeRevert})
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "ime.SendKey", spans[0].Name)
	assert.Equal(t, "ime.SendCommand", spans[1].Name)

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[0].Attributes {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, id, attrs["ime.session_id"].AsString())
	assert.Equal(t, "Enter", attrs["ime.key.special"].AsString())
	assert.False(t, attrs["ime.consumed"].AsBool())
	assert.Equal(t, "precomposition", attrs["ime.status"].AsString())
}

// =============================================================================
// Concurrency
// =============================================================================

func TestEngineConcurrentSessions(t *testing.T) {
	e, stats := newTestEngine(t)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := e.CreateSession()
			ctx := context.Background()
			for _, r := range "ねこ" {
				if _, err := e.SendKey(ctx, id, NewKey(r)); err != nil {
					return
				}
			}
			if _, err := e.SendKey(ctx, id, NewSpecialKey(KeySpace, 0)); err != nil {
				return
			}
			out, err := e.SendKey(ctx, id, NewSpecialKey(KeyEnter, 0))
			if err != nil || out.Result == nil {
				return
			}
			results[i] = out.Result.Value
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, "猫", got)
	}
	assert.Len(t, e.Sessions(), workers)
	assert.EqualValues(t, workers*4, stats.Count(usagestats.SessionAllEvent))
}
