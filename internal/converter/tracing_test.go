package converter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"henkan/internal/segment"
)

func newTestTracer(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

type recordedCall struct {
	op string
	ok bool
}

type fakeObserver struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeObserver) ObserveBackendCall(_ context.Context, op string, ok bool, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedCall{op: op, ok: ok})
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestWithTracingSpans(t *testing.T) {
	tp, exp := newTestTracer(t)
	l := newLexicon(t)
	c := WithTracing(l, tp.Tracer("test"))
	segs := &segment.Segments{}

	req := NewRequest(Conversion, composerWith("ねこ"), nil)
	require.True(t, c.StartConversion(req, segs))
	assert.False(t, c.StartPrediction(NewRequest(Prediction, composerWith("ぬ"), nil), segs))
	c.CancelConversion(segs)

	spans := exp.GetSpans()
	require.Len(t, spans, 3)

	assert.Equal(t, "converter.start_conversion", spans[0].Name)
	v, ok := attrValue(spans[0].Attributes, "henkan.request.type")
	require.True(t, ok)
	assert.Equal(t, "conversion", v.AsString())
	v, ok = attrValue(spans[0].Attributes, "henkan.ok")
	require.True(t, ok)
	assert.True(t, v.AsBool())
	assert.Equal(t, codes.Unset, spans[0].Status.Code)

	assert.Equal(t, "converter.start_prediction", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)

	assert.Equal(t, "converter.cancel_conversion", spans[2].Name)

	// The wrapped backend still saw every call.
	assert.Equal(t, 1, l.CallCount(OpStartConversion))
	assert.Equal(t, 1, l.CallCount(OpCancelConversion))
}

func TestWithTracingParentFromRequest(t *testing.T) {
	tp, exp := newTestTracer(t)
	tracer := tp.Tracer("test")
	c := WithTracing(newLexicon(t), tracer)

	ctx, parent := tracer.Start(context.Background(), "key_event")
	req := NewRequest(Conversion, composerWith("ねこ"), nil).WithContext(ctx)
	require.True(t, c.StartConversion(req, &segment.Segments{}))
	parent.End()

	spans := exp.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, parent.SpanContext().SpanID(), spans[0].Parent.SpanID())
}

func TestWithObserver(t *testing.T) {
	obs := &fakeObserver{}
	l := newLexicon(t)
	l.SetFailure(OpResizeSegment, true)
	c := WithObserver(l, obs)
	segs := &segment.Segments{}

	req := NewRequest(Conversion, composerWith("かまぼこの"), nil)
	require.True(t, c.StartConversion(req, segs))
	assert.False(t, c.ResizeSegment(segs, req, 0, 1))
	require.True(t, c.CommitSegmentValue(segs, 0, 0))

	assert.Equal(t, []recordedCall{
		{op: OpStartConversion, ok: true},
		{op: OpResizeSegment, ok: false},
		{op: OpCommitSegmentValue, ok: true},
	}, obs.calls)
}

func TestDecoratorsCompose(t *testing.T) {
	tp, exp := newTestTracer(t)
	obs := &fakeObserver{}
	c := WithObserver(WithTracing(newLexicon(t), tp.Tracer("test")), obs)

	segs := &segment.Segments{}
	req := NewRequest(Conversion, composerWith("ねこ"), nil)
	require.True(t, c.StartConversion(req, segs))
	c.FinishConversion(req, segs)

	assert.Len(t, exp.GetSpans(), 2)
	assert.Len(t, obs.calls, 2)
	assert.Equal(t, "猫", segs.HistoryText())
}
