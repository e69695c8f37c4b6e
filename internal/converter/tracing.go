package converter

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"henkan/internal/segment"
)

// Observer receives one notification per backend call. metrics.Metrics
// implements it.
type Observer interface {
	ObserveBackendCall(ctx context.Context, op string, ok bool, d time.Duration)
}

// instrumented wraps a Converter with spans and call observation. Either
// hook may be nil.
type instrumented struct {
	next   Converter
	tracer trace.Tracer
	obs    Observer
}

var _ Converter = (*instrumented)(nil)

// WithTracing returns a Converter that opens one span per call on c. Spans
// of declined calls carry an error status.
func WithTracing(c Converter, tracer trace.Tracer) Converter {
	return &instrumented{next: c, tracer: tracer}
}

// WithObserver returns a Converter that reports the outcome and latency of
// every call on c to obs.
func WithObserver(c Converter, obs Observer) Converter {
	return &instrumented{next: c, obs: obs}
}

func requestAttrs(req *Request) []attribute.KeyValue {
	if req == nil {
		return nil
	}
	attrs := []attribute.KeyValue{
		attribute.String("henkan.request.type", req.Type.String()),
		attribute.Bool("henkan.request.incognito", req.Incognito()),
	}
	if req.Composer != nil {
		attrs = append(attrs, attribute.Int("henkan.composition.length", req.Composer.Length()))
	}
	return attrs
}

func (t *instrumented) call(ctx context.Context, op string, attrs []attribute.KeyValue, fn func() bool) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	var span trace.Span
	if t.tracer != nil {
		ctx, span = t.tracer.Start(ctx, "converter."+op, trace.WithAttributes(attrs...))
	}

	ok := fn()

	if span != nil {
		span.SetAttributes(attribute.Bool("henkan.ok", ok))
		if !ok {
			span.SetStatus(codes.Error, op+" declined")
		}
		span.End()
	}
	if t.obs != nil {
		t.obs.ObserveBackendCall(ctx, op, ok, time.Since(start))
	}
	return ok
}

func (t *instrumented) start(op string, req *Request, fn func() bool) bool {
	return t.call(req.Context(), op, requestAttrs(req), fn)
}

func (t *instrumented) StartConversion(req *Request, segs *segment.Segments) bool {
	return t.start(OpStartConversion, req, func() bool { return t.next.StartConversion(req, segs) })
}

func (t *instrumented) StartPrediction(req *Request, segs *segment.Segments) bool {
	return t.start(OpStartPrediction, req, func() bool { return t.next.StartPrediction(req, segs) })
}

func (t *instrumented) StartSuggestion(req *Request, segs *segment.Segments) bool {
	return t.start(OpStartSuggestion, req, func() bool { return t.next.StartSuggestion(req, segs) })
}

func (t *instrumented) StartPartialPrediction(req *Request, segs *segment.Segments) bool {
	return t.start(OpStartPartialPrediction, req, func() bool { return t.next.StartPartialPrediction(req, segs) })
}

func (t *instrumented) StartPartialSuggestion(req *Request, segs *segment.Segments) bool {
	return t.start(OpStartPartialSuggestion, req, func() bool { return t.next.StartPartialSuggestion(req, segs) })
}

func (t *instrumented) FinishConversion(req *Request, segs *segment.Segments) {
	t.start(OpFinishConversion, req, func() bool {
		t.next.FinishConversion(req, segs)
		return true
	})
}

func (t *instrumented) CancelConversion(segs *segment.Segments) {
	t.call(context.Background(), OpCancelConversion, nil, func() bool {
		t.next.CancelConversion(segs)
		return true
	})
}

func (t *instrumented) ResetConversion(segs *segment.Segments) {
	t.call(context.Background(), OpResetConversion, nil, func() bool {
		t.next.ResetConversion(segs)
		return true
	})
}

func (t *instrumented) RevertConversion(segs *segment.Segments) {
	t.call(context.Background(), OpRevertConversion, nil, func() bool {
		t.next.RevertConversion(segs)
		return true
	})
}

func (t *instrumented) ReconstructHistory(segs *segment.Segments, text string) bool {
	return t.call(context.Background(), OpReconstructHistory, nil, func() bool {
		return t.next.ReconstructHistory(segs, text)
	})
}

func segmentAttrs(i, id int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("henkan.segment.index", i),
		attribute.Int("henkan.candidate.id", id),
	}
}

func (t *instrumented) CommitSegmentValue(segs *segment.Segments, i, id int) bool {
	return t.call(context.Background(), OpCommitSegmentValue, segmentAttrs(i, id), func() bool {
		return t.next.CommitSegmentValue(segs, i, id)
	})
}

func (t *instrumented) CommitPartialSuggestionSegmentValue(segs *segment.Segments, i, id int, currentKey, newKey string) bool {
	return t.call(context.Background(), OpCommitPartialSuggestion, segmentAttrs(i, id), func() bool {
		return t.next.CommitPartialSuggestionSegmentValue(segs, i, id, currentKey, newKey)
	})
}

func (t *instrumented) FocusSegmentValue(segs *segment.Segments, i, id int) bool {
	return t.call(context.Background(), OpFocusSegmentValue, segmentAttrs(i, id), func() bool {
		return t.next.FocusSegmentValue(segs, i, id)
	})
}

func (t *instrumented) CommitSegments(segs *segment.Segments, ids []int) bool {
	attrs := []attribute.KeyValue{attribute.Int("henkan.segment.count", len(ids))}
	return t.call(context.Background(), OpCommitSegments, attrs, func() bool {
		return t.next.CommitSegments(segs, ids)
	})
}

func (t *instrumented) ResizeSegment(segs *segment.Segments, req *Request, i, offset int) bool {
	attrs := append(requestAttrs(req),
		attribute.Int("henkan.segment.index", i),
		attribute.Int("henkan.resize.offset", offset),
	)
	return t.call(req.Context(), OpResizeSegment, attrs, func() bool {
		return t.next.ResizeSegment(segs, req, i, offset)
	})
}

func (t *instrumented) ResizeSegmentBoundaries(segs *segment.Segments, req *Request, start int, sizes []int) bool {
	attrs := append(requestAttrs(req),
		attribute.Int("henkan.segment.index", start),
		attribute.IntSlice("henkan.resize.sizes", sizes),
	)
	return t.call(req.Context(), OpResizeSegmentBoundaries, attrs, func() bool {
		return t.next.ResizeSegmentBoundaries(segs, req, start, sizes)
	})
}
