// Package converter defines the dictionary backend consumed by the
// conversion session and ships an in-memory reference implementation.
//
// A Converter fills and edits segment.Segments in place. Operations that
// can be declined report false and leave the segments as they were.
package converter

import (
	"context"

	"henkan/internal/composer"
	"henkan/internal/config"
	"henkan/internal/segment"
)

// RequestType selects what a Start* call produces.
type RequestType int

const (
	Conversion RequestType = iota
	Prediction
	Suggestion
	PartialPrediction
	PartialSuggestion
)

func (t RequestType) String() string {
	switch t {
	case Conversion:
		return "conversion"
	case Prediction:
		return "prediction"
	case Suggestion:
		return "suggestion"
	case PartialPrediction:
		return "partial_prediction"
	case PartialSuggestion:
		return "partial_suggestion"
	default:
		return "unknown"
	}
}

// IsPartial reports whether the request only covers the composition up to
// the cursor.
func (t RequestType) IsPartial() bool {
	return t == PartialPrediction || t == PartialSuggestion
}

// Request carries everything a backend call needs besides the segments.
type Request struct {
	Type     RequestType
	Composer composer.Composer
	Config   *config.Config

	// SkipHistory drops the committed context before converting.
	SkipHistory bool

	// CreatePartialCandidates asks for candidates covering a prefix of the
	// composition, used by auto partial suggestion.
	CreatePartialCandidates bool

	ctx context.Context
}

// NewRequest returns a request of type t.
func NewRequest(t RequestType, c composer.Composer, cfg *config.Config) *Request {
	return &Request{Type: t, Composer: c, Config: cfg}
}

// Context returns the request context, never nil.
func (r *Request) Context() context.Context {
	if r == nil || r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext returns a shallow copy of r using ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	r2 := *r
	r2.ctx = ctx
	return &r2
}

// Incognito reports whether learning and personalized results are off.
func (r *Request) Incognito() bool {
	return r != nil && r.Config != nil && (r.Config.Conversion.IncognitoMode || r.Config.Conversion.PresentationMode)
}

// Converter is the segmentation and ranking backend.
type Converter interface {
	StartConversion(req *Request, segs *segment.Segments) bool
	StartPrediction(req *Request, segs *segment.Segments) bool
	StartSuggestion(req *Request, segs *segment.Segments) bool
	StartPartialPrediction(req *Request, segs *segment.Segments) bool
	StartPartialSuggestion(req *Request, segs *segment.Segments) bool

	// FinishConversion learns the committed values and turns the
	// conversion segments into history.
	FinishConversion(req *Request, segs *segment.Segments)
	// CancelConversion drops the conversion segments.
	CancelConversion(segs *segment.Segments)
	// ResetConversion drops every segment.
	ResetConversion(segs *segment.Segments)
	// RevertConversion forgets what the last FinishConversion learned.
	RevertConversion(segs *segment.Segments)
	// ReconstructHistory rebuilds history segments from preceding text.
	ReconstructHistory(segs *segment.Segments, text string) bool

	// CommitSegmentValue moves candidate id of conversion segment i to the
	// front and fixes its value.
	CommitSegmentValue(segs *segment.Segments, i, id int) bool
	// CommitPartialSuggestionSegmentValue submits candidate id of conversion
	// segment i for currentKey and leaves newKey as a fresh segment.
	CommitPartialSuggestionSegmentValue(segs *segment.Segments, i, id int, currentKey, newKey string) bool
	FocusSegmentValue(segs *segment.Segments, i, id int) bool
	// CommitSegments submits the leading len(ids) conversion segments.
	CommitSegments(segs *segment.Segments, ids []int) bool

	ResizeSegment(segs *segment.Segments, req *Request, i, offset int) bool
	ResizeSegmentBoundaries(segs *segment.Segments, req *Request, start int, sizes []int) bool
}

// Operation names used for call accounting, spans and metrics.
const (
	OpStartConversion         = "start_conversion"
	OpStartPrediction         = "start_prediction"
	OpStartSuggestion         = "start_suggestion"
	OpStartPartialPrediction  = "start_partial_prediction"
	OpStartPartialSuggestion  = "start_partial_suggestion"
	OpFinishConversion        = "finish_conversion"
	OpCancelConversion        = "cancel_conversion"
	OpResetConversion         = "reset_conversion"
	OpRevertConversion        = "revert_conversion"
	OpReconstructHistory      = "reconstruct_history"
	OpCommitSegmentValue      = "commit_segment_value"
	OpCommitPartialSuggestion = "commit_partial_suggestion"
	OpFocusSegmentValue       = "focus_segment_value"
	OpCommitSegments          = "commit_segments"
	OpResizeSegment           = "resize_segment"
	OpResizeSegmentBoundaries = "resize_segment_boundaries"
)
