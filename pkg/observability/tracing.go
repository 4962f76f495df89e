// Package observability provides distributed tracing for the diarization
// pipeline. Spans are emitted through the OpenTelemetry API; without an SDK
// configured by the host process they are no-ops.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for mbud operations.
	TracerName = "mbud"
)

// Span attribute keys
const (
	AttrMeetingID     = "meeting_id"
	AttrAudioPath     = "audio_path"
	AttrOutDir        = "out_dir"
	AttrStage         = "stage"
	AttrDurationMs    = "duration_ms"
	AttrSegments      = "segments"
	AttrSpeakers      = "speakers"
	AttrPayloadSource = "payload_source"
	AttrErrorCode     = "error_code"
	AttrFormat        = "format"
	AttrFilesChanged  = "files_changed"
)

// Span names
const (
	SpanProcessMeeting = "diarize.process_meeting"
	SpanLaunch         = "diarize.launch"
	SpanResolve        = "diarize.resolve"
	SpanPersist        = "diarize.persist"
	SpanExportSync     = "export.sync"
)

// Tracer provides distributed tracing for diarization jobs.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new mbud tracer.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartMeetingSpan starts a root span for processing one meeting's audio.
func (t *Tracer) StartMeetingSpan(ctx context.Context, meetingID, audioPath string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, SpanProcessMeeting,
		trace.WithAttributes(
			attribute.String(AttrMeetingID, meetingID),
		),
	)
	if audioPath != "" {
		span.SetAttributes(attribute.String(AttrAudioPath, audioPath))
	}
	return ctx, span
}

// StartStageSpan starts a span for one pipeline stage (launch, resolve,
// persist).
func (t *Tracer) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, fmt.Sprintf("diarize.%s", stage),
		trace.WithAttributes(
			attribute.String(AttrStage, stage),
		),
	)
}

// StartExportSpan starts a span for rewriting a meeting's export files.
func (t *Tracer) StartExportSpan(ctx context.Context, meetingID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanExportSync,
		trace.WithAttributes(
			attribute.String(AttrMeetingID, meetingID),
		),
	)
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetMeetingInfo sets meeting-related attributes on the span.
func (h *SpanHelper) SetMeetingInfo(meetingID, audioPath, outDir string) {
	h.span.SetAttributes(attribute.String(AttrMeetingID, meetingID))
	if audioPath != "" {
		h.span.SetAttributes(attribute.String(AttrAudioPath, audioPath))
	}
	if outDir != "" {
		h.span.SetAttributes(attribute.String(AttrOutDir, outDir))
	}
}

// SetResultCounts sets segment and speaker counts on the span.
func (h *SpanHelper) SetResultCounts(segments, speakers int) {
	h.span.SetAttributes(
		attribute.Int(AttrSegments, segments),
		attribute.Int(AttrSpeakers, speakers),
	)
}

// SetPayloadSource records where the result payload came from (stdout or
// file).
func (h *SpanHelper) SetPayloadSource(source string) {
	h.span.SetAttributes(attribute.String(AttrPayloadSource, source))
}

// SetDuration sets the duration attribute.
func (h *SpanHelper) SetDuration(durationMs int64) {
	h.span.SetAttributes(attribute.Int64(AttrDurationMs, durationMs))
}

// SetFilesChanged records how many export files a rewrite touched.
func (h *SpanHelper) SetFilesChanged(n int) {
	h.span.SetAttributes(attribute.Int(AttrFilesChanged, n))
}

// SetError records an error with its taxonomy code on the span.
func (h *SpanHelper) SetError(err error, errorCode string) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(attribute.String(AttrErrorCode, errorCode))
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span.
func (h *SpanHelper) AddEvent(name string, attrs ...attribute.KeyValue) {
	h.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// GetSpanID returns the span ID from the context.
func GetSpanID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasSpanID() {
		return span.SpanContext().SpanID().String()
	}
	return ""
}

// TraceFields extracts trace identifiers for correlation, e.g. into job log
// entries.
func TraceFields(ctx context.Context) map[string]string {
	fields := make(map[string]string)
	if traceID := GetTraceID(ctx); traceID != "" {
		fields["trace_id"] = traceID
	}
	if spanID := GetSpanID(ctx); spanID != "" {
		fields["span_id"] = spanID
	}
	return fields
}
