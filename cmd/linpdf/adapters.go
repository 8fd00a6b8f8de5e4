package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wudi/linpdf/observability"
)

// zapLogger adapts *zap.Logger to observability.Logger so the writer core
// never imports zap directly; only this composition root does.
type zapLogger struct{ l *zap.Logger }

func newZapLogger(l *zap.Logger) observability.Logger { return zapLogger{l: l} }

func toZapFields(fields []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key(), f.Value()))
	}
	return out
}

func (z zapLogger) Debug(msg string, fields ...observability.Field) {
	z.l.Debug(msg, toZapFields(fields)...)
}
func (z zapLogger) Info(msg string, fields ...observability.Field) {
	z.l.Info(msg, toZapFields(fields)...)
}
func (z zapLogger) Warn(msg string, fields ...observability.Field) {
	z.l.Warn(msg, toZapFields(fields)...)
}
func (z zapLogger) Error(msg string, fields ...observability.Field) {
	z.l.Error(msg, toZapFields(fields)...)
}
func (z zapLogger) With(fields ...observability.Field) observability.Logger {
	return zapLogger{l: z.l.With(toZapFields(fields)...)}
}

// otelTracer adapts an OpenTelemetry trace.Tracer to observability.Tracer.
type otelTracer struct{ t trace.Tracer }

func newOtelTracer(t trace.Tracer) observability.Tracer { return otelTracer{t: t} }

func (o otelTracer) StartSpan(ctx context.Context, name string) (context.Context, observability.Span) {
	ctx, span := o.t.Start(ctx, name)
	return ctx, otelSpan{span: span}
}

type otelSpan struct{ span trace.Span }

func (s otelSpan) SetTag(key string, value interface{}) {
	s.span.SetAttributes(attributeFor(key, value))
}
func (s otelSpan) SetError(err error) {
	s.span.RecordError(err)
}
func (s otelSpan) Finish() { s.span.End() }

func attributeFor(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case bool:
		return attribute.Bool(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
