package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartServerSpan starts a span for one inbound connection on the raw
// serving path.
func StartServerSpan(ctx context.Context, tracer trace.Tracer, peer string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "http serve",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	if peer != "" {
		span.SetAttributes(attribute.String("client.address", peer))
	}
	return ctx, span
}

// StartClientSpan starts a span for one outbound load-test request.
func StartClientSpan(ctx context.Context, tracer trace.Tracer, path string) (context.Context, trace.Span) {
	spanName := "http request"
	if path != "" {
		spanName = "http " + path
	}
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// PathAttr tags a span with the resolved request path.
func PathAttr(path string) attribute.KeyValue {
	return attribute.String("url.path", path)
}

// StatusAttr tags a span with the response status code.
func StatusAttr(status int) attribute.KeyValue {
	return attribute.Int("http.response.status_code", status)
}

// InjectHTTPHeaders injects W3C trace context into outbound HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
