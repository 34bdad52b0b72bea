package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FeedPageAttrs describes one feed page computation
type FeedPageAttrs struct {
	Sort      string
	Limit     int
	HasCursor bool
	Search    bool
}

// TraceFeedPage starts a span around building one feed page
func TraceFeedPage(ctx context.Context, attrs FeedPageAttrs) (context.Context, trace.Span) {
	return otel.Tracer("feed").Start(ctx, "feed.page",
		trace.WithAttributes(
			attribute.String("feed.sort", attrs.Sort),
			attribute.Int("feed.limit", attrs.Limit),
			attribute.Bool("feed.has_cursor", attrs.HasCursor),
			attribute.Bool("feed.search", attrs.Search),
		),
	)
}

// RecordFeedPage annotates a feed span with the page it produced
func RecordFeedPage(span trace.Span, boosted, organic int, hasMore bool) {
	span.SetAttributes(
		attribute.Int("feed.boosted_count", boosted),
		attribute.Int("feed.organic_count", organic),
		attribute.Bool("feed.has_more", hasMore),
	)
	span.SetStatus(codes.Ok, "")
}

// TraceCacheCall creates a span for a response cache operation (get, set)
func TraceCacheCall(ctx context.Context, backend, operation, key string) (context.Context, trace.Span) {
	return otel.Tracer("cache").Start(ctx, "cache."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.backend", backend),
			attribute.String("cache.operation", operation),
			attribute.String("cache.key", key),
		),
	)
}

// RecordCacheResult marks a cache span as a hit or miss
func RecordCacheResult(span trace.Span, hit bool, sizeBytes int) {
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if sizeBytes > 0 {
		span.SetAttributes(attribute.Int("cache.size_bytes", sizeBytes))
	}
}

// RecordError records err on span and marks it failed
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}
