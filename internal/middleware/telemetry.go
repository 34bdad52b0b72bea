package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// feedQueryAttributes are copied onto the server span when present
var feedQueryAttributes = []string{"sort", "limit", "category", "country", "city"}

// TracingMiddleware starts the server span with otelgin and then decorates
// it with feed query attributes, the cache outcome and handler errors.
// Handlers registered after it see the span in the request context.
func TracingMiddleware(serviceName string) gin.HandlersChain {
	return gin.HandlersChain{otelgin.Middleware(serviceName), feedSpanAttributes}
}

func feedSpanAttributes(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		c.Next()
		return
	}

	for _, name := range feedQueryAttributes {
		if v := c.Query(name); v != "" {
			span.SetAttributes(attribute.String("feed.query."+name, v))
		}
	}
	if c.Query("cursor") != "" {
		span.SetAttributes(attribute.Bool("feed.query.cursor", true))
	}

	c.Next()

	if cacheStatus := c.Writer.Header().Get("X-Cache"); cacheStatus != "" {
		span.SetAttributes(attribute.String("feed.cache", cacheStatus))
	}
	for _, ginErr := range c.Errors {
		if ginErr.Err != nil {
			span.RecordError(ginErr.Err)
			span.SetStatus(codes.Error, ginErr.Error())
		}
	}
}
