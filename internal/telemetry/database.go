package telemetry

import (
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	dbSystemKey    = "db.system"
	dbTableKey     = "db.table"
	dbOperationKey = "db.operation"
	dbStatementKey = "db.statement"

	maxStatementLength = 500
)

// GORMTracingPlugin returns a GORM plugin that opens a span per statement
func GORMTracingPlugin() gorm.Plugin {
	return &tracingPlugin{
		tracer: otel.Tracer("gorm"),
	}
}

type tracingPlugin struct {
	tracer trace.Tracer
}

func (p *tracingPlugin) Name() string {
	return "telemetry:tracing"
}

func (p *tracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		name     string
		register func(string, func(*gorm.DB)) error
		fn       func(*gorm.DB)
	}{
		{"telemetry:before_query", cb.Query().Before("gorm:query").Register, p.before("SELECT")},
		{"telemetry:before_row", cb.Row().Before("gorm:row").Register, p.before("SELECT")},
		{"telemetry:before_create", cb.Create().Before("gorm:create").Register, p.before("INSERT")},
		{"telemetry:before_update", cb.Update().Before("gorm:update").Register, p.before("UPDATE")},
		{"telemetry:before_delete", cb.Delete().Before("gorm:delete").Register, p.before("DELETE")},
		{"telemetry:after_query", cb.Query().After("gorm:query").Register, p.after},
		{"telemetry:after_row", cb.Row().After("gorm:row").Register, p.after},
		{"telemetry:after_create", cb.Create().After("gorm:create").Register, p.after},
		{"telemetry:after_update", cb.Update().After("gorm:update").Register, p.after},
		{"telemetry:after_delete", cb.Delete().After("gorm:delete").Register, p.after},
	}

	for _, h := range hooks {
		if err := h.register(h.name, h.fn); err != nil {
			return fmt.Errorf("failed to register %s callback: %w", h.name, err)
		}
	}
	return nil
}

func (p *tracingPlugin) before(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}

		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		_, span := p.tracer.Start(ctx, "db."+strings.ToLower(operation),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String(dbSystemKey, db.Dialector.Name()),
				attribute.String(dbTableKey, table),
				attribute.String(dbOperationKey, operation),
			),
		)

		db.InstanceSet("otel:span", span)
		db.InstanceSet("otel:startTime", time.Now())
	}
}

func (p *tracingPlugin) after(db *gorm.DB) {
	spanRaw, exists := db.InstanceGet("otel:span")
	if !exists {
		return
	}

	span, ok := spanRaw.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if startRaw, exists := db.InstanceGet("otel:startTime"); exists {
		if start, ok := startRaw.(time.Time); ok {
			span.SetAttributes(attribute.Int64("db.duration_ms", time.Since(start).Milliseconds()))
		}
	}

	if sql := db.Statement.SQL.String(); sql != "" {
		if len(sql) > maxStatementLength {
			sql = sql[:maxStatementLength] + "... (truncated)"
		}
		span.SetAttributes(attribute.String(dbStatementKey, sql))
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))

	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
}
