package database

import (
	"context"
	"strings"

	"github.com/dtslogistics/pricing-agent/internal/telemetry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ DatabasePool = (*TracedDB)(nil)

// TracedDB wraps a DatabasePool and records a client span per statement.
type TracedDB struct {
	Pool   DatabasePool
	tracer trace.Tracer
}

// NewTracedDB creates a new traced database connection
func NewTracedDB(pool DatabasePool) *TracedDB {
	return &TracedDB{
		Pool:   pool,
		tracer: telemetry.GetDatabaseTracer(),
	}
}

func (db *TracedDB) start(ctx context.Context, op, sql string) (context.Context, trace.Span) {
	return db.tracer.Start(ctx, "db."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", statementVerb(sql)),
			attribute.String("db.statement", sql),
		))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Query executes a query that returns rows.
func (db *TracedDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := db.start(ctx, "query", sql)
	rows, err := db.Pool.Query(ctx, sql, args...)
	finish(span, err)
	return rows, err
}

// QueryRow executes a query that returns a single row. Scan errors surface
// to the caller, not the span.
func (db *TracedDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	ctx, span := db.start(ctx, "query_row", sql)
	defer span.End()
	return db.Pool.QueryRow(ctx, sql, args...)
}

// Exec executes a statement without returning rows.
func (db *TracedDB) Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error) {
	ctx, span := db.start(ctx, "exec", sql)
	tag, err := db.Pool.Exec(ctx, sql, arguments...)
	if err == nil {
		span.SetAttributes(attribute.Int64("db.rows_affected", tag.RowsAffected()))
	}
	finish(span, err)
	return tag, err
}

func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
