package sqlite

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aanand-mishra/users-api/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/aanand-mishra/users-api/internal/storage/sqlite"

// metrics holds the OpenTelemetry instruments recorded per operation.
type metrics struct {
	count    metric.Int64Counter
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// observer logs, traces and measures data-access operations.
// The zero tracer/meter from the otel globals are no-ops until an SDK
// provider is installed, so instrumentation is always safe to call.
type observer struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics
	slow    time.Duration
}

func newObserver() *observer {
	return &observer{
		logger:  slog.Default(),
		tracer:  otel.Tracer(instrumentationName),
		metrics: newMetrics(otel.Meter(instrumentationName)),
		slow:    200 * time.Millisecond,
	}
}

// Option configures a SQLite store.
type Option func(*SQLite)

// WithLogger sets the logger used for slow and failed operations.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLite) {
		s.obs.logger = logger
	}
}

// WithTracer sets the tracer used for per-operation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *SQLite) {
		s.obs.tracer = tracer
	}
}

// WithMeter sets the meter the query instruments are created on.
func WithMeter(meter metric.Meter) Option {
	return func(s *SQLite) {
		s.obs.metrics = newMetrics(meter)
	}
}

// WithSlowQueryThreshold sets the duration above which an operation is
// logged at WARN.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(s *SQLite) {
		if d > 0 {
			s.obs.slow = d
		}
	}
}

func newMetrics(meter metric.Meter) *metrics {
	count, _ := meter.Int64Counter("users_api.db.query.count",
		metric.WithDescription("Total number of data-access operations executed"),
		metric.WithUnit("{query}"),
	)

	duration, _ := meter.Float64Histogram("users_api.db.query.duration",
		metric.WithDescription("Data-access operation duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	failures, _ := meter.Int64Counter("users_api.db.query.errors",
		metric.WithDescription("Total number of failed data-access operations"),
		metric.WithUnit("{error}"),
	)

	return &metrics{count: count, duration: duration, errors: failures}
}

// start opens a span for op. The returned func must be called exactly
// once with the operation's final error; it ends the span, records the
// metrics and logs slow or failed operations.
func (o *observer) start(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := o.tracer.Start(ctx, "sqlite."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "sqlite"),
			attribute.String("db.operation", op),
		),
	)
	begin := time.Now()

	return ctx, func(err error) {
		elapsed := time.Since(begin)

		// A missing row is an answer, not a failure.
		if errors.Is(err, storage.ErrNotFound) {
			span.SetAttributes(attribute.Bool("db.not_found", true))
			err = nil
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		o.record(ctx, op, elapsed, err)
		o.log(ctx, op, elapsed, err)
	}
}

func (o *observer) record(ctx context.Context, op string, elapsed time.Duration, err error) {
	if o.metrics == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("db.operation", op),
		attribute.String("db.system", "sqlite"),
	)

	if o.metrics.count != nil {
		o.metrics.count.Add(ctx, 1, attrs)
	}
	if o.metrics.duration != nil {
		o.metrics.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
	if err != nil && o.metrics.errors != nil {
		o.metrics.errors.Add(ctx, 1, attrs)
	}
}

func (o *observer) log(ctx context.Context, op string, elapsed time.Duration, err error) {
	if o.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("operation", op),
		slog.Duration("duration", elapsed),
	}

	switch {
	case err != nil:
		o.logger.LogAttrs(ctx, slog.LevelError, "query failed",
			append(attrs, slog.String("error", err.Error()))...)
	case elapsed > o.slow:
		o.logger.LogAttrs(ctx, slog.LevelWarn, "slow query", attrs...)
	default:
		o.logger.LogAttrs(ctx, slog.LevelDebug, "query executed", attrs...)
	}
}
