package observability

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"submitter/internal/submit"
)

// InstrumentedTransport wraps a submit.Transport with a span, a latency
// histogram and an error counter per Send.
type InstrumentedTransport struct {
	inner    submit.Transport
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

var _ submit.Transport = (*InstrumentedTransport)(nil)

// NewInstrumentedTransport binds instruments from the global providers, so
// it must be called after Setup.
func NewInstrumentedTransport(inner submit.Transport) (*InstrumentedTransport, error) {
	meter := otel.Meter(scope)

	duration, err := meter.Float64Histogram(
		"submit.transport.duration",
		metric.WithDescription("Duration of document submissions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"submit.transport.errors",
		metric.WithDescription("Number of submissions that failed before a response"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedTransport{
		inner:    inner,
		tracer:   otel.Tracer(scope),
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (t *InstrumentedTransport) Send(ctx context.Context, body []byte, signature string) (int, error) {
	ctx, span := t.tracer.Start(ctx, "submit.Send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("submit.body_bytes", len(body))),
	)
	defer span.End()

	start := time.Now()
	status, err := t.inner.Send(ctx, body, signature)
	elapsed := time.Since(start).Seconds()

	statusAttr := attribute.String("status", statusClass(status, err))
	t.duration.Record(ctx, elapsed, metric.WithAttributes(statusAttr))

	if err != nil {
		t.errors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return status, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", status))
	if status >= 400 {
		span.SetStatus(codes.Error, "status "+strconv.Itoa(status))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return status, nil
}

// statusClass buckets a response into 2xx, 4xx and so on to keep label
// cardinality bounded.
func statusClass(status int, err error) string {
	if err != nil {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
