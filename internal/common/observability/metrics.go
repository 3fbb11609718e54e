package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"

	"nomination-relay/internal/common/logger"
)

type Observability struct {
	meterProvider      *metric.MeterProvider
	meter              otelmetric.Meter
	tracer             trace.Tracer
	nominationCounter  otelmetric.Int64Counter
	nominationDuration otelmetric.Float64Histogram
	stepCounter        otelmetric.Int64Counter
}

// New wires an OpenTelemetry meter exported through reg and a tracer taken
// from the global provider. A nil reg uses the prometheus default registerer.
func New(serviceName string, reg promclient.Registerer, log logger.Logger) *Observability {
	o := &Observability{tracer: otel.Tracer(serviceName)}

	opts := []prometheus.Option{}
	if reg != nil {
		opts = append(opts, prometheus.WithRegisterer(reg))
	}
	exporter, err := prometheus.New(opts...)
	if err != nil {
		log.Warn("failed to create prometheus exporter, otel metrics disabled", map[string]interface{}{
			"error": err,
		})
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	nominationCounter, _ := meter.Int64Counter(
		"nominations_processed",
		otelmetric.WithDescription("Number of nominations processed"),
	)

	nominationDuration, _ := meter.Float64Histogram(
		"nominations_duration",
		otelmetric.WithDescription("Nomination processing duration"),
		otelmetric.WithUnit("ms"),
	)

	stepCounter, _ := meter.Int64Counter(
		"nominations_steps",
		otelmetric.WithDescription("Relay step results"),
	)

	o.meterProvider = provider
	o.meter = meter
	o.nominationCounter = nominationCounter
	o.nominationDuration = nominationDuration
	o.stepCounter = stepCounter
	return o
}

// StartSpan starts a span named name as a child of any span in ctx.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) RecordNomination(ctx context.Context, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	if o.nominationCounter != nil {
		o.nominationCounter.Add(ctx, 1, attrs)
	}
	if o.nominationDuration != nil {
		o.nominationDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordStep(ctx context.Context, step, result string) {
	if o == nil || o.stepCounter == nil {
		return
	}
	o.stepCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("step", step),
		attribute.String("result", result),
	))
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.meterProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return o.meterProvider.Shutdown(ctx)
}
