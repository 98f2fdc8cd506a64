package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider   *metric.MeterProvider
	meter           otelmetric.Meter
	companyCounter  otelmetric.Int64Counter
	companyDuration otelmetric.Float64Histogram
	runDuration     otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	companyCounter, _ := meter.Int64Counter(
		"settlement.companies.processed",
		otelmetric.WithDescription("Number of companies processed"),
	)

	companyDuration, _ := meter.Float64Histogram(
		"settlement.company.duration",
		otelmetric.WithDescription("Single company settlement duration"),
		otelmetric.WithUnit("ms"),
	)

	runDuration, _ := meter.Float64Histogram(
		"settlement.run.duration",
		otelmetric.WithDescription("Full daily run duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:   provider,
		meter:           meter,
		companyCounter:  companyCounter,
		companyDuration: companyDuration,
		runDuration:     runDuration,
	}
}

func (o *Observability) RecordCompanyProcessed(ctx context.Context, status string) {
	if o.companyCounter != nil {
		o.companyCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordCompanyDuration(ctx context.Context, duration time.Duration, status string) {
	if o.companyDuration != nil {
		o.companyDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordRunDuration(ctx context.Context, duration time.Duration, status string) {
	if o.runDuration != nil {
		o.runDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
