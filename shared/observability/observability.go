// Package observability wires OpenTelemetry tracing and Prometheus-backed
// metrics for the routing engine.
package observability

import (
	"context"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// SetupTracing initializes OpenTelemetry tracing with stdout exporter (for demo; replace with OTLP in prod)
func SetupTracing(serviceName string) func() {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		log.Fatalf("failed to initialize stdouttrace exporter: %v", err)
	}
	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return func() { _ = provider.Shutdown(context.Background()) }
}

// SetupPrometheusMetrics initializes Prometheus metrics exporter and exposes /metrics endpoint
func SetupPrometheusMetrics(addr string) *metric.MeterProvider {
	exp, err := prometheus.New()
	if err != nil {
		log.Fatalf("failed to initialize prometheus exporter: %v", err)
	}
	mp := metric.NewMeterProvider(metric.WithReader(exp))
	otel.SetMeterProvider(mp)
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(addr, nil)
	}()
	return mp
}

// Metrics holds the routing engine's counters. A nil *Metrics is a valid
// no-op receiver so tests can pass nil without stubbing.
type Metrics struct {
	turnsTotal         otelmetric.Int64Counter
	routeMatched       otelmetric.Int64Counter
	safeNetActivations otelmetric.Int64Counter
	webhooksDiscarded  otelmetric.Int64Counter
}

// NewMetrics registers the engine's instruments against the global meter.
func NewMetrics() *Metrics {
	meter := otel.Meter("chat-router")
	turns, _ := meter.Int64Counter("chat_router_turns_total",
		otelmetric.WithDescription("Turns processed"))
	routes, _ := meter.Int64Counter("chat_router_route_matched_total",
		otelmetric.WithDescription("Winning route per turn"))
	safeNet, _ := meter.Int64Counter("chat_router_safe_net_activations_total",
		otelmetric.WithDescription("Turns recovered by the failure safe-net"))
	discarded, _ := meter.Int64Counter("chat_router_webhooks_discarded_total",
		otelmetric.WithDescription("Inbound webhooks with no routable message"))
	return &Metrics{
		turnsTotal:         turns,
		routeMatched:       routes,
		safeNetActivations: safeNet,
		webhooksDiscarded:  discarded,
	}
}

func (m *Metrics) TurnProcessed(ctx context.Context) {
	if m == nil {
		return
	}
	m.turnsTotal.Add(ctx, 1)
}

func (m *Metrics) RouteMatched(ctx context.Context, route string) {
	if m == nil {
		return
	}
	m.routeMatched.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("route", route)))
}

func (m *Metrics) SafeNetActivated(ctx context.Context) {
	if m == nil {
		return
	}
	m.safeNetActivations.Add(ctx, 1)
}

func (m *Metrics) WebhookDiscarded(ctx context.Context) {
	if m == nil {
		return
	}
	m.webhooksDiscarded.Add(ctx, 1)
}
