// Package metrics wires the process-wide OpenTelemetry meter to a
// Prometheus exporter (grounded on MrWong99-glyphoxa's internal/observe
// provider, trimmed to metrics only) and exposes it plus a liveness probe
// behind a chi router, matching NeboLoop-nebo's handler-factory style for
// small HTTP surfaces.
package metrics

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics is the process-wide meter plus the counters the call session's
// EventSink publishes into (SPEC_FULL.md "Event bus", §5 "Metric counters:
// atomic increments"). It implements callsession.EventSink without
// importing that package, keeping the dependency direction one-way
// (cmd/voicebot wires Metrics into callsession.Deps.Events).
type Metrics struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter

	callsStarted   metric.Int64Counter
	callsEnded     metric.Int64Counter
	bargeIns       metric.Int64Counter
	ticketsCreated metric.Int64Counter
	botSpeaking    metric.Int64Counter
}

// New installs a Prometheus-backed MeterProvider as the global OTel
// provider and registers the counters this service reports.
func New() (*Metrics, error) {
	exporter, err := promexporter.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter("voicedesk")

	m := &Metrics{provider: provider, meter: meter}

	if m.callsStarted, err = meter.Int64Counter("voicedesk_calls_started_total"); err != nil {
		return nil, err
	}
	if m.callsEnded, err = meter.Int64Counter("voicedesk_calls_ended_total"); err != nil {
		return nil, err
	}
	if m.bargeIns, err = meter.Int64Counter("voicedesk_barge_ins_total"); err != nil {
		return nil, err
	}
	if m.ticketsCreated, err = meter.Int64Counter("voicedesk_tickets_created_total"); err != nil {
		return nil, err
	}
	if m.botSpeaking, err = meter.Int64Counter("voicedesk_bot_speaking_transitions_total"); err != nil {
		return nil, err
	}

	return m, nil
}

// Publish implements callsession.EventSink: every event the call session
// emits is folded into the matching counter; unrecognized event types are
// dropped rather than growing an unbounded label set.
func (m *Metrics) Publish(callID string, eventType string, _ interface{}) {
	ctx := context.Background()
	switch eventType {
	case "call_started":
		m.callsStarted.Add(ctx, 1)
	case "call_ended":
		m.callsEnded.Add(ctx, 1)
	case "barge_in":
		m.bargeIns.Add(ctx, 1)
	case "ticket_created":
		m.ticketsCreated.Add(ctx, 1)
	case "bot_speaking", "bot_silent":
		m.botSpeaking.Add(ctx, 1)
	}
}

// Shutdown flushes and closes the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// Router builds the /metrics and /healthz HTTP surface (§6 "metrics
// exposure HTTP endpoint").
func Router() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthzHandler)
	return r
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
