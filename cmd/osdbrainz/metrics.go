package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"osdbrainz/internal/ctrl"
)

// meterName is the instrumentation scope name used for all osdbrainz metrics.
const meterName = "osdbrainz"

// Metrics holds the OpenTelemetry instruments recorded by the daemon loop.
type Metrics struct {
	// Polls counts decoder invocations.
	Polls metric.Int64Counter

	// Commands counts emitted commands. Attribute: command.
	Commands metric.Int64Counter

	// InputEvents counts evdev events translated into pad events.
	InputEvents metric.Int64Counter

	// IPCRequests counts IPC lines handled. Attributes: type, status.
	IPCRequests metric.Int64Counter

	// WSClients tracks connected WebSocket clients.
	WSClients metric.Int64UpDownCounter
}

// NewMetrics creates all instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Polls, err = m.Int64Counter("osdbrainz.decoder.polls",
		metric.WithDescription("Controller snapshots fed to the command decoder."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("osdbrainz.decoder.commands",
		metric.WithDescription("Debounced commands emitted by the decoder."),
	); err != nil {
		return nil, err
	}
	if met.InputEvents, err = m.Int64Counter("osdbrainz.input.events",
		metric.WithDescription("Device input events translated into pad changes."),
	); err != nil {
		return nil, err
	}
	if met.IPCRequests, err = m.Int64Counter("osdbrainz.ipc.requests",
		metric.WithDescription("IPC requests handled."),
	); err != nil {
		return nil, err
	}
	if met.WSClients, err = m.Int64UpDownCounter("osdbrainz.ws.clients",
		metric.WithDescription("Connected WebSocket clients."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordPoll records one decode and, if emitted is not none, the command.
func (m *Metrics) RecordPoll(ctx context.Context, emitted ctrl.Command) {
	if m == nil {
		return
	}
	m.Polls.Add(ctx, 1)
	if emitted != ctrl.None {
		m.Commands.Add(ctx, 1, metric.WithAttributes(attribute.String("command", emitted.String())))
	}
}

// RecordIPC records one handled IPC line.
func (m *Metrics) RecordIPC(ctx context.Context, typ, status string) {
	if m == nil {
		return
	}
	m.IPCRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", typ),
		attribute.String("status", status),
	))
}

// RecordInput records translated device events.
func (m *Metrics) RecordInput(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.InputEvents.Add(ctx, int64(n))
}

// RecordWSClients adjusts the connected client gauge by delta.
func (m *Metrics) RecordWSClients(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.WSClients.Add(ctx, delta)
}

// initMetrics wires an SDK meter provider to a private Prometheus registry
// and returns the instruments, the /metrics handler and a shutdown func.
func initMetrics() (*Metrics, http.Handler, func(context.Context) error, error) {
	reg := prometheus.NewRegistry()

	exp, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return nil, nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))

	met, err := NewMetrics(mp)
	if err != nil {
		return nil, nil, nil, errors.Join(err, mp.Shutdown(context.Background()))
	}

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return met, handler, mp.Shutdown, nil
}
