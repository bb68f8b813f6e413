package session

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/krakenws/errs"
	"github.com/coachpo/krakenws/internal/telemetry"
)

const (
	stateConnected    = "connected"
	stateReconnected  = "reconnected"
	stateDisconnected = "disconnected"
)

type sessionMetrics struct {
	environment string
	venue       string

	transitions metric.Int64Counter
}

func newSessionMetrics(meter metric.Meter) *sessionMetrics {
	if meter == nil {
		meter = otel.Meter("krakenws.session")
	}
	sm := &sessionMetrics{
		environment: telemetry.Environment(),
		venue:       errs.DefaultVenue,
	}
	sm.transitions, _ = meter.Int64Counter(telemetry.MetricReconnects,
		metric.WithDescription("Websocket connection state transitions"),
		metric.WithUnit("{transition}"))
	return sm
}

func (sm *sessionMetrics) record(ctx context.Context, state string) {
	if sm == nil || sm.transitions == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	attrs := telemetry.ConnectionAttributes(sm.environment, sm.venue, state)
	sm.transitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}
