package router

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/coachpo/krakenws/errs"
	"github.com/coachpo/krakenws/internal/telemetry"
)

type routerMetrics struct {
	environment string
	venue       string

	framesDecoded   metric.Int64Counter
	decodeErrors    metric.Int64Counter
	repliesResolved metric.Int64Counter
	repliesOrphaned metric.Int64Counter
	pending         metric.Int64UpDownCounter
	replyLatency    metric.Float64Histogram
}

func newRouterMetrics(meter metric.Meter) *routerMetrics {
	if meter == nil {
		meter = otel.Meter("krakenws.router")
	}
	rm := &routerMetrics{
		environment: telemetry.Environment(),
		venue:       errs.DefaultVenue,
	}

	rm.framesDecoded, _ = meter.Int64Counter(telemetry.MetricFramesDecoded,
		metric.WithDescription("Inbound frames decoded, by message family"),
		metric.WithUnit("{frame}"))

	rm.decodeErrors, _ = meter.Int64Counter(telemetry.MetricDecodeErrors,
		metric.WithDescription("Inbound frames that failed to decode, by error code"),
		metric.WithUnit("{frame}"))

	rm.repliesResolved, _ = meter.Int64Counter(telemetry.MetricRepliesResolved,
		metric.WithDescription("Requests resolved by a reply, timeout or close"),
		metric.WithUnit("{request}"))

	rm.repliesOrphaned, _ = meter.Int64Counter(telemetry.MetricRepliesOrphaned,
		metric.WithDescription("Replies whose req_id matched no pending request"),
		metric.WithUnit("{reply}"))

	rm.pending, _ = meter.Int64UpDownCounter(telemetry.MetricPendingRequests,
		metric.WithDescription("Requests awaiting a reply"),
		metric.WithUnit("{request}"))

	rm.replyLatency, _ = meter.Float64Histogram(telemetry.MetricReplyLatency,
		metric.WithDescription("Time between registering a request and receiving its reply"),
		metric.WithUnit("ms"))

	return rm
}

func (rm *routerMetrics) recordFrame(ctx context.Context, family, channel, method string) {
	if rm == nil || rm.framesDecoded == nil {
		return
	}
	attrs := telemetry.FrameAttributes(rm.environment, rm.venue, family, channel, method)
	rm.framesDecoded.Add(ensureContext(ctx), 1, metric.WithAttributes(attrs...))
}

func (rm *routerMetrics) recordDecodeError(ctx context.Context, err error) {
	if rm == nil || rm.decodeErrors == nil {
		return
	}
	code := "unknown"
	if c, ok := errs.CodeOf(err); ok {
		code = string(c)
	}
	attrs := telemetry.ErrorAttributes(rm.environment, rm.venue, code)
	rm.decodeErrors.Add(ensureContext(ctx), 1, metric.WithAttributes(attrs...))
}

func (rm *routerMetrics) recordResolved(ctx context.Context, method, outcome string, elapsed time.Duration) {
	if rm == nil || rm.repliesResolved == nil {
		return
	}
	ctx = ensureContext(ctx)
	attrs := telemetry.ReplyAttributes(rm.environment, rm.venue, method, outcome)
	rm.repliesResolved.Add(ctx, 1, metric.WithAttributes(attrs...))
	if rm.replyLatency != nil && outcome != telemetry.OutcomeTimeout {
		if elapsed < 0 {
			elapsed = 0
		}
		ms := float64(elapsed) / float64(time.Millisecond)
		rm.replyLatency.Record(ctx, ms, metric.WithAttributes(attrs...))
	}
}

func (rm *routerMetrics) recordOrphan(ctx context.Context, method string) {
	if rm == nil || rm.repliesOrphaned == nil {
		return
	}
	attrs := telemetry.FrameAttributes(rm.environment, rm.venue, "reply", "", method)
	rm.repliesOrphaned.Add(ensureContext(ctx), 1, metric.WithAttributes(attrs...))
}

func (rm *routerMetrics) addPending(ctx context.Context, delta int64) {
	if rm == nil || rm.pending == nil {
		return
	}
	rm.pending.Add(ensureContext(ctx), delta)
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
