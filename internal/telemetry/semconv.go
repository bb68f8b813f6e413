package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for krakenws telemetry, following the OpenTelemetry
// namespace.attribute_name convention.
const (
	AttrEnvironment = attribute.Key("environment")
	AttrVenue       = attribute.Key("venue")

	// Message attributes
	AttrFamily  = attribute.Key("message.family")
	AttrChannel = attribute.Key("message.channel")
	AttrMethod  = attribute.Key("message.method")

	// Error attributes
	AttrErrorCode = attribute.Key("error.code")

	// Request attributes
	AttrOutcome = attribute.Key("outcome")

	// Connection attributes
	AttrConnectionState = attribute.Key("connection.state")
)

// Metric names shared between instrument registration and views.
const (
	MetricFramesDecoded   = "krakenws.frames.decoded"
	MetricDecodeErrors    = "krakenws.frames.decode_errors"
	MetricRepliesResolved = "krakenws.replies.resolved"
	MetricRepliesOrphaned = "krakenws.replies.unmatched"
	MetricPendingRequests = "krakenws.requests.pending"
	MetricReplyLatency    = "krakenws.replies.latency"
	MetricReconnects      = "krakenws.connection.reconnects"
)

// Outcome values
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
)

// FrameAttributes returns attributes for a decoded frame. Empty channel or
// method values are left out.
func FrameAttributes(environment, venue, family, channel, method string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrVenue.String(venue),
		AttrFamily.String(family),
	}
	if channel != "" {
		attrs = append(attrs, AttrChannel.String(channel))
	}
	if method != "" {
		attrs = append(attrs, AttrMethod.String(method))
	}
	return attrs
}

// ErrorAttributes returns attributes for decode error metrics.
func ErrorAttributes(environment, venue, code string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrVenue.String(venue),
		AttrErrorCode.String(code),
	}
}

// ReplyAttributes returns attributes for request/reply metrics.
func ReplyAttributes(environment, venue, method, outcome string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrVenue.String(venue),
		AttrMethod.String(method),
		AttrOutcome.String(outcome),
	}
}

// ConnectionAttributes returns attributes for connection state metrics.
func ConnectionAttributes(environment, venue, state string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrVenue.String(venue),
		AttrConnectionState.String(state),
	}
}
