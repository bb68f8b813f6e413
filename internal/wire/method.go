package wire

import (
	json "github.com/goccy/go-json"

	"github.com/coachpo/krakenws/errs"
)

// Method tags synchronous call replies.
type Method string

const (
	MethodAddOrder             Method = "add_order"
	MethodEditOrder            Method = "edit_order"
	MethodCancelOrder          Method = "cancel_order"
	MethodCancelAll            Method = "cancel_all"
	MethodCancelAllOrdersAfter Method = "cancel_all_orders_after"
	MethodBatchAdd             Method = "batch_add"
	MethodBatchCancel          Method = "batch_cancel"
	MethodSubscribe            Method = "subscribe"
	MethodUnsubscribe          Method = "unsubscribe"
	MethodPing                 Method = "ping"
	MethodPong                 Method = "pong"
)

// methodPingAlias is the second spelling the exchange uses for ping replies.
// No other spelling is accepted.
const methodPingAlias = "Ping"

// MethodResult is the typed result of a successful call. The concrete type
// is determined by the reply's method tag.
type MethodResult interface {
	isMethodResult()
}

// MethodReply is the reply to one synchronous call.
type MethodReply struct {
	Method Method
	// Result is nil when the call failed, and for ping and pong.
	Result MethodResult
	// Error is set iff the call failed.
	Error   string
	Success bool
	ReqID   int64
	TimeIn  string
	TimeOut string
}

// Family implements Message.
func (*MethodReply) Family() Family { return FamilyMethod }

// CorrelationID returns the echoed req_id.
func (r *MethodReply) CorrelationID() int64 { return r.ReqID }

var (
	replyShape = shape{
		required: []string{"method", "req_id", "success", "time_in", "time_out"},
		optional: []string{"result", "error"},
	}
	batchCancelShape = shape{
		required: []string{"method", "req_id", "success", "time_in", "time_out"},
		optional: []string{"orders_cancelled", "cl_ord_id", "error"},
	}
	// pong acknowledges a keepalive and has no success/result pair.
	pongShape = shape{
		required: []string{"method", "req_id", "time_in", "time_out"},
		optional: []string{"error"},
	}
)

func methodTag(raw string) (Method, bool) {
	if raw == methodPingAlias {
		return MethodPing, true
	}
	switch m := Method(raw); m {
	case MethodAddOrder, MethodEditOrder, MethodCancelOrder, MethodCancelAll,
		MethodCancelAllOrdersAfter, MethodBatchAdd, MethodBatchCancel,
		MethodSubscribe, MethodUnsubscribe, MethodPing, MethodPong:
		return m, true
	default:
		return "", false
	}
}

func decodeMethodReply(f frame) (*MethodReply, error) {
	var tag string
	if err := f.field("method", &tag); err != nil {
		return nil, err
	}
	method, ok := methodTag(tag)
	if !ok {
		return nil, unrecognizedTag("method", tag)
	}
	opts := []errs.Option{errs.WithField("method", tag)}

	switch method {
	case MethodPong:
		return decodePong(f, opts)
	case MethodBatchCancel:
		return decodeBatchCancel(f, opts)
	}

	if err := replyShape.check(f, opts...); err != nil {
		return nil, err
	}
	reply, err := decodeReplyHeader(f, method, opts)
	if err != nil {
		return nil, err
	}
	if err := decodeSuccess(f, reply, opts); err != nil {
		return nil, err
	}
	if !reply.Success {
		if f.has("result") {
			return nil, mismatch("failed reply carries a result", opts...)
		}
		return reply, nil
	}

	if method == MethodPing {
		// ping has an empty result: absent or null only.
		if f.has("result") {
			return nil, mismatch("ping result must be empty", opts...)
		}
		reply.Result = PingResult{}
		return reply, nil
	}
	if !f.has("result") {
		return nil, mismatch("successful reply without result", append(opts, errs.WithField("field", "result"))...)
	}
	result, err := decodeMethodResult(method, f["result"], opts)
	if err != nil {
		return nil, err
	}
	reply.Result = result
	return reply, nil
}

func decodeMethodResult(method Method, raw json.RawMessage, opts []errs.Option) (MethodResult, error) {
	opts = append(opts, errs.WithField("field", "result"))
	switch method {
	case MethodAddOrder:
		return decodeAck[AddOrderResult](raw, opts...)
	case MethodEditOrder:
		return decodeAck[EditOrderResult](raw, opts...)
	case MethodCancelOrder:
		return decodeAck[CancelOrderResult](raw, opts...)
	case MethodCancelAll:
		return decodeAck[CancelAllOrdersResult](raw, opts...)
	case MethodCancelAllOrdersAfter:
		return decodeAck[CancelOnDisconnectResult](raw, opts...)
	case MethodBatchAdd:
		orders, err := decodeAck[[]AddOrderResult](raw, opts...)
		if err != nil {
			return nil, err
		}
		return BatchAddResult{Orders: orders}, nil
	case MethodSubscribe:
		return decodeSubscriptionAck(raw)
	case MethodUnsubscribe:
		return decodeUnsubscriptionAck(raw)
	default:
		return nil, unrecognizedTag("method", string(method))
	}
}

func decodeReplyHeader(f frame, method Method, opts []errs.Option) (*MethodReply, error) {
	reply := &MethodReply{Method: method}
	if err := f.field("req_id", &reply.ReqID, opts...); err != nil {
		return nil, err
	}
	if err := f.field("time_in", &reply.TimeIn, opts...); err != nil {
		return nil, err
	}
	if err := f.field("time_out", &reply.TimeOut, opts...); err != nil {
		return nil, err
	}
	return reply, nil
}

// decodeSuccess reads the success flag and error text and enforces that a
// failed call carries an error and a successful one does not.
func decodeSuccess(f frame, reply *MethodReply, opts []errs.Option) error {
	if err := f.field("success", &reply.Success, opts...); err != nil {
		return err
	}
	hasError, err := f.optionalField("error", &reply.Error, opts...)
	if err != nil {
		return err
	}
	switch {
	case reply.Success && hasError:
		return mismatch("successful reply carries an error", opts...)
	case !reply.Success && !hasError:
		return mismatch("failed reply without error", append(opts, errs.WithField("field", "error"))...)
	}
	return nil
}

func decodePong(f frame, opts []errs.Option) (*MethodReply, error) {
	if err := pongShape.check(f, opts...); err != nil {
		return nil, err
	}
	reply, err := decodeReplyHeader(f, MethodPong, opts)
	if err != nil {
		return nil, err
	}
	hasError, err := f.optionalField("error", &reply.Error, opts...)
	if err != nil {
		return nil, err
	}
	// A pong has no success flag on the wire; it is reported as the absence
	// of an error.
	reply.Success = !hasError
	return reply, nil
}

func decodeBatchCancel(f frame, opts []errs.Option) (*MethodReply, error) {
	if err := batchCancelShape.check(f, opts...); err != nil {
		return nil, err
	}
	reply, err := decodeReplyHeader(f, MethodBatchCancel, opts)
	if err != nil {
		return nil, err
	}
	if err := decodeSuccess(f, reply, opts); err != nil {
		return nil, err
	}
	if !reply.Success {
		return reply, nil
	}
	var result BatchCancelResult
	if err := f.field("orders_cancelled", &result.OrdersCancelled, opts...); err != nil {
		return nil, err
	}
	if _, err := f.optionalField("cl_ord_id", &result.ClOrdIDs, opts...); err != nil {
		return nil, err
	}
	reply.Result = result
	return reply, nil
}
