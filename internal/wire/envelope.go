package wire

import (
	"bytes"
	"reflect"

	json "github.com/goccy/go-json"

	"github.com/coachpo/krakenws/errs"
)

// CallKind selects the method name of an outgoing request.
type CallKind string

const (
	CallSubscribe   CallKind = "subscribe"
	CallUnsubscribe CallKind = "unsubscribe"
	CallPing        CallKind = "ping"
)

func (k CallKind) valid() bool {
	switch k {
	case CallSubscribe, CallUnsubscribe, CallPing:
		return true
	default:
		return false
	}
}

type envelope struct {
	Method CallKind        `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	ReqID  int64           `json:"req_id"`
}

// Encode produces the wire form of one request. The params field is omitted
// when params is nil (including a nil pointer), logically empty, or marshals
// to null; it is never written as null.
func Encode(kind CallKind, reqID int64, params Params) ([]byte, error) {
	if !kind.valid() {
		return nil, errs.New(errs.CodeInvalid,
			errs.WithMessage("unknown call kind"),
			errs.WithField("method", string(kind)))
	}
	env := envelope{Method: kind, ReqID: reqID}
	if !isNilParams(params) && !params.IsEmpty() {
		raw, err := marshalNoEscape(params)
		if err != nil {
			return nil, errs.New(errs.CodeInvalid,
				errs.WithMessage("encode params"),
				errs.WithField("method", string(kind)),
				errs.WithCause(err))
		}
		if !bytes.Equal(raw, jsonNull) {
			env.Params = raw
		}
	}
	return encodeNoEscape(env)
}

// Subscribe encodes a subscribe call for one channel.
func Subscribe(reqID int64, params SubscribeParams) ([]byte, error) {
	if params == nil {
		return nil, errs.New(errs.CodeInvalid, errs.WithMessage("subscribe requires params"))
	}
	return Encode(CallSubscribe, reqID, params)
}

// Unsubscribe encodes an unsubscribe call for one channel.
func Unsubscribe(reqID int64, params UnsubscribeParams) ([]byte, error) {
	if params == nil {
		return nil, errs.New(errs.CodeInvalid, errs.WithMessage("unsubscribe requires params"))
	}
	return Encode(CallUnsubscribe, reqID, params)
}

// Ping encodes a keepalive call.
func Ping(reqID int64) ([]byte, error) {
	return Encode(CallPing, reqID, NoParams{})
}

// isNilParams reports a nil interface or a nil pointer behind it.
func isNilParams(p Params) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func encodeNoEscape(v any) ([]byte, error) {
	out, err := marshalNoEscape(v)
	if err != nil {
		return nil, errs.New(errs.CodeInvalid, errs.WithMessage("encode envelope"), errs.WithCause(err))
	}
	return out, nil
}

// marshalNoEscape encodes v without HTML escaping and without the trailing
// newline the encoder appends.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}
