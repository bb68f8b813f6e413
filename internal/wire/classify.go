package wire

import (
	"errors"

	"github.com/coachpo/krakenws/errs"
)

// Family is the top-level kind of an inbound message.
type Family string

const (
	FamilyChannel Family = "channel"
	FamilyMethod  Family = "method"
	FamilyError   Family = "error"
)

// Message is one decoded inbound frame: a ChannelMessage, a *MethodReply or
// an *ErrorReply.
type Message interface {
	Family() Family
}

// ErrorReply is the exchange's rejection of a request it could not process
// as a call at all, such as one sent on an invalid session.
type ErrorReply struct {
	Method  string
	Error   string
	Status  string
	Success bool
	ReqID   int64
	TimeIn  string
	TimeOut string
}

// Family implements Message.
func (*ErrorReply) Family() Family { return FamilyError }

// CorrelationID returns the echoed req_id.
func (r *ErrorReply) CorrelationID() int64 { return r.ReqID }

const errorStatus = "error"

var errorShape = shape{
	required: []string{"error", "method", "status", "success", "req_id", "time_in", "time_out"},
}

func decodeErrorReply(f frame) (*ErrorReply, error) {
	if err := errorShape.check(f); err != nil {
		return nil, err
	}
	reply := &ErrorReply{}
	fields := []struct {
		key string
		dst any
	}{
		{"error", &reply.Error},
		{"method", &reply.Method},
		{"status", &reply.Status},
		{"success", &reply.Success},
		{"req_id", &reply.ReqID},
		{"time_in", &reply.TimeIn},
		{"time_out", &reply.TimeOut},
	}
	for _, fd := range fields {
		if err := f.field(fd.key, fd.dst); err != nil {
			return nil, err
		}
	}
	if reply.Status != errorStatus {
		return nil, mismatch("error reply status marker", errs.WithField("status", reply.Status))
	}
	if reply.Success {
		return nil, mismatch("error reply reports success")
	}
	return reply, nil
}

// candidate is one top-level interpretation. accepts is a cheap structural
// gate over the peeked keys; decode runs only when it passes.
type candidate struct {
	family  Family
	accepts func(frame) bool
	decode  func(frame) (Message, error)
}

// candidates are tried in order. The top level carries no discriminator, so
// a more permissive shape placed earlier would swallow frames meant for a
// stricter one: method replies reject the status key, which leaves error
// replies to the last candidate.
var candidates = []candidate{
	{
		family:  FamilyChannel,
		accepts: func(f frame) bool { return f.has("channel") },
		decode: func(f frame) (Message, error) {
			return decodeChannelMessage(f)
		},
	},
	{
		family:  FamilyMethod,
		accepts: func(f frame) bool { return f.has("method") },
		decode: func(f frame) (Message, error) {
			return decodeMethodReply(f)
		},
	},
	{
		family:  FamilyError,
		accepts: func(f frame) bool { return f.has("method") && f.has("status") },
		decode: func(f frame) (Message, error) {
			return decodeErrorReply(f)
		},
	},
}

// Decode classifies one inbound frame and decodes it into its typed form.
// It holds no state between calls and is safe for concurrent use.
func Decode(data []byte) (Message, error) {
	f, err := peek(data)
	if err != nil {
		return nil, err
	}

	var failures []error
	for _, c := range candidates {
		if !c.accepts(f) {
			continue
		}
		msg, err := c.decode(f)
		if err == nil {
			return msg, nil
		}
		failures = append(failures, err)
	}

	switch len(failures) {
	case 0:
		return nil, errs.New(errs.CodeUnrecognizedShape,
			errs.WithMessage("no message family matches frame"),
			errs.WithRawMessage(clip(data)))
	case 1:
		return nil, failures[0]
	default:
		return nil, errs.New(errs.CodeUnrecognizedShape,
			errs.WithMessage("no message family matches frame"),
			errs.WithRawMessage(clip(data)),
			errs.WithCause(errors.Join(failures...)))
	}
}

// CorrelationID returns the req_id echoed by a method or error reply. Feed
// messages carry none.
func CorrelationID(msg Message) (int64, bool) {
	switch m := msg.(type) {
	case *MethodReply:
		if m == nil {
			return 0, false
		}
		return m.ReqID, true
	case *ErrorReply:
		if m == nil {
			return 0, false
		}
		return m.ReqID, true
	default:
		return 0, false
	}
}
