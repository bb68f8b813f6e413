// Package errs provides structured error types for the Kraken wire protocol layer.
package errs

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// Code identifies a protocol error category.
type Code string

const (
	// CodeStructuralMismatch indicates a frame whose shape does not match the
	// schema of its tag: an unknown field, a missing required field or a value
	// of the wrong type.
	CodeStructuralMismatch Code = "structural_mismatch"
	// CodeEmptyPayload indicates a singular channel delivered zero records.
	CodeEmptyPayload Code = "empty_payload"
	// CodeUnrecognizedTag indicates a channel or method tag outside the known set.
	CodeUnrecognizedTag Code = "unrecognized_tag"
	// CodeUnrecognizedShape indicates no top-level message family matched.
	CodeUnrecognizedShape Code = "unrecognized_shape"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeRejected indicates the exchange answered a request with an error.
	CodeRejected Code = "request_rejected"
)

// DefaultVenue is recorded on errors that do not name a venue.
const DefaultVenue = "kraken"

// E captures structured error information produced by the protocol layer.
type E struct {
	Venue   string
	Code    Code
	Message string
	RawMsg  string
	Fields  map[string]string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the given code.
func New(code Code, opts ...Option) *E {
	e := &E{
		Venue:   DefaultVenue,
		Code:    code,
		Message: "",
		RawMsg:  "",
		Fields:  nil,
		cause:   nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithVenue overrides the venue recorded on the error.
func WithVenue(venue string) Option {
	trimmed := strings.TrimSpace(venue)
	return func(e *E) {
		if trimmed == "" {
			return
		}
		e.Venue = trimmed
	}
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithRawMessage captures the raw frame or fragment that failed to decode.
func WithRawMessage(msg string) Option {
	return func(e *E) {
		e.RawMsg = msg
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithField appends a single key/value pair describing where decoding failed.
func WithField(key, value string) Option {
	return func(e *E) {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return
		}
		if e.Fields == nil {
			e.Fields = make(map[string]string, 1)
		}
		e.Fields[trimmedKey] = strings.TrimSpace(value)
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	venue := strings.TrimSpace(e.Venue)
	if venue == "" {
		venue = "unknown"
	}
	parts = append(parts, "venue="+venue)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+strconv.Quote(e.Fields[k]))
		}
		parts = append(parts, "fields="+strings.Join(pairs, ","))
	}
	if e.RawMsg != "" {
		parts = append(parts, "raw_msg="+strconv.Quote(e.RawMsg))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf returns the code of the outermost *E in the chain, if any.
func CodeOf(err error) (Code, bool) {
	var e *E
	if !errors.As(err, &e) || e == nil {
		return "", false
	}
	return e.Code, true
}

// HasCode reports whether any *E in the error chain carries the code.
func HasCode(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*E); ok && e != nil && e.Code == code {
			return true
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				if HasCode(inner, code) {
					return true
				}
			}
			return false
		}
		err = errors.Unwrap(err)
	}
	return false
}
