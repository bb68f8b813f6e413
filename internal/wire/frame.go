package wire

import (
	"bytes"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/coachpo/krakenws/errs"
)

// frame is the top-level key/value view of one inbound message. It is built
// once per frame so that classification never re-parses the payload.
type frame map[string]json.RawMessage

var jsonNull = []byte("null")

func peek(data []byte) (frame, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errs.New(errs.CodeUnrecognizedShape,
			errs.WithMessage("frame is not a json object"),
			errs.WithRawMessage(clip(data)))
	}
	var f frame
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, errs.New(errs.CodeUnrecognizedShape,
			errs.WithMessage("parse frame"),
			errs.WithRawMessage(clip(data)),
			errs.WithCause(err))
	}
	return f, nil
}

// has reports whether the key is present with a non-null value.
func (f frame) has(key string) bool {
	raw, ok := f[key]
	if !ok {
		return false
	}
	return !bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

func (f frame) keys() []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// shape lists the top-level keys a strict message kind may carry.
type shape struct {
	required []string
	optional []string
}

// check enforces the shape: every required key is present and non-null and
// no key outside required+optional appears.
func (s shape) check(f frame, opts ...errs.Option) error {
	for _, key := range s.required {
		if !f.has(key) {
			return mismatch("missing required field", append(opts, errs.WithField("field", key))...)
		}
	}
	for _, key := range f.keys() {
		if !s.allows(key) {
			return mismatch("unknown field", append(opts, errs.WithField("field", key))...)
		}
	}
	return nil
}

func (s shape) allows(key string) bool {
	for _, k := range s.required {
		if k == key {
			return true
		}
	}
	for _, k := range s.optional {
		if k == key {
			return true
		}
	}
	return false
}

// field decodes a required, non-null key into dst.
func (f frame) field(key string, dst any, opts ...errs.Option) error {
	if !f.has(key) {
		return mismatch("missing required field", append(opts, errs.WithField("field", key))...)
	}
	return decodeRaw(f[key], dst, append(opts, errs.WithField("field", key))...)
}

// optionalField decodes key into dst when present and non-null.
func (f frame) optionalField(key string, dst any, opts ...errs.Option) (bool, error) {
	if !f.has(key) {
		return false, nil
	}
	if err := decodeRaw(f[key], dst, append(opts, errs.WithField("field", key))...); err != nil {
		return false, err
	}
	return true, nil
}

func decodeRaw(raw json.RawMessage, dst any, opts ...errs.Option) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return mismatch("decode field", append(opts, errs.WithCause(err))...)
	}
	return nil
}

func mismatch(message string, opts ...errs.Option) error {
	return errs.New(errs.CodeStructuralMismatch, append([]errs.Option{errs.WithMessage(message)}, opts...)...)
}

func unrecognizedTag(kind, tag string) error {
	return errs.New(errs.CodeUnrecognizedTag,
		errs.WithMessage("unknown "+kind+" tag"),
		errs.WithField(kind, tag))
}

const maxRawInError = 256

func clip(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxRawInError {
		return s[:maxRawInError] + "..."
	}
	return s
}
