package wire

import (
	json "github.com/goccy/go-json"

	"github.com/coachpo/krakenws/errs"
)

// First returns the first record of a singleton-wrapped payload. Singular
// channels always transport exactly one record inside an array; extra records
// are ignored and an empty array is an error.
func First[T any](records []T) (T, error) {
	if len(records) == 0 {
		var zero T
		return zero, errs.New(errs.CodeEmptyPayload,
			errs.WithMessage("expected array with at least one element"))
	}
	return records[0], nil
}

func decodeSingleton[T any](raw json.RawMessage, opts ...errs.Option) (T, error) {
	var records []T
	if err := decodeRaw(raw, &records, opts...); err != nil {
		var zero T
		return zero, err
	}
	record, err := First(records)
	if err != nil {
		var zero T
		return zero, errs.New(errs.CodeEmptyPayload, append(opts,
			errs.WithMessage("singular channel delivered zero records"),
			errs.WithCause(err))...)
	}
	return record, nil
}
