package observability

import (
	"errors"
	"fmt"

	"github.com/coachpo/krakenws/errs"
)

// Aggregate drops nil entries from failures, logs what remains with the
// classification code of each, and returns them joined under operation.
// It returns nil when nothing failed.
func Aggregate(operation string, failures []error, fields ...Field) error {
	kept := make([]error, 0, len(failures))
	codes := make([]string, 0, len(failures))
	for _, err := range failures {
		if err == nil {
			continue
		}
		kept = append(kept, err)
		if code, ok := errs.CodeOf(err); ok {
			codes = append(codes, string(code))
		} else {
			codes = append(codes, "-")
		}
	}
	if len(kept) == 0 {
		return nil
	}
	joined := errors.Join(kept...)
	logFields := append(append([]Field(nil), fields...),
		Field{Key: "operation", Value: operation},
		Field{Key: "error_count", Value: len(kept)},
		Field{Key: "codes", Value: codes},
		Field{Key: "error", Value: joined},
	)
	Log().Error("operation errors", logFields...)
	return fmt.Errorf("%s failed: %w", operation, joined)
}
