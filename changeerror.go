package gitstore

import (
	"fmt"

	"go.uber.org/multierr"
)

// newChangeReportError aggregates the per-path errors recorded on a
// ChangeReport into one error, preserving each path in the message.
func newChangeReportError(errs []ChangeError) error {
	var combined error
	for _, e := range errs {
		combined = multierr.Append(combined, fmt.Errorf("%s: %s", e.Path, e.Message))
	}
	return combined
}
