package worker

import "github.com/rawblock/gravelpit/internal/failure"

// wrap is a thin convenience around failure.New for the Kinds this package
// raises, keeping call sites in executor.go and preflight.go one-liners.
func wrap(kind failure.Kind, err error) error {
	if err == nil {
		return nil
	}
	return failure.New(kind, err)
}
