// Package failure defines the typed error taxonomy shared across the
// pipeline, classified by cause rather than by call site.
package failure

import "fmt"

// Kind identifies the cause of a pipeline failure.
type Kind string

const (
	SourceIO              Kind = "SourceIO"
	WriteIO               Kind = "WriteIO"
	BaselineIO            Kind = "BaselineIO"
	ConservationViolation Kind = "ConservationViolation"
	LaunchFailed          Kind = "LaunchFailed"
	ConnectionLost        Kind = "ConnectionLost"
	CompletionTimeout     Kind = "CompletionTimeout"
	UnexpectedStop        Kind = "UnexpectedStop"
	PreflightFailed       Kind = "PreflightFailed"
	StateCorruption       Kind = "StateCorruption"
)

// Fail is the error type surfaced by every component in the pipeline. It
// carries the affected batch/attack so the CLI can print a one-line cause
// plus a suggested next command.
type Fail struct {
	Kind   Kind
	Batch  string
	Attack string
	Err    error
}

func (f *Fail) Error() string {
	switch {
	case f.Batch != "" && f.Attack != "":
		return fmt.Sprintf("%s: batch %s attack %s: %v", f.Kind, f.Batch, f.Attack, f.Err)
	case f.Batch != "":
		return fmt.Sprintf("%s: batch %s: %v", f.Kind, f.Batch, f.Err)
	default:
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
}

func (f *Fail) Unwrap() error { return f.Err }

// New wraps err under the given Kind with no batch/attack context.
func New(kind Kind, err error) *Fail {
	return &Fail{Kind: kind, Err: err}
}

// WithBatch wraps err under the given Kind, attaching a batch id.
func WithBatch(kind Kind, batch string, err error) *Fail {
	return &Fail{Kind: kind, Batch: batch, Err: err}
}

// WithAttack wraps err under the given Kind, attaching batch and attack ids.
func WithAttack(kind Kind, batch, attack string, err error) *Fail {
	return &Fail{Kind: kind, Batch: batch, Attack: attack, Err: err}
}

// Is reports whether err is a *Fail of the given Kind.
func Is(err error, kind Kind) bool {
	f, ok := err.(*Fail)
	return ok && f.Kind == kind
}
