// Package simerr defines the error taxonomy used across the simulation
// core: load errors are fatal at start, scheduling/kernel/bridge errors are
// non-fatal once a simulation is running, and lifecycle errors are surfaced
// to the caller without affecting other simulations.
package simerr

import "fmt"

// Kind classifies an error for the purposes of the policy table in the
// error handling design.
type Kind string

const (
	KindLoad       Kind = "load_error"
	KindScheduling Kind = "scheduling_error"
	KindKernel     Kind = "kernel_error"
	KindBridge     Kind = "bridge_error"
	KindLifecycle  Kind = "lifecycle_error"
)

// Error wraps an underlying cause with a Kind so callers can branch on
// errors.As without parsing strings.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Load(op string, err error) *Error       { return newErr(KindLoad, op, err) }
func Scheduling(op string, err error) *Error { return newErr(KindScheduling, op, err) }
func Kernel(op string, err error) *Error     { return newErr(KindKernel, op, err) }
func Bridge(op string, err error) *Error     { return newErr(KindBridge, op, err) }
func Lifecycle(op string, err error) *Error  { return newErr(KindLifecycle, op, err) }

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if ok := asError(err, &e); !ok {
		return false
	}
	return e.Kind == kind
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
