package abci

import (
	"errors"
	"fmt"
)

// FaultError reports that an application callback failed by returning
// an error or panicking. A fault terminates the connection that
// carried the request; other connections are unaffected.
type FaultError struct {
	Method string
	Panic  any
	Err    error
}

func (e *FaultError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("application fault in %s: panic: %v", e.Method, e.Panic)
	}
	return fmt.Sprintf("application fault in %s: %v", e.Method, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// NewFault wraps an error returned by the named callback.
func NewFault(method string, err error) *FaultError {
	return &FaultError{Method: method, Err: err}
}

// IsFault checks whether an error is a FaultError and returns it.
func IsFault(err error) (*FaultError, bool) {
	var f *FaultError
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
