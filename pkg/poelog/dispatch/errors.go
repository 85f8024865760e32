package dispatch

import (
	"errors"
	"fmt"
)

// ErrNilHandler is returned by RegisterEvent when the handler is nil.
var ErrNilHandler = errors.New("dispatch: handler is nil")

// PatternError is returned by RegisterEvent for a pattern that does not compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("dispatch: invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// HandlerError is returned by Process and Run when a handler fails.
type HandlerError struct {
	Index   int // rule index in registration order
	Pattern string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("dispatch: handler for rule %d (%q): %v", e.Index, e.Pattern, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
