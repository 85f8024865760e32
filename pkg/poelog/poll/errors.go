package poll

import "fmt"

// ReadError is returned when the underlying reader fails.
// The failure is not retried.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("poll: read: %v", e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when a byte batch is not valid UTF-8.
type DecodeError struct {
	Offset int // byte offset of the first invalid sequence within the batch
	Size   int // batch length in bytes
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("poll: invalid UTF-8 at byte %d of %d-byte batch", e.Offset, e.Size)
}
