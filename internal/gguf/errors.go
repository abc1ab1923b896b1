package gguf

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedHeader = errors.New("malformed header")
	ErrEndOfStream     = errors.New("unexpected end of stream")
	ErrUnknownType     = errors.New("unknown type tag")
	ErrNestedArray     = errors.New("nested array")
	ErrTooLarge        = errors.New("count too large")
	ErrOverflow        = errors.New("unsigned 64-bit overflow")
	ErrInvariant       = errors.New("invariant violation")
)

// DecodeError carries the offset at which decoding stopped. It unwraps to
// one of the Err* sentinels above.
type DecodeError struct {
	Kind   error
	Offset int64
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("gguf: %v at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("gguf: %v at offset %d: %s", e.Kind, e.Offset, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

func newDecodeError(kind error, off int64, format string, args ...any) *DecodeError {
	return &DecodeError{
		Kind:   kind,
		Offset: off,
		Detail: fmt.Sprintf(format, args...),
	}
}

// Kind reports which sentinel err belongs to, or nil if it is not a
// decode failure.
func Kind(err error) error {
	for _, k := range []error{
		ErrMalformedHeader,
		ErrEndOfStream,
		ErrUnknownType,
		ErrNestedArray,
		ErrTooLarge,
		ErrOverflow,
		ErrInvariant,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
