package cbor

import (
	"errors"
	"fmt"
)

// Sentinel errors describing specific malformations, wrapped by the
// richer error kinds below when they surface at a decode/encode boundary.
var (
	// ErrUnexpectedEndOfData is returned when the data ends unexpectedly.
	ErrUnexpectedEndOfData = errors.New("cbor: unexpected end of data")
	// ErrInvalidMajorType is returned when an unexpected major type is encountered.
	ErrInvalidMajorType = errors.New("cbor: invalid major type")
	// ErrInvalidSimpleValue is returned when an invalid simple value is encountered.
	ErrInvalidSimpleValue = errors.New("cbor: invalid simple value")
	// ErrInvalidUTF8 is returned when a text string contains invalid UTF-8.
	ErrInvalidUTF8 = errors.New("cbor: invalid UTF-8 in text string")
	// ErrUnexpectedBreak is returned when a break byte is encountered outside
	// an indefinite-length item.
	ErrUnexpectedBreak = errors.New("cbor: unexpected break")
	// ErrNestingDepthExceeded is returned when the maximum nesting depth is exceeded.
	ErrNestingDepthExceeded = errors.New("cbor: maximum nesting depth exceeded")
	// ErrDuplicateMapKey is returned when a map carries the same key twice
	// and the decoder's conformance mode is ConformanceStrict or above.
	ErrDuplicateMapKey = errors.New("cbor: duplicate map key")
	// ErrNonMinimalEncoding is returned when an argument value is encoded
	// wider than necessary and the decoder's conformance mode is
	// ConformanceStrict or above.
	ErrNonMinimalEncoding = errors.New("cbor: non-minimal length encoding")
	// ErrIndefiniteChunkType is returned when an indefinite-length string
	// chunk has a major type that doesn't match its container.
	ErrIndefiniteChunkType = errors.New("cbor: indefinite-length chunk has wrong major type")
	// ErrNestedIndefiniteChunk is returned when an indefinite-length string
	// chunk is itself indefinite-length.
	ErrNestedIndefiniteChunk = errors.New("cbor: nested indefinite-length chunk")
	// ErrPendingShareSlot is returned when a back-reference (tag 29)
	// resolves to a slot that has been allocated but not yet filled.
	ErrPendingShareSlot = errors.New("cbor: shared reference is not yet initialized")
	// ErrMissingShareSlot is returned when a back-reference (tag 29) has no
	// matching allocated slot.
	ErrMissingShareSlot = errors.New("cbor: shared reference index out of range")
	// ErrMissingStringRef is returned when tag 25 references an index with
	// no entry in the active string-ref namespace.
	ErrMissingStringRef = errors.New("cbor: string reference index out of range")
	// ErrNoActiveNamespace is returned when tag 25 is used outside any
	// open string-ref namespace (tag 256).
	ErrNoActiveNamespace = errors.New("cbor: string reference used outside a namespace")

	// ErrUnencodableType is returned when encode has no way to represent a value.
	ErrUnencodableType = errors.New("cbor: no encoder registered for this type")
	// ErrCyclicStructure is returned when a cyclic container is encoded
	// without value sharing enabled.
	ErrCyclicStructure = errors.New("cbor: cyclic data structure without value sharing")
	// ErrNaiveDatetime is returned when a zone-less datetime is encoded
	// with no default timezone configured. Go's time.Time always carries a
	// location, so the built-in datetime encoder never produces this; it is
	// part of the error vocabulary for custom encoders of zone-less time
	// carriers.
	ErrNaiveDatetime = errors.New("cbor: naive datetime with no default timezone")
)

// DecodeError reports malformed CBOR or a decode-time policy violation:
// an unknown major type, a reserved additional-info value, a stray break
// byte, a non-minimal argument under strict conformance, or nesting
// overflow. Tag payloads of the wrong shape are DecodeValueErrors.
type DecodeError struct {
	Offset  int
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("cbor: decode error at offset %d: %s: %v", e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("cbor: decode error at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func newDecodeError(offset int, message string, err error) *DecodeError {
	return &DecodeError{Offset: offset, Message: message, Err: err}
}

// DecodeValueError reports a value-domain failure: well-formed CBOR
// whose contents don't make sense (bad UTF-8 under the strict string
// policy, nonsensical tag contents, malformed indefinite-length nesting).
type DecodeValueError struct {
	Offset  int
	Message string
	Err     error
}

func (e *DecodeValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cbor: decode value error at offset %d: %s: %v", e.Offset, e.Message, e.Err)
	}
	return fmt.Sprintf("cbor: decode value error at offset %d: %s", e.Offset, e.Message)
}

func (e *DecodeValueError) Unwrap() error { return e.Err }

func newDecodeValueError(offset int, message string, err error) *DecodeValueError {
	return &DecodeValueError{Offset: offset, Message: message, Err: err}
}

// PrematureEOF reports that the byte source returned fewer bytes than
// the decoder needed to finish reading the current item.
type PrematureEOF struct {
	Expected int
	Received int
}

func (e *PrematureEOF) Error() string {
	return fmt.Sprintf("cbor: premature EOF: expected %d bytes, received %d", e.Expected, e.Received)
}

func (e *PrematureEOF) Unwrap() error { return ErrUnexpectedEndOfData }

// EncodeError reports that a value could not be encoded at all: no
// built-in or registered encoder matched and no default callback handled
// it, or the value is the internal break marker. A default callback that
// returns an error surfaces as an EncodeValueError.
type EncodeError struct {
	Message string
	Err     error
}

func (e *EncodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cbor: encode error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("cbor: encode error: %s", e.Message)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func newEncodeError(message string, err error) *EncodeError {
	return &EncodeError{Message: message, Err: err}
}

// EncodeValueError reports a value-domain encode failure, such as a
// cyclic container encoded without value sharing or a datetime outside
// the representable text range.
type EncodeValueError struct {
	Message string
	Err     error
}

func (e *EncodeValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cbor: encode value error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("cbor: encode value error: %s", e.Message)
}

func (e *EncodeValueError) Unwrap() error { return e.Err }

func newEncodeValueError(message string, err error) *EncodeValueError {
	return &EncodeValueError{Message: message, Err: err}
}

// wrapHookError wraps an error raised inside a user-supplied hook with
// the hook's purpose, so a failing object_hook is distinguishable from a
// failing tag_hook or default callback.
func wrapHookError(purpose string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("cbor: error in %s: %w", purpose, err)
}
