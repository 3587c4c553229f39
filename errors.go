package restream

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a delta part or message failed validation.
	ErrValidation = errors.New("validation error")

	// ErrMalformedDelta indicates an upstream chunk could not be decoded.
	// Sources wrap it; consumers skip the chunk and continue.
	ErrMalformedDelta = errors.New("malformed delta")

	// ErrNoSource indicates a stream was started without any input.
	ErrNoSource = errors.New("no source")

	// ErrStreamClosed indicates an operation on a finished stream.
	ErrStreamClosed = errors.New("stream closed")
)
