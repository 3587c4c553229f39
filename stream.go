package restream

// StreamState indicates the lifecycle state of one reconstructed stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Before the first delta.
	StreamStateStreaming                    // Mid-stream, receiving deltas.
	StreamStateComplete                     // Source returned io.EOF and buffers were flushed.
	StreamStateError                        // Source returned a non-EOF error.
	StreamStateCanceled                     // Context canceled before the source ended.
)

// String returns a human readable name for the state.
func (s StreamState) String() string {
	switch s {
	case StreamStateNew:
		return "new"
	case StreamStateStreaming:
		return "streaming"
	case StreamStateComplete:
		return "complete"
	case StreamStateError:
		return "error"
	case StreamStateCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Source uses a pull-based iterator pattern over decoded deltas.
//
// Next returns io.EOF when the upstream ends normally. An error wrapping
// ErrMalformedDelta reports a chunk that could not be decoded; the caller
// skips it and keeps pulling. Any other error is terminal.
type Source interface {
	Next() (Delta, error)
	Close() error
}

// Sink receives finalized events in order. Emit is treated as synchronous
// and non-blocking; a returned error is logged by the caller and does not
// stop the stream.
type Sink interface {
	Emit(Event) error
}

// SinkFunc adapts an ordinary function to the Sink interface.
type SinkFunc func(Event) error

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) error {
	return f(e)
}

// MultiSink fans every event out to each sink in order. All sinks receive
// the event even if an earlier one fails; the first error is returned.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) error {
		var first error
		for _, s := range sinks {
			if err := s.Emit(e); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
