package mock

import "github.com/fwojciec/restream"

// Sink is a test double for restream.Sink.
// Set EmitFn before calling Emit.
type Sink struct {
	EmitFn func(restream.Event) error
}

// Emit delegates to EmitFn.
func (s *Sink) Emit(e restream.Event) error {
	return s.EmitFn(e)
}
