package mock

import (
	"io"

	"github.com/fwojciec/restream"
)

// Source is a test double for restream.Source.
// NextFn panics when nil to catch missing setup. CloseFn is nil-safe
// because consumers always close the source.
type Source struct {
	NextFn  func() (restream.Delta, error)
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Source) Next() (restream.Delta, error) {
	return s.NextFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Source) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// Deltas returns a Source that yields ds in order and then io.EOF.
func Deltas(ds ...restream.Delta) *Source {
	i := 0
	return &Source{
		NextFn: func() (restream.Delta, error) {
			if i >= len(ds) {
				return restream.Delta{}, io.EOF
			}
			d := ds[i]
			i++
			return d, nil
		},
	}
}
