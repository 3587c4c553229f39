package json

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/fwojciec/restream"
)

// Interface compliance check.
var _ restream.Source = (*Source)(nil)

const maxLineSize = 4 << 20

// Source reads a JSONL capture of chat completion chunks, one chunk per
// line, and decodes each with DecodeChunk. Blank lines are skipped.
type Source struct {
	r       io.Reader
	scanner *bufio.Scanner
	line    int
}

// NewSource returns a Source reading from r. If r is an io.Closer, Close
// closes it.
func NewSource(r io.Reader) *Source {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Source{r: r, scanner: sc}
}

// Next returns the next decoded delta, or io.EOF after the last line.
// A line that fails to decode returns an error wrapping
// restream.ErrMalformedDelta and the Source stays usable.
func (s *Source) Next() (restream.Delta, error) {
	for s.scanner.Scan() {
		s.line++
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		d, err := DecodeChunk(line)
		if err != nil {
			return restream.Delta{}, fmt.Errorf("line %d: %w", s.line, err)
		}
		return d, nil
	}
	if err := s.scanner.Err(); err != nil {
		return restream.Delta{}, fmt.Errorf("read capture line %d: %w", s.line+1, err)
	}
	return restream.Delta{}, io.EOF
}

// Close closes the underlying reader if it is an io.Closer.
func (s *Source) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
