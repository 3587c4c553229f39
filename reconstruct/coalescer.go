package reconstruct

import (
	"strings"
	"unicode/utf8"

	"github.com/fwojciec/restream"
)

// Coalescer merges unsigned plain reasoning text into bounded thinking
// events. Downstream consumers cap the number of distinct reasoning events
// per response, so one event per fragment is not acceptable.
//
// A run of plain segments forms one span: every flush of the run shares the
// span's ID, and the span is closed when the run ends. Signed and
// non-text segments are never buffered. They are emitted as their own
// event, with their metadata, after the buffer has been flushed.
type Coalescer struct {
	threshold int
	newID     func() string

	buf    strings.Builder
	runes  int
	spanID string
	format string
	index  *int
}

// NewCoalescer returns a Coalescer that flushes once threshold characters
// are buffered.
func NewCoalescer(threshold int, newID func() string) *Coalescer {
	if threshold <= 0 {
		threshold = DefaultCoalesceThreshold
	}
	return &Coalescer{threshold: threshold, newID: newID}
}

// Add consumes one segment and returns the events that became final.
func (c *Coalescer) Add(d restream.ReasoningDetail) []restream.EventThinking {
	if !d.IsPlain() {
		return c.addStandalone(d)
	}
	var out []restream.EventThinking
	if c.spanID != "" && indexChanged(c.index, d.Index) {
		out = c.Close()
	}
	if c.spanID == "" {
		c.spanID = c.newID()
		c.format = d.Format
		c.index = d.Index
	}
	c.buf.WriteString(d.Text)
	c.runes += utf8.RuneCountInString(d.Text)
	if c.runes >= c.threshold {
		out = append(out, c.Flush()...)
	}
	return out
}

// addStandalone emits a signed or non-text segment as its own event. A
// signed text segment that belongs to the open run (same index) ends that
// run: it shares the run's span ID so the signature stays with the thought
// it signs.
func (c *Coalescer) addStandalone(d restream.ReasoningDetail) []restream.EventThinking {
	out := c.Flush()
	var id string
	if d.Kind == restream.ReasoningText && c.spanID != "" && sameIndex(c.index, d.Index) {
		id = c.spanID
		c.spanID = ""
		c.format, c.index = "", nil
	} else {
		out = append(out, c.Close()...)
		id = c.newID()
	}
	out = append(out,
		restream.EventThinking{
			ID:   id,
			Text: d.Text,
			Metadata: restream.ThinkingMetadata{
				Kind:      d.Kind,
				Format:    d.Format,
				Index:     d.Index,
				Signature: d.Signature,
			},
		},
		restream.EventThinking{ID: id},
	)
	return out
}

// Flush releases buffered text as one event. The span stays open.
func (c *Coalescer) Flush() []restream.EventThinking {
	if c.buf.Len() == 0 {
		return nil
	}
	e := restream.EventThinking{
		ID:   c.spanID,
		Text: c.buf.String(),
		Metadata: restream.ThinkingMetadata{
			Kind:   restream.ReasoningText,
			Format: c.format,
			Index:  c.index,
		},
	}
	c.buf.Reset()
	c.runes = 0
	return []restream.EventThinking{e}
}

// Close flushes buffered text and closes the open span, if any.
func (c *Coalescer) Close() []restream.EventThinking {
	out := c.Flush()
	if c.spanID != "" {
		out = append(out, restream.EventThinking{ID: c.spanID})
		c.spanID = ""
		c.format, c.index = "", nil
	}
	return out
}

// Buffered returns the number of characters waiting to be flushed.
func (c *Coalescer) Buffered() int {
	return c.runes
}

// Reset discards all state without emitting.
func (c *Coalescer) Reset() {
	c.buf.Reset()
	c.runes = 0
	c.spanID = ""
	c.format, c.index = "", nil
}

func sameIndex(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// indexChanged reports whether a plain segment starts a new reasoning
// block. Segments without an index continue the current run.
func indexChanged(cur, next *int) bool {
	return cur != nil && next != nil && *cur != *next
}
