package reconstruct

import "strings"

// TagSegmentKind discriminates TagSegment values.
type TagSegmentKind int

const (
	TagText     TagSegmentKind = iota // Visible text outside a span.
	TagOpen                           // An open tag started a span.
	TagThinking                       // Text inside a span.
	TagClose                          // The span ended.
)

// TagSegment is one result of feeding a TagParser.
type TagSegment struct {
	Kind TagSegmentKind
	Text string
}

// TagParser splits plain text into visible text and tag-delimited thinking
// spans. Text inside a span is released as soon as it cannot be part of the
// close tag; it is never buffered beyond that.
type TagParser struct {
	open    string
	close   string
	inside  bool
	pending string
}

// NewTagParser returns a parser for the given open and close tags.
func NewTagParser(openTag, closeTag string) *TagParser {
	return &TagParser{open: openTag, close: closeTag}
}

// Feed consumes one fragment and returns everything that became final.
func (p *TagParser) Feed(chunk string) []TagSegment {
	p.pending += chunk
	var out []TagSegment
	for {
		tag, kind := p.open, TagText
		if p.inside {
			tag, kind = p.close, TagThinking
		}
		i := strings.Index(p.pending, tag)
		if i < 0 {
			release, keep := splitPending(p.pending, tag)
			out = appendSegment(out, kind, release)
			p.pending = keep
			return out
		}
		out = appendSegment(out, kind, p.pending[:i])
		p.pending = p.pending[i+len(tag):]
		if p.inside {
			out = append(out, TagSegment{Kind: TagClose})
		} else {
			out = append(out, TagSegment{Kind: TagOpen})
		}
		p.inside = !p.inside
	}
}

// Drain releases withheld text without changing state. It is used when
// unrelated output must be emitted and the withheld bytes can no longer be
// completed into a tag.
func (p *TagParser) Drain() []TagSegment {
	kind := TagText
	if p.inside {
		kind = TagThinking
	}
	out := appendSegment(nil, kind, p.pending)
	p.pending = ""
	return out
}

// Flush ends the stream, releasing withheld text and closing an open span.
func (p *TagParser) Flush() []TagSegment {
	out := p.Drain()
	if p.inside {
		out = append(out, TagSegment{Kind: TagClose})
	}
	p.Reset()
	return out
}

// Inside reports whether the parser is within a span.
func (p *TagParser) Inside() bool {
	return p.inside
}

// Reset returns the parser to the outside state with no pending text.
func (p *TagParser) Reset() {
	p.inside = false
	p.pending = ""
}

func appendSegment(out []TagSegment, kind TagSegmentKind, s string) []TagSegment {
	if s == "" {
		return out
	}
	return append(out, TagSegment{Kind: kind, Text: s})
}
