// Package reconstruct turns a stream of decoded, arbitrarily chunked deltas
// into an ordered sequence of text, thinking and tool call events.
//
// A Reconstructor owns every buffer for exactly one response stream. It is
// not safe for concurrent use; create one per in-flight request, or call
// Reset between streams.
package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/fwojciec/restream"
)

// Reconstructor classifies deltas and routes their parts to the reasoning
// coalescer, the inline text parsers and the tool call buffer, emitting the
// resulting events to a sink.
type Reconstructor struct {
	sink   restream.Sink
	cfg    config
	logger *slog.Logger

	state     restream.StreamState
	coalescer *Coalescer
	sentinel  *SentinelParser // nil when disabled
	tags      *TagParser      // nil when disabled
	tools     *ToolCallBuffer

	legacySpan  string
	tagSpan     string
	textEmitted bool
	toolEmitted bool
}

// New creates a Reconstructor that emits to sink.
func New(sink restream.Sink, opts ...Option) *Reconstructor {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	r := &Reconstructor{
		sink:      sink,
		cfg:       cfg,
		logger:    cfg.logger,
		coalescer: NewCoalescer(cfg.threshold, cfg.newID),
		tools:     NewToolCallBuffer(cfg.newID, cfg.logger),
	}
	if cfg.sentinels != nil {
		r.sentinel = NewSentinelParser(*cfg.sentinels)
	}
	if cfg.openTag != "" && cfg.closeTag != "" {
		r.tags = NewTagParser(cfg.openTag, cfg.closeTag)
	}
	return r
}

// State returns the lifecycle state of the current stream.
func (r *Reconstructor) State() restream.StreamState {
	return r.state
}

// Reset clears every buffer and flag so the Reconstructor can serve a new
// stream. Nothing is emitted.
func (r *Reconstructor) Reset() {
	r.state = restream.StreamStateNew
	r.clear()
}

func (r *Reconstructor) clear() {
	r.coalescer.Reset()
	r.tools.Reset()
	if r.sentinel != nil {
		r.sentinel.Reset()
	}
	if r.tags != nil {
		r.tags.Reset()
	}
	r.legacySpan = ""
	r.tagSpan = ""
	r.textEmitted = false
	r.toolEmitted = false
}

// Run resets the Reconstructor and consumes src until it ends, fails or ctx
// is canceled. Cancellation is checked between deltas; in every case the
// terminal flush runs before Run returns. Malformed deltas are skipped.
// Run returns nil on normal completion, ctx.Err() on cancellation, and the
// source error otherwise.
func (r *Reconstructor) Run(ctx context.Context, src restream.Source) error {
	if src == nil {
		return restream.ErrNoSource
	}
	defer src.Close()
	r.Reset()
	for {
		if err := ctx.Err(); err != nil {
			r.terminate(restream.StreamStateCanceled)
			return err
		}
		d, err := src.Next()
		switch {
		case err == nil:
			r.state = restream.StreamStateStreaming
			r.process(d)
		case errors.Is(err, io.EOF):
			r.terminate(restream.StreamStateComplete)
			return nil
		case errors.Is(err, restream.ErrMalformedDelta):
			r.logger.Debug("skipping malformed delta", "error", err)
		case ctx.Err() != nil:
			r.terminate(restream.StreamStateCanceled)
			return ctx.Err()
		default:
			r.terminate(restream.StreamStateError)
			return fmt.Errorf("reconstruct: %w", err)
		}
	}
}

// Push processes one delta synchronously. It is the building block of Run
// for callers that drive the stream themselves.
func (r *Reconstructor) Push(d restream.Delta) error {
	if r.terminal() {
		return restream.ErrStreamClosed
	}
	r.state = restream.StreamStateStreaming
	r.process(d)
	return nil
}

// Finish ends the stream normally: pending text is released, open tool
// calls are force-flushed with a final repair attempt, the reasoning buffer
// is flushed and open spans are closed.
func (r *Reconstructor) Finish() error {
	if r.terminal() {
		return restream.ErrStreamClosed
	}
	r.terminate(restream.StreamStateComplete)
	return nil
}

// Cancel ends the stream early. It performs the same terminal flush as
// Finish.
func (r *Reconstructor) Cancel() error {
	if r.terminal() {
		return restream.ErrStreamClosed
	}
	r.terminate(restream.StreamStateCanceled)
	return nil
}

func (r *Reconstructor) terminal() bool {
	switch r.state {
	case restream.StreamStateComplete, restream.StreamStateError, restream.StreamStateCanceled:
		return true
	}
	return false
}

// process routes one delta. Parts are handled in fixed priority order:
// reasoning details, legacy reasoning, content text, tool call fragments.
func (r *Reconstructor) process(d restream.Delta) {
	parts := make([]restream.Part, 0, len(d.Parts))
	for _, p := range d.Parts {
		if err := restream.ValidatePart(p); err != nil {
			r.logger.Debug("skipping invalid part", "error", err)
			continue
		}
		parts = append(parts, p)
	}
	for _, p := range parts {
		if rd, ok := p.(restream.ReasoningDetail); ok {
			r.closeLegacy()
			r.emitThinking(r.coalescer.Add(rd))
		}
	}
	for _, p := range parts {
		if lr, ok := p.(restream.LegacyReasoning); ok {
			r.emitLegacy(lr)
		}
	}
	for _, p := range parts {
		if tp, ok := p.(restream.TextPart); ok {
			r.handleText(tp.Text)
		}
	}
	for _, p := range parts {
		if f, ok := p.(restream.ToolCallFragment); ok {
			if e, done := r.tools.Add(f); done {
				r.emitBufferedCall(e)
			}
		}
	}
	if d.FinishReason.FlushesToolCalls() {
		for _, e := range r.tools.Flush(false) {
			r.emitBufferedCall(e)
		}
	}
}

func (r *Reconstructor) emitLegacy(lr restream.LegacyReasoning) {
	if lr.Text == "" && lr.Signature == "" {
		return
	}
	r.emitThinking(r.coalescer.Close())
	if r.legacySpan == "" {
		r.legacySpan = r.cfg.newID()
	}
	r.emit(restream.EventThinking{
		ID:   r.legacySpan,
		Text: lr.Text,
		Metadata: restream.ThinkingMetadata{
			Kind:      restream.ReasoningText,
			Signature: lr.Signature,
		},
	})
	if lr.Signature != "" {
		r.closeLegacy()
	}
}

func (r *Reconstructor) closeLegacy() {
	if r.legacySpan == "" {
		return
	}
	r.emit(restream.EventThinking{ID: r.legacySpan})
	r.legacySpan = ""
}

// closeReasoning ends every reasoning span that is not tag-delimited, so
// buffered reasoning is never reordered past later output.
func (r *Reconstructor) closeReasoning() {
	r.emitThinking(r.coalescer.Close())
	r.closeLegacy()
}

func (r *Reconstructor) handleText(s string) {
	if r.sentinel == nil {
		r.handleTagged(s)
		return
	}
	for _, o := range r.sentinel.Feed(s) {
		if o.Abandoned != nil {
			r.logger.Warn("discarding incomplete inline tool call",
				"name", o.Abandoned.Name, "arguments", o.Abandoned.Arguments)
			continue
		}
		if o.Call == nil {
			r.handleTagged(o.Text)
			continue
		}
		if r.tags != nil {
			r.handleSegments(r.tags.Drain())
		}
		r.emitSentinelCall(*o.Call)
	}
}

func (r *Reconstructor) handleTagged(s string) {
	if r.tags == nil {
		r.emitText(s)
		return
	}
	r.handleSegments(r.tags.Feed(s))
}

func (r *Reconstructor) handleSegments(segs []TagSegment) {
	for _, seg := range segs {
		switch seg.Kind {
		case TagText:
			r.emitText(seg.Text)
		case TagOpen:
			r.closeReasoning()
			r.tagSpan = r.cfg.newID()
		case TagThinking:
			if r.tagSpan == "" {
				r.tagSpan = r.cfg.newID()
			}
			r.emit(restream.EventThinking{
				ID:       r.tagSpan,
				Text:     seg.Text,
				Metadata: restream.ThinkingMetadata{Kind: restream.ReasoningText},
			})
		case TagClose:
			r.closeTagSpan()
		}
	}
}

// closeTagSpan ends the open tag-delimited span. Thinking text that follows
// inside the same tags opens a new span.
func (r *Reconstructor) closeTagSpan() {
	if r.tagSpan == "" {
		return
	}
	r.emit(restream.EventThinking{ID: r.tagSpan})
	r.tagSpan = ""
}

func (r *Reconstructor) emitSentinelCall(c SentinelCall) {
	args := c.Arguments
	if args == "" {
		args = "{}"
	}
	if c.Name == "" || !isStructured(args) {
		r.logger.Warn("dropping inline tool call", "name", c.Name, "arguments", args)
		return
	}
	id := c.ID
	if id == "" {
		id = r.cfg.newID()
	}
	r.emitToolCall(restream.EventToolCall{ID: id, Name: c.Name, Arguments: []byte(args)})
}

func (r *Reconstructor) emitText(s string) {
	if s == "" {
		return
	}
	r.closeReasoning()
	r.textEmitted = true
	r.emit(restream.EventText{Text: s})
}

// emitBufferedCall emits a call completed by the tool-call buffer. Text the
// inline parsers are still withholding arrived before the call, so it is
// released first.
func (r *Reconstructor) emitBufferedCall(e restream.EventToolCall) {
	if r.sentinel != nil {
		r.handleTagged(r.sentinel.Drain())
	}
	if r.tags != nil {
		r.handleSegments(r.tags.Drain())
	}
	r.emitToolCall(e)
}

func (r *Reconstructor) emitToolCall(e restream.EventToolCall) {
	r.closeReasoning()
	r.closeTagSpan()
	if !r.toolEmitted {
		r.toolEmitted = true
		if !r.textEmitted && r.cfg.separator != "" {
			r.emit(restream.EventText{Text: r.cfg.separator})
		}
	}
	r.emit(e)
}

func (r *Reconstructor) emitThinking(events []restream.EventThinking) {
	for _, e := range events {
		r.emit(e)
	}
}

func (r *Reconstructor) emit(e restream.Event) {
	if err := r.sink.Emit(e); err != nil {
		r.logger.Warn("sink rejected event", "event", fmt.Sprintf("%T", e), "error", err)
	}
}

// terminate performs the terminal flush and moves to state. Buffers are
// cleared afterwards.
func (r *Reconstructor) terminate(state restream.StreamState) {
	if r.sentinel != nil {
		mode := r.sentinel.State()
		out, discarded := r.sentinel.Flush()
		if discarded {
			r.logger.Warn("discarding incomplete inline tool call", "state", mode)
		}
		for _, o := range out {
			r.handleTagged(o.Text)
		}
	}
	if r.tags != nil {
		r.handleSegments(r.tags.Flush())
	}
	if r.tools.Pending() > 0 {
		for _, e := range r.tools.Flush(true) {
			r.emitBufferedCall(e)
		}
	}
	r.closeReasoning()
	r.state = state
	r.clear()
}
