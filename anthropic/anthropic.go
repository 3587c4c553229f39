// Package anthropic adapts anthropic-sdk-go message streams to
// [restream.Source].
//
// Anthropic streams one content block at a time, each addressed by its
// position in the message. The block index becomes the reasoning index of
// thinking blocks and the positional key of tool calls.
package anthropic

import (
	"context"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/fwojciec/restream"
	rsjson "github.com/fwojciec/restream/json"
)

// EventStream is the subset of
// *ssestream.Stream[anthropic.MessageStreamEventUnion] used by Source.
type EventStream interface {
	Next() bool
	Current() anthropic.MessageStreamEventUnion
	Err() error
	Close() error
}

// Interface compliance checks.
var (
	_ EventStream     = (*ssestream.Stream[anthropic.MessageStreamEventUnion])(nil)
	_ restream.Source = (*Source)(nil)
)

// Source implements [restream.Source] over a message event stream.
type Source struct {
	stream EventStream
}

// NewSource returns a Source reading from stream.
func NewSource(stream EventStream) *Source {
	return &Source{stream: stream}
}

// NewStreamingSource starts a streaming message request and returns its
// Source.
func NewStreamingSource(ctx context.Context, client *anthropic.Client, params anthropic.MessageNewParams, opts ...option.RequestOption) *Source {
	return NewSource(client.Messages.NewStreaming(ctx, params, opts...))
}

// Next returns the delta of the next event that carries content or a stop
// reason. Lifecycle events such as message_start and content_block_stop
// are skipped.
func (s *Source) Next() (restream.Delta, error) {
	for s.stream.Next() {
		d := convertEvent(s.stream.Current())
		if len(d.Parts) == 0 && d.FinishReason == restream.FinishNone {
			continue
		}
		return d, nil
	}
	if err := s.stream.Err(); err != nil {
		return restream.Delta{}, fmt.Errorf("anthropic: %w", err)
	}
	return restream.Delta{}, io.EOF
}

// Close closes the underlying stream.
func (s *Source) Close() error {
	return s.stream.Close()
}

func convertEvent(ev anthropic.MessageStreamEventUnion) restream.Delta {
	switch e := ev.AsAny().(type) {
	case anthropic.ContentBlockStartEvent:
		return restream.Delta{Parts: convertBlockStart(int(e.Index), e.ContentBlock)}
	case anthropic.ContentBlockDeltaEvent:
		return restream.Delta{Parts: convertBlockDelta(int(e.Index), e.Delta)}
	case anthropic.MessageDeltaEvent:
		return restream.Delta{FinishReason: stopReason(e.Delta.StopReason)}
	}
	return restream.Delta{}
}

func convertBlockStart(index int, cb anthropic.ContentBlockStartEventContentBlockUnion) []restream.Part {
	switch b := cb.AsAny().(type) {
	case anthropic.TextBlock:
		if b.Text != "" {
			return []restream.Part{restream.TextPart{Text: b.Text}}
		}
	case anthropic.ThinkingBlock:
		if b.Thinking != "" || b.Signature != "" {
			return []restream.Part{restream.ReasoningDetail{
				Kind:      restream.ReasoningText,
				Index:     restream.IntPtr(index),
				Text:      b.Thinking,
				Signature: b.Signature,
			}}
		}
	case anthropic.RedactedThinkingBlock:
		return []restream.Part{restream.ReasoningDetail{
			Kind:  restream.ReasoningEncrypted,
			Index: restream.IntPtr(index),
			Text:  b.Data,
		}}
	case anthropic.ToolUseBlock:
		// The start event carries an empty input object; the arguments
		// follow as input_json deltas.
		return []restream.Part{restream.ToolCallFragment{Index: index, ID: b.ID, Name: b.Name}}
	}
	return nil
}

func convertBlockDelta(index int, delta anthropic.RawContentBlockDeltaUnion) []restream.Part {
	switch d := delta.AsAny().(type) {
	case anthropic.TextDelta:
		return []restream.Part{restream.TextPart{Text: d.Text}}
	case anthropic.InputJSONDelta:
		return []restream.Part{restream.ToolCallFragment{Index: index, Arguments: d.PartialJSON}}
	case anthropic.ThinkingDelta:
		return []restream.Part{restream.ReasoningDetail{
			Kind:  restream.ReasoningText,
			Index: restream.IntPtr(index),
			Text:  d.Thinking,
		}}
	case anthropic.SignatureDelta:
		return []restream.Part{restream.ReasoningDetail{
			Kind:      restream.ReasoningText,
			Index:     restream.IntPtr(index),
			Signature: d.Signature,
		}}
	}
	return nil
}

func stopReason(r anthropic.StopReason) restream.FinishReason {
	switch r {
	case anthropic.StopReasonStopSequence, anthropic.StopReasonRefusal:
		return restream.FinishStop
	case anthropic.StopReasonPauseTurn:
		return restream.FinishUnknown
	}
	return rsjson.ParseFinishReason(string(r))
}
