// Package openai adapts openai-go chat completion streams to
// [restream.Source].
//
// The SDK's typed chunk covers content, tool calls and finish reasons. The
// reasoning extensions of OpenAI-compatible providers (reasoning_details,
// reasoning, reasoning_content) are read from the raw delta JSON.
package openai

import (
	"context"
	"fmt"
	"io"

	"github.com/fwojciec/restream"
	rsjson "github.com/fwojciec/restream/json"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// ChunkStream is the subset of *ssestream.Stream[openai.ChatCompletionChunk]
// used by Source.
type ChunkStream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
	Close() error
}

// Interface compliance checks.
var (
	_ ChunkStream     = (*ssestream.Stream[openai.ChatCompletionChunk])(nil)
	_ restream.Source = (*Source)(nil)
)

// Source implements [restream.Source] over a chat completion chunk stream.
type Source struct {
	stream ChunkStream
}

// NewSource returns a Source reading from stream.
func NewSource(stream ChunkStream) *Source {
	return &Source{stream: stream}
}

// NewStreamingSource starts a streaming chat completion and returns its
// Source.
func NewStreamingSource(ctx context.Context, client *openai.Client, params openai.ChatCompletionNewParams, opts ...option.RequestOption) *Source {
	return NewSource(client.Chat.Completions.NewStreaming(ctx, params, opts...))
}

// Next returns the delta of the next chunk that has a choice. Chunks
// without choices, such as trailing usage chunks, are skipped.
func (s *Source) Next() (restream.Delta, error) {
	for s.stream.Next() {
		ck := s.stream.Current()
		if len(ck.Choices) == 0 {
			continue
		}
		return convertChoice(ck.Choices[0]), nil
	}
	if err := s.stream.Err(); err != nil {
		return restream.Delta{}, fmt.Errorf("openai: %w", err)
	}
	return restream.Delta{}, io.EOF
}

// Close closes the underlying stream.
func (s *Source) Close() error {
	return s.stream.Close()
}

func convertChoice(ch openai.ChatCompletionChunkChoice) restream.Delta {
	d := restream.Delta{Parts: rsjson.DecodeReasoning([]byte(ch.Delta.RawJSON()))}
	if ch.Delta.Content != "" {
		d.Parts = append(d.Parts, restream.TextPart{Text: ch.Delta.Content})
	}
	for _, tc := range ch.Delta.ToolCalls {
		index := -1
		if tc.JSON.Index.Valid() {
			index = int(tc.Index)
		}
		d.Parts = append(d.Parts, restream.ToolCallFragment{
			Index:     index,
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if ch.FinishReason != "" {
		d.FinishReason = rsjson.ParseFinishReason(ch.FinishReason)
	}
	return d
}
