package reconstruct_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/fwojciec/restream"
	"github.com/fwojciec/restream/mock"
	"github.com/fwojciec/restream/reconstruct"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReconstructor(opts ...reconstruct.Option) (*reconstruct.Reconstructor, *recorder) {
	rec := &recorder{}
	opts = append([]reconstruct.Option{reconstruct.WithIDGenerator(sequentialIDs())}, opts...)
	return reconstruct.New(rec, opts...), rec
}

func push(t *testing.T, r *reconstruct.Reconstructor, ds ...restream.Delta) {
	t.Helper()
	for _, d := range ds {
		require.NoError(t, r.Push(d))
	}
}

func TestReconstructor_ThinkTagScenario(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	push(t, r, textDelta("Hello <thi"), textDelta("nk>pondering"), textDelta("</think> world"))
	require.NoError(t, r.Finish())

	assert.Equal(t, []restream.Event{
		restream.EventText{Text: "Hello "},
		restream.EventThinking{ID: "id-1", Text: "pondering", Metadata: restream.ThinkingMetadata{Kind: restream.ReasoningText}},
		restream.EventThinking{ID: "id-1"},
		restream.EventText{Text: " world"},
	}, rec.events)
	assert.Equal(t, restream.StreamStateComplete, r.State())
}

func TestReconstructor_SentinelToolCallScenario(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	push(t, r,
		textDelta("<|tool_calls_section_begin|><|tool_call_"),
		textDelta(`begin|>get_weather<|tool_call_argument_begin|>{"city":"SF`),
		textDelta(`"}<|tool_call_end|>`),
	)
	require.NoError(t, r.Finish())

	assert.Equal(t, []restream.Event{
		restream.EventToolCall{ID: "id-1", Name: "get_weather", Arguments: json.RawMessage(`{"city":"SF"}`)},
	}, rec.events)
}

func TestReconstructor_InvalidInlineArgumentsDropped(t *testing.T) {
	t.Parallel()
	logger, logs := captureLogger()
	r, rec := newReconstructor(reconstruct.WithLogger(logger))

	push(t, r, textDelta("<|tool_calls_section_begin|><|tool_call_begin|>f<|tool_call_argument_begin|>{nope<|tool_call_end|><|tool_call_begin|>g<|tool_call_argument_begin|><|tool_call_end|>"))
	require.NoError(t, r.Finish())

	calls := rec.toolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "g", calls[0].Name)
	assert.JSONEq(t, `{}`, string(calls[0].Arguments))
	assert.Contains(t, logs.String(), "dropping inline tool call")
}

func TestReconstructor_ScalarInlineArgumentsDropped(t *testing.T) {
	t.Parallel()

	for _, args := range []string{`42`, `"x"`, `true`, `null`} {
		t.Run(args, func(t *testing.T) {
			t.Parallel()
			logger, logs := captureLogger()
			r, rec := newReconstructor(reconstruct.WithLogger(logger))

			push(t, r, textDelta("<|tool_calls_section_begin|><|tool_call_begin|>f<|tool_call_argument_begin|>"+
				args+"<|tool_call_end|><|tool_calls_section_end|>"))
			require.NoError(t, r.Finish())

			assert.Empty(t, rec.events)
			assert.Contains(t, logs.String(), "dropping inline tool call")
		})
	}
}

func TestReconstructor_SectionEndAbandonsUnterminatedCall(t *testing.T) {
	t.Parallel()
	logger, logs := captureLogger()
	r, rec := newReconstructor(reconstruct.WithLogger(logger))

	push(t, r, textDelta("<|tool_calls_section_begin|><|tool_call_begin|>f<|tool_call_argument_begin|>{\"a\":1}"+
		"<|tool_calls_section_end|>visible"))
	require.NoError(t, r.Finish())

	assert.Equal(t, []restream.Event{restream.EventText{Text: "visible"}}, rec.events)
	assert.Contains(t, logs.String(), "discarding incomplete inline tool call")
}

func TestReconstructor_IncompleteInlineCallDiscardedAtEnd(t *testing.T) {
	t.Parallel()
	logger, logs := captureLogger()
	r, rec := newReconstructor(reconstruct.WithLogger(logger))

	push(t, r, textDelta("ok<|tool_calls_section_begin|><|tool_call_begin|>f<|tool_call_argument_begin|>{\"a\""))
	require.NoError(t, r.Finish())

	assert.Equal(t, []restream.Event{restream.EventText{Text: "ok"}}, rec.events)
	assert.Contains(t, logs.String(), "discarding incomplete inline tool call")
}

func TestReconstructor_RechunkingPreservesOutput(t *testing.T) {
	t.Parallel()

	input := "Hi <think>hm, <|x</think>there <|tool_calls_section_begin|>" +
		"<|tool_call_begin|>functions.f:0<|tool_call_argument_begin|>{\"k\":\"</think>\"}<|tool_call_end|>" +
		"<|tool_calls_section_end|> bye <"

	type result struct {
		text     string
		thinking string
		calls    []restream.EventToolCall
	}
	run := func(chunks []string) result {
		r, rec := newReconstructor()
		for _, c := range chunks {
			require.NoError(t, r.Push(textDelta(c)))
		}
		require.NoError(t, r.Finish())
		var th strings.Builder
		for _, e := range rec.thinking() {
			th.WriteString(e.Text)
		}
		for _, s := range rec.texts() {
			assert.NotContains(t, s, "<|tool", "sentinel leaked into text")
		}
		return result{text: rec.text(), thinking: th.String(), calls: rec.toolCalls()}
	}

	want := result{
		text:     "Hi there  bye <",
		thinking: "hm, <|x",
		calls: []restream.EventToolCall{
			{ID: "functions.f:0", Name: "f", Arguments: json.RawMessage(`{"k":"</think>"}`)},
		},
	}
	for size := 1; size <= len(input); size++ {
		assert.Equal(t, want, run(chunk(input, size)), "chunk size %d", size)
	}
}

func TestReconstructor_ReasoningFlushedBeforeText(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	push(t, r,
		reasoningDelta(plain("a")),
		reasoningDelta(plain("b")),
		textDelta("answer"),
	)
	require.NoError(t, r.Finish())

	assert.Equal(t, []restream.Event{
		restream.EventThinking{ID: "id-1", Text: "ab", Metadata: restream.ThinkingMetadata{Kind: restream.ReasoningText}},
		restream.EventThinking{ID: "id-1"},
		restream.EventText{Text: "answer"},
	}, rec.events)
}

func TestReconstructor_PartsHandledInPriorityOrder(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	push(t, r, restream.Delta{Parts: []restream.Part{
		restream.ToolCallFragment{Index: 0, ID: "c", Name: "f", Arguments: "{}"},
		restream.TextPart{Text: "x"},
		plain("r"),
	}})

	require.Len(t, rec.events, 4)
	assert.Equal(t, "r", rec.events[0].(restream.EventThinking).Text)
	assert.Equal(t, restream.EventThinking{ID: "id-1"}, rec.events[1])
	assert.Equal(t, restream.EventText{Text: "x"}, rec.events[2])
	assert.IsType(t, restream.EventToolCall{}, rec.events[3])
}

func TestReconstructor_CoalescesStructuredReasoning(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	for range 500 {
		push(t, r, reasoningDelta(plain("0123456789")))
	}
	require.NoError(t, r.Finish())

	thinking := rec.thinking()
	require.Len(t, thinking, 2)
	assert.Len(t, thinking[0].Text, 4000)
	assert.Len(t, thinking[1].Text, 1000)
	assert.Len(t, rec.closes(), 1)
}

func TestReconstructor_SignedSegmentKeepsSignature(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	push(t, r,
		reasoningDelta(restream.ReasoningDetail{Kind: restream.ReasoningText, Index: restream.IntPtr(0), Text: "let me think"}),
		reasoningDelta(restream.ReasoningDetail{Kind: restream.ReasoningText, Index: restream.IntPtr(0), Signature: "EqQBCkYIARgC"}),
		textDelta("done"),
	)

	thinking := rec.thinking()
	require.Len(t, thinking, 2)
	assert.Equal(t, "let me think", thinking[0].Text)
	assert.Empty(t, thinking[0].Metadata.Signature)
	assert.Equal(t, "EqQBCkYIARgC", thinking[1].Metadata.Signature)
	assert.Equal(t, thinking[0].ID, thinking[1].ID)
	assert.Equal(t, []string{"done"}, rec.texts())
}

func TestReconstructor_LegacyReasoning(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	push(t, r,
		restream.Delta{Parts: []restream.Part{restream.LegacyReasoning{Text: "a"}}},
		restream.Delta{Parts: []restream.Part{restream.LegacyReasoning{Text: "b", Signature: "sig"}}},
		restream.Delta{Parts: []restream.Part{restream.LegacyReasoning{Text: "c"}}},
		textDelta("t"),
	)

	meta := restream.ThinkingMetadata{Kind: restream.ReasoningText}
	assert.Equal(t, []restream.Event{
		restream.EventThinking{ID: "id-1", Text: "a", Metadata: meta},
		restream.EventThinking{ID: "id-1", Text: "b", Metadata: restream.ThinkingMetadata{Kind: restream.ReasoningText, Signature: "sig"}},
		restream.EventThinking{ID: "id-1"},
		restream.EventThinking{ID: "id-2", Text: "c", Metadata: meta},
		restream.EventThinking{ID: "id-2"},
		restream.EventText{Text: "t"},
	}, rec.events)
}

func TestReconstructor_ToolCallFlushedByFinishReason(t *testing.T) {
	t.Parallel()
	for _, reason := range []restream.FinishReason{restream.FinishToolCalls, restream.FinishStop} {
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			r, rec := newReconstructor()

			push(t, r, restream.Delta{
				Parts:        []restream.Part{restream.ToolCallFragment{Index: 0, ID: "c", Name: "ping"}},
				FinishReason: reason,
			})

			calls := rec.toolCalls()
			require.Len(t, calls, 1)
			assert.JSONEq(t, `{}`, string(calls[0].Arguments))
		})
	}
}

func TestReconstructor_SplitArgumentsEmitOnce(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	push(t, r,
		toolDelta(restream.ToolCallFragment{Index: 0, ID: "c", Name: "f", Arguments: `{"`}),
		toolDelta(restream.ToolCallFragment{Index: 0, Arguments: `"a":1}`}),
		toolDelta(restream.ToolCallFragment{Index: -1, ID: "c", Name: "f", Arguments: `{"a":1}`}),
		restream.Delta{FinishReason: restream.FinishToolCalls},
	)
	require.NoError(t, r.Finish())

	calls := rec.toolCalls()
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"a":1}`, string(calls[0].Arguments))
}

func TestReconstructor_RepairsToolCallAtStreamEnd(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	push(t, r, toolDelta(restream.ToolCallFragment{Index: 0, ID: "c", Name: "search", Arguments: `{"q":"go`}))
	require.NoError(t, r.Finish())

	calls := rec.toolCalls()
	require.Len(t, calls, 1)
	assert.JSONEq(t, `{"q":"go"}`, string(calls[0].Arguments))
}

func TestReconstructor_ToolCallSeparator(t *testing.T) {
	t.Parallel()
	t.Run("emitted once before first tool call", func(t *testing.T) {
		t.Parallel()
		r, rec := newReconstructor(reconstruct.WithToolCallSeparator("\n\n"))

		push(t, r,
			toolDelta(restream.ToolCallFragment{Index: 0, ID: "a", Name: "f", Arguments: `{}`}),
			toolDelta(restream.ToolCallFragment{Index: 1, ID: "b", Name: "g", Arguments: `{}`}),
		)

		require.Len(t, rec.events, 3)
		assert.Equal(t, restream.EventText{Text: "\n\n"}, rec.events[0])
		assert.IsType(t, restream.EventToolCall{}, rec.events[1])
		assert.IsType(t, restream.EventToolCall{}, rec.events[2])
	})

	t.Run("skipped after text", func(t *testing.T) {
		t.Parallel()
		r, rec := newReconstructor(reconstruct.WithToolCallSeparator("\n\n"))

		push(t, r,
			textDelta("calling"),
			toolDelta(restream.ToolCallFragment{Index: 0, ID: "a", Name: "f", Arguments: `{}`}),
		)

		assert.Equal(t, []string{"calling"}, rec.texts())
	})

	t.Run("disabled by default", func(t *testing.T) {
		t.Parallel()
		r, rec := newReconstructor()

		push(t, r, toolDelta(restream.ToolCallFragment{Index: 0, ID: "a", Name: "f", Arguments: `{}`}))

		assert.Empty(t, rec.texts())
	})
}

func TestReconstructor_ReasoningClosedBeforeToolCall(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	push(t, r,
		reasoningDelta(plain("plan")),
		toolDelta(restream.ToolCallFragment{Index: 0, ID: "a", Name: "f", Arguments: `{}`}),
	)

	require.Len(t, rec.events, 3)
	assert.Equal(t, "plan", rec.events[0].(restream.EventThinking).Text)
	assert.Equal(t, restream.EventThinking{ID: "id-1"}, rec.events[1])
	assert.IsType(t, restream.EventToolCall{}, rec.events[2])
}

func TestReconstructor_WithheldTextPrecedesToolCall(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	push(t, r, restream.Delta{
		Parts: []restream.Part{
			restream.TextPart{Text: "Let me check <"},
			restream.ToolCallFragment{Index: 0, ID: "c1", Name: "f", Arguments: `{"a":1}`},
		},
		FinishReason: restream.FinishToolCalls,
	})
	require.NoError(t, r.Finish())

	require.Len(t, rec.events, 3)
	assert.Equal(t, "Let me check <", rec.text())
	assert.Equal(t, restream.EventText{Text: "<"}, rec.events[1])
	assert.Equal(t, "c1", rec.events[2].(restream.EventToolCall).ID)
}

func TestReconstructor_ToolCallClosesTagSpan(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	push(t, r,
		textDelta("<think>abc"),
		toolDelta(restream.ToolCallFragment{Index: 0, ID: "c1", Name: "f", Arguments: `{}`}),
		textDelta("def</think>x"),
	)
	require.NoError(t, r.Finish())

	text := restream.ThinkingMetadata{Kind: restream.ReasoningText}
	assert.Equal(t, []restream.Event{
		restream.EventThinking{ID: "id-1", Text: "abc", Metadata: text},
		restream.EventThinking{ID: "id-1"},
		restream.EventToolCall{ID: "c1", Name: "f", Arguments: json.RawMessage(`{}`)},
		restream.EventThinking{ID: "id-2", Text: "def", Metadata: text},
		restream.EventThinking{ID: "id-2"},
		restream.EventText{Text: "x"},
	}, rec.events)
}

func TestReconstructor_OpenTagSpanClosedAtEnd(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	push(t, r, textDelta("<think>abc"))
	require.NoError(t, r.Finish())

	assert.Equal(t, []restream.Event{
		restream.EventThinking{ID: "id-1", Text: "abc", Metadata: restream.ThinkingMetadata{Kind: restream.ReasoningText}},
		restream.EventThinking{ID: "id-1"},
	}, rec.events)
}

func TestReconstructor_DisabledParsers(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor(reconstruct.WithoutSentinels(), reconstruct.WithoutThinkingTags())

	input := "<think>x</think><|tool_calls_section_begin|>"
	push(t, r, textDelta(input))
	require.NoError(t, r.Finish())

	assert.Equal(t, input, rec.text())
	assert.Empty(t, rec.thinking())
}

func TestReconstructor_CustomTags(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor(reconstruct.WithThinkingTags("<reasoning>", "</reasoning>"))

	push(t, r, textDelta("a<reasoning>b</reasoning>c<think>d</think>"))
	require.NoError(t, r.Finish())

	assert.Equal(t, "ac<think>d</think>", rec.text())
	require.Len(t, rec.thinking(), 1)
	assert.Equal(t, "b", rec.thinking()[0].Text)
}

func TestReconstructor_SkipsInvalidParts(t *testing.T) {
	t.Parallel()
	logger, logs := captureLogger()
	r, rec := newReconstructor(reconstruct.WithLogger(logger))

	push(t, r, restream.Delta{Parts: []restream.Part{
		restream.ToolCallFragment{Index: -1, Name: "orphan", Arguments: "{}"},
		restream.ReasoningDetail{Kind: "bogus", Text: "x"},
		restream.TextPart{Text: "kept"},
	}})

	assert.Equal(t, []restream.Event{restream.EventText{Text: "kept"}}, rec.events)
	assert.Contains(t, logs.String(), "skipping invalid part")
}

func TestReconstructor_SinkFailureIsLogged(t *testing.T) {
	t.Parallel()
	logger, logs := captureLogger()
	var attempts int
	sink := &mock.Sink{EmitFn: func(restream.Event) error {
		attempts++
		return errors.New("sink full")
	}}
	r := reconstruct.New(sink, reconstruct.WithLogger(logger))

	require.NoError(t, r.Push(textDelta("a")))
	require.NoError(t, r.Push(textDelta("b")))

	assert.Equal(t, 2, attempts)
	assert.Contains(t, logs.String(), "sink rejected event")
}

func TestReconstructor_DefaultIDsAreUUIDs(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	r := reconstruct.New(rec)

	push(t, r, toolDelta(restream.ToolCallFragment{Index: 0, Name: "f", Arguments: `{}`}))

	calls := rec.toolCalls()
	require.Len(t, calls, 1)
	_, err := uuid.Parse(calls[0].ID)
	assert.NoError(t, err)
}

func TestReconstructor_Lifecycle(t *testing.T) {
	t.Parallel()
	r, _ := newReconstructor()
	assert.Equal(t, restream.StreamStateNew, r.State())

	require.NoError(t, r.Push(textDelta("a")))
	assert.Equal(t, restream.StreamStateStreaming, r.State())

	require.NoError(t, r.Cancel())
	assert.Equal(t, restream.StreamStateCanceled, r.State())
	assert.ErrorIs(t, r.Push(textDelta("b")), restream.ErrStreamClosed)
	assert.ErrorIs(t, r.Finish(), restream.ErrStreamClosed)
	assert.ErrorIs(t, r.Cancel(), restream.ErrStreamClosed)

	r.Reset()
	assert.Equal(t, restream.StreamStateNew, r.State())
	assert.NoError(t, r.Push(textDelta("c")))
}

func TestReconstructor_ResetDiscardsBuffers(t *testing.T) {
	t.Parallel()
	r, rec := newReconstructor()

	push(t, r,
		reasoningDelta(plain("lost")),
		textDelta("<|tool_calls_sec"),
		toolDelta(restream.ToolCallFragment{Index: 0, ID: "c", Name: "f", Arguments: `{"a":`}),
	)
	r.Reset()
	require.NoError(t, r.Finish())

	assert.Empty(t, rec.events)
}

func TestReconstructor_Run(t *testing.T) {
	t.Parallel()

	t.Run("completes at EOF", func(t *testing.T) {
		t.Parallel()
		r, rec := newReconstructor()
		src := mock.Deltas(textDelta("hi"), reasoningDelta(plain("tail")))
		var closed bool
		src.CloseFn = func() error {
			closed = true
			return nil
		}

		err := r.Run(context.Background(), src)

		require.NoError(t, err)
		assert.True(t, closed)
		assert.Equal(t, restream.StreamStateComplete, r.State())
		assert.Equal(t, []string{"hi"}, rec.texts())
		require.Len(t, rec.thinking(), 1)
		assert.Equal(t, "tail", rec.thinking()[0].Text, "terminal flush releases reasoning")
		assert.Len(t, rec.closes(), 1)
	})

	t.Run("nil source", func(t *testing.T) {
		t.Parallel()
		r, _ := newReconstructor()
		assert.ErrorIs(t, r.Run(context.Background(), nil), restream.ErrNoSource)
	})

	t.Run("skips malformed deltas", func(t *testing.T) {
		t.Parallel()
		r, rec := newReconstructor()
		results := []struct {
			d   restream.Delta
			err error
		}{
			{d: textDelta("a")},
			{err: fmt.Errorf("decode chunk: %w", restream.ErrMalformedDelta)},
			{d: textDelta("b")},
		}
		i := 0
		src := &mock.Source{NextFn: func() (restream.Delta, error) {
			if i == len(results) {
				return restream.Delta{}, io.EOF
			}
			res := results[i]
			i++
			return res.d, res.err
		}}

		require.NoError(t, r.Run(context.Background(), src))
		assert.Equal(t, "ab", rec.text())
	})

	t.Run("source error flushes and returns", func(t *testing.T) {
		t.Parallel()
		r, rec := newReconstructor()
		boom := errors.New("connection reset")
		calls := 0
		src := &mock.Source{NextFn: func() (restream.Delta, error) {
			calls++
			if calls == 1 {
				return toolDelta(restream.ToolCallFragment{Index: 0, ID: "c", Name: "f", Arguments: `{"a":"b`}), nil
			}
			return restream.Delta{}, boom
		}}

		err := r.Run(context.Background(), src)

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, restream.StreamStateError, r.State())
		require.Len(t, rec.toolCalls(), 1)
		assert.JSONEq(t, `{"a":"b"}`, string(rec.toolCalls()[0].Arguments))
	})

	t.Run("canceled mid-stream", func(t *testing.T) {
		t.Parallel()
		r, rec := newReconstructor()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		calls := 0
		src := &mock.Source{NextFn: func() (restream.Delta, error) {
			calls++
			if calls == 1 {
				cancel()
				return reasoningDelta(plain("half")), nil
			}
			t.Fatal("Next called after cancellation")
			return restream.Delta{}, nil
		}}

		err := r.Run(ctx, src)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, restream.StreamStateCanceled, r.State())
		require.Len(t, rec.thinking(), 1)
		assert.Equal(t, "half", rec.thinking()[0].Text)
		assert.Len(t, rec.closes(), 1)
	})

	t.Run("canceled while blocked in Next", func(t *testing.T) {
		t.Parallel()
		r, _ := newReconstructor()
		ctx, cancel := context.WithCancel(context.Background())
		src := &mock.Source{NextFn: func() (restream.Delta, error) {
			cancel()
			return restream.Delta{}, errors.New("read on closed body")
		}}

		err := r.Run(ctx, src)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, restream.StreamStateCanceled, r.State())
	})

	t.Run("resets before starting", func(t *testing.T) {
		t.Parallel()
		r, rec := newReconstructor()
		require.NoError(t, r.Push(textDelta("old")))
		require.NoError(t, r.Finish())

		require.NoError(t, r.Run(context.Background(), mock.Deltas(textDelta("new"))))
		assert.Equal(t, []string{"old", "new"}, rec.texts())
	})
}
