package reconstruct_test

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fwojciec/restream"
)

// recorder is a sink that keeps every event it receives.
type recorder struct {
	events []restream.Event
}

func (r *recorder) Emit(e restream.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) texts() []string {
	var out []string
	for _, e := range r.events {
		if t, ok := e.(restream.EventText); ok {
			out = append(out, t.Text)
		}
	}
	return out
}

func (r *recorder) text() string {
	return strings.Join(r.texts(), "")
}

// thinking returns thinking events that carry text or a signature.
func (r *recorder) thinking() []restream.EventThinking {
	var out []restream.EventThinking
	for _, e := range r.events {
		if t, ok := e.(restream.EventThinking); ok && !t.IsClose() {
			out = append(out, t)
		}
	}
	return out
}

func (r *recorder) closes() []restream.EventThinking {
	var out []restream.EventThinking
	for _, e := range r.events {
		if t, ok := e.(restream.EventThinking); ok && t.IsClose() {
			out = append(out, t)
		}
	}
	return out
}

func (r *recorder) toolCalls() []restream.EventToolCall {
	var out []restream.EventToolCall
	for _, e := range r.events {
		if t, ok := e.(restream.EventToolCall); ok {
			out = append(out, t)
		}
	}
	return out
}

// sequentialIDs returns a deterministic ID generator: id-1, id-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func textDelta(s string) restream.Delta {
	return restream.Delta{Parts: []restream.Part{restream.TextPart{Text: s}}}
}

func reasoningDelta(d restream.ReasoningDetail) restream.Delta {
	return restream.Delta{Parts: []restream.Part{d}}
}

func toolDelta(f restream.ToolCallFragment) restream.Delta {
	return restream.Delta{Parts: []restream.Part{f}}
}

// captureLogger returns a debug-level text logger writing to the returned
// buffer.
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}
