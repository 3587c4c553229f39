package restream

import (
	"fmt"
	"strings"
	"time"
)

// Interface compliance check.
var _ Sink = (*Assembler)(nil)

// Assembler is a Sink that builds an AssistantMessage from the event
// sequence of one stream. Text events merge into the preceding TextBlock;
// thinking events merge into the ThinkingBlock of their span ID.
type Assembler struct {
	blocks   []ContentBlock
	thinking map[string]int // span ID -> index into blocks
	closed   map[string]bool
	text     *strings.Builder
	now      func() time.Time
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		thinking: make(map[string]int),
		closed:   make(map[string]bool),
		now:      time.Now,
	}
}

// Emit records e.
func (a *Assembler) Emit(e Event) error {
	switch ev := e.(type) {
	case EventText:
		if ev.Text == "" {
			return nil
		}
		if a.text == nil {
			a.text = &strings.Builder{}
			a.blocks = append(a.blocks, TextBlock{})
		}
		a.text.WriteString(ev.Text)
		a.blocks[len(a.blocks)-1] = TextBlock{Text: a.text.String()}
	case EventThinking:
		return a.emitThinking(ev)
	case EventToolCall:
		a.text = nil
		a.blocks = append(a.blocks, ToolCallBlock{ID: ev.ID, Name: ev.Name, Arguments: ev.Arguments})
	default:
		return fmt.Errorf("unknown event type %T: %w", e, ErrValidation)
	}
	return nil
}

func (a *Assembler) emitThinking(ev EventThinking) error {
	if ev.ID == "" {
		return fmt.Errorf("thinking event without span id: %w", ErrValidation)
	}
	if ev.IsClose() {
		a.closed[ev.ID] = true
		return nil
	}
	if a.closed[ev.ID] {
		return fmt.Errorf("thinking event for closed span %q: %w", ev.ID, ErrValidation)
	}
	a.text = nil
	idx, ok := a.thinking[ev.ID]
	if !ok {
		a.blocks = append(a.blocks, ThinkingBlock{
			ID:     ev.ID,
			Kind:   ev.Metadata.Kind,
			Format: ev.Metadata.Format,
			Index:  ev.Metadata.Index,
		})
		idx = len(a.blocks) - 1
		a.thinking[ev.ID] = idx
	}
	tb := a.blocks[idx].(ThinkingBlock)
	tb.Thinking += ev.Text
	if ev.Metadata.Signature != "" {
		tb.Signature = ev.Metadata.Signature
	}
	a.blocks[idx] = tb
	return nil
}

// Message returns the message assembled so far.
func (a *Assembler) Message() AssistantMessage {
	content := make([]ContentBlock, len(a.blocks))
	copy(content, a.blocks)
	return AssistantMessage{Content: content, Timestamp: a.now()}
}

// ToolCalls returns the tool calls assembled so far, in emission order.
func (a *Assembler) ToolCalls() []ToolCallBlock {
	var calls []ToolCallBlock
	for _, b := range a.blocks {
		if tc, ok := b.(ToolCallBlock); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}
