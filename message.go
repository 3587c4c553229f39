package restream

import (
	"encoding/json"
	"time"
)

// AssistantMessage is the replayable form of one reconstructed response.
// Thinking blocks keep their kind, order and signature so a later turn can
// send them back verbatim.
type AssistantMessage struct {
	Content   []ContentBlock
	Timestamp time.Time
}

// ContentBlock is a sealed interface representing a block of content.
// The unexported marker method prevents external implementations.
type ContentBlock interface {
	contentBlock()
}

// TextBlock contains text content.
type TextBlock struct {
	Text string
}

func (TextBlock) contentBlock() {}

// ThinkingBlock contains one thinking span. ID is the span's correlation
// identifier. Signature is the provider-issued continuation signature, if
// any.
type ThinkingBlock struct {
	ID        string
	Thinking  string
	Kind      ReasoningKind
	Format    string
	Index     *int
	Signature string
}

func (ThinkingBlock) contentBlock() {}

// ToolCallBlock represents a tool call from the assistant.
type ToolCallBlock struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

func (ToolCallBlock) contentBlock() {}

// Interface compliance checks.
var (
	_ ContentBlock = TextBlock{}
	_ ContentBlock = ThinkingBlock{}
	_ ContentBlock = ToolCallBlock{}
)
