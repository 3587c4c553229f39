package restream

import "encoding/json"

// Event is a sealed interface representing a reconstructed stream event.
// Events are purely semantic. Transport/protocol errors come from
// Source.Next()'s error return, not from events.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventText represents a literal visible text segment.
type EventText struct {
	Text string
}

func (EventText) event() {}

// EventThinking represents part of a thinking span. Events sharing an ID
// belong to the same logical thought. An event with empty Text closes the
// span identified by ID.
type EventThinking struct {
	ID       string
	Text     string
	Metadata ThinkingMetadata
}

func (EventThinking) event() {}

// IsClose reports whether the event closes its span.
func (e EventThinking) IsClose() bool {
	return e.Text == "" && e.Metadata.Signature == ""
}

// ThinkingMetadata carries the structural data needed to replay a thinking
// span on a later turn. Signature is copied verbatim from the segment that
// carried it and is never moved to another event.
type ThinkingMetadata struct {
	Kind      ReasoningKind
	Format    string
	Index     *int
	Signature string
}

// EventToolCall represents a complete tool invocation.
type EventToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

func (EventToolCall) event() {}

// Interface compliance checks.
var (
	_ Event = EventText{}
	_ Event = EventThinking{}
	_ Event = EventToolCall{}
)
