package json

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fwojciec/restream"
)

// Interface compliance check.
var _ restream.Sink = (*EventWriter)(nil)

// eventDTO is the JSON representation of an Event with a type discriminator.
type eventDTO struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Text      string          `json:"text,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Format    string          `json:"format,omitempty"`
	Index     *int            `json:"index,omitempty"`
	Signature string          `json:"signature,omitempty"`
	Close     bool            `json:"close,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// MarshalEvent serializes one event as a single-line JSON object.
func MarshalEvent(e restream.Event) ([]byte, error) {
	var dto eventDTO
	switch v := e.(type) {
	case restream.EventText:
		dto = eventDTO{Type: "text", Text: v.Text}
	case restream.EventThinking:
		dto = eventDTO{
			Type:      "thinking",
			ID:        v.ID,
			Text:      v.Text,
			Kind:      string(v.Metadata.Kind),
			Format:    v.Metadata.Format,
			Index:     v.Metadata.Index,
			Signature: v.Metadata.Signature,
			Close:     v.IsClose(),
		}
	case restream.EventToolCall:
		dto = eventDTO{Type: "tool_call", ID: v.ID, Name: v.Name, Arguments: v.Arguments}
	default:
		return nil, fmt.Errorf("unknown event type: %T", e)
	}
	return json.Marshal(dto)
}

// EventWriter is a Sink that writes each event as one JSON line.
type EventWriter struct {
	w io.Writer
}

// NewEventWriter returns an EventWriter writing to w.
func NewEventWriter(w io.Writer) *EventWriter {
	return &EventWriter{w: w}
}

// Emit writes e followed by a newline.
func (ew *EventWriter) Emit(e restream.Event) error {
	data, err := MarshalEvent(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := ew.w.Write(data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}
