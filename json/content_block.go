package json

import (
	"encoding/json"
	"fmt"

	"github.com/fwojciec/restream"
)

// contentBlock is the JSON representation of a ContentBlock with a type discriminator.
type contentBlock struct {
	Type      string           `json:"type"`
	Text      *string          `json:"text,omitempty"`
	Thinking  *string          `json:"thinking,omitempty"`
	Kind      *string          `json:"kind,omitempty"`
	Format    *string          `json:"format,omitempty"`
	Index     *int             `json:"index,omitempty"`
	Signature *string          `json:"signature,omitempty"`
	ID        *string          `json:"id,omitempty"`
	Name      *string          `json:"name,omitempty"`
	Arguments *json.RawMessage `json:"arguments,omitempty"`
}

func marshalContentBlocks(blocks []restream.ContentBlock) ([]contentBlock, error) {
	result := make([]contentBlock, len(blocks))
	for i, b := range blocks {
		cb, err := marshalContentBlock(b)
		if err != nil {
			return nil, fmt.Errorf("content block %d: %w", i, err)
		}
		result[i] = cb
	}
	return result, nil
}

func marshalContentBlock(b restream.ContentBlock) (contentBlock, error) {
	switch v := b.(type) {
	case restream.TextBlock:
		return contentBlock{Type: "text", Text: &v.Text}, nil
	case restream.ThinkingBlock:
		kind := string(v.Kind)
		cb := contentBlock{Type: "thinking", ID: &v.ID, Thinking: &v.Thinking, Kind: &kind, Index: v.Index}
		if v.Format != "" {
			cb.Format = &v.Format
		}
		if v.Signature != "" {
			cb.Signature = &v.Signature
		}
		return cb, nil
	case restream.ToolCallBlock:
		args := v.Arguments
		return contentBlock{Type: "tool_call", ID: &v.ID, Name: &v.Name, Arguments: &args}, nil
	default:
		return contentBlock{}, fmt.Errorf("unknown content block type: %T", b)
	}
}

func unmarshalContentBlocks(dtos []contentBlock) ([]restream.ContentBlock, error) {
	result := make([]restream.ContentBlock, len(dtos))
	for i, dto := range dtos {
		b, err := unmarshalContentBlock(dto)
		if err != nil {
			return nil, fmt.Errorf("content block %d: %w", i, err)
		}
		result[i] = b
	}
	return result, nil
}

func unmarshalContentBlock(dto contentBlock) (restream.ContentBlock, error) {
	switch dto.Type {
	case "text":
		return restream.TextBlock{Text: deref(dto.Text)}, nil
	case "thinking":
		kind := restream.ReasoningKind(deref(dto.Kind))
		if kind == "" {
			kind = restream.ReasoningText
		}
		return restream.ThinkingBlock{
			ID:        deref(dto.ID),
			Thinking:  deref(dto.Thinking),
			Kind:      kind,
			Format:    deref(dto.Format),
			Index:     dto.Index,
			Signature: deref(dto.Signature),
		}, nil
	case "tool_call":
		var args json.RawMessage
		if dto.Arguments != nil {
			args = *dto.Arguments
		}
		return restream.ToolCallBlock{ID: deref(dto.ID), Name: deref(dto.Name), Arguments: args}, nil
	default:
		return nil, fmt.Errorf("unknown content block type: %q", dto.Type)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
