package restream

import (
	"encoding/json"
	"fmt"
)

// ValidatePart checks universal constraints on a delta part. Parts that
// fail validation are malformed and are skipped by the reconstructor.
func ValidatePart(p Part) error {
	switch v := p.(type) {
	case ReasoningDetail:
		switch v.Kind {
		case ReasoningText, ReasoningSummary, ReasoningEncrypted:
		default:
			return fmt.Errorf("unknown reasoning kind %q: %w", v.Kind, ErrValidation)
		}
		if v.Index != nil && *v.Index < 0 {
			return fmt.Errorf("reasoning index must be non-negative, got %d: %w", *v.Index, ErrValidation)
		}
		return nil
	case LegacyReasoning, TextPart:
		return nil
	case ToolCallFragment:
		if v.Index < 0 && v.ID == "" {
			return fmt.Errorf("tool call fragment has neither index nor id: %w", ErrValidation)
		}
		return nil
	default:
		return fmt.Errorf("unknown part type %T: %w", p, ErrValidation)
	}
}

// ValidateMessage checks that an assembled message can be replayed: tool
// calls carry an id, a name and JSON arguments, and thinking blocks carry a
// span id.
func ValidateMessage(msg AssistantMessage) error {
	for i, b := range msg.Content {
		switch v := b.(type) {
		case TextBlock:
		case ThinkingBlock:
			if v.ID == "" {
				return fmt.Errorf("block %d: thinking block without id: %w", i, ErrValidation)
			}
		case ToolCallBlock:
			if v.ID == "" || v.Name == "" {
				return fmt.Errorf("block %d: tool call without id or name: %w", i, ErrValidation)
			}
			if !json.Valid(v.Arguments) {
				return fmt.Errorf("block %d: tool call %q has invalid arguments: %w", i, v.ID, ErrValidation)
			}
		default:
			return fmt.Errorf("block %d: unknown content block type %T: %w", i, b, ErrValidation)
		}
	}
	return nil
}
