package anthropic

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fwojciec/restream"
)

// ConvertMessage converts an assembled message to an assistant-role
// MessageParam for the next turn. Signed thinking and redacted thinking are
// replayed verbatim, which Anthropic requires when tool use follows
// extended thinking. Unsigned thinking and summaries cannot be replayed and
// are skipped.
func ConvertMessage(m restream.AssistantMessage) anthropic.MessageParam {
	var blocks []anthropic.ContentBlockParamUnion
	for _, b := range m.Content {
		switch bl := b.(type) {
		case restream.TextBlock:
			if bl.Text == "" {
				continue
			}
			blocks = append(blocks, anthropic.NewTextBlock(bl.Text))
		case restream.ThinkingBlock:
			switch {
			case bl.Kind == restream.ReasoningEncrypted:
				blocks = append(blocks, anthropic.NewRedactedThinkingBlock(bl.Thinking))
			case bl.Kind == restream.ReasoningText && bl.Signature != "":
				blocks = append(blocks, anthropic.NewThinkingBlock(bl.Signature, bl.Thinking))
			}
		case restream.ToolCallBlock:
			blocks = append(blocks, anthropic.NewToolUseBlock(bl.ID, json.RawMessage(bl.Arguments), bl.Name))
		}
	}
	return anthropic.NewAssistantMessage(blocks...)
}
