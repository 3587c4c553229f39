package gemini

import (
	"encoding/base64"
	"encoding/json"

	"github.com/fwojciec/restream"
	"google.golang.org/genai"
)

// ConvertMessage converts an assembled message to a model-role genai
// Content for the next turn. Thought signatures are decoded back to bytes;
// a signature that is not valid base64 is dropped, since Gemini rejects it
// anyway. Encrypted and summary reasoning has no Gemini form and is skipped.
func ConvertMessage(m restream.AssistantMessage) *genai.Content {
	var parts []*genai.Part
	for _, b := range m.Content {
		switch bl := b.(type) {
		case restream.TextBlock:
			parts = append(parts, &genai.Part{Text: bl.Text})
		case restream.ThinkingBlock:
			if bl.Kind != restream.ReasoningText {
				continue
			}
			p := &genai.Part{Text: bl.Thinking, Thought: true}
			if sig, err := base64.StdEncoding.DecodeString(bl.Signature); err == nil && len(sig) > 0 {
				p.ThoughtSignature = sig
			}
			parts = append(parts, p)
		case restream.ToolCallBlock:
			// Arguments are validated JSON by the time a message is assembled.
			var args map[string]any
			_ = json.Unmarshal(bl.Arguments, &args)
			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					ID:   bl.ID,
					Name: bl.Name,
					Args: args,
				},
			})
		}
	}
	return &genai.Content{Role: genai.RoleModel, Parts: parts}
}
