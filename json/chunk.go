package json

import (
	"fmt"

	"github.com/fwojciec/restream"
	"github.com/tidwall/gjson"
)

// UpstreamError is an error object the provider sent in place of a chunk.
type UpstreamError struct {
	Code    string
	Message string
}

func (e *UpstreamError) Error() string {
	if e.Code == "" {
		return "upstream error: " + e.Message
	}
	return fmt.Sprintf("upstream error %s: %s", e.Code, e.Message)
}

// DecodeChunk classifies one OpenAI-compatible chat completion chunk into a
// Delta. Only the first choice is read.
//
// Structured reasoning_details take precedence over the legacy reasoning
// fields, which providers duplicate alongside them. Unparseable input
// returns an error wrapping restream.ErrMalformedDelta; an error object
// returns *UpstreamError.
func DecodeChunk(data []byte) (restream.Delta, error) {
	if !gjson.ValidBytes(data) {
		return restream.Delta{}, fmt.Errorf("decode chunk: invalid JSON: %w", restream.ErrMalformedDelta)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return restream.Delta{}, fmt.Errorf("decode chunk: not an object: %w", restream.ErrMalformedDelta)
	}
	if e := root.Get("error"); e.Exists() {
		return restream.Delta{}, &UpstreamError{Code: e.Get("code").String(), Message: e.Get("message").String()}
	}

	choice := root.Get("choices.0")
	if !choice.Exists() {
		return restream.Delta{}, nil
	}
	delta := choice.Get("delta")
	d := restream.Delta{Parts: decodeReasoning(delta)}

	if c := delta.Get("content"); c.Type == gjson.String && c.Str != "" {
		d.Parts = append(d.Parts, restream.TextPart{Text: c.Str})
	}

	for _, tc := range delta.Get("tool_calls").Array() {
		index := -1
		if i := tc.Get("index"); i.Type == gjson.Number {
			index = int(i.Int())
		}
		d.Parts = append(d.Parts, restream.ToolCallFragment{
			Index:     index,
			ID:        tc.Get("id").String(),
			Name:      tc.Get("function.name").String(),
			Arguments: tc.Get("function.arguments").String(),
		})
	}

	if r := choice.Get("finish_reason"); r.Type == gjson.String {
		d.FinishReason = ParseFinishReason(r.Str)
	}
	return d, nil
}

// DecodeReasoning extracts the reasoning parts of one raw chunk delta
// object. SDKs that do not model the reasoning extensions of
// OpenAI-compatible providers expose the raw delta for this purpose.
func DecodeReasoning(rawDelta []byte) []restream.Part {
	if !gjson.ValidBytes(rawDelta) {
		return nil
	}
	return decodeReasoning(gjson.ParseBytes(rawDelta))
}

func decodeReasoning(delta gjson.Result) []restream.Part {
	var parts []restream.Part
	details := delta.Get("reasoning_details")
	if details.IsArray() {
		for _, rd := range details.Array() {
			if p, ok := decodeReasoningDetail(rd); ok {
				parts = append(parts, p)
			}
		}
		return parts
	}
	if lr, ok := decodeLegacyReasoning(delta); ok {
		parts = append(parts, lr)
	}
	return parts
}

func decodeReasoningDetail(rd gjson.Result) (restream.ReasoningDetail, bool) {
	d := restream.ReasoningDetail{
		Format:    rd.Get("format").String(),
		Signature: rd.Get("signature").String(),
	}
	if i := rd.Get("index"); i.Type == gjson.Number {
		d.Index = restream.IntPtr(int(i.Int()))
	}
	switch rd.Get("type").String() {
	case "reasoning.text":
		d.Kind = restream.ReasoningText
		d.Text = rd.Get("text").String()
	case "reasoning.summary":
		d.Kind = restream.ReasoningSummary
		d.Text = rd.Get("summary").String()
	case "reasoning.encrypted":
		d.Kind = restream.ReasoningEncrypted
		d.Text = rd.Get("data").String()
	default:
		return d, false
	}
	if d.Text == "" && d.Signature == "" {
		return d, false
	}
	return d, true
}

// decodeLegacyReasoning reads the first populated single-field reasoning
// shape: reasoning_content, reasoning, or a thinking object.
func decodeLegacyReasoning(delta gjson.Result) (restream.LegacyReasoning, bool) {
	for _, path := range []string{"reasoning_content", "reasoning"} {
		if r := delta.Get(path); r.Type == gjson.String && r.Str != "" {
			return restream.LegacyReasoning{Text: r.Str}, true
		}
	}
	th := delta.Get("thinking")
	if !th.IsObject() {
		return restream.LegacyReasoning{}, false
	}
	lr := restream.LegacyReasoning{
		Text:      th.Get("text").String(),
		Signature: th.Get("signature").String(),
	}
	if lr.Text == "" {
		lr.Text = th.Get("content").String()
	}
	return lr, lr.Text != "" || lr.Signature != ""
}

// ParseFinishReason maps a provider finish reason string to a
// FinishReason. Unrecognized values map to FinishUnknown.
func ParseFinishReason(s string) restream.FinishReason {
	switch s {
	case "":
		return restream.FinishNone
	case "stop", "end_turn":
		return restream.FinishStop
	case "tool_calls", "function_call", "tool_use":
		return restream.FinishToolCalls
	case "length", "max_tokens":
		return restream.FinishLength
	case "error":
		return restream.FinishError
	default:
		return restream.FinishUnknown
	}
}
