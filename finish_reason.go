package restream

// FinishReason indicates why the upstream stopped generating, as reported on
// the final delta of a stream.
type FinishReason string

const (
	FinishNone      FinishReason = ""
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
	FinishUnknown   FinishReason = "unknown"
)

// FlushesToolCalls reports whether the reason forces open tool-call records
// to be flushed.
func (r FinishReason) FlushesToolCalls() bool {
	return r == FinishToolCalls || r == FinishStop
}
