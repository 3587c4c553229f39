package restream

// Delta is one decoded incremental unit of model output. Adapters classify
// every upstream chunk into a fixed set of Part variants before any
// reconstruction logic runs.
type Delta struct {
	Parts        []Part
	FinishReason FinishReason
}

// Part is a sealed interface representing one classified piece of a Delta.
// The unexported marker method prevents external implementations.
type Part interface {
	part()
}

// ReasoningKind identifies the shape of a reasoning segment.
type ReasoningKind string

const (
	ReasoningText      ReasoningKind = "text"
	ReasoningSummary   ReasoningKind = "summary"
	ReasoningEncrypted ReasoningKind = "encrypted"
)

// ReasoningDetail is one entry of a structured reasoning-detail list.
// For ReasoningEncrypted, Text holds the opaque payload.
type ReasoningDetail struct {
	Kind      ReasoningKind
	Index     *int
	Text      string
	Format    string
	Signature string
}

func (ReasoningDetail) part() {}

// IsPlain reports whether the segment is unsigned plain reasoning text,
// which is the only kind eligible for coalescing.
func (d ReasoningDetail) IsPlain() bool {
	return d.Kind == ReasoningText && d.Signature == ""
}

// LegacyReasoning is a single reasoning field on a delta, as sent by
// providers that predate structured reasoning details.
type LegacyReasoning struct {
	Text      string
	Signature string
}

func (LegacyReasoning) part() {}

// TextPart is plain content text. It may embed sentinel-delimited tool call
// sections or tag-delimited reasoning spans.
type TextPart struct {
	Text string
}

func (TextPart) part() {}

// ToolCallFragment is a piece of a streamed tool call. Index is the
// positional key, or -1 when the provider keys calls by ID only. Name and
// Arguments are appended to whatever was received before.
type ToolCallFragment struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

func (ToolCallFragment) part() {}

// Interface compliance checks.
var (
	_ Part = ReasoningDetail{}
	_ Part = LegacyReasoning{}
	_ Part = TextPart{}
	_ Part = ToolCallFragment{}
)

// IntPtr returns a pointer to i. It is a convenience for building
// ReasoningDetail values.
func IntPtr(i int) *int {
	return &i
}
