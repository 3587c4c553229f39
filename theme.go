package restream

// Theme defines semantic color mappings using ANSI color indices (0-15).
// The user's terminal theme determines the actual RGB values, so rendered
// events automatically match any color scheme. A negative index means no
// color.
type Theme struct {
	Text     int // Visible text
	Thinking int // Thinking span text
	ToolCall int // Tool call header
	Error    int // Error messages
	Muted    int // Span markers, file headers
	Accent   int // Continuation signature markers
}

// DefaultTheme returns the default ANSI color mapping.
func DefaultTheme() Theme {
	return Theme{
		Text:     -1,
		Thinking: 8,
		ToolCall: 3,
		Error:    1,
		Muted:    8,
		Accent:   5,
	}
}
