package reconstruct

import (
	"log/slog"

	"github.com/google/uuid"
)

// DefaultCoalesceThreshold is the buffered length, in characters, at which
// plain reasoning text is flushed as one thinking event.
const DefaultCoalesceThreshold = 4000

// Default inline thinking tags.
const (
	DefaultThinkOpen  = "<think>"
	DefaultThinkClose = "</think>"
)

// Option configures a [Reconstructor].
type Option func(*config)

type config struct {
	logger    *slog.Logger
	threshold int
	sentinels *SentinelTokens
	openTag   string
	closeTag  string
	separator string
	newID     func() string
}

func defaultConfig() config {
	tokens := DefaultSentinelTokens()
	return config{
		logger:    slog.New(slog.DiscardHandler),
		threshold: DefaultCoalesceThreshold,
		sentinels: &tokens,
		openTag:   DefaultThinkOpen,
		closeTag:  DefaultThinkClose,
		newID:     uuid.NewString,
	}
}

// WithLogger sets the logger used for dropped tool calls, skipped parts and
// sink failures. Default discards all records.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCoalesceThreshold sets the flush threshold for plain reasoning text.
// Non-positive values keep the default.
func WithCoalesceThreshold(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.threshold = n
		}
	}
}

// WithSentinelTokens replaces the inline tool call sentinel tokens.
func WithSentinelTokens(t SentinelTokens) Option {
	return func(c *config) { c.sentinels = &t }
}

// WithoutSentinels disables sentinel-delimited tool call parsing; content
// text is passed through unchanged.
func WithoutSentinels() Option {
	return func(c *config) { c.sentinels = nil }
}

// WithThinkingTags replaces the inline thinking tags.
func WithThinkingTags(openTag, closeTag string) Option {
	return func(c *config) {
		c.openTag = openTag
		c.closeTag = closeTag
	}
}

// WithoutThinkingTags disables inline thinking tag parsing.
func WithoutThinkingTags() Option {
	return func(c *config) {
		c.openTag = ""
		c.closeTag = ""
	}
}

// WithToolCallSeparator sets text emitted before the first tool call of a
// stream when no text preceded it, for consumers that expect text before
// tools. Empty disables the separator.
func WithToolCallSeparator(s string) Option {
	return func(c *config) { c.separator = s }
}

// WithIDGenerator sets the generator for thinking span and tool call IDs.
// Default generates random UUIDs.
func WithIDGenerator(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.newID = fn
		}
	}
}
