// Package json implements the JSON boundary of restream: decoding of
// OpenAI-compatible streaming chunks into deltas, a JSONL capture Source,
// an event encoder, and persistence of assembled assistant messages.
package json

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fwojciec/restream"
)

// envelope is the v1 wire format for a persisted assistant message.
type envelope struct {
	Version   int            `json:"version"`
	Timestamp time.Time      `json:"timestamp"`
	Content   []contentBlock `json:"content"`
}

// MarshalMessage serializes an AssistantMessage to JSON in v1 envelope
// format. Thinking signatures are stored verbatim.
func MarshalMessage(m restream.AssistantMessage) ([]byte, error) {
	blocks, err := marshalContentBlocks(m.Content)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(envelope{
		Version:   1,
		Timestamp: m.Timestamp,
		Content:   blocks,
	}, "", "  ")
}

// UnmarshalMessage deserializes an AssistantMessage from JSON in v1
// envelope format.
func UnmarshalMessage(data []byte) (restream.AssistantMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return restream.AssistantMessage{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Version != 1 {
		return restream.AssistantMessage{}, fmt.Errorf("unsupported envelope version: %d", env.Version)
	}
	blocks, err := unmarshalContentBlocks(env.Content)
	if err != nil {
		return restream.AssistantMessage{}, err
	}
	return restream.AssistantMessage{Content: blocks, Timestamp: env.Timestamp}, nil
}

// Save writes an AssistantMessage to a JSON file, creating parent
// directories as needed. The message is validated first.
func Save(path string, m restream.AssistantMessage) error {
	if err := restream.ValidateMessage(m); err != nil {
		return err
	}
	data, err := MarshalMessage(m)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Load reads an AssistantMessage from a JSON file.
func Load(path string) (restream.AssistantMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return restream.AssistantMessage{}, fmt.Errorf("read file: %w", err)
	}
	return UnmarshalMessage(data)
}
