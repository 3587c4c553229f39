package reconstruct

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/fwojciec/restream"
	"github.com/tidwall/gjson"
)

// toolRecord accumulates the fragments of one tool call.
type toolRecord struct {
	index int
	id    string
	name  strings.Builder
	args  strings.Builder
}

// ToolCallBuffer accumulates tool call fragments keyed by index, or by ID
// when no index is given. A record is emitted once its arguments parse as a
// JSON object or array. Keys that were emitted or dropped ignore later
// fragments, which tolerates upstream retransmission.
type ToolCallBuffer struct {
	newID  func() string
	logger *slog.Logger

	open      []*toolRecord
	byIndex   map[int]*toolRecord
	byID      map[string]*toolRecord
	doneIndex map[int]bool
	doneID    map[string]bool
}

// NewToolCallBuffer returns an empty buffer. newID generates IDs for calls
// the upstream did not identify.
func NewToolCallBuffer(newID func() string, logger *slog.Logger) *ToolCallBuffer {
	b := &ToolCallBuffer{newID: newID, logger: logger}
	b.Reset()
	return b
}

// Add consumes one fragment. It returns the completed call when the
// fragment made the record's arguments well-formed.
func (b *ToolCallBuffer) Add(f restream.ToolCallFragment) (restream.EventToolCall, bool) {
	if f.ID != "" && b.doneID[f.ID] {
		return restream.EventToolCall{}, false
	}
	rec := b.lookup(f)
	if rec == nil {
		if f.Index >= 0 && b.doneIndex[f.Index] {
			// Same slot, no new identity: a retransmission.
			if f.ID == "" {
				return restream.EventToolCall{}, false
			}
			delete(b.doneIndex, f.Index)
		}
		rec = &toolRecord{index: f.Index}
		b.open = append(b.open, rec)
		if f.Index >= 0 {
			b.byIndex[f.Index] = rec
		}
	}
	if f.ID != "" && rec.id == "" {
		rec.id = f.ID
		b.byID[f.ID] = rec
	}
	rec.name.WriteString(f.Name)
	rec.args.WriteString(f.Arguments)

	if rec.name.Len() == 0 || !isStructured(rec.args.String()) {
		return restream.EventToolCall{}, false
	}
	e := b.complete(rec, strings.TrimSpace(rec.args.String()))
	b.remove(rec)
	return e, true
}

func (b *ToolCallBuffer) lookup(f restream.ToolCallFragment) *toolRecord {
	if f.Index >= 0 {
		if rec, ok := b.byIndex[f.Index]; ok {
			// A new ID on an occupied slot starts a different call only if
			// the slot already has its own ID.
			if f.ID == "" || rec.id == "" || rec.id == f.ID {
				return rec
			}
		}
	}
	if f.ID != "" {
		if rec, ok := b.byID[f.ID]; ok {
			return rec
		}
	}
	return nil
}

// Flush force-completes every open record. Records whose arguments do not
// parse are dropped and logged. When final is set, as on the last flush at
// stream end, one best-effort repair is attempted before dropping.
func (b *ToolCallBuffer) Flush(final bool) []restream.EventToolCall {
	var out []restream.EventToolCall
	for _, rec := range b.open {
		name := strings.TrimSpace(rec.name.String())
		args := strings.TrimSpace(rec.args.String())
		if args == "" {
			args = "{}"
		}
		switch {
		case name == "":
			b.logger.Warn("dropping tool call without name", "id", rec.id, "index", rec.index)
		case isStructured(args):
			out = append(out, b.complete(rec, args))
		case final && isStructured(repairJSON(args)):
			b.logger.Info("repaired incomplete tool call arguments", "id", rec.id, "name", name)
			out = append(out, b.complete(rec, repairJSON(args)))
		default:
			b.logger.Warn("dropping tool call with incomplete arguments",
				"id", rec.id, "name", name, "arguments", args)
		}
		b.markDone(rec)
	}
	b.open = nil
	clear(b.byIndex)
	clear(b.byID)
	return out
}

// Pending returns the number of open records.
func (b *ToolCallBuffer) Pending() int {
	return len(b.open)
}

// Reset discards all records and forgets completed keys.
func (b *ToolCallBuffer) Reset() {
	b.open = nil
	b.byIndex = make(map[int]*toolRecord)
	b.byID = make(map[string]*toolRecord)
	b.doneIndex = make(map[int]bool)
	b.doneID = make(map[string]bool)
}

func (b *ToolCallBuffer) complete(rec *toolRecord, args string) restream.EventToolCall {
	if rec.id == "" {
		rec.id = b.newID()
	}
	b.markDone(rec)
	return restream.EventToolCall{
		ID:        rec.id,
		Name:      strings.TrimSpace(rec.name.String()),
		Arguments: json.RawMessage(args),
	}
}

func (b *ToolCallBuffer) markDone(rec *toolRecord) {
	if rec.index >= 0 {
		b.doneIndex[rec.index] = true
	}
	if rec.id != "" {
		b.doneID[rec.id] = true
	}
}

func (b *ToolCallBuffer) remove(rec *toolRecord) {
	for i, r := range b.open {
		if r == rec {
			b.open = append(b.open[:i], b.open[i+1:]...)
			break
		}
	}
	if rec.index >= 0 && b.byIndex[rec.index] == rec {
		delete(b.byIndex, rec.index)
	}
	if rec.id != "" && b.byID[rec.id] == rec {
		delete(b.byID, rec.id)
	}
}

// isStructured reports whether s is a complete JSON object or array.
func isStructured(s string) bool {
	if !gjson.Valid(s) {
		return false
	}
	r := gjson.Parse(s)
	return r.IsObject() || r.IsArray()
}

// repairJSON closes an unterminated string, strips a trailing comma and
// balances open brackets. The result is not guaranteed to be valid.
func repairJSON(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if escaped {
		s = s[:len(s)-1]
	}
	if inString {
		s += `"`
	}
	s = strings.TrimRight(s, " \t\r\n")
	s = strings.TrimSuffix(s, ",")
	var sb strings.Builder
	sb.WriteString(s)
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteByte(stack[i])
	}
	return sb.String()
}
