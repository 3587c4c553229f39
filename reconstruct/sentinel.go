package reconstruct

import (
	"strings"
)

// SentinelTokens are the literal delimiters of an inline tool call section.
// SectionEnd may be empty, in which case a section is only left at stream
// end.
type SentinelTokens struct {
	SectionBegin  string
	SectionEnd    string
	CallBegin     string
	ArgumentBegin string
	CallEnd       string
}

// DefaultSentinelTokens returns the tokens used by models that emit tool
// calls inline, e.g.
//
//	<|tool_calls_section_begin|><|tool_call_begin|>functions.get_weather:0<|tool_call_argument_begin|>{"city":"SF"}<|tool_call_end|><|tool_calls_section_end|>
func DefaultSentinelTokens() SentinelTokens {
	return SentinelTokens{
		SectionBegin:  "<|tool_calls_section_begin|>",
		SectionEnd:    "<|tool_calls_section_end|>",
		CallBegin:     "<|tool_call_begin|>",
		ArgumentBegin: "<|tool_call_argument_begin|>",
		CallEnd:       "<|tool_call_end|>",
	}
}

type sentinelMode int

const (
	modeScanning sentinelMode = iota
	modeInSection
	modeInCallName
	modeInCallArgs
)

func (m sentinelMode) String() string {
	switch m {
	case modeScanning:
		return "scanning"
	case modeInSection:
		return "in_section"
	case modeInCallName:
		return "in_call_name"
	case modeInCallArgs:
		return "in_call_args"
	default:
		return "unknown"
	}
}

// SentinelCall is a tool call recovered from sentinel-delimited text. ID is
// empty unless the name carried one (functions.NAME:N).
type SentinelCall struct {
	ID        string
	Name      string
	Arguments string
}

// SentinelOutput is one result of feeding the parser: visible Text, a
// recovered Call, or an Abandoned call cut off by the section end before its
// call end arrived.
type SentinelOutput struct {
	Text      string
	Call      *SentinelCall
	Abandoned *SentinelCall
}

// SentinelParser recovers inline tool calls from content text. It is a
// four-state machine (scanning, in section, in call name, in call
// arguments). A token split across fragments is withheld until it can be
// recognized, so no token ever leaks into emitted text.
type SentinelParser struct {
	tokens  SentinelTokens
	mode    sentinelMode
	pending string
	name    strings.Builder
	args    strings.Builder
}

// NewSentinelParser returns a parser in the scanning state.
func NewSentinelParser(tokens SentinelTokens) *SentinelParser {
	return &SentinelParser{tokens: tokens}
}

// Feed consumes one fragment and returns everything that became final.
func (p *SentinelParser) Feed(chunk string) []SentinelOutput {
	p.pending += chunk
	var out []SentinelOutput
	for {
		switch p.mode {
		case modeScanning:
			i := strings.Index(p.pending, p.tokens.SectionBegin)
			if i < 0 {
				release, keep := splitPending(p.pending, p.tokens.SectionBegin)
				out = appendText(out, release)
				p.pending = keep
				return out
			}
			out = appendText(out, p.pending[:i])
			p.pending = p.pending[i+len(p.tokens.SectionBegin):]
			p.mode = modeInSection
		case modeInSection:
			i, tok := indexAny(p.pending, p.tokens.CallBegin, p.tokens.SectionEnd)
			if i < 0 {
				_, p.pending = splitPending(p.pending, p.tokens.CallBegin, p.tokens.SectionEnd)
				return out
			}
			p.pending = p.pending[i+len(tok):]
			if tok == p.tokens.CallBegin {
				p.mode = modeInCallName
			} else {
				p.mode = modeScanning
			}
		case modeInCallName:
			switch p.capture(&p.name, p.tokens.ArgumentBegin) {
			case "":
				return out
			case p.tokens.ArgumentBegin:
				p.mode = modeInCallArgs
			default:
				out = append(out, SentinelOutput{Abandoned: p.takeCall()})
				p.mode = modeScanning
			}
		case modeInCallArgs:
			switch p.capture(&p.args, p.tokens.CallEnd) {
			case "":
				return out
			case p.tokens.CallEnd:
				out = append(out, SentinelOutput{Call: p.takeCall()})
				p.mode = modeInSection
			default:
				out = append(out, SentinelOutput{Abandoned: p.takeCall()})
				p.mode = modeScanning
			}
		}
	}
}

// capture moves pending text into b up to token or the section end,
// whichever comes first, and returns the one found. It returns "" when
// neither has arrived yet. A possible partial token is retained.
func (p *SentinelParser) capture(b *strings.Builder, token string) string {
	if i, tok := indexAny(p.pending, token, p.tokens.SectionEnd); i >= 0 {
		b.WriteString(p.pending[:i])
		p.pending = p.pending[i+len(tok):]
		return tok
	}
	release, keep := splitPending(p.pending, token, p.tokens.SectionEnd)
	b.WriteString(release)
	p.pending = keep
	return ""
}

func (p *SentinelParser) takeCall() *SentinelCall {
	id, name := splitCallName(strings.TrimSpace(p.name.String()))
	call := &SentinelCall{
		ID:        id,
		Name:      name,
		Arguments: strings.TrimSpace(p.args.String()),
	}
	p.name.Reset()
	p.args.Reset()
	return call
}

// State returns the name of the parser's current state.
func (p *SentinelParser) State() string {
	return p.mode.String()
}

// Drain releases text withheld in the scanning state as a possible partial
// section begin. Call state inside a section is kept.
func (p *SentinelParser) Drain() string {
	if p.mode != modeScanning {
		return ""
	}
	s := p.pending
	p.pending = ""
	return s
}

// Flush ends the stream. Text pending in the scanning state is released.
// Incomplete call state is discarded; discarded reports whether any was.
func (p *SentinelParser) Flush() (out []SentinelOutput, discarded bool) {
	if p.mode == modeScanning {
		out = appendText(out, p.pending)
	} else {
		discarded = p.mode != modeInSection || p.name.Len() > 0 || p.args.Len() > 0
	}
	p.Reset()
	return out, discarded
}

// Reset returns the parser to the scanning state with empty buffers.
func (p *SentinelParser) Reset() {
	p.mode = modeScanning
	p.pending = ""
	p.name.Reset()
	p.args.Reset()
}

// splitCallName extracts the function name from the functions.NAME:N form.
// The raw string is then the call's ID. Other forms are returned as the
// name with no ID.
func splitCallName(raw string) (id, name string) {
	rest, ok := strings.CutPrefix(raw, "functions.")
	if !ok {
		return "", raw
	}
	if i := strings.LastIndexByte(rest, ':'); i > 0 {
		return raw, rest[:i]
	}
	return raw, rest
}

func appendText(out []SentinelOutput, s string) []SentinelOutput {
	if s == "" {
		return out
	}
	return append(out, SentinelOutput{Text: s})
}
