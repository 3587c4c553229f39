// Package gemini adapts the google.golang.org/genai streaming iterator to
// [restream.Source], and converts assembled messages back into genai
// contents for replay.
//
// Thought signatures are opaque bytes in the SDK; they travel through
// restream as standard base64 strings.
package gemini
