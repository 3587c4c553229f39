package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/fwojciec/restream"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ restream.Source = (*Source)(nil)

// Source implements [restream.Source] by wrapping the genai SDK's streaming
// iterator.
type Source struct {
	ctx   context.Context
	pull  func() (*genai.GenerateContentResponse, error, bool)
	stop  func()
	calls int
	done  bool
}

// NewSource returns a Source pulling from seq, as returned by
// genai.Models.GenerateContentStream.
func NewSource(ctx context.Context, seq iter.Seq2[*genai.GenerateContentResponse, error]) *Source {
	next, stop := iter.Pull2(seq)
	return &Source{ctx: ctx, pull: next, stop: stop}
}

// NewStreamingSource starts a streaming request and returns its Source.
// Set config.ThinkingConfig.IncludeThoughts to receive thought parts.
func NewStreamingSource(ctx context.Context, client *genai.Client, model string, contents []*genai.Content, config *genai.GenerateContentConfig) *Source {
	return NewSource(ctx, client.Models.GenerateContentStream(ctx, model, contents, config))
}

// Next returns the delta of the next response chunk that carries content or
// a finish reason.
func (s *Source) Next() (restream.Delta, error) {
	if s.done {
		return restream.Delta{}, io.EOF
	}
	for {
		if err := s.ctx.Err(); err != nil {
			return restream.Delta{}, fmt.Errorf("gemini: %w", err)
		}
		resp, err, ok := s.pull()
		if !ok {
			s.done = true
			return restream.Delta{}, io.EOF
		}
		if err != nil {
			return restream.Delta{}, fmt.Errorf("gemini: %w", err)
		}
		d, err := s.convert(resp)
		if err != nil {
			return restream.Delta{}, err
		}
		if len(d.Parts) > 0 || d.FinishReason != restream.FinishNone {
			return d, nil
		}
	}
}

// Close stops the underlying iterator.
func (s *Source) Close() error {
	s.done = true
	s.stop()
	return nil
}

func (s *Source) convert(resp *genai.GenerateContentResponse) (restream.Delta, error) {
	var d restream.Delta
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return d, nil
	}
	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p == nil {
				continue
			}
			parts, err := s.convertPart(p)
			if err != nil {
				return restream.Delta{}, err
			}
			d.Parts = append(d.Parts, parts...)
		}
	}
	d.FinishReason = finishReason(cand.FinishReason)
	return d, nil
}

func (s *Source) convertPart(p *genai.Part) ([]restream.Part, error) {
	sig := encodeSignature(p.ThoughtSignature)
	switch {
	case p.Thought:
		if p.Text == "" && sig == "" {
			return nil, nil
		}
		return []restream.Part{restream.ReasoningDetail{Kind: restream.ReasoningText, Text: p.Text, Signature: sig}}, nil
	case p.FunctionCall != nil:
		var parts []restream.Part
		if sig != "" {
			// Gemini signs the reasoning that led to a call on the call itself.
			parts = append(parts, restream.ReasoningDetail{Kind: restream.ReasoningText, Signature: sig})
		}
		args := []byte("{}")
		if len(p.FunctionCall.Args) > 0 {
			var err error
			if args, err = json.Marshal(p.FunctionCall.Args); err != nil {
				return nil, fmt.Errorf("gemini: encode arguments of %q: %w: %w", p.FunctionCall.Name, err, restream.ErrMalformedDelta)
			}
		}
		parts = append(parts, restream.ToolCallFragment{
			Index:     s.calls,
			ID:        p.FunctionCall.ID,
			Name:      p.FunctionCall.Name,
			Arguments: string(args),
		})
		s.calls++
		return parts, nil
	case p.Text != "":
		return []restream.Part{restream.TextPart{Text: p.Text}}, nil
	case sig != "":
		return []restream.Part{restream.ReasoningDetail{Kind: restream.ReasoningText, Signature: sig}}, nil
	}
	return nil, nil
}

func finishReason(r genai.FinishReason) restream.FinishReason {
	switch r {
	case "", genai.FinishReasonUnspecified:
		return restream.FinishNone
	case genai.FinishReasonStop:
		return restream.FinishStop
	case genai.FinishReasonMaxTokens:
		return restream.FinishLength
	case genai.FinishReasonMalformedFunctionCall:
		return restream.FinishError
	default:
		return restream.FinishUnknown
	}
}

func encodeSignature(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}
