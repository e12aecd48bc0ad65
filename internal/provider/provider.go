// Package provider abstracts the LLM behind a small contract: one-shot
// generation, streaming, a model catalog, and an optional handle to the
// underlying tool-calling chat model for the engine's deep path.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/codeturn-ai/opencode/pkg/types"
)

// ErrStreamingUnsupported is returned by Stream when a provider can only
// serve one-shot completions; callers fall back to Generate.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// Request is one completion request.
type Request struct {
	Model       string
	Messages    []*schema.Message
	Temperature float32
	MaxTokens   int
}

// Response is a finished completion. Usage is opaque, advisory metadata.
type Response struct {
	Content string
	Usage   any
}

// Provider is an LLM backend.
type Provider interface {
	// ID returns the provider identifier ("anthropic", "openai", ...).
	ID() string

	// Models lists the models this provider can serve.
	Models() []types.Model

	// Generate runs a one-shot completion.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Stream delivers a completion incrementally, or reports
	// ErrStreamingUnsupported.
	Stream(ctx context.Context, req *Request) (*schema.StreamReader[*schema.Message], error)

	// LLMHandle exposes the underlying tool-calling chat model for the
	// deep-agent loop, or reports false when the provider can't support
	// native tool calling.
	LLMHandle() (model.ToolCallingChatModel, bool)
}

// chatModelProvider adapts any eino tool-calling chat model to the
// Provider contract. All concrete bindings in this package are this struct
// with a different constructor.
type chatModelProvider struct {
	id     string
	chat   model.ToolCallingChatModel
	models []types.Model
}

func (p *chatModelProvider) ID() string           { return p.id }
func (p *chatModelProvider) Models() []types.Model { return p.models }

func (p *chatModelProvider) LLMHandle() (model.ToolCallingChatModel, bool) {
	return p.chat, p.chat != nil
}

func requestOptions(req *Request) []model.Option {
	var opts []model.Option
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(req.Temperature))
	}
	return opts
}

func (p *chatModelProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	msg, err := p.chat.Generate(ctx, req.Messages, requestOptions(req)...)
	if err != nil {
		return nil, fmt.Errorf("%s: generate: %w", p.id, err)
	}
	return &Response{
		// Reasoning preambles are stripped from finished completions;
		// stream chunks pass through verbatim.
		Content: StripThinkBlock(msg.Content),
		Usage:   msg.ResponseMeta,
	}, nil
}

func (p *chatModelProvider) Stream(ctx context.Context, req *Request) (*schema.StreamReader[*schema.Message], error) {
	reader, err := p.chat.Stream(ctx, req.Messages, requestOptions(req)...)
	if err != nil {
		return nil, fmt.Errorf("%s: stream: %w", p.id, err)
	}
	return reader, nil
}
