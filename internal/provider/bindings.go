package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/codeturn-ai/opencode/pkg/types"
)

const defaultMaxTokens = 8192

// NewAnthropic binds the Anthropic API through the eino claude model.
func NewAnthropic(ctx context.Context, desc types.ProviderDescriptor) (Provider, error) {
	modelID := desc.Model
	if modelID == "" {
		modelID = "claude-sonnet-4-20250514"
	}

	cfg := &claude.Config{
		APIKey:    desc.APIKey,
		Model:     modelID,
		MaxTokens: defaultMaxTokens,
	}
	if desc.BaseURL != "" {
		cfg.BaseURL = &desc.BaseURL
	}

	chat, err := claude.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	return &chatModelProvider{
		id:   desc.ID,
		chat: chat,
		models: []types.Model{
			{ID: modelID, Name: modelID, ProviderID: desc.ID, ContextLength: 200_000, MaxOutputTokens: defaultMaxTokens, SupportsTools: true},
		},
	}, nil
}

// NewOpenAI binds any OpenAI-compatible endpoint, which covers both the
// openai-compatible and ollama provider kinds (ollama serves the same wire
// format on a local port and needs no key).
func NewOpenAI(ctx context.Context, desc types.ProviderDescriptor) (Provider, error) {
	modelID := desc.Model
	if modelID == "" {
		modelID = "gpt-4o"
	}

	maxTokens := defaultMaxTokens
	cfg := &openai.ChatModelConfig{
		APIKey:              desc.APIKey,
		Model:               modelID,
		MaxCompletionTokens: &maxTokens,
	}
	if desc.BaseURL != "" {
		cfg.BaseURL = desc.BaseURL
	} else if desc.Kind == types.ProviderKindOllama {
		cfg.BaseURL = "http://localhost:11434/v1"
	}

	chat, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	return &chatModelProvider{
		id:   desc.ID,
		chat: chat,
		models: []types.Model{
			{ID: modelID, Name: modelID, ProviderID: desc.ID, ContextLength: 128_000, MaxOutputTokens: maxTokens, SupportsTools: true},
		},
	}, nil
}

// NewArk binds a Volcano Engine Ark endpoint, the kind the qwen descriptor
// resolves to.
func NewArk(ctx context.Context, desc types.ProviderDescriptor) (Provider, error) {
	if desc.Model == "" {
		return nil, fmt.Errorf("ark: descriptor %q needs an endpoint model id", desc.ID)
	}

	maxTokens := defaultMaxTokens
	cfg := &ark.ChatModelConfig{
		APIKey:    desc.APIKey,
		Model:     desc.Model,
		MaxTokens: &maxTokens,
	}
	if desc.BaseURL != "" {
		cfg.BaseURL = desc.BaseURL
	}

	chat, err := ark.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ark: %w", err)
	}

	return &chatModelProvider{
		id:   desc.ID,
		chat: chat,
		models: []types.Model{
			{ID: desc.Model, Name: desc.Model, ProviderID: desc.ID, ContextLength: 128_000, MaxOutputTokens: maxTokens, SupportsTools: true},
		},
	}, nil
}
