package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/codeturn-ai/opencode/internal/logging"
	"github.com/codeturn-ai/opencode/pkg/types"
)

// Registry holds the providers configured for this process, keyed by id.
// The configuration's provider order is preserved so the first registered
// entry is the default.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider; re-registering an id replaces it.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[p.ID()]; !ok {
		r.order = append(r.order, p.ID())
	}
	r.providers[p.ID()] = p
}

// Get looks a provider up by id.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", id)
	}
	return p, nil
}

// Default returns the first registered provider.
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	return r.providers[r.order[0]], nil
}

// GetModel resolves a model id within a provider.
func (r *Registry) GetModel(providerID, modelID string) (*types.Model, error) {
	p, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}
	for _, m := range p.Models() {
		if m.ID == modelID {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("model not found: %s/%s", providerID, modelID)
}

// ParseModelString splits a "provider/model" override. A bare value with
// no slash is a model id with the provider left to the caller's default.
func ParseModelString(s string) (providerID, modelID string) {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "", s
}

// needsAPIKey reports whether a provider kind is unusable without a key.
// Ollama serves unauthenticated on localhost.
func needsAPIKey(kind types.ProviderKind) bool {
	return kind != types.ProviderKindOllama
}

// InitializeProviders builds a registry from the configuration's ordered
// descriptor list. Descriptors whose kind requires an API key and have
// none (after env fallbacks) are skipped — a later turn against them
// surfaces the missing key as a turn error rather than failing startup.
func InitializeProviders(ctx context.Context, cfg *types.Configuration) (*Registry, error) {
	registry := NewRegistry()
	if cfg == nil {
		return registry, nil
	}

	for _, desc := range cfg.Providers {
		if desc.APIKey == "" && needsAPIKey(desc.Kind) {
			logging.Warn().Str("provider", desc.ID).Msg("skipping provider with no API key")
			continue
		}

		var (
			p   Provider
			err error
		)
		switch desc.Kind {
		case types.ProviderKindAnthropic:
			p, err = NewAnthropic(ctx, desc)
		case types.ProviderKindOpenAICompatible, types.ProviderKindOllama:
			p, err = NewOpenAI(ctx, desc)
		case types.ProviderKindQwen, types.ProviderKindArk:
			p, err = NewArk(ctx, desc)
		default:
			err = fmt.Errorf("unknown provider kind: %s", desc.Kind)
		}
		if err != nil {
			logging.Warn().Str("provider", desc.ID).Err(err).Msg("provider initialization failed")
			continue
		}
		registry.Register(p)
	}

	return registry, nil
}
