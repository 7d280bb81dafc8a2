package pricing

import (
	"context"
	"strings"
	"sync"
)

// Provider resolves pricing for a (provider, model) pair.
// A nil Config with a nil error means the pair is not configured;
// callers must treat that as zero cost plus a warning, never as a failure.
type Provider interface {
	GetPricing(ctx context.Context, provider, model string) (*Config, error)
}

// StaticProvider is an in-memory price sheet keyed by provider/model.
// It backs development and tests, and serves as the default table until the
// settings service overrides entries at runtime.
type StaticProvider struct {
	mu      sync.RWMutex
	configs map[string]Config
}

// NewStaticProvider creates a provider seeded with the given configs.
func NewStaticProvider(configs ...Config) *StaticProvider {
	p := &StaticProvider{configs: make(map[string]Config, len(configs))}
	for _, cfg := range configs {
		p.configs[key(cfg.Provider, cfg.Model)] = cfg
	}
	return p
}

// NewDefaultProvider returns a provider seeded with the models the content
// pipelines use out of the box. Prices are USD.
func NewDefaultProvider() *StaticProvider {
	return NewStaticProvider(
		Config{Provider: "openai", Model: "gpt-4o", InputPerMillionTokens: 5, OutputPerMillionTokens: 15},
		Config{Provider: "openai", Model: "gpt-4o-mini", InputPerMillionTokens: 0.15, OutputPerMillionTokens: 0.6},
		Config{Provider: "openai", Model: "gpt-image-1", InputPerMillionTokens: 5, OutputPerMillionTokens: 0, ImagePerUnit: 0.17},
		Config{Provider: "google", Model: "gemini-2.5-flash", InputPerMillionTokens: 0.3, OutputPerMillionTokens: 2.5},
		Config{Provider: "google", Model: "gemini-2.5-pro", InputPerMillionTokens: 1.25, OutputPerMillionTokens: 10},
		Config{Provider: "google", Model: "imagen-4", ImagePerUnit: 0.04},
		Config{Provider: "google", Model: "veo-3", VideoPerSecond: 0.4},
	)
}

// GetPricing implements Provider.
func (p *StaticProvider) GetPricing(_ context.Context, provider, model string) (*Config, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cfg, ok := p.configs[key(provider, model)]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

// Set inserts or replaces a pricing entry.
func (p *StaticProvider) Set(cfg Config) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.configs[key(cfg.Provider, cfg.Model)] = cfg
}

// Delete removes a pricing entry.
func (p *StaticProvider) Delete(provider, model string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.configs, key(provider, model))
}

func key(provider, model string) string {
	return strings.ToLower(provider) + "/" + strings.ToLower(model)
}
