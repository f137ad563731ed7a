package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/WilliamStanton/vibe-build/internal/logging"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// Registry manages all available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	config    *types.Config
}

// NewRegistry creates a new provider registry.
func NewRegistry(config *types.Config) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		config:    config,
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// Get retrieves a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerID)
	}
	return provider, nil
}

// List returns all available providers sorted by ID.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool {
		return providers[i].ID() < providers[j].ID()
	})
	return providers
}

// AllModels returns all models from all providers.
func (r *Registry) AllModels() []types.Model {
	var models []types.Model
	for _, p := range r.List() {
		models = append(models, p.Models()...)
	}
	return models
}

// Resolve maps a "provider/model" string to a registered provider and the
// provider-local model ID. A bare model ID resolves against the only
// registered provider.
func (r *Registry) Resolve(modelString string) (Provider, string, error) {
	providerID, modelID := ParseModelString(modelString)
	if providerID != "" {
		p, err := r.Get(providerID)
		if err != nil {
			return nil, "", err
		}
		return p, modelID, nil
	}

	providers := r.List()
	switch len(providers) {
	case 0:
		return nil, "", fmt.Errorf("no providers configured")
	case 1:
		return providers[0], modelID, nil
	default:
		return nil, "", fmt.Errorf("model %q needs a provider prefix", modelString)
	}
}

// CreateCompletion routes req to the provider named by req.Model.
func (r *Registry) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	p, modelID, err := r.Resolve(req.Model)
	if err != nil {
		return nil, err
	}
	routed := *req
	routed.Model = modelID
	return p.CreateCompletion(ctx, &routed)
}

// ParseModelString parses "provider/model" format.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

// InitializeProviders creates and registers all providers from config.
// Providers that fail to initialize are logged and skipped.
func InitializeProviders(ctx context.Context, config *types.Config) (*Registry, error) {
	registry := NewRegistry(config)

	if cfg, ok := config.Provider["anthropic"]; ok && cfg.APIKey != "" && !cfg.Disable {
		provider, err := NewAnthropicProvider(ctx, &AnthropicConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     defaultModelFor(config, "anthropic", cfg.Model),
			MaxTokens: config.Pipeline.PlannerMaxTokens,
		})
		if err != nil {
			logging.Warn().Err(err).Str("provider", "anthropic").Msg("provider unavailable")
		} else {
			registry.Register(provider)
		}
	}

	if cfg, ok := config.Provider["openai"]; ok && cfg.APIKey != "" && !cfg.Disable {
		provider, err := NewOpenAIProvider(ctx, &OpenAIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     defaultModelFor(config, "openai", cfg.Model),
			MaxTokens: config.Pipeline.PlannerMaxTokens,
		})
		if err != nil {
			logging.Warn().Err(err).Str("provider", "openai").Msg("provider unavailable")
		} else {
			registry.Register(provider)
		}
	}

	if cfg, ok := config.Provider["ark"]; ok && cfg.APIKey != "" && !cfg.Disable {
		provider, err := NewArkProvider(ctx, &ArkConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: config.Pipeline.PlannerMaxTokens,
		})
		if err != nil {
			logging.Warn().Err(err).Str("provider", "ark").Msg("provider unavailable")
		} else {
			registry.Register(provider)
		}
	}

	if len(registry.providers) == 0 {
		return registry, fmt.Errorf("no providers configured: set ANTHROPIC_API_KEY, OPENAI_API_KEY or ARK_API_KEY")
	}
	return registry, nil
}

// defaultModelFor picks the provider default: explicit provider config,
// else the configured build model when it targets this provider.
func defaultModelFor(config *types.Config, providerID, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p, m := ParseModelString(config.Model); p == providerID {
		return m
	}
	return ""
}
