package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"

	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// AnthropicProvider implements Provider for Anthropic Claude models.
type AnthropicProvider struct {
	models *modelCache
	config *AnthropicConfig
}

// AnthropicConfig holds configuration for Anthropic provider.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string // default model ID (e.g., "claude-opus-4-6")
	MaxTokens int
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(ctx context.Context, config *AnthropicConfig) (*AnthropicProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	defaultModel := config.Model
	if defaultModel == "" {
		defaultModel = "claude-opus-4-6"
	}
	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 16384
	}

	p := &AnthropicProvider{config: config}
	p.models = newModelCache(defaultModel, func(ctx context.Context, modelID string) (model.ToolCallingChatModel, error) {
		cfg := &claude.Config{
			APIKey:    apiKey,
			Model:     modelID,
			MaxTokens: maxTokens,
		}
		if config.BaseURL != "" {
			cfg.BaseURL = &config.BaseURL
		}
		chatModel, err := claude.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create Claude model: %w", err)
		}
		return chatModel, nil
	})

	// Build the default model eagerly so bad configuration fails at startup.
	if _, err := p.models.get(ctx, ""); err != nil {
		return nil, err
	}
	return p, nil
}

// ID returns the provider identifier.
func (p *AnthropicProvider) ID() string { return "anthropic" }

// Name returns the human-readable provider name.
func (p *AnthropicProvider) Name() string { return "Anthropic" }

// Models returns the list of known models.
func (p *AnthropicProvider) Models() []types.Model {
	return anthropicModels()
}

// CreateCompletion creates a streaming completion.
func (p *AnthropicProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	chatModel, err := p.models.get(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	var opts []model.Option
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	return stream(ctx, chatModel, req, opts...)
}

func anthropicModels() []types.Model {
	return []types.Model{
		{
			ID:              "claude-opus-4-6",
			Name:            "Claude Opus 4.6",
			ProviderID:      "anthropic",
			ContextLength:   200000,
			MaxOutputTokens: 32000,
			SupportsTools:   true,
			SupportsVision:  true,
		},
		{
			ID:              "claude-sonnet-4-5",
			Name:            "Claude Sonnet 4.5",
			ProviderID:      "anthropic",
			ContextLength:   200000,
			MaxOutputTokens: 64000,
			SupportsTools:   true,
			SupportsVision:  true,
		},
		{
			ID:              "claude-haiku-4-5",
			Name:            "Claude Haiku 4.5",
			ProviderID:      "anthropic",
			ContextLength:   200000,
			MaxOutputTokens: 8192,
			SupportsTools:   true,
			SupportsVision:  true,
		},
	}
}
