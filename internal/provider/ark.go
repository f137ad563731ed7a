package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// ArkProvider implements Provider for Volcengine ARK models.
type ArkProvider struct {
	models   *modelCache
	config   *ArkConfig
	endpoint string
}

// ArkConfig holds configuration for ARK provider.
type ArkConfig struct {
	APIKey    string
	BaseURL   string
	Model     string // Endpoint ID on ARK platform
	MaxTokens int
}

// NewArkProvider creates a new ARK provider.
func NewArkProvider(ctx context.Context, config *ArkConfig) (*ArkProvider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ARK_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ARK_API_KEY not set")
	}

	endpoint := config.Model
	if endpoint == "" {
		endpoint = os.Getenv("ARK_MODEL_ID")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("ARK_MODEL_ID not set")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("ARK_BASE_URL")
	}

	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	p := &ArkProvider{config: config, endpoint: endpoint}
	p.models = newModelCache(endpoint, func(ctx context.Context, modelID string) (model.ToolCallingChatModel, error) {
		cfg := &ark.ChatModelConfig{
			APIKey:    apiKey,
			Model:     modelID,
			MaxTokens: &maxTokens,
		}
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		chatModel, err := ark.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create ARK model: %w", err)
		}
		return chatModel, nil
	})

	if _, err := p.models.get(ctx, ""); err != nil {
		return nil, err
	}
	return p, nil
}

// ID returns the provider identifier.
func (p *ArkProvider) ID() string { return "ark" }

// Name returns the human-readable provider name.
func (p *ArkProvider) Name() string { return "ARK" }

// Models returns the configured endpoint as the only model.
func (p *ArkProvider) Models() []types.Model {
	return []types.Model{
		{
			ID:              p.endpoint,
			Name:            "ARK Model",
			ProviderID:      "ark",
			ContextLength:   128000,
			MaxOutputTokens: 4096,
			SupportsTools:   true,
			SupportsVision:  true,
		},
	}
}

// CreateCompletion creates a streaming completion.
func (p *ArkProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
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
