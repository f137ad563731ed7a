package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// Provider represents an LLM provider backed by Eino chat models.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the list of known models.
	Models() []types.Model

	// CreateCompletion creates a streaming completion. req.Model is the
	// provider-local model ID; empty selects the provider default.
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error)
}

// Completer is anything that can start a streaming completion. The Registry
// implements it by routing "provider/model" strings.
type Completer interface {
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error)
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Model       string             `json:"model"`
	Messages    []*schema.Message  `json:"messages"`
	Tools       []*schema.ToolInfo `json:"tools,omitempty"`
	MaxTokens   int                `json:"maxTokens,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

// CompletionStream wraps an Eino stream reader.
type CompletionStream struct {
	reader *schema.StreamReader[*schema.Message]
}

// NewCompletionStream creates a new completion stream.
func NewCompletionStream(reader *schema.StreamReader[*schema.Message]) *CompletionStream {
	return &CompletionStream{reader: reader}
}

// Recv receives the next message chunk from the stream.
// It returns io.EOF when the stream is finished.
func (s *CompletionStream) Recv() (*schema.Message, error) {
	return s.reader.Recv()
}

// Close closes the stream.
func (s *CompletionStream) Close() {
	s.reader.Close()
}

// modelFactory builds a chat model for one model ID.
type modelFactory func(ctx context.Context, modelID string) (model.ToolCallingChatModel, error)

// modelCache lazily builds and keeps one chat model per model ID, so a
// single provider can serve both the build model and the image model.
type modelCache struct {
	mu      sync.Mutex
	models  map[string]model.ToolCallingChatModel
	factory modelFactory
	def     string
}

func newModelCache(def string, factory modelFactory) *modelCache {
	return &modelCache{
		models:  make(map[string]model.ToolCallingChatModel),
		factory: factory,
		def:     def,
	}
}

func (c *modelCache) get(ctx context.Context, modelID string) (model.ToolCallingChatModel, error) {
	if modelID == "" {
		modelID = c.def
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.models[modelID]; ok {
		return m, nil
	}
	m, err := c.factory(ctx, modelID)
	if err != nil {
		return nil, err
	}
	c.models[modelID] = m
	return m, nil
}

// stream binds tools and opens a stream on the given chat model.
func stream(ctx context.Context, chatModel model.ToolCallingChatModel, req *CompletionRequest, opts ...model.Option) (*CompletionStream, error) {
	if len(req.Tools) > 0 {
		var err error
		chatModel, err = chatModel.WithTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
	}

	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Temperature)))
	}

	reader, err := chatModel.Stream(ctx, req.Messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return NewCompletionStream(reader), nil
}
