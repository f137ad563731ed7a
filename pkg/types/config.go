package types

import "time"

// Config represents the vibe-build configuration.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty"`

	// Model selection
	Model      string `json:"model,omitempty"`      // "anthropic/claude-opus-4-6"
	ImageModel string `json:"imageModel,omitempty"` // used by image-to-build

	// Log level ("DEBUG"|"INFO"|"WARN"|"ERROR")
	LogLevel string `json:"logLevel,omitempty"`

	// Listener settings
	Server ServerConfig `json:"server,omitempty"`

	// Provider configs
	Provider map[string]ProviderConfig `json:"provider,omitempty"`

	// Token budgets and loop limits
	Pipeline PipelineConfig `json:"pipeline,omitempty"`

	// Remote action settings
	Action ActionConfig `json:"action,omitempty"`
}

// ServerConfig holds listener configuration.
type ServerConfig struct {
	Port           int    `json:"port,omitempty"`           // WebSocket port
	WebPort        int    `json:"webPort,omitempty"`        // HTTP side channel port
	WebHost        string `json:"webHost,omitempty"`        // bind host for both listeners
	PingIntervalMs int    `json:"pingIntervalMs,omitempty"` // WebSocket keepalive
}

// PingInterval returns the keepalive interval as a duration.
func (s ServerConfig) PingInterval() time.Duration {
	return time.Duration(s.PingIntervalMs) * time.Millisecond
}

// ProviderConfig holds configuration for a specific provider.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`

	// Model/Endpoint ID (for providers like ARK that require endpoint specification)
	Model string `json:"model,omitempty"`

	// Disable provider
	Disable bool `json:"disable,omitempty"`
}

// PipelineConfig holds generation limits for the build pipeline.
type PipelineConfig struct {
	PlannerMaxTokens   int `json:"plannerMaxTokens,omitempty"`
	ExecutorMaxTokens  int `json:"executorMaxTokens,omitempty"`
	FinalizerMaxTokens int `json:"finalizerMaxTokens,omitempty"`
	ImageMaxTokens     int `json:"imageMaxTokens,omitempty"`
	ExecutorMaxRounds  int `json:"executorMaxRounds,omitempty"`
}

// ActionConfig holds remote action settings.
type ActionConfig struct {
	// TimeoutMs bounds a single action call. 0 waits until reply or cancel.
	TimeoutMs int `json:"timeoutMs,omitempty"`
}

// Timeout returns the per-call timeout as a duration.
func (a ActionConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

// Model describes a model offered by a provider.
type Model struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ProviderID      string `json:"providerID"`
	ContextLength   int    `json:"contextLength"`
	MaxOutputTokens int    `json:"maxOutputTokens,omitempty"`
	SupportsTools   bool   `json:"supportsTools"`
	SupportsVision  bool   `json:"supportsVision"`
}
