package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/WilliamStanton/vibe-build/pkg/types"
	"github.com/tidwall/jsonc"
)

// Default values applied after all sources are merged.
const (
	DefaultPort               = 8080
	DefaultWebPort            = 8787
	DefaultWebHost            = "0.0.0.0"
	DefaultModel              = "anthropic/claude-opus-4-6"
	DefaultImageModel         = "anthropic/claude-sonnet-4-5"
	DefaultPlannerMaxTokens   = 16384
	DefaultExecutorMaxTokens  = 16384
	DefaultFinalizerMaxTokens = 1024
	DefaultImageMaxTokens     = 2200
	DefaultExecutorMaxRounds  = 50
	DefaultPingIntervalMs     = 30000
)

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// Load loads configuration from multiple sources (priority order):
// 1. Global config (~/.config/vibebuild/)
// 2. Project config (<directory>/vibebuild.json[c])
// 3. VIBEBUILD_CONFIG file
// 4. VIBEBUILD_CONFIG_CONTENT inline JSON
// 5. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{
		Provider: make(map[string]types.ProviderConfig),
	}

	// Track loaded files to avoid duplicates
	loaded := make(map[string]bool)

	var loadErr error
	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		err = loadConfigFile(path, config, baseDir)
		switch {
		case err == nil:
			loaded[absPath] = true
		case !os.IsNotExist(err) && loadErr == nil:
			loadErr = fmt.Errorf("config %s: %w", path, err)
		}
	}

	// 1. XDG-compatible global config
	globalPath := GetPaths().Config
	loadOnce(filepath.Join(globalPath, "vibebuild.json"), globalPath)
	loadOnce(filepath.Join(globalPath, "vibebuild.jsonc"), globalPath)

	// 2. Project config
	if directory != "" {
		loadOnce(filepath.Join(directory, "vibebuild.json"), directory)
		loadOnce(filepath.Join(directory, "vibebuild.jsonc"), directory)
	}

	// 3. VIBEBUILD_CONFIG file override
	if configPath := os.Getenv("VIBEBUILD_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	// 4. VIBEBUILD_CONFIG_CONTENT inline JSON
	if configContent := os.Getenv("VIBEBUILD_CONFIG_CONTENT"); configContent != "" {
		var inlineConfig types.Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(configContent)), &inlineConfig); err != nil {
			return nil, fmt.Errorf("VIBEBUILD_CONFIG_CONTENT: %w", err)
		}
		mergeConfig(config, &inlineConfig)
	}

	if loadErr != nil {
		return nil, loadErr
	}

	// 5. Environment variables (highest priority)
	applyEnvOverrides(config)

	applyDefaults(config)

	return config, nil
}

// loadConfigFile loads a single config file with interpolation support.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)

	data = interpolate(data, baseDir)

	var fileConfig types.Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			filePath = filepath.Join(os.Getenv("HOME"), filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // Keep original if file not found
		}

		// Escape for JSON string, without the surrounding quotes
		escaped, _ := json.Marshal(strings.TrimRight(string(content), "\n"))
		return string(escaped[1 : len(escaped)-1])
	})

	return []byte(str)
}

// mergeConfig merges source config into target.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.ImageModel != "" {
		target.ImageModel = source.ImageModel
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}

	// Server
	if source.Server.Port != 0 {
		target.Server.Port = source.Server.Port
	}
	if source.Server.WebPort != 0 {
		target.Server.WebPort = source.Server.WebPort
	}
	if source.Server.WebHost != "" {
		target.Server.WebHost = source.Server.WebHost
	}
	if source.Server.PingIntervalMs != 0 {
		target.Server.PingIntervalMs = source.Server.PingIntervalMs
	}

	// Providers
	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]types.ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}

	// Pipeline
	if source.Pipeline.PlannerMaxTokens != 0 {
		target.Pipeline.PlannerMaxTokens = source.Pipeline.PlannerMaxTokens
	}
	if source.Pipeline.ExecutorMaxTokens != 0 {
		target.Pipeline.ExecutorMaxTokens = source.Pipeline.ExecutorMaxTokens
	}
	if source.Pipeline.FinalizerMaxTokens != 0 {
		target.Pipeline.FinalizerMaxTokens = source.Pipeline.FinalizerMaxTokens
	}
	if source.Pipeline.ImageMaxTokens != 0 {
		target.Pipeline.ImageMaxTokens = source.Pipeline.ImageMaxTokens
	}
	if source.Pipeline.ExecutorMaxRounds != 0 {
		target.Pipeline.ExecutorMaxRounds = source.Pipeline.ExecutorMaxRounds
	}

	// Action
	if source.Action.TimeoutMs != 0 {
		target.Action.TimeoutMs = source.Action.TimeoutMs
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	// Provider API keys
	providerEnvMap := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"ark":       "ARK_API_KEY",
	}

	for provider, envVar := range providerEnvMap {
		if apiKey := os.Getenv(envVar); apiKey != "" {
			p := config.Provider[provider]
			if p.APIKey == "" {
				p.APIKey = apiKey
				config.Provider[provider] = p
			}
		}
	}

	if port, ok := envInt("PORT"); ok {
		config.Server.Port = port
	}
	if port, ok := envInt("WEB_PORT"); ok {
		config.Server.WebPort = port
	}
	if host := os.Getenv("WEB_HOST"); host != "" {
		config.Server.WebHost = host
	}

	if model := os.Getenv("VIBEBUILD_MODEL"); model != "" {
		config.Model = model
	}
	if model := os.Getenv("VIBEBUILD_IMAGE_MODEL"); model != "" {
		config.ImageModel = model
	}

	if timeout := os.Getenv("VIBEBUILD_ACTION_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d >= 0 {
			config.Action.TimeoutMs = int(d / time.Millisecond)
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// applyDefaults fills every unset field.
func applyDefaults(config *types.Config) {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.ImageModel == "" {
		config.ImageModel = DefaultImageModel
	}
	if config.Server.Port == 0 {
		config.Server.Port = DefaultPort
	}
	if config.Server.WebPort == 0 {
		config.Server.WebPort = DefaultWebPort
	}
	if config.Server.WebHost == "" {
		config.Server.WebHost = DefaultWebHost
	}
	if config.Server.PingIntervalMs == 0 {
		config.Server.PingIntervalMs = DefaultPingIntervalMs
	}
	if config.Pipeline.PlannerMaxTokens == 0 {
		config.Pipeline.PlannerMaxTokens = DefaultPlannerMaxTokens
	}
	if config.Pipeline.ExecutorMaxTokens == 0 {
		config.Pipeline.ExecutorMaxTokens = DefaultExecutorMaxTokens
	}
	if config.Pipeline.FinalizerMaxTokens == 0 {
		config.Pipeline.FinalizerMaxTokens = DefaultFinalizerMaxTokens
	}
	if config.Pipeline.ImageMaxTokens == 0 {
		config.Pipeline.ImageMaxTokens = DefaultImageMaxTokens
	}
	if config.Pipeline.ExecutorMaxRounds == 0 {
		config.Pipeline.ExecutorMaxRounds = DefaultExecutorMaxRounds
	}
}

// Default returns a configuration with only defaults applied.
func Default() *types.Config {
	config := &types.Config{Provider: make(map[string]types.ProviderConfig)}
	applyDefaults(config)
	return config
}

// Save saves the configuration to a file.
func Save(config *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
