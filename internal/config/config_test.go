package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/WilliamStanton/vibe-build/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears every variable Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	for _, key := range []string{
		"XDG_CONFIG_HOME", "XDG_STATE_HOME",
		"VIBEBUILD_CONFIG", "VIBEBUILD_CONFIG_CONTENT",
		"PORT", "WEB_PORT", "WEB_HOST",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "ARK_API_KEY",
		"VIBEBUILD_MODEL", "VIBEBUILD_IMAGE_MODEL", "VIBEBUILD_ACTION_TIMEOUT",
		"LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	return tmpDir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := isolate(t)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultImageModel, cfg.ImageModel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8787, cfg.Server.WebPort)
	assert.Equal(t, "0.0.0.0", cfg.Server.WebHost)
	assert.Equal(t, 16384, cfg.Pipeline.PlannerMaxTokens)
	assert.Equal(t, 16384, cfg.Pipeline.ExecutorMaxTokens)
	assert.Equal(t, 1024, cfg.Pipeline.FinalizerMaxTokens)
	assert.Equal(t, 2200, cfg.Pipeline.ImageMaxTokens)
	assert.Equal(t, 50, cfg.Pipeline.ExecutorMaxRounds)
	assert.Equal(t, 0, cfg.Action.TimeoutMs)
	assert.Equal(t, 30000, cfg.Server.PingIntervalMs)
}

func TestLoadProjectConfig(t *testing.T) {
	tmpDir := isolate(t)

	writeFile(t, filepath.Join(tmpDir, "vibebuild.json"), `{
		"model": "openai/gpt-4o",
		"server": {"port": 9000},
		"provider": {"openai": {"apiKey": "sk-test"}},
		"action": {"timeoutMs": 5000}
	}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "openai/gpt-4o", cfg.Model)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 8787, cfg.Server.WebPort)
	assert.Equal(t, "sk-test", cfg.Provider["openai"].APIKey)
	assert.Equal(t, 5000, cfg.Action.TimeoutMs)
}

func TestJSONCComments(t *testing.T) {
	tmpDir := isolate(t)

	writeFile(t, filepath.Join(tmpDir, "vibebuild.jsonc"), `{
		// model used for planning and execution
		"model": "anthropic/claude-sonnet-4-5",
		/* trailing comma below */
		"pipeline": {"executorMaxRounds": 10,},
	}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "anthropic/claude-sonnet-4-5", cfg.Model)
	assert.Equal(t, 10, cfg.Pipeline.ExecutorMaxRounds)
}

func TestEnvInterpolation(t *testing.T) {
	tmpDir := isolate(t)
	t.Setenv("TEST_VB_KEY", "sk-from-env")

	writeFile(t, filepath.Join(tmpDir, "vibebuild.json"), `{
		"provider": {"anthropic": {"apiKey": "{env:TEST_VB_KEY}"}}
	}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Provider["anthropic"].APIKey)
}

func TestFileInterpolation(t *testing.T) {
	tmpDir := isolate(t)

	writeFile(t, filepath.Join(tmpDir, "secrets", "key.txt"), "sk-\"quoted\"\n")
	writeFile(t, filepath.Join(tmpDir, "vibebuild.json"), `{
		"provider": {"anthropic": {"apiKey": "{file:secrets/key.txt}"}}
	}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, `sk-"quoted"`, cfg.Provider["anthropic"].APIKey)
}

func TestConfigMerge(t *testing.T) {
	tmpDir := isolate(t)

	writeFile(t, filepath.Join(tmpDir, ".config", "vibebuild", "vibebuild.json"), `{
		"model": "anthropic/global",
		"imageModel": "anthropic/global-image",
		"provider": {"anthropic": {"apiKey": "global"}}
	}`)
	project := filepath.Join(tmpDir, "project")
	writeFile(t, filepath.Join(project, "vibebuild.json"), `{
		"model": "anthropic/project",
		"provider": {"openai": {"apiKey": "project"}}
	}`)

	cfg, err := Load(project)
	require.NoError(t, err)

	assert.Equal(t, "anthropic/project", cfg.Model)
	assert.Equal(t, "anthropic/global-image", cfg.ImageModel)
	assert.Equal(t, "global", cfg.Provider["anthropic"].APIKey)
	assert.Equal(t, "project", cfg.Provider["openai"].APIKey)
}

func TestEnvVarOverride(t *testing.T) {
	tmpDir := isolate(t)

	writeFile(t, filepath.Join(tmpDir, "vibebuild.json"), `{
		"model": "anthropic/file",
		"provider": {"anthropic": {"apiKey": "from-file"}}
	}`)

	t.Setenv("VIBEBUILD_MODEL", "ark/env-model")
	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	t.Setenv("ARK_API_KEY", "ark-env")
	t.Setenv("PORT", "9100")
	t.Setenv("WEB_PORT", "not-a-number")
	t.Setenv("WEB_HOST", "127.0.0.1")
	t.Setenv("VIBEBUILD_ACTION_TIMEOUT", "2m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "ark/env-model", cfg.Model)
	// File-provided keys win over environment keys
	assert.Equal(t, "from-file", cfg.Provider["anthropic"].APIKey)
	assert.Equal(t, "ark-env", cfg.Provider["ark"].APIKey)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, DefaultWebPort, cfg.Server.WebPort)
	assert.Equal(t, "127.0.0.1", cfg.Server.WebHost)
	assert.Equal(t, 120000, cfg.Action.TimeoutMs)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestVIBEBUILD_CONFIG(t *testing.T) {
	tmpDir := isolate(t)

	custom := filepath.Join(tmpDir, "elsewhere", "custom.json")
	writeFile(t, custom, `{"server": {"webPort": 9999}}`)
	t.Setenv("VIBEBUILD_CONFIG", custom)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.WebPort)
}

func TestVIBEBUILD_CONFIG_CONTENT(t *testing.T) {
	tmpDir := isolate(t)

	writeFile(t, filepath.Join(tmpDir, "vibebuild.json"), `{"model": "anthropic/file"}`)
	t.Setenv("VIBEBUILD_CONFIG_CONTENT", `{"model": "anthropic/inline"}`)

	cfg, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "anthropic/inline", cfg.Model)
}

func TestLoadInvalidFile(t *testing.T) {
	tmpDir := isolate(t)

	writeFile(t, filepath.Join(tmpDir, "vibebuild.json"), `{"model": `)

	_, err := Load(tmpDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vibebuild.json")
}

func TestSave(t *testing.T) {
	tmpDir := isolate(t)

	cfg := Default()
	cfg.Model = "openai/gpt-4o"
	cfg.Provider["openai"] = types.ProviderConfig{APIKey: "sk-saved"}

	path := ProjectConfigPath(tmpDir)
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", loaded.Model)
	assert.Equal(t, "sk-saved", loaded.Provider["openai"].APIKey)
}

func TestGetPaths(t *testing.T) {
	tmpDir := isolate(t)
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmpDir, "state"))

	paths := GetPaths()
	assert.Equal(t, filepath.Join(tmpDir, ".config", "vibebuild"), paths.Config)
	assert.Equal(t, filepath.Join(tmpDir, "state", "vibebuild"), paths.State)
	assert.Equal(t, filepath.Join(tmpDir, "state", "vibebuild", "vibebuild.log"), paths.LogPath())

	require.NoError(t, paths.EnsurePaths())
	_, err := os.Stat(paths.State)
	assert.NoError(t, err)
}
