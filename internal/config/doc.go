// Package config provides configuration loading, merging, and path management
// for the vibe-build server.
//
// # Configuration Loading
//
// Load merges configuration from the following sources, later sources
// overriding earlier ones:
//
//  1. Global config (~/.config/vibebuild/vibebuild.json[c], XDG compatible)
//  2. Project config (<dir>/vibebuild.json[c])
//  3. VIBEBUILD_CONFIG file
//  4. VIBEBUILD_CONFIG_CONTENT inline JSON
//  5. Environment variables
//
// Defaults are applied last for any field still unset.
//
// # Supported Formats
//
// Files may be plain JSON or JSONC (JSON with comments, processed using
// tidwall/jsonc).
//
// # Variable Interpolation
//
// Configuration files support two placeholder forms:
//   - {env:VAR_NAME} expands to the environment variable value
//   - {file:path} expands to file contents, escaped for JSON
//
// Relative {file:} paths resolve against the config file's directory; "~/"
// expands to HOME.
//
//	{
//	  "model": "anthropic/claude-opus-4-6",
//	  "provider": {
//	    "anthropic": { "apiKey": "{env:ANTHROPIC_API_KEY}" }
//	  },
//	  "action": { "timeoutMs": 120000 }
//	}
//
// # Environment Variable Overrides
//
//   - PORT, WEB_PORT, WEB_HOST: listener settings
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, ARK_API_KEY: provider credentials
//   - VIBEBUILD_MODEL, VIBEBUILD_IMAGE_MODEL: model selection
//   - VIBEBUILD_ACTION_TIMEOUT: action call timeout (Go duration, e.g. "2m")
//   - LOG_LEVEL: logging level
package config
