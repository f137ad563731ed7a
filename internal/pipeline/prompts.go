package pipeline

import (
	_ "embed"
	"strings"
)

var (
	//go:embed prompts/spatialprefix.txt
	spatialPrefix string

	//go:embed prompts/planner.txt
	plannerPrompt string

	//go:embed prompts/executor.txt
	executorPrompt string

	//go:embed prompts/finalizer.txt
	finalizerPrompt string
)

// systemText joins instruction prefixes into one system message.
func systemText(prefixes ...string) string {
	parts := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}
