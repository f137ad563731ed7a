package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/WilliamStanton/vibe-build/internal/config"
	"github.com/WilliamStanton/vibe-build/internal/provider"
)

var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List models of the configured providers",
	Long: `List the models offered by every provider with an API key.

Examples:
  vibebuild models             # List all models
  vibebuild models anthropic   # List only Anthropic models`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}
	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}

	providerReg, err := provider.InitializeProviders(cmd.Context(), appConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}

	var providerFilter string
	if len(args) > 0 {
		providerFilter = args[0]
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tCONTEXT\tFEATURES\t")
	for _, model := range providerReg.AllModels() {
		if providerFilter != "" && model.ProviderID != providerFilter {
			continue
		}
		features := ""
		if model.SupportsVision {
			features += "vision "
		}
		if model.SupportsTools {
			features += "tools "
		}
		fmt.Fprintf(w, "%s\t%s\t%dk\t%s\t\n", model.ProviderID, model.ID, model.ContextLength/1000, features)
	}
	return w.Flush()
}
