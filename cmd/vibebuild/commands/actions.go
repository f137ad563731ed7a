package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/WilliamStanton/vibe-build/internal/action"
)

var actionsJSON bool

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the actions the executor may call",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := action.Load()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if actionsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(catalog.Definitions())
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tGROUP\tPARAMETERS")
		for _, def := range catalog.Definitions() {
			params := make([]string, 0, len(def.Parameters))
			for name := range def.Parameters {
				params = append(params, name)
			}
			sort.Strings(params)
			fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, def.Group, strings.Join(params, ", "))
		}
		return w.Flush()
	},
}

func init() {
	actionsCmd.Flags().BoolVar(&actionsJSON, "json", false, "Print full definitions as JSON")
}
