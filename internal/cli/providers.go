package cli

import (
	"encoding/json"
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Rrens/nl2sql/internal/app"
)

func newProvidersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List language providers and database backends",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				out := cmd.OutOrStdout()
				infos := a.LLM.GetProvidersInfo()
				backends := a.Databases.SupportedDatabases()

				if opts.asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(map[string]any{
						"providers":        infos,
						"default_provider": a.LLM.DefaultProvider(),
						"backends":         backends,
					})
				}

				data := pterm.TableData{{"provider", "default", "configured", "models"}}
				for _, p := range infos {
					data = append(data, []string{
						p.Name,
						fmt.Sprint(p.Default),
						fmt.Sprint(p.Configured),
						fmt.Sprint(len(p.Models)),
					})
				}
				rendered, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
				if err != nil {
					return err
				}
				pterm.Fprintln(out, rendered)
				pterm.Fprintln(out, pterm.Info.Sprintf("Backends: %v", backends))
				return nil
			})
		},
	}
}
