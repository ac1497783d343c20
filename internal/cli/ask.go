package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Rrens/nl2sql/internal/app"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var connect bool

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Handle one message in a fresh session",
		Example: `  nl2sql ask --connect "how many orders were placed last month?"
  nl2sql ask "list databases"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			return opts.withApp(cmd, func(a *app.App) error {
				ctx := cmd.Context()
				out := renderer{out: cmd.OutOrStdout(), asJSON: opts.asJSON}

				id, err := a.Orchestrator.NewSession(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = a.Orchestrator.EndSession(ctx, id) }()

				if connect {
					env := a.Orchestrator.Connect(ctx, id, nil)
					if !env.OK() {
						return out.envelope(env)
					}
				}

				return out.envelope(a.Orchestrator.Handle(ctx, id, message))
			})
		},
	}

	cmd.Flags().BoolVar(&connect, "connect", false, "connect with the configured defaults first")
	return cmd
}
