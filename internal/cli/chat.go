package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Rrens/nl2sql/internal/app"
)

const chatHelp = `Type a question or a command such as "connect", "show tables",
"select tables 1 and 2", "generate data dictionary" or "save dictionary to sales.yaml".
Prefix a message with @query, @dictionary, @connect or @explore to force a route.

  /new            start a fresh session
  /session        print the current session id
  /save           persist the session
  /restore <id>   reload a saved session
  /quit           leave`

func newChatCmd(opts *rootOptions) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app.App) error {
				c := &chat{
					app: a,
					in:  cmd.InOrStdin(),
					out: cmd.OutOrStdout(),
					r:   renderer{out: cmd.OutOrStdout(), asJSON: opts.asJSON},
				}
				return c.run(cmd.Context(), sessionID)
			})
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "restore a saved session instead of starting a new one")
	return cmd
}

type chat struct {
	app *app.App
	in  io.Reader
	out io.Writer
	r   renderer
	id  string
}

func (c *chat) run(ctx context.Context, restoreID string) error {
	if restoreID != "" {
		if _, err := c.app.Orchestrator.Restore(ctx, restoreID); err != nil {
			return err
		}
		c.id = restoreID
	} else if err := c.newSession(ctx); err != nil {
		return err
	}

	pterm.Fprintln(c.out, pterm.Info.Sprintf("Session %s. Type /help for commands.", c.id))

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(c.out, "nl2sql> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := c.command(ctx, line)
			if err != nil {
				pterm.Fprintln(c.out, pterm.Error.Sprint(err.Error()))
			}
			if quit {
				break
			}
			continue
		}

		if err := c.r.envelope(c.app.Orchestrator.Handle(ctx, c.id, line)); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return c.app.Orchestrator.EndSession(context.WithoutCancel(ctx), c.id)
}

func (c *chat) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(c.out, chatHelp)
	case "/session":
		fmt.Fprintln(c.out, c.id)
	case "/new":
		_ = c.app.Orchestrator.EndSession(ctx, c.id)
		if err := c.newSession(ctx); err != nil {
			return false, err
		}
		pterm.Fprintln(c.out, pterm.Success.Sprintf("Started session %s.", c.id))
	case "/save":
		if err := c.app.Orchestrator.Save(ctx, c.id); err != nil {
			return false, err
		}
		pterm.Fprintln(c.out, pterm.Success.Sprintf("Saved session %s.", c.id))
	case "/restore":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: /restore <session id>")
		}
		if _, err := c.app.Orchestrator.Restore(ctx, fields[1]); err != nil {
			return false, err
		}
		c.id = fields[1]
		pterm.Fprintln(c.out, pterm.Success.Sprintf("Restored session %s.", c.id))
	default:
		return false, fmt.Errorf("unknown command %s, type /help", fields[0])
	}
	return false, nil
}

func (c *chat) newSession(ctx context.Context) error {
	id, err := c.app.Orchestrator.NewSession(ctx)
	if err != nil {
		return err
	}
	c.id = id
	return nil
}
