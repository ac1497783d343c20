// Package cli implements the nl2sql command line front end.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Rrens/nl2sql/internal/app"
	"github.com/Rrens/nl2sql/internal/config"
	"github.com/Rrens/nl2sql/internal/logging"
)

// Version is set at build time with -ldflags.
var Version = "0.0.0-dev"

// Loader builds the application for one command run.
type Loader func(ctx context.Context) (*app.App, error)

// DefaultLoader reads configuration, installs logging and wires the app.
func DefaultLoader(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := logging.Setup(cfg.Logging, os.Stderr); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

type rootOptions struct {
	configPath string
	asJSON     bool
	load       Loader
}

// Execute runs the CLI with the default loader.
func Execute() error {
	return NewRootCmd(DefaultLoader).Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd(load Loader) *cobra.Command {
	opts := &rootOptions{load: load}

	rootCmd := &cobra.Command{
		Use:           "nl2sql",
		Short:         "Ask questions about your data in plain language",
		Long:          "nl2sql connects to a database, explores its schema, maintains a data dictionary and answers questions by generating read-only SQL.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.configPath != "" {
				return os.Setenv("CONFIG_PATH", opts.configPath)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the config file (default ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print responses as JSON envelopes")

	rootCmd.AddCommand(
		newVersionCmd(),
		newAskCmd(opts),
		newChatCmd(opts),
		newProvidersCmd(opts),
	)

	return rootCmd
}

// withApp loads the app, runs fn and tears the app down.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := o.load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.Close()
	return fn(a)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "nl2sql", Version)
			return err
		},
	}
}
