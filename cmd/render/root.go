package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/shortform/internal/config"
	"github.com/therealutkarshpriyadarshi/shortform/internal/logging"
)

// commandContext loads configuration once for whichever subcommand runs
type commandContext struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

func (c *commandContext) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) logger(w io.Writer) *logging.Logger {
	level := "info"
	if c.verbose {
		level = "debug"
	}
	return logging.New(w, logging.Config{Level: level, Format: "console"})
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "render",
		Short:         "Short-form video renderer tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Configuration file path (defaults and environment when empty)")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log pipeline commands")

	rootCmd.AddCommand(newLocalCommand(ctx))
	rootCmd.AddCommand(newCaptionsCommand())
	rootCmd.AddCommand(newDLQCommand(ctx))

	return rootCmd
}
