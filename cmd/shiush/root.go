package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tgienger/shiush/internal/config"
)

type rootOptions struct {
	configPath string
}

// load reads the configuration named by --config
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "shiush",
		Short:         "Time-bucketed todo list for the terminal",
		Long:          "shiush keeps tasks in Today, Tomorrow, This Week, This Month, This Year and Due lists\nand moves unfinished work along as the calendar turns.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
	cmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "config file")

	cmd.AddCommand(
		newAddCmd(opts),
		newListCmd(opts),
		newEvaluateCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}
