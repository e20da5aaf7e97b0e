package inboxtui

import (
	"github.com/spf13/cobra"
)

func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	opts := Config{}
	cmd := &cobra.Command{
		Use:           "opsdesk-tui",
		Short:         "opsdesk terminal UI",
		Long:          "Bubbletea-based terminal UI for the opsdesk conversation inbox.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(opts)
		},
	}
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "config file path")
	cmd.Flags().StringVar(&opts.Theme, "theme", "", "theme: default|high-contrast")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", 0, "poll interval for background refresh")
	return cmd
}
