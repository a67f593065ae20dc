package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

const serviceName = "rental_bot_service"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigDir string
	LogLevel  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "rental_bot",
		Short:         "Telegram marketplace for renting phone numbers",
		Long:          "Runs the chat bot that matches number sellers with buyers and relays SMS codes between them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", "", "directory holding config.defaults.yaml")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override LOG_LEVEL (debug|info|warn|error)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newOpsTokenCommand(opts))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", serviceName, version, runtime.Version())
			return err
		},
	}
}
