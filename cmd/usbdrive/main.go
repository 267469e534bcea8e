package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gajzzs/usbdrive/internal/app"
)

func newRootCommand() *cobra.Command {
	opts := app.NewOptions()

	rootCmd := &cobra.Command{
		Use:           "usbdrive",
		Short:         "Discover and unmount USB mass-storage devices",
		Long:          "usbdrive lists attached USB storage devices with their identifiers and mount points, and can unmount them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "", "config file (default is the user config dir)")
	flags.StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&opts.LogFormat, "log-format", "", "log format: console or json")

	rootCmd.AddCommand(
		app.NewPollCommand(opts),
		app.NewGetCommand(opts),
		app.NewUnmountCommand(opts),
		app.NewWatchCommand(opts),
		app.NewServiceCommand(opts),
		app.NewConfigCommand(opts),
	)
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
