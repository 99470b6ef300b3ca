package main

import (
	"io"

	"github.com/phrazzld/filequeue/internal/task"
	"github.com/spf13/cobra"
)

// rootOptions holds the global flags and the collaborators tests replace.
type rootOptions struct {
	configFile string
	logLevel   string

	// registry resolves job types for consume.
	registry *task.Registry

	// openDriver overrides driver construction when set.
	openDriver driverOpener

	// logOutput, when set, receives JSON logs instead of stderr and leaves
	// the process default logger untouched.
	logOutput io.Writer
}

func newRootCmd(opts rootOptions) *cobra.Command {
	o := &opts

	rootCmd := &cobra.Command{
		Use:   "filequeue",
		Short: "Durable file-backed job queue",
		Long: "filequeue stores jobs as files, one directory per channel, and runs workers " +
			"that claim them with an atomic rename. Failed jobs are retried and finally " +
			"deadlettered, from where they can be replayed.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&o.configFile, "config", "", "config file (default ./filequeue.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		newConsumeCmd(o),
		newRetryFailedCmd(o),
		newPushCmd(o),
		newReclaimCmd(o),
		newMigrateCmd(o),
	)
	return rootCmd
}
