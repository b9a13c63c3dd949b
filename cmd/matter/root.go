package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

func newRootCmd() *cobra.Command {
	conf := newConfig()

	root := &cobra.Command{
		Use:   "matter",
		Short: "Inspect a matterdb database",
		Long: fmt.Sprintf(`matter (v%s)

Lists the indexes of a matterdb database and reads their contents.
The database is opened read-only.`, Version),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := conf.bind(cmd); err != nil {
				return err
			}
			return conf.initLogging(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String(keyDBPath, "", "path of the database directory")
	flags.String(keyLogLevel, "warn", "log level (debug, info, warn, error)")
	flags.String(keyLogFormat, "console", "log format (console, json)")
	flags.Int64(keyCacheSize, 0, "block cache size in bytes (0 keeps the default)")
	flags.String(keyNamespace, "", "only show indexes under this name prefix, e.g. a scratchpad like ^session")

	root.AddCommand(
		newIndexesCmd(conf),
		newListCmd(conf),
		newGetCmd(conf),
		newChecksumCmd(conf),
		newStatsCmd(conf),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version number of matter",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "matter v%s\n", Version)
			},
		},
	)
	return root
}
