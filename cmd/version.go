package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/logwarden/internal/output"
)

// Set with -ldflags "-X github.com/bimmerbailey/logwarden/cmd.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		w := output.New(cmd.OutOrStdout(), output.ParseFormat(viper.GetString("format")))
		if w.Format() == output.FormatJSON {
			_ = w.WriteJSON(map[string]string{
				"version": version,
				"commit":  commit,
				"built":   date,
				"go":      runtime.Version(),
			})
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "logwarden %s (commit: %s, built: %s, %s)\n", version, commit, date, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
