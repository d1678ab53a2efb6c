package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sessionstate",
	Short: "sessionstate keeps one current session record per user and service provider",
	Long: `sessionstate consumes session lifecycle events (created, updated, terminated)
and reconciles them into a session_state table holding at most one record
per user and service provider.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "f", "configs/sessionstate.yaml", "Path to the YAML configuration file")
}
