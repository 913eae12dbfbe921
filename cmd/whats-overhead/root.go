package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "whats-overhead",
	Short: "Find the aircraft above you",
	Long: "whats-overhead polls an ADS-B feed around your position and shows the aircraft " +
		"closest to you or most directly overhead.",
	SilenceUsage: true,
	RunE:         runTUI,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to configuration file (.json, .yaml)")

	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(serveCmd)
}
