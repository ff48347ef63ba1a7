package main

import (
	"fmt"
	"os"

	"github.com/aretw0/muster/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "muster",
	Short: "Muster is a reactive graph resolution engine",
	Long: `Muster serves a declarative graph of nodes: queries resolve against it,
subscriptions stay up to date as its state changes, and remote graphs can be
mounted as local branches.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", config.DefaultFile, "Configuration file")
	flags.StringP("graph", "g", "", "Graph file (YAML or JSON)")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
	flags.Bool("debug", false, "Report full resolution chains in cycle errors")
}
