package main

import (
	"fmt"

	"github.com/aretw0/muster/internal/config"
	"github.com/aretw0/muster/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the graph visualization",
	Long:  `Loads the graph file and outputs a Mermaid diagram (graph TD) of its definition tree.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		root, err := config.LoadGraph(a.cfg.Graph, a.registry)
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if highlight, _ := cmd.Flags().GetStringSlice("highlight"); len(highlight) > 0 {
			overlay = &graph.GraphOverlay{Highlighted: highlight}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(root, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringSlice("highlight", nil, "Paths to highlight, e.g. users/alice")
}
