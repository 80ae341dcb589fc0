package main

import (
	"fmt"

	"github.com/aretw0/botflow/internal/presentation/graph"
	"github.com/aretw0/botflow/pkg/adapters/file"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <flow-file>",
	Short: "Print a Mermaid chart of a flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := file.ReadFlow(args[0])
		if err != nil {
			return err
		}
		var overlay *graph.GraphOverlay
		if node, _ := cmd.Flags().GetString("highlight"); node != "" {
			overlay = &graph.GraphOverlay{CurrentNode: node}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(def, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("highlight", "", "Node id to highlight")
}
