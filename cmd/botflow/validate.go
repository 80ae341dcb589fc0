package main

import (
	"fmt"

	"github.com/aretw0/botflow/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <flow-file>...",
	Short: "Compile flow files and report problems",
	Long:  `Compiles each flow file, prints its stage table summary and warns about stages that can auto-chain into each other forever.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strict, _ := cmd.Flags().GetBool("strict")
		out := cmd.OutOrStdout()

		var failed int
		for _, path := range args {
			report, err := cli.Validate(path)
			if err != nil {
				fmt.Fprintf(out, "%s: invalid: %v\n", path, err)
				failed++
				continue
			}
			fmt.Fprintf(out, "%s:\n%s", path, report)
			if strict && (report.Cycle != nil || len(report.Issues) > 0) {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d flow(s) failed validation", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("strict", false, "Treat warnings (cycles, unreachable nodes, dead ends) as errors")
}
