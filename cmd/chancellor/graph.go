package main

import (
	"github.com/afo-kingdom/chancellor/internal/cli"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the pipeline as a Mermaid diagram",
	Long:  `Prints the pipeline graph. With --trace the steps visited by that run are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		traceID, _ := cmd.Flags().GetString("trace")
		return withEnv(cmd, func(env *cli.Env) error {
			return cli.PrintGraph(cmd.Context(), env.Engine, traceID, cmd.OutOrStdout())
		})
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("trace", "", "Highlight the path of a recorded run")
}
