package main

import (
	"github.com/afo-kingdom/chancellor/internal/cli"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate the sovereignty gate for a set of scores",
	Example: `  chancellor check --trinity 95 --risk 5 --gap 0.1
  chancellor check --trinity 95 --risk 5 --dry-run --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts cli.CheckOptions
		opts.Trinity, _ = cmd.Flags().GetFloat64("trinity")
		opts.Risk, _ = cmd.Flags().GetFloat64("risk")
		opts.Gap, _ = cmd.Flags().GetFloat64("gap")
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
		opts.ResidualDoubt, _ = cmd.Flags().GetBool("doubt")
		opts.JSON, _ = cmd.Flags().GetBool("json")

		return withEnv(cmd, func(env *cli.Env) error {
			_, err := cli.Check(env.Engine, opts, cmd.OutOrStdout())
			return err
		})
	},
}

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Print the Trinity weights and gate thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(env *cli.Env) error {
			cli.PrintWeights(env.Engine, cmd.OutOrStdout())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(weightsCmd)
	checkCmd.Flags().Float64("trinity", 0, "Trinity score (0..100)")
	checkCmd.Flags().Float64("risk", 0, "Risk score (0..100)")
	checkCmd.Flags().Float64("gap", 0, "Pillar balance gap (0..1)")
	checkCmd.Flags().Bool("dry-run", false, "Treat the action as a dry run")
	checkCmd.Flags().Bool("doubt", false, "Flag residual doubt")
	checkCmd.Flags().Bool("json", false, "Print the ruling as JSON")
	_ = checkCmd.MarkFlagRequired("trinity")
	_ = checkCmd.MarkFlagRequired("risk")
}
