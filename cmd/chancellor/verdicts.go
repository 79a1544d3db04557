package main

import (
	"github.com/afo-kingdom/chancellor/internal/cli"
	"github.com/spf13/cobra"
)

var verdictsCmd = &cobra.Command{
	Use:   "verdicts",
	Short: "Query or follow the verdict stream",
}

var verdictsListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List recorded verdicts, newest last",
	RunE: func(cmd *cobra.Command, args []string) error {
		traceID, _ := cmd.Flags().GetString("trace")
		limit, _ := cmd.Flags().GetInt("limit")
		return withEnv(cmd, func(env *cli.Env) error {
			return cli.ListVerdicts(cmd.Context(), env.Engine, traceID, limit, cmd.OutOrStdout())
		})
	},
}

var verdictsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print verdicts as they are published",
	Long: `Follows the verdict stream. With the redis store this sees verdicts from
every process publishing on the configured channel; otherwise only verdicts
of this process are visible.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		traceID, _ := cmd.Flags().GetString("trace")
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return withEnv(cmd, func(env *cli.Env) error {
			return cli.TailVerdicts(ctx, env.Engine, traceID, cmd.OutOrStdout())
		})
	},
}

func init() {
	verdictsCmd.AddCommand(verdictsListCmd, verdictsTailCmd)
	rootCmd.AddCommand(verdictsCmd)
	verdictsCmd.PersistentFlags().String("trace", "", "Only show verdicts of this trace")
	verdictsListCmd.Flags().Int("limit", 50, "Maximum number of verdicts")
}
