package main

import (
	"github.com/afo-kingdom/chancellor/internal/cli"
	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:     "checkpoint",
	Aliases: []string{"checkpoints", "cp"},
	Short:   "Inspect and remove run checkpoints",
}

var checkpointListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List traces with checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(env *cli.Env) error {
			return cli.ListCheckpoints(cmd.Context(), env.Engine, cmd.OutOrStdout())
		})
	},
}

var checkpointInspectCmd = &cobra.Command{
	Use:   "inspect <trace_id> [step]",
	Short: "Print a checkpoint as JSON (latest step when omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		step := ""
		if len(args) == 2 {
			step = args[1]
		}
		return withEnv(cmd, func(env *cli.Env) error {
			return cli.InspectCheckpoint(cmd.Context(), env.Engine, args[0], step, cmd.OutOrStdout())
		})
	},
}

var checkpointRemoveCmd = &cobra.Command{
	Use:     "rm <trace_id>",
	Aliases: []string{"delete"},
	Short:   "Delete every checkpoint of a trace",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(env *cli.Env) error {
			return cli.DeleteCheckpoints(cmd.Context(), env.Engine, args[0], cmd.OutOrStdout())
		})
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <trace_id>",
	Short: "Rebuild a run from its event log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(env *cli.Env) error {
			return cli.ReplayTrace(cmd.Context(), env.Engine, args[0], cmd.OutOrStdout())
		})
	},
}

func init() {
	checkpointCmd.AddCommand(checkpointListCmd, checkpointInspectCmd, checkpointRemoveCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(replayCmd)
}
