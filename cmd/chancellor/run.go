package main

import (
	"os"
	"strings"

	"github.com/afo-kingdom/chancellor"
	"github.com/afo-kingdom/chancellor/internal/cli"
	"github.com/afo-kingdom/chancellor/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [command text]",
	Short: "Run one request through the pipeline",
	Long: `Runs a single request through the pipeline and prints the report.
The request is either the command text or a JSON object passed with --input.`,
	Example: `  chancellor run restart api
  chancellor run --dry-run "deploy web"
  chancellor run --input '{"action":"delete","target":"/etc/passwd"}' --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		traceID, _ := cmd.Flags().GetString("trace-id")
		target, _ := cmd.Flags().GetString("target")
		tags, _ := cmd.Flags().GetStringSlice("tags")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		asJSON, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		styled := !asJSON && tui.IsTerminal(os.Stdout)
		if styled && !quiet {
			tui.PrintBanner(cmd.OutOrStdout(), chancellor.Version)
		}

		return withEnv(cmd, func(env *cli.Env) error {
			_, err := cli.RunOnce(ctx, env.Engine, cli.RunOptions{
				Text:    strings.Join(args, " "),
				Input:   input,
				TraceID: traceID,
				Target:  target,
				Tags:    tags,
				DryRun:  dryRun,
				JSON:    asJSON,
				Styled:  styled,
			}, cmd.OutOrStdout())
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("input", "", "Request as a JSON object")
	runCmd.Flags().String("trace-id", "", "Trace id for the run (generated when empty)")
	runCmd.Flags().String("target", "", "Target of the action")
	runCmd.Flags().StringSlice("tags", nil, "Tags passed to governance")
	runCmd.Flags().Bool("dry-run", false, "Ask the commander instead of executing")
	runCmd.Flags().Bool("json", false, "Print the summary and final state as JSON")
	runCmd.Flags().BoolP("quiet", "q", false, "Suppress the banner")
}
