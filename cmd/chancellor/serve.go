package main

import (
	"fmt"

	"github.com/afo-kingdom/chancellor/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API with Prometheus metrics on /metrics and the verdict
stream on /v1/verdicts/stream. The configuration file is watched and the log
level follows it without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		mcpAddr, _ := cmd.Flags().GetString("mcp-addr")
		watch, _ := cmd.Flags().GetBool("watch")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		err := cli.Serve(ctx, cli.ServeOptions{
			Options: globalOptions(cmd),
			Addr:    addr,
			MCPAddr: mcpAddr,
			Watch:   watch,
		})
		if sig := ctx.Signal(); sig != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "\nStopped by signal: %v\n", sig)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default from config, :8080)")
	serveCmd.Flags().String("mcp-addr", "", "Also serve MCP over SSE on this address")
	serveCmd.Flags().Bool("watch", true, "Reload the log level when the config file changes")
}
