package main

import (
	"fmt"
	"strings"

	"github.com/afo-kingdom/chancellor"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of chancellor",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "chancellor version %s\n", strings.TrimSpace(chancellor.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
