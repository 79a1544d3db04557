package main

import (
	"fmt"
	"os"

	"github.com/afo-kingdom/chancellor/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chancellor",
	Short: "Chancellor gates actions through the Trinity pipeline",
	Long: `Chancellor runs every request through the CMD -> PARSE -> TRUTH -> GOODNESS ->
BEAUTY -> MERGE -> EXECUTE -> VERIFY -> REPORT pipeline and decides whether it
may run autonomously, needs the commander, or is blocked.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the configuration file (default chancellor.yaml if present)")
	rootCmd.PersistentFlags().String("store", "", "Backend override: memory, file, redis or sqlite")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory for the file and sqlite stores")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// globalOptions reads the persistent flags.
func globalOptions(cmd *cobra.Command) cli.Options {
	configPath, _ := cmd.Flags().GetString("config")
	store, _ := cmd.Flags().GetString("store")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	logLevel, _ := cmd.Flags().GetString("log-level")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.Options{
		ConfigPath: configPath,
		Store:      store,
		DataDir:    dataDir,
		LogLevel:   logLevel,
		Debug:      debug,
	}
}

// withEnv builds the engine for a command and closes it afterwards.
func withEnv(cmd *cobra.Command, fn func(env *cli.Env) error) error {
	env, err := cli.NewEnv(globalOptions(cmd))
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env)
}
