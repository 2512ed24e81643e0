package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fgeck/hldswatch/internal/config"
	"github.com/fgeck/hldswatch/internal/models"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Setting overrides, applied on top of HLDSWATCH_* variables.
	verbose     bool
	jsonOutput  bool
	logFile     string
	metricsAddr string
	workers     int

	geteuid = os.Geteuid
)

var errRunAsRoot = errors.New("I have a bad feeling about this: never run game servers as root")

var rootCmd = &cobra.Command{
	Use:   "hldswatch <configfile>",
	Short: "Watch GoldSource and Source servers and restart them when they stop answering",
	Long: `hldswatch periodically queries Half-Life (GoldSource) and Source dedicated
servers over UDP. A server that does not answer is reported as down and,
depending on its configuration:
  - restarted in its detached screen session and checked again
  - handed to a custom command
  - only logged

Monitor settings are read from HLDSWATCH_* environment variables, for example
HLDSWATCH_CHECK_INTERVAL=5m or HLDSWATCH_WORKERS=4.`,
	Args:         configFileArg,
	RunE:         runWatch,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "append status lines to this file (overrides HLDSWATCH_LOG_FILE)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9137")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "servers checked concurrently, 1 checks them in order (overrides HLDSWATCH_WORKERS)")

	rootCmd.AddCommand(validateCmd)
}

func configFileArg(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <configfile>", cmd.CommandPath())
	}
	return nil
}

// loadConfig parses and validates the config file, applying flag overrides.
func loadConfig(cmd *cobra.Command, path string) (*models.WatchConfig, error) {
	parser := config.NewParser()

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		parser.Set("verbose", verbose)
	}
	if flags.Changed("log-file") {
		parser.Set("log_file", logFile)
	}
	if flags.Changed("metrics-addr") {
		parser.Set("metrics_addr", metricsAddr)
	}
	if flags.Changed("workers") {
		parser.Set("workers", workers)
	}

	cfg, err := parser.LoadFile(path)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
