// =============================================================================
// LDCC1 Processor - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (ldcc1)
//   ├── processCmd  (ldcc1 process)
//   ├── validateCmd (ldcc1 validate)
//   └── versionCmd  (ldcc1 version)
//
// CONFIGURATION:
//   The root command owns the global flags (--config, --verbose). Each
//   command loads the configuration through loadConfig, then applies its own
//   flag overrides before validating.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ldcc1-processor/internal/config"
	"github.com/ginjaninja78/ldcc1-processor/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "ldcc1",
	Short: "LDCC1 Processor - weekly client cash reconciliation for the LD client account",
	Long: `LDCC1 Processor turns the weekly benefits spreadsheet for the LD client
cash account into the documents of the LDCC1 procedure.

For each week it calculates the account and client balances, reconciles
them against the bank, and writes the procedure PDFs into the Weekly Scanned
Copies Folder. Monthly runs also allocate bank interest across clients.
Payments are prepared for manual entry in eQ Banking; nothing is ever sent.

Example Usage:
  ldcc1 process --input benefits.csv
  ldcc1 process --input benefits.xlsx --monthly --interest 12.34
  ldcc1 process --input benefits.csv --payments --interactive
  ldcc1 validate --input benefits.csv`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. Any error exits with status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// loadConfig reads the configuration file and environment. The result is not
// validated yet.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// loggingConfig returns the console logging settings of cfg.
func loggingConfig(cfg *config.Config) logging.Config {
	return logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}
}

// consoleLogger is the logger used outside a run folder.
func consoleLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(loggingConfig(cfg), nil)
}
