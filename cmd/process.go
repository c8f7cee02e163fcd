// =============================================================================
// LDCC1 Processor - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the full procedure for
// one benefits file.
//
// COMMAND USAGE:
//   ldcc1 process --input FILE [flags]
//
// FLAGS:
//   --input            : The benefits file (CSV, XLSX or XLS)
//   --bank-statement   : Bank statement with closing balances
//   --payments         : Prepare eQ Banking payment files and halt
//   --monthly          : Allocate interest and add the monthly documents
//   --starting-balance : Week 1 opening balance of the account
//   --strict           : Fail the run on any reconciliation difference
//   --interest         : Total interest credited for the month
//   --interactive      : Confirm or change each document's save location
//
// Flags override the configuration file and environment.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ldcc1-processor/internal/config"
	"github.com/ginjaninja78/ldcc1-processor/internal/documents"
	"github.com/ginjaninja78/ldcc1-processor/internal/logging"
	"github.com/ginjaninja78/ldcc1-processor/internal/pipeline"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	inputFile       string
	bankStatement   string
	withPayments    bool
	monthly         bool
	startingBalance string
	strict          bool
	interestTotal   string
	interactive     bool
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the LDCC1 procedure for a benefits file",
	Long: `The process command runs the LDCC1 procedure for one benefits file:

  1. Load and validate the spreadsheet
  2. Calculate the weekly account and client balances
  3. Reconcile each week against the bank
  4. Allocate monthly interest (--monthly)
  5. Write the procedure documents, one at a time
  6. Prepare eQ Banking payment files (--payments)
  7. Write the processing summary and audit trail

Every run gets its own folder under the output directory. On failure the
documents already written are kept, the error is logged in the run folder
and the command exits with status 1.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(processCmd)

	flags := processCmd.Flags()
	flags.StringVarP(&inputFile, "input", "i", "", "Benefits file to process (CSV, XLSX or XLS)")
	flags.StringVar(&bankStatement, "bank-statement", "", "Bank statement file with date and closing balance columns")
	flags.BoolVar(&withPayments, "payments", false, "Prepare eQ Banking payment files and halt for manual entry")
	flags.BoolVar(&monthly, "monthly", false, "Run the monthly reconciliation and interest allocation")
	flags.StringVar(&startingBalance, "starting-balance", "", "Opening balance of the account at week 1, e.g. 1250.00")
	flags.BoolVar(&strict, "strict", false, "Fail the run on any reconciliation difference")
	flags.StringVar(&interestTotal, "interest", "", "Total interest credited for the month, e.g. 12.34")
	flags.BoolVar(&interactive, "interactive", false, "Confirm or change each document's save location")

	_ = processCmd.MarkFlagRequired("input")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyProcessFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	deps := pipeline.Deps{
		Logger: consoleLogger(cfg),
		RunLogger: func(runLog io.Writer) zerolog.Logger {
			return logging.New(loggingConfig(cfg), runLog)
		},
		Progress: func(step string, percent int) {
			fmt.Fprintf(out, "[%3d%%] %s\n", percent, step)
		},
	}
	if interactive {
		deps.Chooser = documents.NewPromptChooser(cmd.InOrStdin(), out)
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt)
	defer stop()

	rc, err := pipeline.New(cfg, deps).Run(ctx, inputFile)
	if rc != nil && rc.Layout != nil {
		printRunSummary(out, rc)
	}
	return err
}

// applyProcessFlags copies the flags the user set onto the configuration.
func applyProcessFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("bank-statement") {
		cfg.BankStatementFile = bankStatement
	}
	if flags.Changed("payments") {
		cfg.ProcessPayments = withPayments
	}
	if flags.Changed("monthly") {
		cfg.MonthlyReconciliation = monthly
	}
	if flags.Changed("starting-balance") {
		cfg.StartingBalance = startingBalance
	}
	if flags.Changed("strict") {
		cfg.StrictReconciliation = strict
	}
	if flags.Changed("interest") {
		cfg.MonthlyInterest = interestTotal
	}
}

func printRunSummary(w io.Writer, rc *pipeline.RunContext) {
	summary := rc.Summary()

	fmt.Fprintln(w, "\n=== LDCC1 Processing Complete ===")
	fmt.Fprintf(w, "Status:          %s\n", rc.Status)
	fmt.Fprintf(w, "Run folder:      %s\n", rc.Layout.Root)
	fmt.Fprintf(w, "Records:         %d\n", summary.Counts.Records)
	fmt.Fprintf(w, "Weeks:           %d\n", summary.Counts.Weeks)
	fmt.Fprintf(w, "Documents:       %d (%d skipped)\n", summary.Counts.Artifacts, summary.Counts.Skipped)
	fmt.Fprintf(w, "Mismatches:      %d\n", summary.Mismatches())
	fmt.Fprintf(w, "Final balance:   %s\n", summary.Totals.FinalClosing)
	if rc.Payments != nil {
		fmt.Fprintf(w, "Payments:        %d totalling %s, see %s\n", len(rc.Payments.Instructions), rc.Payments.Total, rc.Layout.Payments)
	}
	if rc.ErrorLogPath != "" {
		fmt.Fprintf(w, "Error log:       %s\n", rc.ErrorLogPath)
	}
	if rc.Report.Summary != "" {
		fmt.Fprintf(w, "Summary:         %s\n", rc.Report.Summary)
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
