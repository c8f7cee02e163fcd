// =============================================================================
// LDCC1 Processor - Validate Command
// =============================================================================
//
// This file defines the 'validate' command. It checks the configuration and
// an input file (columns, values and balances) without writing anything.
//
// COMMAND USAGE:
//   ldcc1 validate --input FILE
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ldcc1-processor/internal/pipeline"
	"github.com/ginjaninja78/ldcc1-processor/internal/validation"
)

var validateInput string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and an input file without processing it",
	Long: `The validate command loads the configuration and the input file, matches
the columns, checks every value and calculates the weekly balances. Nothing
is written; problems are reported and the command exits with status 1.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		rc, err := pipeline.New(cfg, pipeline.Deps{Logger: consoleLogger(cfg)}).Check(validateInput)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Input:    %s (%s, %d rows)\n", validateInput, rc.Table.Format, len(rc.Table.Rows))
		for _, f := range validation.RecordFields {
			if idx := rc.Columns.Index(f); idx >= 0 {
				fmt.Fprintf(out, "  %-12s <- %q\n", f, rc.Table.Headers[idx])
			}
		}
		fmt.Fprintf(out, "Records:  %d for %d clients\n", len(rc.Records), rc.Clients())
		first, last := rc.Ledgers[0], rc.Ledgers[len(rc.Ledgers)-1]
		fmt.Fprintf(out, "Weeks:    %d (%s to %s)\n", len(rc.Ledgers), first.Key, last.Key)
		fmt.Fprintf(out, "Closing:  %s\n", last.Closing)
		fmt.Fprintln(out, "Input is valid.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateInput, "input", "i", "", "Benefits file to check")
	_ = validateCmd.MarkFlagRequired("input")
}
