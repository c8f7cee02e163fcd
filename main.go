// =============================================================================
// LDCC1 Processor - Main Entry Point
// =============================================================================
//
// This is the main entry point for the LDCC1 Processor CLI. It delegates
// command execution to the cmd package.
//
// USAGE:
//   ldcc1 process --input FILE   - Run the procedure for a benefits file
//   ldcc1 validate --input FILE  - Check a benefits file without processing
//   ldcc1 version                - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : The procedure: loading, validation, balances,
//                  reconciliation, interest, documents, payments, reports
//   - pkg/       : Run folder layout and confirmed file writes
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/ldcc1-processor/cmd"
)

func main() {
	cmd.Execute()
}
