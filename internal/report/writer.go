// =============================================================================
// LDCC1 Processor - Report Writer
// =============================================================================
//
// This module writes the run's permanent record into reports/:
//
//   processing_summary_<ts>_<runid>.json   - always
//   audit_trail_<ts>_<runid>.json          - always
//   Final_Processing_Summary_<ts>.pdf      - successful runs only
//
// The JSON files are created exclusively and are never overwritten, so a
// report from an earlier run can not be lost to a later one.
//
// =============================================================================

package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/ldcc1-processor/internal/pdfwriter"
	"github.com/ginjaninja78/ldcc1-processor/internal/types"
	"github.com/ginjaninja78/ldcc1-processor/pkg/utils"
)

// RunStatus is the final state of a run.
type RunStatus string

const (
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"

	// StatusAwaitingPayment means payment files were prepared and the run
	// halted for manual entry in eQ Banking.
	StatusAwaitingPayment RunStatus = "awaiting_manual_payment"
)

// Succeeded reports whether the run finished without error.
func (s RunStatus) Succeeded() bool {
	return s == StatusCompleted || s == StatusAwaitingPayment
}

// Counts summarises the volume processed.
type Counts struct {
	Records   int `json:"records"`
	Weeks     int `json:"weeks"`
	Clients   int `json:"clients"`
	Artifacts int `json:"artifacts"`
	Skipped   int `json:"skipped_artifacts"`
	Payments  int `json:"payments"`
}

// Totals are the run's money movements.
type Totals struct {
	StartingBalance types.Pence `json:"starting_balance_pence"`
	Benefits        types.Pence `json:"benefits_pence"`
	Credits         types.Pence `json:"credits_pence"`
	Withdrawals     types.Pence `json:"withdrawals_pence"`
	FinalClosing    types.Pence `json:"final_closing_pence"`
}

// Summary is the processing summary for one run.
type Summary struct {
	RunID       string    `json:"run_id"`
	Status      RunStatus `json:"status"`
	InputFile   string    `json:"input_file"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Monthly     bool      `json:"monthly"`

	Counts Counts `json:"counts"`
	Totals Totals `json:"totals"`

	Reconciliations       []types.ReconciliationResult `json:"reconciliations"`
	MonthlyReconciliation *types.ReconciliationResult  `json:"monthly_reconciliation,omitempty"`
	Interest              *types.InterestAllocation    `json:"interest,omitempty"`

	Artifacts          []types.DocumentArtifact `json:"artifacts"`
	PaymentSummaryPath string                   `json:"payment_summary_path,omitempty"`
	ErrorLogPath       string                   `json:"error_log_path,omitempty"`
	Error              string                   `json:"error,omitempty"`
}

// Mismatches counts reconciliations, weekly and monthly, that did not match.
func (s *Summary) Mismatches() int {
	n := 0
	for _, r := range s.Reconciliations {
		if r.Status == types.StatusMismatched {
			n++
		}
	}
	if s.MonthlyReconciliation != nil && s.MonthlyReconciliation.Status == types.StatusMismatched {
		n++
	}
	return n
}

// Paths lists the files a Write produced.
type Paths struct {
	Summary    string
	AuditTrail string
	PDF        string
}

// Writer writes run reports.
type Writer struct {
	layout *utils.RunLayout
	logger zerolog.Logger
}

// NewWriter creates a Writer for the run layout.
func NewWriter(layout *utils.RunLayout, logger zerolog.Logger) *Writer {
	return &Writer{layout: layout, logger: logger}
}

// Write writes the summary, the audit trail and, for a successful run, the
// final summary PDF.
//
// PARAMETERS:
//   - summary: The completed run summary.
//   - trail: The run's audit trail.
//
// RETURNS:
//   - The paths written. Fields are empty for files not written.
//   - An error if any file could not be written.
func (w *Writer) Write(ctx context.Context, summary *Summary, trail *AuditTrail) (Paths, error) {
	var paths Paths

	paths.Summary = filepath.Join(w.layout.Reports, w.layout.GenerateOutputFileName("processing_summary_{timestamp}_{runid}.json", nil))
	if err := writeJSON(ctx, paths.Summary, summary); err != nil {
		return Paths{}, fmt.Errorf("failed to write processing summary: %w", err)
	}

	paths.AuditTrail = filepath.Join(w.layout.Reports, w.layout.GenerateOutputFileName("audit_trail_{timestamp}_{runid}.json", nil))
	if err := writeJSON(ctx, paths.AuditTrail, trail.Entries()); err != nil {
		return paths, fmt.Errorf("failed to write audit trail: %w", err)
	}

	if summary.Status.Succeeded() {
		content, err := pdfwriter.GenerateWithOptions(summaryDocument(summary), pdfOptions(summary))
		if err != nil {
			return paths, fmt.Errorf("failed to render final processing summary: %w", err)
		}
		paths.PDF = filepath.Join(w.layout.Reports, w.layout.GenerateOutputFileName("Final_Processing_Summary_{timestamp}.pdf", nil))
		err = utils.WriteFile(ctx, paths.PDF, utils.Exclusive, func(out io.Writer) error {
			_, err := out.Write(content)
			return err
		})
		if err != nil {
			return paths, fmt.Errorf("failed to write final processing summary: %w", err)
		}
	}

	w.logger.Info().
		Str("summary", paths.Summary).
		Str("audit_trail", paths.AuditTrail).
		Str("status", string(summary.Status)).
		Msg("Processing report written")

	return paths, nil
}

func writeJSON(ctx context.Context, path string, v any) error {
	return utils.WriteFile(ctx, path, utils.Exclusive, func(out io.Writer) error {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

func pdfOptions(s *Summary) pdfwriter.GenerateOptions {
	opts := pdfwriter.DefaultGenerateOptions()
	opts.Orientation = "P"
	opts.CreationDate = s.CompletedAt
	return opts
}

// =============================================================================
// FINAL SUMMARY DOCUMENT
// =============================================================================

func summaryDocument(s *Summary) pdfwriter.Document {
	keyValue := []pdfwriter.Column{
		{Header: "Item", Width: 2},
		{Header: "Value", Width: 1, Align: pdfwriter.AlignRight},
	}

	totals := &pdfwriter.Table{Columns: keyValue, Rows: [][]string{
		{"Starting balance", s.Totals.StartingBalance.String()},
		{"Benefits", s.Totals.Benefits.String()},
		{"Other credits", s.Totals.Credits.String()},
		{"Withdrawals", s.Totals.Withdrawals.String()},
	}, Totals: []string{"Final closing balance", s.Totals.FinalClosing.String()}}

	counts := &pdfwriter.Table{Columns: keyValue, Rows: [][]string{
		{"Records processed", strconv.Itoa(s.Counts.Records)},
		{"Weeks processed", strconv.Itoa(s.Counts.Weeks)},
		{"Clients", strconv.Itoa(s.Counts.Clients)},
		{"Documents written", strconv.Itoa(s.Counts.Artifacts - s.Counts.Skipped)},
		{"Documents skipped", strconv.Itoa(s.Counts.Skipped)},
		{"Payments prepared", strconv.Itoa(s.Counts.Payments)},
	}}

	recon := &pdfwriter.Table{Columns: []pdfwriter.Column{
		{Header: "Period", Width: 1},
		{Header: "Computed", Width: 1, Align: pdfwriter.AlignRight},
		{Header: "Bank", Width: 1, Align: pdfwriter.AlignRight},
		{Header: "Difference", Width: 1, Align: pdfwriter.AlignRight},
		{Header: "Status", Width: 1, Align: pdfwriter.AlignCenter},
	}}
	results := s.Reconciliations
	if s.MonthlyReconciliation != nil {
		results = append(append([]types.ReconciliationResult(nil), results...), *s.MonthlyReconciliation)
	}
	for _, r := range results {
		bank := "-"
		if r.BankStated != nil {
			bank = r.BankStated.String()
		}
		recon.Rows = append(recon.Rows, []string{r.Period, r.Computed.String(), bank, r.Difference.String(), string(r.Status)})
	}

	sections := []pdfwriter.Section{
		{Heading: "Balances", Table: totals},
		{Heading: "Volume", Table: counts},
		{Heading: "Reconciliation", Table: recon},
	}

	if s.Interest != nil {
		alloc := &pdfwriter.Table{Columns: []pdfwriter.Column{
			{Header: "Client", Width: 1},
			{Header: "Average balance", Width: 1, Align: pdfwriter.AlignRight},
			{Header: "Interest", Width: 1, Align: pdfwriter.AlignRight},
		}, Totals: []string{"Total", "", s.Interest.Total.String()}}
		for _, sh := range s.Interest.Shares {
			alloc.Rows = append(alloc.Rows, []string{sh.ClientID, sh.AverageBalance.String(), sh.Share.String()})
		}
		sections = append(sections, pdfwriter.Section{Heading: "Interest allocation " + s.Interest.Period, Table: alloc})
	}

	if s.Status == StatusAwaitingPayment {
		sections = append(sections, pdfwriter.Section{
			Heading:    "Payments",
			Paragraphs: []string{"Payment files are prepared. Enter and authorise the payments in eQ Banking, then verify completion."},
		})
	}

	return pdfwriter.Document{
		Title: "Final Processing Summary",
		Subtitle: []string{
			"Run: " + s.RunID,
			"Input: " + filepath.Base(s.InputFile),
			"Completed: " + s.CompletedAt.Format("02/01/2006 15:04"),
			"Status: " + string(s.Status),
		},
		Sections: sections,
		Footer: []string{
			"Reviewed by: ______________________    Date: ____________",
		},
	}
}
