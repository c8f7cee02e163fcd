// =============================================================================
// LDCC1 Processor - Payment Preparer
// =============================================================================
//
// This module prepares withdrawals for manual entry in eQ online banking.
// Nothing is ever transmitted: an operator keys the payments and gets them
// authorised, following the written instructions produced here.
//
// OUTPUT (payment_output/):
//   eQ_payment_instructions.csv          - one row per withdrawal
//   eQ_banking_instructions.txt          - the manual eQ procedure
//   payment_processing_summary.json      - machine-readable summary
//
// plus "Payment Authorization - Week NN.pdf" in the final week's folder.
//
// =============================================================================

package payments

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/ldcc1-processor/internal/documents"
	"github.com/ginjaninja78/ldcc1-processor/internal/pdfwriter"
	"github.com/ginjaninja78/ldcc1-processor/internal/types"
	"github.com/ginjaninja78/ldcc1-processor/pkg/utils"
)

// Output file names.
const (
	InstructionsCSV  = "eQ_payment_instructions.csv"
	InstructionsText = "eQ_banking_instructions.txt"
	SummaryJSON      = "payment_processing_summary.json"

	// StatusPrepared is the payment status recorded once files are written.
	StatusPrepared = "prepared_for_eq_banking"
)

// Instruction is one payment to be keyed into eQ.
type Instruction struct {
	ClientID   string      `json:"client_id"`
	ClientName string      `json:"client_name,omitempty"`
	Amount     types.Pence `json:"amount_pence"`
	Reference  string      `json:"reference"`
	Date       time.Time   `json:"date"`
	Week       string      `json:"week"`
	Row        int         `json:"source_row"`
}

// Summary is written to payment_processing_summary.json.
type Summary struct {
	ProcessingDate          string   `json:"processing_date"`
	Week                    string   `json:"week"`
	PaymentStatus           string   `json:"payment_status"`
	TotalPayments           int      `json:"total_payments"`
	TotalAmount             string   `json:"total_amount"`
	TotalAmountPence        int64    `json:"total_amount_pence"`
	Account                 string   `json:"account"`
	EQAuthorizationRequired bool     `json:"eq_authorization_required"`
	Files                   []string `json:"files"`
	NextSteps               []string `json:"next_steps"`
}

// Result lists what was prepared.
type Result struct {
	Instructions     []Instruction
	Total            types.Pence
	CSVPath          string
	InstructionsPath string
	SummaryPath      string
	Authorization    types.DocumentArtifact
}

// DocumentSaver saves a rendered document through the operator's path
// chooser and confirms it on disk.
type DocumentSaver interface {
	Save(ctx context.Context, docType types.DocumentType, title, source, defaultPath string, content []byte) (types.DocumentArtifact, error)
}

// Options configures a Preparer.
type Options struct {
	// AccountLabel names the client account in the eQ instructions.
	AccountLabel string

	ProcessingDate time.Time
}

// Preparer prepares payment files.
type Preparer struct {
	layout  *utils.RunLayout
	saver   DocumentSaver
	options Options
	logger  zerolog.Logger
}

// NewPreparer creates a Preparer.
func NewPreparer(layout *utils.RunLayout, saver DocumentSaver, options Options, logger zerolog.Logger) *Preparer {
	return &Preparer{layout: layout, saver: saver, options: options, logger: logger}
}

// BuildInstructions creates one instruction per record with a withdrawal,
// in date then source row order.
func BuildInstructions(records []types.Record) []Instruction {
	var out []Instruction
	for _, r := range records {
		if r.Withdrawal <= 0 {
			continue
		}
		week := types.WeekOf(r.Date)
		ref := r.Reference
		if ref == "" {
			ref = fmt.Sprintf("%s WK%02d", r.ClientID, week.Week)
		}
		out = append(out, Instruction{
			ClientID:   r.ClientID,
			ClientName: r.ClientName,
			Amount:     r.Withdrawal,
			Reference:  ref,
			Date:       r.Date,
			Week:       week.String(),
			Row:        r.Row,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Row < out[j].Row
	})
	return out
}

// Prepare writes the payment files for the run.
//
// PARAMETERS:
//   - records: Validated records; only withdrawals become instructions.
//   - ledgers: The run's ledgers; the last one names the authorization.
//
// RETURNS:
//   - The prepared result.
//   - An error if any file cannot be written.
func (p *Preparer) Prepare(ctx context.Context, records []types.Record, ledgers []types.WeeklyLedger) (*Result, error) {
	if len(ledgers) == 0 {
		return nil, fmt.Errorf("no ledgers to prepare payments for")
	}
	last := ledgers[len(ledgers)-1]

	result := &Result{
		Instructions:     BuildInstructions(records),
		CSVPath:          filepath.Join(p.layout.Payments, InstructionsCSV),
		InstructionsPath: filepath.Join(p.layout.Payments, InstructionsText),
		SummaryPath:      filepath.Join(p.layout.Payments, SummaryJSON),
	}
	for _, in := range result.Instructions {
		result.Total += in.Amount
	}

	if err := utils.WriteFile(ctx, result.CSVPath, utils.Overwrite, func(w io.Writer) error {
		return writeCSV(w, result.Instructions)
	}); err != nil {
		return nil, fmt.Errorf("failed to write payment instructions: %w", err)
	}

	if err := utils.WriteFile(ctx, result.InstructionsPath, utils.Overwrite, func(w io.Writer) error {
		return writeBankingInstructions(w, p.options.AccountLabel, p.options.ProcessingDate, result)
	}); err != nil {
		return nil, fmt.Errorf("failed to write eQ banking instructions: %w", err)
	}

	content, err := pdfwriter.GenerateWithOptions(authorizationDocument(last, result, p.options), p.pdfOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to render payment authorization: %w", err)
	}
	authPath := filepath.Join(p.layout.WeekDir(last.Key.Label()), fmt.Sprintf("Payment Authorization - %s.pdf", last.Key.Label()))
	result.Authorization, err = p.saver.Save(ctx, documents.TypePaymentAuthorization, "Payment Authorization", last.Key.Label(), authPath, content)
	if err != nil {
		return nil, err
	}

	summary := Summary{
		ProcessingDate:          p.options.ProcessingDate.Format(time.RFC3339),
		Week:                    last.Key.String(),
		PaymentStatus:           StatusPrepared,
		TotalPayments:           len(result.Instructions),
		TotalAmount:             result.Total.Plain(),
		TotalAmountPence:        int64(result.Total),
		Account:                 p.options.AccountLabel,
		EQAuthorizationRequired: true,
		Files:                   []string{result.CSVPath, result.InstructionsPath},
		NextSteps: []string{
			"Log into eQ Banking system",
			"Process payments using generated instructions",
			"Obtain authorization from designated signatories",
			"Verify payment completion",
			"Notify relevant staff",
		},
	}
	if result.Authorization.Status == types.ArtifactWritten {
		summary.Files = append(summary.Files, result.Authorization.Path)
	}

	if err := utils.WriteFile(ctx, result.SummaryPath, utils.Overwrite, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}); err != nil {
		return nil, fmt.Errorf("failed to write payment summary: %w", err)
	}

	p.logger.Info().
		Int("payments", len(result.Instructions)).
		Str("total", result.Total.String()).
		Str("output", p.layout.Payments).
		Msg("Payment data prepared for eQ Banking")

	return result, nil
}

func (p *Preparer) pdfOptions() pdfwriter.GenerateOptions {
	opts := pdfwriter.DefaultGenerateOptions()
	opts.CreationDate = p.options.ProcessingDate
	return opts
}

// =============================================================================
// FILE CONTENT
// =============================================================================

func writeCSV(w io.Writer, instructions []Instruction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Client", "Name", "Amount", "Reference", "Date", "Week"}); err != nil {
		return err
	}
	for _, in := range instructions {
		if err := cw.Write([]string{
			in.ClientID, in.ClientName, in.Amount.Plain(), in.Reference, in.Date.Format("02/01/2006"), in.Week,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeBankingInstructions(w io.Writer, account string, processed time.Time, r *Result) error {
	steps := []string{
		"Log into eQ Banking system",
		"Select 'Payments' from top menu",
		"Select 'New Payment'",
		"Select 'Common Set'",
		"Select " + account,
		"Payment Type: Inter Account Transfer",
		"Select BACS",
		"Enter recipient details from " + InstructionsCSV,
		"Use client initials in References field",
		"Save Payment",
		"Add to Batch",
		"Request authorization from a designated signatory",
		"Verify payments processed in individual accounts",
		"Notify relevant managers of payment completion",
	}

	text := "eQ Banking Payment Instructions\n" +
		"========================================\n\n" +
		fmt.Sprintf("Payments to enter: %d\nTotal: %s\n\n", len(r.Instructions), r.Total) +
		"PROCEDURE TO FOLLOW:\n\n"
	for i, s := range steps {
		text += fmt.Sprintf("%d. %s\n", i+1, s)
	}
	text += "\nGenerated: " + processed.Format("02/01/2006") + "\n"

	_, err := io.WriteString(w, text)
	return err
}

func authorizationDocument(last types.WeeklyLedger, r *Result, opts Options) pdfwriter.Document {
	t := &pdfwriter.Table{Columns: []pdfwriter.Column{
		{Header: "Date", Width: 1},
		{Header: "Client", Width: 1},
		{Header: "Name", Width: 2},
		{Header: "Reference", Width: 2},
		{Header: "Amount", Width: 1, Align: pdfwriter.AlignRight},
	}}
	for _, in := range r.Instructions {
		t.Rows = append(t.Rows, []string{in.Date.Format("02/01/2006"), in.ClientID, in.ClientName, in.Reference, in.Amount.String()})
	}
	t.Totals = []string{"Total", "", "", "", r.Total.String()}

	return pdfwriter.Document{
		Title: "Payment Authorization - " + last.Key.Label(),
		Subtitle: []string{
			"From: " + opts.AccountLabel,
			"Processing date: " + opts.ProcessingDate.Format("02/01/2006"),
		},
		Sections: []pdfwriter.Section{
			{
				Heading:    "Payments for authorization",
				Paragraphs: []string{"Payments are entered manually in eQ Banking as BACS inter account transfers."},
				Table:      t,
			},
		},
		Footer: []string{
			"Prepared by:  ______________________    Date: ____________",
			"Authorised by: _____________________    Date: ____________",
		},
	}
}
