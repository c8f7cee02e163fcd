package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ldcc1-processor/internal/config"
	"github.com/ginjaninja78/ldcc1-processor/internal/documents"
	"github.com/ginjaninja78/ldcc1-processor/internal/interest"
	"github.com/ginjaninja78/ldcc1-processor/internal/ledger"
	"github.com/ginjaninja78/ldcc1-processor/internal/report"
	"github.com/ginjaninja78/ldcc1-processor/internal/types"
	"github.com/ginjaninja78/ldcc1-processor/internal/validation"
)

var runTime = time.Date(2025, 9, 30, 10, 15, 0, 0, time.UTC)

const twoClients = `Client,Client Name,Date,Benefit Amount,Withdrawal Amount,Reference
JS,John Smith,16/09/2025,85.50,,
MJ,Mary Jones,17/09/2025,92.75,20.00,MJ RENT
JS,John Smith,24/09/2025,85.50,10.50,
`

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "LDCC1_Benefits.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.ProcessingDate = "2025-09-30"
	return cfg
}

func run(t *testing.T, cfg *config.Config, input string) (*RunContext, error) {
	t.Helper()
	p := New(cfg, Deps{
		Logger: zerolog.Nop(),
		Clock:  func() time.Time { return runTime },
	})
	return p.Run(context.Background(), input)
}

func pdfsUnder(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(path, ".pdf") {
			out = append(out, path)
		}
		return nil
	})
	return out
}

func auditSteps(rc *RunContext) map[string]types.AuditStatus {
	out := make(map[string]types.AuditStatus)
	for _, e := range rc.Audit.Entries() {
		out[e.Step] = e.Status
	}
	return out
}

func TestRun_SingleClientMatched(t *testing.T) {
	cfg := testConfig(t)
	cfg.BankClosingBalance = "100.00"
	input := writeInput(t, "Client,Date,Benefit\nJS,16/09/2025,100.00\n")

	rc, err := run(t, cfg, input)
	require.NoError(t, err)

	assert.Equal(t, report.StatusCompleted, rc.Status)
	require.Len(t, rc.Ledgers, 1)
	assert.Equal(t, types.Pence(10000), rc.Ledgers[0].Closing)
	require.Len(t, rc.Reconciliations, 1)
	assert.Equal(t, types.StatusMatched, rc.Reconciliations[0].Status)
	assert.Equal(t, types.Pence(0), rc.Reconciliations[0].Difference)

	// 5 weekly documents plus the September 6 month update.
	assert.Len(t, rc.Artifacts, 6)
	for _, a := range rc.Artifacts {
		assert.Equal(t, types.ArtifactWritten, a.Status)
		assert.FileExists(t, a.Path)
	}

	assert.FileExists(t, rc.ArchivedFile)
	assert.FileExists(t, rc.Report.Summary)
	assert.FileExists(t, rc.Report.AuditTrail)
	assert.FileExists(t, rc.Report.PDF)
	assert.FileExists(t, rc.MetricsPath)
	assert.Empty(t, rc.ErrorLogPath)

	steps := auditSteps(rc)
	assert.Equal(t, types.AuditSuccess, steps[StepLoad])
	assert.Equal(t, types.AuditSuccess, steps[StepReconcile])
	assert.Equal(t, types.AuditSkipped, steps[StepInterest])
	assert.Equal(t, types.AuditSkipped, steps[StepPayments])
}

func TestRun_MissingColumnAbortsBeforeDocuments(t *testing.T) {
	cfg := testConfig(t)
	input := writeInput(t, "Client,Date,Withdrawal\nJS,16/09/2025,5.00\n")

	rc, err := run(t, cfg, input)
	require.Error(t, err)

	var missing *validation.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Contains(t, missing.Missing, validation.FieldBenefit)

	assert.Equal(t, report.StatusFailed, rc.Status)
	assert.Empty(t, rc.Artifacts)
	assert.Empty(t, pdfsUnder(t, rc.Layout.Root))

	steps := auditSteps(rc)
	assert.Equal(t, types.AuditSuccess, steps[StepLoad])
	assert.Equal(t, types.AuditFailure, steps[StepValidate])
	assert.Equal(t, types.AuditSkipped, steps[StepDocuments])

	// The failure is still reported.
	assert.FileExists(t, rc.Report.Summary)
	assert.Empty(t, rc.Report.PDF)
	require.NotEmpty(t, rc.ErrorLogPath)
	log, err := os.ReadFile(rc.ErrorLogPath)
	require.NoError(t, err)
	assert.Contains(t, string(log), "missing_column")

	data, err := os.ReadFile(rc.Report.Summary)
	require.NoError(t, err)
	var summary report.Summary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, report.StatusFailed, summary.Status)
	assert.Contains(t, summary.Error, "missing required column")
}

func TestRun_InvalidValuesLoggedPerRow(t *testing.T) {
	cfg := testConfig(t)
	input := writeInput(t, "Client,Date,Benefit\nJS,not a date,1.00\n,16/09/2025,abc\n")

	rc, err := run(t, cfg, input)
	require.Error(t, err)

	var invalid *validation.InvalidValueError
	require.True(t, errors.As(err, &invalid))

	log, err := os.ReadFile(rc.ErrorLogPath)
	require.NoError(t, err)
	assert.Contains(t, string(log), "Total Errors: 3")
	assert.Contains(t, string(log), "Row Number: 2")
	assert.Contains(t, string(log), "Row Number: 3")
}

func TestRun_MismatchIsFlagged(t *testing.T) {
	cfg := testConfig(t)
	cfg.BankClosingBalance = "99.00"
	input := writeInput(t, "Client,Date,Benefit\nJS,16/09/2025,100.00\n")

	rc, err := run(t, cfg, input)
	require.NoError(t, err)

	assert.Equal(t, report.StatusCompleted, rc.Status)
	assert.Equal(t, types.StatusMismatched, rc.Reconciliations[0].Status)
	assert.Equal(t, types.Pence(-100), rc.Reconciliations[0].Difference)
	assert.Equal(t, types.AuditFlagged, auditSteps(rc)[StepReconcile])
	assert.Len(t, rc.Artifacts, 6)
}

func TestRun_StrictMismatchFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.BankClosingBalance = "99.00"
	cfg.StrictReconciliation = true
	input := writeInput(t, "Client,Date,Benefit\nJS,16/09/2025,100.00\n")

	rc, err := run(t, cfg, input)
	require.Error(t, err)

	var mismatch *ledger.ReconciliationMismatch
	require.True(t, errors.As(err, &mismatch))

	// The result is recorded before the run stops.
	require.Len(t, rc.Reconciliations, 1)
	assert.Equal(t, types.StatusMismatched, rc.Reconciliations[0].Status)
	assert.Empty(t, rc.Artifacts)
	assert.FileExists(t, rc.Report.Summary)
}

func TestRun_BankStatementFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.BankStatementFile = writeInput(t, "Date,Closing Balance\n21/09/2025,158.25\n28/09/2025,200.00\n")
	input := writeInput(t, twoClients)

	rc, err := run(t, cfg, input)
	require.NoError(t, err)

	require.Len(t, rc.Reconciliations, 2)
	assert.Equal(t, types.StatusMatched, rc.Reconciliations[0].Status)
	// Week 39 closes at 158.25 + 85.50 - 10.50 = 233.25.
	assert.Equal(t, types.StatusMismatched, rc.Reconciliations[1].Status)
	assert.Equal(t, types.Pence(20000-23325), rc.Reconciliations[1].Difference)
}

func TestRun_PaymentsHalt(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProcessPayments = true
	input := writeInput(t, twoClients)

	rc, err := run(t, cfg, input)
	require.NoError(t, err)

	assert.Equal(t, report.StatusAwaitingPayment, rc.Status)
	require.NotNil(t, rc.Payments)
	assert.Len(t, rc.Payments.Instructions, 2)
	assert.Equal(t, types.Pence(3050), rc.Payments.Total)
	assert.FileExists(t, rc.Payments.CSVPath)
	assert.FileExists(t, rc.Payments.SummaryPath)
	assert.FileExists(t, rc.Payments.Authorization.Path)
	assert.Equal(t, types.AuditFlagged, auditSteps(rc)[StepPayments])

	// 2 weeks of 5 documents, the 6 month update and the payment
	// authorization.
	assert.Len(t, rc.Artifacts, 12)

	summary := rc.Summary()
	assert.Equal(t, 2, summary.Counts.Payments)
	assert.Equal(t, rc.Payments.SummaryPath, summary.PaymentSummaryPath)
}

func TestRun_Monthly(t *testing.T) {
	cfg := testConfig(t)
	cfg.MonthlyReconciliation = true
	cfg.MonthlyInterest = "1.01"
	input := writeInput(t, twoClients)

	rc, err := run(t, cfg, input)
	require.NoError(t, err)

	require.NotNil(t, rc.Interest)
	assert.Equal(t, "2025-09", rc.Interest.Period)
	var total types.Pence
	for _, s := range rc.Interest.Allocation.Shares {
		total += s.Share
	}
	assert.Equal(t, types.Pence(101), total)

	require.NotNil(t, rc.MonthlyReconciliation)
	assert.Equal(t, types.StatusUnverified, rc.MonthlyReconciliation.Status)
	assert.Equal(t, rc.Interest.TotalAfter, rc.MonthlyReconciliation.Computed)

	// September includes the 6 month balance update.
	assert.Len(t, rc.Artifacts, 14)
	assert.FileExists(t, filepath.Join(rc.Layout.Reports, "6Month_Balance_Update_30092025.pdf"))

	summary := rc.Summary()
	assert.Equal(t, types.Pence(23325+101), summary.Totals.FinalClosing)
}

func TestRun_ProgressAndCancellation(t *testing.T) {
	t.Run("progress", func(t *testing.T) {
		var steps []string
		var last int
		p := New(testConfig(t), Deps{
			Logger:   zerolog.Nop(),
			Clock:    func() time.Time { return runTime },
			Progress: func(step string, percent int) { steps = append(steps, step); last = percent },
		})

		_, err := p.Run(context.Background(), writeInput(t, twoClients))
		require.NoError(t, err)
		assert.Equal(t, []string{
			StepLoad, StepValidate, StepCalculate, StepReconcile, StepInterest, StepDocuments, StepPayments, StepReport,
		}, steps)
		assert.Equal(t, 100, last)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := New(testConfig(t), Deps{Logger: zerolog.Nop(), Clock: func() time.Time { return runTime }})
		rc, err := p.Run(ctx, writeInput(t, twoClients))
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, report.StatusFailed, rc.Status)
		assert.FileExists(t, rc.Report.Summary)
	})
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.StartingBalance = "lots"

	rc, err := run(t, cfg, writeInput(t, twoClients))
	require.Error(t, err)
	assert.Nil(t, rc)
}

func TestErrorLogEntries(t *testing.T) {
	err := errors.Join(
		&validation.InvalidValueError{Row: 4, Column: "Benefit", Value: "abc", Reason: "not a number"},
		errors.New("too many invalid values"),
	)

	entries := errorLogEntries(StepValidate, err, runTime)
	require.Len(t, entries, 2)
	assert.Equal(t, "invalid_value", entries[0].ErrorType)
	assert.Equal(t, 4, entries[0].RowNumber)
	assert.Equal(t, "Benefit", entries[0].FieldName)
	assert.Equal(t, "error", entries[1].ErrorType)
}

func TestSixMonthUpdateDue(t *testing.T) {
	assert.True(t, sixMonthUpdateDue(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, sixMonthUpdateDue(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, sixMonthUpdateDue(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCheck(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, Deps{Logger: zerolog.Nop(), Clock: func() time.Time { return runTime }})

	rc, err := p.Check(writeInput(t, twoClients))
	require.NoError(t, err)
	assert.Len(t, rc.Records, 3)
	assert.Len(t, rc.Ledgers, 2)
	assert.Equal(t, 2, rc.Clients())

	// Nothing is written.
	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = p.Check(writeInput(t, "Client,Date\nJS,16/09/2025\n"))
	var missing *validation.MissingColumnError
	assert.True(t, errors.As(err, &missing))
}

func TestRun_RunLogFile(t *testing.T) {
	p := New(testConfig(t), Deps{
		Clock: func() time.Time { return runTime },
		RunLogger: func(w io.Writer) zerolog.Logger {
			return zerolog.New(w)
		},
	})

	rc, err := p.Run(context.Background(), writeInput(t, twoClients))
	require.NoError(t, err)

	data, err := os.ReadFile(rc.Layout.LogFile())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"Processing started"`)
	assert.Contains(t, string(data), rc.Layout.RunID)
}

func TestRun_MonthEndBankBalance(t *testing.T) {
	cfg := testConfig(t)
	cfg.MonthlyReconciliation = true
	cfg.MonthlyInterest = "1.01"
	cfg.MonthEndBankBalance = "234.26"

	rc, err := run(t, cfg, writeInput(t, twoClients))
	require.NoError(t, err)

	require.NotNil(t, rc.MonthlyReconciliation)
	assert.Equal(t, "2025-09", rc.MonthlyReconciliation.Period)
	assert.Equal(t, types.StatusMatched, rc.MonthlyReconciliation.Status)
	assert.Equal(t, types.AuditSuccess, auditSteps(rc)[StepInterest])
}

func TestRun_ClientWithdrawalCoveredByStartingBalance(t *testing.T) {
	cfg := testConfig(t)
	cfg.StartingBalance = "500.00"
	input := writeInput(t, "Client,Date,Benefit,Withdrawal\nJS,16/09/2025,,50.00\n")

	rc, err := run(t, cfg, input)
	require.NoError(t, err)

	assert.Equal(t, types.Pence(45000), rc.Ledgers[0].Closing)
	assert.Equal(t, types.AuditSuccess, auditSteps(rc)[StepCalculate])
	assert.NotEmpty(t, rc.Artifacts)
}

func TestRun_InterestMonthFromLastRecord(t *testing.T) {
	cfg := testConfig(t)
	cfg.MonthlyReconciliation = true
	cfg.MonthlyInterest = "1.00"
	// 30/09/2025 falls in the week ending 05/10/2025.
	input := writeInput(t, "Client,Date,Benefit\nJS,02/09/2025,100.00\nJS,09/09/2025,100.00\nJS,30/09/2025,100.00\n")

	rc, err := run(t, cfg, input)
	require.NoError(t, err)

	require.NotNil(t, rc.Interest)
	assert.Equal(t, "2025-09", rc.Interest.Period)
	assert.Equal(t, types.WeekKey{Year: 2025, Week: 40}, rc.Interest.Week)
	assert.Equal(t, types.Pence(100), rc.Interest.Allocation.ShareOf("JS"))
	assert.FileExists(t, filepath.Join(rc.Layout.Reports, "6Month_Balance_Update_30092025.pdf"))

	summary := rc.Summary()
	assert.Equal(t, types.Pence(30000+100), summary.Totals.FinalClosing)
	assert.Equal(t, rc.Interest.TotalAfter, summary.Totals.FinalClosing)
}

func TestRun_InterestMonthBeforeFinalWeek(t *testing.T) {
	cfg := testConfig(t)
	cfg.MonthlyReconciliation = true
	cfg.MonthlyInterest = "1.00"
	cfg.InterestMonth = "2025-08"
	input := writeInput(t, "Client,Date,Benefit\nJS,26/08/2025,100.00\nJS,16/09/2025,50.00\n")

	rc, err := run(t, cfg, input)
	require.Error(t, err)
	assert.ErrorIs(t, err, interest.ErrMonthNotFinal)

	assert.Nil(t, rc.Interest)
	assert.Equal(t, types.AuditFailure, auditSteps(rc)[StepInterest])
	assert.Empty(t, pdfsUnder(t, rc.Layout.ScannedCopies))

	log, err := os.ReadFile(rc.ErrorLogPath)
	require.NoError(t, err)
	assert.Contains(t, string(log), "interest_month")
}

func TestRun_SixMonthUpdateWithoutMonthly(t *testing.T) {
	t.Run("september", func(t *testing.T) {
		rc, err := run(t, testConfig(t), writeInput(t, twoClients))
		require.NoError(t, err)

		assert.Nil(t, rc.Interest)
		update := rc.Artifacts[len(rc.Artifacts)-1]
		assert.Equal(t, documents.TypeSixMonthBalanceUpdate, update.Type)
		assert.Equal(t, filepath.Join(rc.Layout.Reports, "6Month_Balance_Update_30092025.pdf"), update.Path)
		assert.FileExists(t, update.Path)
	})

	t.Run("october", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.ProcessingDate = "2025-10-01"

		rc, err := run(t, cfg, writeInput(t, twoClients))
		require.NoError(t, err)

		assert.Len(t, rc.Artifacts, 10)
		for _, a := range rc.Artifacts {
			assert.NotEqual(t, documents.TypeSixMonthBalanceUpdate, a.Type)
		}
	})
}

func TestRun_WeeksSharingAFolder(t *testing.T) {
	cfg := testConfig(t)
	input := writeInput(t, "Client,Date,Benefit\nJS,10/09/2024,1.00\nJS,16/09/2025,1.00\n")

	rc, err := run(t, cfg, input)
	require.Error(t, err)

	var genErr *documents.DocumentGenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, documents.ErrDuplicatePath)
	assert.Equal(t, types.AuditFailure, auditSteps(rc)[StepDocuments])
	assert.Empty(t, rc.Artifacts)
	assert.Empty(t, pdfsUnder(t, rc.Layout.ScannedCopies))
}

func writeWorkbook(t *testing.T, name, sheet string, rows [][]any) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &values))
	}

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestRun_BankStatementSheetIsIndependent(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sheet = "Benefits"
	cfg.BankStatementFile = writeWorkbook(t, "statement.xlsx", "Sheet1", [][]any{
		{"Date", "Closing Balance"},
		{"21/09/2025", "100.00"},
	})
	input := writeWorkbook(t, "benefits.xlsx", "Benefits", [][]any{
		{"Client", "Date", "Benefit"},
		{"JS", "16/09/2025", "100.00"},
	})

	rc, err := run(t, cfg, input)
	require.NoError(t, err)

	require.Len(t, rc.Reconciliations, 1)
	assert.Equal(t, types.StatusMatched, rc.Reconciliations[0].Status)

	t.Run("named statement sheet", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.BankStatementSheet = "Bank"
		cfg.BankStatementFile = writeWorkbook(t, "statement.xlsx", "Bank", [][]any{
			{"Date", "Closing Balance"},
			{"21/09/2025", "99.00"},
		})

		rc, err := run(t, cfg, writeInput(t, "Client,Date,Benefit\nJS,16/09/2025,100.00\n"))
		require.NoError(t, err)
		assert.Equal(t, types.StatusMismatched, rc.Reconciliations[0].Status)
	})
}
