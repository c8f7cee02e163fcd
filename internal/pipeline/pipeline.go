// =============================================================================
// LDCC1 Processor - Pipeline Module
// =============================================================================
//
// This module contains the orchestrator. It runs the whole procedure for one
// input file, strictly one step after another.
//
// PROCESSING PIPELINE:
//   1. Load the input file and archive a copy in the run folder
//   2. Validate columns and values into records
//   3. Calculate the weekly ledgers
//   4. Reconcile each week against the bank figures
//   5. Allocate monthly interest (monthly runs only)
//   6. Generate the procedure documents
//   7. Prepare payment files (when enabled; the run halts here)
//   8. Write the processing report (always, also after a failure)
//
// Load and validation failures abort before anything else is written.
// Calculation and document failures abort after the completed steps are
// recorded. Reconciliation mismatches are flagged and the run continues,
// unless strict reconciliation is on.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/ldcc1-processor/internal/config"
	"github.com/ginjaninja78/ldcc1-processor/internal/documents"
	"github.com/ginjaninja78/ldcc1-processor/internal/interest"
	"github.com/ginjaninja78/ldcc1-processor/internal/ledger"
	"github.com/ginjaninja78/ldcc1-processor/internal/loader"
	"github.com/ginjaninja78/ldcc1-processor/internal/payments"
	"github.com/ginjaninja78/ldcc1-processor/internal/report"
	"github.com/ginjaninja78/ldcc1-processor/internal/types"
	"github.com/ginjaninja78/ldcc1-processor/internal/validation"
	"github.com/ginjaninja78/ldcc1-processor/pkg/utils"
)

// Step names, as recorded in the audit trail and passed to the progress
// callback.
const (
	StepLoad      = "load"
	StepValidate  = "validate"
	StepCalculate = "calculate"
	StepReconcile = "reconcile"
	StepInterest  = "interest"
	StepDocuments = "documents"
	StepPayments  = "payments"
	StepReport    = "report"
)

// ProgressFunc receives the name of each completed step and the overall
// percentage done.
type ProgressFunc func(step string, percent int)

// Deps are the pipeline's collaborators.
type Deps struct {
	Logger zerolog.Logger

	// Chooser decides where each document is saved. Nil accepts every
	// default path.
	Chooser documents.PathChooser

	// Clock defaults to time.Now.
	Clock func() time.Time

	// Progress is optional.
	Progress ProgressFunc

	// Metrics defaults to a fresh set per run.
	Metrics *report.Metrics

	// RunLogger, when set, builds the run's logger around the run log file
	// logs/ldcc1_processor_<ts>.log. Otherwise Logger is used as is.
	RunLogger func(runLog io.Writer) zerolog.Logger
}

// Pipeline runs the procedure.
type Pipeline struct {
	cfg  *config.Config
	deps Deps
}

// New creates a Pipeline.
func New(cfg *config.Config, deps Deps) *Pipeline {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Progress == nil {
		deps.Progress = func(string, int) {}
	}
	return &Pipeline{cfg: cfg, deps: deps}
}

type step struct {
	name    string
	percent int
	enabled bool
	run     func(ctx context.Context, rc *RunContext) (types.AuditStatus, string, []string, error)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the procedure for one input file.
//
// PARAMETERS:
//   - ctx: Cancellation aborts between steps; the report is still written.
//   - inputPath: The benefits file (CSV, XLSX or XLS).
//
// RETURNS:
//   - The run context, also on failure, once the run folder exists.
//   - The first error that stopped the run, or a report writing error.
func (p *Pipeline) Run(ctx context.Context, inputPath string) (*RunContext, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	values := p.cfg.Values()

	rc := &RunContext{
		Config:    p.cfg,
		Now:       p.deps.Clock,
		InputFile: inputPath,
		Audit:     report.NewAuditTrail(p.deps.Clock),
		Status:    report.StatusCompleted,
	}
	rc.StartedAt = rc.Now()
	rc.ProcessingDate = rc.StartedAt
	if values.ProcessingDate != nil {
		rc.ProcessingDate = *values.ProcessingDate
	}

	rc.Layout = utils.NewRunLayout(p.cfg.OutputDir, rc.StartedAt)
	if err := rc.Layout.EnsureDirectories(); err != nil {
		return rc, fmt.Errorf("failed to create run folder: %w", err)
	}

	metrics := p.deps.Metrics
	if metrics == nil {
		metrics = report.NewMetrics()
	}

	logger := p.deps.Logger
	if p.deps.RunLogger != nil {
		runLog, err := os.OpenFile(rc.Layout.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return rc, fmt.Errorf("failed to open run log: %w", err)
		}
		defer runLog.Close()
		logger = p.deps.RunLogger(runLog)
	}
	logger = logger.With().Str("run_id", rc.Layout.RunID).Logger()
	logger.Info().
		Str("input", inputPath).
		Str("run_folder", rc.Layout.Root).
		Bool("monthly", p.cfg.MonthlyReconciliation).
		Bool("payments", p.cfg.ProcessPayments).
		Msg("Processing started")

	steps := []step{
		{StepLoad, 10, true, p.load},
		{StepValidate, 20, true, p.validate},
		{StepCalculate, 35, true, p.calculate(logger)},
		{StepReconcile, 45, true, p.reconcile},
		{StepInterest, 55, p.cfg.MonthlyReconciliation, p.allocateInterest},
		{StepDocuments, 85, true, p.generateDocuments(logger)},
		{StepPayments, 95, p.cfg.ProcessPayments, p.preparePayments(logger)},
	}

	for i, s := range steps {
		if rc.Err == nil {
			if err := ctx.Err(); err != nil {
				rc.Err = fmt.Errorf("%s: %w", s.name, err)
				rc.Audit.Record(s.name, types.AuditFailure, "cancelled before start")
				continue
			}
		}
		if rc.Err != nil {
			rc.Audit.Record(s.name, types.AuditSkipped, "not reached")
			continue
		}
		if !s.enabled {
			rc.Audit.Record(s.name, types.AuditSkipped, "not enabled")
			p.deps.Progress(s.name, s.percent)
			continue
		}

		began := rc.Now()
		status, message, artifacts, err := s.run(ctx, rc)
		metrics.StepDuration.WithLabelValues(s.name).Set(rc.Now().Sub(began).Seconds())

		if err != nil {
			rc.Err = fmt.Errorf("%s: %w", s.name, err)
			rc.Status = report.StatusFailed
			rc.Audit.Record(s.name, types.AuditFailure, err.Error(), artifacts...)
			logger.Error().Err(err).Str("step", s.name).Int("step_number", i+1).Msg("Step failed")
			p.writeErrorLog(ctx, rc, s.name, err, logger)
			continue
		}

		rc.Audit.Record(s.name, status, message, artifacts...)
		logger.Info().Str("step", s.name).Str("status", string(status)).Msg(message)
		p.deps.Progress(s.name, s.percent)
	}

	if rc.Err != nil {
		rc.Status = report.StatusFailed
	} else if p.cfg.ProcessPayments {
		rc.Status = report.StatusAwaitingPayment
	}

	// The report is written even when ctx is cancelled.
	if err := p.writeReport(context.WithoutCancel(ctx), rc, metrics, logger); err != nil {
		logger.Error().Err(err).Msg("Failed to write processing report")
		if rc.Err == nil {
			rc.Err = err
			rc.Status = report.StatusFailed
		}
		return rc, rc.Err
	}
	p.deps.Progress(StepReport, 100)

	if rc.Err != nil {
		return rc, rc.Err
	}

	logger.Info().
		Str("status", string(rc.Status)).
		Int("documents", len(rc.Artifacts)).
		Msg("Processing completed")

	return rc, nil
}

// Check loads, validates and calculates the input without creating a run
// folder or writing anything.
//
// RETURNS:
//   - The run context with the table, records and ledgers filled in as far
//     as the checks got.
//   - The first load, validation or calculation error.
func (p *Pipeline) Check(inputPath string) (*RunContext, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	rc := &RunContext{
		Config:    p.cfg,
		Now:       p.deps.Clock,
		InputFile: inputPath,
		Audit:     report.NewAuditTrail(p.deps.Clock),
		Status:    report.StatusCompleted,
	}

	table, err := loader.Load(inputPath, loader.Options{Sheet: p.cfg.Sheet})
	if err != nil {
		rc.Status = report.StatusFailed
		return rc, fmt.Errorf("%s: %w", StepLoad, err)
	}
	rc.Table = table

	checks := []struct {
		name string
		run  func(context.Context, *RunContext) (types.AuditStatus, string, []string, error)
	}{
		{StepValidate, p.validate},
		{StepCalculate, p.calculate(p.deps.Logger)},
	}
	for _, c := range checks {
		status, message, _, err := c.run(context.Background(), rc)
		if err != nil {
			rc.Status = report.StatusFailed
			rc.Audit.Record(c.name, types.AuditFailure, err.Error())
			return rc, fmt.Errorf("%s: %w", c.name, err)
		}
		rc.Audit.Record(c.name, status, message)
	}

	return rc, nil
}

// =============================================================================
// STEPS
// =============================================================================

func (p *Pipeline) load(_ context.Context, rc *RunContext) (types.AuditStatus, string, []string, error) {
	table, err := loader.Load(rc.InputFile, loader.Options{Sheet: p.cfg.Sheet})
	if err != nil {
		return "", "", nil, err
	}
	rc.Table = table

	status := types.AuditSuccess
	message := fmt.Sprintf("Loaded %d rows (%s)", len(table.Rows), table.Format)

	archived, err := rc.Layout.ArchiveInput(rc.InputFile)
	if err != nil {
		status = types.AuditFlagged
		message += "; input not archived: " + err.Error()
		return status, message, nil, nil
	}
	rc.ArchivedFile = archived

	return status, message, []string{archived}, nil
}

func (p *Pipeline) validator() *validation.Validator {
	return validation.New(validation.Options{
		Aliases: validation.MergeAliases(p.cfg.ColumnAliases),
		Fuzzy:   p.cfg.FuzzyColumns,
	})
}

func (p *Pipeline) validate(_ context.Context, rc *RunContext) (types.AuditStatus, string, []string, error) {
	records, columns, err := p.validator().Validate(rc.Table)
	if err != nil {
		return "", "", nil, err
	}
	rc.Records = records
	rc.Columns = columns

	if len(records) == 0 {
		return "", "", nil, errors.New("input contains no records")
	}

	return types.AuditSuccess, fmt.Sprintf("Validated %d records for %d clients", len(records), rc.Clients()), nil, nil
}

func (p *Pipeline) calculate(logger zerolog.Logger) func(context.Context, *RunContext) (types.AuditStatus, string, []string, error) {
	return func(_ context.Context, rc *RunContext) (types.AuditStatus, string, []string, error) {
		values := p.cfg.Values()
		calc := ledger.NewCalculator(ledger.Options{
			StartingBalance: values.StartingBalance,
			OpeningBalances: values.OpeningBalances,
			AllowNegative:   p.cfg.AllowNegativeBalance,
		}, logger)

		ledgers, err := calc.Calculate(rc.Records)
		if err != nil {
			return "", "", nil, err
		}
		rc.Ledgers = ledgers

		last := ledgers[len(ledgers)-1]
		return types.AuditSuccess, fmt.Sprintf("Calculated %d weeks, closing balance %s", len(ledgers), last.Closing), nil, nil
	}
}

func (p *Pipeline) reconcile(_ context.Context, rc *RunContext) (types.AuditStatus, string, []string, error) {
	bank, err := p.bankFigures(rc)
	if err != nil {
		return "", "", nil, err
	}

	rc.bank = bank

	results, err := ledger.NewReconciler(bank, p.cfg.StrictReconciliation).WithClock(rc.Now).ReconcileWeeks(rc.Ledgers)
	rc.Reconciliations = results
	if err != nil {
		return "", "", nil, err
	}

	var matched, mismatched, unverified int
	for _, r := range results {
		switch r.Status {
		case types.StatusMatched:
			matched++
		case types.StatusMismatched:
			mismatched++
		default:
			unverified++
		}
	}

	status := types.AuditSuccess
	if mismatched > 0 {
		status = types.AuditFlagged
	}
	return status, fmt.Sprintf("%d matched, %d mismatched, %d unverified", matched, mismatched, unverified), nil, nil
}

// bankFigures reads the optional bank statement file and applies the manual
// closing balance to the final week.
func (p *Pipeline) bankFigures(rc *RunContext) (ledger.BankFigures, error) {
	bank := ledger.BankFigures{}

	if p.cfg.BankStatementFile != "" {
		table, err := loader.Load(p.cfg.BankStatementFile, loader.Options{Sheet: p.cfg.BankStatementSheet})
		if err != nil {
			return nil, fmt.Errorf("bank statement: %w", err)
		}
		entries, err := p.validator().ValidateBankStatement(table)
		if err != nil {
			return nil, fmt.Errorf("bank statement: %w", err)
		}
		for _, e := range entries {
			bank.Add(e.Date, e.Balance)
		}
	}

	if v := p.cfg.Values().BankClosingBalance; v != nil && len(rc.Ledgers) > 0 {
		bank[rc.Ledgers[len(rc.Ledgers)-1].Key] = *v
	}

	return bank, nil
}

func (p *Pipeline) allocateInterest(_ context.Context, rc *RunContext) (types.AuditStatus, string, []string, error) {
	values := p.cfg.Values()

	rc.InterestMonth = lastRecordMonth(rc.Records)
	if values.InterestMonth != nil {
		rc.InterestMonth = *values.InterestMonth
	}

	booking, err := interest.BookingWeek(rc.Ledgers, rc.InterestMonth)
	if err != nil {
		return "", "", nil, err
	}

	balances, err := interest.AverageBalances(rc.Ledgers, rc.InterestMonth)
	if err != nil {
		return "", "", nil, err
	}
	alloc, err := interest.Allocate(interest.MonthLabel(rc.InterestMonth), values.MonthlyInterest, balances)
	if err != nil {
		return "", "", nil, err
	}

	statement := interest.Book(booking, alloc)
	rc.Interest = &statement

	// The month end balance falls back to the bank figure of the booking week.
	bankFigure := values.MonthEndBankBalance
	if bankFigure == nil {
		bankFigure = rc.bank.Lookup(statement.Week)
	}
	result, err := ledger.NewReconciler(nil, p.cfg.StrictReconciliation).WithClock(rc.Now).
		ReconcileMonth(alloc.Period, statement.TotalAfter, bankFigure)
	rc.MonthlyReconciliation = &result
	if err != nil {
		return "", "", nil, err
	}

	status := types.AuditSuccess
	if result.Status == types.StatusMismatched {
		status = types.AuditFlagged
	}
	return status, fmt.Sprintf("Allocated %s over %d clients for %s; month end %s", alloc.Total, len(alloc.Shares), alloc.Period, result.Status), nil, nil
}

func (p *Pipeline) generateDocuments(logger zerolog.Logger) func(context.Context, *RunContext) (types.AuditStatus, string, []string, error) {
	return func(ctx context.Context, rc *RunContext) (types.AuditStatus, string, []string, error) {
		monthly := p.cfg.MonthlyReconciliation
		updateMonth := rc.ProcessingDate
		if monthly {
			updateMonth = rc.InterestMonth
		}
		procedure := documents.Procedure(documents.ProcedureOptions{
			Monthly:        monthly,
			SixMonthUpdate: sixMonthUpdateDue(updateMonth),
		})

		// The generator is kept for the payment authorization, which is saved
		// through the same chooser.
		rc.generator = documents.NewGenerator(rc.Layout, p.deps.Chooser, documents.Options{
			Procedure:      procedure,
			AbortOnCancel:  p.cfg.AbortOnCancel,
			ProcessingDate: rc.ProcessingDate,
		}, logger)

		artifacts, err := rc.generator.Generate(ctx, documents.Input{
			Ledgers:               rc.Ledgers,
			Reconciliations:       rc.Reconciliations,
			Interest:              rc.Interest,
			MonthlyReconciliation: rc.MonthlyReconciliation,
		})
		rc.Artifacts = append(rc.Artifacts, artifacts...)

		written, skipped := artifactPaths(artifacts)
		if err != nil {
			return "", "", written, err
		}

		status := types.AuditSuccess
		if skipped > 0 {
			status = types.AuditFlagged
		}
		return status, fmt.Sprintf("%d documents written, %d skipped", len(written), skipped), written, nil
	}
}

func (p *Pipeline) preparePayments(logger zerolog.Logger) func(context.Context, *RunContext) (types.AuditStatus, string, []string, error) {
	return func(ctx context.Context, rc *RunContext) (types.AuditStatus, string, []string, error) {
		preparer := payments.NewPreparer(rc.Layout, rc.generator, payments.Options{
			AccountLabel:   p.cfg.EQAccountLabel,
			ProcessingDate: rc.ProcessingDate,
		}, logger)

		result, err := preparer.Prepare(ctx, rc.Records, rc.Ledgers)
		if err != nil {
			return "", "", nil, err
		}
		rc.Payments = result
		rc.Artifacts = append(rc.Artifacts, result.Authorization)

		files := []string{result.CSVPath, result.InstructionsPath, result.SummaryPath}
		if result.Authorization.Status == types.ArtifactWritten {
			files = append(files, result.Authorization.Path)
		}
		return types.AuditFlagged,
			fmt.Sprintf("%d payments totalling %s prepared; awaiting manual entry in eQ Banking", len(result.Instructions), result.Total),
			files, nil
	}
}

// =============================================================================
// REPORTING
// =============================================================================

func (p *Pipeline) writeReport(ctx context.Context, rc *RunContext, metrics *report.Metrics, logger zerolog.Logger) error {
	rc.CompletedAt = rc.Now()
	summary := rc.Summary()

	paths, err := report.NewWriter(rc.Layout, logger).Write(ctx, summary, rc.Audit)
	rc.Report = paths
	if err != nil {
		return err
	}

	metrics.RecordsProcessed.Add(float64(summary.Counts.Records))
	metrics.WeeksProcessed.Add(float64(summary.Counts.Weeks))
	metrics.PaymentsPrepared.Add(float64(summary.Counts.Payments))
	metrics.ObserveArtifacts(rc.Artifacts)
	metrics.ObserveReconciliations(rc.Reconciliations)
	if rc.MonthlyReconciliation != nil {
		metrics.ObserveReconciliations([]types.ReconciliationResult{*rc.MonthlyReconciliation})
	}
	if summary.Interest != nil {
		metrics.InterestAllocatedPence.Set(float64(summary.Interest.Total))
	}
	metrics.FinalClosingBalancePence.Set(float64(summary.Totals.FinalClosing))
	metrics.RunDuration.Set(rc.CompletedAt.Sub(rc.StartedAt).Seconds())
	if rc.Status.Succeeded() {
		metrics.RunSuccess.Set(1)
	}

	rc.MetricsPath, err = metrics.WriteTextfile(ctx, rc.Layout)
	return err
}

// writeErrorLog records a failed step in reports/error_log_<ts>.txt. A
// failure to write it is only logged.
func (p *Pipeline) writeErrorLog(ctx context.Context, rc *RunContext, stepName string, err error, logger zerolog.Logger) {
	path, werr := rc.Layout.WriteErrorLog(context.WithoutCancel(ctx), rc.InputFile, errorLogEntries(stepName, err, rc.Now()))
	if werr != nil {
		logger.Warn().Err(werr).Msg("Failed to write error log")
		return
	}
	rc.ErrorLogPath = path
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// errorLogEntries flattens joined errors into one entry each.
func errorLogEntries(stepName string, err error, now time.Time) []utils.ErrorLogEntry {
	var entries []utils.ErrorLogEntry

	var walk func(e error)
	walk = func(e error) {
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}

		entry := utils.ErrorLogEntry{
			Timestamp:    now,
			Step:         stepName,
			ErrorType:    errorType(e),
			ErrorMessage: e.Error(),
		}
		var invalid *validation.InvalidValueError
		if errors.As(e, &invalid) {
			entry.RowNumber = invalid.Row
			entry.FieldName = invalid.Column
			entry.FieldValue = invalid.Value
		}
		var calc *ledger.CalculationError
		if errors.As(e, &calc) {
			entry.RowNumber = calc.Row
		}
		entries = append(entries, entry)
	}

	// Report the first joined list in the chain entry by entry.
	root := err
	for e := err; e != nil; e = errors.Unwrap(e) {
		if _, ok := e.(interface{ Unwrap() []error }); ok {
			root = e
			break
		}
	}
	walk(root)

	return entries
}

func errorType(err error) string {
	var (
		unsupported *loader.UnsupportedFormatError
		readErr     *loader.FileReadError
		missing     *validation.MissingColumnError
		invalid     *validation.InvalidValueError
		calc        *ledger.CalculationError
		mismatch    *ledger.ReconciliationMismatch
		docErr      *documents.DocumentGenerationError
	)
	switch {
	case errors.As(err, &unsupported):
		return "unsupported_format"
	case errors.As(err, &readErr):
		return "file_read"
	case errors.As(err, &missing):
		return "missing_column"
	case errors.As(err, &invalid):
		return "invalid_value"
	case errors.As(err, &calc):
		return "calculation"
	case errors.As(err, &mismatch):
		return "reconciliation_mismatch"
	case errors.As(err, &docErr):
		return "document_generation"
	case errors.Is(err, interest.ErrMonthNotFinal):
		return "interest_month"
	case errors.Is(err, documents.ErrSaveCancelled):
		return "save_cancelled"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// lastRecordMonth returns the first day of the month of the latest record.
func lastRecordMonth(records []types.Record) time.Time {
	var latest time.Time
	for _, r := range records {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	return time.Date(latest.Year(), latest.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// sixMonthUpdateDue reports whether the 6 month balance update belongs to
// the month: it is produced at the end of March and September.
func sixMonthUpdateDue(month time.Time) bool {
	return month.Month() == time.March || month.Month() == time.September
}

func artifactPaths(artifacts []types.DocumentArtifact) (written []string, skipped int) {
	for _, a := range artifacts {
		if a.Status == types.ArtifactWritten {
			written = append(written, a.Path)
		} else {
			skipped++
		}
	}
	return written, skipped
}
