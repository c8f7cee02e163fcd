package pipeline

import (
	"time"

	"github.com/ginjaninja78/ldcc1-processor/internal/config"
	"github.com/ginjaninja78/ldcc1-processor/internal/documents"
	"github.com/ginjaninja78/ldcc1-processor/internal/interest"
	"github.com/ginjaninja78/ldcc1-processor/internal/ledger"
	"github.com/ginjaninja78/ldcc1-processor/internal/payments"
	"github.com/ginjaninja78/ldcc1-processor/internal/report"
	"github.com/ginjaninja78/ldcc1-processor/internal/types"
	"github.com/ginjaninja78/ldcc1-processor/internal/validation"
	"github.com/ginjaninja78/ldcc1-processor/pkg/utils"
)

// RunContext carries everything one run produces. Each step reads what the
// previous steps left and adds its own output; nothing is global.
type RunContext struct {
	Config *config.Config

	// Now is the run's clock.
	Now func() time.Time

	StartedAt      time.Time
	CompletedAt    time.Time
	ProcessingDate time.Time

	InputFile    string
	ArchivedFile string
	Layout       *utils.RunLayout

	Table   *types.Table
	Records []types.Record
	Columns validation.ColumnMap

	Ledgers         []types.WeeklyLedger
	Reconciliations []types.ReconciliationResult

	// Monthly runs only.
	InterestMonth         time.Time
	Interest              *interest.Statement
	MonthlyReconciliation *types.ReconciliationResult

	Artifacts []types.DocumentArtifact
	Payments  *payments.Result

	Audit  *report.AuditTrail
	Status report.RunStatus
	Err    error

	ErrorLogPath string
	Report       report.Paths
	MetricsPath  string

	bank      ledger.BankFigures
	generator *documents.Generator
}

// Clients returns the number of distinct clients in the records.
func (rc *RunContext) Clients() int {
	seen := make(map[string]struct{})
	for _, r := range rc.Records {
		seen[r.ClientID] = struct{}{}
	}
	return len(seen)
}

// Summary builds the processing summary from the run's current state.
func (rc *RunContext) Summary() *report.Summary {
	s := &report.Summary{
		Status:                rc.Status,
		InputFile:             rc.InputFile,
		StartedAt:             rc.StartedAt,
		CompletedAt:           rc.CompletedAt,
		Monthly:               rc.Config.MonthlyReconciliation,
		Reconciliations:       rc.Reconciliations,
		MonthlyReconciliation: rc.MonthlyReconciliation,
		Artifacts:             rc.Artifacts,
		ErrorLogPath:          rc.ErrorLogPath,
	}
	if rc.Layout != nil {
		s.RunID = rc.Layout.RunID
	}
	if rc.Err != nil {
		s.Error = rc.Err.Error()
	}

	s.Counts = report.Counts{
		Records:   len(rc.Records),
		Weeks:     len(rc.Ledgers),
		Clients:   rc.Clients(),
		Artifacts: len(rc.Artifacts),
	}
	for _, a := range rc.Artifacts {
		if a.Status == types.ArtifactSkipped {
			s.Counts.Skipped++
		}
	}

	s.Totals.StartingBalance = rc.Config.Values().StartingBalance
	s.Totals.FinalClosing = s.Totals.StartingBalance
	for _, l := range rc.Ledgers {
		s.Totals.Benefits += l.Benefits
		s.Totals.Credits += l.Credits
		s.Totals.Withdrawals += l.Withdrawals
		s.Totals.FinalClosing = l.Closing
	}

	if rc.Interest != nil {
		alloc := rc.Interest.Allocation
		s.Interest = &alloc
		s.Totals.FinalClosing += alloc.Total
	}

	if rc.Payments != nil {
		s.Counts.Payments = len(rc.Payments.Instructions)
		s.PaymentSummaryPath = rc.Payments.SummaryPath
	}

	return s
}
