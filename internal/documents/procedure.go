// =============================================================================
// LDCC1 Processor - Document Procedure
// =============================================================================
//
// The procedure is the ordered list of documents a run must produce. It is
// data, not control flow: the generator walks the list and never reorders it.
//
// WEEKLY (for every week, oldest first, in "Week NN/"):
//   1. Balance before benefits, credits & withdrawals
//   2. Week NN benefits
//   3. Deposit and withdrawal - benefits
//   4. Balance after benefits but before other credits & withdrawals
//   5. Reconciliation
//
// MONTHLY (once, in "Week NN - Monthly Reconciliation & Interest/"):
//   6. Balance before interest
//   7. Balance after interest
//   8. Reconciliation
//
// SIX-MONTHLY (once, in reports/, at the end of March and September, with or
// without the monthly documents):
//   9. 6 month balance update
//
// =============================================================================

package documents

import (
	"strings"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
)

// Document types.
const (
	TypeBalanceBefore          types.DocumentType = "balance-before"
	TypeBenefitsList           types.DocumentType = "benefits-list"
	TypeDepositWithdrawal      types.DocumentType = "deposit-withdrawal"
	TypeBalanceAfter           types.DocumentType = "balance-after"
	TypeReconciliation         types.DocumentType = "reconciliation"
	TypeBalanceBeforeInterest  types.DocumentType = "balance-before-interest"
	TypeBalanceAfterInterest   types.DocumentType = "balance-after-interest"
	TypeMonthlyReconciliation  types.DocumentType = "monthly-reconciliation"
	TypeSixMonthBalanceUpdate  types.DocumentType = "six-month-update"
	TypePaymentAuthorization   types.DocumentType = "payment-authorization"
	TypeFinalProcessingSummary types.DocumentType = "final-processing-summary"
)

// Scope says how often a step runs.
type Scope string

const (
	// ScopeWeekly steps run once per ledger week.
	ScopeWeekly Scope = "weekly"

	// ScopeMonthly steps run once per monthly reconciliation.
	ScopeMonthly Scope = "monthly"

	// ScopeRun steps run once per run, after the weekly and monthly steps.
	ScopeRun Scope = "run"
)

// Folder says where a step's document goes.
type Folder string

const (
	FolderWeek    Folder = "week"
	FolderMonthly Folder = "monthly"
	FolderReports Folder = "reports"
)

// Requirement is an input a step cannot be produced without.
type Requirement string

const (
	RequiresLedger                Requirement = "ledger"
	RequiresReconciliation        Requirement = "reconciliation"
	RequiresInterest              Requirement = "interest"
	RequiresHistory               Requirement = "ledger history"
	RequiresMonthlyReconciliation Requirement = "monthly reconciliation"
)

// Step is one entry of the procedure.
type Step struct {
	Type     types.DocumentType
	Scope    Scope
	Folder   Folder
	Requires []Requirement

	// FileName may contain {week} (e.g. "Week 07") and {date} (ddmmyyyy).
	FileName string

	build builder
}

// Name returns the file name for a week label and processing date.
func (s Step) Name(weekLabel, date string) string {
	return strings.NewReplacer("{week}", weekLabel, "{date}", date).Replace(s.FileName)
}

// ProcedureOptions selects the optional parts of the procedure.
type ProcedureOptions struct {
	Monthly bool

	// SixMonthUpdate adds the 6 month balance update. With Monthly it shows
	// the balances after interest and needs the interest statement.
	SixMonthUpdate bool
}

// Procedure returns the ordered document steps.
func Procedure(opts ProcedureOptions) []Step {
	steps := []Step{
		{
			Type:     TypeBalanceBefore,
			Scope:    ScopeWeekly,
			Folder:   FolderWeek,
			Requires: []Requirement{RequiresLedger},
			FileName: "Balance before benefits, credits & withdrawals.pdf",
			build:    buildBalanceBefore,
		},
		{
			Type:     TypeBenefitsList,
			Scope:    ScopeWeekly,
			Folder:   FolderWeek,
			Requires: []Requirement{RequiresLedger},
			FileName: "{week} benefits.pdf",
			build:    buildBenefitsList,
		},
		{
			Type:     TypeDepositWithdrawal,
			Scope:    ScopeWeekly,
			Folder:   FolderWeek,
			Requires: []Requirement{RequiresLedger},
			FileName: "Deposit and withdrawal - benefits.pdf",
			build:    buildDepositWithdrawal,
		},
		{
			Type:     TypeBalanceAfter,
			Scope:    ScopeWeekly,
			Folder:   FolderWeek,
			Requires: []Requirement{RequiresLedger},
			FileName: "Balance after benefits but before other credits & withdrawals.pdf",
			build:    buildBalanceAfter,
		},
		{
			Type:     TypeReconciliation,
			Scope:    ScopeWeekly,
			Folder:   FolderWeek,
			Requires: []Requirement{RequiresLedger, RequiresReconciliation},
			FileName: "Reconciliation.pdf",
			build:    buildReconciliation,
		},
	}

	if opts.Monthly {
		steps = append(steps, monthlySteps()...)
	}

	if opts.SixMonthUpdate {
		requires := []Requirement{RequiresHistory}
		if opts.Monthly {
			requires = append(requires, RequiresInterest)
		}
		steps = append(steps, Step{
			Type:     TypeSixMonthBalanceUpdate,
			Scope:    ScopeRun,
			Folder:   FolderReports,
			Requires: requires,
			FileName: "6Month_Balance_Update_{date}.pdf",
			build:    buildSixMonthUpdate,
		})
	}

	return steps
}

func monthlySteps() []Step {
	return []Step{
		{
			Type:     TypeBalanceBeforeInterest,
			Scope:    ScopeMonthly,
			Folder:   FolderMonthly,
			Requires: []Requirement{RequiresInterest},
			FileName: "Balance before interest.pdf",
			build:    buildBalanceBeforeInterest,
		},
		{
			Type:     TypeBalanceAfterInterest,
			Scope:    ScopeMonthly,
			Folder:   FolderMonthly,
			Requires: []Requirement{RequiresInterest},
			FileName: "Balance after interest.pdf",
			build:    buildBalanceAfterInterest,
		},
		{
			Type:     TypeMonthlyReconciliation,
			Scope:    ScopeMonthly,
			Folder:   FolderMonthly,
			Requires: []Requirement{RequiresInterest, RequiresMonthlyReconciliation},
			FileName: "Reconciliation.pdf",
			build:    buildMonthlyReconciliation,
		},
	}
}
