// =============================================================================
// LDCC1 Processor - Reconciliation Engine
// =============================================================================
//
// This module compares computed closing balances against bank-stated figures.
//
// OUTCOMES:
//   MATCHED     - bank figure equals the computed balance
//   MISMATCHED  - they differ; Difference = bank - computed
//   UNVERIFIED  - no bank figure for the period
//
// A mismatch is recorded and processing continues, unless the reconciler is
// strict, in which case the mismatches are returned as an error once all
// periods have been reconciled.
//
// =============================================================================

package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
)

// ReconciliationMismatch describes a MISMATCHED result.
type ReconciliationMismatch struct {
	Result types.ReconciliationResult
}

func (e *ReconciliationMismatch) Error() string {
	bank := "n/a"
	if e.Result.BankStated != nil {
		bank = e.Result.BankStated.String()
	}
	return fmt.Sprintf("reconciliation mismatch for %s: computed %s, bank %s, difference %s",
		e.Result.Period, e.Result.Computed, bank, e.Result.Difference)
}

// Reconcile compares a computed balance with an optional bank figure.
func Reconcile(period string, computed types.Pence, bank *types.Pence, now time.Time) types.ReconciliationResult {
	result := types.ReconciliationResult{
		Period:    period,
		Computed:  computed,
		Status:    types.StatusUnverified,
		CheckedAt: now,
	}
	if bank == nil {
		return result
	}

	stated := *bank
	result.BankStated = &stated
	result.Difference = stated - computed
	if result.Difference == 0 {
		result.Status = types.StatusMatched
	} else {
		result.Status = types.StatusMismatched
	}
	return result
}

// =============================================================================
// BANK FIGURES
// =============================================================================

// BankFigures holds bank-stated closing balances per ISO week.
type BankFigures map[types.WeekKey]types.Pence

// Add assigns a balance to the week containing date. A later call for the
// same week replaces the earlier figure.
func (b BankFigures) Add(date time.Time, balance types.Pence) {
	b[types.WeekOf(date)] = balance
}

// Lookup returns the figure for a week, or nil.
func (b BankFigures) Lookup(week types.WeekKey) *types.Pence {
	if v, ok := b[week]; ok {
		return &v
	}
	return nil
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler reconciles ledgers against bank figures.
type Reconciler struct {
	bank   BankFigures
	strict bool
	now    func() time.Time
}

// NewReconciler creates a Reconciler. A nil bank leaves every week
// UNVERIFIED.
func NewReconciler(bank BankFigures, strict bool) *Reconciler {
	if bank == nil {
		bank = BankFigures{}
	}
	return &Reconciler{bank: bank, strict: strict, now: time.Now}
}

// WithClock sets the time source used for CheckedAt.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// ReconcileWeeks produces one result per ledger, in ledger order.
//
// RETURNS:
//   - All results, including mismatches.
//   - In strict mode, the joined *ReconciliationMismatch errors; otherwise nil.
func (r *Reconciler) ReconcileWeeks(ledgers []types.WeeklyLedger) ([]types.ReconciliationResult, error) {
	results := make([]types.ReconciliationResult, 0, len(ledgers))
	var mismatches []error

	for _, l := range ledgers {
		result := Reconcile(l.Key.String(), l.Closing, r.bank.Lookup(l.Key), r.now())
		results = append(results, result)
		if result.Status == types.StatusMismatched {
			mismatches = append(mismatches, &ReconciliationMismatch{Result: result})
		}
	}

	if r.strict && len(mismatches) > 0 {
		return results, errors.Join(mismatches...)
	}
	return results, nil
}

// ReconcileMonth reconciles the post-interest balance for a month.
func (r *Reconciler) ReconcileMonth(period string, computed types.Pence, bank *types.Pence) (types.ReconciliationResult, error) {
	result := Reconcile(period, computed, bank, r.now())
	if r.strict && result.Status == types.StatusMismatched {
		return result, &ReconciliationMismatch{Result: result}
	}
	return result, nil
}
