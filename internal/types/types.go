// =============================================================================
// LDCC1 Processor - Shared Types
// =============================================================================
//
// This package contains the data model shared across the pipeline stages to
// avoid import cycles. Types defined here are used by:
//   - loader / csvparser / xlsxparser (Table)
//   - validation (Record)
//   - ledger (WeeklyLedger, ReconciliationResult)
//   - interest (InterestAllocation)
//   - documents, payments, report (DocumentArtifact, AuditTrailEntry)
//
// =============================================================================

package types

import (
	"fmt"
	"time"
)

// =============================================================================
// TABULAR INPUT
// =============================================================================

// Table is a loaded spreadsheet: ordered named columns and ordered rows.
type Table struct {
	// SourceFile is the path the table was read from.
	SourceFile string

	// Format is the detected input format ("csv", "xlsx" or "xls").
	Format string

	// Headers are the cleaned column names, in file order.
	Headers []string

	// Rows holds the data rows. Each row has exactly len(Headers) cells.
	Rows [][]string

	// RowNumbers holds the 1-based row number in the source file of each
	// entry in Rows, for error reporting.
	RowNumbers []int
}

// Cell returns the value at the given row and column index, or "" when the
// column index is negative.
func (t *Table) Cell(row, col int) string {
	if col < 0 || row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// =============================================================================
// RECORDS
// =============================================================================

// Record is one validated input row. Amounts are non-negative magnitudes;
// the column a value came from decides whether it is a credit or a debit.
type Record struct {
	ClientID   string
	ClientName string
	Reference  string
	Date       time.Time
	Benefit    Pence
	Credit     Pence
	Withdrawal Pence

	// Row is the 1-based row number in the source file.
	Row int
}

// =============================================================================
// WEEKLY LEDGER
// =============================================================================

// WeekKey identifies an ISO week.
type WeekKey struct {
	Year int
	Week int
}

// WeekOf returns the ISO week containing t.
func WeekOf(t time.Time) WeekKey {
	y, w := t.ISOWeek()
	return WeekKey{Year: y, Week: w}
}

// Label returns the procedure folder label, e.g. "Week 07".
func (k WeekKey) Label() string {
	return fmt.Sprintf("Week %02d", k.Week)
}

func (k WeekKey) String() string {
	return fmt.Sprintf("%d-W%02d", k.Year, k.Week)
}

// Before reports whether k is an earlier week than o.
func (k WeekKey) Before(o WeekKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Week < o.Week
}

// WeekStart returns the Monday (00:00 UTC) of the ISO week.
func (k WeekKey) WeekStart() time.Time {
	// 4 January is always in ISO week 1.
	jan4 := time.Date(k.Year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	week1 := jan4.AddDate(0, 0, -offset)
	return week1.AddDate(0, 0, (k.Week-1)*7)
}

// WeeklyLedger is the per-week aggregate produced by the balance calculator.
//
// Invariant: Closing == Opening + Benefits + Credits - Withdrawals.
type WeeklyLedger struct {
	Key   WeekKey
	Start time.Time
	End   time.Time

	Opening     Pence
	Benefits    Pence
	Credits     Pence
	Withdrawals Pence
	Closing     Pence

	// Records are the week's records in processing order.
	Records []Record

	// ClientOpening and ClientClosing hold each client's balance at the
	// start and end of the week. Every client seen so far in the run appears
	// in both maps.
	ClientOpening map[string]Pence
	ClientClosing map[string]Pence
}

// AfterBenefits is the balance after benefits but before other credits and
// withdrawals.
func (l WeeklyLedger) AfterBenefits() Pence {
	return l.Opening + l.Benefits
}

// Balanced reports whether the ledger satisfies its closing identity.
func (l WeeklyLedger) Balanced() bool {
	return l.Closing == l.Opening+l.Benefits+l.Credits-l.Withdrawals
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// ReconciliationStatus is the outcome of comparing a computed balance with
// the bank-stated figure.
type ReconciliationStatus string

const (
	StatusMatched    ReconciliationStatus = "MATCHED"
	StatusMismatched ReconciliationStatus = "MISMATCHED"
	// StatusUnverified means no bank figure was available for the period.
	StatusUnverified ReconciliationStatus = "UNVERIFIED"
)

// ReconciliationResult is produced once per week or month and never changed.
type ReconciliationResult struct {
	Period     string               `json:"period"`
	Computed   Pence                `json:"computed_pence"`
	BankStated *Pence               `json:"bank_stated_pence,omitempty"`
	Difference Pence                `json:"difference_pence"`
	Status     ReconciliationStatus `json:"status"`
	CheckedAt  time.Time            `json:"checked_at"`
}

// =============================================================================
// INTEREST
// =============================================================================

// InterestShare is one client's part of a monthly interest allocation.
type InterestShare struct {
	ClientID string `json:"client_id"`

	// AverageBalance is the client's mean weekly closing balance over the
	// period, rounded down.
	AverageBalance Pence `json:"average_balance_pence"`

	// Weight is the allocation weight actually used. Non-positive weights
	// count as zero.
	Weight Pence `json:"weight"`

	Share Pence `json:"share_pence"`

	// RemainderPenny is true when the client received one of the pennies
	// left over after flooring.
	RemainderPenny bool `json:"remainder_penny"`
}

// InterestAllocation is a complete monthly allocation.
//
// Invariant: the sum of Shares equals Total.
type InterestAllocation struct {
	Period string          `json:"period"`
	Total  Pence           `json:"total_pence"`
	Shares []InterestShare `json:"shares"`
}

// ShareOf returns the allocated interest for a client.
func (a InterestAllocation) ShareOf(clientID string) Pence {
	for _, s := range a.Shares {
		if s.ClientID == clientID {
			return s.Share
		}
	}
	return 0
}

// =============================================================================
// ARTIFACTS AND AUDIT
// =============================================================================

// DocumentType tags a procedure document.
type DocumentType string

// ArtifactStatus records whether a document was written.
type ArtifactStatus string

const (
	ArtifactWritten ArtifactStatus = "written"
	ArtifactSkipped ArtifactStatus = "skipped"
)

// DocumentArtifact is a generated document. Never mutated after creation.
type DocumentArtifact struct {
	Type        DocumentType   `json:"type"`
	Path        string         `json:"path"`
	Source      string         `json:"source"`
	Status      ArtifactStatus `json:"status"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// AuditStatus is the status of an audit trail entry.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailure AuditStatus = "failure"
	AuditSkipped AuditStatus = "skipped"
	// AuditFlagged marks a completed step that needs human review.
	AuditFlagged AuditStatus = "flagged"
)

// AuditTrailEntry records one pipeline step.
type AuditTrailEntry struct {
	ID        string      `json:"id"`
	Step      string      `json:"step"`
	Status    AuditStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Message   string      `json:"message,omitempty"`
	Artifacts []string    `json:"artifacts,omitempty"`
}
