// =============================================================================
// LDCC1 Processor - Validation Module
// =============================================================================
//
// This module turns a loaded table into validated Records.
//
// VALIDATION RULES:
//   1. Required columns:  client id, benefit amount and date must be present.
//   2. Client id:         must not be blank.
//   3. Amounts:           numeric, non-negative, at most two decimal places.
//                         Blank cells count as zero.
//   4. Dates:             UK day-first formats, ISO dates or Excel serials.
//
// Validation is all-or-nothing: every row error is collected and reported,
// and no records are returned if there is any.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
)

// =============================================================================
// ERRORS
// =============================================================================

// InvalidValueError reports a malformed cell.
type InvalidValueError struct {
	// Row is the 1-based row number in the source file.
	Row int

	// Column is the header of the offending column.
	Column string

	Value  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("row %d, column %q: %s (value: %q)", e.Row, e.Column, e.Reason, e.Value)
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options configures a Validator.
type Options struct {
	// Aliases are header aliases per field. Defaults to DefaultAliases.
	Aliases map[Field][]string

	// Fuzzy enables substring column matching.
	Fuzzy bool

	// MaxErrors caps the number of row errors reported.
	// Default: 50
	MaxErrors int
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Aliases:   DefaultAliases(),
		Fuzzy:     true,
		MaxErrors: 50,
	}
}

// Validator validates benefits tables.
type Validator struct {
	options Options
}

// New creates a Validator.
func New(options Options) *Validator {
	if options.Aliases == nil {
		options.Aliases = DefaultAliases()
	}
	if options.MaxErrors <= 0 {
		options.MaxErrors = 50
	}
	return &Validator{options: options}
}

// Validate checks the table and converts it to records.
//
// RETURNS:
//   - The records in table order.
//   - The column map that was used.
//   - A *MissingColumnError, or the joined *InvalidValueError list.
func (v *Validator) Validate(table *types.Table) ([]types.Record, ColumnMap, error) {
	columns, err := MatchColumns(table.Headers, RecordFields, RequiredRecordFields, v.options.Aliases, v.options.Fuzzy)
	if err != nil {
		return nil, columns, err
	}

	var (
		records = make([]types.Record, 0, len(table.Rows))
		errs    []error
	)

	for i := range table.Rows {
		rowNum := rowNumber(table, i)
		rec := types.Record{Row: rowNum}
		var rowErrs []error

		fail := func(field Field, reason string) {
			idx := columns.Index(field)
			rowErrs = append(rowErrs, &InvalidValueError{
				Row:    rowNum,
				Column: table.Headers[idx],
				Value:  table.Cell(i, idx),
				Reason: reason,
			})
		}

		rec.ClientID = strings.TrimSpace(table.Cell(i, columns.Index(FieldClientID)))
		if rec.ClientID == "" {
			fail(FieldClientID, "client id is blank")
		}
		rec.ClientName = strings.TrimSpace(table.Cell(i, columns.Index(FieldClientName)))
		rec.Reference = strings.TrimSpace(table.Cell(i, columns.Index(FieldReference)))

		date, err := ParseDate(table.Cell(i, columns.Index(FieldDate)))
		if err != nil {
			fail(FieldDate, err.Error())
		}
		rec.Date = date

		amounts := []struct {
			field Field
			dst   *types.Pence
		}{
			{FieldBenefit, &rec.Benefit},
			{FieldCredit, &rec.Credit},
			{FieldWithdrawal, &rec.Withdrawal},
		}
		for _, a := range amounts {
			idx := columns.Index(a.field)
			if idx < 0 {
				continue
			}
			amount, err := types.ParseAmount(table.Cell(i, idx))
			switch {
			case err != nil:
				fail(a.field, err.Error())
			case amount < 0:
				fail(a.field, "amount must not be negative")
			default:
				*a.dst = amount
			}
		}

		if len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			if len(errs) >= v.options.MaxErrors {
				errs = append(errs[:v.options.MaxErrors], fmt.Errorf("too many invalid values; stopped after %d", v.options.MaxErrors))
				break
			}
			continue
		}
		records = append(records, rec)
	}

	if len(errs) > 0 {
		return nil, columns, errors.Join(errs...)
	}

	return records, columns, nil
}

// =============================================================================
// BANK STATEMENTS
// =============================================================================

// BankEntry is one bank-reported balance.
type BankEntry struct {
	Date    time.Time
	Balance types.Pence
	Row     int
}

// ValidateBankStatement reads date and balance columns from a bank statement.
// Balances may be negative (overdrawn).
func (v *Validator) ValidateBankStatement(table *types.Table) ([]BankEntry, error) {
	fields := []Field{FieldDate, FieldBalance}
	columns, err := MatchColumns(table.Headers, fields, fields, v.options.Aliases, v.options.Fuzzy)
	if err != nil {
		return nil, err
	}

	var (
		entries []BankEntry
		errs    []error
	)
	dateIdx, balIdx := columns.Index(FieldDate), columns.Index(FieldBalance)

	for i := range table.Rows {
		rowNum := rowNumber(table, i)

		date, err := ParseDate(table.Cell(i, dateIdx))
		if err != nil {
			errs = append(errs, &InvalidValueError{Row: rowNum, Column: table.Headers[dateIdx], Value: table.Cell(i, dateIdx), Reason: err.Error()})
			continue
		}
		raw := table.Cell(i, balIdx)
		if strings.TrimSpace(raw) == "" {
			errs = append(errs, &InvalidValueError{Row: rowNum, Column: table.Headers[balIdx], Value: raw, Reason: "balance is blank"})
			continue
		}
		balance, err := types.ParseAmount(raw)
		if err != nil {
			errs = append(errs, &InvalidValueError{Row: rowNum, Column: table.Headers[balIdx], Value: raw, Reason: err.Error()})
			continue
		}
		entries = append(entries, BankEntry{Date: date, Balance: balance, Row: rowNum})
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return entries, nil
}

// =============================================================================
// DATE PARSING
// =============================================================================

// dateLayouts are tried in order. Day-first layouts come before ISO ones;
// "01-02-06" is excelize's rendering of Excel's default short date format.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/06",
	"2/1/06",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02-01-2006",
	"2006/01/02",
	"02.01.2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"01-02-06",
}

// ParseDate parses a spreadsheet date and returns midnight UTC of that day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("date is blank")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateDay(t), nil
		}
	}

	// Excel serial day numbers, as produced by unformatted date cells.
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial < 2958466 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return truncateDay(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognised date")
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func rowNumber(table *types.Table, i int) int {
	if i < len(table.RowNumbers) {
		return table.RowNumbers[i]
	}
	return i + 2
}
