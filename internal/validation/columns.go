// =============================================================================
// LDCC1 Processor - Column Matching
// =============================================================================
//
// Spreadsheets from the benefits office, the bank and hand-kept workbooks
// never agree on column names. This module maps the headers of a loaded table
// onto the fields the procedure needs.
//
// MATCHING RULES:
//   Headers and aliases are normalised first: Unicode case folding, "_", "-"
//   and "." read as spaces, runs of whitespace collapsed.
//   Pass 1: a header equal to an alias of a field claims it.
//   Pass 2 (fuzzy): for fields still unmatched, the first unclaimed header
//           containing an alias claims it. Aliases are tried in order.
//   A header is claimed by at most one field.
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Field is a logical input column.
type Field string

const (
	FieldClientID   Field = "client_id"
	FieldDate       Field = "date"
	FieldBenefit    Field = "benefit"
	FieldCredit     Field = "credit"
	FieldWithdrawal Field = "withdrawal"
	FieldReference  Field = "reference"
	FieldClientName Field = "client_name"
	FieldBalance    Field = "balance"
)

// RecordFields are matched, in this order, against benefits spreadsheets.
var RecordFields = []Field{
	FieldClientID, FieldDate, FieldBenefit, FieldCredit, FieldWithdrawal, FieldReference, FieldClientName,
}

// RequiredRecordFields must be present in a benefits spreadsheet.
var RequiredRecordFields = []Field{FieldClientID, FieldBenefit, FieldDate}

// DefaultAliases are the built-in header names per field.
func DefaultAliases() map[Field][]string {
	return map[Field][]string{
		FieldClientID: {
			"client id", "clientid", "client", "client code", "client initials", "initials", "client ref",
			"surname", "name",
		},
		FieldDate: {
			"date", "due/run date", "run date", "due date", "payment date", "transaction date", "week ending",
		},
		FieldBenefit: {
			"benefit amount", "benefit", "benefits", "benefit paid", "amount",
		},
		FieldCredit: {
			"other credit amount", "other credit", "other credits", "credit", "credits", "deposit", "deposits",
		},
		FieldWithdrawal: {
			"withdrawal amount", "withdrawal", "withdrawals", "payment", "payments", "debit",
		},
		FieldReference: {
			"reference", "ref", "payment reference",
		},
		FieldClientName: {
			"client name", "full name", "forename",
		},
		FieldBalance: {
			"closing balance", "bank balance", "statement balance", "balance",
		},
	}
}

// MergeAliases returns the defaults with extra aliases placed ahead of the
// built-in ones, so site-specific names win.
func MergeAliases(extra map[string][]string) map[Field][]string {
	aliases := DefaultAliases()
	for field, names := range extra {
		f := Field(field)
		aliases[f] = append(append([]string{}, names...), aliases[f]...)
	}
	return aliases
}

// =============================================================================
// ERRORS
// =============================================================================

// MissingColumnError lists required fields with no matching header.
type MissingColumnError struct {
	Missing   []Field
	Available []string
}

func (e *MissingColumnError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		missing[i] = string(f)
	}
	return fmt.Sprintf("missing required column(s): %s (found: %s)",
		strings.Join(missing, ", "), strings.Join(e.Available, ", "))
}

// =============================================================================
// MATCHING
// =============================================================================

// ColumnMap maps fields to column indexes of a table.
type ColumnMap map[Field]int

// Index returns the column index of a field, or -1 when unmatched.
func (m ColumnMap) Index(f Field) int {
	if i, ok := m[f]; ok {
		return i
	}
	return -1
}

var folder = cases.Fold()

// normalise folds case and punctuation so headers compare loosely.
func normalise(s string) string {
	s = folder.String(s)
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// MatchColumns maps headers onto fields.
//
// PARAMETERS:
//   - headers: The table headers.
//   - fields: The fields to look for, in claim order.
//   - required: Fields that must be found.
//   - aliases: Header aliases per field.
//   - fuzzy: Enables the substring pass.
//
// RETURNS:
//   - The column map.
//   - A *MissingColumnError if any required field is unmatched.
func MatchColumns(headers []string, fields, required []Field, aliases map[Field][]string, fuzzy bool) (ColumnMap, error) {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = normalise(h)
	}

	claimed := make(map[int]bool)
	result := make(ColumnMap)

	// Pass 1: exact matches.
	for _, field := range fields {
		for _, alias := range aliases[field] {
			if idx := findHeader(norm, claimed, normalise(alias), false); idx >= 0 {
				result[field] = idx
				claimed[idx] = true
				break
			}
		}
	}

	// Pass 2: substring matches.
	if fuzzy {
		for _, field := range fields {
			if _, ok := result[field]; ok {
				continue
			}
			for _, alias := range aliases[field] {
				if idx := findHeader(norm, claimed, normalise(alias), true); idx >= 0 {
					result[field] = idx
					claimed[idx] = true
					break
				}
			}
		}
	}

	var missing []Field
	for _, field := range required {
		if _, ok := result[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return result, &MissingColumnError{Missing: missing, Available: append([]string{}, headers...)}
	}

	return result, nil
}

func findHeader(norm []string, claimed map[int]bool, alias string, contains bool) int {
	if alias == "" {
		return -1
	}
	for i, h := range norm {
		if claimed[i] {
			continue
		}
		if h == alias || (contains && strings.Contains(h, alias)) {
			return i
		}
	}
	return -1
}
