// =============================================================================
// LDCC1 Processor - Balance Calculator
// =============================================================================
//
// This module groups validated records into ISO weeks and computes the
// opening and closing balance of every week.
//
// CALCULATION RULES:
//   1. Records are ordered by date, then by source row.
//   2. Week 1 opens at the starting balance; every later week opens at the
//      previous week's closing balance. Weeks without records between the
//      first and last week still get a (zero-activity) ledger.
//   3. Within a record, benefit and other credit are added and the
//      withdrawal is subtracted; balances are checked after each record,
//      for the account as a whole and for the record's client.
//   4. All arithmetic is in integer pence with overflow detection.
//
// =============================================================================

package ledger

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
)

// CalculationError reports a balance rule violation.
type CalculationError struct {
	Week types.WeekKey

	// Client is empty when the account-level balance failed.
	Client string

	Row     int
	Balance types.Pence
	Reason  string
}

func (e *CalculationError) Error() string {
	who := "account"
	if e.Client != "" {
		who = "client " + e.Client
	}
	return fmt.Sprintf("week %s, %s, row %d: %s (balance %s)", e.Week, who, e.Row, e.Reason, e.Balance)
}

// Options configures a Calculator.
type Options struct {
	// StartingBalance is the account balance before the first week.
	StartingBalance types.Pence

	// OpeningBalances are the clients' balances before the first week.
	OpeningBalances map[string]types.Pence

	// AllowNegative disables the negative balance check. The account
	// balance is always checked; a client balance only when the client has
	// an opening balance, since without one its history before the first
	// week is unknown.
	AllowNegative bool
}

// Calculator computes weekly ledgers.
type Calculator struct {
	options Options
	logger  zerolog.Logger
}

// NewCalculator creates a Calculator.
func NewCalculator(options Options, logger zerolog.Logger) *Calculator {
	return &Calculator{options: options, logger: logger}
}

// Calculate computes one ledger per ISO week from the first to the last
// record's week.
//
// PARAMETERS:
//   - records: Validated records in any order. The slice is not modified.
//
// RETURNS:
//   - Ledgers in ascending week order.
//   - A *CalculationError on a negative balance (unless allowed) or overflow.
func (c *Calculator) Calculate(records []types.Record) ([]types.WeeklyLedger, error) {
	if len(records) == 0 {
		return nil, nil
	}

	sorted := make([]types.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Row < sorted[j].Row
	})

	byWeek := make(map[types.WeekKey][]types.Record)
	for _, r := range sorted {
		k := types.WeekOf(r.Date)
		byWeek[k] = append(byWeek[k], r)
	}

	first := types.WeekOf(sorted[0].Date)
	last := types.WeekOf(sorted[len(sorted)-1].Date)

	c.warnOnOpeningMismatch()

	clients := make(map[string]types.Pence, len(c.options.OpeningBalances))
	for id, bal := range c.options.OpeningBalances {
		clients[id] = bal
	}

	var (
		ledgers []types.WeeklyLedger
		balance = c.options.StartingBalance
	)

	for start := first.WeekStart(); ; start = start.AddDate(0, 0, 7) {
		key := types.WeekOf(start)
		ledger := types.WeeklyLedger{
			Key:           key,
			Start:         start,
			End:           start.AddDate(0, 0, 6),
			Opening:       balance,
			Records:       byWeek[key],
			ClientOpening: copyBalances(clients),
		}

		for _, r := range ledger.Records {
			var err error
			if ledger.Benefits, err = add(ledger.Benefits, r.Benefit, key, r); err != nil {
				return nil, err
			}
			if ledger.Credits, err = add(ledger.Credits, r.Credit, key, r); err != nil {
				return nil, err
			}
			if ledger.Withdrawals, err = add(ledger.Withdrawals, r.Withdrawal, key, r); err != nil {
				return nil, err
			}

			if balance, err = apply(balance, r, key, ""); err != nil {
				return nil, err
			}
			if clients[r.ClientID], err = apply(clients[r.ClientID], r, key, r.ClientID); err != nil {
				return nil, err
			}

			if !c.options.AllowNegative {
				if balance < 0 {
					return nil, &CalculationError{Week: key, Row: r.Row, Balance: balance, Reason: "balance would go negative"}
				}
				if _, tracked := c.options.OpeningBalances[r.ClientID]; tracked && clients[r.ClientID] < 0 {
					return nil, &CalculationError{Week: key, Client: r.ClientID, Row: r.Row, Balance: clients[r.ClientID], Reason: "client balance would go negative"}
				}
			}
		}

		ledger.Closing = balance
		ledger.ClientClosing = copyBalances(clients)

		if !ledger.Balanced() {
			// Unreachable unless the arithmetic above is wrong.
			return nil, &CalculationError{Week: key, Balance: ledger.Closing, Reason: "ledger does not balance"}
		}

		c.logger.Debug().
			Str("week", key.String()).
			Int("records", len(ledger.Records)).
			Str("opening", ledger.Opening.String()).
			Str("closing", ledger.Closing.String()).
			Msg("Week calculated")

		ledgers = append(ledgers, ledger)
		if key == last {
			break
		}
	}

	return ledgers, nil
}

// warnOnOpeningMismatch logs when client opening balances do not add up to
// the account starting balance. Processing continues; the account figure is
// the one the bank reconciles against.
func (c *Calculator) warnOnOpeningMismatch() {
	if len(c.options.OpeningBalances) == 0 {
		return
	}
	var sum types.Pence
	for _, bal := range c.options.OpeningBalances {
		sum += bal
	}
	if sum != c.options.StartingBalance {
		c.logger.Warn().
			Str("starting_balance", c.options.StartingBalance.String()).
			Str("client_opening_total", sum.String()).
			Msg("Client opening balances do not sum to the starting balance")
	}
}

func apply(balance types.Pence, r types.Record, key types.WeekKey, client string) (types.Pence, error) {
	next, ok := balance.Add(r.Benefit)
	if ok {
		next, ok = next.Add(r.Credit)
	}
	if ok {
		next, ok = next.Sub(r.Withdrawal)
	}
	if !ok {
		return balance, &CalculationError{Week: key, Client: client, Row: r.Row, Balance: balance, Reason: "amount overflow"}
	}
	return next, nil
}

func add(total, amount types.Pence, key types.WeekKey, r types.Record) (types.Pence, error) {
	sum, ok := total.Add(amount)
	if !ok {
		return total, &CalculationError{Week: key, Row: r.Row, Balance: total, Reason: "weekly total overflow"}
	}
	return sum, nil
}

func copyBalances(m map[string]types.Pence) map[string]types.Pence {
	out := make(map[string]types.Pence, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
