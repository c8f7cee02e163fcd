// =============================================================================
// LDCC1 Processor - Interest Allocator
// =============================================================================
//
// This module apportions a month's bank interest across clients in
// proportion to their average balances, using the largest remainder method.
//
// ALGORITHM:
//   1. Each client's provisional share is floor(total * weight / sum).
//   2. The pennies left over (fewer than the number of clients) go one each
//      to the clients with the largest remainders; equal remainders are
//      broken by ascending client id.
//   3. If every weight is zero the interest is split equally.
//
// Products are computed with math/big so no weight/total combination can
// overflow. The shares always add up to the total exactly.
//
// =============================================================================

package interest

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
)

var (
	ErrNegativeTotal = errors.New("interest total must not be negative")
	ErrNoClients     = errors.New("no clients to allocate interest to")

	// ErrMonthNotFinal is returned when the interest month ends before the
	// last week of the input.
	ErrMonthNotFinal = errors.New("interest month is not the final month of the input")
)

// ClientBalance is one client's input to the allocation.
type ClientBalance struct {
	ClientID string

	// Average is the mean weekly closing balance, reported alongside the
	// share.
	Average types.Pence

	// Weight decides the client's proportion of the interest.
	Weight types.Pence
}

// Allocate splits total across the clients.
//
// PARAMETERS:
//   - period: Label of the allocation, e.g. "2025-09".
//   - total: The interest in pence. Must not be negative.
//   - balances: One entry per client. Client ids must be unique.
//
// RETURNS:
//   - The allocation, shares ordered by client id.
//   - ErrNegativeTotal, ErrNoClients or a duplicate client error.
func Allocate(period string, total types.Pence, balances []ClientBalance) (types.InterestAllocation, error) {
	if total < 0 {
		return types.InterestAllocation{}, ErrNegativeTotal
	}
	if len(balances) == 0 {
		return types.InterestAllocation{}, ErrNoClients
	}

	clients := make([]ClientBalance, len(balances))
	copy(clients, balances)
	sort.Slice(clients, func(i, j int) bool { return clients[i].ClientID < clients[j].ClientID })
	for i := 1; i < len(clients); i++ {
		if clients[i].ClientID == clients[i-1].ClientID {
			return types.InterestAllocation{}, fmt.Errorf("duplicate client %q in interest allocation", clients[i].ClientID)
		}
	}

	weights := make([]*big.Int, len(clients))
	sum := new(big.Int)
	for i, c := range clients {
		w := int64(c.Weight)
		if w < 0 {
			w = 0
		}
		weights[i] = big.NewInt(w)
		sum.Add(sum, weights[i])
	}
	if sum.Sign() == 0 {
		for i := range weights {
			weights[i] = big.NewInt(1)
		}
		sum.SetInt64(int64(len(weights)))
	}

	var (
		t          = big.NewInt(int64(total))
		shares     = make([]types.InterestShare, len(clients))
		remainders = make([]*big.Int, len(clients))
		allocated  types.Pence
	)
	for i, c := range clients {
		q, r := new(big.Int).QuoRem(new(big.Int).Mul(t, weights[i]), sum, new(big.Int))
		shares[i] = types.InterestShare{
			ClientID:       c.ClientID,
			AverageBalance: c.Average,
			Weight:         types.Pence(weights[i].Int64()),
			Share:          types.Pence(q.Int64()),
		}
		remainders[i] = r
		allocated += shares[i].Share
	}

	order := make([]int, len(clients))
	for i := range order {
		order[i] = i
	}
	// clients is sorted by id, so a stable sort on remainder keeps ties in id order.
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].Cmp(remainders[order[b]]) > 0
	})

	for k := 0; k < int(total-allocated); k++ {
		i := order[k]
		shares[i].Share++
		shares[i].RemainderPenny = true
	}

	return types.InterestAllocation{Period: period, Total: total, Shares: shares}, nil
}

// =============================================================================
// AVERAGE BALANCES
// =============================================================================

// MonthWeeks returns the ledgers whose week has at least one day in the
// given month, so a week that straddles a month end belongs to both months.
// When none does, the last ledger is used.
func MonthWeeks(ledgers []types.WeeklyLedger, month time.Time) []types.WeeklyLedger {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)

	var out []types.WeeklyLedger
	for _, l := range ledgers {
		monday := l.End.AddDate(0, 0, -6)
		if l.End.Before(first) || !monday.Before(next) {
			continue
		}
		out = append(out, l)
	}
	if len(out) == 0 && len(ledgers) > 0 {
		out = ledgers[len(ledgers)-1:]
	}
	return out
}

// BookingWeek returns the ledger the month's interest is booked in: the
// month's last week. It must be the final ledger, since interest booked
// earlier would be missing from every later opening balance.
func BookingWeek(ledgers []types.WeeklyLedger, month time.Time) (types.WeeklyLedger, error) {
	weeks := MonthWeeks(ledgers, month)
	if len(weeks) == 0 {
		return types.WeeklyLedger{}, ErrNoClients
	}
	booking, final := weeks[len(weeks)-1], ledgers[len(ledgers)-1]
	if booking.Key != final.Key {
		return types.WeeklyLedger{}, fmt.Errorf("%w: %s ends in %s but the input runs to %s",
			ErrMonthNotFinal, MonthLabel(month), booking.Key, final.Key)
	}
	return booking, nil
}

// AverageBalances computes each client's mean weekly closing balance over
// the month. The weight is the sum of the weekly closing balances, which is
// proportional to the mean without its rounding.
func AverageBalances(ledgers []types.WeeklyLedger, month time.Time) ([]ClientBalance, error) {
	weeks := MonthWeeks(ledgers, month)
	if len(weeks) == 0 {
		return nil, ErrNoClients
	}

	sums := make(map[string]types.Pence)
	for _, l := range weeks {
		for id, bal := range l.ClientClosing {
			next, ok := sums[id].Add(bal)
			if !ok {
				return nil, fmt.Errorf("balance total overflows for client %q", id)
			}
			sums[id] = next
		}
	}

	out := make([]ClientBalance, 0, len(sums))
	for id, sum := range sums {
		out = append(out, ClientBalance{
			ClientID: id,
			Average:  sum / types.Pence(len(weeks)),
			Weight:   sum,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

// MonthLabel formats a month as used in allocation periods, e.g. "2025-09".
func MonthLabel(month time.Time) string {
	return month.Format("2006-01")
}
