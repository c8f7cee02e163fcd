package interest

import (
	"sort"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
)

// Statement is the month-end position before and after interest is booked.
type Statement struct {
	Period string

	// Week is the ledger week the interest is booked in.
	Week types.WeekKey

	Allocation types.InterestAllocation

	TotalBefore types.Pence
	TotalAfter  types.Pence

	// Before and After hold each client's balance.
	Before map[string]types.Pence
	After  map[string]types.Pence
}

// Clients returns the client ids of the statement in ascending order.
func (s Statement) Clients() []string {
	ids := make([]string, 0, len(s.After))
	for id := range s.After {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Book applies an allocation to the closing balances of the month's last
// ledger.
func Book(last types.WeeklyLedger, alloc types.InterestAllocation) Statement {
	st := Statement{
		Period:      alloc.Period,
		Week:        last.Key,
		Allocation:  alloc,
		TotalBefore: last.Closing,
		TotalAfter:  last.Closing + alloc.Total,
		Before:      make(map[string]types.Pence, len(last.ClientClosing)),
		After:       make(map[string]types.Pence, len(last.ClientClosing)),
	}
	for id, bal := range last.ClientClosing {
		st.Before[id] = bal
		st.After[id] = bal
	}
	for _, share := range alloc.Shares {
		st.After[share.ClientID] = st.Before[share.ClientID] + share.Share
		if _, ok := st.Before[share.ClientID]; !ok {
			st.Before[share.ClientID] = 0
		}
	}
	return st
}
