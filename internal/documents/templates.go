package documents

import (
	"fmt"
	"sort"
	"time"

	"github.com/ginjaninja78/ldcc1-processor/internal/interest"
	"github.com/ginjaninja78/ldcc1-processor/internal/pdfwriter"
	"github.com/ginjaninja78/ldcc1-processor/internal/types"
)

const (
	dateLayout = "02/01/2006"

	// historyWeeks is the length of the 6 month balance update.
	historyWeeks = 26
)

// stepData is everything a template may draw on. Fields a step does not
// require may be nil.
type stepData struct {
	ledger       *types.WeeklyLedger
	recon        *types.ReconciliationResult
	interest     *interest.Statement
	monthlyRecon *types.ReconciliationResult
	history      []types.WeeklyLedger
	names        map[string]string
	processed    time.Time
}

type builder func(d stepData) pdfwriter.Document

var (
	clientColumns = []pdfwriter.Column{
		{Header: "Client", Width: 1},
		{Header: "Name", Width: 2},
		{Header: "Balance", Width: 1, Align: pdfwriter.AlignRight},
	}
	keyValueColumns = []pdfwriter.Column{
		{Header: "Item", Width: 2},
		{Header: "Amount", Width: 1, Align: pdfwriter.AlignRight},
	}
)

func weekSubtitle(d stepData) []string {
	l := d.ledger
	return []string{
		fmt.Sprintf("%s (%s): %s to %s", l.Key.Label(), l.Key, l.Start.Format(dateLayout), l.End.Format(dateLayout)),
		"Processing date: " + d.processed.Format(dateLayout),
	}
}

func signOff() []string {
	return []string{
		"Prepared by: ______________________    Date: ____________",
		"Checked by:  ______________________    Date: ____________",
	}
}

func sortedClients(m map[string]types.Pence) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// clientBalanceTable lists balances per client with a totals row.
func clientBalanceTable(balances map[string]types.Pence, names map[string]string) *pdfwriter.Table {
	t := &pdfwriter.Table{Columns: clientColumns}
	var total types.Pence
	for _, id := range sortedClients(balances) {
		t.Rows = append(t.Rows, []string{id, names[id], balances[id].String()})
		total += balances[id]
	}
	t.Totals = []string{"Total", "", total.String()}
	return t
}

// =============================================================================
// WEEKLY TEMPLATES
// =============================================================================

func buildBalanceBefore(d stepData) pdfwriter.Document {
	return pdfwriter.Document{
		Title:    "Balance before benefits, credits & withdrawals",
		Subtitle: weekSubtitle(d),
		Sections: []pdfwriter.Section{
			{
				Heading:    "Client balances at start of week",
				Paragraphs: []string{"Account balance brought forward: " + d.ledger.Opening.String()},
				Table:      clientBalanceTable(d.ledger.ClientOpening, d.names),
			},
		},
		Footer: signOff(),
	}
}

func buildBenefitsList(d stepData) pdfwriter.Document {
	t := &pdfwriter.Table{Columns: []pdfwriter.Column{
		{Header: "Date", Width: 1},
		{Header: "Client", Width: 1},
		{Header: "Name", Width: 2},
		{Header: "Reference", Width: 2},
		{Header: "Benefit", Width: 1, Align: pdfwriter.AlignRight},
	}}
	for _, r := range d.ledger.Records {
		if r.Benefit == 0 {
			continue
		}
		t.Rows = append(t.Rows, []string{r.Date.Format(dateLayout), r.ClientID, d.names[r.ClientID], r.Reference, r.Benefit.String()})
	}
	t.Totals = []string{"Total", "", "", "", d.ledger.Benefits.String()}

	paragraphs := []string{fmt.Sprintf("%d benefit payment(s) received.", len(t.Rows))}
	if len(t.Rows) == 0 {
		paragraphs = []string{"No benefits were received this week."}
	}

	return pdfwriter.Document{
		Title:    d.ledger.Key.Label() + " benefits",
		Subtitle: weekSubtitle(d),
		Sections: []pdfwriter.Section{{Heading: "Benefits received", Paragraphs: paragraphs, Table: t}},
		Footer:   signOff(),
	}
}

func buildDepositWithdrawal(d stepData) pdfwriter.Document {
	t := &pdfwriter.Table{Columns: []pdfwriter.Column{
		{Header: "Date", Width: 1},
		{Header: "Client", Width: 1},
		{Header: "Reference", Width: 2},
		{Header: "Benefit", Width: 1, Align: pdfwriter.AlignRight},
		{Header: "Other credit", Width: 1, Align: pdfwriter.AlignRight},
		{Header: "Withdrawal", Width: 1, Align: pdfwriter.AlignRight},
	}}
	for _, r := range d.ledger.Records {
		t.Rows = append(t.Rows, []string{
			r.Date.Format(dateLayout), r.ClientID, r.Reference,
			r.Benefit.String(), r.Credit.String(), r.Withdrawal.String(),
		})
	}
	l := d.ledger
	t.Totals = []string{"Total", "", "", l.Benefits.String(), l.Credits.String(), l.Withdrawals.String()}

	deposits := l.Benefits + l.Credits
	return pdfwriter.Document{
		Title:    "Deposit and withdrawal - benefits",
		Subtitle: weekSubtitle(d),
		Sections: []pdfwriter.Section{
			{Heading: "Transactions", Table: t},
			{
				Heading: "Summary",
				Table: &pdfwriter.Table{
					Columns: keyValueColumns,
					Rows: [][]string{
						{"Total deposits (benefits and other credits)", deposits.String()},
						{"Total withdrawals", l.Withdrawals.String()},
						{"Net movement", (deposits - l.Withdrawals).String()},
					},
				},
			},
		},
		Footer: signOff(),
	}
}

func buildBalanceAfter(d stepData) pdfwriter.Document {
	after := make(map[string]types.Pence, len(d.ledger.ClientOpening))
	for id, bal := range d.ledger.ClientOpening {
		after[id] = bal
	}
	for _, r := range d.ledger.Records {
		after[r.ClientID] += r.Benefit
	}

	return pdfwriter.Document{
		Title:    "Balance after benefits but before other credits & withdrawals",
		Subtitle: weekSubtitle(d),
		Sections: []pdfwriter.Section{
			{
				Heading:    "Client balances after benefits",
				Paragraphs: []string{"Account balance after benefits: " + d.ledger.AfterBenefits().String()},
				Table:      clientBalanceTable(after, d.names),
			},
		},
		Footer: signOff(),
	}
}

func reconciliationRows(r *types.ReconciliationResult) [][]string {
	bank := "Not supplied"
	if r.BankStated != nil {
		bank = r.BankStated.String()
	}
	return [][]string{
		{"Balance per records", r.Computed.String()},
		{"Balance per bank", bank},
		{"Difference (bank less records)", r.Difference.String()},
		{"Status", string(r.Status)},
	}
}

func buildReconciliation(d stepData) pdfwriter.Document {
	l := d.ledger
	movements := &pdfwriter.Table{
		Columns: keyValueColumns,
		Rows: [][]string{
			{"Opening balance", l.Opening.String()},
			{"Add: benefits", l.Benefits.String()},
			{"Add: other credits", l.Credits.String()},
			{"Less: withdrawals", l.Withdrawals.String()},
		},
		Totals: []string{"Closing balance", l.Closing.String()},
	}

	return pdfwriter.Document{
		Title:    "LD Clients Cash Bank Reconciliation",
		Subtitle: weekSubtitle(d),
		Sections: []pdfwriter.Section{
			{Heading: "Movements", Table: movements},
			{Heading: "Bank reconciliation", Table: &pdfwriter.Table{Columns: keyValueColumns, Rows: reconciliationRows(d.recon)}},
		},
		Footer: signOff(),
	}
}

// =============================================================================
// MONTHLY TEMPLATES
// =============================================================================

func monthSubtitle(d stepData) []string {
	return []string{
		fmt.Sprintf("Month %s, interest booked in %s (%s)", d.interest.Period, d.interest.Week.Label(), d.interest.Week),
		"Processing date: " + d.processed.Format(dateLayout),
	}
}

func buildBalanceBeforeInterest(d stepData) pdfwriter.Document {
	return pdfwriter.Document{
		Title:    "Balance before interest",
		Subtitle: monthSubtitle(d),
		Sections: []pdfwriter.Section{
			{
				Heading:    "Client balances before interest",
				Paragraphs: []string{"Account balance before interest: " + d.interest.TotalBefore.String()},
				Table:      clientBalanceTable(d.interest.Before, d.names),
			},
		},
		Footer: signOff(),
	}
}

func buildBalanceAfterInterest(d stepData) pdfwriter.Document {
	st := d.interest
	t := &pdfwriter.Table{Columns: []pdfwriter.Column{
		{Header: "Client", Width: 1},
		{Header: "Name", Width: 2},
		{Header: "Average balance", Width: 1, Align: pdfwriter.AlignRight},
		{Header: "Before", Width: 1, Align: pdfwriter.AlignRight},
		{Header: "Interest", Width: 1, Align: pdfwriter.AlignRight},
		{Header: "After", Width: 1, Align: pdfwriter.AlignRight},
	}}
	for _, id := range st.Clients() {
		var avg, share types.Pence
		for _, s := range st.Allocation.Shares {
			if s.ClientID == id {
				avg, share = s.AverageBalance, s.Share
			}
		}
		t.Rows = append(t.Rows, []string{id, d.names[id], avg.String(), st.Before[id].String(), share.String(), st.After[id].String()})
	}
	t.Totals = []string{"Total", "", "", st.TotalBefore.String(), st.Allocation.Total.String(), st.TotalAfter.String()}

	return pdfwriter.Document{
		Title:    "Balance after interest",
		Subtitle: monthSubtitle(d),
		Sections: []pdfwriter.Section{
			{
				Heading: "Interest allocation",
				Paragraphs: []string{
					"Interest is shared in proportion to each client's average weekly balance for the month. " +
						"Pennies left after rounding go to the largest remainders.",
				},
				Table: t,
			},
		},
		Footer: signOff(),
	}
}

func buildMonthlyReconciliation(d stepData) pdfwriter.Document {
	st := d.interest
	movements := &pdfwriter.Table{
		Columns: keyValueColumns,
		Rows: [][]string{
			{"Balance before interest", st.TotalBefore.String()},
			{"Add: interest received", st.Allocation.Total.String()},
		},
		Totals: []string{"Balance after interest", st.TotalAfter.String()},
	}

	return pdfwriter.Document{
		Title:    "LD Clients Cash Bank Reconciliation - Month End",
		Subtitle: monthSubtitle(d),
		Sections: []pdfwriter.Section{
			{Heading: "Interest", Table: movements},
			{Heading: "Bank reconciliation", Table: &pdfwriter.Table{Columns: keyValueColumns, Rows: reconciliationRows(d.monthlyRecon)}},
		},
		Footer: signOff(),
	}
}

func buildSixMonthUpdate(d stepData) pdfwriter.Document {
	history := d.history
	if len(history) > historyWeeks {
		history = history[len(history)-historyWeeks:]
	}

	doc := pdfwriter.Document{
		Title: "6 Month Balance Update",
		Subtitle: []string{
			fmt.Sprintf("Weeks %s to %s", history[0].Key, history[len(history)-1].Key),
			"Processing date: " + d.processed.Format(dateLayout),
		},
	}

	// Without interest the update closes on the final week's balances.
	final, finalLabel := history[len(history)-1].ClientClosing, "Closing balance"
	clients := sortedClients(final)
	if d.interest != nil {
		final, finalLabel = d.interest.After, "After interest"
		clients = d.interest.Clients()
	}

	for i, id := range clients {
		t := &pdfwriter.Table{Columns: []pdfwriter.Column{
			{Header: "Week", Width: 1},
			{Header: "Week commencing", Width: 1},
			{Header: "Closing balance", Width: 1, Align: pdfwriter.AlignRight},
		}}
		for _, l := range history {
			t.Rows = append(t.Rows, []string{l.Key.String(), l.Start.Format(dateLayout), l.ClientClosing[id].String()})
		}
		t.Totals = []string{finalLabel, "", final[id].String()}

		heading := id
		if name := d.names[id]; name != "" {
			heading = id + " - " + name
		}
		doc.Sections = append(doc.Sections, pdfwriter.Section{Heading: heading, Table: t, NewPage: i > 0})
	}

	return doc
}
