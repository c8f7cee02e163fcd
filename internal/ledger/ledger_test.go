package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rec(client string, date time.Time, benefit, credit, withdrawal types.Pence, row int) types.Record {
	return types.Record{ClientID: client, Date: date, Benefit: benefit, Credit: credit, Withdrawal: withdrawal, Row: row}
}

func TestCalculate_SingleClientMatched(t *testing.T) {
	records := []types.Record{rec("JS", day(2025, 9, 25), 10000, 0, 0, 2)}

	ledgers, err := NewCalculator(Options{}, zerolog.Nop()).Calculate(records)
	require.NoError(t, err)
	require.Len(t, ledgers, 1)

	l := ledgers[0]
	assert.Equal(t, types.WeekKey{Year: 2025, Week: 39}, l.Key)
	assert.Equal(t, day(2025, 9, 22), l.Start)
	assert.Equal(t, day(2025, 9, 28), l.End)
	assert.Equal(t, types.Pence(0), l.Opening)
	assert.Equal(t, types.Pence(10000), l.Closing)
	assert.Equal(t, types.Pence(10000), l.ClientClosing["JS"])

	bank := BankFigures{}
	bank.Add(day(2025, 9, 26), 10000)
	results, err := NewReconciler(bank, true).ReconcileWeeks(ledgers)
	require.NoError(t, err)
	assert.Equal(t, types.StatusMatched, results[0].Status)
	assert.Equal(t, types.Pence(0), results[0].Difference)
}

func TestCalculate_ChainsWeeksAndFillsGaps(t *testing.T) {
	records := []types.Record{
		rec("MJ", day(2025, 10, 9), 9275, 0, 2000, 4),
		rec("JS", day(2025, 9, 25), 8550, 1000, 0, 2),
		rec("JS", day(2025, 9, 25), 0, 0, 500, 3),
	}

	ledgers, err := NewCalculator(Options{StartingBalance: 5000}, zerolog.Nop()).Calculate(records)
	require.NoError(t, err)
	require.Len(t, ledgers, 3)

	assert.Equal(t, 39, ledgers[0].Key.Week)
	assert.Equal(t, 40, ledgers[1].Key.Week)
	assert.Equal(t, 41, ledgers[2].Key.Week)

	// Week 39: 5000 + 8550 + 1000 - 500
	assert.Equal(t, types.Pence(14050), ledgers[0].Closing)
	assert.Equal(t, []int{2, 3}, []int{ledgers[0].Records[0].Row, ledgers[0].Records[1].Row})

	// Gap week carries the balance forward.
	assert.Empty(t, ledgers[1].Records)
	assert.Equal(t, ledgers[0].Closing, ledgers[1].Opening)
	assert.Equal(t, ledgers[1].Opening, ledgers[1].Closing)
	assert.Equal(t, types.Pence(9050), ledgers[1].ClientClosing["JS"])

	assert.Equal(t, types.Pence(14050+9275-2000), ledgers[2].Closing)
	assert.Equal(t, types.Pence(9050), ledgers[2].ClientOpening["JS"])
	assert.Equal(t, types.Pence(7275), ledgers[2].ClientClosing["MJ"])

	for i, l := range ledgers {
		assert.True(t, l.Balanced(), "week %d", i)
		if i > 0 {
			assert.Equal(t, ledgers[i-1].Closing, l.Opening)
		}
	}
}

func TestCalculate_AcrossYearBoundary(t *testing.T) {
	records := []types.Record{
		rec("JS", day(2025, 12, 24), 100, 0, 0, 2),
		rec("JS", day(2026, 1, 7), 100, 0, 0, 3),
	}

	ledgers, err := NewCalculator(Options{}, zerolog.Nop()).Calculate(records)
	require.NoError(t, err)
	require.Len(t, ledgers, 3)
	assert.Equal(t, types.WeekKey{Year: 2025, Week: 52}, ledgers[0].Key)
	assert.Equal(t, types.WeekKey{Year: 2026, Week: 1}, ledgers[1].Key)
	assert.Equal(t, types.WeekKey{Year: 2026, Week: 2}, ledgers[2].Key)
}

func TestCalculate_NegativeBalance(t *testing.T) {
	records := []types.Record{
		rec("JS", day(2025, 9, 22), 1000, 0, 0, 2),
		rec("MJ", day(2025, 9, 23), 0, 0, 500, 3),
	}

	t.Run("client balance rejected", func(t *testing.T) {
		_, err := NewCalculator(Options{OpeningBalances: map[string]types.Pence{"JS": 0, "MJ": 0}}, zerolog.Nop()).
			Calculate(records)

		var calcErr *CalculationError
		require.ErrorAs(t, err, &calcErr)
		assert.Equal(t, "MJ", calcErr.Client)
		assert.Equal(t, 3, calcErr.Row)
		assert.Equal(t, types.Pence(-500), calcErr.Balance)
	})

	t.Run("client without opening balance covered by the account", func(t *testing.T) {
		ledgers, err := NewCalculator(Options{StartingBalance: 50000}, zerolog.Nop()).
			Calculate([]types.Record{rec("JS", day(2025, 9, 16), 0, 0, 5000, 2)})
		require.NoError(t, err)
		require.Len(t, ledgers, 1)
		assert.Equal(t, types.Pence(45000), ledgers[0].Closing)
		assert.Equal(t, types.Pence(-5000), ledgers[0].ClientClosing["JS"])
	})

	t.Run("account balance rejected", func(t *testing.T) {
		_, err := NewCalculator(Options{OpeningBalances: map[string]types.Pence{"MJ": 2000}}, zerolog.Nop()).
			Calculate([]types.Record{rec("MJ", day(2025, 9, 23), 0, 0, 500, 3)})

		var calcErr *CalculationError
		require.ErrorAs(t, err, &calcErr)
		assert.Empty(t, calcErr.Client)
		assert.Equal(t, types.Pence(-500), calcErr.Balance)
	})

	t.Run("allowed", func(t *testing.T) {
		ledgers, err := NewCalculator(Options{AllowNegative: true}, zerolog.Nop()).Calculate(records)
		require.NoError(t, err)
		assert.Equal(t, types.Pence(500), ledgers[0].Closing)
		assert.Equal(t, types.Pence(-500), ledgers[0].ClientClosing["MJ"])
	})
}

func TestCalculate_Overflow(t *testing.T) {
	records := []types.Record{rec("JS", day(2025, 9, 22), 10, 0, 0, 2)}

	_, err := NewCalculator(Options{StartingBalance: math.MaxInt64 - 5}, zerolog.Nop()).Calculate(records)

	var calcErr *CalculationError
	require.ErrorAs(t, err, &calcErr)
	assert.Equal(t, "amount overflow", calcErr.Reason)
}

func TestCalculate_Empty(t *testing.T) {
	ledgers, err := NewCalculator(Options{}, zerolog.Nop()).Calculate(nil)
	require.NoError(t, err)
	assert.Empty(t, ledgers)
}

func TestReconcile(t *testing.T) {
	now := day(2025, 10, 1)
	bank := func(p types.Pence) *types.Pence { return &p }

	tests := []struct {
		name     string
		computed types.Pence
		bank     *types.Pence
		status   types.ReconciliationStatus
		diff     types.Pence
	}{
		{"matched", 10000, bank(10000), types.StatusMatched, 0},
		{"bank higher", 10000, bank(10050), types.StatusMismatched, 50},
		{"bank lower", 10000, bank(9999), types.StatusMismatched, -1},
		{"no bank figure", 10000, nil, types.StatusUnverified, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile("2025-W39", tt.computed, tt.bank, now)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.diff, got.Difference)
			assert.Equal(t, now, got.CheckedAt)
			assert.Equal(t, tt.status == types.StatusMatched, tt.bank != nil && *tt.bank == tt.computed)
		})
	}
}

func TestReconcileWeeks_Strict(t *testing.T) {
	ledgers := []types.WeeklyLedger{
		{Key: types.WeekKey{Year: 2025, Week: 39}, Closing: 100},
		{Key: types.WeekKey{Year: 2025, Week: 40}, Closing: 200},
		{Key: types.WeekKey{Year: 2025, Week: 41}, Closing: 300},
	}
	bank := BankFigures{
		{Year: 2025, Week: 39}: 100,
		{Year: 2025, Week: 40}: 250,
	}

	results, err := NewReconciler(bank, false).ReconcileWeeks(ledgers)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, types.StatusMatched, results[0].Status)
	assert.Equal(t, types.StatusMismatched, results[1].Status)
	assert.Equal(t, types.Pence(50), results[1].Difference)
	assert.Equal(t, types.StatusUnverified, results[2].Status)

	results, err = NewReconciler(bank, true).ReconcileWeeks(ledgers)
	require.Error(t, err)
	assert.Len(t, results, 3)

	var mismatch *ReconciliationMismatch
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "2025-W40", mismatch.Result.Period)
}

func TestBankFigures_LastWins(t *testing.T) {
	bank := BankFigures{}
	bank.Add(day(2025, 9, 22), 100)
	bank.Add(day(2025, 9, 28), 200)

	got := bank.Lookup(types.WeekKey{Year: 2025, Week: 39})
	require.NotNil(t, got)
	assert.Equal(t, types.Pence(200), *got)
	assert.Nil(t, bank.Lookup(types.WeekKey{Year: 2025, Week: 40}))
}

func TestReconcileMonth(t *testing.T) {
	bank := types.Pence(10101)
	r := NewReconciler(nil, true).WithClock(func() time.Time { return day(2025, 10, 1) })

	result, err := r.ReconcileMonth("2025-09", 10101, &bank)
	require.NoError(t, err)
	assert.Equal(t, types.StatusMatched, result.Status)

	_, err = r.ReconcileMonth("2025-09", 10100, &bank)
	var mismatch *ReconciliationMismatch
	assert.ErrorAs(t, err, &mismatch)
}
