package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
	"github.com/ginjaninja78/ldcc1-processor/pkg/utils"
)

var runTime = time.Date(2025, 9, 30, 10, 15, 0, 0, time.UTC)

func fixedClock() time.Time { return runTime }

func pence(p types.Pence) *types.Pence { return &p }

func sampleSummary(layout *utils.RunLayout, status RunStatus) *Summary {
	return &Summary{
		RunID:       layout.RunID,
		Status:      status,
		InputFile:   "/data/LDCC1_Week39.csv",
		StartedAt:   runTime,
		CompletedAt: runTime.Add(2 * time.Second),
		Counts:      Counts{Records: 4, Weeks: 1, Clients: 2, Artifacts: 5},
		Totals: Totals{
			StartingBalance: 10000,
			Benefits:        17825,
			Withdrawals:     3050,
			FinalClosing:    24775,
		},
		Reconciliations: []types.ReconciliationResult{
			{Period: "2025-W39", Computed: 24775, BankStated: pence(24775), Status: types.StatusMatched},
		},
		MonthlyReconciliation: &types.ReconciliationResult{Period: "2025-09", Computed: 24800, BankStated: pence(24810), Difference: 10, Status: types.StatusMismatched},
		Interest: &types.InterestAllocation{Period: "2025-09", Total: 25, Shares: []types.InterestShare{
			{ClientID: "JS", Share: 12},
			{ClientID: "MJ", Share: 13},
		}},
	}
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

func TestAuditTrail(t *testing.T) {
	trail := NewAuditTrail(fixedClock)

	first := trail.Record("load", types.AuditSuccess, "4 rows", "input/LDCC1_Week39.csv")
	trail.Record("reconcile", types.AuditFlagged, "1 mismatch")

	entries := trail.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0])
	assert.Equal(t, "load", entries[0].Step)
	assert.Equal(t, []string{"input/LDCC1_Week39.csv"}, entries[0].Artifacts)
	assert.Equal(t, runTime, entries[0].Timestamp)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.Nil(t, entries[1].Artifacts)
	assert.False(t, trail.Failed())

	// Entries is a copy.
	entries[0].Step = "changed"
	assert.Equal(t, "load", trail.Entries()[0].Step)

	trail.Record("documents", types.AuditFailure, "disk full")
	assert.True(t, trail.Failed())
}

func TestAuditTrail_Concurrent(t *testing.T) {
	trail := NewAuditTrail(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trail.Record("step", types.AuditSuccess, "")
		}()
	}
	wg.Wait()

	assert.Len(t, trail.Entries(), 50)
}

// =============================================================================
// WRITER
// =============================================================================

func TestWriter_Success(t *testing.T) {
	layout := utils.NewRunLayout(t.TempDir(), runTime)
	require.NoError(t, layout.EnsureDirectories())

	trail := NewAuditTrail(fixedClock)
	trail.Record("load", types.AuditSuccess, "")
	summary := sampleSummary(layout, StatusCompleted)

	paths, err := NewWriter(layout, zerolog.Nop()).Write(context.Background(), summary, trail)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(layout.Reports, "processing_summary_20250930_101500_"+layout.RunID+".json"), paths.Summary)
	assert.Equal(t, filepath.Join(layout.Reports, "audit_trail_20250930_101500_"+layout.RunID+".json"), paths.AuditTrail)
	assert.Equal(t, filepath.Join(layout.Reports, "Final_Processing_Summary_20250930_101500.pdf"), paths.PDF)

	data, err := os.ReadFile(paths.Summary)
	require.NoError(t, err)
	var decoded Summary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, StatusCompleted, decoded.Status)
	assert.Equal(t, types.Pence(24775), decoded.Totals.FinalClosing)
	require.NotNil(t, decoded.Interest)
	assert.Equal(t, types.Pence(25), decoded.Interest.Total)

	data, err = os.ReadFile(paths.AuditTrail)
	require.NoError(t, err)
	var entries []types.AuditTrailEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "load", entries[0].Step)

	pdf, err := os.ReadFile(paths.PDF)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))
}

func TestWriter_FailureHasNoPDF(t *testing.T) {
	layout := utils.NewRunLayout(t.TempDir(), runTime)
	require.NoError(t, layout.EnsureDirectories())

	summary := sampleSummary(layout, StatusFailed)
	summary.Error = "missing required columns"

	paths, err := NewWriter(layout, zerolog.Nop()).Write(context.Background(), summary, NewAuditTrail(fixedClock))
	require.NoError(t, err)
	assert.Empty(t, paths.PDF)
	assert.FileExists(t, paths.Summary)
	assert.FileExists(t, paths.AuditTrail)

	matches, err := filepath.Glob(filepath.Join(layout.Reports, "*.pdf"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestWriter_NeverOverwrites(t *testing.T) {
	layout := utils.NewRunLayout(t.TempDir(), runTime)
	require.NoError(t, layout.EnsureDirectories())

	w := NewWriter(layout, zerolog.Nop())
	_, err := w.Write(context.Background(), sampleSummary(layout, StatusFailed), NewAuditTrail(fixedClock))
	require.NoError(t, err)

	_, err = w.Write(context.Background(), sampleSummary(layout, StatusFailed), NewAuditTrail(fixedClock))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrExist))
}

func TestSummary_Mismatches(t *testing.T) {
	layout := utils.NewRunLayout(t.TempDir(), runTime)
	s := sampleSummary(layout, StatusCompleted)
	assert.Equal(t, 1, s.Mismatches())

	s.Reconciliations = append(s.Reconciliations, types.ReconciliationResult{Status: types.StatusMismatched})
	assert.Equal(t, 2, s.Mismatches())
}

func TestRunStatus_Succeeded(t *testing.T) {
	assert.True(t, StatusCompleted.Succeeded())
	assert.True(t, StatusAwaitingPayment.Succeeded())
	assert.False(t, StatusFailed.Succeeded())
}

// =============================================================================
// METRICS
// =============================================================================

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordsProcessed.Add(4)
	m.ObserveArtifacts([]types.DocumentArtifact{
		{Status: types.ArtifactWritten},
		{Status: types.ArtifactWritten},
		{Status: types.ArtifactSkipped},
	})
	m.ObserveReconciliations([]types.ReconciliationResult{
		{Status: types.StatusMatched},
		{Status: types.StatusMismatched},
	})

	assert.Equal(t, 4.0, testutil.ToFloat64(m.RecordsProcessed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocumentsGenerated.WithLabelValues("written")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsGenerated.WithLabelValues("skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconciliationOutcomes.WithLabelValues("MISMATCHED")))

	// Each Metrics has its own registry.
	other := NewMetrics()
	assert.Equal(t, 0.0, testutil.ToFloat64(other.RecordsProcessed))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	layout := utils.NewRunLayout(t.TempDir(), runTime)
	require.NoError(t, layout.EnsureDirectories())

	m := NewMetrics()
	m.RecordsProcessed.Add(4)
	m.RunSuccess.Set(1)

	path, err := m.WriteTextfile(context.Background(), layout)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(layout.Reports, "metrics_20250930_101500.prom"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ldcc1_records_processed_total 4")
	assert.Contains(t, string(data), "ldcc1_run_success 1")
}
