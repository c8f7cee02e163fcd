package report

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
	"github.com/ginjaninja78/ldcc1-processor/pkg/utils"
)

// Metrics holds the run's Prometheus metrics. Each run has its own registry,
// written as a node_exporter textfile when the run ends.
type Metrics struct {
	registry *prometheus.Registry

	// Volume
	RecordsProcessed prometheus.Counter
	WeeksProcessed   prometheus.Counter
	PaymentsPrepared prometheus.Counter

	// Outcomes
	DocumentsGenerated     *prometheus.CounterVec
	ReconciliationOutcomes *prometheus.CounterVec
	RunSuccess             prometheus.Gauge

	// Timing
	StepDuration *prometheus.GaugeVec
	RunDuration  prometheus.Gauge

	// Money
	InterestAllocatedPence   prometheus.Gauge
	FinalClosingBalancePence prometheus.Gauge
}

// NewMetrics creates and registers the metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RecordsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ldcc1_records_processed_total",
			Help: "Validated input records",
		}),
		WeeksProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ldcc1_weeks_processed_total",
			Help: "Weekly ledgers calculated",
		}),
		DocumentsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ldcc1_documents_total",
				Help: "Procedure documents by status",
			},
			[]string{"status"},
		),
		ReconciliationOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ldcc1_reconciliations_total",
				Help: "Reconciliation results by status",
			},
			[]string{"status"},
		),
		PaymentsPrepared: factory.NewCounter(prometheus.CounterOpts{
			Name: "ldcc1_payments_prepared_total",
			Help: "Payment instructions prepared for eQ Banking",
		}),
		StepDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ldcc1_step_duration_seconds",
				Help: "Duration of each pipeline step",
			},
			[]string{"step"},
		),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ldcc1_run_duration_seconds",
			Help: "Duration of the whole run",
		}),
		RunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ldcc1_run_success",
			Help: "1 if the run completed without error",
		}),
		InterestAllocatedPence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ldcc1_interest_allocated_pence",
			Help: "Monthly interest allocated across clients",
		}),
		FinalClosingBalancePence: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ldcc1_final_closing_balance_pence",
			Help: "Closing balance of the last week",
		}),
	}
}

// ObserveArtifacts counts documents by status.
func (m *Metrics) ObserveArtifacts(artifacts []types.DocumentArtifact) {
	for _, a := range artifacts {
		m.DocumentsGenerated.WithLabelValues(string(a.Status)).Inc()
	}
}

// ObserveReconciliations counts results by status.
func (m *Metrics) ObserveReconciliations(results []types.ReconciliationResult) {
	for _, r := range results {
		m.ReconciliationOutcomes.WithLabelValues(string(r.Status)).Inc()
	}
}

// Registry exposes the registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the metrics to reports/metrics_<timestamp>.prom.
func (m *Metrics) WriteTextfile(ctx context.Context, layout *utils.RunLayout) (string, error) {
	path := filepath.Join(layout.Reports, layout.GenerateOutputFileName("metrics_{timestamp}.prom", nil))

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return "", fmt.Errorf("failed to write metrics: %w", err)
	}
	if err := utils.ConfirmWritten(ctx, path); err != nil {
		return "", err
	}

	return path, nil
}
