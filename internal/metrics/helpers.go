package metrics

import (
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// Common metric names
const (
	MetricTrialDuration  = "trial_duration_seconds"
	MetricBusySlots      = "busy_slots"
	MetricTrialsProposed = "trials_proposed"
	MetricDispatched     = "trials_dispatched"
	MetricCompleted      = "trials_completed"
	MetricFailed         = "trials_failed"
	MetricCancelled      = "trials_cancelled"
	MetricTimedOut       = "trials_timed_out"
	MetricCheckpoints    = "checkpoints_written"
)

// RecordTrialFinished records the outcome counter and, for trials that ran,
// their wall-clock duration labelled by status.
func RecordTrialFinished(collector *Collector, trial models.Trial) {
	switch trial.Status {
	case models.TrialStatusCompleted:
		collector.Add(MetricCompleted, 1)
	case models.TrialStatusFailed:
		collector.Add(MetricFailed, 1)
	case models.TrialStatusCancelled:
		collector.Add(MetricCancelled, 1)
	}
	if d := trial.Duration(); d > 0 {
		collector.Record(MetricTrialDuration, d.Seconds(), trial.FinishedAt, CreateStatusLabels(trial.Status))
	}
}

// RecordBusySlots samples the number of busy worker slots
func RecordBusySlots(collector *Collector, busy int, timestamp time.Time) {
	collector.Record(MetricBusySlots, float64(busy), timestamp, nil)
}

// CreateStatusLabels creates a labels map for a trial status
func CreateStatusLabels(status models.TrialStatus) map[string]string {
	return map[string]string{
		"status": string(status),
	}
}

// ConvertToCampaignMetrics converts collector metrics to CampaignMetrics format
func ConvertToCampaignMetrics(collector *Collector, workers int) *models.CampaignMetrics {
	summary := collector.GetSummary()

	out := &models.CampaignMetrics{
		Dispatched: int64(collector.Counter(MetricDispatched)),
		Completed:  int64(collector.Counter(MetricCompleted)),
		Failed:     int64(collector.Counter(MetricFailed)),
		Cancelled:  int64(collector.Counter(MetricCancelled)),
		TimedOut:   int64(collector.Counter(MetricTimedOut)),
		Workers:    workers,
		Elapsed:    summary.Duration,
	}

	if agg := summary.Aggregations[MetricTrialDuration]; agg != nil {
		out.TrialDurationMean = agg.Mean
		out.TrialDurationP50 = agg.P50
		out.TrialDurationP95 = agg.P95
	}
	if agg := summary.Aggregations[MetricBusySlots]; agg != nil {
		out.BusySlotsMean = agg.Mean
		if workers > 0 {
			out.Utilization = agg.Mean / float64(workers)
		}
	}
	if summary.Duration > 0 {
		out.ThroughputPerMinute = float64(out.Completed+out.Failed) / summary.Duration.Minutes()
	}
	return out
}
