package models

import "time"

// MetricPoint represents a single metric data point
type MetricPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// MetricsSummary represents a summary of collected metrics
type MetricsSummary struct {
	StartTime    time.Time               `json:"start_time"`
	EndTime      time.Time               `json:"end_time"`
	Duration     time.Duration           `json:"duration"`
	Counters     map[string]float64      `json:"counters"`
	Aggregations map[string]*Aggregation `json:"aggregations,omitempty"`
}

// Aggregation represents aggregated statistics for a metric
type Aggregation struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// CampaignMetrics is the condensed view of a campaign's throughput and worker usage
type CampaignMetrics struct {
	Dispatched          int64         `json:"dispatched"`
	Completed           int64         `json:"completed"`
	Failed              int64         `json:"failed"`
	Cancelled           int64         `json:"cancelled"`
	TimedOut            int64         `json:"timed_out"`
	Workers             int           `json:"workers"`
	Elapsed             time.Duration `json:"elapsed"`
	TrialDurationMean   float64       `json:"trial_duration_mean_s"`
	TrialDurationP50    float64       `json:"trial_duration_p50_s"`
	TrialDurationP95    float64       `json:"trial_duration_p95_s"`
	BusySlotsMean       float64       `json:"busy_slots_mean"`
	Utilization         float64       `json:"utilization"`
	ThroughputPerMinute float64       `json:"throughput_per_minute"`
}
