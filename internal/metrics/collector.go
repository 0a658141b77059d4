package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/models"
)

// Collector collects time-series metrics and counters during a campaign
type Collector struct {
	mu sync.RWMutex

	startTime time.Time
	endTime   time.Time

	// Time-series data: metric name -> labels -> []MetricPoint
	timeSeries map[string]map[string][]*models.MetricPoint

	// Monotonic counters: metric name -> value
	counters map[string]float64
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		startTime:  time.Now(),
		timeSeries: make(map[string]map[string][]*models.MetricPoint),
		counters:   make(map[string]float64),
	}
}

// Start marks the start of metric collection
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
	c.endTime = time.Time{}
}

// Stop marks the end of metric collection
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
}

// Record records a metric value at a specific timestamp
func (c *Collector) Record(name string, value float64, timestamp time.Time, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := labelKey(labels)
	if c.timeSeries[name] == nil {
		c.timeSeries[name] = make(map[string][]*models.MetricPoint)
	}

	point := &models.MetricPoint{
		Timestamp: timestamp,
		Name:      name,
		Value:     value,
		Labels:    copyLabels(labels),
	}

	c.timeSeries[name][key] = append(c.timeSeries[name][key], point)
}

// Add increments a counter by delta
func (c *Collector) Add(name string, delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += delta
}

// Counter returns the current value of a counter
func (c *Collector) Counter(name string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters[name]
}

// GetTimeSeries returns all time-series points for a metric
func (c *Collector) GetTimeSeries(name string, labels map[string]string) []*models.MetricPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	points := c.timeSeries[name][labelKey(labels)]
	if points == nil {
		return nil
	}

	// Return a copy
	result := make([]*models.MetricPoint, len(points))
	for i, p := range points {
		result[i] = &models.MetricPoint{
			Timestamp: p.Timestamp,
			Name:      p.Name,
			Value:     p.Value,
			Labels:    copyLabels(p.Labels),
		}
	}
	return result
}

// GetAggregation calculates aggregated statistics for a metric and label set
func (c *Collector) GetAggregation(name string, labels map[string]string) *models.Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return calculateAggregation(c.timeSeries[name][labelKey(labels)])
}

// GetAggregationAll aggregates a metric across every label combination
func (c *Collector) GetAggregationAll(name string) *models.Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return calculateAggregation(c.allPointsUnsafe(name))
}

// GetSummary returns a summary of all collected metrics
func (c *Collector) GetSummary() *models.MetricsSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	end := c.endTime
	if end.IsZero() {
		end = time.Now()
	}
	summary := &models.MetricsSummary{
		StartTime:    c.startTime,
		EndTime:      c.endTime,
		Duration:     end.Sub(c.startTime),
		Counters:     make(map[string]float64, len(c.counters)),
		Aggregations: make(map[string]*models.Aggregation),
	}
	for name, v := range c.counters {
		summary.Counters[name] = v
	}
	for name := range c.timeSeries {
		if agg := calculateAggregation(c.allPointsUnsafe(name)); agg != nil {
			summary.Aggregations[name] = agg
		}
	}
	return summary
}

// GetMetricNames returns all metric names that have been collected, sorted
func (c *Collector) GetMetricNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.timeSeries))
	for name := range c.timeSeries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetLabelsForMetric returns all label combinations for a metric
func (c *Collector) GetLabelsForMetric(name string) []map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []map[string]string
	for _, points := range c.timeSeries[name] {
		if len(points) > 0 && len(points[0].Labels) > 0 {
			out = append(out, copyLabels(points[0].Labels))
		}
	}
	return out
}

// allPointsUnsafe returns points for every label set (caller must hold lock)
func (c *Collector) allPointsUnsafe(name string) []*models.MetricPoint {
	var out []*models.MetricPoint
	for _, points := range c.timeSeries[name] {
		out = append(out, points...)
	}
	return out
}

// labelKey creates a key from labels for map lookup
func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

// copyLabels creates a copy of the labels map
func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// calculateAggregation calculates aggregated statistics from metric points
func calculateAggregation(points []*models.MetricPoint) *models.Aggregation {
	if len(points) == 0 {
		return nil
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	sort.Float64s(values)

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return &models.Aggregation{
		Count: int64(len(values)),
		Sum:   sum,
		Min:   values[0],
		Max:   values[len(values)-1],
		Mean:  sum / float64(len(values)),
		P50:   calculatePercentile(values, 0.50),
		P95:   calculatePercentile(values, 0.95),
		P99:   calculatePercentile(values, 0.99),
	}
}

// calculatePercentile calculates the percentile value from a sorted slice
func calculatePercentile(sortedValues []float64, p float64) float64 {
	if len(sortedValues) == 0 {
		return 0.0
	}
	if len(sortedValues) == 1 {
		return sortedValues[0]
	}

	index := p * float64(len(sortedValues)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sortedValues) {
		return sortedValues[len(sortedValues)-1]
	}

	weight := index - float64(lower)
	return sortedValues[lower]*(1-weight) + sortedValues[upper]*weight
}
