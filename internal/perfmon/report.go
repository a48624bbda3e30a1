package perfmon

import (
	"context"
	"fmt"
	"time"

	"binder/internal/logging"
)

// ResourceSummary pairs a current reading with its recent average.
type ResourceSummary struct {
	Current float64 `json:"current"`
	Average float64 `json:"average"`
	Status  string  `json:"status"`
}

// SystemSummary is the resource part of a report.
type SystemSummary struct {
	CPU               ResourceSummary `json:"cpu"`
	Memory            ResourceSummary `json:"memory"`
	MemoryAvailableGB float64         `json:"memory_available_gb"`
	DiskPercent       float64         `json:"disk_percent"`
}

// Report is an on-demand monitor snapshot.
type Report struct {
	GeneratedAt     time.Time                 `json:"generated_at"`
	System          *SystemSummary            `json:"system,omitempty"`
	Overall         OperationStats            `json:"overall"`
	ByOperation     map[string]OperationStats `json:"by_operation,omitempty"`
	Alerts          []Event                   `json:"alerts,omitempty"`
	Recommendations []string                  `json:"recommendations"`
	MetricsCount    int                       `json:"metrics_count"`
	OperationsCount int                       `json:"operations_count"`
}

// Report assembles a snapshot of everything the monitor has collected, with
// recommendations derived from thresholds, repeatedly slow operations, and
// the Excel process count.
func (m *Monitor) Report(ctx context.Context) *Report {
	m.mu.Lock()
	timings := m.ops.items()
	metrics := m.system.items()
	alerts := m.alerts.items()
	m.mu.Unlock()

	report := &Report{
		GeneratedAt:     time.Now(),
		Overall:         aggregate(timings, ""),
		ByOperation:     make(map[string]OperationStats),
		Alerts:          alerts,
		MetricsCount:    len(metrics),
		OperationsCount: len(timings),
	}
	for _, t := range timings {
		if _, ok := report.ByOperation[t.Operation]; !ok {
			report.ByOperation[t.Operation] = aggregate(timings, t.Operation)
		}
	}

	sample, err := m.probe.Sample(ctx)
	if err != nil {
		m.logger.Debug("system probe failed", logging.Error(err))
	} else {
		report.System = &SystemSummary{
			CPU: ResourceSummary{
				Current: sample.CPUPercent,
				Average: averageMetric(metrics, "cpu_usage"),
				Status:  statusFor(sample.CPUPercent, m.cpuWarning, m.cpuCritical),
			},
			Memory: ResourceSummary{
				Current: sample.MemoryPercent,
				Average: averageMetric(metrics, "memory_usage"),
				Status:  statusFor(sample.MemoryPercent, m.memoryWarning, m.memoryCritical),
			},
			MemoryAvailableGB: sample.MemoryAvailableGB,
			DiskPercent:       sample.DiskPercent,
		}
	}

	report.Recommendations = m.recommend(ctx, report.System, timings)
	return report
}

func (m *Monitor) recommend(ctx context.Context, system *SystemSummary, timings []OperationTiming) []string {
	var recs []string

	if system != nil {
		if system.CPU.Status != "normal" {
			recs = append(recs, fmt.Sprintf(
				"High CPU usage detected (%.1f%%). Consider closing other applications or reducing concurrent operations.",
				system.CPU.Current))
		}
		if system.Memory.Status != "normal" {
			recs = append(recs, fmt.Sprintf(
				"High memory usage detected (%.1f%%). Consider closing unused workbooks or restarting Excel.",
				system.Memory.Current))
		}
		if system.MemoryAvailableGB > 0 && system.MemoryAvailableGB < 1.0 {
			recs = append(recs, "Low available memory (< 1GB). Consider closing other applications.")
		}
	}

	if m.slowOp > 0 {
		slowCounts := make(map[string]int)
		var slowOrder []string
		for _, t := range timings {
			if t.Duration < m.slowOp {
				continue
			}
			if slowCounts[t.Operation] == 0 {
				slowOrder = append(slowOrder, t.Operation)
			}
			slowCounts[t.Operation]++
		}
		for _, op := range slowOrder {
			if count := slowCounts[op]; count >= 3 {
				recs = append(recs, fmt.Sprintf(
					"Operation %q has been slow %d times. Consider optimizing it or checking system resources.",
					op, count))
			}
		}
	}

	if m.processCount != nil {
		if count, err := m.processCount(ctx); err == nil && count > m.processLimit {
			recs = append(recs, fmt.Sprintf(
				"Multiple Excel processes detected (%d). Consider running process cleanup.", count))
		}
	}

	if len(recs) == 0 {
		recs = append(recs, "System performance is optimal. No recommendations at this time.")
	}
	return recs
}

func averageMetric(metrics []Metric, name string) float64 {
	var sum float64
	var count int
	for _, metric := range metrics {
		if metric.Name != name {
			continue
		}
		sum += metric.Value
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func statusFor(value, warning, critical float64) string {
	switch {
	case critical > 0 && value >= critical:
		return "critical"
	case warning > 0 && value >= warning:
		return "warning"
	default:
		return "normal"
	}
}
