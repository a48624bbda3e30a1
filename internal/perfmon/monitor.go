package perfmon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"binder/internal/config"
	"binder/internal/logging"
)

// OperationTiming is one finished operation.
type OperationTiming struct {
	Operation string        `json:"operation"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Detail    string        `json:"detail,omitempty"`
}

// Metric is one sampled measurement.
type Metric struct {
	Name     string    `json:"name"`
	Value    float64   `json:"value"`
	Unit     string    `json:"unit"`
	Category string    `json:"category"`
	At       time.Time `json:"at"`
}

// EventType classifies a performance event.
type EventType string

const (
	EventThresholdExceeded EventType = "threshold_exceeded"
	EventSlowOperation     EventType = "slow_operation"
	EventVerySlowOperation EventType = "very_slow_operation"
)

// Event is delivered to registered callbacks when a threshold trips.
type Event struct {
	Type          EventType     `json:"type"`
	Issues        []string      `json:"issues,omitempty"`
	Operation     string        `json:"operation,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
	CPUPercent    float64       `json:"cpu_percent,omitempty"`
	MemoryPercent float64       `json:"memory_percent,omitempty"`
	At            time.Time     `json:"at"`
}

const alertHistory = 100

// Monitor accumulates timings and samples. All methods are safe for
// concurrent use.
type Monitor struct {
	mu        sync.Mutex
	ops       *ring[OperationTiming]
	system    *ring[Metric]
	alerts    *ring[Event]
	callbacks []func(Event)

	logger         *slog.Logger
	probe          Probe
	enabled        bool
	sampleInterval time.Duration

	cpuWarning     float64
	cpuCritical    float64
	memoryWarning  float64
	memoryCritical float64
	slowOp         time.Duration
	verySlowOp     time.Duration

	processCount func(context.Context) (int, error)
	processLimit int
}

// Option adjusts a Monitor at construction.
type Option func(*Monitor)

// WithProbe substitutes the system probe, mainly for tests.
func WithProbe(p Probe) Option {
	return func(m *Monitor) { m.probe = p }
}

// WithProcessCounter injects the Excel process counter used by report
// recommendations.
func WithProcessCounter(fn func(context.Context) (int, error)) Option {
	return func(m *Monitor) { m.processCount = fn }
}

// NewMonitor builds a monitor from the monitor section of cfg.
func NewMonitor(cfg *config.Config, logger *slog.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Monitor{
		ops:            newRing[OperationTiming](cfg.Monitor.OperationHistory),
		system:         newRing[Metric](cfg.Monitor.SystemHistory),
		alerts:         newRing[Event](alertHistory),
		logger:         logger,
		probe:          SystemProbe{},
		enabled:        cfg.Monitor.Enabled,
		sampleInterval: time.Duration(cfg.Monitor.SampleIntervalSeconds) * time.Second,
		cpuWarning:     cfg.Monitor.CPUWarningPercent,
		cpuCritical:    cfg.Monitor.CPUCriticalPercent,
		memoryWarning:  cfg.Monitor.MemoryWarningPercent,
		memoryCritical: cfg.Monitor.MemoryCriticalPercent,
		slowOp:         time.Duration(cfg.Monitor.SlowOperationSeconds) * time.Second,
		verySlowOp:     time.Duration(cfg.Monitor.VerySlowOperationSeconds) * time.Second,
		processLimit:   cfg.Procs.CountCritical,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnEvent registers a callback for threshold and slow-operation events.
// Callbacks run on the recording goroutine and must not block.
func (m *Monitor) OnEvent(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Track starts timing an operation and returns its completion function.
//
//	done := monitor.Track("links-scan")
//	...
//	done(err)
func (m *Monitor) Track(operation string) func(error) {
	started := time.Now()
	return func(err error) {
		m.record(operation, started, time.Since(started), err)
	}
}

// RecordOperation satisfies excel.Recorder.
func (m *Monitor) RecordOperation(name string, duration time.Duration, err error) {
	m.record(name, time.Now().Add(-duration), duration, err)
}

func (m *Monitor) record(operation string, started time.Time, duration time.Duration, err error) {
	timing := OperationTiming{
		Operation: operation,
		StartedAt: started,
		Duration:  duration,
		Success:   err == nil,
	}
	if err != nil {
		timing.Detail = err.Error()
	}

	m.mu.Lock()
	m.ops.push(timing)
	m.mu.Unlock()

	switch {
	case m.verySlowOp > 0 && duration >= m.verySlowOp:
		m.emit(Event{
			Type:      EventVerySlowOperation,
			Operation: operation,
			Duration:  duration,
			At:        time.Now(),
		})
		m.logger.Warn("very slow operation",
			logging.String("operation", operation),
			logging.Duration("duration", duration))
	case m.slowOp > 0 && duration >= m.slowOp:
		m.emit(Event{
			Type:      EventSlowOperation,
			Operation: operation,
			Duration:  duration,
			At:        time.Now(),
		})
		m.logger.Info("slow operation",
			logging.String("operation", operation),
			logging.Duration("duration", duration))
	}
}

// RecordMetric stores one measurement in the system ring.
func (m *Monitor) RecordMetric(name string, value float64, unit, category string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.system.push(Metric{Name: name, Value: value, Unit: unit, Category: category, At: time.Now()})
}

// Sample performs one sampling pass: probe, store, threshold check.
func (m *Monitor) Sample(ctx context.Context) error {
	sample, err := m.probe.Sample(ctx)
	if err != nil {
		return err
	}
	at := time.Now()

	m.mu.Lock()
	m.system.push(Metric{Name: "cpu_usage", Value: sample.CPUPercent, Unit: "percent", Category: "system", At: at})
	m.system.push(Metric{Name: "memory_usage", Value: sample.MemoryPercent, Unit: "percent", Category: "system", At: at})
	m.system.push(Metric{Name: "disk_usage", Value: sample.DiskPercent, Unit: "percent", Category: "system", At: at})
	m.mu.Unlock()

	m.checkThresholds(sample, at)
	return nil
}

func (m *Monitor) checkThresholds(sample Sample, at time.Time) {
	var issues []string
	switch {
	case sample.CPUPercent >= m.cpuCritical:
		issues = append(issues, fmt.Sprintf("Critical CPU usage: %.1f%%", sample.CPUPercent))
	case sample.CPUPercent >= m.cpuWarning:
		issues = append(issues, fmt.Sprintf("High CPU usage: %.1f%%", sample.CPUPercent))
	}
	switch {
	case sample.MemoryPercent >= m.memoryCritical:
		issues = append(issues, fmt.Sprintf("Critical memory usage: %.1f%%", sample.MemoryPercent))
	case sample.MemoryPercent >= m.memoryWarning:
		issues = append(issues, fmt.Sprintf("High memory usage: %.1f%%", sample.MemoryPercent))
	}
	if len(issues) == 0 {
		return
	}

	m.emit(Event{
		Type:          EventThresholdExceeded,
		Issues:        issues,
		CPUPercent:    sample.CPUPercent,
		MemoryPercent: sample.MemoryPercent,
		At:            at,
	})
	m.logger.Warn("resource thresholds exceeded",
		logging.Float64("cpu_percent", sample.CPUPercent),
		logging.Float64("memory_percent", sample.MemoryPercent),
		logging.Any("issues", issues))
}

func (m *Monitor) emit(event Event) {
	m.mu.Lock()
	m.alerts.push(event)
	callbacks := append([]func(Event){}, m.callbacks...)
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn(event)
	}
}

// Run samples until ctx is canceled. It returns immediately when monitoring
// is disabled in configuration.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.enabled || m.sampleInterval <= 0 {
		return nil
	}
	ticker := time.NewTicker(m.sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := m.Sample(ctx); err != nil {
				m.logger.Debug("system sample failed", logging.Error(err))
			}
		}
	}
}

// OperationStats aggregates the timings of one operation name.
type OperationStats struct {
	Count       int           `json:"count"`
	Failures    int           `json:"failures"`
	SuccessRate float64       `json:"success_rate"`
	Avg         time.Duration `json:"avg"`
	Min         time.Duration `json:"min"`
	Max         time.Duration `json:"max"`
	Total       time.Duration `json:"total"`
}

// Stats aggregates timings, all of them when operation is empty.
func (m *Monitor) Stats(operation string) OperationStats {
	m.mu.Lock()
	timings := m.ops.items()
	m.mu.Unlock()
	return aggregate(timings, operation)
}

func aggregate(timings []OperationTiming, operation string) OperationStats {
	var stats OperationStats
	for _, t := range timings {
		if operation != "" && t.Operation != operation {
			continue
		}
		stats.Count++
		if !t.Success {
			stats.Failures++
		}
		stats.Total += t.Duration
		if stats.Count == 1 || t.Duration < stats.Min {
			stats.Min = t.Duration
		}
		if t.Duration > stats.Max {
			stats.Max = t.Duration
		}
	}
	if stats.Count > 0 {
		stats.SuccessRate = float64(stats.Count-stats.Failures) / float64(stats.Count)
		stats.Avg = stats.Total / time.Duration(stats.Count)
	}
	return stats
}
