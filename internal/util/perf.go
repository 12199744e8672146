package util

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
)

// PerfEnabled indicates if performance profiling is enabled
var PerfEnabled bool

// PerfMetric represents the aggregated timings of one operation name
type PerfMetric struct {
	Name      string
	Last      time.Duration
	Max       time.Duration
	Count     int64
	TotalTime time.Duration
}

// Avg returns the mean duration
func (m PerfMetric) Avg() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.TotalTime / time.Duration(m.Count)
}

// PerfTracker tracks timings and counters across pipeline runs
type PerfTracker struct {
	mu       sync.RWMutex
	metrics  map[string]*PerfMetric
	started  time.Time
	counters map[string]*int64
}

var (
	globalPerf     *PerfTracker
	globalPerfOnce sync.Once
)

// NewPerfTracker returns an empty tracker
func NewPerfTracker() *PerfTracker {
	return &PerfTracker{
		metrics:  make(map[string]*PerfMetric),
		started:  time.Now(),
		counters: make(map[string]*int64),
	}
}

// GetPerfTracker returns the global performance tracker
func GetPerfTracker() *PerfTracker {
	globalPerfOnce.Do(func() {
		globalPerf = NewPerfTracker()
	})
	return globalPerf
}

// Timer represents an active timing operation
type Timer struct {
	name    string
	start   time.Time
	tracker *PerfTracker
}

// StartTimer starts a new timer for the given operation name.
// It returns nil when profiling is disabled; a nil Timer is safe to Stop.
func StartTimer(name string) *Timer {
	if !PerfEnabled {
		return nil
	}
	return &Timer{
		name:    name,
		start:   time.Now(),
		tracker: GetPerfTracker(),
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop() time.Duration {
	if t == nil {
		return 0
	}
	duration := time.Since(t.start)
	t.tracker.Record(t.name, duration)
	return duration
}

// Record records a metric with the given name and duration
func (pt *PerfTracker) Record(name string, duration time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	metric, exists := pt.metrics[name]
	if !exists {
		metric = &PerfMetric{Name: name}
		pt.metrics[name] = metric
	}

	metric.Count++
	metric.TotalTime += duration
	metric.Last = duration
	if duration > metric.Max {
		metric.Max = duration
	}
}

// IncrementCounter increments a named counter atomically
func (pt *PerfTracker) IncrementCounter(name string) {
	pt.mu.Lock()
	counter, exists := pt.counters[name]
	if !exists {
		var c int64
		counter = &c
		pt.counters[name] = counter
	}
	pt.mu.Unlock()

	atomic.AddInt64(counter, 1)
}

// GetCounter returns the current value of a counter
func (pt *PerfTracker) GetCounter(name string) int64 {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	counter, exists := pt.counters[name]
	if !exists {
		return 0
	}
	return atomic.LoadInt64(counter)
}

// GetMetrics returns a copy of all metrics
func (pt *PerfTracker) GetMetrics() map[string]PerfMetric {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	result := make(map[string]PerfMetric, len(pt.metrics))
	for k, v := range pt.metrics {
		result[k] = *v
	}
	return result
}

// Reset resets all metrics
func (pt *PerfTracker) Reset() {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.metrics = make(map[string]*PerfMetric)
	pt.counters = make(map[string]*int64)
	pt.started = time.Now()
}

var perfTitleStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#FF6B6B")).
	Bold(true)

// WriteReport renders timings (slowest first) and counters as tables
func (pt *PerfTracker) WriteReport(w io.Writer) {
	metrics := pt.GetMetrics()
	entries := make([]PerfMetric, 0, len(metrics))
	for _, m := range metrics {
		entries = append(entries, m)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TotalTime > entries[j].TotalTime
	})

	pt.mu.RLock()
	uptime := time.Since(pt.started)
	counters := make(map[string]int64, len(pt.counters))
	for name, c := range pt.counters {
		counters[name] = atomic.LoadInt64(c)
	}
	pt.mu.RUnlock()

	_, _ = fmt.Fprintln(w, perfTitleStyle.Render(fmt.Sprintf("PERFORMANCE REPORT (uptime %s)", uptime.Round(time.Millisecond))))

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Operation", "Count", "Total", "Avg", "Max"})
	for _, m := range entries {
		tw.AppendRow(table.Row{
			m.Name,
			m.Count,
			m.TotalTime.Round(time.Millisecond),
			m.Avg().Round(time.Millisecond),
			m.Max.Round(time.Millisecond),
		})
	}
	tw.Render()

	if len(counters) == 0 {
		return
	}
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)

	cw := table.NewWriter()
	cw.SetOutputMirror(w)
	cw.SetStyle(table.StyleLight)
	cw.AppendHeader(table.Row{"Counter", "Value"})
	for _, name := range names {
		cw.AppendRow(table.Row{name, counters[name]})
	}
	cw.Render()
}

// PerfCount increments a performance counter
func PerfCount(name string) {
	if !PerfEnabled {
		return
	}
	GetPerfTracker().IncrementCounter(name)
}
