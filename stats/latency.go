package stats

import (
	"slices"
	"sync"
	"time"
)

// LatencySummary 单个指标的延迟分位
type LatencySummary struct {
	Count uint64        `json:"count"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

// ring 固定容量的样本环
type ring struct {
	samples []time.Duration
	next    int
	filled  bool
	count   uint64
	max     time.Duration
}

func (r *ring) add(d time.Duration) {
	r.samples[r.next] = d
	r.next = (r.next + 1) % len(r.samples)
	if r.next == 0 {
		r.filled = true
	}
	r.count++
	r.max = max(r.max, d)
}

func (r *ring) values() []time.Duration {
	n := r.next
	if r.filled {
		n = len(r.samples)
	}
	return slices.Clone(r.samples[:n])
}

// LatencyRecorder 每个指标保留最近 capacity 个样本
type LatencyRecorder struct {
	mu       sync.Mutex
	capacity int
	metrics  map[string]*ring
}

func NewLatencyRecorder(capacity int) *LatencyRecorder {
	if capacity <= 0 {
		capacity = 2048
	}
	return &LatencyRecorder{capacity: capacity, metrics: make(map[string]*ring)}
}

func (l *LatencyRecorder) Record(name string, d time.Duration) {
	if l == nil || name == "" {
		return
	}
	d = max(d, 0)
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.metrics[name]
	if !ok {
		r = &ring{samples: make([]time.Duration, l.capacity)}
		l.metrics[name] = r
	}
	r.add(d)
}

// Since 便于 defer rec.Since("x", time.Now())
func (l *LatencyRecorder) Since(name string, start time.Time) {
	l.Record(name, time.Since(start))
}

// Snapshot reset=true 时清空，用于按区间输出
func (l *LatencyRecorder) Snapshot(reset bool) map[string]LatencySummary {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]LatencySummary, len(l.metrics))
	for name, r := range l.metrics {
		vals := r.values()
		if len(vals) > 0 {
			slices.Sort(vals)
			out[name] = LatencySummary{
				Count: r.count,
				P50:   percentile(vals, 0.50),
				P95:   percentile(vals, 0.95),
				P99:   percentile(vals, 0.99),
				Max:   r.max,
			}
		}
		if reset {
			*r = ring{samples: r.samples}
		}
	}
	return out
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[min(max(idx, 0), len(sorted)-1)]
}
