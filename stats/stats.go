package stats

import (
	"sync"
)

// Stats 按名字计数，例如 "DSBLOCK/ok"、"FINALBLOCK/duplicate"
type Stats struct {
	mu     sync.RWMutex
	counts map[string]uint64
}

func NewStats() *Stats {
	return &Stats{counts: make(map[string]uint64)}
}

func (s *Stats) Record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[name]++
}

// Snapshot 返回拷贝
func (s *Stats) Snapshot() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]uint64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
