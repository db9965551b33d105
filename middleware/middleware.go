package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter 按来源地址在固定窗口内计数，超过 limit 返回 429
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	count     map[string]int
	lastReset map[string]time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:     limit,
		window:    window,
		now:       time.Now,
		count:     make(map[string]int),
		lastReset: make(map[string]time.Time),
	}
}

// clientKey 只取主机部分，同一节点的不同端口算一个来源
func clientKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// Allow 记一次请求，返回是否放行
func (l *RateLimiter) Allow(remoteAddr string) bool {
	key := clientKey(remoteAddr)
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.lastReset[key]; !ok || now.Sub(last) > l.window {
		l.count[key] = 0
		l.lastReset[key] = now
	}
	l.count[key]++
	return l.count[key] <= l.limit
}

func (l *RateLimiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r.RemoteAddr) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cleanup 删除超过两个窗口没有请求的来源
func (l *RateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, last := range l.lastReset {
		if now.Sub(last) > 2*l.window {
			delete(l.lastReset, key)
			delete(l.count, key)
		}
	}
}

// StartCleanup 定时清理，ctx 取消后退出
func (l *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.cleanup()
			}
		}
	}()
}

func (l *RateLimiter) trackedClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lastReset)
}
