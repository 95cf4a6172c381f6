package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimit 限制同一来源在指定窗口内的请求数量。
// 上传初始化与合并接口都很轻，窗口计数足够，无需令牌桶。
func RateLimit(maxRequests int, window time.Duration) func(http.Handler) http.Handler {
	if maxRequests <= 0 || window <= 0 {
		return passthrough
	}

	limiter := &sourceLimiter{
		maxRequests: maxRequests,
		window:      window,
		sources:     make(map[string]*windowCounter),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(sourceKey(r)) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func passthrough(next http.Handler) http.Handler {
	return next
}

type sourceLimiter struct {
	mu          sync.Mutex
	sources     map[string]*windowCounter
	maxRequests int
	window      time.Duration
}

type windowCounter struct {
	count   int
	expires time.Time
}

func (l *sourceLimiter) Allow(key string) bool {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.sources[key]
	if !ok || now.After(entry.expires) {
		l.sources[key] = &windowCounter{
			count:   1,
			expires: now.Add(l.window),
		}
		return true
	}

	if entry.count >= l.maxRequests {
		return false
	}

	entry.count++

	if len(l.sources) > 1024 {
		l.evictExpiredLocked(now)
	}

	return true
}

func (l *sourceLimiter) evictExpiredLocked(now time.Time) {
	for key, entry := range l.sources {
		if now.After(entry.expires) {
			delete(l.sources, key)
		}
	}
}

func sourceKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
